package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	issued, issuedClaims, err := signer.Issue("user-1", "owner@example.com", "Owner", "owner")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := signer.Parse(issued)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims != issuedClaims {
		t.Fatalf("parsed %+v, issued %+v", claims, issuedClaims)
	}
	if claims.Sub != "user-1" || claims.Email != "owner@example.com" || claims.Role != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	signer := NewSigner("secret", time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	issued, _, err := signer.Issue("user-1", "owner@example.com", "Owner", "owner")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	signer.now = time.Now
	if _, err := signer.Parse(issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	issued, _, err := signer.Issue("user-1", "owner@example.com", "Owner", "visitor")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	forged, err := encode([]byte("other"), Claims{Sub: "user-1", Role: "owner", JTI: "x", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("encode() error = %v", err)
	}

	for _, token := range []string{forged, issued + "x", "no-dot", issued + ".extra"} {
		if _, err := signer.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestAdminFromClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	session, err := AdminFromClaims(Claims{Sub: "u1", Email: "o@example.com", Role: "owner", Exp: exp.Unix()})
	if err != nil {
		t.Fatalf("AdminFromClaims() error = %v", err)
	}
	if !session.Valid(time.Now()) {
		t.Fatalf("expected valid session, got %+v", session)
	}
	if session.Valid(exp.Add(time.Second)) {
		t.Fatal("expected session to expire")
	}

	if _, err := AdminFromClaims(Claims{Sub: "u2", Role: "visitor", Exp: exp.Unix()}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
