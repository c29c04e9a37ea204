package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	JTI   string `json:"jti"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Signer issues and verifies HMAC-signed access tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for subject that expires after the signer's TTL.
func (s *Signer) Issue(sub, email, name, role string) (string, Claims, error) {
	now := s.now()
	claims := Claims{
		Sub:   sub,
		Email: email,
		Name:  name,
		Role:  role,
		JTI:   uuid.NewString(),
		Iat:   now.Unix(),
		Exp:   now.Add(s.ttl).Unix(),
	}
	token, err := encode(s.secret, claims)
	if err != nil {
		return "", Claims{}, err
	}
	return token, claims, nil
}

// Parse verifies the signature and expiry of token. Any malformed token is
// ErrInvalidToken.
func (s *Signer) Parse(token string) (Claims, error) {
	claims, err := decode(s.secret, token)
	if err != nil {
		return Claims{}, err
	}
	if err := claims.check(s.now()); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (c Claims) check(now time.Time) error {
	if c.Sub == "" || c.Role == "" || c.JTI == "" || c.Exp == 0 {
		return ErrInvalidToken
	}
	if !now.Before(time.Unix(c.Exp, 0)) {
		return ErrExpiredToken
	}
	return nil
}

// Tokens are base64url(JSON claims) "." base64url(HMAC-SHA256 of the first part).
func encode(secret []byte, claims Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + base64.RawURLEncoding.EncodeToString(mac(secret, body)), nil
}

func decode(secret []byte, token string) (Claims, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(gotMAC, mac(secret, body)) {
		return Claims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func mac(secret []byte, body string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(body))
	return h.Sum(nil)
}

// HashToken is the lookup key stored for a refresh token.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
