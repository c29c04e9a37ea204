package authpw

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"portfolio/api/internal/store"
)

func newTestService() (*Service, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	n := 0
	svc := NewService(mem, func() string {
		n++
		return "user-" + string(rune('0'+n))
	})
	svc.cost = bcrypt.MinCost
	return svc, mem
}

func TestBootstrapOwner(t *testing.T) {
	ctx := context.Background()
	svc, mem := newTestService()

	user, err := svc.BootstrapOwner(ctx, BootstrapRequest{Email: " Owner@Example.com ", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "owner@example.com" || user.Role != "owner" || user.DisplayName != "Owner" {
		t.Fatalf("unexpected owner: %+v", user)
	}

	t.Run("second bootstrap keeps the id and resets the password", func(t *testing.T) {
		again, err := svc.BootstrapOwner(ctx, BootstrapRequest{Email: "owner@example.com", Password: "different-pass", DisplayName: "Ada"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.ID != user.ID {
			t.Fatalf("expected id %s to be kept, got %s", user.ID, again.ID)
		}
		stored, err := mem.GetUserByEmail(ctx, "owner@example.com")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if stored.DisplayName != "Ada" {
			t.Errorf("expected display name Ada, got %s", stored.DisplayName)
		}
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "owner@example.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected old password to be rejected, got %v", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		if _, err := svc.BootstrapOwner(ctx, BootstrapRequest{Email: "a@b.c", Password: "short"}); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	if _, err := svc.BootstrapOwner(ctx, BootstrapRequest{Email: "owner@example.com", Password: "password123"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	t.Run("successful sign in", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "OWNER@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Email != "owner@example.com" {
			t.Errorf("expected email owner@example.com, got %s", user.Email)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "owner@example.com", Password: "wrongpassword"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("non-existent user", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "password123"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	owner, err := svc.BootstrapOwner(ctx, BootstrapRequest{Email: "owner@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if err := svc.ChangePassword(ctx, owner.ID, "wrong-current", "newpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, owner.ID, "password123", "newpassword1"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "owner@example.com", Password: "newpassword1"}); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}
