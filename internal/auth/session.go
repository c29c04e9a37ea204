package auth

import (
	"errors"
	"time"

	"portfolio/api/internal/rbac"
)

var ErrNotOwner = errors.New("owner session required")

// AdminSession is the capability every content mutation takes. Only a verified
// owner token produces one.
type AdminSession struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// AdminFromClaims turns verified claims into an AdminSession when the role may
// edit content.
func AdminFromClaims(claims Claims) (AdminSession, error) {
	if !rbac.Can(rbac.Normalize(claims.Role), rbac.ActionEditContent) {
		return AdminSession{}, ErrNotOwner
	}
	return AdminSession{
		UserID:    claims.Sub,
		Email:     claims.Email,
		ExpiresAt: time.Unix(claims.Exp, 0).UTC(),
	}, nil
}

// Valid reports whether the session was issued and has not expired at now.
func (s AdminSession) Valid(now time.Time) bool {
	return s.UserID != "" && now.Before(s.ExpiresAt)
}
