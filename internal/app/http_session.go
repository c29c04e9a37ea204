package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const readyTimeout = 5 * time.Second

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReady reports whether the content store answers, and whether the
// service is accepting writes.
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	mode := "read-write"
	if s.service.ReadOnly() {
		mode = "read-only"
	}
	database := map[string]any{"status": "ok"}
	code, status := http.StatusOK, "ready"
	if err := s.service.Ping(ctx); err != nil {
		database = map[string]any{"status": "error", "error": err.Error()}
		code, status = http.StatusServiceUnavailable, "not_ready"
	}
	writeJSON(w, code, map[string]any{
		"ok":     code == http.StatusOK,
		"status": status,
		"mode":   mode,
		"checks": map[string]any{"database": database},
	})
}

func (s *HTTPServer) handleSitemap(w http.ResponseWriter, r *http.Request) {
	body, err := s.service.Sitemap(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/xml; charset=utf-8")
	h.Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleSession never fails: a missing or bad token is an anonymous visitor.
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	anonymous := map[string]any{"authenticated": false, "userName": nil}
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        session.UserID,
		"userName":      session.UserName,
		"role":          session.Role,
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedSession(session))
}

// handleRefresh trades a refresh token for a new pair. The presented token is
// consumed either way.
func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.logger.Debug("refresh rejected", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		return
	}
	writeJSON(w, http.StatusOK, issuedSession(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "notice": noticeLoggedOut})
}

func (s *HTTPServer) handleReindex(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	if err := s.service.Reindex(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func issuedSession(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"role":         session.Role,
	}
}
