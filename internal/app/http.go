package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio/api/internal/auth"
	"portfolio/api/internal/authpw"
	"portfolio/api/internal/command"
	"portfolio/api/internal/export"
	"portfolio/api/internal/ordering"
	"portfolio/api/internal/realtime"
	"portfolio/api/internal/resume"
	"portfolio/api/internal/search"
	"portfolio/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	commands   *command.Queue
	corsOrigin string
	logger     *zap.Logger
	routes     map[route]http.HandlerFunc
}

// route is an endpoint matched on its exact path.
type route struct {
	method string
	path   string
}

// NewHTTPServer wires the JSON API. commands may be nil, in which case
// Idempotency-Key headers are ignored.
func NewHTTPServer(service *Service, commands *command.Queue, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPServer{service: service, commands: commands, corsOrigin: corsOrigin, logger: logger}
	s.routes = map[route]http.HandlerFunc{
		{http.MethodGet, "/api/health"}:          s.handleHealth,
		{http.MethodHead, "/api/health"}:         s.handleHealth,
		{http.MethodGet, "/api/ready"}:           s.handleReady,
		{http.MethodHead, "/api/ready"}:          s.handleReady,
		{http.MethodGet, "/sitemap.xml"}:         s.handleSitemap,
		{http.MethodGet, "/api/session"}:         s.handleSession,
		{http.MethodPost, "/api/session/login"}:   s.handleLogin,
		{http.MethodPost, "/api/session/refresh"}: s.handleRefresh,
		{http.MethodPost, "/api/session/logout"}:  s.handleLogout,
		{http.MethodGet, "/api/subscribe"}:       s.handleSubscribe,
		{http.MethodGet, "/api/search"}:          s.handleSearch,
		{http.MethodPost, "/api/search/reindex"}: s.handleReindex,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if h, ok := s.routes[route{r.Method, r.URL.Path}]; ok {
		h(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "pages":
		s.handlePages(w, r, parts[2:])
		return
	case "resume":
		s.handleResume(w, r, parts[2:])
		return
	case "messages":
		s.handleMessages(w, r, parts[2:])
		return
	case "history":
		s.handleHistory(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic, err := realtime.ParseTopic(r.URL.Query().Get("topic"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if topic == realtime.TopicMessages {
		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		admin, err := s.service.AdminFromToken(r.Context(), token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.service.Hub().ServeWSUntil(w, r, topic, admin.ExpiresAt)
		return
	}
	s.service.Hub().ServeWS(w, r, topic)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := search.Query{Text: strings.TrimSpace(values.Get("q"))}
	switch kind := search.ResultType(values.Get("type")); kind {
	case "", search.ResultPage, search.ResultBlock:
		q.FilterType = kind
	default:
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "type must be page or block", nil)
		return
	}
	q.Limit = queryInt(values.Get("limit"), 20)
	q.Offset = queryInt(values.Get("offset"), 0)
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Text == "" {
		writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}})
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.AdminSession, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return auth.AdminSession{}, false
	}
	admin, err := s.service.AdminFromToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		case errors.Is(err, auth.ErrNotOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		default:
			s.logger.Error("session lookup failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		}
		return auth.AdminSession{}, false
	}
	return admin, true
}

// runCommand executes a mutation. With an Idempotency-Key header it goes through
// the command queue, keyed per principal and route: repeats replay the first
// answer and transient failures are retried. Without one the mutation runs
// exactly once.
func (s *HTTPServer) runCommand(w http.ResponseWriter, r *http.Request, principal string, fn func(ctx context.Context) (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" || s.commands == nil {
		status, payload, err := fn(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, status, payload)
		return
	}

	scoped := strings.Join([]string{principal, r.Method, r.URL.Path, key}, " ")
	result, replayed, err := s.commands.Do(r.Context(), scoped, func(ctx context.Context) (command.Result, error) {
		status, payload, err := fn(ctx)
		if err != nil {
			return command.Result{}, err
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return command.Result{}, fmt.Errorf("encode response: %w", err)
		}
		return command.Result{Status: status, Body: body}, nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}

// Transient reports whether a failed command may be retried.
func Transient(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Swaps read the current orders, so replaying an applied swap undoes it.
	if errors.Is(err, store.ErrCommitUncertain) {
		return false
	}
	status, _, _, _ := mapError(err)
	return status == http.StatusInternalServerError
}

type noticeError struct {
	err    error
	notice Notice
}

func (e *noticeError) Error() string { return e.err.Error() }
func (e *noticeError) Unwrap() error { return e.err }

// withNotice attaches the editor notice shown when err reaches the client.
func withNotice(err error, notice Notice) error {
	if err == nil {
		return nil
	}
	return &noticeError{err: err, notice: notice}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	var withN *noticeError
	if errors.As(err, &withN) {
		response["notice"] = withN.notice
	}
	writeJSON(w, status, response)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the subscription endpoint upgrade to a websocket through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, Idempotent-Replayed")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusServiceUnavailable, "READ_ONLY", "The site is in read-only mode", nil
	case errors.Is(err, ordering.ErrOrderingUndetermined):
		return http.StatusConflict, "ORDERING_UNDETERMINED", "Page order cannot be determined", nil
	case errors.Is(err, ordering.ErrNotMultiColumn):
		return http.StatusUnprocessableEntity, "NOT_MULTI_COLUMN", "Page layout is not multi-column", nil
	case errors.Is(err, ordering.ErrInvalidLayout),
		errors.Is(err, ordering.ErrInvalidDirection),
		errors.Is(err, ordering.ErrInvalidBlockType),
		errors.Is(err, ordering.ErrInvalidColumn),
		errors.Is(err, resume.ErrInvalidSection),
		errors.Is(err, authpw.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat), errors.Is(err, realtime.ErrUnknownTopic):
		return http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not available on this server", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, auth.ErrNotOwner):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
