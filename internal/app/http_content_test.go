package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio/api/internal/command"
	"portfolio/api/internal/realtime"
	"portfolio/api/internal/store"
)

func columnIDs(t *testing.T, payload map[string]any, index int) []string {
	t.Helper()
	columns, _ := payload["columns"].([]any)
	if index >= len(columns) {
		t.Fatalf("column %d missing from %v", index, payload)
	}
	column, _ := columns[index].(map[string]any)
	blocks, _ := column["blocks"].([]any)
	ids := make([]string, 0, len(blocks))
	for _, item := range blocks {
		block, _ := item.(map[string]any)
		ids = append(ids, block["id"].(string))
	}
	return ids
}

func noticeOf(payload map[string]any) map[string]any {
	notice, _ := payload["notice"].(map[string]any)
	return notice
}

func TestListPagesSeparatesHeader(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())

	rec, payload := doRequest(t, handler, http.MethodGet, "/api/pages", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/pages status = %d", rec.Code)
	}
	pages, _ := payload["pages"].([]any)
	if len(pages) != 2 {
		t.Fatalf("pages = %v, want about and projects", pages)
	}
	first, _ := pages[0].(map[string]any)
	if first["id"] != "about" {
		t.Fatalf("first page = %v, want about", first["id"])
	}
	header, _ := payload["header"].(map[string]any)
	if header["id"] != store.HeaderPageID {
		t.Fatalf("header = %v", payload["header"])
	}
}

func TestMoveBlockRightThroughAPI(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	token, _ := loginToken(t, handler)

	rec, payload := doRequest(t, handler, http.MethodPost, "/api/pages/about/blocks/b/move", token, `{"direction":"right"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if notice := noticeOf(payload); notice["title"] != noticeColumnMoved.Title || notice["variant"] != variantDefault {
		t.Fatalf("notice = %v", notice)
	}

	rec, payload = doRequest(t, handler, http.MethodGet, "/api/pages/about/blocks", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("blocks status = %d", rec.Code)
	}
	if got := strings.Join(columnIDs(t, payload, 0), ","); got != "a,c" {
		t.Fatalf("column 1 = %s, want a,c", got)
	}
	if got := strings.Join(columnIDs(t, payload, 1), ","); got != "b" {
		t.Fatalf("column 2 = %s, want b", got)
	}
}

func TestMoveBlockPastBoundaryIsConflict(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	token, _ := loginToken(t, handler)

	rec, payload := doRequest(t, handler, http.MethodPost, "/api/pages/about/blocks/c/move", token, `{"direction":"down"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("move status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if payload["code"] != "MOVE_NOT_ALLOWED" {
		t.Fatalf("code = %v, want MOVE_NOT_ALLOWED", payload["code"])
	}
	notice := noticeOf(payload)
	if notice["variant"] != variantDestructive || notice["description"] != noticeBlockMoveFailed.Description {
		t.Fatalf("notice = %v", notice)
	}

	rec, payload = doRequest(t, handler, http.MethodPost, "/api/pages/about/blocks/c/move", token, `{"direction":"sideways"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid direction status = %d, want %d (%v)", rec.Code, http.StatusUnprocessableEntity, payload)
	}
}

func TestAddAndDeletePageThroughAPI(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	token, _ := loginToken(t, handler)

	rec, payload := doRequest(t, handler, http.MethodPost, "/api/pages", token, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add page status = %d, body = %s", rec.Code, rec.Body.String())
	}
	page, _ := payload["page"].(map[string]any)
	if page["title"] != "New Page Section" || page["order"] != 2.0 {
		t.Fatalf("page = %v", page)
	}
	pageID := page["id"].(string)

	rec, payload = doRequest(t, handler, http.MethodPost, "/api/pages/"+pageID+"/blocks", token, `{"type":"text"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add block status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if notice := noticeOf(payload); notice["title"] != noticeBlockCreated.Title {
		t.Fatalf("notice = %v", notice)
	}

	rec, payload = doRequest(t, handler, http.MethodDelete, "/api/pages/"+pageID, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete page status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if notice := noticeOf(payload); notice["description"] != `Page section "New Page Section" has been deleted.` {
		t.Fatalf("notice = %v", notice)
	}

	rec, _ = doRequest(t, handler, http.MethodGet, "/api/pages/"+pageID+"/blocks", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted page blocks status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestControlsReportAffordances(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	token, _ := loginToken(t, handler)

	rec, _ := doRequest(t, handler, http.MethodGet, "/api/pages/about/controls", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous controls status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec, payload := doRequest(t, handler, http.MethodGet, "/api/pages/about/controls", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("controls status = %d", rec.Code)
	}
	page, _ := payload["page"].(map[string]any)
	if page["canMoveUp"] != false || page["canMoveDown"] != true {
		t.Fatalf("page controls = %v", page)
	}
	blocks, _ := payload["blocks"].([]any)
	if len(blocks) != 3 {
		t.Fatalf("block controls = %v", blocks)
	}
	for _, item := range blocks {
		controls := item.(map[string]any)
		if controls["canMoveLeft"] != false || controls["canMoveRight"] != true {
			t.Fatalf("block %v horizontal controls = %v", controls["blockId"], controls)
		}
	}
}

func TestReadOnlyStoreRejectsWrites(t *testing.T) {
	fs := &fakeStore{MemoryStore: store.NewReadOnlyMemoryStore(seededSite())}
	handler, _ := newTestHandler(t, fs)
	token, _ := loginToken(t, handler)

	_, payload := doRequest(t, handler, http.MethodGet, "/api/ready", "", "")
	if payload["mode"] != "read-only" {
		t.Fatalf("mode = %v, want read-only", payload["mode"])
	}

	rec, payload := doRequest(t, handler, http.MethodPost, "/api/pages/about/blocks/a/move", token, `{"direction":"down"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("move status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if payload["code"] != "READ_ONLY" {
		t.Fatalf("code = %v, want READ_ONLY", payload["code"])
	}

	rec, _ = doRequest(t, handler, http.MethodGet, "/api/pages/about/blocks", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("read status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestIdempotencyKeyReplaysFirstAnswer(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	queue := command.NewQueue(command.NewMemoryResults(), command.DefaultOptions(), zap.NewNop())
	handler := NewHTTPServer(svc, queue, "*", zap.NewNop()).Handler()
	token, _ := loginToken(t, handler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/pages", strings.NewReader(`{"title":"Talks"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "add-talks")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, body = %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("replay missing Idempotent-Replayed header")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body = %s, want %s", second.Body.String(), first.Body.String())
	}
	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		if got := rec.Header().Get("Content-Type"); got != "application/json" {
			t.Fatalf("Content-Type = %q, want application/json", got)
		}
	}

	list, err := svc.ListPages(context.Background())
	if err != nil {
		t.Fatalf("ListPages() error = %v", err)
	}
	if len(list.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(list.Pages))
	}
}

func TestMessagesFlow(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	token, _ := loginToken(t, handler)

	rec, payload := doRequest(t, handler, http.MethodPost, "/api/messages", "", `{"message":"   "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty message status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if notice := noticeOf(payload); notice["description"] != "Message cannot be empty." {
		t.Fatalf("notice = %v", notice)
	}

	rec, payload = doRequest(t, handler, http.MethodPost, "/api/messages", "", `{"email":"grace@example.com","message":"Loved the talk"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d, body = %s", rec.Code, rec.Body.String())
	}
	id, _ := payload["id"].(string)
	if !strings.HasPrefix(id, "msg") {
		t.Fatalf("message id = %q", id)
	}

	rec, _ = doRequest(t, handler, http.MethodGet, "/api/messages", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous inbox status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec, payload = doRequest(t, handler, http.MethodGet, "/api/messages", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("inbox status = %d", rec.Code)
	}
	messages, _ := payload["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %v", messages)
	}

	rec, payload = doRequest(t, handler, http.MethodDelete, "/api/messages/"+id, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if notice := noticeOf(payload); notice["description"] != "The message has been removed from your inbox." {
		t.Fatalf("notice = %v", notice)
	}
}

func TestResumeUpdateRejectsUnknownSection(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	token, _ := loginToken(t, handler)

	rec, payload := doRequest(t, handler, http.MethodPut, "/api/resume", token, `{"sectionOrder":["hobbies"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("update status = %d, want %d (%v)", rec.Code, http.StatusUnprocessableEntity, payload)
	}
	if notice := noticeOf(payload); notice["description"] != noticeResumeFailed.Description {
		t.Fatalf("notice = %v", notice)
	}

	rec, _ = doRequest(t, handler, http.MethodPut, "/api/resume", token, `["not","an","object"]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("array patch status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec, payload = doRequest(t, handler, http.MethodPut, "/api/resume", token, `{"name":"Ada Lovelace"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated, _ := payload["resume"].(map[string]any)
	if updated["name"] != "Ada Lovelace" {
		t.Fatalf("resume = %v", updated)
	}

	rec, payload = doRequest(t, handler, http.MethodGet, "/api/resume/export?format=odt", "", "")
	if rec.Code != http.StatusBadRequest || payload["code"] != "INVALID_QUERY" {
		t.Fatalf("export odt status = %d, payload = %v", rec.Code, payload)
	}
}

func TestSearchFindsBlockContent(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())

	rec, payload := doRequest(t, handler, http.MethodGet, "/api/search?q=compiler", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	results, _ := payload["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", results)
	}
	hit, _ := results[0].(map[string]any)
	if hit["type"] != "block" || hit["pageId"] != "projects" {
		t.Fatalf("hit = %v", hit)
	}

	rec, _ = doRequest(t, handler, http.MethodGet, "/api/search?q=x&type=video", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubscribeStreamsBlockSnapshots(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())
	server := httptest.NewServer(handler)
	defer server.Close()
	token, _ := loginToken(t, handler)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/subscribe?topic=" + realtime.BlocksTopic("about")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readFrame := func() map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame struct {
			Topic string         `json:"topic"`
			Data  map[string]any `json:"data"`
			Error string         `json:"error"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if frame.Error != "" {
			t.Fatalf("frame error: %s", frame.Error)
		}
		return frame.Data
	}

	initial := readFrame()
	if got := strings.Join(columnIDs(t, initial, 0), ","); got != "a,b,c" {
		t.Fatalf("initial column 1 = %s", got)
	}

	rec, _ := doRequest(t, handler, http.MethodPost, "/api/pages/about/blocks/a/move", token, `{"direction":"down"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d", rec.Code)
	}
	updated := readFrame()
	if got := strings.Join(columnIDs(t, updated, 0), ","); got != "b,a,c" {
		t.Fatalf("updated column 1 = %s, want b,a,c", got)
	}
}

func TestSubscribeMessagesRequiresOwner(t *testing.T) {
	handler, _ := newTestHandler(t, newFakeStore())

	rec, _ := doRequest(t, handler, http.MethodGet, "/api/subscribe?topic=messages", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	rec, payload := doRequest(t, handler, http.MethodGet, "/api/subscribe?topic=weather", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown topic status = %d, want %d (%v)", rec.Code, http.StatusBadRequest, payload)
	}
}

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusConflict, "MOVE_NOT_ALLOWED", "Block cannot move up", nil)
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["code"] != "MOVE_NOT_ALLOWED" || payload["error"] != "Block cannot move up" {
		t.Fatalf("payload = %v", payload)
	}
	if _, ok := payload["details"]; ok {
		t.Fatalf("details present without details: %v", payload)
	}
}

func TestUncertainCommitIsNotRetried(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(t, fs)
	opts := command.DefaultOptions()
	opts.Backoff = time.Millisecond
	opts.Transient = Transient
	queue := command.NewQueue(command.NewMemoryResults(), opts, zap.NewNop())
	handler := NewHTTPServer(svc, queue, "*", zap.NewNop()).Handler()
	token, _ := loginToken(t, handler)

	commits := 0
	fs.commitFn = func(context.Context, *store.Batch) error {
		commits++
		return fmt.Errorf("commit batch: %w: %w", store.ErrCommitUncertain, errors.New("connection reset"))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pages/about/blocks/b/move", strings.NewReader(`{"direction":"up"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "swap-b-up")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusInternalServerError, rec.Body.String())
	}
	if commits != 1 {
		t.Fatalf("commit attempts = %d, want 1", commits)
	}
}
