package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"portfolio/api/internal/export"
	"portfolio/api/internal/layout"
	"portfolio/api/internal/store"
)

// handlePages serves /api/pages/...; parts are the path segments after "pages".
func (s *HTTPServer) handlePages(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			list, err := s.service.ListPages(r.Context())
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var body struct {
				Title string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				page, notice, err := s.service.AddPage(ctx, admin, body.Title)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusCreated, map[string]any{"page": page, "notice": notice}, nil
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	pageID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPut:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var body PageUpdate
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				page, notice, err := s.service.UpdatePage(ctx, admin, pageID, body)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"page": page, "notice": notice}, nil
			})
		case http.MethodDelete:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				notice, err := s.service.DeletePage(ctx, admin, pageID)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"ok": true, "notice": notice}, nil
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 2 {
		switch {
		case parts[1] == "columns" && r.Method == http.MethodPut:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var body struct {
				Widths []float64 `json:"widths"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				notice, err := s.service.SetColumnWidths(ctx, admin, pageID, body.Widths)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"ok": true, "notice": notice}, nil
			})
			return
		case parts[1] == "move" && r.Method == http.MethodPost:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var body struct {
				Direction layout.Direction `json:"direction"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				notice, err := s.service.MovePage(ctx, admin, pageID, body.Direction)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"ok": true, "notice": notice}, nil
			})
			return
		case parts[1] == "blocks" && r.Method == http.MethodGet:
			resolved, err := s.service.PageBlocks(r.Context(), pageID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, resolved)
			return
		case parts[1] == "blocks" && r.Method == http.MethodPost:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var body NewBlock
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				block, notice, err := s.service.AddBlock(ctx, admin, pageID, body)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusCreated, map[string]any{"block": block, "notice": notice}, nil
			})
			return
		case parts[1] == "render" && r.Method == http.MethodGet:
			rendered, err := s.service.RenderPage(r.Context(), pageID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, rendered)
			return
		case parts[1] == "controls" && r.Method == http.MethodGet:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			controls, err := s.service.Controls(r.Context(), admin, pageID)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, controls)
			return
		}
	}

	if len(parts) == 3 && parts[1] == "blocks" {
		blockID := parts[2]
		switch r.Method {
		case http.MethodPut:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var patch store.BlockPatch
			if err := decodeBody(r, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				block, notice, err := s.service.UpdateBlock(ctx, admin, pageID, blockID, patch)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"block": block, "notice": notice}, nil
			})
			return
		case http.MethodDelete:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				notice, err := s.service.DeleteBlock(ctx, admin, pageID, blockID)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"ok": true, "notice": notice}, nil
			})
			return
		}
	}

	if len(parts) == 4 && parts[1] == "blocks" && parts[3] == "move" && r.Method == http.MethodPost {
		admin, ok := s.requireAdmin(w, r)
		if !ok {
			return
		}
		blockID := parts[2]
		var body struct {
			Direction layout.Direction `json:"direction"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
			notice, err := s.service.MoveBlock(ctx, admin, pageID, blockID, body.Direction)
			if err != nil {
				return 0, nil, withNotice(err, notice)
			}
			return http.StatusOK, map[string]any{"ok": true, "notice": notice}, nil
		})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleResume(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			current, err := s.service.GetResume(r.Context())
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, current)
		case http.MethodPut:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			var patch json.RawMessage
			if err := decodeBody(r, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if trimmed := bytes.TrimSpace(patch); len(trimmed) == 0 || trimmed[0] != '{' {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "resume patch must be a JSON object", nil)
				return
			}
			s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
				updated, notice, err := s.service.UpdateResume(ctx, admin, patch)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusOK, map[string]any{"resume": updated, "notice": notice}, nil
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 1 && parts[0] == "export" && r.Method == http.MethodGet {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		result, err := s.service.ExportResume(r.Context(), format)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleMessages(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodPost:
			var body struct {
				Email   string `json:"email"`
				Message string `json:"message"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			s.runCommand(w, r, "", func(ctx context.Context) (int, any, error) {
				message, notice, err := s.service.SendMessage(ctx, body.Email, body.Message)
				if err != nil {
					return 0, nil, withNotice(err, notice)
				}
				return http.StatusCreated, map[string]any{"id": message.ID, "notice": notice}, nil
			})
		case http.MethodGet:
			admin, ok := s.requireAdmin(w, r)
			if !ok {
				return
			}
			items, err := s.service.ListMessages(r.Context(), admin)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"messages": items})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 1 && r.Method == http.MethodDelete {
		admin, ok := s.requireAdmin(w, r)
		if !ok {
			return
		}
		messageID := parts[0]
		s.runCommand(w, r, admin.UserID, func(ctx context.Context) (int, any, error) {
			notice, err := s.service.DeleteMessage(ctx, admin, messageID)
			if err != nil {
				return 0, nil, withNotice(err, notice)
			}
			return http.StatusOK, map[string]any{"ok": true, "notice": notice}, nil
		})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet || len(parts) > 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	admin, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	if len(parts) == 0 {
		commits, err := s.service.History(r.Context(), admin, queryInt(r.URL.Query().Get("limit"), 50))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
		return
	}
	revision, err := s.service.Revision(r.Context(), admin, parts[0])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revision)
}
