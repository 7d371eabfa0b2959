package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
	"github.com/bulgur-cloud/bulgur-cloud/internal/validate"
)

// handleUsers lists and creates accounts. Admin only.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.Auth.ListUsers(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		type item struct {
			Username string `json:"username"`
			Type     string `json:"user_type"`
		}
		out := make([]item, 0, len(users))
		for _, u := range users {
			out = append(out, item{Username: u.Username, Type: string(u.Type)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})

	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Type     string `json:"user_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if req.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is required"})
			return
		}
		typ := model.TypeUser
		if req.Type != "" {
			var ok bool
			typ, ok = model.ParseUserType(req.Type)
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad user type, should be user or admin"})
				return
			}
		}

		u, err := s.Auth.AddUser(r.Context(), req.Username, req.Password, typ)
		if err != nil {
			status := http.StatusInternalServerError
			msg := "server error"
			if errors.Is(err, auth.ErrUserExists) || errors.Is(err, validate.ErrInvalidUsername) {
				status = http.StatusBadRequest
				msg = err.Error()
			}
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		if err := os.MkdirAll(s.Guard.StorePath(u.Username), 0o755); err != nil {
			s.Logger.Error("creating store folder failed", "user", u.Username, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"username": u.Username})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// handleUserByName removes one account. With delete_files=true the user's
// on-disk store goes too; otherwise the files stay behind.
func (s *Server) handleUserByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if name == auth.NobodyUser {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "this account cannot be removed"})
		return
	}

	if err := s.Auth.RemoveUser(r.Context(), name); err != nil {
		if errors.Is(err, auth.ErrUnknownUser) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}

	if r.URL.Query().Get("delete_files") == "true" {
		if err := os.RemoveAll(s.Guard.StorePath(name)); err != nil {
			s.Logger.Error("removing store folder failed", "user", name, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}
