package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/storage"
)

// handleShares lists the caller's shares and creates new ones. Shares are
// a user-level feature; path-scoped credentials cannot manage them.
func (s *Server) handleShares(w http.ResponseWriter, r *http.Request) {
	a := authorizedFrom(r)
	if a.Username == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "a user login is required to manage shares"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		shares, err := s.Auth.ListShares(r.Context(), a.Username)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shares": shares})

	case http.MethodPost:
		var req struct {
			Path         string `json:"path"`
			SharedWith   string `json:"shared_with"`
			ExpiresHours int    `json:"expires_hours"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}

		store, rel, ok := storage.SplitStorePath(req.Path)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": storage.ErrBadPath.Error()})
			return
		}
		// Only the owner of a store can share paths inside it.
		if store != a.Username {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": storage.ErrNotAuthorized.Error()})
			return
		}
		if _, err := s.Guard.AuthorizedPath(a, store, rel); err != nil {
			s.writeStorageError(w, err)
			return
		}
		if req.SharedWith != "" {
			_, ok, err := s.Auth.GetUser(r.Context(), req.SharedWith)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
				return
			}
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipient user does not exist"})
				return
			}
		}

		var expiresAt *time.Time
		if req.ExpiresHours > 0 {
			t := time.Now().Add(time.Duration(req.ExpiresHours) * time.Hour)
			expiresAt = &t
		}

		share, err := s.Auth.IssueShare(r.Context(), storage.NormalizePath(store, rel), a.Username, req.SharedWith, expiresAt)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		writeJSON(w, http.StatusOK, share)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// handleShareByID deletes a share; only its creator may.
func (s *Server) handleShareByID(w http.ResponseWriter, r *http.Request) {
	a := authorizedFrom(r)
	if a.Username == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "a user login is required to manage shares"})
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/shares/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	err := s.Auth.DeleteShare(r.Context(), id, a.Username)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
	case errors.Is(err, auth.ErrUnknownShare):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, auth.ErrNotShareOwner):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}
