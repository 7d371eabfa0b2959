package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/bulgur-cloud/bulgur-cloud/internal/storage"
)

// parseStorageURL splits "/storage/{store}/{path...}" into its parts.
func parseStorageURL(urlPath string) (store, rel string, ok bool) {
	return storage.SplitStorePath(normalizedStoragePath(urlPath))
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	store, rel, ok := parseStorageURL(r.URL.Path)
	if !ok {
		s.writeStorageError(w, storage.ErrBadPath)
		return
	}

	a := authorizedFrom(r)
	local, err := s.Guard.AuthorizedPath(a, store, rel)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.serveStorageGet(w, r, local)
	case http.MethodHead:
		s.serveStorageHead(w, r, local)
	case http.MethodPut:
		s.serveStoragePut(w, r, local)
	case http.MethodDelete:
		if err := storage.RemovePath(local); err != nil {
			s.writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
	case http.MethodPost:
		s.serveStoragePost(w, r, store, rel, local)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// serveStorageGet sends a file, or a folder listing as JSON.
func (s *Server) serveStorageGet(w http.ResponseWriter, r *http.Request, local string) {
	st, err := os.Stat(local)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if st.IsDir() {
		entries, err := storage.ListFolder(local)
		if err != nil {
			s.writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}
	http.ServeFile(w, r, local)
}

func (s *Server) serveStorageHead(w http.ResponseWriter, r *http.Request, local string) {
	if _, err := os.Stat(local); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// serveStoragePut accepts a multipart upload into the target folder,
// creating the folder when missing. Each part publishes independently; a
// partial failure still reports how many parts landed.
func (s *Server) serveStoragePut(w http.ResponseWriter, r *http.Request, local string) {
	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}

	if err := os.Mkdir(local, 0o755); err != nil && !os.IsExist(err) {
		s.writeStorageError(w, err)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		s.writeStorageError(w, &storage.UploadError{Err: err})
		return
	}

	written, err := storage.WriteFiles(mr, local, s.Logger)
	if err != nil {
		status := http.StatusInternalServerError
		var uploadErr *storage.UploadError
		switch {
		case errors.As(err, &uploadErr), os.IsExist(err):
			status = http.StatusBadRequest
		case os.IsNotExist(err):
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]any{"files_written": written, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files_written": written})
}

// storageAction is the JSON body of POST /storage/{store}/{path...}.
type storageAction struct {
	Action  string `json:"action"`
	NewPath string `json:"new_path"`
}

func (s *Server) serveStoragePost(w http.ResponseWriter, r *http.Request, store, rel, local string) {
	var action storageAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	switch action.Action {
	case "MakePathToken":
		token, err := s.Auth.IssuePathToken(r.Context(), storage.NormalizePath(store, rel))
		if err != nil {
			s.writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})

	case "Move":
		toStore, toRel, ok := storage.SplitStorePath(action.NewPath)
		if !ok {
			s.writeStorageError(w, storage.ErrBadPath)
			return
		}
		// The destination needs its own authorization under the same
		// decision; a user cannot move files into someone else's store.
		toLocal, err := s.Guard.AuthorizedPath(authorizedFrom(r), toStore, toRel)
		if err != nil {
			s.writeStorageError(w, err)
			return
		}
		if err := os.Rename(local, toLocal); err != nil {
			s.writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})

	case "CreateFolder":
		if err := os.Mkdir(local, 0o755); err != nil {
			s.writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action"})
	}
}
