// Package httpapi exposes the HTTP API and handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/storage"
)

// AuthCookieName is the same-site cookie carrying the access token.
const AuthCookieName = "bulgur-cloud-auth"

type Server struct {
	Auth   *auth.Service
	Guard  *storage.Guard
	Logger *slog.Logger

	BindAddr       string
	Port           int
	MaxUploadBytes int64

	// LoginRatePerMin and LoginBurst throttle the login route per client.
	LoginRatePerMin int
	LoginBurst      int
	// TrustedProxyHeader, when set, names a header (e.g. X-Forwarded-For)
	// whose first value is trusted as the client address for rate limiting.
	TrustedProxyHeader string

	startedAt    time.Time
	loginLimiter *tokenBucketLimiter
}

// Handler assembles the route table. It is split from ListenAndServe so
// tests can drive the full middleware stack through httptest.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.startedAt = time.Now()
	ratePerMin := s.LoginRatePerMin
	if ratePerMin <= 0 {
		ratePerMin = 10
	}
	burst := s.LoginBurst
	if burst <= 0 {
		burst = ratePerMin
	}
	s.loginLimiter = newTokenBucketLimiter(float64(ratePerMin)/60.0, burst)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/logout", s.withAuth(false, s.handleLogout))

	mux.HandleFunc("/api/stats", s.withAuth(false, s.handleStats))
	mux.HandleFunc("/api/shares", s.withAuth(false, s.handleShares))
	mux.HandleFunc("/api/shares/", s.withAuth(false, s.handleShareByID))
	mux.HandleFunc("/api/users", s.withAuth(false, s.withAdmin(s.handleUsers)))
	mux.HandleFunc("/api/users/", s.withAuth(false, s.withAdmin(s.handleUserByName)))

	mux.HandleFunc("/storage/", s.withAuth(true, s.handleStorage))

	mux.HandleFunc("/is_bulgur_cloud", s.handleProbe)

	h := s.withRequestLog(mux)
	h = s.withRecover(h)
	return withSecurityHeaders(h)
}

func (s *Server) ListenAndServe() error {
	handler := s.Handler()
	// The limiter's cleanup goroutine must not outlive the server.
	defer s.loginLimiter.Stop()

	addr := s.BindAddr + ":" + strconv.Itoa(s.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.Logger.Info("http server listening", "addr", addr)
	return httpServer.ListenAndServe()
}

// handleProbe lets clients detect that they are talking to a
// bulgur-cloud server before attempting a login.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodHead && r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	allowed, retryAfter := s.loginLimiter.Allow(s.clientKey(r))
	if !allowed {
		w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing credentials"})
		return
	}

	ctx := r.Context()
	if err := s.Auth.VerifyPassword(ctx, req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrLoginFailed) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": auth.ErrLoginFailed.Error()})
			return
		}
		s.Logger.Error("login failed on persistence", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}

	token, err := s.Auth.IssueAccessToken(ctx, req.Username)
	if err != nil {
		s.Logger.Error("issuing access token failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}

	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if token := userTokenFrom(r); token != "" {
		if err := s.Auth.RevokeAccessToken(r.Context(), token); err != nil {
			s.Logger.Error("revoking access token failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
	}
	clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"uptime": time.Since(s.startedAt).Round(time.Second).String(),
		})
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// writeStorageError maps the storage error taxonomy onto status codes at
// the request boundary. Errors keep their kind until this point.
func (s *Server) writeStorageError(w http.ResponseWriter, err error) {
	var uploadErr *storage.UploadError
	switch {
	case errors.Is(err, storage.ErrNotAuthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrBadPath), errors.Is(err, storage.ErrTokenMissing):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &uploadErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case os.IsNotExist(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case os.IsExist(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "already exists"})
	default:
		s.Logger.Error("storage operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(auth.TokenTTL.Seconds()),
	})
}

func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
