package httpapi

import (
	"context"
	"net"
	"net/http"
	"path"
	"runtime/debug"
	"strings"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
	"github.com/bulgur-cloud/bulgur-cloud/internal/storage"
)

type ctxKey string

const ctxAuthorized ctxKey = "authorized"

// authorizedFrom returns the authorization decision the middleware
// attached to the request.
func authorizedFrom(r *http.Request) auth.Authorized {
	a, _ := r.Context().Value(ctxAuthorized).(auth.Authorized)
	return a
}

// isSafeMethod reports whether the method cannot change state. Path and
// share tokens ride in URLs, which get logged and cached, so they are only
// honored for these methods.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// withAuth resolves whatever credentials the request presented and rejects
// it before any handler runs unless at least one checks out. Each
// credential kind is resolved independently; an invalid user token does
// not suppress a valid path token.
func (s *Server) withAuth(allowPathTokens bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds := auth.Credentials{UserToken: userTokenFrom(r)}
		if allowPathTokens && isSafeMethod(r.Method) {
			q := r.URL.Query()
			creds.PathToken = q.Get("token")
			creds.ShareToken = q.Get("share")
		}

		if creds.UserToken == "" && creds.PathToken == "" && creds.ShareToken == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": storage.ErrTokenMissing.Error()})
			return
		}

		a, err := s.Auth.Resolve(r.Context(), creds, normalizedStoragePath(r.URL.Path))
		if err != nil {
			s.Logger.Error("authorization lookup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		if !a.Allowed() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "auth token is missing or invalid, but authorization is required for this route",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ctxAuthorized, a)
		next(w, r.WithContext(ctx))
	}
}

// withAdmin additionally requires the resolved user to be an admin.
// Path-scoped credentials never qualify.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a := authorizedFrom(r)
		if a.Username == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin access required"})
			return
		}
		u, ok, err := s.Auth.GetUser(r.Context(), a.Username)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		if !ok || u.Type != model.TypeAdmin {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin access required"})
			return
		}
		next(w, r)
	}
}

// userTokenFrom reads the access token from the authorization header or,
// failing that, the auth cookie.
func userTokenFrom(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		// Tokens are sent raw; tolerate a Bearer prefix.
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

// normalizedStoragePath converts a request URL path into the "/store/rest"
// form that path tokens and shares are keyed by.
func normalizedStoragePath(urlPath string) string {
	p := strings.TrimPrefix(urlPath, "/storage")
	if p == "" {
		p = "/"
	}
	return path.Clean(p)
}

// clientKey picks the identity the rate limiter buckets on. The remote
// address is authoritative unless a trusted proxy header is configured.
func (s *Server) clientKey(r *http.Request) string {
	if s.TrustedProxyHeader != "" {
		if v := r.Header.Get(s.TrustedProxyHeader); v != "" {
			// Use the first hop of a comma-separated list.
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			return strings.TrimSpace(v)
		}
	}
	return clientIP(r)
}

// clientIP extracts the remote IP without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// withRecover guards handlers against panics and returns a 500 response.
// Invariant violations keep their fatal character: they are logged and
// re-raised rather than downgraded to a per-request error.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if iv, ok := v.(auth.InvariantViolation); ok {
					s.Logger.Error("invariant violation", "error", iv.Error())
					panic(v)
				}
				s.Logger.Error("panic", "panic", v, "stack", string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-content-type-options", "nosniff")
		w.Header().Set("x-frame-options", "DENY")
		w.Header().Set("referrer-policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
