// Package auth implements password verification, token issuance, and the
// per-request authorization resolver over the credential store.
package auth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
)

// TokenTTL bounds the validity of access and path tokens.
const TokenTTL = 24 * time.Hour

const tokenBytes = 32

// InvariantViolation is the panic payload for broken process-level
// assumptions, like a token collision that signals a failed randomness
// source. Request-scoped panic recovery must re-raise it instead of
// serving it as an ordinary error.
type InvariantViolation string

func (v InvariantViolation) Error() string { return string(v) }

// ErrLoginFailed is the only failure surfaced for bad credentials,
// regardless of whether the user exists.
var ErrLoginFailed = errors.New("login failed, incorrect username or password")

// ErrUserExists is returned when creating a user whose name is taken.
var ErrUserExists = errors.New("username is already taken")

// ErrUnknownUser is returned when operating on a user that does not exist.
var ErrUnknownUser = errors.New("no such user")

// Service holds the credential tables and policy knobs. It is constructed
// once at startup and shared by every request.
type Service struct {
	users        kv.Table
	accessTokens kv.Table
	pathTokens   kv.Table
	shares       kv.Table

	logger     *slog.Logger
	hashParams Argon2Params
	tokenTTL   time.Duration
	now        func() time.Time
}

// Option adjusts Service construction.
type Option func(*Service)

// WithHashParams overrides the password hashing cost, e.g. for tests.
func WithHashParams(p Argon2Params) Option {
	return func(s *Service) { s.hashParams = p }
}

// WithClock overrides the time source for expiry checks in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService opens the credential tables on store.
func NewService(store kv.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:        store.Table(kv.TableUsers),
		accessTokens: store.Table(kv.TableAccessTokens),
		pathTokens:   store.Table(kv.TablePathTokens),
		shares:       store.Table(kv.TableShares),
		logger:       logger,
		hashParams:   DefaultArgon2Params(),
		tokenTTL:     TokenTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
