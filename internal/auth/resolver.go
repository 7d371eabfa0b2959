package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
)

// ErrUnknownShare and ErrNotShareOwner cover share lookups and deletions.
var (
	ErrUnknownShare  = errors.New("no such share")
	ErrNotShareOwner = errors.New("only the creator of a share can delete it")
)

// Kind is the closed set of authorization outcomes.
type Kind int

const (
	Denied Kind = iota
	// AsUser means a valid access token identified a user.
	AsUser
	// AsPath means a path or share token authorized this specific path.
	AsPath
	// AsBoth means both a user and a path credential checked out.
	AsBoth
)

// Authorized is the merged authorization decision for one request.
type Authorized struct {
	Kind     Kind
	Username string
}

// Allowed reports whether the request may proceed at all.
func (a Authorized) Allowed() bool { return a.Kind != Denied }

// PathScoped reports whether a path-scoped credential was involved.
func (a Authorized) PathScoped() bool { return a.Kind == AsPath || a.Kind == AsBoth }

// Credentials carries whatever tokens the request presented. Empty strings
// mean the credential was absent.
type Credentials struct {
	UserToken  string
	PathToken  string
	ShareToken string
}

// Resolve merges the presented credentials into one decision for the given
// normalized request path. Every credential kind is resolved independently
// with its own store query; an invalid token of one kind never suppresses
// a valid token of another kind.
func (s *Service) Resolve(ctx context.Context, creds Credentials, normalizedPath string) (Authorized, error) {
	username, err := s.resolveUserToken(ctx, creds.UserToken)
	if err != nil {
		return Authorized{}, err
	}

	pathTokenOK, err := s.resolvePathToken(ctx, creds.PathToken, normalizedPath)
	if err != nil {
		return Authorized{}, err
	}
	shareOK, err := s.resolveShareToken(ctx, creds.ShareToken, normalizedPath)
	if err != nil {
		return Authorized{}, err
	}
	pathOK := pathTokenOK || shareOK

	switch {
	case username != "" && pathOK:
		return Authorized{Kind: AsBoth, Username: username}, nil
	case username != "":
		return Authorized{Kind: AsUser, Username: username}, nil
	case pathOK:
		return Authorized{Kind: AsPath}, nil
	default:
		return Authorized{Kind: Denied}, nil
	}
}

func (s *Service) resolveUserToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	var rec model.AccessToken
	ok, err := kv.GetJSON(ctx, s.accessTokens, token, &rec)
	if err != nil {
		return "", err
	}
	if !ok || rec.Expired(s.now()) {
		return "", nil
	}
	return rec.Username, nil
}

func (s *Service) resolvePathToken(ctx context.Context, token, normalizedPath string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var rec model.PathToken
	ok, err := kv.GetJSON(ctx, s.pathTokens, token, &rec)
	if err != nil {
		return false, err
	}
	if !ok || rec.Expired(s.now()) {
		return false, nil
	}
	// Exact match on the normalized path, never a raw prefix comparison:
	// a token for /alice/photos must not cover /alice/photos-leak.
	return rec.Path == normalizedPath, nil
}

// resolveShareToken checks a share id against the request path. Shares are
// the explicit subtree grant: sharing a folder covers everything under it,
// compared segment-wise so sibling names with a shared prefix don't match.
func (s *Service) resolveShareToken(ctx context.Context, token, normalizedPath string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var sh model.Share
	ok, err := kv.GetJSON(ctx, s.shares, token, &sh)
	if err != nil {
		return false, err
	}
	if !ok || sh.Expired(s.now()) {
		return false, nil
	}
	return pathWithin(sh.Path, normalizedPath), nil
}

// pathWithin reports whether candidate equals base or sits inside its
// subtree. Both inputs must already be normalized absolute paths.
func pathWithin(base, candidate string) bool {
	if base == candidate {
		return true
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return strings.HasPrefix(candidate, base)
}
