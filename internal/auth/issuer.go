package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
)

// IssueAccessToken mints a login token for username and persists it.
func (s *Service) IssueAccessToken(ctx context.Context, username string) (string, error) {
	token, err := NewToken(tokenBytes)
	if err != nil {
		return "", err
	}
	// A collision at this entropy means the randomness source is broken,
	// which is not something a retry can fix.
	s.assertFresh(ctx, s.accessTokens, token)

	now := s.now()
	rec := model.AccessToken{
		Token:      token,
		Username:   username,
		CreatedAt:  now,
		ValidUntil: now.Add(s.tokenTTL),
	}
	if err := kv.PutJSON(ctx, s.accessTokens, token, rec); err != nil {
		return "", err
	}
	return token, nil
}

// RevokeAccessToken deletes a login token, e.g. at logout.
func (s *Service) RevokeAccessToken(ctx context.Context, token string) error {
	return s.accessTokens.Delete(ctx, token)
}

// IssuePathToken mints a token scoped to exactly one normalized path.
func (s *Service) IssuePathToken(ctx context.Context, path string) (string, error) {
	token, err := NewToken(tokenBytes)
	if err != nil {
		return "", err
	}
	s.assertFresh(ctx, s.pathTokens, token)

	now := s.now()
	rec := model.PathToken{
		Token:      token,
		Path:       path,
		CreatedAt:  now,
		ValidUntil: now.Add(s.tokenTTL),
	}
	if err := kv.PutJSON(ctx, s.pathTokens, token, rec); err != nil {
		return "", err
	}
	return token, nil
}

// IssueShare records an owner-granted share for a path. sharedWith may be
// empty for link-style shares; expiresAt may be nil for no expiry.
func (s *Service) IssueShare(ctx context.Context, path, sharedBy, sharedWith string, expiresAt *time.Time) (model.Share, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Share{}, err
	}
	now := s.now()
	sh := model.Share{
		ID:         id.String(),
		Path:       path,
		SharedBy:   sharedBy,
		SharedWith: sharedWith,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := kv.PutJSON(ctx, s.shares, sh.ID, sh); err != nil {
		return model.Share{}, err
	}
	return sh, nil
}

// GetShare fetches one share by id.
func (s *Service) GetShare(ctx context.Context, id string) (model.Share, bool, error) {
	var sh model.Share
	ok, err := kv.GetJSON(ctx, s.shares, id, &sh)
	return sh, ok, err
}

// ListShares returns shares created by or addressed to username.
func (s *Service) ListShares(ctx context.Context, username string) ([]model.Share, error) {
	var out []model.Share
	err := s.shares.Scan(ctx, func(key string, value []byte) error {
		var sh model.Share
		ok, err := kv.GetJSON(ctx, s.shares, key, &sh)
		if err != nil || !ok {
			return err
		}
		if sh.SharedBy == username || (sh.SharedWith != "" && sh.SharedWith == username) {
			out = append(out, sh)
		}
		return nil
	})
	return out, err
}

// DeleteShare removes a share; only its creator may do so.
func (s *Service) DeleteShare(ctx context.Context, id, username string) error {
	sh, ok, err := s.GetShare(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownShare
	}
	if sh.SharedBy != username {
		return ErrNotShareOwner
	}
	return s.shares.Delete(ctx, id)
}

func (s *Service) assertFresh(ctx context.Context, t kv.Table, token string) {
	_, exists, err := t.Get(ctx, token)
	if err != nil {
		// Persistence failures here are fatal for the request; let the
		// caller's Put hit the same error and propagate it.
		return
	}
	if exists {
		panic(InvariantViolation(fmt.Sprintf("token collision after %d random bytes, randomness source is broken", tokenBytes)))
	}
}
