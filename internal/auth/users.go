package auth

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
	"github.com/bulgur-cloud/bulgur-cloud/internal/validate"
)

// NobodyUser is a decoy account that absorbs login attempts for usernames
// that do not exist. Its password is random and never revealed, so those
// attempts fail after doing the same hashing work as a real mismatch. This
// keeps response timing from leaking which usernames exist.
const NobodyUser = "nobody"

// AddUser validates, hashes, and persists a new account.
func (s *Service) AddUser(ctx context.Context, username, password string, typ model.UserType) (model.User, error) {
	if err := validate.Username(username); err != nil {
		return model.User{}, err
	}
	var existing model.User
	ok, err := kv.GetJSON(ctx, s.users, username, &existing)
	if err != nil {
		return model.User{}, err
	}
	if ok {
		return model.User{}, ErrUserExists
	}

	hash, err := HashPassword(password, s.hashParams)
	if err != nil {
		return model.User{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:           id.String(),
		Username:     username,
		PasswordHash: hash,
		Type:         typ,
	}
	if err := kv.PutJSON(ctx, s.users, username, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetUser fetches one account record.
func (s *Service) GetUser(ctx context.Context, username string) (model.User, bool, error) {
	var u model.User
	ok, err := kv.GetJSON(ctx, s.users, username, &u)
	return u, ok, err
}

// ListUsers returns every account except the decoy.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	err := s.users.Scan(ctx, func(key string, value []byte) error {
		if key == NobodyUser {
			return nil
		}
		var u model.User
		ok, err := kv.GetJSON(ctx, s.users, key, &u)
		if err != nil || !ok {
			return err
		}
		out = append(out, u)
		return nil
	})
	return out, err
}

// RemoveUser deletes an account and cascades to its access tokens and
// shares. Removing the on-disk store is the caller's concern.
func (s *Service) RemoveUser(ctx context.Context, username string) error {
	_, ok, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownUser
	}

	var staleTokens []string
	err = s.accessTokens.Scan(ctx, func(key string, value []byte) error {
		var t model.AccessToken
		ok, err := kv.GetJSON(ctx, s.accessTokens, key, &t)
		if err != nil || !ok {
			return err
		}
		if t.Username == username {
			staleTokens = append(staleTokens, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, tok := range staleTokens {
		if err := s.accessTokens.Delete(ctx, tok); err != nil {
			return err
		}
	}

	var staleShares []string
	err = s.shares.Scan(ctx, func(key string, value []byte) error {
		var sh model.Share
		ok, err := kv.GetJSON(ctx, s.shares, key, &sh)
		if err != nil || !ok {
			return err
		}
		if sh.SharedBy == username || sh.SharedWith == username {
			staleShares = append(staleShares, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range staleShares {
		if err := s.shares.Delete(ctx, id); err != nil {
			return err
		}
	}

	return s.users.Delete(ctx, username)
}

// EnsureNobody provisions the decoy account if it is missing.
func (s *Service) EnsureNobody(ctx context.Context) error {
	_, ok, err := s.GetUser(ctx, NobodyUser)
	if err != nil || ok {
		return err
	}
	secret, err := NewToken(tokenBytes)
	if err != nil {
		return err
	}
	_, err = s.AddUser(ctx, NobodyUser, secret, model.TypeUser)
	return err
}

// VerifyPassword checks a login attempt. Unknown usernames are verified
// against the decoy account so their latency matches a wrong password for
// a real user. A stored record whose username disagrees with its lookup
// key is logged as an integrity problem but reported as a plain failure.
func (s *Service) VerifyPassword(ctx context.Context, username, password string) error {
	var u model.User
	ok, err := kv.GetJSON(ctx, s.users, username, &u)
	if err != nil {
		return err
	}
	if !ok {
		ok, err = kv.GetJSON(ctx, s.users, NobodyUser, &u)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("decoy account is missing: %w", ErrLoginFailed)
		}
	}

	// Always do the hash work before deciding anything, so every failure
	// mode takes the same time.
	match, verr := VerifyHash(password, u.PasswordHash)

	if u.Username != username && u.Username != NobodyUser {
		s.logger.Error("user record integrity failure",
			"expected_user", username, "stored_user", u.Username)
		return ErrLoginFailed
	}
	if verr != nil {
		s.logger.Error("stored password hash is unreadable", "user", username, "error", verr)
		return ErrLoginFailed
	}
	if !match || u.Username == NobodyUser {
		return ErrLoginFailed
	}
	return nil
}
