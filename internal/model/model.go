// Package model defines the persisted entities shared across the server.
package model

import "time"

// UserType distinguishes regular accounts from administrators.
type UserType string

const (
	TypeUser  UserType = "user"
	TypeAdmin UserType = "admin"
)

// ParseUserType normalizes a user type string.
func ParseUserType(s string) (UserType, bool) {
	switch UserType(s) {
	case TypeUser:
		return TypeUser, true
	case TypeAdmin:
		return TypeAdmin, true
	default:
		return "", false
	}
}

// User is an account record. PasswordHash is a self-describing PHC string
// that encodes the algorithm, parameters, and salt.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Type         UserType `json:"user_type"`
}

// AccessToken maps an opaque login token to a username.
type AccessToken struct {
	Token      string    `json:"token"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// Expired reports whether the token is past its validity window.
func (t AccessToken) Expired(now time.Time) bool {
	return now.After(t.ValidUntil)
}

// PathToken grants access to exactly one normalized, store-scoped path.
type PathToken struct {
	Token      string    `json:"token"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// Expired reports whether the token is past its validity window.
func (t PathToken) Expired(now time.Time) bool {
	return now.After(t.ValidUntil)
}

// Share is an owner-granted access record for a path. SharedWith is empty
// for link-style shares that anyone holding the id may use.
type Share struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	SharedBy   string     `json:"shared_by"`
	SharedWith string     `json:"shared_with,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether an optional expiry has passed.
func (s Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// FolderEntry is the listing projection for one directory member.
type FolderEntry struct {
	IsFile bool   `json:"is_file"`
	Name   string `json:"name"`
	Size   uint64 `json:"size"`
}
