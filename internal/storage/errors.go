// Package storage turns authorization decisions into traversal-safe
// filesystem paths and performs the file operations behind the storage API.
package storage

import "errors"

var (
	// ErrNotAuthorized covers missing, invalid, or out-of-scope credentials.
	ErrNotAuthorized = errors.New("user is not authorized to view this")
	// ErrBadPath covers traversal attempts and malformed move targets.
	ErrBadPath = errors.New("bad path")
	// ErrTokenMissing is returned when a route requires a token and none
	// was presented.
	ErrTokenMissing = errors.New("missing token, please log in and get a token")
)
