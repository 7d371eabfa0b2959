// Package validate contains simple input validation helpers.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidUsername is returned for usernames that fail validation.
var ErrInvalidUsername = errors.New("invalid username")

// usernameRe enforces a conservative username pattern. Usernames double as
// store directory names, so anything that could surprise a filesystem is out.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// Username validates a username string for length and allowed characters.
func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return ErrInvalidUsername
	}
	return nil
}

// Filename sanitizes a client-declared filename into a bare base name.
// Path separators and control characters are stripped; the result may be
// empty, in which case the caller should synthesize a name.
func Filename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == 0:
			continue
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	// Reserved names that would resolve to the directory itself.
	if out == "." || out == ".." {
		return ""
	}
	return out
}
