// Package validate tests cover username and filename sanitization.
package validate

import (
	"errors"
	"testing"
)

// TestUsername checks the allowed username shapes.
func TestUsername(t *testing.T) {
	for _, ok := range []string{"alice", "bob-2", "user.name", "A1_b"} {
		if err := Username(ok); err != nil {
			t.Fatalf("Username(%q) unexpectedly rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"", ".hidden", "-dash", "a b", "über", "a/../b", "nul\x00"} {
		err := Username(bad)
		if err == nil {
			t.Fatalf("Username(%q) unexpectedly accepted", bad)
		}
		if !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("Username(%q) = %v, want ErrInvalidUsername", bad, err)
		}
	}
}

// TestFilename strips separators and control characters.
func TestFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":        "report.pdf",
		"../../etc/passwd":  "....etcpasswd",
		"a/b\\c.txt":        "abc.txt",
		"name\x00\x1f.tar":  "name.tar",
		"  spaced.txt  ":    "spaced.txt",
		"..":                "",
		".":                 "",
		"":                  "",
	}
	for in, want := range cases {
		if got := Filename(in); got != want {
			t.Fatalf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}
