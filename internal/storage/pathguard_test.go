package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
)

func testGuard(t *testing.T) *Guard {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "alice", "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "bob"), 0o755); err != nil {
		t.Fatal(err)
	}
	return &Guard{Root: root}
}

func asUser(name string) auth.Authorized {
	return auth.Authorized{Kind: auth.AsUser, Username: name}
}

func TestAuthorizedPathOwnStore(t *testing.T) {
	g := testGuard(t)

	p, err := g.AuthorizedPath(asUser("alice"), "alice", "docs/report.txt")
	if err != nil {
		t.Fatalf("AuthorizedPath: %v", err)
	}
	want := filepath.Join(g.Root, "alice", "docs", "report.txt")
	wantAbs, _ := filepath.Abs(want)
	if p != wantAbs {
		t.Errorf("path = %q, want %q", p, wantAbs)
	}

	// Empty relative path means the store root itself.
	p, err = g.AuthorizedPath(asUser("alice"), "alice", "")
	if err != nil {
		t.Fatalf("AuthorizedPath(root): %v", err)
	}
	rootAbs, _ := filepath.Abs(filepath.Join(g.Root, "alice"))
	if p != rootAbs {
		t.Errorf("store root = %q, want %q", p, rootAbs)
	}
}

func TestAuthorizedPathForeignStore(t *testing.T) {
	g := testGuard(t)
	if _, err := g.AuthorizedPath(asUser("alice"), "bob", "file.txt"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("foreign store: got %v, want ErrNotAuthorized", err)
	}
}

func TestAuthorizedPathDenied(t *testing.T) {
	g := testGuard(t)
	if _, err := g.AuthorizedPath(auth.Authorized{}, "alice", "file.txt"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("denied: got %v, want ErrNotAuthorized", err)
	}
}

// Path-scoped credentials carry their own authorization; the store-match
// rule applies only to user credentials.
func TestAuthorizedPathTokenScope(t *testing.T) {
	g := testGuard(t)
	a := auth.Authorized{Kind: auth.AsPath}
	if _, err := g.AuthorizedPath(a, "alice", "docs"); err != nil {
		t.Errorf("path-scoped access: %v", err)
	}
}

func TestAuthorizedPathTraversal(t *testing.T) {
	g := testGuard(t)
	for _, rel := range []string{
		"../bob/secret.txt",
		"docs/../../bob",
		"../../etc/passwd",
	} {
		if _, err := g.AuthorizedPath(asUser("alice"), "alice", rel); !errors.Is(err, ErrBadPath) {
			t.Errorf("rel %q: got %v, want ErrBadPath", rel, err)
		}
	}
	// Store names never contain separators.
	if _, err := g.AuthorizedPath(auth.Authorized{Kind: auth.AsPath}, "a/b", "x"); !errors.Is(err, ErrBadPath) {
		t.Errorf("store with separator: got %v, want ErrBadPath", err)
	}
}

// Dot segments that stay inside the store are cleaned away, not rejected.
func TestAuthorizedPathInternalDots(t *testing.T) {
	g := testGuard(t)
	p, err := g.AuthorizedPath(asUser("alice"), "alice", "docs/../docs/report.txt")
	if err != nil {
		t.Fatalf("AuthorizedPath: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(g.Root, "alice", "docs", "report.txt"))
	if p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
}

func TestAuthorizedPathSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	g := testGuard(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(g.Root, "alice", "escape")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AuthorizedPath(asUser("alice"), "alice", "escape/file.txt"); !errors.Is(err, ErrBadPath) {
		t.Errorf("symlink traversal: got %v, want ErrBadPath", err)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		store, rel, want string
	}{
		{"alice", "docs/report.txt", "/alice/docs/report.txt"},
		{"alice", "", "/alice"},
		{"alice", "/docs/", "/alice/docs"},
		{"alice", "docs//sub", "/alice/docs/sub"},
	}
	for _, c := range cases {
		if got := NormalizePath(c.store, c.rel); got != c.want {
			t.Errorf("NormalizePath(%q, %q) = %q, want %q", c.store, c.rel, got, c.want)
		}
	}
}

func TestSplitStorePath(t *testing.T) {
	store, rest, ok := SplitStorePath("/alice/docs/report.txt")
	if !ok || store != "alice" || rest != "docs/report.txt" {
		t.Errorf("got %q %q %v", store, rest, ok)
	}
	store, rest, ok = SplitStorePath("/alice")
	if !ok || store != "alice" || rest != "" {
		t.Errorf("got %q %q %v", store, rest, ok)
	}
	if _, _, ok := SplitStorePath("/"); ok {
		t.Error("bare slash should not split")
	}
	if _, _, ok := SplitStorePath(""); ok {
		t.Error("empty path should not split")
	}
}
