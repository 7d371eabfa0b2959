package storage

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
)

// Guard maps (authorization decision, store, relative path) to an absolute
// filesystem path under the storage root, or refuses.
type Guard struct {
	// Root is the storage root; each store is a directory directly below it.
	Root string
}

// NormalizePath is the canonical form of a request path used for path-token
// and share matching: "/store/rest", cleaned of dot segments.
func NormalizePath(store, rel string) string {
	return path.Clean("/" + store + "/" + strings.Trim(rel, "/"))
}

// AuthorizedPath authorizes and resolves a request path.
//
// A user credential only reaches their own store; path-scoped credentials
// carry their own authorization, so the store-match rule does not apply to
// them. The returned path is verified to stay inside the store after
// filesystem-level normalization, including symlink components.
func (g *Guard) AuthorizedPath(a auth.Authorized, store, rel string) (string, error) {
	if !a.Allowed() {
		return "", ErrNotAuthorized
	}
	if a.Kind == auth.AsUser && a.Username != store {
		return "", ErrNotAuthorized
	}
	if store == "" || strings.ContainsAny(store, "/\\") {
		return "", ErrBadPath
	}

	storeRoot, err := filepath.Abs(filepath.Join(g.Root, store))
	if err != nil {
		return "", err
	}
	storeRoot = filepath.Clean(storeRoot)
	if rel == "" {
		return storeRoot, nil
	}
	return resolveWithinRoot(storeRoot, rel)
}

// StorePath returns the root directory of a store without authorization,
// for administrative tasks like creating or deleting a user's store.
func (g *Guard) StorePath(store string) string {
	return filepath.Join(g.Root, store)
}

// resolveWithinRoot maps a user-provided path to a local filesystem path
// under root. It rejects any traversal outside root, including via existing
// symlinks. The check runs on the joined, cleaned path rather than the raw
// string so encoded or relative segments cannot slip through.
func resolveWithinRoot(rootAbs, userPath string) (string, error) {
	// Force relative paths.
	p := strings.TrimLeft(userPath, "/\\")
	localRel := filepath.FromSlash(p)
	joined := filepath.Join(rootAbs, localRel)
	joined = filepath.Clean(joined)

	if !isWithin(rootAbs, joined) {
		return "", ErrBadPath
	}

	// Deny symlink traversal: if any existing component under root is a
	// symlink, reject.
	if hasSymlinkComponent(rootAbs, joined) {
		return "", ErrBadPath
	}

	// If any existing segment resolves to outside root, block it.
	existing := nearestExisting(joined)
	if existing != "" {
		resolved, err := filepath.EvalSymlinks(existing)
		if err != nil {
			return "", err
		}
		resolved = filepath.Clean(resolved)
		if !isWithin(rootAbs, resolved) {
			return "", ErrBadPath
		}
	}

	return joined, nil
}

func hasSymlinkComponent(rootAbs, fullPath string) bool {
	rel, err := filepath.Rel(rootAbs, fullPath)
	if err != nil {
		return true
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return false
	}
	cur := rootAbs
	for _, p := range strings.Split(rel, string(filepath.Separator)) {
		if p == "" || p == "." {
			continue
		}
		cur = filepath.Join(cur, p)
		st, err := os.Lstat(cur)
		if err != nil {
			// Component doesn't exist (yet): no symlink to traverse.
			return false
		}
		if st.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}

func nearestExisting(p string) string {
	cur := p
	for {
		_, err := os.Lstat(cur)
		if err == nil {
			return cur
		}
		if !os.IsNotExist(err) {
			return ""
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
