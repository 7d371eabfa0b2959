//go:build unix

package storage

import "os"

// exclusiveRename publishes from at to, failing if to already exists.
//
// Plain rename(2) silently replaces the destination, so instead we create a
// hard link at the destination. link(2) fails atomically with EEXIST when
// the name is taken, which is exactly the create-only semantics uploads
// need. The source link is removed afterwards; both paths must be on the
// same filesystem, which holds because upload temp files are created in the
// destination directory.
func exclusiveRename(from, to string) error {
	if err := os.Link(from, to); err != nil {
		return err
	}
	// The destination is fully published at this point. A failure to drop
	// the temp link leaves an extra name, not a correctness problem.
	_ = os.Remove(from)
	return nil
}
