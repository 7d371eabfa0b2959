package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/validate"
)

// maxRenameAttempts bounds name-collision retries. Without a bound an
// attacker could pre-create files and turn collisions into unbounded work.
const maxRenameAttempts = 100

// UploadError marks a malformed multipart stream, as opposed to a
// filesystem failure.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "file upload error: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// WriteFiles streams every part of a multipart upload into dir. Each part
// is written to a hidden temp file first and then published atomically
// under a collision-free name, so a final name either doesn't exist or is
// fully written, and concurrent uploads never overwrite each other.
//
// Parts are independent: a failure on one part does not roll back parts
// already published. The returned count is the number of parts actually
// published, alongside the error for the failing part if any.
func WriteFiles(r *multipart.Reader, dir string, logger *slog.Logger) (int, error) {
	written := 0
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, &UploadError{Err: err}
		}

		name, err := writePart(part, dir, logger)
		_ = part.Close()
		if err != nil {
			return written, err
		}
		written++
		logger.Debug("upload published", "dir", dir, "name", name)
	}
}

// writePart stores one part and returns the final published name.
func writePart(part *multipart.Part, dir string, logger *slog.Logger) (string, error) {
	name := validate.Filename(part.FileName())
	if name == "" {
		// No usable declared name; synthesize one.
		name = randomName()
	}

	// The temp file lives in the destination directory so the publish step
	// is a same-filesystem rename. The random suffix keeps simultaneous
	// uploads of the same name from colliding on their temp paths.
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.part", name, randomSuffix()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}

	published := false
	defer func() {
		if !published {
			_ = os.Remove(tmp)
		}
	}()

	if err := copyPart(f, part); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	finalName, err := publish(tmp, dir, name)
	if err != nil {
		return "", err
	}
	published = true
	return finalName, nil
}

// copyPart streams the part body into dst. A read failure means the
// client's multipart stream broke and is tagged UploadError; a write
// failure is a local filesystem problem and keeps its kind, so the
// request boundary maps it to a server error instead of blaming the
// client.
func copyPart(dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return &UploadError{Err: rerr}
		}
	}
}

// publish moves tmp to its final name, decorating with " (N)" before the
// extension while the undecorated name is taken. After maxRenameAttempts a
// final attempt uses a random suffix which for practical purposes cannot
// collide.
func publish(tmp, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		err := exclusiveRename(tmp, filepath.Join(dir, candidate))
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		switch {
		case i < maxRenameAttempts:
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		case i == maxRenameAttempts:
			candidate = fmt.Sprintf("%s (%s)%s", base, randomSuffix(), ext)
		default:
			return "", fmt.Errorf("giving up publishing %q after %d attempts: %w", name, i, os.ErrExist)
		}
	}
}

func randomName() string {
	id, err := uuid.NewV4()
	if err != nil {
		// crypto/rand failing is a process-level problem, same class as a
		// token collision.
		panic(auth.InvariantViolation("randomness source is broken: " + err.Error()))
	}
	return id.String()
}

func randomSuffix() string {
	return randomName()[:8]
}
