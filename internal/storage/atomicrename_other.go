//go:build !unix && !windows

package storage

import (
	"errors"
	"runtime"
)

// Platforms without an exclusive rename primitive must fail loudly rather
// than degrade to a copy that could clobber concurrent uploads.
func exclusiveRename(from, to string) error {
	return errors.New("exclusive rename is not supported on " + runtime.GOOS)
}
