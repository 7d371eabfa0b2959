//go:build windows

package storage

import (
	"os"

	"golang.org/x/sys/windows"
)

// exclusiveRename publishes from at to, failing if to already exists.
//
// MoveFileEx without MOVEFILE_REPLACE_EXISTING is a native exclusive move:
// it fails with ERROR_ALREADY_EXISTS when the destination name is taken and
// never leaves the destination half-written.
func exclusiveRename(from, to string) error {
	fromp, err := windows.UTF16PtrFromString(from)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: err}
	}
	top, err := windows.UTF16PtrFromString(to)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: err}
	}
	if err := windows.MoveFileEx(fromp, top, 0); err != nil {
		return &os.LinkError{Op: "rename", Old: from, New: to, Err: err}
	}
	return nil
}
