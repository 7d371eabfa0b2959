package storage

import (
	"os"
	"strings"

	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
)

// ListFolder returns the listing projection for a directory. In-progress
// upload temp files are hidden from listings.
func ListFolder(dir string) ([]model.FolderEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]model.FolderEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".part") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, model.FolderEntry{
			IsFile: !e.IsDir(),
			Name:   name,
			Size:   uint64(info.Size()),
		})
	}
	return out, nil
}

// RemovePath deletes a file, or a folder with everything under it.
func RemovePath(p string) error {
	st, err := os.Stat(p)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}

// SplitStorePath splits a "/store/rest/of/path" string into its store and
// the remainder. Empty segments are dropped; a missing store is an error
// for the caller to map to a bad-path failure.
func SplitStorePath(p string) (store, rest string, ok bool) {
	segments := []string{}
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return "", "", false
	}
	return segments[0], strings.Join(segments[1:], "/"), true
}
