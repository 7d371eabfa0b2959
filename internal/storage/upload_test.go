package storage

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// multipartBody builds a multipart stream with the given name/content pairs.
func multipartBody(t *testing.T, files map[string]string) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return multipart.NewReader(&buf, w.Boundary())
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	n, err := WriteFiles(multipartBody(t, map[string]string{"test.txt": "hello"}), dir, discardLogger())
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("files written = %d, want 1", n)
	}
	b, err := os.ReadFile(filepath.Join(dir, "test.txt"))
	if err != nil {
		t.Fatalf("reading upload: %v", err)
	}
	if string(b) != "hello" {
		t.Errorf("content = %q", b)
	}
}

func TestWriteFilesDecoratesCollisions(t *testing.T) {
	dir := t.TempDir()
	lg := discardLogger()
	for range 3 {
		if _, err := WriteFiles(multipartBody(t, map[string]string{"test.txt": "x"}), dir, lg); err != nil {
			t.Fatalf("WriteFiles: %v", err)
		}
	}
	for _, want := range []string{"test.txt", "test (1).txt", "test (2).txt"} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("missing %s: %v", want, err)
		}
	}
}

func TestWriteFilesSanitizesNames(t *testing.T) {
	dir := t.TempDir()
	n, err := WriteFiles(multipartBody(t, map[string]string{"../../evil.txt": "x"}), dir, discardLogger())
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("files written = %d", n)
	}
	// The separators are stripped, so the file lands inside dir.
	if _, err := os.Stat(filepath.Join(dir, "....evil.txt")); err != nil {
		entries, _ := os.ReadDir(dir)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("sanitized file missing, dir has %v", names)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(dir)), "evil.txt")); err == nil {
		t.Error("upload escaped the target directory")
	}
}

func TestWriteFilesSynthesizesMissingName(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormField("file")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("anonymous")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	n, err := WriteFiles(multipart.NewReader(&buf, w.Boundary()), dir, discardLogger())
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if n != 1 {
		t.Fatalf("files written = %d", n)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() == "" {
		t.Fatalf("unexpected dir contents: %v", entries)
	}
}

// Concurrent uploads of the same name must all survive under distinct
// names with no overwrites.
func TestWriteFilesConcurrentSameName(t *testing.T) {
	dir := t.TempDir()
	lg := discardLogger()
	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = WriteFiles(multipartBody(t, map[string]string{"clash.txt": "x"}), dir, lg)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != workers {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("got %d files, want %d: %v", len(entries), workers, names)
	}
}

type brokenReader struct {
	data []byte
	err  error
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

type brokenWriter struct{ err error }

func (w brokenWriter) Write(p []byte) (int, error) { return 0, w.err }

// A failure reading the client's stream is an upload error; a failure
// writing the temp file keeps its filesystem kind.
func TestCopyPartErrorKinds(t *testing.T) {
	readFail := errors.New("stream broke")
	err := copyPart(io.Discard, &brokenReader{data: []byte("partial"), err: readFail})
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("read failure: got %v, want UploadError", err)
	}
	if !errors.Is(err, readFail) {
		t.Fatalf("read failure lost its cause: %v", err)
	}

	writeFail := errors.New("no space left on device")
	err = copyPart(brokenWriter{err: writeFail}, bytes.NewReader([]byte("payload")))
	if errors.As(err, &uploadErr) {
		t.Fatalf("write failure misreported as UploadError: %v", err)
	}
	if !errors.Is(err, writeFail) {
		t.Fatalf("write failure: got %v", err)
	}
}

// A multipart body that cuts off before its closing boundary fails as an
// upload error, with the temp file cleaned up.
func TestWriteFilesTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "cut.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("the rest never arrives")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-20]

	dir := t.TempDir()
	n, err := WriteFiles(multipart.NewReader(bytes.NewReader(truncated), w.Boundary()), dir, discardLogger())
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("got %v, want UploadError", err)
	}
	if n != 0 {
		t.Errorf("files written = %d", n)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestExclusiveRenameRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from")
	to := filepath.Join(dir, "to")
	if err := os.WriteFile(from, []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(to, []byte("b"), 0o600); err != nil {
		t.Fatal(err)
	}

	err := exclusiveRename(from, to)
	if !os.IsExist(err) {
		t.Fatalf("got %v, want an exists error", err)
	}
	b, _ := os.ReadFile(to)
	if string(b) != "b" {
		t.Errorf("target was overwritten: %q", b)
	}
}

func TestExclusiveRenameMoves(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from")
	to := filepath.Join(dir, "to")
	if err := os.WriteFile(from, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := exclusiveRename(from, to); err != nil {
		t.Fatalf("exclusiveRename: %v", err)
	}
	b, err := os.ReadFile(to)
	if err != nil || string(b) != "payload" {
		t.Fatalf("read target: %q, %v", b, err)
	}
	if _, err := os.Lstat(from); !os.IsNotExist(err) {
		t.Errorf("source still present: %v", err)
	}
}

func TestListFolderHidesTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".upload.abcd1234.part"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := ListFolder(dir)
	if err != nil {
		t.Fatalf("ListFolder: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	byName := map[string]bool{}
	for _, e := range entries {
		byName[e.Name] = e.IsFile
		if e.Name == "visible.txt" && e.Size != 3 {
			t.Errorf("size = %d", e.Size)
		}
	}
	if !byName["visible.txt"] || byName["sub"] {
		t.Errorf("entries = %v", entries)
	}
}

func TestRemovePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := RemovePath(file); err != nil {
		t.Fatalf("RemovePath(file): %v", err)
	}

	sub := filepath.Join(dir, "folder")
	if err := os.MkdirAll(filepath.Join(sub, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := RemovePath(sub); err != nil {
		t.Fatalf("RemovePath(dir): %v", err)
	}
	if err := RemovePath(sub); !os.IsNotExist(err) {
		t.Errorf("missing path: got %v", err)
	}
}
