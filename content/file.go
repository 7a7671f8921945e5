package content

import (
	"io"
	"mime"
	"os"
	"path/filepath"
)

// FileSource streams a file's bytes without loading it into memory.
type FileSource struct {
	path string
	f    *os.File
	size int64
	typ  string
}

// File opens path and precomputes its length and a guessed content type
// from the extension, falling back to application/octet-stream.
func File(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	typ := mime.TypeByExtension(filepath.Ext(path))
	if typ == "" {
		typ = "application/octet-stream"
	}
	return &FileSource{path: path, f: f, size: info.Size(), typ: typ}, nil
}

func (s *FileSource) ContentType() string  { return s.typ }
func (s *FileSource) ContentLength() int64 { return s.size }
func (s *FileSource) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, s.f)
}
func (s *FileSource) Close() error { return s.f.Close() }
