package content

import "io"

// BytesSource is the simplest content source: an in-memory byte slice.
type BytesSource struct {
	nopCloser
	Data []byte
	Type string
}

func Bytes(data []byte, contentType string) *BytesSource {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &BytesSource{Data: data, Type: contentType}
}

func (b *BytesSource) ContentType() string     { return b.Type }
func (b *BytesSource) ContentLength() int64    { return int64(len(b.Data)) }
func (b *BytesSource) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Data)
	return int64(n), err
}

// StringSource is a byte source backed by a string, for plain-text
// bodies where an extra copy into []byte isn't worth asking the caller
// to do themselves.
type StringSource struct {
	nopCloser
	Data string
	Type string
}

func String(data, contentType string) *StringSource {
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	return &StringSource{Data: data, Type: contentType}
}

func (s *StringSource) ContentType() string  { return s.Type }
func (s *StringSource) ContentLength() int64 { return int64(len(s.Data)) }
func (s *StringSource) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.Data)
	return int64(n), err
}
