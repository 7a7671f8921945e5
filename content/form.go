package content

import (
	"io"
	"net/url"
)

// FormSource is a url-encoded form body ("application/x-www-form-urlencoded").
type FormSource struct {
	nopCloser
	encoded string
}

func Form(values url.Values) *FormSource {
	return &FormSource{encoded: values.Encode()}
}

func (f *FormSource) ContentType() string  { return "application/x-www-form-urlencoded" }
func (f *FormSource) ContentLength() int64 { return int64(len(f.encoded)) }
func (f *FormSource) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, f.encoded)
	return int64(n), err
}
