package content

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

// MultipartField is one field of a multipart/form-data body: either a
// plain value (Filename == "") or a file part with its own inner
// content source.
type MultipartField struct {
	Name     string
	Filename string
	Inner    Source
}

// MultipartSource streams "--boundary\r\nContent-Disposition: ...\r\n\r\n
// <body>\r\n" segments itself rather than buffering the whole body, so
// its precomputed ContentLength must match the stream byte-for-byte
// (design note §9).
type MultipartSource struct {
	fields   []MultipartField
	boundary string
}

// Multipart builds a streaming multipart/form-data source. A random
// boundary is generated the way mime/multipart.Writer does internally.
func Multipart(fields []MultipartField) *MultipartSource {
	w := multipart.NewWriter(io.Discard)
	return &MultipartSource{fields: fields, boundary: w.Boundary()}
}

func (m *MultipartSource) ContentType() string {
	return "multipart/form-data; boundary=" + m.boundary
}

// partHeader emits Content-Disposition followed by Content-Type, the
// same fixed order real mime/multipart.Writer.CreateFormFile output
// uses — deliberately not routed through a map, whose iteration order
// isn't stable.
func (m *MultipartSource) partHeader(f MultipartField) []byte {
	var buf []byte
	buf = append(buf, "--"+m.boundary+"\r\n"...)
	if f.Filename == "" {
		buf = append(buf, fmt.Sprintf(`Content-Disposition: form-data; name="%s"`+"\r\n", escapeQuotes(f.Name))...)
	} else {
		buf = append(buf, fmt.Sprintf(`Content-Disposition: form-data; name="%s"; filename="%s"`+"\r\n",
			escapeQuotes(f.Name), escapeQuotes(f.Filename))...)
		ct := f.Inner.ContentType()
		if ct == "" {
			ct = "application/octet-stream"
		}
		buf = append(buf, "Content-Type: "+ct+"\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	return buf
}

func (m *MultipartSource) ContentLength() int64 {
	var total int64
	for _, f := range m.fields {
		total += int64(len(m.partHeader(f)))
		total += f.Inner.ContentLength()
		total += 2 // trailing CRLF after each part's body
	}
	total += int64(len("--" + m.boundary + "--\r\n"))
	return total
}

func (m *MultipartSource) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, f := range m.fields {
		header := m.partHeader(f)
		n, err := w.Write(header)
		total += int64(n)
		if err != nil {
			return total, err
		}
		n64, err := f.Inner.WriteTo(w)
		total += n64
		if err != nil {
			return total, err
		}
		n, err = w.Write([]byte("\r\n"))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err := w.Write([]byte("--" + m.boundary + "--\r\n"))
	total += int64(n)
	return total, err
}

func (m *MultipartSource) Close() error {
	for _, f := range m.fields {
		if err := f.Inner.Close(); err != nil {
			return err
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
