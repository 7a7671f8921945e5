package wire

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SoheilMV/MVNet/header"
	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/proxy"
	"github.com/SoheilMV/MVNet/requrl"
)

// WriteOptions carries everything WriteRequest needs beyond the request
// itself: the resolved proxy identity (for Proxy-Connection/-Authorization
// and absolute-form target selection), origin credentials, cookie header
// lines already formatted by the jar, and the tuning knobs spec.md §4.3
// names.
type WriteOptions struct {
	ProxyVariant           proxy.Variant
	ProxyAbsoluteURI       bool
	ProxyUsername          string
	ProxyPassword          string
	OriginUsername         string
	OriginPassword         string
	KeepAlive              bool
	AcceptEncodingEnabled  bool
	AcceptEncoding         string // default "gzip,deflate"
	Locale                 string // e.g. "en-US"; "" disables Accept-Language
	Charset                string // e.g. "utf-8"; "" disables Accept-Charset
	CookieHeaders          []string
	SendBufferSize         int // chunk size for body writes; default 32KiB
	OnUploadProgress       func(sent, total int64)
}

// bodyChunkSize is the fallback when WriteOptions.SendBufferSize is unset.
const bodyChunkSize = 32 * 1024

// baseHeaders computes the framer-owned header set in the exact
// assembly order of spec.md §4.3 steps 1-8, before the permanent and
// temporary maps are overlaid.
func baseHeaders(u *requrl.URL, method string, contentType string, contentLength int64, hasBody bool, opt WriteOptions) *header.Map {
	h := header.New()

	// 1. Host
	h.Set("Host", u.HostHeader())

	// 2. Proxy-Connection / Connection
	connValue := "close"
	if opt.KeepAlive {
		connValue = "keep-alive"
	}
	if opt.ProxyVariant.IsHTTPType() {
		h.Set("Proxy-Connection", connValue)
	} else {
		h.Set("Connection", connValue)
	}

	// 3. Proxy-Authorization
	if opt.ProxyVariant.IsHTTPType() && (opt.ProxyUsername != "" || opt.ProxyPassword != "") {
		h.Set("Proxy-Authorization", basicAuth(opt.ProxyUsername, opt.ProxyPassword))
	}

	// 4. Authorization
	if opt.OriginUsername != "" || opt.OriginPassword != "" {
		h.Set("Authorization", basicAuth(opt.OriginUsername, opt.OriginPassword))
	}

	// 5. Accept-Encoding
	if opt.AcceptEncodingEnabled {
		enc := opt.AcceptEncoding
		if enc == "" {
			enc = "gzip,deflate"
		}
		h.Set("Accept-Encoding", enc)
	}

	// 6. Accept-Language
	if opt.Locale != "" {
		h.Set("Accept-Language", formatAcceptLanguage(opt.Locale))
	}

	// 7. Accept-Charset
	if opt.Charset != "" {
		h.Set("Accept-Charset", formatAcceptCharset(opt.Charset))
	}

	// 8. Content-Type / Content-Length for bodyful methods with content
	if hasBody {
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		h.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	}

	return h
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// formatAcceptLanguage implements spec.md §4.3 step 6: "en*" passes
// through as-is, anything else expands to a weighted fallback chain
// ending in English.
func formatAcceptLanguage(locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return locale
	}
	parts := strings.SplitN(locale, "-", 2)
	lang := parts[0]
	if len(parts) == 2 {
		return fmt.Sprintf("%s,%s;q=0.8,en-US;q=0.6,en;q=0.4", locale, lang)
	}
	return fmt.Sprintf("%s;q=0.8,en-US;q=0.6,en;q=0.4", lang)
}

// formatAcceptCharset implements spec.md §4.3 step 7.
func formatAcceptCharset(charset string) string {
	if strings.EqualFold(charset, "utf-8") {
		return "utf-8;q=0.7,*;q=0.3"
	}
	return charset + ",utf-8;q=0.7,*;q=0.3"
}

// WriteRequest serializes the request line and assembled headers, then
// drains the content source in SendBufferSize chunks, in the strict wire
// order spec.md §5 fixes: start line, headers, body.
func WriteRequest(w io.Writer, u *requrl.URL, method, proto string, permanent, temporary *header.Map,
	contentType string, contentLength int64, hasBody bool, bodyWriter func(io.Writer) (int64, error),
	opt WriteOptions) (int64, error) {

	var written int64

	target := u.RequestTarget()
	if opt.ProxyVariant.IsHTTPType() && opt.ProxyAbsoluteURI {
		target = u.AbsoluteForm()
	}

	requestLine := fmt.Sprintf("%s %s HTTP/%s\r\n", method, target, protoVersion(proto))
	n, err := io.WriteString(w, requestLine)
	written += int64(n)
	if err != nil {
		return written, mverrors.NewSendFailure("failed writing request line", err)
	}

	h := baseHeaders(u, method, contentType, contentLength, hasBody, opt)
	h.Overlay(permanent)
	h.Overlay(temporary)
	callerSetCookie := h.Has("Cookie")

	for _, k := range h.Keys() {
		v, _ := h.Get(k)
		n, err := io.WriteString(w, k+": "+v+"\r\n")
		written += int64(n)
		if err != nil {
			return written, mverrors.NewSendFailure("failed writing header", err)
		}
	}

	// Cookie header(s) from the jar: skipped entirely if the caller
	// already set Cookie directly (spec.md §4.3 "Cookies"). One or more
	// lines depending on cookie_single_header; header.Map only keeps one
	// value per key so these are written as raw lines instead.
	if !callerSetCookie {
		for _, ck := range opt.CookieHeaders {
			n, err := io.WriteString(w, "Cookie: "+ck+"\r\n")
			written += int64(n)
			if err != nil {
				return written, mverrors.NewSendFailure("failed writing cookie header", err)
			}
		}
	}

	n, err = io.WriteString(w, "\r\n")
	written += int64(n)
	if err != nil {
		return written, mverrors.NewSendFailure("failed writing header terminator", err)
	}

	if hasBody && contentLength > 0 && bodyWriter != nil {
		bn, err := bodyWriter(w)
		written += bn
		if err != nil {
			return written, mverrors.NewSendFailure("failed writing request body", err)
		}
	}

	return written, nil
}

func protoVersion(proto string) string {
	if proto == "" {
		return "1.1"
	}
	return strings.TrimPrefix(strings.ToUpper(proto), "HTTP/")
}

// ProgressWriter drives a Source's WriteTo through fixed-size chunks and
// emits an upload-progress tick after each socket write, per spec.md
// §4.3's "Body" paragraph and §6's callback contract.
type ProgressWriter struct {
	W         io.Writer
	Total     int64
	ChunkSize int
	OnProgress func(sent, total int64)

	sent int64
}

func (p *ProgressWriter) Write(b []byte) (int, error) {
	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = bodyChunkSize
	}
	total := 0
	for len(b) > 0 {
		n := len(b)
		if n > chunk {
			n = chunk
		}
		wn, err := p.W.Write(b[:n])
		total += wn
		p.sent += int64(wn)
		if p.OnProgress != nil {
			p.OnProgress(p.sent, p.Total)
		}
		if err != nil {
			return total, err
		}
		b = b[n:]
	}
	return total, nil
}
