// Package request models one outbound HTTP call: target URL, method,
// header maps (permanent vs. temporary), an optional content source,
// the jar it binds to, and the per-request policy flags spec.md §3
// names.
package request

import (
	"time"

	"github.com/SoheilMV/MVNet/content"
	"github.com/SoheilMV/MVNet/cookiejar"
	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/header"
	"github.com/SoheilMV/MVNet/proxy"
	"github.com/SoheilMV/MVNet/requrl"
	"github.com/SoheilMV/MVNet/tlsupgrade"
)

func errReserved(key string) error {
	return mverrors.NewInvalidInput("header " + key + " is managed by the framer")
}

type Method string

const (
	GET     Method = "GET"
	HEAD    Method = "HEAD"
	POST    Method = "POST"
	PUT     Method = "PUT"
	PATCH   Method = "PATCH"
	DELETE  Method = "DELETE"
	OPTIONS Method = "OPTIONS"
)

// bodyfulMethods admits a request body per spec.md §4.3 step 8.
var bodyfulMethods = map[Method]bool{POST: true, PUT: true, PATCH: true, DELETE: true}

func (m Method) AdmitsBody() bool { return bodyfulMethods[m] }

// reservedHeaders are managed by the framer and rejected if a caller
// tries to set them directly (spec.md §3 invariant).
var reservedHeaders = map[string]bool{
	"host": true, "content-length": true, "content-type": true,
	"connection": true, "proxy-connection": true, "accept-encoding": true,
}

func IsReserved(key string) bool {
	return reservedHeaders[toLower(key)]
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Auth is a Basic-auth credential pair.
type Auth struct {
	Username string
	Password string
}

// Policy carries the boolean flags spec.md §3 lists.
type Policy struct {
	AutoRedirect                   bool
	IgnoreProtocolErrors           bool
	UseCookies                     bool
	EnableMiddleHeaders            bool
	CookieSingleHeader             bool
	AllowEmptyHeaderValues         bool
	KeepTemporaryHeadersOnRedirect bool
}

// DefaultPolicy matches the façade's out-of-the-box behavior.
func DefaultPolicy() Policy {
	return Policy{
		AutoRedirect:       true,
		UseCookies:         true,
		CookieSingleHeader: true,
	}
}

// Request is one HTTP call. Permanent headers persist across redirects
// to the same host; Temporary headers are erased once Client.Send
// returns. Within that Send, a same-host redirect hop carries them and a
// cross-host hop drops them unless KeepTemporaryHeadersOnRedirect is set.
type Request struct {
	URL     *requrl.URL
	Method  Method
	Proto   string // default "HTTP/1.1"

	Permanent *header.Map
	Temporary *header.Map

	Content content.Source // optional; owned by the request, dropped after send

	Jar *cookiejar.Jar // optional; may be shared across requests

	ConnectTimeout   time.Duration
	ReadWriteTimeout time.Duration

	TLS   tlsupgrade.Config
	Auth  *Auth // origin credentials
	Proxy *proxy.Config // per-request override; nil defers to client default

	Policy Policy
}

// New builds a Request with sane defaults: HTTP/1.1, empty header maps,
// DefaultPolicy.
func New(method Method, rawURL string) (*Request, error) {
	u, err := requrl.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &Request{
		URL:       u,
		Method:    method,
		Proto:     "HTTP/1.1",
		Permanent: header.New(),
		Temporary: header.New(),
		Policy:    DefaultPolicy(),
	}, nil
}

// SetHeader sets a permanent header, rejecting reserved keys.
func (r *Request) SetHeader(key, value string) error {
	if IsReserved(key) {
		return errReserved(key)
	}
	r.Permanent.Set(key, value)
	return nil
}

// SetTemporaryHeader sets a header erased after one send. A same-host
// redirect hop keeps it; a cross-host hop drops it unless
// Policy.KeepTemporaryHeadersOnRedirect is set.
func (r *Request) SetTemporaryHeader(key, value string) error {
	if IsReserved(key) {
		return errReserved(key)
	}
	r.Temporary.Set(key, value)
	return nil
}

// Close releases the content source, if any. Safe to call more than
// once and on a nil Content.
func (r *Request) Close() error {
	if r.Content == nil {
		return nil
	}
	err := r.Content.Close()
	r.Content = nil
	return err
}
