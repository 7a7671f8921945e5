// Package response models the parsed HTTP/1.1 response: status line,
// headers, the lazily-read body, and the diagnostic fields the TLS and
// keep-alive layers attach.
package response

import (
	"crypto/x509"
	"io"

	"github.com/SoheilMV/MVNet/header"
)

// Response is one parsed HTTP/1.1 response.
type Response struct {
	StatusCode int
	Status     string // reason phrase
	Proto      string // "HTTP/1.1"

	Headers *header.Map

	// SetCookies holds the raw Set-Cookie header values in arrival
	// order, routed to the jar by the caller rather than stored in
	// Headers (spec.md §4.4).
	SetCookies []string

	// MiddleHeaders is a slot for headers of intermediate 3xx responses
	// in a redirect chain. Client.Send does not fill it: it stays nil
	// whether or not Policy.EnableMiddleHeaders is set.
	MiddleHeaders *header.Map

	Body io.ReadCloser

	// Diagnostics
	CipherSuite     uint16
	TLSVersion      uint16
	PeerCertificate *x509.Certificate
	ReconnectCount  int
}

// IsOK reports 2xx status, the shorthand spec.md's end-to-end scenarios
// call is_ok.
func (r *Response) IsOK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// HasRedirect is true iff status is 3xx or a Location/Redirect-Location
// header is present (spec.md §3).
func (r *Response) HasRedirect() bool {
	if r.StatusCode >= 300 && r.StatusCode < 400 {
		return true
	}
	if r.Headers == nil {
		return false
	}
	if r.Headers.Has("Location") {
		return true
	}
	if r.Headers.Has("Redirect-Location") {
		return true
	}
	return false
}

// Location returns the redirect target header, preferring Location.
func (r *Response) Location() (string, bool) {
	if v, ok := r.Headers.Get("Location"); ok {
		return v, true
	}
	return r.Headers.Get("Redirect-Location")
}
