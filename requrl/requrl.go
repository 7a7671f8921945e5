// Package requrl models the absolute/relative request URI: authority
// split into host/port, the Host header value (port elided when it is
// the scheme default), and the path+query string the framer writes on
// the request line.
package requrl

import (
	"net/url"
	"strconv"
	"strings"
)

// URL is a thin, comparable wrapper over net/url.URL with the derived
// fields the framer and keep-alive controller need on every send.
type URL struct {
	Raw *url.URL
}

// Parse parses an absolute request URI.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &URL{Raw: u}, nil
}

func (u *URL) Scheme() string { return strings.ToLower(u.Raw.Scheme) }

func (u *URL) Hostname() string { return u.Raw.Hostname() }

// Port returns the explicit port, or the scheme default (80/443) when
// none is given.
func (u *URL) Port() int {
	if p := u.Raw.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if u.Scheme() == "https" {
		return 443
	}
	return 80
}

// IsDefaultPort reports whether Port() equals the scheme's default,
// i.e. whether the Host header must elide it.
func (u *URL) IsDefaultPort() bool {
	explicit := u.Raw.Port()
	if explicit == "" {
		return true
	}
	n, err := strconv.Atoi(explicit)
	if err != nil {
		return true
	}
	if u.Scheme() == "https" {
		return n == 443
	}
	return n == 80
}

// HostHeader computes the Host header value: authority with the port
// elided iff it is the scheme default (invariant I1).
func (u *URL) HostHeader() string {
	host := u.Raw.Hostname()
	if u.IsDefaultPort() {
		return host
	}
	return host + ":" + strconv.Itoa(u.Port())
}

// RequestTarget is the path+query the framer writes on the request line
// for an origin-form request (the common case; absolute-form is used
// only for HTTP-type proxies with absolute_uri_in_start_line set).
func (u *URL) RequestTarget() string {
	p := u.Raw.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.Raw.RawQuery != "" {
		p += "?" + u.Raw.RawQuery
	}
	return p
}

// AbsoluteForm is the full absolute URI, used on the request line when
// talking to an HTTP-type proxy that wants it there.
func (u *URL) AbsoluteForm() string { return u.Raw.String() }

// Origin is the (scheme, host, port) tuple the keep-alive controller
// compares across requests to decide whether a slot can be reused.
type Origin struct {
	Scheme string
	Host   string
	Port   int
}

func (u *URL) Origin() Origin {
	return Origin{Scheme: u.Scheme(), Host: u.Hostname(), Port: u.Port()}
}

// ResolveReference resolves a Location header value (absolute or
// relative) against this URL, per spec.md §4.6 step 3.
func (u *URL) ResolveReference(location string) (*URL, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	return &URL{Raw: u.Raw.ResolveReference(ref)}, nil
}

// SameHost reports whether other has the same hostname as u, the test
// the redirect controller uses to decide whether to strip Host/Origin
// and temporary headers.
func (u *URL) SameHost(other *URL) bool {
	return strings.EqualFold(u.Hostname(), other.Hostname())
}

// IsHTTPFamily reports whether the scheme is http or https — redirects
// to any other scheme are surfaced verbatim per spec.md §4.6 step 2.
func (u *URL) IsHTTPFamily() bool {
	s := u.Scheme()
	return s == "http" || s == "https"
}
