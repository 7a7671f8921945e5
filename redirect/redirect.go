// Package redirect implements the Location-following controller of
// spec.md §4.6: count-bounded, scheme-aware, with the method-downgrade
// and header-stripping rules a cross-host hop triggers.
package redirect

import (
	"strings"

	mverrors "github.com/SoheilMV/MVNet/errors"
	"github.com/SoheilMV/MVNet/header"
	"github.com/SoheilMV/MVNet/request"
	"github.com/SoheilMV/MVNet/response"
)

// DefaultMaxRedirects matches spec.md §4.6's default hop budget.
const DefaultMaxRedirects = 5

// Outcome is what Follow decided to do with resp.
type Outcome struct {
	// Redirected is false when resp is not a redirect, or is a redirect
	// the caller asked not to follow (AutoRedirect off), or points at a
	// non-HTTP scheme that must be surfaced to the caller as-is.
	Redirected bool

	// Next is the request to resend when Redirected is true.
	Next *request.Request

	// ExternalLocation is set instead of Next when the Location targets
	// a non-http(s) scheme (spec.md §4.6 step 2): the caller gets resp
	// back verbatim with this recorded for inspection.
	ExternalLocation string
}

// Follow inspects resp for a redirect and, if req.Policy.AutoRedirect is
// set and the hop budget allows it, builds the next request per spec.md
// §4.6: absolute/relative Location resolution, method downgrade to GET
// with body dropped on anything but 307/308, and Host/Origin/temporary
// header stripping on a host change.
func Follow(req *request.Request, resp *response.Response, hopsSoFar, maxRedirects int) (Outcome, error) {
	if !resp.HasRedirect() {
		return Outcome{}, nil
	}
	if !req.Policy.AutoRedirect {
		return Outcome{}, nil
	}

	limit := maxRedirects
	if limit <= 0 {
		limit = DefaultMaxRedirects
	}
	if hopsSoFar >= limit {
		return Outcome{}, mverrors.NewProtocolError("too many redirects")
	}

	loc, ok := resp.Location()
	if !ok || strings.TrimSpace(loc) == "" {
		return Outcome{}, nil
	}

	target, err := req.URL.ResolveReference(loc)
	if err != nil {
		return Outcome{}, mverrors.NewProtocolError("invalid redirect location: " + loc)
	}

	if !target.IsHTTPFamily() {
		return Outcome{ExternalLocation: target.AbsoluteForm()}, nil
	}

	next := &request.Request{
		URL:              target,
		Method:           req.Method,
		Proto:            req.Proto,
		Permanent:        req.Permanent.Clone(),
		Temporary:        req.Temporary.Clone(),
		Content:          req.Content,
		Jar:              req.Jar,
		ConnectTimeout:   req.ConnectTimeout,
		ReadWriteTimeout: req.ReadWriteTimeout,
		TLS:              req.TLS,
		Auth:             req.Auth,
		Proxy:            req.Proxy,
		Policy:           req.Policy,
	}

	// Method downgrade: only 307/308 preserve method and body.
	if resp.StatusCode != 307 && resp.StatusCode != 308 {
		next.Method = request.GET
		next.Content = nil
	}

	if !req.URL.SameHost(target) {
		next.Permanent.Del("Host")
		next.Permanent.Del("Origin")
		next.Auth = nil
		if !req.Policy.KeepTemporaryHeadersOnRedirect {
			next.Temporary = header.New()
		}
	}

	return Outcome{Redirected: true, Next: next}, nil
}
