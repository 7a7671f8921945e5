// Package client is the engine façade: Send resolves a proxy, acquires
// or dials a connection slot, frames the request, reads the response,
// feeds the cookie jar, and follows redirects — the orchestration
// spec.md §1 calls the "client" component.
package client

import (
	"context"
	"io"
	"time"

	"github.com/SoheilMV/MVNet/header"
	"github.com/SoheilMV/MVNet/keepalive"
	"github.com/SoheilMV/MVNet/proxy"
	"github.com/SoheilMV/MVNet/redirect"
	"github.com/SoheilMV/MVNet/request"
	"github.com/SoheilMV/MVNet/requrl"
	"github.com/SoheilMV/MVNet/response"
	"github.com/SoheilMV/MVNet/tlsupgrade"
	"github.com/SoheilMV/MVNet/wire"
)

// Client holds the cross-request defaults: the default proxy (none, by
// default), the shared keep-alive pool, and the tuning knobs a Request
// doesn't override.
type Client struct {
	Proxy proxy.Config
	TLS   tlsupgrade.Config

	ConnectTimeout   time.Duration
	ReadWriteTimeout time.Duration
	MaxRedirects     int
	SendBufferSize   int

	AcceptEncodingEnabled bool
	AcceptEncoding        string
	Locale                string
	Charset               string

	pool *keepalive.Controller
}

// New builds a Client with spec.md §4's default tuning: 10s connect
// timeout, 30s read/write timeout, 5 redirects, gzip/deflate accepted.
func New() *Client {
	return &Client{
		ConnectTimeout:        10 * time.Second,
		ReadWriteTimeout:      30 * time.Second,
		MaxRedirects:          redirect.DefaultMaxRedirects,
		AcceptEncodingEnabled: true,
		pool:                  keepalive.NewController(),
	}
}

// Send drives one logical call through to completion, including any
// redirects req.Policy.AutoRedirect allows. The caller owns closing the
// returned Response.Body; each hop's request content is closed as it is
// consumed or superseded.
func (c *Client) Send(ctx context.Context, req *request.Request) (*response.Response, error) {
	// Temporary headers last for this one Send, redirect hops included.
	defer func() { req.Temporary = header.New() }()

	current := req
	hops := 0

	for {
		resp, err := c.sendOnce(ctx, current)
		if err != nil {
			current.Close()
			return nil, err
		}

		if current.Jar != nil && current.Policy.UseCookies {
			for _, raw := range resp.SetCookies {
				current.Jar.SetFromHeader(current.URL.Raw, raw)
			}
		}

		outcome, err := redirect.Follow(current, resp, hops, c.MaxRedirects)
		// Only close this hop's content if the next hop isn't reusing the
		// same source (307/308 resend carries it forward verbatim).
		if outcome.Next == nil || outcome.Next.Content != current.Content {
			current.Close()
		}
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		if !outcome.Redirected {
			return resp, nil
		}

		resp.Body.Close()
		current = outcome.Next
		hops++
	}
}

// sendOnce performs exactly one request/response round trip, including
// the silent one-shot reconnect a reused slot may need.
func (c *Client) sendOnce(ctx context.Context, req *request.Request) (*response.Response, error) {
	cfg := c.Proxy
	if req.Proxy != nil {
		cfg = *req.Proxy
	}
	dialer := proxy.NewDialer(cfg)
	identity := dialer.Identity()
	origin := req.URL.Origin()

	connectTimeout := c.ConnectTimeout
	if req.ConnectTimeout > 0 {
		connectTimeout = req.ConnectTimeout
	}
	rwTimeout := c.ReadWriteTimeout
	if req.ReadWriteTimeout > 0 {
		rwTimeout = req.ReadWriteTimeout
	}

	dial := func(ctx context.Context, identity proxy.Identity, origin requrl.Origin) (*keepalive.Slot, error) {
		raw, err := dialer.Dial(ctx, origin.Host, origin.Port, connectTimeout, rwTimeout)
		if err != nil {
			return nil, err
		}
		s := raw
		isTLS := origin.Scheme == "https"
		var tlsResult *tlsupgrade.Result
		if isTLS {
			tlsCfg := c.TLS
			if req.TLS.HandshakeTimeout != 0 || req.TLS.CertValidator != nil || req.TLS.InsecureSkipVerify {
				tlsCfg = req.TLS
			}
			upgraded, result, err := keepalive.UpgradeToTLS(raw, origin.Host, tlsCfg)
			if err != nil {
				return nil, err
			}
			s, tlsResult = upgraded, result
		}
		return &keepalive.Slot{Stream: s, TLS: isTLS, TLSResult: tlsResult, ProxyIdentity: identity, Origin: origin}, nil
	}

	var resp *response.Response

	slot, attempts, err := c.pool.AcquireAndValidate(ctx, identity, origin, dial, func(slot *keepalive.Slot) error {
		r, err := c.roundTrip(slot, req, cfg, rwTimeout)
		if err != nil {
			return err
		}
		if slot.TLSResult != nil {
			r.CipherSuite = slot.TLSResult.CipherSuite
			r.TLSVersion = slot.TLSResult.Version
			r.PeerCertificate = slot.TLSResult.PeerCertificate
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	slot.LastUsed = time.Now()
	slot.RequestCount++
	// attempts already excludes the uncounted silent reconnect — it only
	// reflects the fail-reconnect budget spec.md §4.7 bounds.
	resp.ReconnectCount = attempts

	// The slot can only go back in the pool once its body has been read
	// to completion — the pool decision is made in Body.Close, not here,
	// since the caller reads the body lazily after Send returns.
	wantsClose := wire.WantsClose(resp.Headers)
	innerBody := resp.Body
	resp.Body = newPooledBody(innerBody, func() {
		c.pool.Return(slot, wantsClose || !wire.BodyDrained(innerBody))
	})

	return resp, nil
}

// roundTrip writes req and reads the response over an already-connected
// slot: the part of sendOnce the silent-reconnect retry re-runs.
func (c *Client) roundTrip(slot *keepalive.Slot, req *request.Request, cfg proxy.Config, rwTimeout time.Duration) (*response.Response, error) {
	var cookieHeaders []string
	if req.Jar != nil && req.Policy.UseCookies {
		cookies := req.Jar.Match(req.URL.Raw)
		cookieHeaders = req.Jar.FormatHeader(cookies)
	}

	wopt := wire.WriteOptions{
		ProxyVariant:          cfg.Variant,
		ProxyAbsoluteURI:      cfg.AbsoluteURIInStartLine,
		ProxyUsername:         cfg.Identity.Username,
		ProxyPassword:         cfg.Identity.Password,
		KeepAlive:             true,
		AcceptEncodingEnabled: c.AcceptEncodingEnabled,
		AcceptEncoding:        c.AcceptEncoding,
		Locale:                c.Locale,
		Charset:               c.Charset,
		CookieHeaders:         cookieHeaders,
		SendBufferSize:        c.SendBufferSize,
	}
	if req.Auth != nil {
		wopt.OriginUsername = req.Auth.Username
		wopt.OriginPassword = req.Auth.Password
	}

	var contentType string
	var contentLength int64
	hasBody := req.Content != nil && req.Method.AdmitsBody()
	if hasBody {
		contentType = req.Content.ContentType()
		contentLength = req.Content.ContentLength()
	}

	var bodyWriter func(io.Writer) (int64, error)
	if hasBody {
		content := req.Content
		bodyWriter = func(w io.Writer) (int64, error) {
			pw := &wire.ProgressWriter{W: w, Total: contentLength, ChunkSize: c.SendBufferSize}
			return content.WriteTo(pw)
		}
	}

	if _, err := wire.WriteRequest(streamWriter{slot.Stream}, req.URL, string(req.Method), req.Proto,
		req.Permanent, req.Temporary, contentType, contentLength, hasBody, bodyWriter, wopt); err != nil {
		return nil, err
	}

	return wire.ReadResponse(slot.Stream, string(req.Method), rwTimeout)
}

// streamWriter adapts a wire.Stream to io.Writer for WriteRequest.
type streamWriter struct {
	s wire.Stream
}

func (w streamWriter) Write(b []byte) (int, error) { return w.s.Write(b) }

// pooledBody defers the slot's pool-return decision until the caller
// closes the response body, and is safe to Close more than once.
type pooledBody struct {
	io.ReadCloser
	onClose func()
	closed  *bool
}

func newPooledBody(inner io.ReadCloser, onClose func()) pooledBody {
	closed := false
	return pooledBody{ReadCloser: inner, onClose: onClose, closed: &closed}
}

func (p pooledBody) Close() error {
	err := p.ReadCloser.Close()
	if !*p.closed {
		*p.closed = true
		p.onClose()
	}
	return err
}
