package cookiejar

import (
	"net/url"
	"strings"
	"sync"
	"time"

	mverrors "github.com/SoheilMV/MVNet/errors"
)

// Options are the jar-wide policy flags spec.md §3/§4.5 names.
type Options struct {
	// EscapeValuesOnReceive URL-escapes a cookie's value as it is
	// stored; UnescapeValuesOnSend reverses that on the way back out.
	// The two flags are independent: setting one does not set the other,
	// and DefaultOptions leaves both false.
	EscapeValuesOnReceive bool
	UnescapeValuesOnSend  bool

	// IgnoreInvalidCookie makes a malformed cookie name a silent no-op
	// instead of an InvalidCookie error. Defaults to true (lenient) per
	// spec.md §9's resolved open question.
	IgnoreInvalidCookie bool

	// IgnoreSetForExpiredCookies drops an incoming cookie outright when
	// it is already expired at receipt time, instead of storing (and
	// immediately tombstoning) it.
	IgnoreSetForExpiredCookies bool

	// ExpireBeforeSet marks any existing cookie with the same
	// (effective host, name) expired before inserting the new one.
	ExpireBeforeSet bool

	// CookieSingleHeader emits one combined "Cookie: k1=v1; k2=v2"
	// header when true (the default), or one header per cookie when
	// false.
	CookieSingleHeader bool
}

// DefaultOptions matches spec.md §9's resolved lenient-cookie default.
func DefaultOptions() Options {
	return Options{
		IgnoreInvalidCookie: true,
		ExpireBeforeSet:     true,
		CookieSingleHeader:  true,
	}
}

type entryKey struct {
	domain string
	path   string
	name   string
}

// Jar is the cross-request cookie store. The zero value is not usable;
// construct with New. A Jar may be shared across requests and protects
// its internal map against concurrent mutation (spec.md §5).
type Jar struct {
	mu      sync.Mutex
	entries map[entryKey]*Cookie
	opts    Options
}

func New(opts Options) *Jar {
	return &Jar{entries: make(map[entryKey]*Cookie), opts: opts}
}

// Add inserts or replaces a cookie directly, bypassing Set-Cookie
// parsing — used by jar deserialization and by tests.
func (j *Jar) Add(c Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.addLocked(c)
}

func (j *Jar) addLocked(c Cookie) {
	key := entryKey{domain: strings.ToLower(c.Domain), path: c.Path, name: c.Name}
	stored := c
	j.entries[key] = &stored
}

// SetFromHeader implements the accept path of spec.md §4.5 for one raw
// Set-Cookie value observed while processing requestURI's response.
func (j *Jar) SetFromHeader(requestURI *url.URL, raw string) error {
	raw = FilterTrim(raw)
	raw = FilterNormalizePath(raw)
	raw = FilterInvalidExpireYear(raw)
	raw = FilterEscapeTrailingComma(raw)

	tokens := splitNonEmpty(raw, ';')
	if len(tokens) == 0 {
		if j.opts.IgnoreInvalidCookie {
			return nil
		}
		return mverrors.NewInvalidCookie("empty Set-Cookie value")
	}

	name, value, ok := splitPair(tokens[0])
	if !ok || !validCookieName(name) {
		if j.opts.IgnoreInvalidCookie {
			return nil
		}
		return mverrors.NewInvalidCookie("invalid cookie name: " + name)
	}

	if j.opts.EscapeValuesOnReceive {
		value = url.QueryEscape(value)
	}

	c := Cookie{Name: name, Value: value, Path: ""}
	var domainSet bool

	for _, tok := range tokens[1:] {
		key, val, _ := splitPair(tok)
		switch strings.ToLower(key) {
		case "expires":
			if t, err := parseCookieTime(val); err == nil {
				c.Expires = clampExpiry(t)
			}
		case "path":
			c.Path = val
		case "domain":
			c.Domain = FilterDomain(val)
			domainSet = c.Domain != ""
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		}
	}

	if !domainSet {
		if c.Path == "" || strings.HasPrefix(c.Path, "/") {
			c.Domain = requestURI.Hostname()
		} else if strings.Contains(c.Path, ".") {
			c.Domain = c.Path
			c.Path = ""
		} else {
			c.Domain = requestURI.Hostname()
		}
	}
	if c.Path == "" {
		c.Path = "/"
	}

	now := time.Now()
	if j.opts.IgnoreSetForExpiredCookies && c.HasExpiry() && !c.Expires.After(now) {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.opts.ExpireBeforeSet {
		j.expireMatchingLocked(requestURI.Hostname(), c.Domain, name, now)
	}
	j.addLocked(c)
	return nil
}

// expireMatchingLocked tombstones any existing cookie sharing the
// (effective host, name) pair, per the expire-before-set semantics.
func (j *Jar) expireMatchingLocked(fallbackHost, domain, name string, now time.Time) {
	effective := domain
	if effective == "" {
		effective = fallbackHost
	}
	for _, c := range j.entries {
		if c.Name == name && domainMatches(effective, c.Domain) {
			c.Expired = true
		}
	}
}

// Match enumerates cookies applicable to requestURI per the send-path
// rules of spec.md §4.5: domain match, path prefix, secure implies
// https, not expired.
func (j *Jar) Match(requestURI *url.URL) []Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	host := requestURI.Hostname()
	path := requestURI.EscapedPath()
	if path == "" {
		path = "/"
	}
	isHTTPS := strings.EqualFold(requestURI.Scheme, "https")
	now := time.Now()

	var out []Cookie
	for _, c := range j.entries {
		if c.IsExpiredAt(now) {
			continue
		}
		if !domainMatches(host, c.Domain) {
			continue
		}
		if !pathMatches(path, c.Path) {
			continue
		}
		if c.Secure && !isHTTPS {
			continue
		}
		value := c.Value
		if j.opts.UnescapeValuesOnSend {
			if uv, err := url.QueryUnescape(value); err == nil {
				value = uv
			}
		}
		cp := *c
		cp.Value = value
		out = append(out, cp)
	}
	return out
}

// FormatHeader renders the match set as a Cookie header, either one
// combined header or one header per cookie per CookieSingleHeader.
func (j *Jar) FormatHeader(cookies []Cookie) []string {
	if len(cookies) == 0 {
		return nil
	}
	if j.opts.CookieSingleHeader {
		parts := make([]string, 0, len(cookies))
		for _, c := range cookies {
			parts = append(parts, c.Name+"="+c.Value)
		}
		return []string{strings.Join(parts, "; ")}
	}
	headers := make([]string, 0, len(cookies))
	for _, c := range cookies {
		headers = append(headers, c.Name+"="+c.Value)
	}
	return headers
}

// domainMatches implements the RFC 6265 domain-match rule: host equals
// domain, or domain has a leading dot and host ends with the
// dot-stripped domain preceded by a dot.
func domainMatches(host, domain string) bool {
	host, domain = strings.ToLower(host), strings.ToLower(domain)
	if host == domain {
		return true
	}
	if strings.HasPrefix(domain, ".") {
		return strings.HasSuffix(host, domain) || host == domain[1:]
	}
	// A cookie stored with a bare host (no leading dot, e.g. after
	// FilterDomain stripped it from a single-label wildcard) still
	// matches subdomains, matching the source's lenient behavior.
	return strings.HasSuffix(host, "."+domain)
}

func pathMatches(requestPath, cookiePath string) bool {
	if cookiePath == "" || cookiePath == "/" {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	if len(requestPath) == len(cookiePath) {
		return true
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

func splitNonEmpty(s string, sep byte) []string {
	parts := strings.Split(s, string(sep))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitPair(tok string) (key, value string, ok bool) {
	idx := strings.IndexByte(tok, '=')
	if idx < 0 {
		return strings.TrimSpace(tok), "", false
	}
	return strings.TrimSpace(tok[:idx]), strings.TrimSpace(tok[idx+1:]), true
}

func validCookieName(name string) bool {
	if name == "" || strings.HasPrefix(name, "$") {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n=;,")
}

var cookieTimeLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 02-Jan-2006 15:04:05 MST",
	"Monday, 02-Jan-2006 15:04:05 MST",
	time.ANSIC,
}

func parseCookieTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range cookieTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
