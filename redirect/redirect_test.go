package redirect

import (
	"testing"

	"github.com/SoheilMV/MVNet/header"
	"github.com/SoheilMV/MVNet/request"
	"github.com/SoheilMV/MVNet/requrl"
	"github.com/SoheilMV/MVNet/response"
)

func newReq(t *testing.T, method request.Method, raw string) *request.Request {
	t.Helper()
	req, err := request.New(method, raw)
	if err != nil {
		t.Fatalf("request.New(%q): %v", raw, err)
	}
	return req
}

func redirectResponse(status int, location string) *response.Response {
	h := header.New()
	if location != "" {
		h.Set("Location", location)
	}
	return &response.Response{StatusCode: status, Headers: h}
}

func TestFollow_NonRedirectIsNoOp(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	resp := &response.Response{StatusCode: 200, Headers: header.New()}

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if outcome.Redirected {
		t.Errorf("expected no redirect for a 200 response")
	}
}

func TestFollow_AutoRedirectDisabled(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	req.Policy.AutoRedirect = false
	resp := redirectResponse(302, "http://example.com/next")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if outcome.Redirected {
		t.Errorf("expected AutoRedirect=false to suppress following")
	}
}

func TestFollow_302DowngradesToGETAndDropsBody(t *testing.T) {
	req := newReq(t, request.POST, "http://example.com/submit")
	resp := redirectResponse(302, "/thanks")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if !outcome.Redirected {
		t.Fatal("expected a redirect")
	}
	if outcome.Next.Method != request.GET {
		t.Errorf("expected method downgrade to GET, got %s", outcome.Next.Method)
	}
	if outcome.Next.Content != nil {
		t.Errorf("expected body dropped on 302 downgrade")
	}
	if outcome.Next.URL.Raw.Path != "/thanks" {
		t.Errorf("expected relative Location resolved against original URL, got %q", outcome.Next.URL.Raw.Path)
	}
}

func TestFollow_307PreservesMethodAndBody(t *testing.T) {
	req := newReq(t, request.PUT, "http://example.com/submit")
	resp := redirectResponse(307, "/again")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if outcome.Next.Method != request.PUT {
		t.Errorf("expected method preserved on 307, got %s", outcome.Next.Method)
	}
}

func TestFollow_CrossHostStripsHostOriginAndAuth(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	req.Permanent.Set("Host", "example.com")
	req.Permanent.Set("Origin", "http://example.com")
	req.Auth = &request.Auth{Username: "u", Password: "p"}
	resp := redirectResponse(302, "http://other.com/elsewhere")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if outcome.Next.Permanent.Has("Host") || outcome.Next.Permanent.Has("Origin") {
		t.Errorf("expected Host/Origin stripped on cross-host redirect")
	}
	if outcome.Next.Auth != nil {
		t.Errorf("expected Auth cleared on cross-host redirect")
	}
}

func TestFollow_SameHostKeepsHeaders(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/a")
	req.Permanent.Set("Host", "example.com")
	resp := redirectResponse(302, "http://example.com/b")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if !outcome.Next.Permanent.Has("Host") {
		t.Errorf("expected Host preserved on same-host redirect")
	}
}

func TestFollow_ExternalSchemeReturnsLocationVerbatim(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	resp := redirectResponse(302, "ftp://files.example.com/thing")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if outcome.Redirected {
		t.Errorf("expected non-HTTP scheme to not be followed")
	}
	if outcome.ExternalLocation != "ftp://files.example.com/thing" {
		t.Errorf("expected ExternalLocation set, got %q", outcome.ExternalLocation)
	}
}

func TestFollow_TooManyRedirectsErrors(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	resp := redirectResponse(302, "/next")

	_, err := Follow(req, resp, 5, 5)
	if err == nil {
		t.Fatal("expected a too-many-redirects error at the hop budget")
	}
}

func TestFollow_DefaultMaxRedirectsWhenUnset(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	resp := redirectResponse(302, "/next")

	if _, err := Follow(req, resp, DefaultMaxRedirects-1, 0); err != nil {
		t.Fatalf("expected the last hop within the default budget to succeed, got: %v", err)
	}
	if _, err := Follow(req, resp, DefaultMaxRedirects, 0); err == nil {
		t.Fatal("expected exceeding the default budget to error")
	}
}

func TestFollow_KeepTemporaryHeadersOnRedirect(t *testing.T) {
	req := newReq(t, request.GET, "http://example.com/")
	req.Temporary.Set("X-Trace", "abc")
	req.Policy.KeepTemporaryHeadersOnRedirect = true
	resp := redirectResponse(302, "http://other.com/")

	outcome, err := Follow(req, resp, 0, 0)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if !outcome.Next.Temporary.Has("X-Trace") {
		t.Errorf("expected temporary header kept across cross-host redirect when policy requests it")
	}
}

func requrlMustParse(t *testing.T, raw string) *requrl.URL {
	t.Helper()
	u, err := requrl.Parse(raw)
	if err != nil {
		t.Fatalf("requrl.Parse(%q): %v", raw, err)
	}
	return u
}
