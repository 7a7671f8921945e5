package response

import (
	"testing"

	"github.com/SoheilMV/MVNet/header"
)

func TestIsOK(t *testing.T) {
	for _, tc := range []struct {
		status int
		ok     bool
	}{
		{200, true}, {204, true}, {299, true},
		{300, false}, {404, false}, {199, false},
	} {
		r := &Response{StatusCode: tc.status}
		if r.IsOK() != tc.ok {
			t.Errorf("status %d: expected IsOK()=%v", tc.status, tc.ok)
		}
	}
}

func TestHasRedirect_StatusRange(t *testing.T) {
	r := &Response{StatusCode: 302, Headers: header.New()}
	if !r.HasRedirect() {
		t.Error("expected 302 to be a redirect")
	}
	r2 := &Response{StatusCode: 200, Headers: header.New()}
	if r2.HasRedirect() {
		t.Error("expected 200 to not be a redirect")
	}
}

func TestHasRedirect_LocationHeaderOutsideRange(t *testing.T) {
	h := header.New()
	h.Set("Location", "/elsewhere")
	r := &Response{StatusCode: 201, Headers: h}
	if !r.HasRedirect() {
		t.Error("expected a Location header to count as a redirect even outside the 3xx range")
	}
}

func TestLocation_PrefersLocationOverRedirectLocation(t *testing.T) {
	h := header.New()
	h.Set("Location", "/a")
	h.Set("Redirect-Location", "/b")
	r := &Response{Headers: h}

	loc, ok := r.Location()
	if !ok || loc != "/a" {
		t.Errorf("expected Location to win, got %q, %v", loc, ok)
	}
}

func TestLocation_FallsBackToRedirectLocation(t *testing.T) {
	h := header.New()
	h.Set("Redirect-Location", "/b")
	r := &Response{Headers: h}

	loc, ok := r.Location()
	if !ok || loc != "/b" {
		t.Errorf("expected Redirect-Location fallback, got %q, %v", loc, ok)
	}
}
