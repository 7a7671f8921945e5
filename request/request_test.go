package request

import "testing"

func TestNew_Defaults(t *testing.T) {
	req, err := New(GET, "http://example.com/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if req.Proto != "HTTP/1.1" {
		t.Errorf("expected default proto HTTP/1.1, got %q", req.Proto)
	}
	if !req.Policy.AutoRedirect || !req.Policy.UseCookies || !req.Policy.CookieSingleHeader {
		t.Errorf("unexpected default policy: %+v", req.Policy)
	}
}

func TestSetHeader_RejectsReserved(t *testing.T) {
	req, _ := New(GET, "http://example.com/")
	if err := req.SetHeader("Host", "evil.com"); err == nil {
		t.Error("expected SetHeader to reject a reserved header")
	}
	if err := req.SetHeader("X-Custom", "1"); err != nil {
		t.Errorf("expected a non-reserved header to be accepted, got %v", err)
	}
}

func TestSetTemporaryHeader_RejectsReserved(t *testing.T) {
	req, _ := New(GET, "http://example.com/")
	if err := req.SetTemporaryHeader("Content-Length", "10"); err == nil {
		t.Error("expected SetTemporaryHeader to reject a reserved header")
	}
}

func TestMethod_AdmitsBody(t *testing.T) {
	for _, m := range []Method{POST, PUT, PATCH, DELETE} {
		if !m.AdmitsBody() {
			t.Errorf("expected %s to admit a body", m)
		}
	}
	for _, m := range []Method{GET, HEAD, OPTIONS} {
		if m.AdmitsBody() {
			t.Errorf("expected %s to not admit a body", m)
		}
	}
}

func TestClose_SafeOnNilContentAndIdempotent(t *testing.T) {
	req, _ := New(GET, "http://example.com/")
	if err := req.Close(); err != nil {
		t.Errorf("expected Close on nil Content to be a no-op, got %v", err)
	}
	if err := req.Close(); err != nil {
		t.Errorf("expected a second Close to also be a no-op, got %v", err)
	}
}

func TestIsReserved(t *testing.T) {
	for _, h := range []string{"Host", "content-length", "Content-Type", "Connection", "Proxy-Connection", "Accept-Encoding"} {
		if !IsReserved(h) {
			t.Errorf("expected %q to be reserved", h)
		}
	}
	if IsReserved("X-Custom") {
		t.Error("expected a non-framer header to not be reserved")
	}
}
