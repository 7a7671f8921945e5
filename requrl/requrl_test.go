package requrl

import "testing"

func TestHostHeader_ElidesDefaultPort(t *testing.T) {
	u, err := Parse("http://example.com/path")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.HostHeader(); got != "example.com" {
		t.Errorf("expected default port elided, got %q", got)
	}
}

func TestHostHeader_KeepsNonDefaultPort(t *testing.T) {
	u, err := Parse("http://example.com:8080/path")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.HostHeader(); got != "example.com:8080" {
		t.Errorf("expected explicit non-default port kept, got %q", got)
	}
}

func TestHostHeader_HTTPSDefaultPortElided(t *testing.T) {
	u, err := Parse("https://example.com:443/path")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.HostHeader(); got != "example.com" {
		t.Errorf("expected https default port 443 elided, got %q", got)
	}
}

func TestPort_DefaultsPerScheme(t *testing.T) {
	http, _ := Parse("http://example.com/")
	if http.Port() != 80 {
		t.Errorf("expected http default port 80, got %d", http.Port())
	}
	https, _ := Parse("https://example.com/")
	if https.Port() != 443 {
		t.Errorf("expected https default port 443, got %d", https.Port())
	}
}

func TestRequestTarget_EmptyPathBecomesSlash(t *testing.T) {
	u, err := Parse("http://example.com")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.RequestTarget(); got != "/" {
		t.Errorf("expected empty path normalized to '/', got %q", got)
	}
}

func TestRequestTarget_IncludesQuery(t *testing.T) {
	u, err := Parse("http://example.com/search?q=go")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.RequestTarget(); got != "/search?q=go" {
		t.Errorf("unexpected request target: %q", got)
	}
}

func TestResolveReference_RelativePath(t *testing.T) {
	u, err := Parse("http://example.com/a/b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	next, err := u.ResolveReference("../c")
	if err != nil {
		t.Fatalf("ResolveReference: %v", err)
	}
	if got := next.RequestTarget(); got != "/c" {
		t.Errorf("expected relative resolution to /c, got %q", got)
	}
}

func TestResolveReference_AbsoluteOverridesHost(t *testing.T) {
	u, err := Parse("http://example.com/a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	next, err := u.ResolveReference("http://other.com/b")
	if err != nil {
		t.Fatalf("ResolveReference: %v", err)
	}
	if next.Hostname() != "other.com" {
		t.Errorf("expected absolute Location to switch host, got %q", next.Hostname())
	}
}

func TestSameHost(t *testing.T) {
	a, _ := Parse("http://Example.com/a")
	b, _ := Parse("http://example.com/b")
	if !a.SameHost(b) {
		t.Error("expected case-insensitive host match")
	}
	c, _ := Parse("http://other.com/b")
	if a.SameHost(c) {
		t.Error("expected different hosts to not match")
	}
}

func TestIsHTTPFamily(t *testing.T) {
	httpURL, _ := Parse("http://example.com/")
	if !httpURL.IsHTTPFamily() {
		t.Error("expected http to be HTTP-family")
	}
	ftpURL, _ := Parse("ftp://example.com/")
	if ftpURL.IsHTTPFamily() {
		t.Error("expected ftp to not be HTTP-family")
	}
}

func TestOrigin(t *testing.T) {
	u, err := Parse("https://example.com:9443/x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	o := u.Origin()
	if o.Scheme != "https" || o.Host != "example.com" || o.Port != 9443 {
		t.Errorf("unexpected origin: %+v", o)
	}
}
