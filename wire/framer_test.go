package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/SoheilMV/MVNet/header"
	"github.com/SoheilMV/MVNet/proxy"
	"github.com/SoheilMV/MVNet/requrl"
)

func TestWriteRequest_GetNoBody(t *testing.T) {
	u, err := requrl.Parse("http://example.com/path?x=1")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	var buf bytes.Buffer
	n, err := WriteRequest(&buf, u, "GET", "HTTP/1.1", header.New(), header.New(), "", 0, false, nil, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if int64(buf.Len()) != n {
		t.Errorf("reported %d bytes written, buffer has %d", n, buf.Len())
	}

	out := buf.String()
	if !strings.HasPrefix(out, "GET /path?x=1 HTTP/1.1\r\n") {
		t.Errorf("unexpected request line: %q", out)
	}
	if !strings.Contains(out, "Host: example.com\r\n") {
		t.Errorf("missing Host header: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Errorf("missing header terminator: %q", out)
	}
}

func TestWriteRequest_PostWithBody(t *testing.T) {
	u, err := requrl.Parse("http://example.com/submit")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	body := []byte("hello=world")

	var buf bytes.Buffer
	_, err = WriteRequest(&buf, u, "POST", "HTTP/1.1", header.New(), header.New(),
		"application/x-www-form-urlencoded", int64(len(body)), true,
		func(w io.Writer) (int64, error) {
			n, err := w.Write(body)
			return int64(n), err
		}, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Content-Length: 11\r\n") {
		t.Errorf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello=world") {
		t.Errorf("missing body: %q", out)
	}
}

func TestWriteRequest_HTTPConnectProxyAbsoluteForm(t *testing.T) {
	u, err := requrl.Parse("http://example.com/path")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	var buf bytes.Buffer
	_, err = WriteRequest(&buf, u, "GET", "HTTP/1.1", header.New(), header.New(), "", 0, false, nil, WriteOptions{
		ProxyVariant:     proxy.HTTPConnect,
		ProxyAbsoluteURI: true,
	})
	if err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "GET http://example.com/path HTTP/1.1\r\n") {
		t.Errorf("expected absolute-form request line, got %q", out)
	}
	if !strings.Contains(out, "Proxy-Connection:") {
		t.Errorf("expected Proxy-Connection header behind an HTTP-type proxy: %q", out)
	}
}

func TestWriteRequest_CallerCookieSuppressesJarCookies(t *testing.T) {
	u, _ := requrl.Parse("http://example.com/")
	permanent := header.New()
	permanent.Set("Cookie", "session=abc")

	var buf bytes.Buffer
	_, err := WriteRequest(&buf, u, "GET", "HTTP/1.1", permanent, header.New(), "", 0, false, nil, WriteOptions{
		CookieHeaders: []string{"session=fromjar"},
	})
	if err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "Cookie:") != 1 {
		t.Fatalf("expected exactly one Cookie header, got: %q", out)
	}
	if !strings.Contains(out, "Cookie: session=abc\r\n") {
		t.Errorf("caller-set cookie should win over jar cookies: %q", out)
	}
}

func TestFormatAcceptLanguage(t *testing.T) {
	if got := formatAcceptLanguage("en-US"); got != "en-US" {
		t.Errorf("en-US should pass through, got %q", got)
	}
	got := formatAcceptLanguage("fr-FR")
	if !strings.HasPrefix(got, "fr-FR,fr;q=0.8") {
		t.Errorf("unexpected fallback chain: %q", got)
	}
}
