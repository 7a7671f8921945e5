package wire

import (
	"strings"
	"time"

	"github.com/SoheilMV/MVNet/header"
	"github.com/SoheilMV/MVNet/response"
)

// ReadResponse consumes one HTTP/1.1 response from s: status line,
// headers, then a lazily-read body constructed per spec.md §4.4's
// framing decision tree. method is the request method that produced
// this response, needed for the HEAD zero-body override.
func ReadResponse(s Stream, method string, readTimeout time.Duration) (*response.Response, error) {
	r := NewReceiverHelper(s, readTimeout)

	sl, err := ReadStatusLine(r)
	if err != nil {
		return nil, err
	}

	headerLines, err := ReadHeaderLines(r)
	if err != nil {
		return nil, err
	}

	h := header.New()
	var setCookies []string
	for _, hl := range headerLines {
		if strings.EqualFold(hl.Key, "Set-Cookie") {
			setCookies = append(setCookies, hl.Value)
			continue
		}
		h.Set(hl.Key, hl.Value)
	}

	body, err := BuildBodyReader(r, method, sl.StatusCode, headerLines)
	if err != nil {
		return nil, err
	}

	return &response.Response{
		StatusCode: sl.StatusCode,
		Status:     sl.Reason,
		Proto:      sl.Proto,
		Headers:    h,
		SetCookies: setCookies,
		Body:       body,
	}, nil
}

// WantsClose reports whether the response's Connection/Proxy-Connection
// header demands the keep-alive controller tear the stream down rather
// than return it to the pool (spec.md §4.7).
func WantsClose(h *header.Map) bool {
	if v, ok := h.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		return true
	}
	if v, ok := h.Get("Proxy-Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		return true
	}
	return false
}
