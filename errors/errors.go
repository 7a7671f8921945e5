// Package errors defines the error taxonomy surfaced by every layer of
// MVNet: connection, send, receive, protocol, proxy, cookie and
// input-validation failures all share one concrete type so callers can
// switch on Kind without type-asserting through half a dozen error types.
package errors

import "fmt"

// Kind categorizes an Error at the level callers are expected to act on.
type Kind int

const (
	KindNone Kind = iota
	ConnectFailure
	SendFailure
	ReceiveFailure
	ProtocolError
	ProxyError
	InvalidCookie
	InvalidInput
)

func (k Kind) String() string {
	switch k {
	case ConnectFailure:
		return "ConnectFailure"
	case SendFailure:
		return "SendFailure"
	case ReceiveFailure:
		return "ReceiveFailure"
	case ProtocolError:
		return "ProtocolError"
	case ProxyError:
		return "ProxyError"
	case InvalidCookie:
		return "InvalidCookie"
	case InvalidInput:
		return "InvalidInput"
	default:
		return "None"
	}
}

// ProxyKind sub-codes a ProxyError to the handshake table that rejected it.
type ProxyKind int

const (
	ProxyKindNone ProxyKind = iota
	ProxySocks4RejectedOrFailed
	ProxySocks4IdentdUnreachable
	ProxySocks4IdentdMismatch
	ProxySocks5GeneralFailure
	ProxySocks5NotAllowed
	ProxySocks5NetworkUnreachable
	ProxySocks5HostUnreachable
	ProxySocks5ConnectionRefused
	ProxySocks5TTLExpired
	ProxySocks5CommandNotSupported
	ProxySocks5AddressNotSupported
	ProxySocks5AuthFailed
	ProxyHTTPConnectRejected
	ProxyAzadiLogin
	ProxyAzadiHost
	ProxyAzadiRemote
	ProxyAzadiUnknown
)

// Error is the single error type returned by MVNet's wire layers.
type Error struct {
	Kind      Kind
	ProxyKind ProxyKind
	Message   string
	Cause     error

	// EmptyBody is set on a ReceiveFailure raised when the connection
	// ends before a status line arrives, on any connection; the keep-alive
	// controller pattern-matches this to trigger the silent reconnect
	// when the connection was a reused one.
	EmptyBody bool
}

func (e *Error) Error() string {
	if e == nil {
		return "mvnet: no error"
	}
	s := "mvnet: " + e.Kind.String()
	if e.Kind == ProxyError && e.ProxyKind != ProxyKindNone {
		s = fmt.Sprintf("%s(%d)", s, e.ProxyKind)
	}
	if e.Message != "" {
		s = s + ": " + e.Message
	}
	if e.Cause != nil {
		s = fmt.Sprintf("%s (caused by: %v)", s, e.Cause)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

func NewConnectFailure(message string, cause error) *Error {
	return &Error{Kind: ConnectFailure, Message: message, Cause: cause}
}

func NewSendFailure(message string, cause error) *Error {
	return &Error{Kind: SendFailure, Message: message, Cause: cause}
}

func NewReceiveFailure(message string, cause error) *Error {
	return &Error{Kind: ReceiveFailure, Message: message, Cause: cause}
}

// NewEmptyBodyFailure builds the ReceiveFailure that the keep-alive
// controller's silent-reconnect rule matches on.
func NewEmptyBodyFailure(message string) *Error {
	return &Error{Kind: ReceiveFailure, Message: message, EmptyBody: true}
}

func NewProtocolError(message string) *Error {
	return &Error{Kind: ProtocolError, Message: message}
}

func NewProxyError(kind ProxyKind, message string) *Error {
	return &Error{Kind: ProxyError, ProxyKind: kind, Message: message}
}

func NewInvalidCookie(message string) *Error {
	return &Error{Kind: InvalidCookie, Message: message}
}

func NewInvalidInput(message string) *Error {
	return &Error{Kind: InvalidInput, Message: message}
}

// Is reports whether err is itself an *Error of the given kind; a wrapped
// *Error is not unwrapped.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsEmptyBody reports whether err is the empty-response ReceiveFailure
// that triggers the keep-alive controller's silent reconnect.
func IsEmptyBody(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == ReceiveFailure && e.EmptyBody
}

// IsIOError reports whether err is a transport-level failure eligible
// for the keep-alive controller's fail-reconnect budget: a connect,
// send, or receive failure. Protocol errors, proxy rejections, and
// input/cookie validation failures are never retried.
func IsIOError(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case ConnectFailure, SendFailure, ReceiveFailure:
		return true
	default:
		return false
	}
}
