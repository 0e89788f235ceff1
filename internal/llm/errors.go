package llm

import "fmt"

// ErrorKind enumerates the unified error taxonomy surfaced by the core.
type ErrorKind int

const (
	KindInvalidRequest ErrorKind = iota
	KindNetwork
	KindAuthentication
	KindRateLimit
	KindProvider
	KindToolNotFound
	KindAllowListDenied
	KindProtocolError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindNetwork:
		return "Network"
	case KindAuthentication:
		return "Authentication"
	case KindRateLimit:
		return "RateLimit"
	case KindProvider:
		return "Provider"
	case KindToolNotFound:
		return "ToolNotFound"
	case KindAllowListDenied:
		return "AllowListDenied"
	case KindProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// Error is the unified error type returned by adapters and MCP components.
// Every user-visible message is prefixed with the provider tag, per spec.
type Error struct {
	Kind      ErrorKind
	Provider  string // e.g. "Anthropic", "Gemini", "MCP:filesystem"
	Reason    string
	RequestID string
	Err       error // underlying cause, if any
}

func (e *Error) Error() string {
	tag := e.Provider
	if tag == "" {
		tag = e.Kind.String()
	}
	msg := fmt.Sprintf("[%s] %s", tag, e.Reason)
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request_id=%s)", msg, e.RequestID)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewInvalidRequest(provider, reason string) *Error {
	return &Error{Kind: KindInvalidRequest, Provider: provider, Reason: reason}
}

func NewNetworkError(provider, reason string, cause error) *Error {
	return &Error{Kind: KindNetwork, Provider: provider, Reason: reason, Err: cause}
}

func NewAuthenticationError(provider, envVarHint string) *Error {
	return &Error{Kind: KindAuthentication, Provider: provider, Reason: fmt.Sprintf("authentication failed, check %s", envVarHint)}
}

func NewRateLimitError(provider, reason string) *Error {
	return &Error{Kind: KindRateLimit, Provider: provider, Reason: reason}
}

func NewProviderError(provider, reason, requestID string) *Error {
	return &Error{Kind: KindProvider, Provider: provider, Reason: reason, RequestID: requestID}
}

func NewToolNotFound(provider, tool string) *Error {
	return &Error{Kind: KindToolNotFound, Provider: provider, Reason: fmt.Sprintf("tool %q not found", tool)}
}

func NewAllowListDenied(provider, identifier string) *Error {
	return &Error{Kind: KindAllowListDenied, Provider: provider, Reason: fmt.Sprintf("%q is not on the allow-list", identifier)}
}

func NewProtocolError(provider, reason string) *Error {
	return &Error{Kind: KindProtocolError, Provider: provider, Reason: reason}
}

// IsRateLimit reports whether err (or anything it wraps) is a RateLimit error.
func IsRateLimit(err error) bool {
	var e *Error
	return asError(err, &e) && e.Kind == KindRateLimit
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
