// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry decisions and user-facing reporting.
// Adapters branch on kind, never on error message text.
type Kind int

const (
	// KindTransport covers connection and timeout failures. Retryable.
	KindTransport Kind = iota
	// KindServer covers HTTP 5xx and 429. Retryable.
	KindServer
	// KindClient covers HTTP 4xx other than 429. Terminal.
	KindClient
	// KindParse covers malformed response bodies. Terminal.
	KindParse
	// KindValidation covers payloads that fail content inspection
	// (paywall pages, truncated PDFs). Terminal for that URL.
	KindValidation
	// KindInfrastructure covers local failures (database writes, directory
	// creation). Fatal for the whole operation.
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is a classified error. It wraps the underlying cause so errors.Is
// and errors.As keep working through it.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error, wrapping any %w operand.
func Errorf(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Msg: err.Error(), Err: errors.Unwrap(err)}
}

// StatusError classifies an unexpected HTTP status code.
func StatusError(code int, endpoint string) *Error {
	kind := KindClient
	if code >= 500 || code == http.StatusTooManyRequests {
		kind = KindServer
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf("%s returned HTTP %d", endpoint, code)}
}

// KindOf extracts the kind from err. Unclassified errors default to
// KindTransport, matching how raw net/http client errors behave.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransport
}

// Retryable reports whether err is worth retrying: transport failures and
// server-side errors (5xx, 429) are; everything else short-circuits.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindServer:
		return true
	default:
		return false
	}
}
