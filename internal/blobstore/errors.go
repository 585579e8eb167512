package blobstore

import (
	"errors"
	"fmt"
)

// Kind classifies a store failure for the transport layer.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindExpired
	KindInternal
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindInternal:
		return "internal"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by Store operations. Its Error text is
// the user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrExpired  = &Error{Kind: KindExpired}
	ErrInternal = &Error{Kind: KindInternal}
	ErrOther    = &Error{Kind: KindOther}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return "Sorry, no file for you."
	case KindExpired:
		return "Sorry, this file has expired."
	case KindInternal:
		switch {
		case e.Message != "" && e.Err != nil:
			return "Internal Error: " + e.Message + ": " + e.Err.Error()
		case e.Err != nil:
			return "Internal Error: " + e.Err.Error()
		default:
			return "Internal Error: " + e.Message
		}
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf reports the kind of err. Errors not produced by the store are
// treated as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func notFound(cause error) error {
	return &Error{Kind: KindNotFound, Err: cause}
}

func internal(msg string, cause error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}
