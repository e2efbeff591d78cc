package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorises a failure that aborts a scrape or a repository read.
type ErrorKind string

const (
	KindInvalidCredentials     ErrorKind = "invalid_credentials_format"
	KindSiteUnreachable        ErrorKind = "site_unreachable"
	KindLoginFormMissing       ErrorKind = "login_form_missing"
	KindAuthenticationRejected ErrorKind = "authentication_rejected"
	KindDeviceAuthTimeout      ErrorKind = "device_auth_timeout"
	KindUnknownAssetType       ErrorKind = "unknown_asset_type_on_hydration"
)

// Retryable reports whether a later run can be expected to succeed without
// operator action.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindSiteUnreachable, KindDeviceAuthTimeout:
		return true
	}
	return false
}

// Error is a categorised failure. It is returned unwrapped at package
// boundaries so callers can match it with errors.As.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError builds a categorised error for op.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
