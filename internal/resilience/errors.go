package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// netErrorCodes are Chromium network error codes worth another attempt.
var netErrorCodes = []string{
	"net::err_connection_reset",
	"net::err_connection_refused",
	"net::err_connection_closed",
	"net::err_connection_timed_out",
	"net::err_timed_out",
	"net::err_name_not_resolved",
	"net::err_internet_disconnected",
	"net::err_network_changed",
	"net::err_address_unreachable",
	"net::err_empty_response",
}

// IsTransient reports whether err looks like a passing network failure: an
// explicit TransientError, a network timeout, a reset or refused
// connection, a DNS failure, or a Chromium net:: error of that sort.
// Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, code := range netErrorCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "connection reset by peer") || strings.Contains(msg, "i/o timeout")
}
