// Package errs defines the error taxonomy shared across subsystems so HTTP
// handlers can map failures to status codes without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories the control API and
// the subsystems themselves need to branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigInvalid
	KindStorageUnavailable
	KindStorageFull
	KindFileIOShortWrite
	KindFileIOOpenFailed
	KindBusDisabled
	KindBufferFull
	KindWifiAssocTimeout
	KindWifiScanFailed
	KindUnauthorized
	KindBadRequest
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "config_invalid"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindStorageFull:
		return "storage_full"
	case KindFileIOShortWrite:
		return "file_io_short_write"
	case KindFileIOOpenFailed:
		return "file_io_open_failed"
	case KindBusDisabled:
		return "bus_disabled"
	case KindBufferFull:
		return "buffer_full"
	case KindWifiAssocTimeout:
		return "wifi_assoc_timeout"
	case KindWifiScanFailed:
		return "wifi_scan_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can type-switch
// without parsing message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op, classified as kind, wrapping err (may be nil).
func New(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, else KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
