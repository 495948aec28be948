package snmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind is the typed failure taxonomy of the fetch boundary. The
// scheduler's retry policy and the manager's fault surfacing both key off
// it, so every transport error must land in exactly one kind.
type FailureKind string

const (
	KindTimeout     FailureKind = "timeout"
	KindAuth        FailureKind = "auth_failure"
	KindUnreachable FailureKind = "unreachable"
	KindMalformed   FailureKind = "malformed"
	KindWriteDenied FailureKind = "write_denied"
)

// FetchError wraps a transport or protocol failure with its kind.
type FetchError struct {
	Kind FailureKind
	Op   string // "fetch interfaces", "set alias", ...
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain, defaulting to
// unreachable for untyped errors.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnreachable
}

// classifyErr maps a raw gosnmp/net error onto the failure taxonomy.
// v2c agents silently drop requests with a wrong community, so those
// surface as timeouts; only v3 USM reports distinguish auth failures.
func classifyErr(op string, err error) *FetchError {
	if err == nil {
		return nil
	}

	kind := KindUnreachable

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	default:
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "timeout"):
			kind = KindTimeout
		case strings.Contains(msg, "usm"),
			strings.Contains(msg, "authentication"),
			strings.Contains(msg, "unknown user"),
			strings.Contains(msg, "wrong digest"),
			strings.Contains(msg, "decryption"):
			kind = KindAuth
		case strings.Contains(msg, "unmarshal"),
			strings.Contains(msg, "decode"),
			strings.Contains(msg, "malformed"):
			kind = KindMalformed
		}
	}

	return &FetchError{Kind: kind, Op: op, Err: err}
}
