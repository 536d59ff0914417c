// Package proxyerr defines the failure kinds shared by the relay core.
//
// Every error produced by the codec, the connection registry and the workers
// carries exactly one Kind. Callers branch on the kind with errors.Is:
//
//	if errors.Is(err, proxyerr.UpstreamUnreachable) {
//		...
//	}
package proxyerr

import (
	"errors"
	"fmt"
)

// Kind classifies a relay failure.
type Kind uint8

const (
	Unknown Kind = iota
	// HandleNotFound reports a stale or never-assigned connection handle.
	HandleNotFound
	// ProtocolError reports malformed request or response framing.
	ProtocolError
	// UnsupportedMethodOrVersion reports a method other than GET/HEAD or a
	// version other than HTTP/1.1.
	UnsupportedMethodOrVersion
	// MalformedURL reports a request target without a usable host.
	MalformedURL
	// UpstreamUnreachable reports DNS failure, refusal or timeout while
	// connecting to the origin server.
	UpstreamUnreachable
	// IOError reports a read, write or timeout failure on an established socket.
	IOError
	// ListenerError reports a failed accept on the client listener.
	ListenerError
)

var kindNames = [...]string{
	Unknown:                    "unknown",
	HandleNotFound:             "handle not found",
	ProtocolError:              "protocol error",
	UnsupportedMethodOrVersion: "unsupported method or version",
	MalformedURL:               "malformed url",
	UpstreamUnreachable:        "upstream unreachable",
	IOError:                    "i/o error",
	ListenerError:              "listener error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error lets a bare Kind be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Error is a failure tagged with its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. err may be nil.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error whose cause is formatted from format and args.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Op == "":
		return e.Kind.String() + ": " + e.Err.Error()
	case e.Err == nil:
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind carried by e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
