package proxyerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "bare", err: E(MalformedURL, "parse target", nil), want: MalformedURL},
		{name: "wrapped", err: fmt.Errorf("job 3: %w", E(IOError, "read", io.EOF)), want: IOError},
		{name: "formatted", err: Errorf(HandleNotFound, "close", "handle %d", 7), want: HandleNotFound},
		{name: "plain", err: io.EOF, want: Unknown},
		{name: "nil", err: nil, want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf: got %v want %v", got, tt.want)
			}
			if tt.want != Unknown && !errors.Is(tt.err, tt.want) {
				t.Fatalf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
			if tt.want != UpstreamUnreachable && errors.Is(tt.err, UpstreamUnreachable) {
				t.Fatalf("errors.Is(%v, UpstreamUnreachable) = true", tt.err)
			}
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	t.Parallel()

	err := E(IOError, "read response", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if got, want := err.Error(), "read response: i/o error: unexpected EOF"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
