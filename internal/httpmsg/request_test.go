package httpmsg

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/die-net/webrelay/internal/proxyerr"
)

func readReq(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	return ReadRequest(bufio.NewReader(strings.NewReader(raw)))
}

func TestReadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want *Request
	}{
		{
			name: "absolute get",
			raw:  "GET http://example.com/a?b=1 HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n",
			want: &Request{
				Method:  "GET",
				URL:     "http://example.com/a?b=1",
				Version: "HTTP/1.1",
				Header:  Header{"Host: example.com", "Accept: */*", "Connection: close"},
			},
		},
		{
			name: "lowercase head",
			raw:  "head http://example.com/ HTTP/1.1\r\n\r\n",
			want: &Request{
				Method:  "head",
				URL:     "http://example.com/",
				Version: "HTTP/1.1",
				Header:  Header{"Connection: close"},
			},
		},
		{
			name: "persistence headers dropped",
			raw: "GET http://example.com/ HTTP/1.1\r\n" +
				"Host: example.com\r\n" +
				"Connection: keep-alive\r\n" +
				"Proxy-Connection: keep-alive\r\n" +
				"Keep-Alive: 300\r\n" +
				"connection:Upgrade\r\n" +
				"User-Agent: test\r\n\r\n",
			want: &Request{
				Method:  "GET",
				URL:     "http://example.com/",
				Version: "HTTP/1.1",
				Header:  Header{"Host: example.com", "User-Agent: test", "Connection: close"},
			},
		},
		{
			name: "bare newlines",
			raw:  "GET http://example.com/ HTTP/1.1\nHost: example.com\n\n",
			want: &Request{
				Method:  "GET",
				URL:     "http://example.com/",
				Version: "HTTP/1.1",
				Header:  Header{"Host: example.com", "Connection: close"},
			},
		},
		{
			name: "eof inside headers",
			raw:  "GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n",
			want: &Request{
				Method:  "GET",
				URL:     "http://example.com/",
				Version: "HTTP/1.1",
				Header:  Header{"Host: example.com", "Connection: close"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readReq(t, tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected request (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadRequestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want proxyerr.Kind
	}{
		{name: "empty stream", raw: "", want: proxyerr.ProtocolError},
		{name: "blank line", raw: "\r\n", want: proxyerr.ProtocolError},
		{name: "method only", raw: "GET\r\n\r\n", want: proxyerr.UnsupportedMethodOrVersion},
		{name: "bare unsupported method", raw: "DELETE\r\n\r\n", want: proxyerr.UnsupportedMethodOrVersion},
		{name: "no version", raw: "GET http://example.com/\r\n\r\n", want: proxyerr.UnsupportedMethodOrVersion},
		{name: "post", raw: "POST /x HTTP/1.1\r\n\r\n", want: proxyerr.UnsupportedMethodOrVersion},
		{name: "connect", raw: "CONNECT example.com:443 HTTP/1.1\r\n\r\n", want: proxyerr.UnsupportedMethodOrVersion},
		{name: "http 1.0", raw: "GET http://example.com/ HTTP/1.0\r\n\r\n", want: proxyerr.UnsupportedMethodOrVersion},
		{name: "long line", raw: "GET http://example.com/" + strings.Repeat("a", MaxLineBytes) + " HTTP/1.1\r\n\r\n", want: proxyerr.ProtocolError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readReq(t, tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v want kind %v", err, tt.want)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n",
		"HEAD http://example.com:8080/x/y?z HTTP/1.1\r\nHost: example.com:8080\r\nAccept-Language: en, fr;q=0.5\r\nCookie: a=b; c=d\r\n\r\n",
		"GET http://example.com/ HTTP/1.1\r\nX-Empty:\r\nX-Colon: a:b:c\r\nProxy-Connection: keep-alive\r\n\r\n",
	}

	for _, in := range inputs {
		first, err := readReq(t, in)
		if err != nil {
			t.Fatal(err)
		}
		second, err := readReq(t, first.String())
		if err != nil {
			t.Fatal(err)
		}

		// The appended Connection line is itself dropped on re-parse and
		// appended again, so exactly one survives.
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("round trip changed request (-first +second):\n%s", diff)
		}

		closes := 0
		for _, line := range second.Header {
			if strings.HasPrefix(strings.ToLower(line), "connection:") {
				closes++
			}
		}
		if closes != 1 || second.Header[len(second.Header)-1] != "Connection: close" {
			t.Fatalf("want a single trailing Connection: close, got %q", second.Header)
		}
	}
}

func TestRequestWithURL(t *testing.T) {
	t.Parallel()

	req, err := readReq(t, "GET http://example.com/a HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if err != nil {
		t.Fatal(err)
	}

	rewritten := req.WithURL("/a")
	if got, want := rewritten.String(), "GET /a HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	rewritten.Header[0] = "Host: changed"
	if req.URL != "http://example.com/a" || req.Header[0] != "Host: example.com" {
		t.Fatalf("WithURL mutated the original: %+v", req)
	}
}

func TestReadRequestConsumesRejectedHeaders(t *testing.T) {
	t.Parallel()

	br := bufio.NewReader(strings.NewReader(
		"POST /x HTTP/1.1\r\nHost: example.com\r\nContent-Length: 0\r\n\r\n" +
			"GET http://example.com/next HTTP/1.1\r\n\r\n"))

	if _, err := ReadRequest(br); !errors.Is(err, proxyerr.UnsupportedMethodOrVersion) {
		t.Fatalf("first request err=%v", err)
	}
	req, err := ReadRequest(br)
	if err != nil {
		t.Fatal(err)
	}
	if req.URL != "http://example.com/next" {
		t.Fatalf("URL=%q, rejected headers were not consumed", req.URL)
	}
}
