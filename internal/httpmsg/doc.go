// Package httpmsg parses and serializes the HTTP/1.1 messages relayed by
// webrelay.
//
// The codec is narrow. Requests are limited to GET and HEAD over
// HTTP/1.1, and every parsed request is forced to "Connection: close";
// persistent connections are not supported. Responses are never re-encoded:
// the exact bytes received from the origin are retained and relayed, and the
// status line and headers are parsed only for inspection and logging.
//
// Headers are kept as an ordered block of raw lines rather than a map so that
// a request can be re-serialized in the order the client sent it.
package httpmsg
