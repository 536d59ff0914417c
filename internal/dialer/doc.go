// Package dialer opens the outbound connections behind
// registry.ConnectUpstream.
//
// Dialers implement a small interface (DialContext) and either connect to the
// origin server directly or reach it through a parent proxy (HTTP CONNECT or
// SOCKS5). Every dialer closes any socket it opened before returning an
// error, so callers never inherit a half-open connection.
package dialer
