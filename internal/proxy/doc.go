// Package proxy implements the client-facing side of the relay: the
// listener helpers and the acceptor that turns each new client connection
// into a queued job.
//
// The acceptor is strictly sequential. It reads one complete request before
// accepting the next client and never touches an upstream server; requests
// it cannot serve are answered with 501 Not Implemented and closed on the
// spot.
package proxy
