//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package proxy

import (
	"errors"
	"net"
)

func setReusePort(*net.ListenConfig) error {
	return errors.New("SO_REUSEPORT is not supported on this platform")
}
