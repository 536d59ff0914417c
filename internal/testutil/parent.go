package testutil

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"

	"github.com/txthinking/socks5"
)

// HandleHTTPConnect serves one CONNECT request on c the way a parent HTTP
// proxy would, then splices the tunnel until either side closes.
func HandleHTTPConnect(ctx context.Context, c net.Conn) {
	br := bufio.NewReader(c)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	_ = req.Body.Close()
	if req.Method != http.MethodConnect {
		_, _ = io.WriteString(c, "HTTP/1.1 405 Method Not Allowed\r\n\r\n")
		return
	}

	var d net.Dialer
	dst, err := d.DialContext(ctx, "tcp", req.Host)
	if err != nil {
		_, _ = io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		return
	}
	defer dst.Close()

	if _, err := io.WriteString(c, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return
	}
	splice(c, br, dst)
}

// HandleSOCKS5Connect serves one SOCKS5 CONNECT on c, requiring user/pass
// authentication when user is non-empty.
func HandleSOCKS5Connect(ctx context.Context, c net.Conn, user, pass string) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}

	if user == "" {
		if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
			return err
		}
	} else {
		if _, err := socks5.NewNegotiationReply(socks5.MethodUsernamePassword).WriteTo(c); err != nil {
			return err
		}
		urq, err := socks5.NewUserPassNegotiationRequestFrom(c)
		if err != nil {
			return err
		}
		if string(urq.Uname) != user || string(urq.Passwd) != pass {
			_, _ = socks5.NewUserPassNegotiationReply(socks5.UserPassStatusFailure).WriteTo(c)
			return nil
		}
		if _, err := socks5.NewUserPassNegotiationReply(socks5.UserPassStatusSuccess).WriteTo(c); err != nil {
			return err
		}
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return err
	}
	if req.Cmd != socks5.CmdConnect {
		_, _ = zeroReply(socks5.RepCommandNotSupported).WriteTo(c)
		return nil
	}

	var d net.Dialer
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = zeroReply(socks5.RepHostUnreachable).WriteTo(c)
		return nil
	}
	defer dst.Close()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	splice(c, c, dst)
	return nil
}

// RefuseSOCKS5Connect negotiates without auth and then refuses the CONNECT.
func RefuseSOCKS5Connect(c net.Conn) {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
		return
	}
	if _, err := socks5.NewRequestFrom(c); err != nil {
		return
	}
	_, _ = zeroReply(socks5.RepConnectionRefused).WriteTo(c)
}

func zeroReply(rep byte) *socks5.Reply {
	return socks5.NewReply(rep, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}

func splice(c net.Conn, r io.Reader, dst net.Conn) {
	go func() {
		_, _ = io.Copy(dst, r)
		_ = dst.Close()
	}()
	_, _ = io.Copy(c, dst)
}
