package remote

import (
	"errors"
	"io"
	"net"
	"testing"
)

// fakeProxy accepts one connection and runs serve on it.
func fakeProxy(t *testing.T, serve func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}()
	return ln.Addr().String()
}

// socks5Server answers the greeting with method and any CONNECT with reply.
func socks5Server(method, reply byte) func(net.Conn) {
	return func(conn net.Conn) {
		greeting := make([]byte, 3)
		if _, err := io.ReadFull(conn, greeting); err != nil {
			return
		}
		if _, err := conn.Write([]byte{socks5Version, method}); err != nil || method != socks5AuthNone {
			return
		}
		head := make([]byte, 5)
		if _, err := io.ReadFull(conn, head); err != nil {
			return
		}
		rest := make([]byte, int(head[4])+2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}
		_, _ = conn.Write([]byte{socks5Version, reply, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		serve func(net.Conn)
		want  ProxyStatus
	}{
		{name: "working proxy", serve: socks5Server(socks5AuthNone, 0x00), want: ProxyStatusOK},
		{name: "host unreachable is still a proxy", serve: socks5Server(socks5AuthNone, 0x04), want: ProxyStatusOK},
		{name: "requires auth", serve: socks5Server(socks5AuthNoAccept, 0x00), want: ProxyStatusWrongType},
		{name: "http server", serve: func(conn net.Conn) {
			_, _ = io.WriteString(conn, "HTTP/1.1 400 Bad Request\r\n\r\n")
		}, want: ProxyStatusWrongType},
		{name: "closes immediately", serve: func(net.Conn) {}, want: ProxyStatusWrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			addr := fakeProxy(t, tt.serve)
			if got := CheckProxy(t.Context(), addr, "localhost:8000"); got != tt.want {
				t.Errorf("CheckProxy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckProxy_CannotConnect(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if got := CheckProxy(t.Context(), addr, "localhost:8000"); got != ProxyStatusCannotConnect {
		t.Errorf("CheckProxy() = %v, want %v", got, ProxyStatusCannotConnect)
	}
	if got := CheckProxy(t.Context(), "not-an-address", "localhost:8000"); got != ProxyStatusCannotConnect {
		t.Errorf("CheckProxy(invalid) = %v, want %v", got, ProxyStatusCannotConnect)
	}
}

func TestClient_CheckProxy(t *testing.T) {
	t.Parallel()

	c, err := NewClient("http://localhost:8000")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.CheckProxy(t.Context()); got != ProxyStatusOK {
		t.Errorf("CheckProxy() without proxy = %v, want OK", got)
	}

	addr := fakeProxy(t, socks5Server(socks5AuthNone, 0x00))
	c, err = NewClient("https://backend.internal", WithProxy(addr))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.CheckProxy(t.Context()); got != ProxyStatusOK {
		t.Errorf("CheckProxy() = %v, want OK", got)
	}
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want bool
	}{
		{addr: "127.0.0.1:9050", want: true},
		{addr: "proxy.internal:1080", want: true},
		{addr: "[::1]:1080", want: true},
		{addr: "127.0.0.1", want: false},
		{addr: ":1080", want: false},
		{addr: "host:0", want: false},
		{addr: "host:65536", want: false},
		{addr: "host:port", want: false},
	}
	for _, tt := range tests {
		if got := isValidProxyAddress(tt.addr); got != tt.want {
			t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  ProxyStatus
		str     string
		wantErr error
	}{
		{status: ProxyStatusOK, str: "OK"},
		{status: ProxyStatusWrongType, str: "wrong type (not SOCKS5)", wantErr: ErrProxyNotSOCKS5},
		{status: ProxyStatusCannotConnect, str: "cannot connect", wantErr: ErrProxyCannotConnect},
		{status: ProxyStatusTimeout, str: "timeout", wantErr: ErrProxyTimeout},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if err := tt.status.Err(); !errors.Is(err, tt.wantErr) {
			t.Errorf("Err() = %v, want %v", err, tt.wantErr)
		}
	}
	if ProxyStatus(99).Err() == nil {
		t.Error("unknown status should have an error")
	}
}
