package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

const checkTimeout = 2 * time.Second

// SOCKS5 bytes used by Check.
const (
	socksVersion    = 0x05
	socksNoAuth     = 0x00
	socksConnect    = 0x01
	socksDomainAddr = 0x03

	// probeHost is a syntactically valid onion host that does not exist. The
	// proxy only has to answer the CONNECT, not reach it.
	probeHost = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
)

// Transport dials through a Tor SOCKS5 proxy.
type Transport struct {
	addr    string
	dialer  proxy.Dialer
	timeout time.Duration
}

// NewTransport creates a transport for the proxy at addr ("127.0.0.1:9050").
// The proxy is not contacted; use Check for that.
func NewTransport(addr string, timeout time.Duration) (*Transport, error) {
	if !validProxyAddress(addr) {
		return nil, ErrInvalidProxyAddress
	}
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return &Transport{addr: addr, dialer: dialer, timeout: timeout}, nil
}

// Addr returns the proxy address.
func (t *Transport) Addr() string { return t.addr }

func validProxyAddress(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// DialContext connects to address through the proxy.
func (t *Transport) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := t.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}
	return t.dialer.Dial(network, address)
}

// HTTPClient returns a client whose every request goes through the proxy.
// Certificates are not verified since onion services authenticate through
// their address. Extra headers, such as a cookie, are added to every
// request including redirects.
func (t *Transport) HTTPClient(headers map[string]string) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		DialContext:         t.DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // onion services use self-signed certificates
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}
	if len(headers) > 0 {
		rt = &headerTransport{base: rt, headers: headers}
	}
	jar, _ := cookiejar.New(nil) //nolint:errcheck // only fails with invalid options
	return &http.Client{
		Transport: rt,
		Timeout:   t.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range h.headers {
		clone.Header.Set(k, v)
	}
	return h.base.RoundTrip(clone)
}

// Check performs a SOCKS5 handshake and a CONNECT to a fake onion host. It
// returns nil for a working proxy, otherwise ErrProxyNotTor,
// ErrProxyCannotConnect or ErrProxyTimeout.
func (t *Transport) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrProxyTimeout
		}
		return ErrProxyCannotConnect
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(checkTimeout)); err != nil {
		return ErrProxyCannotConnect
	}

	if _, err := conn.Write([]byte{socksVersion, 0x01, socksNoAuth}); err != nil {
		return ErrProxyCannotConnect
	}
	greeting := make([]byte, 2)
	if err := readReply(conn, greeting); err != nil {
		return err
	}
	if greeting[0] != socksVersion || greeting[1] != socksNoAuth {
		return ErrProxyNotTor
	}

	req := []byte{socksVersion, socksConnect, 0x00, socksDomainAddr, byte(len(probeHost))}
	req = append(req, probeHost...)
	req = append(req, 0x00, 80)
	if _, err := conn.Write(req); err != nil {
		return ErrProxyCannotConnect
	}
	reply := make([]byte, 4)
	if err := readReply(conn, reply); err != nil {
		return err
	}
	// Any reply code is fine: Tor answers "host unreachable" for the probe.
	if reply[0] != socksVersion {
		return ErrProxyNotTor
	}
	return nil
}

func readReply(conn net.Conn, buf []byte) error {
	if _, err := io.ReadFull(conn, buf); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ErrProxyTimeout
		}
		return ErrProxyNotTor
	}
	return nil
}
