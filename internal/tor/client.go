package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake check.
const checkProxyTimeout = 3 * time.Second

// maxRedirects is the number of redirects an address endpoint may issue.
const maxRedirects = 3

// Client routes traffic through the Tor daemon's SOCKS5 port.
type Client struct {
	// proxyAddress is the SOCKS5 listener in "host:port" form.
	proxyAddress string

	// dialer is the SOCKS5 dialer. It is created once and shared by every
	// HTTP client this Client hands out.
	dialer proxy.Dialer

	// timeout is the per-request timeout of HTTP clients.
	timeout time.Duration
}

// NewClient creates a Client for the SOCKS5 proxy at proxyAddress.
// It does not contact the proxy; call CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port accepts unauthenticated clients.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress reports whether address is "host:port" with a
// non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the per-request timeout used by HTTP clients.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// DialContext opens a TCP stream through the proxy. When the underlying
// dialer supports contexts the dial is cancelled with ctx; otherwise the
// dial runs in a goroutine and is abandoned on cancellation.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if result := <-resultCh; result.conn != nil {
				_ = result.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// NewHTTPClient returns an HTTP client whose every request goes through
// the proxy.
//
// Host names are passed to the proxy unresolved, so no local DNS lookup
// happens. Keep-alives are disabled: after a NEWNYM signal the daemon only applies
// the new circuit to new streams, so a pooled connection would report the
// pre-rotation address.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:        c.DialContext,
		DisableKeepAlives:  true,
		DisableCompression: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// SOCKS5 protocol constants used by CheckConnection.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestOnion is a synthetic, non-existent onion address. Only the
	// proxy's reply to the CONNECT matters, not whether it succeeds.
	socks5TestOnion = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
)

// CheckConnection performs a SOCKS5 greeting and a CONNECT to a synthetic
// onion address. A proxy that answers both with well-formed SOCKS5 replies
// is considered a working Tor SOCKS port.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, "no auth".
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return statusFromReadError(err)
	}
	if reply[0] != socks5Version || reply[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(socks5TestOnion))}
	req = append(req, socks5TestOnion...)
	req = append(req, 0x00, 80)
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// Version, reply code, reserved, address type. Any reply code is fine.
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return statusFromReadError(err)
	}
	if header[0] != socks5Version {
		return ProxyStatusWrongType
	}

	return ProxyStatusOK
}

// statusFromReadError maps a handshake read error to a ProxyStatus.
func statusFromReadError(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
