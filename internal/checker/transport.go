package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// maxBodyBytes caps how much of the echo response is read.
const maxBodyBytes = 64 * 1024

// Response is what a probe needs from the test endpoint.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport issues one GET to target tunnelled through proxyURL.
// Implementations must not retry.
type Transport interface {
	Get(ctx context.Context, proxyURL *url.URL, target string) (*Response, error)
}

// HTTPTransport is the network-backed Transport. Every call builds its own
// http.Transport so concurrent probes never share proxy settings or pooled
// connections.
type HTTPTransport struct {
	timeout time.Duration
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{timeout: timeout}
}

func (t *HTTPTransport) Get(ctx context.Context, proxyURL *url.URL, target string) (*Response, error) {
	transport, err := t.roundTripper(proxyURL)
	if err != nil {
		return nil, err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   t.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Don't follow redirects
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (t *HTTPTransport) roundTripper(proxyURL *url.URL) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   t.timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		ForceAttemptHTTP2:   false, // Disable HTTP/2 for proxy checking
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: t.timeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // Required for proxy checking
		},
	}

	switch proxyURL.Scheme {
	case "socks5":
		// FromURL picks credentials out of the URL userinfo.
		socksDialer, err := proxy.FromURL(proxyURL, dialer)
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 dialer: %w", err)
		}
		if cd, ok := socksDialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return socksDialer.Dial(network, addr)
			}
		}

	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = dialer.DialContext

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, proxyURL.Scheme)
	}

	return transport, nil
}
