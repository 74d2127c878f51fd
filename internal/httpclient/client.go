// Package httpclient builds the HTTP clients used against the platform's
// web and media endpoints: browser-like TLS fingerprinting and transparent
// content decoding.
package httpclient

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"

	"github.com/famomatic/ytfetch/internal/logging"
)

// Config controls client construction. The zero value yields a pooled
// client with content decoding and no TLS fingerprinting.
type Config struct {
	Timeout time.Duration
	// BrowserTLS swaps in a Chrome TLS fingerprint. The platform's edge
	// serves different player responses to clients it does not recognize.
	BrowserTLS bool
	// Jar carries session cookies across requests. Nil builds an empty
	// in-memory jar.
	Jar http.CookieJar
	// ProxyURL routes requests through an http, https or socks5 proxy.
	// Ignored when BrowserTLS is set: the fingerprinted dialer connects
	// directly.
	ProxyURL string
	Logger   *slog.Logger
}

// New builds an *http.Client per the config.
func New(cfg Config) *http.Client {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar := cfg.Jar
	if jar == nil {
		jar, _ = cookiejar.New(nil)
	}

	var base http.RoundTripper
	if cfg.BrowserTLS {
		base = newBrowserRoundTripper()
	} else {
		transport := &http.Transport{
			// Decoding belongs to decodingRoundTripper so ranged media
			// requests can opt out.
			DisableCompression:    true,
			DialContext:           ipv4DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}
		if cfg.ProxyURL != "" {
			if err := configureProxy(transport, cfg.ProxyURL); err != nil {
				log.Warn("proxy configuration ignored", "proxy", cfg.ProxyURL, "err", err)
			}
		}
		base = transport
	}

	return &http.Client{
		Transport: &decodingRoundTripper{base: base},
		Jar:       jar,
		Timeout:   timeout,
	}
}

// configureProxy wires the transport to an http(s) or socks5(h) proxy.
func configureProxy(transport *http.Transport, proxyURL string) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
		return nil
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(parsed, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 dialer: %w", err)
		}
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
		return nil
	default:
		return fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
	}
}

// ipv4DialContext forces IPv4. The platform's media hosts publish AAAA
// records that are unreachable from some networks.
func ipv4DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network == "tcp" {
		network = "tcp4"
	}
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 60 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// decodingRoundTripper advertises compressed encodings and unwraps them
// transparently, the way a browser would.
type decodingRoundTripper struct {
	base http.RoundTripper
}

func (t *decodingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Header.Get("Range") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "gzip, br")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body = &wrappedBody{Reader: gz, underlying: resp.Body}
	case "br":
		resp.Body = &wrappedBody{Reader: brotli.NewReader(resp.Body), underlying: resp.Body}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type wrappedBody struct {
	io.Reader
	underlying io.ReadCloser
}

func (b *wrappedBody) Close() error {
	return b.underlying.Close()
}

// browserRoundTripper dials with a Chrome TLS ClientHello and speaks
// whichever protocol the handshake negotiates.
type browserRoundTripper struct {
	dialer      *net.Dialer
	h2Transport *http2.Transport
}

func newBrowserRoundTripper() *browserRoundTripper {
	return &browserRoundTripper{
		dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		},
		h2Transport: &http2.Transport{},
	}
}

func (t *browserRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return http.DefaultTransport.RoundTrip(req)
	}

	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr += ":443"
	}
	conn, err := t.dialer.DialContext(req.Context(), "tcp4", addr)
	if err != nil {
		return nil, err
	}

	tlsConn := utls.UClient(conn, &utls.Config{
		ServerName: req.URL.Hostname(),
	}, utls.HelloChrome_120)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	if tlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		h2Conn, err := t.h2Transport.NewClientConn(tlsConn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2Conn.RoundTrip(req)
	}
	return t.doHTTP1Request(tlsConn, req)
}

func (t *browserRoundTripper) doHTTP1Request(conn net.Conn, req *http.Request) (*http.Response, error) {
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body = &connCloser{ReadCloser: resp.Body, conn: conn}
	return resp, nil
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}
