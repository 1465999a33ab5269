// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package transport

import (
	"compress/zlib"
	"context"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"mellium.im/reader"

	"github.com/iuvei/exmpp/internal/discover"
)

// A Config contains options for establishing a TCP or TLS transport.
//
// The zero value is a valid configuration.
type Config struct {
	// Domain is the XMPP service domain. It is used for DNS SRV discovery and
	// as the default TLS server name.
	Domain string

	// LocalIP and LocalPort bind the source endpoint of the connection.
	LocalIP   string
	LocalPort uint16

	// Timeout bounds the connect phase (dialing plus, for TLS-on-connect, the
	// handshake). Zero means no transport-level timeout; callers normally pass
	// a context with a deadline as well.
	Timeout time.Duration

	// TLSConfig is used for TLS-on-connect and for later StartTLS upgrades.
	// A nil config is interpreted as a tls.Config with ServerName set to the
	// domain.
	TLSConfig *tls.Config

	// Resolver allows overriding DNS resolution for SRV discovery.
	Resolver *net.Resolver
}

func (cfg *Config) tlsConfig() *tls.Config {
	if cfg.TLSConfig != nil {
		return cfg.TLSConfig
	}
	return &tls.Config{ServerName: cfg.Domain}
}

func (cfg *Config) dialer() *net.Dialer {
	d := &net.Dialer{Timeout: cfg.Timeout}
	if cfg.LocalIP != "" || cfg.LocalPort != 0 {
		d.LocalAddr = &net.TCPAddr{
			IP:   net.ParseIP(cfg.LocalIP),
			Port: int(cfg.LocalPort),
		}
	}
	return d
}

// Conn is a stream transport over TCP, optionally layered with TLS and zlib
// compression.
type Conn struct {
	mu sync.RWMutex

	raw net.Conn // the socket
	top io.ReadWriter

	tlsConn    *tls.Conn
	tlsConfig  *tls.Config
	compressed bool
	typ        Type
}

// DialTCP discovers and connects to an XMPP service on a plain TCP socket.
//
// When port is zero the host list is discovered via "_xmpp-client._tcp" SRV
// records for cfg.Domain, falling back to host (or the domain itself) on port
// 5222. A non-zero port connects to host:port directly.
func DialTCP(ctx context.Context, host string, port uint16, cfg Config) (*Conn, error) {
	return dial(ctx, host, port, cfg, false)
}

// DialTLS is like DialTCP but negotiates TLS immediately after the socket is
// established ("TLS on connect", conventionally port 5223).
func DialTLS(ctx context.Context, host string, port uint16, cfg Config) (*Conn, error) {
	return dial(ctx, host, port, cfg, true)
}

func dial(ctx context.Context, host string, port uint16, cfg Config, secure bool) (*Conn, error) {
	addrs, err := candidates(ctx, host, port, cfg, secure)
	if err != nil {
		return nil, err
	}

	d := cfg.dialer()
	var raw net.Conn
	for _, addr := range addrs {
		hostport := net.JoinHostPort(addr.Target, strconv.FormatUint(uint64(addr.Port), 10))
		raw, err = d.DialContext(ctx, "tcp", hostport)
		if err == nil {
			break
		}
	}
	if raw == nil {
		return nil, err
	}

	c := &Conn{
		raw:       raw,
		top:       raw,
		tlsConfig: cfg.tlsConfig(),
		typ:       TCP,
	}
	if secure {
		if err = c.StartTLS(nil); err != nil {
			raw.Close()
			return nil, err
		}
	}
	return c, nil
}

// candidates builds the ordered list of endpoints to try. An explicit port
// short-circuits discovery.
func candidates(ctx context.Context, host string, port uint16, cfg Config, secure bool) ([]*net.SRV, error) {
	if port != 0 {
		return []*net.SRV{{Target: host, Port: port}}, nil
	}
	service := "xmpp-client"
	if secure {
		service = "xmpps-client"
	}
	domain := cfg.Domain
	if domain == "" {
		domain = host
	}
	addrs, err := discover.LookupService(ctx, cfg.Resolver, service, domain)
	if err != nil || len(addrs) == 0 {
		// Lookup failed outright; use the provided server name and the
		// default port.
		fallback := host
		if fallback == "" {
			fallback = domain
		}
		return discover.FallbackRecords(service, fallback), nil
	}
	return addrs, nil
}

// Read reads from the top layer of the connection.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.RLock()
	top := c.top
	c.mu.RUnlock()
	return top.Read(p)
}

// Write writes through the top layer of the connection.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.RLock()
	top := c.top
	c.mu.RUnlock()
	return top.Write(p)
}

// Close closes the underlying socket. Any blocked read returns an error.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// StartTLS performs the client side of an in-place TLS handshake. A nil cfg
// uses the config the transport was dialed with.
//
// The TLS layer is built directly on the socket and becomes the top layer; a
// compression layer engaged earlier is not kept underneath it. The engine
// always negotiates TLS before compression.
func (c *Conn) StartTLS(cfg *tls.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tlsConn != nil {
		return ErrAlreadySecure
	}
	if cfg == nil {
		cfg = c.tlsConfig
	}
	tlsConn := tls.Client(c.raw, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.tlsConn = tlsConn
	c.top = tlsConn
	c.typ = TLS
	return nil
}

// Compress engages zlib compression on top of the current layers.
//
// The compressed reader cannot be constructed eagerly: zlib.NewReader blocks
// until it can read the stream header, but the server won't send compressed
// bytes until we have sent our own stream restart. Reader setup is therefore
// deferred until the first read after the upgrade.
func (c *Conn) Compress() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.compressed {
		return ErrAlreadyCompressed
	}
	base := c.top
	zw := zlib.NewWriter(base)

	var zr io.ReadCloser
	lazy := reader.Func(func(p []byte) (int, error) {
		if zr == nil {
			r, err := zlib.NewReader(base)
			if err != nil {
				return 0, err
			}
			zr = r
		}
		return zr.Read(p)
	})

	c.top = struct {
		io.Reader
		io.Writer
	}{
		Reader: lazy,
		Writer: flushWriter{zw},
	}
	c.compressed = true
	return nil
}

// flushWriter flushes the zlib layer after every write so that complete
// elements hit the wire immediately instead of sitting in the compressor.
type flushWriter struct {
	zw *zlib.Writer
}

func (w flushWriter) Write(p []byte) (int, error) {
	n, err := w.zw.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.zw.Flush()
}

// WhitespacePing emits a single space byte on the stream.
func (c *Conn) WhitespacePing() error {
	_, err := c.Write([]byte{' '})
	return err
}

// Type reports TCP before a TLS handshake and TLS after.
func (c *Conn) Type() Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.typ
}

// ConnectionState returns the TLS state of the connection and whether TLS has
// been negotiated. It is used to bind SASL mechanisms to the TLS channel.
func (c *Conn) ConnectionState() (tls.ConnectionState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tlsConn == nil {
		return tls.ConnectionState{}, false
	}
	return c.tlsConn.ConnectionState(), true
}

// Property satisfies the Transport interface.
func (c *Conn) Property(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch name {
	case PropLocalAddr:
		return c.raw.LocalAddr().String(), true
	case PropRemoteAddr:
		return c.raw.RemoteAddr().String(), true
	case PropEncrypted:
		return strconv.FormatBool(c.tlsConn != nil), true
	case PropCompressed:
		return strconv.FormatBool(c.compressed), true
	}
	return "", false
}

// NewConn wraps an existing connection in a transport without dialing. It is
// used for TLS-on-connect sockets accepted elsewhere and by tests.
func NewConn(raw net.Conn, cfg Config) *Conn {
	c := &Conn{
		raw:       raw,
		top:       raw,
		tlsConfig: cfg.tlsConfig(),
		typ:       TCP,
	}
	if tlsConn, ok := raw.(*tls.Conn); ok {
		c.tlsConn = tlsConn
		c.typ = TLS
	}
	return c
}
