// Copyright 2017 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package xmpptest provides utilities for testing the session engine against
// a scripted server over an in-memory connection.
package xmpptest // import "github.com/iuvei/exmpp/internal/xmpptest"

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/iuvei/exmpp/transport"
)

// Transport wraps one end of an in-memory pipe as a transport. Layer upgrades
// are simulated: StartTLS and Compress only flip the corresponding flags, so
// machine behavior around upgrades can be driven without certificates or a
// real compressor.
type Transport struct {
	net.Conn

	mu         sync.Mutex
	secure     bool
	compressed bool

	// StartTLSErr and CompressErr, when set, are returned by the respective
	// upgrade to simulate handshake failures.
	StartTLSErr error
	CompressErr error
}

// StartTLS satisfies the transport.Transport interface.
func (t *Transport) StartTLS(_ *tls.Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.StartTLSErr != nil {
		return t.StartTLSErr
	}
	t.secure = true
	return nil
}

// Compress satisfies the transport.Transport interface.
func (t *Transport) Compress() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CompressErr != nil {
		return t.CompressErr
	}
	t.compressed = true
	return nil
}

// WhitespacePing satisfies the transport.Transport interface.
func (t *Transport) WhitespacePing() error {
	_, err := t.Write([]byte{' '})
	return err
}

// Type satisfies the transport.Transport interface.
func (t *Transport) Type() transport.Type {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.secure {
		return transport.TLS
	}
	return transport.TCP
}

// Property satisfies the transport.Transport interface.
func (t *Transport) Property(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch name {
	case transport.PropEncrypted:
		return strconv.FormatBool(t.secure), true
	case transport.PropCompressed:
		return strconv.FormatBool(t.compressed), true
	case transport.PropRemoteAddr:
		return "pipe", true
	}
	return "", false
}

// Server scripts the far end of the connection. Its methods fail the test on
// unexpected traffic instead of returning errors, keeping scenario scripts
// readable.
type Server struct {
	t    *testing.T
	conn net.Conn
	buf  bytes.Buffer
}

// NewPipe returns a client transport and the scripted server connected to it.
func NewPipe(t *testing.T) (*Transport, *Server) {
	client, server := net.Pipe()
	return &Transport{Conn: client}, &Server{t: t, conn: server}
}

// Expect reads until the accumulated client output contains substr, returning
// everything read so far (including earlier unconsumed output). It fails the
// test after a five second deadline.
func (s *Server) Expect(substr string) string {
	s.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	s.conn.SetReadDeadline(deadline)
	chunk := make([]byte, 4096)
	for !bytes.Contains(s.buf.Bytes(), []byte(substr)) {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.buf.Write(chunk[:n])
		}
		if err != nil {
			s.t.Fatalf("expect %q: %v (got %q)", substr, err, s.buf.String())
		}
	}
	out := s.buf.String()
	s.buf.Reset()
	return out
}

// ReadByte returns the next single byte from the client, honoring buffered
// output first.
func (s *Server) ReadByte() byte {
	s.t.Helper()
	if s.buf.Len() > 0 {
		b, _ := s.buf.ReadByte()
		return b
	}
	s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	one := make([]byte, 1)
	if _, err := s.conn.Read(one); err != nil {
		s.t.Fatalf("read byte: %v", err)
	}
	return one[0]
}

// Send writes a formatted chunk of XML to the client.
func (s *Server) Send(format string, args ...interface{}) {
	s.t.Helper()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(s.conn, format, args...); err != nil {
		s.t.Fatalf("send: %v", err)
	}
}

// SendStreamHeader sends a modern stream header with the given stream id.
func (s *Server) SendStreamHeader(id string) {
	s.Send(`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' id='%s' from='example.net' version='1.0'>`, id)
}

// SendLegacyStreamHeader sends a pre-RFC header without a version attribute.
func (s *Server) SendLegacyStreamHeader(id string) {
	s.Send(`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' id='%s' from='example.net'>`, id)
}

// Close tears down the server side of the pipe.
func (s *Server) Close() {
	s.conn.Close()
}
