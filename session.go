// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"context"
	"time"

	"mellium.im/sasl"

	"github.com/iuvei/exmpp/internal"
	"github.com/iuvei/exmpp/jid"
	"github.com/iuvei/exmpp/stanza"
	"github.com/iuvei/exmpp/stream"
	"github.com/iuvei/exmpp/transport"
)

// input is one unit of work for the session actor: exactly one of cmd or ev
// is set.
type input struct {
	cmd *command
	ev  parserEvent
}

type cmdKind int

const (
	cmdSetAuth cmdKind = iota
	cmdConnect
	cmdLogin
	cmdRegister
	cmdSend
	cmdProperty
	cmdSetOwner
	cmdStop
)

// command carries an owner request into the actor along with a one-shot
// reply channel.
type command struct {
	kind cmdKind

	// set auth
	method   AuthMethod
	addr     jid.JID
	password string

	// connect; the actor supplies the resolved service domain when dialing.
	dial func(ctx context.Context, domain string) (transport.Transport, error)
	opts Options

	// login
	mechanism string

	// register
	username string

	// send
	packet *stanza.Element

	// property / owner redirection
	name  string
	owner chan<- Packet

	reply chan cmdResult
}

type cmdResult struct {
	streamID string
	jid      jid.JID
	id       string
	value    string
	err      error
}

// Session is a client-side XMPP session engine.
//
// All protocol state lives in a single goroutine; the exported methods are
// safe for concurrent use and are serialized onto the actor's input channel.
type Session struct {
	inputs chan input
	done   chan struct{}

	// Owner notification channel. The session writes, the owner reads;
	// SetControllingProcess redirects delivery.
	packets chan Packet

	// Everything below is owned by the run goroutine.
	state   sessionState
	version stream.Version

	credentials jid.JID
	password    string
	method      AuthMethod

	opts   Options
	domain string

	tr     transport.Transport
	parser *streamParser

	streamID string
	features *streamFeatures

	pending *command
	opTimer *time.Timer

	saslClient *sasl.Negotiator

	legacyMethod AuthMethod
	pendingIQID  string

	boundJID jid.JID

	authenticated bool
	compressed    bool
	encrypted     bool

	lastStreamErr string

	owner     chan<- Packet
	pingTimer *time.Timer

	stopped    bool
	stopReason error
}

// New creates a session that negotiates modern (version 1.0) streams.
func New() *Session {
	return NewVersion(stream.DefaultVersion)
}

// NewVersion creates a session speaking the given stream version. Anything
// below 1.0 selects legacy pre-RFC streams without feature negotiation;
// STARTTLS, compression, and SASL all require 1.0.
func NewVersion(v stream.Version) *Session {
	s := &Session{
		inputs:  make(chan input),
		done:    make(chan struct{}),
		packets: make(chan Packet, 64),
		state:   stateSetup,
		version: v,
	}
	s.owner = s.packets
	go s.run()
	return s
}

// Packets returns the default owner notification channel. Stanzas and stream
// errors are delivered on it in wire order.
func (s *Session) Packets() <-chan Packet {
	return s.packets
}

// Done is closed when the session terminates.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// StreamError returns the last received stream error condition, if any. It is
// meaningful once the session has terminated.
func (s *Session) StreamError() string {
	select {
	case <-s.done:
		return s.lastStreamErr
	default:
		return ""
	}
}

// SetCredentials stores the JID and password used for authentication. The
// address must carry at least a localpart and domainpart.
func (s *Session) SetCredentials(address, password string) error {
	j, err := jid.Parse(address)
	if err != nil || j.Localpart() == "" {
		return ErrIncorrectJID
	}
	res := s.do(context.Background(), &command{
		kind:     cmdSetAuth,
		method:   AuthUnset,
		addr:     j,
		password: password,
	})
	return res.err
}

// SetAuthMethod selects the method a later Login will use.
func (s *Session) SetAuthMethod(m AuthMethod) error {
	res := s.do(context.Background(), &command{kind: cmdSetAuth, method: m})
	return res.err
}

// SetAuth stores credentials and selects the authentication method in one
// call.
func (s *Session) SetAuth(m AuthMethod, address, password string) error {
	j, err := jid.Parse(address)
	if err != nil || j.Localpart() == "" {
		return ErrIncorrectJID
	}
	res := s.do(context.Background(), &command{
		kind:     cmdSetAuth,
		method:   m,
		addr:     j,
		password: password,
	})
	return res.err
}

// ConnectTCP opens a plain TCP connection to the given host and port and
// performs the stream opening handshake. It returns the server-assigned
// stream identifier.
//
// A zero port enables DNS SRV discovery for the service domain. The call
// blocks until the stream is open, the configured connect timeout elapses, or
// ctx is done.
func (s *Session) ConnectTCP(ctx context.Context, host string, port uint16, opts Options) (string, error) {
	cmd := &command{kind: cmdConnect, opts: opts}
	cmd.dial = func(ctx context.Context, domain string) (transport.Transport, error) {
		return transport.DialTCP(ctx, host, port, transportConfig(domain, opts))
	}
	res := s.do(ctx, cmd)
	return res.streamID, res.err
}

// ConnectTLS is like ConnectTCP but negotiates TLS immediately on connect
// (conventionally port 5223). The stream is encrypted before the first XML
// byte is exchanged.
func (s *Session) ConnectTLS(ctx context.Context, host string, port uint16, opts Options) (string, error) {
	cmd := &command{kind: cmdConnect, opts: opts}
	cmd.dial = func(ctx context.Context, domain string) (transport.Transport, error) {
		return transport.DialTLS(ctx, host, port, transportConfig(domain, opts))
	}
	res := s.do(ctx, cmd)
	return res.streamID, res.err
}

// ConnectBOSH connects through an XEP-0124 connection manager at url. The
// host argument names the XMPP service domain when it differs from the
// credential domain.
func (s *Session) ConnectBOSH(ctx context.Context, url, host string, opts Options) (string, error) {
	cmd := &command{kind: cmdConnect, opts: opts}
	if opts.Domain == "" {
		opts.Domain = host
		cmd.opts = opts
	}
	cmd.dial = func(ctx context.Context, domain string) (transport.Transport, error) {
		return transport.DialBOSH(ctx, url, transport.BOSHConfig{
			Domain:  domain,
			Timeout: opts.connectTimeout(),
		})
	}
	res := s.do(ctx, cmd)
	return res.streamID, res.err
}

// ConnectTransport performs the stream opening handshake over an already
// established transport. It is chiefly useful with in-memory connections in
// tests and with custom transport implementations.
func (s *Session) ConnectTransport(ctx context.Context, tr transport.Transport, opts Options) (string, error) {
	cmd := &command{kind: cmdConnect, opts: opts}
	cmd.dial = func(ctx context.Context, domain string) (transport.Transport, error) {
		return tr, nil
	}
	res := s.do(ctx, cmd)
	return res.streamID, res.err
}

func transportConfig(domain string, opts Options) transport.Config {
	return transport.Config{
		Domain:    domain,
		LocalIP:   opts.LocalIP,
		LocalPort: opts.LocalPort,
		Timeout:   opts.connectTimeout(),
		TLSConfig: opts.TLSConfig,
	}
}

// Login authenticates the session using the configured method and negotiates
// resource binding and session establishment. It returns the bound JID.
func (s *Session) Login(ctx context.Context) (jid.JID, error) {
	res := s.do(ctx, &command{kind: cmdLogin})
	return res.jid, res.err
}

// LoginMechanism is like Login but forces the named SASL mechanism ("PLAIN",
// "ANONYMOUS", or "DIGEST-MD5") regardless of the configured method.
func (s *Session) LoginMechanism(ctx context.Context, mechanism string) (jid.JID, error) {
	res := s.do(ctx, &command{kind: cmdLogin, mechanism: mechanism})
	return res.jid, res.err
}

// RegisterAccount performs XEP-0077 in-band registration of the given
// username and password on the connected server.
func (s *Session) RegisterAccount(ctx context.Context, username, password string) error {
	res := s.do(ctx, &command{
		kind:     cmdRegister,
		username: username,
		password: password,
	})
	return res.err
}

// SendPacket transmits a stanza. A missing id attribute is assigned a fresh
// generated identifier; the id actually sent is returned so replies can be
// correlated.
func (s *Session) SendPacket(el *stanza.Element) (string, error) {
	res := s.do(context.Background(), &command{kind: cmdSend, packet: el})
	return res.id, res.err
}

// ConnectionProperty queries transport metadata such as "remote_addr" or
// "compressed". It is valid in any state once connected.
func (s *Session) ConnectionProperty(name string) (string, error) {
	res := s.do(context.Background(), &command{kind: cmdProperty, name: name})
	return res.value, res.err
}

// SetControllingProcess redirects stanza notifications to ch. Packets already
// queued on the previous channel are not moved.
func (s *Session) SetControllingProcess(ch chan<- Packet) error {
	res := s.do(context.Background(), &command{kind: cmdSetOwner, owner: ch})
	return res.err
}

// Stop terminates the session: the stream is closed, the transport torn
// down, and any blocked command receives ErrSessionStopped. Stop is
// idempotent.
func (s *Session) Stop() {
	s.do(context.Background(), &command{kind: cmdStop})
}

// do submits a command to the actor and waits for its reply.
func (s *Session) do(ctx context.Context, cmd *command) cmdResult {
	cmd.reply = make(chan cmdResult, 1)
	select {
	case s.inputs <- input{cmd: cmd}:
	case <-s.done:
		return cmdResult{err: ErrSessionStopped}
	case <-ctx.Done():
		return cmdResult{err: ctx.Err()}
	}
	select {
	case res := <-cmd.reply:
		return res
	case <-s.done:
		// The actor replies to a parked command before closing done; a race
		// between the two selects is resolved in favor of the reply.
		select {
		case res := <-cmd.reply:
			return res
		default:
		}
		return cmdResult{err: ErrSessionStopped}
	case <-ctx.Done():
		return cmdResult{err: ctx.Err()}
	}
}

// run is the session actor: it processes exactly one input at a time.
func (s *Session) run() {
	for !s.stopped {
		var opC, pingC <-chan time.Time
		if s.opTimer != nil {
			opC = s.opTimer.C
		}
		if s.pingTimer != nil {
			pingC = s.pingTimer.C
		}

		select {
		case in := <-s.inputs:
			s.touchPingTimer()
			if in.cmd != nil {
				s.handleCommand(in.cmd)
			} else {
				s.handleEvent(in.ev)
				if s.parser != nil {
					s.parser.Resume()
				}
			}
		case <-opC:
			s.opTimer = nil
			s.handleOpTimeout()
		case <-pingC:
			s.handlePingTimeout()
		}
	}
	s.shutdown()
}

// shutdown releases the parser and transport and replies to any parked
// command with the termination reason.
func (s *Session) shutdown() {
	reason := s.stopReason
	if reason == nil {
		reason = ErrSessionStopped
	}
	s.replyPending(cmdResult{err: reason})
	if s.parser != nil {
		s.parser.Stop()
		s.parser = nil
	}
	if s.tr != nil {
		tr := s.tr
		s.tr = nil
		// Send the closing tag best-effort from a separate goroutine: if the
		// peer is gone the write would block forever, and Close below
		// unblocks it.
		go stream.End(tr)
		tr.Close()
	}
	if s.opTimer != nil {
		s.opTimer.Stop()
	}
	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	s.state = stateStreamClosed
	close(s.done)
}

// park stores cmd as the single pending reply and arms the operation timer.
func (s *Session) park(cmd *command, timeout time.Duration) {
	s.pending = cmd
	if timeout > 0 {
		s.opTimer = time.NewTimer(timeout)
	}
}

// replyPending completes the parked command, if any, and disarms the
// operation timer.
func (s *Session) replyPending(res cmdResult) {
	if s.opTimer != nil {
		s.opTimer.Stop()
		s.opTimer = nil
	}
	if s.pending == nil {
		return
	}
	s.pending.reply <- res
	s.pending = nil
}

// notify delivers a packet to the owning client. Delivery blocks the actor if
// the owner stops draining its channel, preserving arrival order.
func (s *Session) notify(p Packet) {
	s.owner <- p
}

// touchPingTimer re-arms the idle timer; any input counts as activity.
func (s *Session) touchPingTimer() {
	if s.pingTimer == nil {
		return
	}
	if !s.pingTimer.Stop() {
		select {
		case <-s.pingTimer.C:
		default:
		}
	}
	s.pingTimer.Reset(s.opts.WhitespacePing)
}

func (s *Session) armPingTimer() {
	if s.opts.WhitespacePing <= 0 || s.pingTimer != nil {
		return
	}
	s.pingTimer = time.NewTimer(s.opts.WhitespacePing)
}

func (s *Session) handlePingTimeout() {
	if s.state == stateLoggedIn && s.tr != nil {
		s.tr.WhitespacePing()
	}
	s.pingTimer.Reset(s.opts.WhitespacePing)
}

// genID produces a fresh stanza identifier with the session tag so generated
// ids are recognizable in logs.
func genID() string {
	return "session-" + internal.RandomID(internal.IDLen)
}
