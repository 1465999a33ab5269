// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"

	"github.com/iuvei/exmpp/internal/ns"
	"github.com/iuvei/exmpp/stanza"
	"github.com/iuvei/exmpp/stream"
	"github.com/iuvei/exmpp/transport"
)

// sessionState enumerates the states of the session machine.
type sessionState int

const (
	stateSetup sessionState = iota
	stateWaitForStream
	stateWaitForStreamFeatures
	stateWaitForStarttlsResult
	stateWaitForCompressionResult
	stateWaitForBindResponse
	stateWaitForSessionResponse
	stateStreamOpened
	stateWaitForLegacyAuthMethod
	stateWaitForAuthResult
	stateWaitForSaslResponse
	stateWaitForRegisterResult
	stateLoggedIn
	stateStreamError
	stateStreamClosed
)

func (st sessionState) String() string {
	switch st {
	case stateSetup:
		return "setup"
	case stateWaitForStream:
		return "wait_for_stream"
	case stateWaitForStreamFeatures:
		return "wait_for_stream_features"
	case stateWaitForStarttlsResult:
		return "wait_for_starttls_result"
	case stateWaitForCompressionResult:
		return "wait_for_compression_result"
	case stateWaitForBindResponse:
		return "wait_for_bind_response"
	case stateWaitForSessionResponse:
		return "wait_for_session_response"
	case stateStreamOpened:
		return "stream_opened"
	case stateWaitForLegacyAuthMethod:
		return "wait_for_legacy_auth_method"
	case stateWaitForAuthResult:
		return "wait_for_auth_result"
	case stateWaitForSaslResponse:
		return "wait_for_sasl_response"
	case stateWaitForRegisterResult:
		return "wait_for_register_result"
	case stateLoggedIn:
		return "logged_in"
	case stateStreamError:
		return "stream_error"
	case stateStreamClosed:
		return "stream_closed"
	}
	return "unknown"
}

// write sends bytes over the transport; a write failure is fatal to the
// session.
func (s *Session) write(p []byte) bool {
	if s.tr == nil {
		s.fatal(ErrNotConnected)
		return false
	}
	if _, err := s.tr.Write(p); err != nil {
		s.fatal(err)
		return false
	}
	return true
}

func (s *Session) writef(format string, args ...interface{}) bool {
	return s.write([]byte(fmt.Sprintf(format, args...)))
}

// xmlEscape escapes character data for inclusion in a stanza.
func xmlEscape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// fatal terminates the session with the given reason.
func (s *Session) fatal(err error) {
	s.replyPending(cmdResult{err: err})
	s.stopped = true
	s.stopReason = err
}

// ---------------------------------------------------------------------------
// Owner commands

func (s *Session) handleCommand(cmd *command) {
	switch cmd.kind {
	case cmdStop:
		s.stopped = true
		s.stopReason = ErrSessionStopped
		cmd.reply <- cmdResult{}

	case cmdSetAuth:
		s.handleSetAuth(cmd)

	case cmdConnect:
		s.handleConnect(cmd)

	case cmdLogin:
		s.handleLogin(cmd)

	case cmdRegister:
		s.handleRegister(cmd)

	case cmdSend:
		s.handleSend(cmd)

	case cmdProperty:
		if s.tr == nil {
			cmd.reply <- cmdResult{err: ErrNotConnected}
			return
		}
		v, ok := s.tr.Property(cmd.name)
		if !ok {
			cmd.reply <- cmdResult{err: fmt.Errorf("exmpp: property %q not supported", cmd.name)}
			return
		}
		cmd.reply <- cmdResult{value: v}

	case cmdSetOwner:
		s.owner = cmd.owner
		cmd.reply <- cmdResult{}

	default:
		cmd.reply <- cmdResult{err: ErrUnallowedCommand}
	}
}

func (s *Session) handleSetAuth(cmd *command) {
	if s.state != stateSetup && s.state != stateStreamOpened {
		cmd.reply <- cmdResult{err: ErrUnallowedCommand}
		return
	}
	if !cmd.addr.Zero() {
		s.credentials = cmd.addr
		s.password = cmd.password
	}
	if cmd.method != AuthUnset {
		s.method = cmd.method
	}
	cmd.reply <- cmdResult{}
}

func (s *Session) handleConnect(cmd *command) {
	if s.pending != nil {
		cmd.reply <- cmdResult{err: ErrBusyConnecting}
		return
	}
	if s.state != stateSetup {
		cmd.reply <- cmdResult{err: ErrUnallowedCommand}
		return
	}
	if s.credentials.Zero() && cmd.opts.Domain == "" {
		cmd.reply <- cmdResult{err: ErrAuthOrDomainUndefined}
		return
	}

	s.opts = cmd.opts
	s.domain = cmd.opts.Domain
	if s.domain == "" {
		s.domain = s.credentials.Domainpart()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmd.opts.connectTimeout())
	tr, err := cmd.dial(ctx, s.domain)
	cancel()
	if err != nil {
		cmd.reply <- cmdResult{err: &ConnectError{Err: err}}
		return
	}

	s.tr = tr
	if v, ok := tr.Property(transport.PropEncrypted); ok && v == "true" {
		s.encrypted = true
	}
	s.parser = newStreamParser(tr, s.inputs)
	go s.parser.run()

	if err := stream.Send(tr, s.domain, s.version); err != nil {
		s.teardownTransport()
		cmd.reply <- cmdResult{err: &ConnectError{Err: err}}
		return
	}
	s.park(cmd, cmd.opts.connectTimeout())
	s.state = stateWaitForStream
}

func (s *Session) handleLogin(cmd *command) {
	if s.pending != nil {
		cmd.reply <- cmdResult{err: ErrBusyConnecting}
		return
	}
	switch s.state {
	case stateStreamOpened:
	case stateSetup:
		cmd.reply <- cmdResult{err: ErrNotConnected}
		return
	default:
		cmd.reply <- cmdResult{err: ErrUnallowedCommand}
		return
	}

	method := s.method
	if cmd.mechanism != "" {
		method = MethodForMechanism(cmd.mechanism)
		if method == AuthUnset {
			cmd.reply <- cmdResult{err: ErrNoSupportedAuthMethod}
			return
		}
	}
	if method == AuthUnset {
		cmd.reply <- cmdResult{err: ErrAuthMethodUndefined}
		return
	}
	if method != AuthAnonymous && (s.credentials.Zero() || s.password == "") {
		cmd.reply <- cmdResult{err: ErrAuthInfoUndefined}
		return
	}

	if method.SASL() {
		if err := s.startSASL(method); err != nil {
			cmd.reply <- cmdResult{err: err}
			return
		}
		s.park(cmd, s.opts.connectTimeout())
		s.state = stateWaitForSaslResponse
		return
	}

	// Legacy jabber:iq:auth: discover the offered fields first.
	if err := s.startLegacyAuth(); err != nil {
		cmd.reply <- cmdResult{err: err}
		return
	}
	s.legacyMethod = method
	s.park(cmd, s.opts.connectTimeout())
	s.state = stateWaitForLegacyAuthMethod
}

func (s *Session) handleRegister(cmd *command) {
	if s.pending != nil {
		cmd.reply <- cmdResult{err: ErrBusyConnecting}
		return
	}
	if s.state != stateStreamOpened {
		cmd.reply <- cmdResult{err: ErrUnallowedCommand}
		return
	}
	username := cmd.username
	if username == "" {
		username = s.credentials.Localpart()
	}
	if username == "" {
		cmd.reply <- cmdResult{err: ErrAuthInfoUndefined}
		return
	}
	if err := s.startRegister(username, cmd.password); err != nil {
		cmd.reply <- cmdResult{err: err}
		return
	}
	s.park(cmd, s.opts.connectTimeout())
	s.state = stateWaitForRegisterResult
}

func (s *Session) handleSend(cmd *command) {
	if s.state != stateStreamOpened && s.state != stateLoggedIn {
		cmd.reply <- cmdResult{err: ErrNotConnected}
		return
	}
	el := cmd.packet
	id := el.AttrValue("id")
	if id == "" {
		id = genID()
		el.SetAttr("id", id)
	}
	if !s.write([]byte(el.String())) {
		// write already replied with the fatal reason if this command was
		// parked; reply directly since Send never parks.
		cmd.reply <- cmdResult{err: s.stopReason}
		return
	}
	cmd.reply <- cmdResult{id: id}
}

// handleOpTimeout fires when a parked command's deadline passes.
func (s *Session) handleOpTimeout() {
	if s.pending == nil {
		return
	}
	wasConnect := s.pending.kind == cmdConnect
	s.replyPending(cmdResult{err: ErrTimeout})
	if wasConnect {
		// Connect-phase failures return the machine to setup so the owner
		// can retry with different parameters.
		s.teardownTransport()
		s.state = stateSetup
		return
	}
	s.state = stateStreamError
}

func (s *Session) teardownTransport() {
	if s.parser != nil {
		s.parser.Stop()
		s.parser = nil
	}
	if s.tr != nil {
		s.tr.Close()
		s.tr = nil
	}
	s.streamID = ""
	s.features = nil
}

// ---------------------------------------------------------------------------
// Parser events

func (s *Session) handleEvent(ev parserEvent) {
	switch ev := ev.(type) {
	case evStreamStart:
		s.handleStreamStart(ev.Info)

	case evStreamElement:
		s.handleElement(ev.Element)

	case evStreamError:
		s.lastStreamErr = ev.Condition
		s.notify(Packet{
			Kind:      KindStreamError,
			Condition: ev.Condition,
			Text:      ev.Text,
		})
		s.replyPending(cmdResult{err: stream.Error{Err: ev.Condition}})
		s.state = stateStreamError

	case evStreamEnd:
		s.replyPending(cmdResult{err: ErrStreamClosed})
		s.stopped = true
		s.stopReason = ErrStreamClosed

	case evParseError:
		s.fatal(ev.Err)
	}
}

func (s *Session) handleStreamStart(info stream.Info) {
	if s.state != stateWaitForStream {
		// A stream header in any other state is a framing violation.
		s.fatal(stream.BadFormat)
		return
	}
	if info.ID != "" {
		s.streamID = info.ID
	}
	if !info.Version.Must() {
		// Legacy stream: there is no feature negotiation, the stream is
		// immediately usable.
		s.replyPending(cmdResult{streamID: s.streamID})
		s.state = stateStreamOpened
		return
	}
	s.state = stateWaitForStreamFeatures
}

func (s *Session) handleElement(el *stanza.Element) {
	switch s.state {
	case stateWaitForStreamFeatures:
		if el.Name.Local != "features" || el.Name.Space != ns.Stream {
			// Tolerate early traffic; anything else before features is
			// ignored.
			return
		}
		s.negotiateFeatures(parseFeatures(el))

	case stateWaitForStarttlsResult:
		s.handleStarttlsResult(el)

	case stateWaitForCompressionResult:
		s.handleCompressionResult(el)

	case stateWaitForSaslResponse:
		s.handleSASLElement(el)

	case stateWaitForLegacyAuthMethod:
		s.handleLegacyMethodIQ(el)

	case stateWaitForAuthResult:
		s.handleLegacyAuthResult(el)

	case stateWaitForBindResponse:
		s.handleBindResult(el)

	case stateWaitForSessionResponse:
		s.handleSessionResult(el)

	case stateWaitForRegisterResult:
		s.handleRegisterResult(el)

	case stateStreamOpened, stateLoggedIn:
		s.notify(dispatch(el))

	default:
		// Elements arriving in states with no expectation (eg. after a
		// stream error) are dropped.
	}
}

// forwardOrIgnore lets asynchronous stanzas through to the owner while the
// machine is waiting for a specific protocol reply. It returns true when the
// element was consumed.
func (s *Session) forwardOrIgnore(el *stanza.Element) bool {
	if el.Name.Local == "message" || el.Name.Local == "presence" {
		s.notify(dispatch(el))
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Feature negotiation

func (s *Session) negotiateFeatures(f *streamFeatures) {
	s.features = f

	// TLS always comes first when available.
	if f.startTLS && !s.encrypted {
		if s.opts.DisableStartTLS {
			if f.startTLSRequired {
				s.streamPolicyViolation()
				return
			}
		} else {
			if !s.writef(`<starttls xmlns='%s'/>`, ns.StartTLS) {
				return
			}
			s.state = stateWaitForStarttlsResult
			return
		}
	}

	if f.offersZlib() && !s.compressed && !s.opts.DisableCompression {
		if !s.writef(`<compress xmlns='%s'><method>zlib</method></compress>`, ns.CompressProto) {
			return
		}
		s.state = stateWaitForCompressionResult
		return
	}

	if s.authenticated {
		s.sendBind()
		return
	}

	// Not authenticated: stream negotiation is as far as it goes for now;
	// hand control back to the owner.
	s.replyPending(cmdResult{streamID: s.streamID})
	s.state = stateStreamOpened
}

// streamPolicyViolation aborts negotiation because local policy conflicts
// with a server requirement (STARTTLS required but disabled by the owner).
func (s *Session) streamPolicyViolation() {
	cond := stream.PolicyViolation
	s.lastStreamErr = cond.Err
	s.notify(Packet{Kind: KindStreamError, Condition: cond.Err})
	s.replyPending(cmdResult{err: cond})
	s.state = stateStreamError
}

func (s *Session) handleStarttlsResult(el *stanza.Element) {
	if el.Name.Space != ns.StartTLS {
		if s.forwardOrIgnore(el) {
			return
		}
		s.fatal(stream.UnsupportedStanzaType)
		return
	}
	switch el.Name.Local {
	case "proceed":
		if err := s.tr.StartTLS(s.opts.TLSConfig); err != nil {
			s.fatal(ErrCouldNotEncrypt)
			return
		}
		s.encrypted = true
		s.restartStream()
	case "failure":
		s.fatal(ErrCouldNotEncrypt)
	default:
		s.fatal(stream.UnsupportedStanzaType)
	}
}

func (s *Session) handleCompressionResult(el *stanza.Element) {
	if el.Name.Space != ns.CompressProto {
		if s.forwardOrIgnore(el) {
			return
		}
		s.fatal(stream.UnsupportedStanzaType)
		return
	}
	switch el.Name.Local {
	case "compressed":
		if err := s.tr.Compress(); err != nil {
			s.fatal(ErrCouldNotCompress)
			return
		}
		s.compressed = true
		s.restartStream()
	case "failure":
		s.fatal(ErrCouldNotCompress)
	default:
		s.fatal(stream.UnsupportedStanzaType)
	}
}

// restartStream resets the parser and opens a fresh stream on the (possibly
// newly layered) transport.
func (s *Session) restartStream() {
	s.parser.Reset()
	if err := stream.Send(s.tr, s.domain, s.version); err != nil {
		s.fatal(err)
		return
	}
	s.state = stateWaitForStream
}
