// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package exmpp

import (
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"fmt"

	"github.com/iuvei/exmpp/internal/ns"
	"github.com/iuvei/exmpp/jid"
	"github.com/iuvei/exmpp/stanza"
	"github.com/iuvei/exmpp/stream"
	"github.com/iuvei/exmpp/transport"
)

// ---------------------------------------------------------------------------
// SASL (RFC 6120 §6)

// startSASL builds the mechanism negotiator and sends the <auth/> element
// carrying the initial response.
func (s *Session) startSASL(method AuthMethod) error {
	mech := method.Mechanism()
	if s.features != nil && len(s.features.mechanisms) > 0 && !s.features.offersMechanism(mech) {
		return ErrNoSupportedAuthMethod
	}

	var tlsState *tls.ConnectionState
	if conn, ok := s.tr.(*transport.Conn); ok {
		if state, secured := conn.ConnectionState(); secured {
			tlsState = &state
		}
	}

	client, err := newSASLClient(mech, s.credentials.Localpart(), s.password, s.domain, tlsState)
	if err != nil {
		return err
	}

	_, resp, err := client.Step(nil)
	if err != nil {
		return err
	}

	// RFC 6120 §6.4.2: a zero-length initial response is transmitted as a
	// single equals sign; mechanisms with no initial response at all (a nil
	// slice) leave the auth element empty and wait for the first challenge.
	var payload string
	switch {
	case len(resp) > 0:
		payload = base64.StdEncoding.EncodeToString(resp)
	case resp != nil:
		payload = "="
	}
	if !s.writef(`<auth xmlns='%s' mechanism='%s'>%s</auth>`, ns.SASL, mech, payload) {
		return s.stopReason
	}

	s.saslClient = client
	return nil
}

// handleSASLElement processes <challenge/>, <success/>, and <failure/> while
// a SASL exchange is in flight.
func (s *Session) handleSASLElement(el *stanza.Element) {
	if el.Name.Space != ns.SASL {
		if s.forwardOrIgnore(el) {
			return
		}
		s.fatal(stream.UnsupportedStanzaType)
		return
	}

	switch el.Name.Local {
	case "challenge":
		challenge, err := base64.StdEncoding.DecodeString(el.Text)
		if err != nil {
			s.saslFailed("malformed-request")
			return
		}
		_, resp, err := s.saslClient.Step(challenge)
		if err != nil {
			s.saslFailed("not-authorized")
			return
		}
		s.writef(`<response xmlns='%s'>%s</response>`, ns.SASL,
			base64.StdEncoding.EncodeToString(resp))

	case "success":
		s.saslClient = nil
		s.authenticated = true
		// A fresh stream is required before anything else happens on the
		// connection.
		s.restartStream()

	case "failure":
		cond := "not-authorized"
		if len(el.Children) > 0 {
			cond = el.Children[0].Name.Local
		}
		s.saslFailed(cond)

	default:
		s.fatal(stream.UnsupportedStanzaType)
	}
}

// saslFailed reports a recoverable authentication failure and returns the
// machine to the open stream so the owner may try another mechanism.
func (s *Session) saslFailed(condition string) {
	s.saslClient = nil
	s.replyPending(cmdResult{err: &AuthError{Condition: condition}})
	s.state = stateStreamOpened
}

// ---------------------------------------------------------------------------
// Resource binding (RFC 6120 §7) and session establishment (RFC 3921 §3)

func (s *Session) sendBind() {
	s.pendingIQID = genID()
	resource := s.credentials.Resourcepart()
	if resource == "" {
		if !s.writef(`<iq type='set' id='%s'><bind xmlns='%s'/></iq>`, s.pendingIQID, ns.Bind) {
			return
		}
	} else {
		if !s.writef(`<iq type='set' id='%s'><bind xmlns='%s'><resource>%s</resource></bind></iq>`,
			s.pendingIQID, ns.Bind, xmlEscape(resource)) {
			return
		}
	}
	s.state = stateWaitForBindResponse
}

func (s *Session) handleBindResult(el *stanza.Element) {
	iq, ok := s.expectIQ(el)
	if !ok {
		return
	}
	if iq.AttrValue("type") != stanza.ResultIQ {
		s.replyPending(cmdResult{err: &BindError{Condition: stanza.ErrorCondition(iq)}})
		s.state = stateStreamError
		return
	}

	if bind := iq.Child("bind"); bind != nil {
		if j := bind.Child("jid"); j != nil {
			if bound, err := jid.Parse(j.Text); err == nil {
				s.boundJID = bound
			}
		}
	}
	if s.boundJID.Zero() {
		s.boundJID = s.credentials
	}

	if s.features != nil && !s.features.session {
		s.loginDone()
		return
	}
	s.pendingIQID = genID()
	if !s.writef(`<iq type='set' id='%s'><session xmlns='%s'/></iq>`, s.pendingIQID, ns.Session) {
		return
	}
	s.state = stateWaitForSessionResponse
}

func (s *Session) handleSessionResult(el *stanza.Element) {
	iq, ok := s.expectIQ(el)
	if !ok {
		return
	}
	if iq.AttrValue("type") != stanza.ResultIQ {
		s.replyPending(cmdResult{err: &BindError{Condition: stanza.ErrorCondition(iq)}})
		s.state = stateStreamError
		return
	}
	s.loginDone()
}

// loginDone completes a pending login and starts the idle ping timer.
func (s *Session) loginDone() {
	s.replyPending(cmdResult{jid: s.boundJID})
	s.state = stateLoggedIn
	s.armPingTimer()
}

// expectIQ filters the element stream while waiting for an IQ reply:
// messages and presence pass through to the owner, IQs whose id does not
// match the pending request are delivered to the owner as well, other
// elements are ignored, and only the awaited IQ (or an IQ without an id) is
// returned.
func (s *Session) expectIQ(el *stanza.Element) (*stanza.Element, bool) {
	if el.Name.Local != "iq" {
		s.forwardOrIgnore(el)
		return nil, false
	}
	if id := el.AttrValue("id"); id != "" && s.pendingIQID != "" && id != s.pendingIQID {
		s.notify(dispatch(el))
		return nil, false
	}
	return el, true
}

// ---------------------------------------------------------------------------
// Legacy authentication (XEP-0078)

// startLegacyAuth asks the server which jabber:iq:auth fields it accepts.
func (s *Session) startLegacyAuth() error {
	s.pendingIQID = genID()
	if !s.writef(`<iq type='get' id='%s' to='%s'><query xmlns='%s'><username>%s</username></query></iq>`,
		s.pendingIQID, xmlEscape(s.domain), ns.LegacyAuth, xmlEscape(s.credentials.Localpart())) {
		return s.stopReason
	}
	return nil
}

// handleLegacyMethodIQ processes the field-discovery result and performs the
// second, credential-carrying request.
func (s *Session) handleLegacyMethodIQ(el *stanza.Element) {
	iq, ok := s.expectIQ(el)
	if !ok {
		return
	}
	if iq.AttrValue("type") != stanza.ResultIQ {
		s.replyPending(cmdResult{err: ErrBadAuthMethodReply})
		s.state = stateStreamOpened
		return
	}
	query := iq.ChildNS(ns.LegacyAuth)
	if query == nil {
		s.replyPending(cmdResult{err: ErrBadAuthMethodReply})
		s.state = stateStreamOpened
		return
	}

	useDigest := s.legacyMethod == AuthDigest
	if useDigest && query.Child("digest") == nil {
		s.replyPending(cmdResult{err: ErrNoSupportedAuthMethod})
		s.state = stateStreamOpened
		return
	}
	if !useDigest && query.Child("password") == nil {
		s.replyPending(cmdResult{err: ErrNoSupportedAuthMethod})
		s.state = stateStreamOpened
		return
	}
	if useDigest && s.streamID == "" {
		s.replyPending(cmdResult{err: ErrNoStreamIDForDigestAuth})
		s.state = stateStreamOpened
		return
	}

	resource := s.credentials.Resourcepart()
	if resource == "" {
		resource = "exmpp"
	}

	var credential string
	if useDigest {
		credential = fmt.Sprintf(`<digest>%s</digest>`, legacyDigest(s.streamID, s.password))
	} else {
		credential = fmt.Sprintf(`<password>%s</password>`, xmlEscape(s.password))
	}

	s.pendingIQID = genID()
	if !s.writef(`<iq type='set' id='%s' to='%s'><query xmlns='%s'><username>%s</username>%s<resource>%s</resource></query></iq>`,
		s.pendingIQID, xmlEscape(s.domain), ns.LegacyAuth,
		xmlEscape(s.credentials.Localpart()), credential, xmlEscape(resource)) {
		return
	}
	s.state = stateWaitForAuthResult
}

func (s *Session) handleLegacyAuthResult(el *stanza.Element) {
	iq, ok := s.expectIQ(el)
	if !ok {
		return
	}
	if iq.AttrValue("type") != stanza.ResultIQ {
		s.replyPending(cmdResult{err: &AuthError{Condition: stanza.ErrorCondition(iq)}})
		s.state = stateStreamOpened
		return
	}
	s.authenticated = true
	s.boundJID = s.credentials
	s.loginDone()
}

// legacyDigest computes the XEP-0078 digest credential: the lowercase hex
// SHA-1 of the stream id concatenated with the password.
func legacyDigest(streamID, password string) string {
	sum := sha1.Sum([]byte(streamID + password))
	return fmt.Sprintf("%x", sum)
}
