// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"github.com/iuvei/exmpp/internal/ns"
	"github.com/iuvei/exmpp/stanza"
)

// startRegister submits an XEP-0077 in-band registration form with the given
// username and password.
func (s *Session) startRegister(username, password string) error {
	s.pendingIQID = genID()
	if !s.writef(`<iq type='set' id='%s' to='%s'><query xmlns='%s'><username>%s</username><password>%s</password></query></iq>`,
		s.pendingIQID, xmlEscape(s.domain), ns.Register,
		xmlEscape(username), xmlEscape(password)) {
		return s.stopReason
	}
	return nil
}

// handleRegisterResult completes a pending registration. Failures (eg. a 409
// conflict for a taken username) are recoverable; the stream stays open.
func (s *Session) handleRegisterResult(el *stanza.Element) {
	iq, ok := s.expectIQ(el)
	if !ok {
		return
	}
	if iq.AttrValue("type") != stanza.ResultIQ {
		cond := stanza.ErrorCondition(iq)
		if cond == "" {
			cond = "not-acceptable"
		}
		s.replyPending(cmdResult{err: &RegisterError{Condition: cond}})
		s.state = stateStreamOpened
		return
	}
	s.replyPending(cmdResult{})
	s.state = stateStreamOpened
}
