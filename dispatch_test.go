// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"testing"
)

func TestDispatchClassification(t *testing.T) {
	for i, tc := range [...]struct {
		raw     string
		kind    PacketKind
		typ     string
		from    string
		id      string
		queryNS string
	}{
		0: {
			raw:  `<message xmlns='jabber:client' type='chat' from='Romeo@Example.NET/garden' id='m1'><body>hi</body></message>`,
			kind: KindMessage, typ: "chat", from: "romeo@example.net/garden", id: "m1",
		},
		1: {
			raw:  `<presence xmlns='jabber:client' from='juliet@example.net'/>`,
			kind: KindPresence, from: "juliet@example.net",
		},
		2: {
			raw:  `<iq xmlns='jabber:client' type='get' id='q1'><query xmlns='jabber:iq:roster'/></iq>`,
			kind: KindIQ, typ: "get", id: "q1", queryNS: "jabber:iq:roster",
		},
		3: {
			raw:  `<unknown xmlns='urn:example:odd' id='u1'/>`,
			kind: KindRaw, id: "u1",
		},
	} {
		el := parseTestElement(t, tc.raw)
		p := dispatch(el)
		if p.Kind != tc.kind {
			t.Errorf("%d. kind: got %v, want %v", i, p.Kind, tc.kind)
		}
		if p.Type != tc.typ {
			t.Errorf("%d. type: got %q, want %q", i, p.Type, tc.typ)
		}
		if tc.from == "" {
			if !p.From.Zero() {
				t.Errorf("%d. from: got %q, want zero", i, p.From)
			}
		} else if p.From.String() != tc.from {
			t.Errorf("%d. from: got %q, want %q", i, p.From, tc.from)
		}
		if p.ID != tc.id {
			t.Errorf("%d. id: got %q, want %q", i, p.ID, tc.id)
		}
		if p.QueryNS != tc.queryNS {
			t.Errorf("%d. queryns: got %q, want %q", i, p.QueryNS, tc.queryNS)
		}
		if p.Stanza != el || p.Raw == "" {
			t.Errorf("%d. raw stanza not forwarded", i)
		}
	}
}

func TestMethodForMechanism(t *testing.T) {
	for name, want := range map[string]AuthMethod{
		"PLAIN":      AuthPlain,
		"ANONYMOUS":  AuthAnonymous,
		"DIGEST-MD5": AuthDigestMD5,
		"SCRAM-SHA1": AuthUnset,
	} {
		if got := MethodForMechanism(name); got != want {
			t.Errorf("MethodForMechanism(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestAuthMethodSASL(t *testing.T) {
	for m, want := range map[AuthMethod]bool{
		AuthPassword:  false,
		AuthDigest:    false,
		AuthPlain:     true,
		AuthAnonymous: true,
		AuthDigestMD5: true,
		AuthUnset:     false,
	} {
		if m.SASL() != want {
			t.Errorf("%v.SASL() = %v, want %v", m, m.SASL(), want)
		}
	}
}
