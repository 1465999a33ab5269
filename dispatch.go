// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"github.com/iuvei/exmpp/jid"
	"github.com/iuvei/exmpp/stanza"
)

// PacketKind classifies an owner notification.
type PacketKind int

// Notification kinds delivered on the owner channel.
const (
	KindMessage PacketKind = iota
	KindPresence
	KindIQ
	KindRaw
	KindStreamError
)

// String returns the conventional stanza name for the kind.
func (k PacketKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindPresence:
		return "presence"
	case KindIQ:
		return "iq"
	case KindRaw:
		return "raw"
	case KindStreamError:
		return "stream_error"
	}
	return "unknown"
}

// A Packet is an asynchronous notification delivered to the owning client.
//
// For stanzas, Type, From, and ID mirror the stanza attributes and Stanza
// holds the parsed element; QueryNS is additionally set for IQs. For stream
// errors only Condition (and possibly Text) are set and the session is about
// to terminate.
type Packet struct {
	Kind      PacketKind
	Type      string
	From      jid.JID // zero when the from attribute was absent
	ID        string
	QueryNS   string
	Condition string
	Text      string
	Stanza    *stanza.Element
	Raw       string
}

// dispatch classifies a top-level stream element into an owner notification.
//
// The from attribute, when present, is canonicalized; addresses that fail
// canonicalization are forwarded with a zero From so the raw value remains
// available on the stanza itself.
func dispatch(el *stanza.Element) Packet {
	p := Packet{
		Type:   el.AttrValue("type"),
		ID:     el.AttrValue("id"),
		Stanza: el,
		Raw:    el.String(),
	}
	if from := el.AttrValue("from"); from != "" {
		if j, err := jid.Parse(from); err == nil {
			p.From = j
		}
	}

	switch el.Name.Local {
	case "message":
		p.Kind = KindMessage
	case "presence":
		p.Kind = KindPresence
	case "iq":
		p.Kind = KindIQ
		p.QueryNS = stanza.QueryNS(el)
	default:
		p.Kind = KindRaw
	}
	return p
}
