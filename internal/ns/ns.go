// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ns provides namespace constants that are used by the exmpp package
// and other internal packages.
package ns // import "github.com/iuvei/exmpp/internal/ns"

// List of commonly used namespaces.
const (
	Bind            = "urn:ietf:params:xml:ns:xmpp-bind"
	Client          = "jabber:client"
	CompressFeature = "http://jabber.org/features/compress"
	CompressProto   = "http://jabber.org/protocol/compress"
	LegacyAuth      = "jabber:iq:auth"
	Register        = "jabber:iq:register"
	SASL            = "urn:ietf:params:xml:ns:xmpp-sasl"
	Session         = "urn:ietf:params:xml:ns:xmpp-session"
	StartTLS        = "urn:ietf:params:xml:ns:xmpp-tls"
	Stream          = "http://etherx.jabber.org/streams"
	XML             = "http://www.w3.org/XML/1998/namespace"
)
