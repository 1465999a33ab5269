// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package exmpp implements the client side of an XMPP session as described in
// RFC 6120 and RFC 6121: stream negotiation, optional STARTTLS, optional
// stream compression, authentication (SASL and legacy jabber:iq:auth),
// resource binding, session establishment, and steady-state stanza exchange.
//
// A Session is a single-goroutine actor: owner commands, parsed stream
// events, and timers are serialized onto one input channel, so no locking is
// required around protocol state. Inbound stanzas are delivered to the owner
// on an asynchronous channel in wire order.
//
// Be advised: this package does not implement automatic reconnection or
// stream resumption; when a stream fails the owner must create a new session.
package exmpp // import "github.com/iuvei/exmpp"
