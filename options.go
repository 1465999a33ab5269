// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"crypto/tls"
	"time"
)

// defaultConnectTimeout bounds the connect phase when Options.Timeout is
// unset.
const defaultConnectTimeout = 5 * time.Second

// Options configures a connection attempt.
//
// The zero value negotiates STARTTLS and compression when offered, performs
// no whitespace pings, and uses the default connect timeout.
type Options struct {
	// Domain overrides the XMPP service domain used in the stream header's
	// "to" attribute. When empty the domain of the configured credentials is
	// used.
	Domain string

	// DisableStartTLS refuses the STARTTLS upgrade even when the server
	// offers it. If the server marks STARTTLS as required the stream fails
	// with a policy-violation stream error.
	DisableStartTLS bool

	// DisableCompression refuses zlib stream compression even when the server
	// offers it.
	DisableCompression bool

	// WhitespacePing is the idle interval after which, once logged in, a
	// single space byte is emitted to keep the connection alive. Zero
	// disables pinging.
	WhitespacePing time.Duration

	// Timeout bounds the connect phase. Zero means the default of five
	// seconds.
	Timeout time.Duration

	// LocalIP and LocalPort bind the source endpoint of the TCP connection.
	LocalIP   string
	LocalPort uint16

	// TLSConfig is used for TLS-on-connect and STARTTLS upgrades. A nil
	// config validates against the service domain.
	TLSConfig *tls.Config
}

func (o Options) connectTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultConnectTimeout
}

// An AuthMethod selects how Login authenticates the session.
type AuthMethod int

// Supported authentication methods. Password and Digest use the legacy
// jabber:iq:auth protocol (XEP-0078); the rest are SASL mechanisms.
const (
	AuthUnset AuthMethod = iota
	AuthPassword
	AuthDigest
	AuthPlain
	AuthAnonymous
	AuthDigestMD5
)

// SASL reports whether the method is a SASL mechanism rather than a legacy
// jabber:iq:auth method.
func (m AuthMethod) SASL() bool {
	switch m {
	case AuthPlain, AuthAnonymous, AuthDigestMD5:
		return true
	}
	return false
}

// Mechanism returns the SASL mechanism name for SASL methods and the empty
// string otherwise.
func (m AuthMethod) Mechanism() string {
	switch m {
	case AuthPlain:
		return "PLAIN"
	case AuthAnonymous:
		return "ANONYMOUS"
	case AuthDigestMD5:
		return "DIGEST-MD5"
	}
	return ""
}

// String returns a human readable name for the method.
func (m AuthMethod) String() string {
	switch m {
	case AuthPassword:
		return "password"
	case AuthDigest:
		return "digest"
	case AuthPlain, AuthAnonymous, AuthDigestMD5:
		return m.Mechanism()
	}
	return "unset"
}

// MethodForMechanism maps a SASL mechanism name to an AuthMethod. It returns
// AuthUnset for unsupported mechanisms.
func MethodForMechanism(name string) AuthMethod {
	switch name {
	case "PLAIN":
		return AuthPlain
	case "ANONYMOUS":
		return AuthAnonymous
	case "DIGEST-MD5":
		return AuthDigestMD5
	}
	return AuthUnset
}
