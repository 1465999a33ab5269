// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package exmpp

import (
	"crypto/md5"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"mellium.im/sasl"
)

// Anonymous implements the SASL ANONYMOUS mechanism (RFC 4505). The initial
// response is empty; servers that support the mechanism assign a throwaway
// identity.
var Anonymous = sasl.Mechanism{
	Name: "ANONYMOUS",
	Start: func(n *sasl.Negotiator) (bool, []byte, interface{}, error) {
		return false, []byte{}, nil, nil
	},
	Next: func(n *sasl.Negotiator, challenge []byte, _ interface{}) (bool, []byte, interface{}, error) {
		return false, nil, nil, sasl.ErrTooManySteps
	},
}

// DigestMD5 returns a SASL mechanism implementing DIGEST-MD5 (RFC 2831) with
// the digest-uri bound to the given XMPP domain.
//
// The mechanism performs the two-round exchange used by XMPP servers: the
// first challenge produces the digest response, the second carries the
// server's rspauth which is verified before an empty response is returned.
func DigestMD5(domain string) sasl.Mechanism {
	return sasl.Mechanism{
		Name: "DIGEST-MD5",
		Start: func(n *sasl.Negotiator) (bool, []byte, interface{}, error) {
			// No initial response; the server opens with a challenge.
			return true, nil, nil, nil
		},
		Next: func(n *sasl.Negotiator, challenge []byte, data interface{}) (bool, []byte, interface{}, error) {
			if data == nil {
				resp, rspauth, err := digestMD5Response(n, domain, challenge)
				if err != nil {
					return false, nil, nil, err
				}
				return true, resp, rspauth, nil
			}

			// Second round: the challenge carries rspauth computed over the
			// same digest with an empty request method.
			fields := parseDigestChallenge(challenge)
			expected, ok := data.(string)
			if !ok || fields["rspauth"] == "" {
				return false, nil, nil, errors.New("exmpp: missing rspauth in DIGEST-MD5 challenge")
			}
			if fields["rspauth"] != expected {
				return false, nil, nil, errors.New("exmpp: DIGEST-MD5 server authentication failed")
			}
			return false, nil, nil, nil
		},
	}
}

// digestMD5Response computes the client response and the expected rspauth for
// the server's first challenge.
func digestMD5Response(n *sasl.Negotiator, domain string, challenge []byte) (resp []byte, rspauth string, err error) {
	fields := parseDigestChallenge(challenge)
	nonce := fields["nonce"]
	if nonce == "" {
		return nil, "", errors.New("exmpp: missing nonce in DIGEST-MD5 challenge")
	}
	realm := fields["realm"]
	if realm == "" {
		realm = domain
	}

	username, password, _ := n.Credentials()
	cnonce := fmt.Sprintf("%x", n.Nonce())
	const nc = "00000001"
	const qop = "auth"
	digestURI := "xmpp/" + domain

	// RFC 2831 §2.1.2.1: A1 is the raw 16-byte hash of the long-term
	// credential joined with the nonces.
	creds := md5.Sum([]byte(string(username) + ":" + realm + ":" + string(password)))
	a1 := string(creds[:]) + ":" + nonce + ":" + cnonce
	ha1 := fmt.Sprintf("%x", md5.Sum([]byte(a1)))

	kd := func(a2 string) string {
		ha2 := fmt.Sprintf("%x", md5.Sum([]byte(a2)))
		sum := md5.Sum([]byte(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + ha2))
		return fmt.Sprintf("%x", sum)
	}
	response := kd("AUTHENTICATE:" + digestURI)
	rspauth = kd(":" + digestURI)

	out := fmt.Sprintf(
		`username="%s",realm="%s",nonce="%s",cnonce="%s",nc=%s,qop=%s,digest-uri="%s",response=%s,charset=utf-8`,
		username, realm, nonce, cnonce, nc, qop, digestURI, response,
	)
	return []byte(out), rspauth, nil
}

// parseDigestChallenge splits an RFC 2831 challenge into its key=value
// fields, unquoting quoted values.
func parseDigestChallenge(challenge []byte) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(string(challenge), ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		v := kv[1]
		if len(v) > 1 && v[0] == '"' && v[len(v)-1] == '"' {
			v = v[1 : len(v)-1]
		}
		fields[kv[0]] = v
	}
	return fields
}

// newSASLClient builds a negotiator for the named mechanism using the
// session's credentials. The TLS state, when present, is attached so channel
// binding aware mechanisms can use it.
func newSASLClient(mechanism, username, password, domain string, tlsState *tls.ConnectionState) (*sasl.Negotiator, error) {
	var mech sasl.Mechanism
	switch mechanism {
	case "PLAIN":
		mech = sasl.Plain
	case "ANONYMOUS":
		mech = Anonymous
	case "DIGEST-MD5":
		mech = DigestMD5(domain)
	default:
		return nil, fmt.Errorf("exmpp: unsupported SASL mechanism %q", mechanism)
	}

	opts := []sasl.Option{
		sasl.Credentials(func() ([]byte, []byte, []byte) {
			return []byte(username), []byte(password), nil
		}),
	}
	if tlsState != nil {
		opts = append(opts, sasl.TLSState(*tlsState))
	}
	return sasl.NewClient(mech, opts...), nil
}
