// Copyright 2014 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package jid implements the XMPP address format ("JID") as defined by
// RFC 7622.
//
// A JID comprises an optional localpart, a required domainpart, and an
// optional resourcepart. All parts are stored in their canonical form, which
// gives comparison the greatest chance of succeeding.
package jid // import "github.com/iuvei/exmpp/jid"

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// Errors returned while parsing or constructing a JID.
var (
	ErrEmptyLocal    = errors.New("jid: localpart must be larger than 0 bytes")
	ErrEmptyResource = errors.New("jid: resourcepart must be larger than 0 bytes")
	ErrLongPart      = errors.New("jid: part must be smaller than 1024 bytes")
	ErrNoDomain      = errors.New("jid: domainpart must be between 1 and 1023 bytes")
	ErrForbiddenRune = errors.New("jid: localpart contains forbidden characters")
)

// JID represents an XMPP address comprising a localpart, domainpart, and
// resourcepart.
//
// The zero value is not a valid JID; use Parse or New to construct one.
type JID struct {
	local    string
	domain   string
	resource string
}

// Parse constructs a JID from its string representation of the form
// "localpart@domainpart/resourcepart" where the localpart and resourcepart may
// be absent.
func Parse(s string) (JID, error) {
	local, domain, resource, err := SplitString(s)
	if err != nil {
		return JID{}, err
	}
	return New(local, domain, resource)
}

// MustParse is like Parse but panics if the JID cannot be parsed.
// It simplifies safe initialization of JIDs from known-good constant strings.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(`jid: Parse(` + s + `): ` + err.Error())
	}
	return j
}

// New constructs a JID from its individual parts, enforcing and applying the
// PRECIS profiles required by RFC 7622 (UsernameCaseMapped for the localpart,
// OpaqueString for the resourcepart) and IDNA mapping for the domainpart.
func New(local, domain, resource string) (JID, error) {
	domain = strings.TrimSuffix(domain, ".")
	mapped, err := idna.ToUnicode(domain)
	if err != nil {
		return JID{}, err
	}
	mapped = strings.ToLower(mapped)

	if local != "" {
		local, err = precis.UsernameCaseMapped.String(local)
		if err != nil {
			return JID{}, err
		}
	}
	if resource != "" {
		resource, err = precis.OpaqueString.String(resource)
		if err != nil {
			return JID{}, err
		}
	}
	if err = commonChecks(local, mapped, resource); err != nil {
		return JID{}, err
	}
	return JID{local: local, domain: mapped, resource: resource}, nil
}

// SplitString splits out the localpart, domainpart, and resourcepart from a
// string representation of a JID. The parts are not guaranteed to be valid.
//
// The separator characters '@' and '/' are matched before any transformation
// is applied, as required by RFC 7622 §3.1.
func SplitString(s string) (localpart, domainpart, resourcepart string, err error) {
	sep := strings.Index(s, "/")
	if sep != -1 {
		if sep == len(s)-1 {
			return "", "", "", ErrEmptyResource
		}
		resourcepart = s[sep+1:]
		s = s[:sep]
	}

	sep = strings.Index(s, "@")
	switch sep {
	case -1:
		domainpart = s
	case 0:
		return "", "", "", ErrEmptyLocal
	default:
		localpart = s[:sep]
		domainpart = s[sep+1:]
	}
	return localpart, domainpart, resourcepart, nil
}

func commonChecks(local, domain, resource string) error {
	if len(local) > 1023 || len(resource) > 1023 {
		return ErrLongPart
	}
	// RFC 7622 §3.3.1 lists characters that remain forbidden in localparts
	// even though the UsernameCaseMapped profile allows them.
	if strings.ContainsAny(local, `"&'/:<>@`) {
		return ErrForbiddenRune
	}
	if len(domain) < 1 || len(domain) > 1023 {
		return ErrNoDomain
	}
	// A bracketed domainpart must be a valid IPv6 literal.
	if l := len(domain); l > 2 && domain[0] == '[' && domain[l-1] == ']' {
		if ip := net.ParseIP(domain[1 : l-1]); ip == nil || ip.To4() != nil {
			return errors.New("jid: domainpart is not a valid IPv6 address")
		}
	}
	return nil
}

// Localpart returns the localpart of the JID (the "node" before the '@').
func (j JID) Localpart() string { return j.local }

// Domainpart returns the domainpart of the JID.
func (j JID) Domainpart() string { return j.domain }

// Resourcepart returns the resourcepart of the JID.
func (j JID) Resourcepart() string { return j.resource }

// Bare returns a copy of the JID with no resourcepart.
func (j JID) Bare() JID {
	return JID{local: j.local, domain: j.domain}
}

// Domain returns a copy of the JID with only the domainpart.
func (j JID) Domain() JID {
	return JID{domain: j.domain}
}

// WithResource returns a copy of the JID with the given canonicalized
// resourcepart.
func (j JID) WithResource(resource string) (JID, error) {
	return New(j.local, j.domain, resource)
}

// Zero reports whether the JID is the zero value.
func (j JID) Zero() bool {
	return j == JID{}
}

// Equal reports whether two JIDs are equivalent after canonicalization.
func (j JID) Equal(other JID) bool {
	return j == other
}

// String converts the JID back to its string representation.
func (j JID) String() string {
	var buf bytes.Buffer
	if j.local != "" {
		buf.WriteString(j.local)
		buf.WriteByte('@')
	}
	buf.WriteString(j.domain)
	if j.resource != "" {
		buf.WriteByte('/')
		buf.WriteString(j.resource)
	}
	return buf.String()
}

// MarshalXMLAttr satisfies the xml.MarshalerAttr interface.
func (j JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j.Zero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies the xml.UnmarshalerAttr interface.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*j = JID{}
		return nil
	}
	parsed, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}
