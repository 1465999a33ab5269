// Copyright 2015 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package stream

import (
	"encoding/xml"

	"mellium.im/xmlstream"

	"github.com/iuvei/exmpp/internal/ns"
)

// NSError is the namespace of the defined stream error conditions.
const NSError = "urn:ietf:params:xml:ns:xmpp-streams"

// A list of stream errors defined in RFC 6120 §4.9.3.
var (
	// BadFormat is used when the entity has sent XML that cannot be processed.
	// This error can be used instead of the more specific XML-related errors,
	// such as <bad-namespace-prefix/>, <invalid-xml/>, <not-well-formed/>,
	// <restricted-xml/>, and <unsupported-encoding/>. However, the more
	// specific errors are RECOMMENDED.
	BadFormat = Error{Err: "bad-format"}

	// BadNamespacePrefix is sent when an entity has sent a namespace prefix
	// that is unsupported, or has sent no namespace prefix, on an element that
	// needs such a prefix.
	BadNamespacePrefix = Error{Err: "bad-namespace-prefix"}

	// Conflict is sent when the server is closing the existing stream for this
	// entity because a new stream has been initiated that conflicts with the
	// existing stream.
	Conflict = Error{Err: "conflict"}

	// ConnectionTimeout results when one party is closing the stream because
	// it has reason to believe that the other party has permanently lost the
	// ability to communicate over the stream.
	ConnectionTimeout = Error{Err: "connection-timeout"}

	// HostUnknown is sent when the value of the 'to' attribute provided in the
	// initial stream header does not correspond to an FQDN that is serviced by
	// the receiving entity.
	HostUnknown = Error{Err: "host-unknown"}

	// InternalServerError is sent when the server has experienced a
	// misconfiguration or other internal error that prevents it from servicing
	// the stream.
	InternalServerError = Error{Err: "internal-server-error"}

	// InvalidNamespace may be sent when the stream namespace name is something
	// other than "http://etherx.jabber.org/streams" or the content namespace
	// declared as the default namespace is not supported.
	InvalidNamespace = Error{Err: "invalid-namespace"}

	// InvalidXML may be sent when the entity has sent invalid XML over the
	// stream to a server that performs validation.
	InvalidXML = Error{Err: "invalid-xml"}

	// NotAuthorized may be sent when the entity has attempted to send XML
	// stanzas or other outbound data before the stream has been authenticated.
	NotAuthorized = Error{Err: "not-authorized"}

	// NotWellFormed may be sent when the initiating entity has sent XML that
	// violates the well-formedness rules of XML or XML namespaces.
	NotWellFormed = Error{Err: "not-well-formed"}

	// PolicyViolation may be sent when an entity has violated some local
	// service policy.
	PolicyViolation = Error{Err: "policy-violation"}

	// SystemShutdown may be sent when the server is being shut down and all
	// active streams are being closed.
	SystemShutdown = Error{Err: "system-shutdown"}

	// UndefinedCondition may be sent when the error condition is not one of
	// those defined by the other conditions in this list; this error condition
	// should be used in conjunction with an application-specific condition.
	UndefinedCondition = Error{Err: "undefined-condition"}

	// UnsupportedStanzaType may be sent when the initiating entity has sent a
	// first-level child of the stream that is not supported by the server.
	UnsupportedStanzaType = Error{Err: "unsupported-stanza-type"}

	// UnsupportedVersion may be sent when the 'version' attribute provided by
	// the initiating entity in the stream header specifies a version of XMPP
	// that is not supported by the server.
	UnsupportedVersion = Error{Err: "unsupported-version"}
)

// An Error represents an unrecoverable stream-level error.
type Error struct {
	Err string
}

// Error satisfies the builtin error interface and returns the name of the
// stream error. For instance, given the error:
//
//     <stream:error>
//       <restricted-xml xmlns="urn:ietf:params:xml:ns:xmpp-streams"/>
//     </stream:error>
//
// Error() would return "restricted-xml".
func (s Error) Error() string {
	return s.Err
}

// UnmarshalXML satisfies the xml package's Unmarshaler interface and allows
// stream errors to be correctly unmarshaled from XML.
func (s *Error) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	se := struct {
		XMLName xml.Name
		Err     struct {
			XMLName  xml.Name
			InnerXML []byte `xml:",innerxml"`
		} `xml:",any"`
	}{}
	err := d.DecodeElement(&se, &start)
	if err != nil {
		return err
	}
	s.Err = se.Err.XMLName.Local
	return nil
}

// MarshalXML satisfies the xml package's Marshaler interface and allows
// stream errors to be correctly marshaled back into XML.
func (s Error) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	err := s.WriteXML(e)
	if err != nil {
		return err
	}
	return e.Flush()
}

// WriteXML writes the error's tokens to w. It is like MarshalXML except it
// writes to a token writer instead of an encoder.
func (s Error) WriteXML(w xmlstream.TokenWriter) error {
	_, err := xmlstream.Copy(w, s.TokenReader())
	return err
}

// TokenReader satisfies the xmlstream.Marshaler interface and returns the
// error as a stream of XML tokens.
func (s Error) TokenReader() xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.Wrap(
			nil,
			xml.StartElement{
				Name: xml.Name{Space: NSError, Local: s.Err},
			},
		),
		xml.StartElement{
			Name: xml.Name{Space: ns.Stream, Local: "error"},
		},
	)
}

// Condition extracts the defined condition from a parsed <stream:error>
// element's children: the first child in the stream error namespace (or, for
// lenient parsing, the first child of any namespace) names the condition.
func Condition(children []xml.Name) string {
	for _, name := range children {
		if name.Space == NSError {
			return name.Local
		}
	}
	if len(children) > 0 {
		return children[0].Local
	}
	return UndefinedCondition.Err
}
