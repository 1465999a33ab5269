// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"

	"github.com/iuvei/exmpp/internal/ns"
)

// Common values of the IQ "type" attribute.
const (
	GetIQ    = "get"
	SetIQ    = "set"
	ResultIQ = "result"
	ErrorIQ  = "error"
)

// Is tests whether name is a valid stanza based on name and space.
func Is(name xml.Name) bool {
	return (name.Local == "iq" || name.Local == "message" || name.Local == "presence") &&
		(name.Space == ns.Client || name.Space == "jabber:server" || name.Space == "")
}

// QueryNS returns the namespace of an IQ stanza's payload child, or the empty
// string for payload-less IQs.
func QueryNS(iq *Element) string {
	if iq == nil || len(iq.Children) == 0 {
		return ""
	}
	return iq.Children[0].Name.Space
}

// ErrorCondition extracts the defined condition of a stanza error, eg.
// "conflict" from:
//
//     <error code='409' type='cancel'>
//       <conflict xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'/>
//     </error>
//
// If no defined condition child is present the legacy "code" attribute value
// is returned instead.
func ErrorCondition(st *Element) string {
	e := st.Child("error")
	if e == nil {
		return ""
	}
	for _, child := range e.Children {
		if child.Name.Local != "text" {
			return child.Name.Local
		}
	}
	return e.AttrValue("code")
}
