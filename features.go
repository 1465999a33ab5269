// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package exmpp

import (
	"github.com/iuvei/exmpp/internal/ns"
	"github.com/iuvei/exmpp/stanza"
)

// streamFeatures is the parsed form of a <stream:features> element.
type streamFeatures struct {
	// StartTLS advertisement and whether the server marked it required.
	startTLS         bool
	startTLSRequired bool

	// Compression methods offered (XEP-0138).
	compression []string

	// SASL mechanisms offered.
	mechanisms []string

	// Resource binding and legacy session establishment.
	bind    bool
	session bool

	// In-band registration (XEP-0077).
	register bool

	raw *stanza.Element
}

// parseFeatures extracts the capabilities the engine negotiates from a
// features element. Unknown features are retained on raw but otherwise
// ignored.
func parseFeatures(el *stanza.Element) *streamFeatures {
	f := &streamFeatures{raw: el}
	for _, child := range el.Children {
		switch {
		case child.Name.Local == "starttls" && child.Name.Space == ns.StartTLS:
			f.startTLS = true
			f.startTLSRequired = child.Child("required") != nil
		case child.Name.Local == "compression" && child.Name.Space == ns.CompressFeature:
			for _, m := range child.Children {
				if m.Name.Local == "method" {
					f.compression = append(f.compression, m.Text)
				}
			}
		case child.Name.Local == "mechanisms" && child.Name.Space == ns.SASL:
			for _, m := range child.Children {
				if m.Name.Local == "mechanism" {
					f.mechanisms = append(f.mechanisms, m.Text)
				}
			}
		case child.Name.Local == "bind" && child.Name.Space == ns.Bind:
			f.bind = true
		case child.Name.Local == "session" && child.Name.Space == ns.Session:
			f.session = true
		case child.Name.Local == "register":
			f.register = true
		}
	}
	return f
}

// offersZlib reports whether zlib compression was advertised.
func (f *streamFeatures) offersZlib() bool {
	for _, m := range f.compression {
		if m == "zlib" {
			return true
		}
	}
	return false
}

// offersMechanism reports whether the named SASL mechanism was advertised.
func (f *streamFeatures) offersMechanism(name string) bool {
	for _, m := range f.mechanisms {
		if m == name {
			return true
		}
	}
	return false
}
