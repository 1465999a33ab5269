// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package exmpp

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/iuvei/exmpp/stanza"
)

func parseTestElement(t *testing.T, raw string) *stanza.Element {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(raw))
	tok, err := d.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	el, err := stanza.ReadElement(d, tok.(xml.StartElement))
	if err != nil {
		t.Fatalf("ReadElement: %v", err)
	}
	return el
}

const fullFeatures = `<stream:features xmlns:stream='http://etherx.jabber.org/streams'>` +
	`<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'><required/></starttls>` +
	`<compression xmlns='http://jabber.org/features/compress'><method>zlib</method><method>lzw</method></compression>` +
	`<mechanisms xmlns='urn:ietf:params:xml:ns:xmpp-sasl'><mechanism>PLAIN</mechanism><mechanism>DIGEST-MD5</mechanism></mechanisms>` +
	`<bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'/>` +
	`<session xmlns='urn:ietf:params:xml:ns:xmpp-session'/>` +
	`</stream:features>`

func TestParseFeatures(t *testing.T) {
	f := parseFeatures(parseTestElement(t, fullFeatures))

	if !f.startTLS || !f.startTLSRequired {
		t.Errorf("starttls: got %v required=%v", f.startTLS, f.startTLSRequired)
	}
	if !f.offersZlib() {
		t.Error("zlib should be offered")
	}
	if len(f.compression) != 2 {
		t.Errorf("compression methods: got %v", f.compression)
	}
	if !f.offersMechanism("PLAIN") || !f.offersMechanism("DIGEST-MD5") {
		t.Errorf("mechanisms: got %v", f.mechanisms)
	}
	if f.offersMechanism("ANONYMOUS") {
		t.Error("ANONYMOUS should not be offered")
	}
	if !f.bind || !f.session {
		t.Errorf("bind=%v session=%v", f.bind, f.session)
	}
}

func TestParseFeaturesEmpty(t *testing.T) {
	f := parseFeatures(parseTestElement(t, `<stream:features xmlns:stream='http://etherx.jabber.org/streams'/>`))
	if f.startTLS || f.offersZlib() || len(f.mechanisms) != 0 || f.bind || f.session {
		t.Errorf("empty features parsed as %+v", f)
	}
}

func TestParseFeaturesOptionalStartTLS(t *testing.T) {
	f := parseFeatures(parseTestElement(t,
		`<stream:features xmlns:stream='http://etherx.jabber.org/streams'><starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/></stream:features>`))
	if !f.startTLS || f.startTLSRequired {
		t.Errorf("starttls: got %v required=%v, want offered but optional", f.startTLS, f.startTLSRequired)
	}
}
