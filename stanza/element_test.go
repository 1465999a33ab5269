// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/iuvei/exmpp/stanza"
)

func readElement(t *testing.T, raw string) *stanza.Element {
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

func TestReadElement(t *testing.T) {
	el := readElement(t, `<iq xmlns='jabber:client' type='get' id='42' from='a@b'><query xmlns='jabber:iq:version'><name>test</name></query></iq>`)

	if el.Name.Local != "iq" {
		t.Errorf("name: got %q", el.Name.Local)
	}
	if el.AttrValue("type") != "get" || el.AttrValue("id") != "42" {
		t.Errorf("attrs: type=%q id=%q", el.AttrValue("type"), el.AttrValue("id"))
	}
	query := el.Child("query")
	if query == nil {
		t.Fatal("missing query child")
	}
	if query.Name.Space != "jabber:iq:version" {
		t.Errorf("query namespace: got %q", query.Name.Space)
	}
	if name := query.Child("name"); name == nil || name.Text != "test" {
		t.Errorf("nested text: got %+v", name)
	}
	if got := stanza.QueryNS(el); got != "jabber:iq:version" {
		t.Errorf("QueryNS: got %q", got)
	}
}

func TestSetAttr(t *testing.T) {
	el := readElement(t, `<message to='a@b'/>`)

	el.SetAttr("id", "abc")
	if el.AttrValue("id") != "abc" {
		t.Errorf("added attr: got %q", el.AttrValue("id"))
	}
	el.SetAttr("id", "def")
	if el.AttrValue("id") != "def" {
		t.Errorf("replaced attr: got %q", el.AttrValue("id"))
	}
	n := 0
	for _, attr := range el.Attr {
		if attr.Name.Local == "id" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("duplicate id attributes: %d", n)
	}
}

func TestElementString(t *testing.T) {
	el := readElement(t, `<message type='chat'><body>hello, world</body></message>`)
	out := el.String()
	for _, want := range []string{"<message", `type="chat"`, "<body>hello, world</body>"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() = %q, missing %q", out, want)
		}
	}
}

func TestChildNS(t *testing.T) {
	el := readElement(t, `<features><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'/><session xmlns='urn:ietf:params:xml:ns:xmpp-session'/></features>`)
	if child := el.ChildNS("urn:ietf:params:xml:ns:xmpp-session"); child == nil || child.Name.Local != "session" {
		t.Errorf("ChildNS: got %+v", child)
	}
	if el.ChildNS("urn:example:missing") != nil {
		t.Error("ChildNS should return nil for an absent namespace")
	}
}

func TestErrorCondition(t *testing.T) {
	for i, tc := range [...]struct {
		raw  string
		want string
	}{
		0: {
			raw:  `<iq type='error'><error code='409' type='cancel'><conflict xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'/></error></iq>`,
			want: "conflict",
		},
		1: {
			raw:  `<iq type='error'><error code='503'/></iq>`,
			want: "503",
		},
		2: {
			raw:  `<iq type='error'><error type='auth'><text xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'>nope</text><not-authorized xmlns='urn:ietf:params:xml:ns:xmpp-stanzas'/></error></iq>`,
			want: "not-authorized",
		},
		3: {
			raw:  `<iq type='result'/>`,
			want: "",
		},
	} {
		el := readElement(t, tc.raw)
		if got := stanza.ErrorCondition(el); got != tc.want {
			t.Errorf("%d. ErrorCondition = %q, want %q", i, got, tc.want)
		}
	}
}

func TestIs(t *testing.T) {
	if !stanza.Is(xml.Name{Space: "jabber:client", Local: "message"}) {
		t.Error("message should be a stanza")
	}
	if stanza.Is(xml.Name{Space: "jabber:client", Local: "features"}) {
		t.Error("features should not be a stanza")
	}
}
