// Copyright 2014 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package jid_test

import (
	"encoding/xml"
	"testing"

	"github.com/iuvei/exmpp/jid"
)

var parseTests = [...]struct {
	in      string
	local   string
	domain  string
	res     string
	wantErr bool
}{
	0:  {in: "juliet@example.com", local: "juliet", domain: "example.com"},
	1:  {in: "juliet@example.com/foo", local: "juliet", domain: "example.com", res: "foo"},
	2:  {in: "juliet@example.com/foo@bar", local: "juliet", domain: "example.com", res: "foo@bar"},
	3:  {in: "example.com", domain: "example.com"},
	4:  {in: "example.com/foobar", domain: "example.com", res: "foobar"},
	5:  {in: "JULIET@EXAMPLE.COM", local: "juliet", domain: "example.com"},
	6:  {in: "juliet@example.com.", local: "juliet", domain: "example.com"},
	7: {in: "@example.com", wantErr: true},
	8: {in: "juliet@example.com/", wantErr: true},
	9: {in: `fo"o@example.com`, wantErr: true},
}

func TestParse(t *testing.T) {
	for i, tc := range parseTests {
		j, err := jid.Parse(tc.in)
		switch {
		case tc.wantErr && err == nil:
			t.Errorf("%d. Parse(%q): expected error", i, tc.in)
		case !tc.wantErr && err != nil:
			t.Errorf("%d. Parse(%q): %v", i, tc.in, err)
		case err == nil:
			if j.Localpart() != tc.local || j.Domainpart() != tc.domain || j.Resourcepart() != tc.res {
				t.Errorf("%d. Parse(%q) = %q/%q/%q, want %q/%q/%q",
					i, tc.in, j.Localpart(), j.Domainpart(), j.Resourcepart(),
					tc.local, tc.domain, tc.res)
			}
		}
	}
}

func TestBareAndDomain(t *testing.T) {
	j := jid.MustParse("romeo@montague.net/orchard")
	if got := j.Bare().String(); got != "romeo@montague.net" {
		t.Errorf("Bare() = %q", got)
	}
	if got := j.Domain().String(); got != "montague.net" {
		t.Errorf("Domain() = %q", got)
	}
}

func TestEqualAfterCanonicalization(t *testing.T) {
	a := jid.MustParse("ROMEO@montague.net")
	b := jid.MustParse("romeo@MONTAGUE.NET")
	if !a.Equal(b) {
		t.Errorf("expected %q and %q to be equal", a, b)
	}
}

func TestWithResource(t *testing.T) {
	j := jid.MustParse("romeo@montague.net")
	j2, err := j.WithResource("balcony")
	if err != nil {
		t.Fatalf("WithResource: %v", err)
	}
	if j2.String() != "romeo@montague.net/balcony" {
		t.Errorf("WithResource = %q", j2)
	}
}

func TestXMLAttrRoundTrip(t *testing.T) {
	j := jid.MustParse("juliet@example.com/chamber")
	attr, err := j.MarshalXMLAttr(xml.Name{Local: "to"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if attr.Value != "juliet@example.com/chamber" {
		t.Errorf("marshal = %q", attr.Value)
	}

	var got jid.JID
	if err := got.UnmarshalXMLAttr(attr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(j) {
		t.Errorf("round trip mismatch: %q != %q", got, j)
	}
}

func TestZero(t *testing.T) {
	var j jid.JID
	if !j.Zero() {
		t.Error("zero value should report Zero")
	}
	if jid.MustParse("example.net").Zero() {
		t.Error("parsed JID should not report Zero")
	}
}
