// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package stream_test

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/iuvei/exmpp/stream"
)

func TestParseVersion(t *testing.T) {
	for i, tc := range [...]struct {
		in      string
		want    stream.Version
		wantErr bool
	}{
		0: {in: "1.0", want: stream.Version{Major: 1, Minor: 0}},
		1: {in: "0.9", want: stream.Version{Major: 0, Minor: 9}},
		2: {in: "12.255", want: stream.Version{Major: 12, Minor: 255}},
		3: {in: "1", wantErr: true},
		4: {in: "1.0.0", wantErr: true},
		5: {in: "a.b", wantErr: true},
		6: {in: "-1.0", wantErr: true},
	} {
		v, err := stream.ParseVersion(tc.in)
		switch {
		case tc.wantErr && err == nil:
			t.Errorf("%d. ParseVersion(%q): expected error", i, tc.in)
		case !tc.wantErr && err != nil:
			t.Errorf("%d. ParseVersion(%q): %v", i, tc.in, err)
		case err == nil && v != tc.want:
			t.Errorf("%d. ParseVersion(%q) = %v, want %v", i, tc.in, v, tc.want)
		}
	}
}

func TestVersionMust(t *testing.T) {
	if stream.EmptyVersion.Must() {
		t.Error("legacy version should not mandate feature negotiation")
	}
	if !stream.DefaultVersion.Must() {
		t.Error("1.0 must mandate feature negotiation")
	}
}

func TestSendHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := stream.Send(&buf, "example.net", stream.DefaultVersion); err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`to='example.net'`,
		`version='1.0'`,
		`xmlns='jabber:client'`,
		`xmlns:stream='http://etherx.jabber.org/streams'`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("header %q missing %q", out, want)
		}
	}

	buf.Reset()
	if err := stream.Send(&buf, "example.net", stream.EmptyVersion); err != nil {
		t.Fatalf("Send: %v", err)
	}
	parts := strings.SplitN(buf.String(), "<stream:stream", 2)
	if len(parts) != 2 || strings.Contains(parts[1], "version=") {
		t.Errorf("legacy header should omit the version attribute: %q", buf.String())
	}
}

func TestParseStart(t *testing.T) {
	raw := `<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' id='abc' from='example.net' version='1.0'>`
	d := xml.NewDecoder(strings.NewReader(raw))
	tok, err := d.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	info, err := stream.ParseStart(tok.(xml.StartElement))
	if err != nil {
		t.Fatalf("ParseStart: %v", err)
	}
	if info.ID != "abc" || info.From != "example.net" || !info.Version.Must() {
		t.Errorf("ParseStart = %+v", info)
	}
}

func TestErrorUnmarshal(t *testing.T) {
	raw := `<stream:error xmlns:stream='http://etherx.jabber.org/streams'><system-shutdown xmlns='urn:ietf:params:xml:ns:xmpp-streams'/></stream:error>`
	var se stream.Error
	if err := xml.Unmarshal([]byte(raw), &se); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if se.Err != "system-shutdown" {
		t.Errorf("condition: got %q", se.Err)
	}
	if se.Error() != "system-shutdown" {
		t.Errorf("Error(): got %q", se.Error())
	}
}

func TestErrorMarshal(t *testing.T) {
	out, err := xml.Marshal(stream.PolicyViolation)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{"policy-violation", stream.NSError} {
		if !strings.Contains(string(out), want) {
			t.Errorf("marshaled error %q missing %q", out, want)
		}
	}
}

func TestCondition(t *testing.T) {
	names := []xml.Name{
		{Space: "urn:example", Local: "whatever"},
		{Space: stream.NSError, Local: "conflict"},
	}
	if got := stream.Condition(names); got != "conflict" {
		t.Errorf("Condition = %q, want conflict", got)
	}
	if got := stream.Condition(nil); got != "undefined-condition" {
		t.Errorf("Condition(nil) = %q", got)
	}
}
