// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package exmpp

import (
	"crypto/md5"
	"fmt"
	"strings"
	"testing"

	"mellium.im/sasl"
)

func TestParseDigestChallenge(t *testing.T) {
	fields := parseDigestChallenge([]byte(`realm="example.net", nonce="abc123", qop="auth", charset=utf-8, algorithm=md5-sess`))
	for k, want := range map[string]string{
		"realm":     "example.net",
		"nonce":     "abc123",
		"qop":       "auth",
		"charset":   "utf-8",
		"algorithm": "md5-sess",
	} {
		if fields[k] != want {
			t.Errorf("field %q: got %q, want %q", k, fields[k], want)
		}
	}
}

func TestAnonymousMechanism(t *testing.T) {
	client := sasl.NewClient(Anonymous, sasl.Credentials(func() ([]byte, []byte, []byte) {
		return nil, nil, nil
	}))
	more, resp, err := client.Step(nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if more {
		t.Error("ANONYMOUS should complete in a single step")
	}
	if resp == nil || len(resp) != 0 {
		t.Errorf("initial response: got %v, want empty", resp)
	}
}

func TestDigestMD5Exchange(t *testing.T) {
	client := sasl.NewClient(DigestMD5("example.net"), sasl.Credentials(func() ([]byte, []byte, []byte) {
		return []byte("chris"), []byte("secret"), nil
	}))

	more, resp, err := client.Step(nil)
	if err != nil {
		t.Fatalf("initial step: %v", err)
	}
	if !more || resp != nil {
		t.Fatalf("initial step: more=%v resp=%v, want challenge-driven exchange", more, resp)
	}

	challenge := []byte(`realm="example.net",nonce="OA6MG9tEQGm2hh",qop="auth",charset=utf-8,algorithm=md5-sess`)
	more, resp, err = client.Step(challenge)
	if err != nil {
		t.Fatalf("challenge step: %v", err)
	}
	if !more {
		t.Fatal("expected a second round for rspauth verification")
	}

	fields := parseDigestChallenge(resp)
	if fields["username"] != "chris" || fields["nonce"] != "OA6MG9tEQGm2hh" {
		t.Errorf("response fields: %q", resp)
	}
	if fields["digest-uri"] != "xmpp/example.net" {
		t.Errorf("digest-uri: got %q", fields["digest-uri"])
	}
	if fields["nc"] != "00000001" || fields["qop"] != "auth" {
		t.Errorf("nc/qop: got %q/%q", fields["nc"], fields["qop"])
	}
	if want := refDigest("chris", "secret", fields, "AUTHENTICATE"); fields["response"] != want {
		t.Errorf("digest response: got %q, want %q", fields["response"], want)
	}

	rspauth := refDigest("chris", "secret", fields, "")
	more, resp, err = client.Step([]byte("rspauth=" + rspauth))
	if err != nil {
		t.Fatalf("rspauth step: %v", err)
	}
	if more || len(resp) != 0 {
		t.Errorf("rspauth step: more=%v resp=%q, want completion", more, resp)
	}
}

func TestDigestMD5RejectsBadRspauth(t *testing.T) {
	client := sasl.NewClient(DigestMD5("example.net"), sasl.Credentials(func() ([]byte, []byte, []byte) {
		return []byte("chris"), []byte("secret"), nil
	}))
	if _, _, err := client.Step(nil); err != nil {
		t.Fatalf("initial step: %v", err)
	}
	if _, _, err := client.Step([]byte(`nonce="x",qop="auth"`)); err != nil {
		t.Fatalf("challenge step: %v", err)
	}
	if _, _, err := client.Step([]byte(`rspauth=deadbeef`)); err == nil {
		t.Error("expected rspauth mismatch to fail")
	}
}

func TestDigestMD5RequiresNonce(t *testing.T) {
	client := sasl.NewClient(DigestMD5("example.net"), sasl.Credentials(func() ([]byte, []byte, []byte) {
		return []byte("chris"), []byte("secret"), nil
	}))
	if _, _, err := client.Step(nil); err != nil {
		t.Fatalf("initial step: %v", err)
	}
	if _, _, err := client.Step([]byte(`realm="example.net"`)); err == nil {
		t.Error("expected missing nonce to fail")
	}
}

func TestNewSASLClientUnsupported(t *testing.T) {
	if _, err := newSASLClient("SCRAM-SHA-512", "u", "p", "example.net", nil); err == nil {
		t.Error("expected unsupported mechanism error")
	}
}

func TestLegacyDigestValue(t *testing.T) {
	got := legacyDigest("abc", "pass")
	if got != strings.ToLower(got) || len(got) != 40 {
		t.Errorf("digest shape: %q", got)
	}
	if got != legacyDigest("abc", "pass") {
		t.Error("digest should be deterministic")
	}
	if got == legacyDigest("abd", "pass") {
		t.Error("digest should depend on the stream id")
	}
}

// refDigest independently computes the RFC 2831 digest from response fields.
// An empty method yields the rspauth value.
func refDigest(username, password string, f map[string]string, method string) string {
	h := func(data string) string {
		sum := md5.Sum([]byte(data))
		return fmt.Sprintf("%x", sum)
	}
	creds := md5.Sum([]byte(username + ":" + f["realm"] + ":" + password))
	a1 := string(creds[:]) + ":" + f["nonce"] + ":" + f["cnonce"]
	a2 := method + ":" + f["digest-uri"]
	return h(h(a1) + ":" + f["nonce"] + ":" + f["nc"] + ":" + f["cnonce"] + ":" + f["qop"] + ":" + h(a2))
}
