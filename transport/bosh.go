// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iuvei/exmpp/internal"
	"github.com/iuvei/exmpp/internal/ns"
)

// NSBOSH and NSXBOSH are the namespaces used by the HTTP binding.
const (
	NSBOSH  = "http://jabber.org/protocol/httpbind"
	NSXBOSH = "urn:xmpp:xbosh"
)

// boshDefaultWait is the longest pause, in seconds, we allow the connection
// manager to hold a request.
const boshDefaultWait = 60

// ErrBOSHTerminated is returned from reads after the connection manager ends
// the HTTP session.
var ErrBOSHTerminated = errors.New("transport: bosh session terminated")

// BOSHConfig contains options for establishing a BOSH transport.
type BOSHConfig struct {
	// Domain is the XMPP service domain, sent as the "to" attribute of the
	// session creation request.
	Domain string

	// Timeout bounds each HTTP request. Zero uses the BOSH wait interval plus
	// a grace period.
	Timeout time.Duration

	// Client optionally overrides the HTTP client used for all requests.
	Client *http.Client
}

// Bosh is a Transport over the BOSH HTTP binding (XEP-0124, XEP-0206).
//
// The engine keeps speaking raw XMPP streams to the transport: stream headers
// written to a Bosh are translated into session creation or restart requests
// and a synthetic stream header is synthesized on the read side, so the XML
// parser above never knows it is running over HTTP.
type Bosh struct {
	url    string
	domain string
	client *http.Client
	wait   int

	mu   sync.Mutex
	cond *sync.Cond

	sid        string
	rid        uint64
	started    bool
	terminated bool
	recv       bytes.Buffer

	// inflight is true while a poll request is on the wire; it keeps
	// concurrent reads from issuing overlapping empty requests.
	inflight bool
}

// DialBOSH returns a BOSH transport bound to the connection manager at url.
// It sends no request, so an unreachable connection manager is only detected
// when the HTTP session is created, which happens lazily when the engine
// writes its first stream header.
func DialBOSH(ctx context.Context, url string, cfg BOSHConfig) (*Bosh, error) {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = (boshDefaultWait + 5) * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	b := &Bosh{
		url:    url,
		domain: cfg.Domain,
		client: client,
		wait:   boshDefaultWait,
		// XEP-0124 §7: the initial RID is a large random positive integer.
		rid: seedRID(),
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

func seedRID() uint64 {
	// Nine hex digits keep rid + request count comfortably inside 2^53.
	n, err := strconv.ParseUint(internal.RandomID(9), 16, 64)
	if err != nil {
		panic(err)
	}
	return n
}

// Write translates outbound stream traffic into BOSH requests. Stream headers
// become session creation (first) or restart (subsequent) requests; anything
// else is sent as body payload. Stream end tags terminate the HTTP session.
func (b *Bosh) Write(p []byte) (int, error) {
	s := string(p)
	switch {
	case strings.Contains(s, "<stream:stream"):
		if err := b.openOrRestart(); err != nil {
			return 0, err
		}
		return len(p), nil
	case strings.Contains(s, "</stream:stream>"):
		return len(p), b.request(`type='terminate'`, "")
	case strings.TrimSpace(s) == "":
		// Whitespace keepalives have no BOSH representation.
		return len(p), nil
	default:
		return len(p), b.request("", s)
	}
}

func (b *Bosh) openOrRestart() error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return b.create()
	}
	// A restart opens a new stream for the reset parser above; synthesize its
	// header ahead of the features the restart response carries.
	b.mu.Lock()
	fmt.Fprintf(&b.recv,
		`<stream:stream xmlns='%s' xmlns:stream='%s' from='%s' version='1.0'>`,
		ns.Client, ns.Stream, b.domain,
	)
	b.cond.Broadcast()
	b.mu.Unlock()
	return b.request(fmt.Sprintf(`xmpp:restart='true' xmlns:xmpp='%s'`, NSXBOSH), "")
}

// create issues the session creation request and synthesizes the equivalent
// raw-stream bytes on the read side.
func (b *Bosh) create() error {
	b.mu.Lock()
	rid := b.rid
	b.rid++
	b.mu.Unlock()

	body := fmt.Sprintf(
		`<body content='text/xml; charset=utf-8' rid='%d' to='%s' xml:lang='en' wait='%d' hold='1' ver='1.6' xmpp:version='1.0' xmlns='%s' xmlns:xmpp='%s'/>`,
		rid, b.domain, b.wait, NSBOSH, NSXBOSH,
	)
	respBody, err := b.post(body)
	if err != nil {
		return err
	}
	attrs, payload, err := splitBody(respBody)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sid = attrs["sid"]
	b.started = true
	// Synthesize the stream header the parser above is waiting for; XEP-0206
	// carries the stream features inline in the creation response.
	fmt.Fprintf(&b.recv,
		`<stream:stream xmlns='%s' xmlns:stream='%s' id='%s' from='%s' version='1.0'>`,
		ns.Client, ns.Stream, attrs["authid"], b.domain,
	)
	b.recv.Write(payload)
	b.cond.Broadcast()
	return nil
}

// request sends one wrapped request, appending any returned payload to the
// read buffer. extra carries additional body attributes.
func (b *Bosh) request(extra, payload string) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return ErrClosed
	}
	rid := b.rid
	b.rid++
	sid := b.sid
	b.mu.Unlock()

	if extra != "" {
		extra = " " + extra
	}
	body := fmt.Sprintf(`<body rid='%d' sid='%s' xmlns='%s'%s>%s</body>`,
		rid, sid, NSBOSH, extra, payload)
	respBody, err := b.post(body)
	if err != nil {
		return err
	}
	attrs, data, err := splitBody(respBody)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(data) > 0 {
		b.recv.Write(data)
	}
	if attrs["type"] == "terminate" {
		b.terminated = true
	}
	b.cond.Broadcast()
	return nil
}

func (b *Bosh) post(body string) ([]byte, error) {
	resp, err := b.client.Post(b.url, "text/xml; charset=utf-8", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: bosh HTTP status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err = buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// splitBody separates the <body/> wrapper's attributes from its inner payload.
func splitBody(raw []byte) (map[string]string, []byte, error) {
	d := xml.NewDecoder(bytes.NewReader(raw))
	tok, err := d.Token()
	for err == nil {
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != "body" {
				return nil, nil, fmt.Errorf("transport: unexpected bosh element <%s>", start.Name.Local)
			}
			attrs := make(map[string]string, len(start.Attr))
			for _, a := range start.Attr {
				attrs[a.Name.Local] = a.Value
			}
			inner := innerXML(raw)
			return attrs, inner, nil
		}
		tok, err = d.Token()
	}
	return nil, nil, err
}

// innerXML returns the bytes between the body start and end tags. The wrapper
// is well-formed XML produced by the connection manager, so plain index
// arithmetic is safe here.
func innerXML(raw []byte) []byte {
	s := bytes.IndexByte(raw, '>')
	e := bytes.LastIndex(raw, []byte("</body>"))
	if s == -1 || e == -1 || e <= s {
		return nil
	}
	return raw[s+1 : e]
}

// Read blocks until payload is available, polling the connection manager with
// empty requests when the local buffer runs dry.
func (b *Bosh) Read(p []byte) (int, error) {
	for {
		b.mu.Lock()
		for b.recv.Len() == 0 && b.inflight && !b.terminated {
			b.cond.Wait()
		}
		if b.recv.Len() > 0 {
			n, err := b.recv.Read(p)
			b.mu.Unlock()
			return n, err
		}
		if b.terminated {
			b.mu.Unlock()
			return 0, ErrBOSHTerminated
		}
		if !b.started {
			// Session creation hasn't happened yet; wait for the first write.
			b.cond.Wait()
			b.mu.Unlock()
			continue
		}
		b.inflight = true
		b.mu.Unlock()

		err := b.request("", "")
		b.mu.Lock()
		b.inflight = false
		b.cond.Broadcast()
		b.mu.Unlock()
		if err != nil {
			return 0, err
		}
	}
}

// Close terminates the HTTP session.
func (b *Bosh) Close() error {
	b.mu.Lock()
	if b.terminated || !b.started {
		b.terminated = true
		b.cond.Broadcast()
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	err := b.request(`type='terminate'`, "")
	b.mu.Lock()
	b.terminated = true
	b.cond.Broadcast()
	b.mu.Unlock()
	return err
}

// StartTLS is unsupported: security for BOSH comes from HTTPS.
func (b *Bosh) StartTLS(cfg *tls.Config) error {
	return ErrUnsupportedUpgrade
}

// Compress is unsupported: HTTP transfer encoding already covers compression.
func (b *Bosh) Compress() error {
	return ErrUnsupportedUpgrade
}

// WhitespacePing is a no-op on BOSH.
func (b *Bosh) WhitespacePing() error {
	return nil
}

// Type satisfies the Transport interface.
func (b *Bosh) Type() Type {
	return BOSH
}

// Property satisfies the Transport interface.
func (b *Bosh) Property(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch name {
	case PropSessionID:
		return b.sid, true
	case PropEncrypted:
		return strconv.FormatBool(strings.HasPrefix(b.url, "https://")), true
	case PropCompressed:
		return "false", true
	}
	return "", false
}
