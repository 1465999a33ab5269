// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"encoding/xml"
	"io"
	"sync/atomic"

	"github.com/iuvei/exmpp/internal/ns"
	"github.com/iuvei/exmpp/stanza"
	"github.com/iuvei/exmpp/stream"
	"github.com/iuvei/exmpp/transport"
)

// A parserEvent is one unit of inbound stream traffic delivered to the
// session's input channel.
type parserEvent interface {
	parserEvent()
}

// evStreamStart is emitted for an opening <stream:stream> element.
type evStreamStart struct {
	Info stream.Info
}

// evStreamElement is emitted for every parsed top-level element that is not a
// stream header, stream end, or stream error.
type evStreamElement struct {
	Element *stanza.Element
}

// evStreamError is emitted when the server sends a <stream:error>.
type evStreamError struct {
	Condition string
	Text      string
}

// evStreamEnd is emitted when the input stream ends: gracefully via a stream
// end tag, or abruptly when the transport is closed.
type evStreamEnd struct {
	Err error // nil for a graceful </stream:stream>
}

// evParseError is emitted when inbound bytes cannot be tokenized.
type evParseError struct {
	Err error
}

func (evStreamStart) parserEvent()   {}
func (evStreamElement) parserEvent() {}
func (evStreamError) parserEvent()   {}
func (evStreamEnd) parserEvent()     {}
func (evParseError) parserEvent()    {}

// streamParser incrementally tokenizes the inbound byte stream and feeds
// events to the session in reception order.
//
// The parser runs lock-step with the session: after emitting an event it does
// not touch the transport again until the session calls Resume. This lets the
// session swap transport layers (STARTTLS, compression) and reset parser
// state between events without racing the reader.
type streamParser struct {
	tr     transport.Transport
	inputs chan<- input

	resume    chan struct{}
	done      chan struct{}
	needReset uint32
}

func newStreamParser(tr transport.Transport, inputs chan<- input) *streamParser {
	return &streamParser{
		tr:     tr,
		inputs: inputs,
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Reset discards all parser state before the next token is read. It must be
// called whenever a new stream is opened on the same transport: after SASL
// success, after a TLS proceed, and after compression is engaged.
func (p *streamParser) Reset() {
	atomic.StoreUint32(&p.needReset, 1)
}

// Resume lets the parser read the next token. The session calls it exactly
// once after fully processing each emitted event.
func (p *streamParser) Resume() {
	select {
	case p.resume <- struct{}{}:
	default:
	}
}

// Stop terminates the reader goroutine. The transport must be closed
// separately to unblock any in-flight read.
func (p *streamParser) Stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// run is the reader loop. It owns the xml.Decoder; nothing else reads from
// the transport while the parser is alive.
func (p *streamParser) run() {
	d := xml.NewDecoder(p.tr)
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				p.emit(evStreamEnd{Err: io.EOF})
			} else {
				p.emit(evParseError{Err: err})
			}
			return
		}

		var ev parserEvent
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "stream" && t.Name.Space == ns.Stream {
				info, err := stream.ParseStart(t)
				if err != nil {
					ev = evParseError{Err: err}
					break
				}
				ev = evStreamStart{Info: info}
				break
			}
			el, err := stanza.ReadElement(d, t.Copy())
			if err != nil {
				ev = evParseError{Err: err}
				break
			}
			if el.Name.Local == "error" && el.Name.Space == ns.Stream {
				text := ""
				if t := el.Child("text"); t != nil {
					text = t.Text
				}
				ev = evStreamError{
					Condition: stream.Condition(el.ChildNames()),
					Text:      text,
				}
				break
			}
			ev = evStreamElement{Element: el}
		case xml.EndElement:
			// The only end element visible at the top level is the stream
			// end tag.
			ev = evStreamEnd{}
		default:
			// Ignore whitespace keepalives, processing instructions, and
			// comments between stanzas.
			continue
		}

		if !p.emit(ev) {
			return
		}
		if _, fatal := ev.(evStreamEnd); fatal {
			return
		}
		if _, fatal := ev.(evParseError); fatal {
			return
		}

		// Park until the session has fully processed the event.
		select {
		case <-p.resume:
		case <-p.done:
			return
		}
		if atomic.CompareAndSwapUint32(&p.needReset, 1, 0) {
			d = xml.NewDecoder(p.tr)
		}
	}
}

// emit delivers an event unless the session has shut down.
func (p *streamParser) emit(ev parserEvent) bool {
	select {
	case p.inputs <- input{ev: ev}:
		return true
	case <-p.done:
		return false
	}
}
