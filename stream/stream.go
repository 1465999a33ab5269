// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stream

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/iuvei/exmpp/internal/ns"
)

// xmlHeader is the XML declaration sent before each new stream.
const xmlHeader = `<?xml version='1.0'?>`

// Info contains metadata extracted from a stream start element.
type Info struct {
	To      string
	From    string
	ID      string
	Version Version
	XMLNS   string
	Lang    string
}

// ParseStart extracts stream metadata from the given <stream:stream> start
// element. It only returns stream errors.
func ParseStart(start xml.StartElement) (Info, error) {
	if start.Name.Local != "stream" || start.Name.Space != ns.Stream {
		return Info{}, BadNamespacePrefix
	}

	info := Info{}
	for _, attr := range start.Attr {
		switch attr.Name {
		case xml.Name{Space: "", Local: "to"}:
			info.To = attr.Value
		case xml.Name{Space: "", Local: "from"}:
			info.From = attr.Value
		case xml.Name{Space: "", Local: "id"}:
			info.ID = attr.Value
		case xml.Name{Space: "", Local: "version"}:
			if err := (&info.Version).UnmarshalXMLAttr(attr); err != nil {
				return info, BadFormat
			}
		case xml.Name{Space: "", Local: "xmlns"}:
			if attr.Value != ns.Client && attr.Value != "jabber:server" {
				return info, InvalidNamespace
			}
			info.XMLNS = attr.Value
		case xml.Name{Space: "xmlns", Local: "stream"}:
			if attr.Value != ns.Stream {
				return info, InvalidNamespace
			}
		case xml.Name{Space: "xml", Local: "lang"}:
			info.Lang = attr.Value
		}
	}
	return info, nil
}

// Send transmits a new XML header followed by a stream start element on the
// given io.Writer addressed to the provided domain.
//
// We don't use an xml.Encoder both because Go's standard library xml package
// really doesn't like the namespaced stream:stream attribute and because we
// can guarantee well-formedness of the XML with a print in this case and
// printing is much faster than encoding.
//
// Legacy streams (any version below 1.0) omit the version attribute entirely
// so that pre-RFC servers answer with a legacy header of their own.
func Send(w io.Writer, to string, version Version) error {
	b := bufio.NewWriter(w)
	_, err := fmt.Fprintf(b,
		xmlHeader+`<stream:stream xmlns='%s' xmlns:stream='%s' to='`,
		ns.Client, ns.Stream,
	)
	if err != nil {
		return err
	}
	if err = xml.EscapeText(b, []byte(to)); err != nil {
		return err
	}
	if _, err = b.WriteString(`'`); err != nil {
		return err
	}
	if version.Must() {
		if _, err = fmt.Fprintf(b, ` version='%s'`, version); err != nil {
			return err
		}
	}
	if _, err = b.WriteString(`>`); err != nil {
		return err
	}
	return b.Flush()
}

// End writes the stream end tag.
func End(w io.Writer) error {
	_, err := io.WriteString(w, `</stream:stream>`)
	return err
}
