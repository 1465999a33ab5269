// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"mellium.im/xmlstream"
)

// Element is a generic parsed XML element. It preserves enough structure to
// classify, route, and re-serialize any top-level stream element without
// binding it to a concrete schema.
type Element struct {
	Name     xml.Name
	Attr     []xml.Attr
	Children []*Element
	Text     string
}

// ReadElement decodes the element that begins at start, consuming tokens from
// r through the matching end element.
func ReadElement(r xml.TokenReader, start xml.StartElement) (*Element, error) {
	el := &Element{
		Name: start.Name,
		Attr: start.Attr,
	}
	var text strings.Builder
	for {
		tok, err := r.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := ReadElement(r, t.Copy())
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.EndElement:
			el.Text = text.String()
			return el, nil
		case xml.CharData:
			text.Write(t)
		}
	}
}

// AttrValue returns the value of the first attribute with the given local
// name, or the empty string if no such attribute is present.
func (el *Element) AttrValue(local string) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}

// SetAttr replaces the value of the named attribute, adding it if it is not
// already present.
func (el *Element) SetAttr(local, value string) {
	for i, attr := range el.Attr {
		if attr.Name.Local == local {
			el.Attr[i].Value = value
			return
		}
	}
	el.Attr = append(el.Attr, xml.Attr{
		Name:  xml.Name{Local: local},
		Value: value,
	})
}

// Child returns the first child element with the given local name, or nil.
func (el *Element) Child(local string) *Element {
	for _, child := range el.Children {
		if child.Name.Local == local {
			return child
		}
	}
	return nil
}

// ChildNS returns the first child element in the given namespace, or nil.
func (el *Element) ChildNS(space string) *Element {
	for _, child := range el.Children {
		if child.Name.Space == space {
			return child
		}
	}
	return nil
}

// ChildNames returns the names of all direct children.
func (el *Element) ChildNames() []xml.Name {
	names := make([]xml.Name, 0, len(el.Children))
	for _, child := range el.Children {
		names = append(names, child.Name)
	}
	return names
}

// TokenReader satisfies the xmlstream.Marshaler interface, returning the
// element as a stream of XML tokens.
func (el *Element) TokenReader() xml.TokenReader {
	start := xml.StartElement{Name: el.Name, Attr: el.Attr}
	inner := make([]xml.TokenReader, 0, len(el.Children)+1)
	if el.Text != "" {
		text := el.Text
		var done bool
		inner = append(inner, xmlstream.ReaderFunc(func() (xml.Token, error) {
			if done {
				return nil, io.EOF
			}
			done = true
			return xml.CharData(text), io.EOF
		}))
	}
	for _, child := range el.Children {
		inner = append(inner, child.TokenReader())
	}
	return xmlstream.Wrap(xmlstream.MultiReader(inner...), start)
}

// WriteXML writes the element's tokens to w.
func (el *Element) WriteXML(w xmlstream.TokenWriter) error {
	_, err := xmlstream.Copy(w, el.TokenReader())
	return err
}

// String re-serializes the element. It is primarily useful for forwarding raw
// stanzas and for debugging; the output is canonicalized by the encoder and
// need not be byte-identical to the wire form.
func (el *Element) String() string {
	var buf bytes.Buffer
	e := xml.NewEncoder(&buf)
	if err := el.WriteXML(e); err != nil {
		return ""
	}
	if err := e.Flush(); err != nil {
		return ""
	}
	return buf.String()
}
