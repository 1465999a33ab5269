// Copyright 2015 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

// Package stream contains stream handling helpers and XMPP stream errors as
// defined by RFC 6120 §4.9.
package stream // import "github.com/iuvei/exmpp/stream"
