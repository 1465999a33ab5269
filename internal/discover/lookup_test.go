// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package discover_test

import (
	"context"
	"testing"

	"github.com/iuvei/exmpp/internal/discover"
)

func TestFallbackRecords(t *testing.T) {
	recs := discover.FallbackRecords("xmpp-client", "example.net")
	if len(recs) != 1 || recs[0].Target != "example.net" || recs[0].Port != 5222 {
		t.Errorf("xmpp-client fallback: got %+v", recs)
	}

	recs = discover.FallbackRecords("xmpps-client", "example.net")
	if len(recs) != 1 || recs[0].Port != 5223 {
		t.Errorf("xmpps-client fallback: got %+v", recs)
	}

	if recs = discover.FallbackRecords("xmpp-server", "example.net"); recs != nil {
		t.Errorf("unsupported service fallback: got %+v", recs)
	}
}

func TestLookupServiceRejectsUnknownService(t *testing.T) {
	if _, err := discover.LookupService(context.Background(), nil, "smtp", "example.net"); err != discover.ErrInvalidService {
		t.Errorf("got %v, want ErrInvalidService", err)
	}
}
