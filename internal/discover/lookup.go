// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package discover is used to look up the hosts providing an XMPP service.
package discover // import "github.com/iuvei/exmpp/internal/discover"

import (
	"context"
	"errors"
	"net"
)

// Errors returned by this package.
var (
	ErrInvalidService = errors.New("discover: service must be one of xmpp-client or xmpps-client")
)

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	ok := errors.As(err, &dnsErr)
	return ok && dnsErr.IsNotFound
}

// FallbackRecords returns fake SRV records based on the service that can be
// used if no actual SRV records can be found but we believe that an XMPP
// service exists at the given domain.
func FallbackRecords(service, domain string) []*net.SRV {
	switch service {
	case "xmpp-client":
		return []*net.SRV{{
			Target: domain,
			Port:   5222,
		}}
	case "xmpps-client":
		return []*net.SRV{{
			Target: domain,
			Port:   5223,
		}}
	}
	return nil
}

// LookupService looks for an XMPP service hosted by the given domain.
// It returns addresses from "_<service>._tcp.<domain>" SRV records and if
// none are found returns a fallback record using the domain itself and the
// default client port.
// If the lookup returns a single record whose target is "." the service is
// explicitly not offered and an empty list is returned.
// Service should be one of "xmpp-client" or "xmpps-client".
func LookupService(ctx context.Context, resolver *net.Resolver, service, domain string) (addrs []*net.SRV, err error) {
	switch service {
	case "xmpp-client", "xmpps-client":
	default:
		return nil, ErrInvalidService
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	_, addrs, err = resolver.LookupSRV(ctx, service, "tcp", domain)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		// On lookup failure fall back to the bare domain and default port.
		return FallbackRecords(service, domain), nil
	}

	// RFC 6230 §3.2.1: a single record with target "." means the service is
	// decidedly not available at this domain.
	if len(addrs) == 1 && addrs[0].Target == "." {
		return nil, nil
	}
	return addrs, nil
}
