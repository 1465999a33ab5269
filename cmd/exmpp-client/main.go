// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// The exmpp-client command is a small interactive XMPP client used to
// exercise the session engine against a real server. It connects, logs in,
// sends every line read from standard input as a chat message, and prints
// inbound stanzas.
package main

import (
	"bufio"
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/iuvei/exmpp"
	"github.com/iuvei/exmpp/stanza"
)

var (
	recvColor = color.New(color.FgCyan)
	sendColor = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed, color.Bold)
)

func main() {
	var (
		addr      = flag.String("jid", "", "JID to log in as (user@domain/resource)")
		pass      = flag.String("pass", "", "password")
		host      = flag.String("host", "", "server host (when empty and -port is 0, found by SRV lookup of the JID domain)")
		port      = flag.Uint("port", 0, "server port (0 enables SRV discovery)")
		to        = flag.String("to", "", "peer to send messages to")
		mech      = flag.String("mech", "PLAIN", "SASL mechanism (PLAIN, ANONYMOUS, DIGEST-MD5)")
		noTLS     = flag.Bool("no-starttls", false, "disable STARTTLS")
		ping      = flag.Duration("ping", time.Minute, "whitespace ping interval (0 disables)")
		timeout   = flag.Duration("timeout", 10*time.Second, "connect and login timeout")
		useDigest = flag.Bool("legacy-digest", false, "use legacy jabber:iq:auth digest authentication")
	)
	flag.Parse()
	if *addr == "" || *pass == "" {
		flag.Usage()
		os.Exit(2)
	}

	s := exmpp.New()
	defer s.Stop()

	method := exmpp.MethodForMechanism(*mech)
	if *useDigest {
		method = exmpp.AuthDigest
	}
	if err := s.SetAuth(method, *addr, *pass); err != nil {
		log.Fatalf("set auth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	server := *host
	opts := exmpp.Options{
		DisableStartTLS: *noTLS,
		WhitespacePing:  *ping,
		Timeout:         *timeout,
	}
	streamID, err := s.ConnectTCP(ctx, server, uint16(*port), opts)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	fmt.Printf("stream %s open\n", streamID)

	who, err := s.Login(ctx)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	fmt.Printf("logged in as %s\n", who)

	go func() {
		for p := range s.Packets() {
			switch p.Kind {
			case exmpp.KindStreamError:
				errColor.Printf("stream error: %s\n", p.Condition)
			default:
				recvColor.Printf("<- [%s] %s\n", p.Kind, p.Raw)
			}
		}
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		body := sc.Text()
		if body == "" {
			continue
		}
		msg := &stanza.Element{
			Name: xml.Name{Local: "message"},
			Children: []*stanza.Element{{
				Name: xml.Name{Local: "body"},
				Text: body,
			}},
		}
		msg.SetAttr("type", "chat")
		if *to != "" {
			msg.SetAttr("to", *to)
		}
		id, err := s.SendPacket(msg)
		if err != nil {
			errColor.Printf("send: %v\n", err)
			continue
		}
		sendColor.Printf("-> message %s\n", id)
	}
}
