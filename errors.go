// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package exmpp

import (
	"errors"
	"fmt"
)

// Configuration errors, raised synchronously to the caller without changing
// session state.
var (
	ErrIncorrectJID            = errors.New("exmpp: incorrect jid")
	ErrAuthMethodUndefined     = errors.New("exmpp: authentication method undefined")
	ErrAuthInfoUndefined       = errors.New("exmpp: authentication information undefined")
	ErrAuthOrDomainUndefined   = errors.New("exmpp: authentication information or domain undefined")
	ErrNoSupportedAuthMethod   = errors.New("exmpp: no supported authentication method")
	ErrNoStreamIDForDigestAuth = errors.New("exmpp: no stream id for digest authentication")
)

// Command refusal errors; the state of the session is unchanged.
var (
	ErrBusyConnecting   = errors.New("exmpp: busy connecting to server")
	ErrNotConnected     = errors.New("exmpp: not connected")
	ErrNotLoggedIn      = errors.New("exmpp: not logged in")
	ErrUnallowedCommand = errors.New("exmpp: command not allowed in current state")
)

// Operation errors. ErrStreamClosed, ErrSessionStopped, ErrCouldNotEncrypt,
// and ErrCouldNotCompress terminate the session. ErrTimeout returns the
// session to its initial state when it ends a connect attempt and leaves the
// stream unusable otherwise. ErrBadAuthMethodReply leaves the stream open so
// another login may be attempted.
var (
	ErrTimeout            = errors.New("exmpp: operation timed out")
	ErrStreamClosed       = errors.New("exmpp: stream closed")
	ErrSessionStopped     = errors.New("exmpp: session stopped")
	ErrCouldNotEncrypt    = errors.New("exmpp: could not encrypt stream")
	ErrCouldNotCompress   = errors.New("exmpp: could not compress stream")
	ErrBadAuthMethodReply = errors.New("exmpp: malformed authentication method result")
)

// A ConnectError wraps a transport-level failure of the connect phase. The
// session returns to its initial state and may retry.
type ConnectError struct {
	Err error
}

// Error satisfies the error interface.
func (e *ConnectError) Error() string {
	return "exmpp: connect: " + e.Err.Error()
}

// Unwrap supports errors.Is and errors.As.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// An AuthError is a recoverable authentication failure carrying the defined
// condition reported by the server (eg. "not-authorized"). After an AuthError
// the stream remains open and another login attempt may be made.
type AuthError struct {
	Condition string
}

// Error satisfies the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("exmpp: authentication failed: %s", e.Condition)
}

// A RegisterError is a recoverable in-band registration failure (eg. a
// "conflict" for an already-taken username).
type RegisterError struct {
	Condition string
}

// Error satisfies the error interface.
func (e *RegisterError) Error() string {
	return fmt.Sprintf("exmpp: registration failed: %s", e.Condition)
}

// A BindError is returned when the server rejects resource binding or session
// establishment. It is fatal to the stream.
type BindError struct {
	Condition string
}

// Error satisfies the error interface.
func (e *BindError) Error() string {
	return fmt.Sprintf("exmpp: resource binding failed: %s", e.Condition)
}
