// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package perr defines the Kind/Error vocabulary used across every p2p
// subpackage, kept dependency-free so discover, handshake, reputation, ban
// and frame can all report errors the same way without importing the root
// p2p package.
package perr

import "errors"

// Kind classifies an Error into one of the outcomes §7 of the design
// document enumerates. Callers switch on Kind rather than comparing error
// values directly, since a handful of kinds (MalformedMessage in
// particular) are produced from several call sites with different messages.
type Kind int

const (
	KindMalformedMessage Kind = iota
	KindSignatureInvalid
	KindProtocolViolation
	KindPayloadTooLarge
	KindHandshakeTimeout
	KindReadTimeout
	KindDuplicatePeer
	KindBanned
	KindIoError
	KindTypeAlreadyRegistered
	KindEncodeFailed
	KindMalformedFraming
)

func (k Kind) String() string {
	switch k {
	case KindMalformedMessage:
		return "MalformedMessage"
	case KindSignatureInvalid:
		return "SignatureInvalid"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	case KindHandshakeTimeout:
		return "HandshakeTimeout"
	case KindReadTimeout:
		return "ReadTimeout"
	case KindDuplicatePeer:
		return "DuplicatePeer"
	case KindBanned:
		return "Banned"
	case KindIoError:
		return "IoError"
	case KindTypeAlreadyRegistered:
		return "TypeAlreadyRegistered"
	case KindEncodeFailed:
		return "EncodeFailed"
	case KindMalformedFraming:
		return "MalformedFraming"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across package boundaries in p2p. It
// carries a Kind so callers (principally the connection manager, deciding
// whether and how to ban) can branch on outcome without string matching.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func newError(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

// ErrorKind extracts the Kind from err if it is (or wraps) a *Error.
func ErrorKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

var (
	// ErrMalformedMessage is returned by wire parsers on underrun or an invalid length.
	ErrMalformedMessage = newError(KindMalformedMessage, "truncated or invalid wire data")
	ErrSignatureInvalid = newError(KindSignatureInvalid, "signature does not verify")
	ErrProtocolViolation = newError(KindProtocolViolation, "message not valid for current state")
	ErrPayloadTooLarge   = newError(KindPayloadTooLarge, "payload exceeds configured maximum")
	ErrHandshakeTimeout  = newError(KindHandshakeTimeout, "handshake did not complete in time")
	ErrReadTimeout       = newError(KindReadTimeout, "no data received within read timeout")
	ErrDuplicatePeer     = newError(KindDuplicatePeer, "a session for this node id already exists")
	ErrBanned            = newError(KindBanned, "remote address is banned")
	ErrTypeAlreadyRegistered = newError(KindTypeAlreadyRegistered, "opcode is reserved or already registered")
	ErrEncodeFailed      = newError(KindEncodeFailed, "failed to encode outgoing frame")
	ErrMalformedFraming  = newError(KindMalformedFraming, "chunked frame aggregate is inconsistent")
)

// IoError wraps an underlying I/O error with KindIoError.
func IoError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIoError, Msg: err.Error()}
}
