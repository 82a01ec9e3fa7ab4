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

package p2p

import "github.com/xdagj/xdagj-p2p-go/p2p/perr"

// Kind and Error are aliased from perr so callers working with the root
// package never need to import perr directly; discover, handshake,
// reputation and ban report the same Kind values since they import perr
// themselves (the root package cannot be their dependency without a cycle).
type Kind = perr.Kind

const (
	KindMalformedMessage      = perr.KindMalformedMessage
	KindSignatureInvalid      = perr.KindSignatureInvalid
	KindProtocolViolation     = perr.KindProtocolViolation
	KindPayloadTooLarge       = perr.KindPayloadTooLarge
	KindHandshakeTimeout      = perr.KindHandshakeTimeout
	KindReadTimeout           = perr.KindReadTimeout
	KindDuplicatePeer         = perr.KindDuplicatePeer
	KindBanned                = perr.KindBanned
	KindIoError               = perr.KindIoError
	KindTypeAlreadyRegistered = perr.KindTypeAlreadyRegistered
	KindEncodeFailed          = perr.KindEncodeFailed
	KindMalformedFraming      = perr.KindMalformedFraming
)

type Error = perr.Error

var (
	ErrMalformedMessage      = perr.ErrMalformedMessage
	ErrSignatureInvalid      = perr.ErrSignatureInvalid
	ErrProtocolViolation     = perr.ErrProtocolViolation
	ErrPayloadTooLarge       = perr.ErrPayloadTooLarge
	ErrHandshakeTimeout      = perr.ErrHandshakeTimeout
	ErrReadTimeout           = perr.ErrReadTimeout
	ErrDuplicatePeer         = perr.ErrDuplicatePeer
	ErrBanned                = perr.ErrBanned
	ErrTypeAlreadyRegistered = perr.ErrTypeAlreadyRegistered
	ErrEncodeFailed          = perr.ErrEncodeFailed
	ErrMalformedFraming      = perr.ErrMalformedFraming
)

// ErrorKind extracts the Kind from err if it is (or wraps) a *Error.
func ErrorKind(err error) (Kind, bool) { return perr.ErrorKind(err) }

// IoError wraps an underlying I/O error with KindIoError.
func IoError(err error) error { return perr.IoError(err) }
