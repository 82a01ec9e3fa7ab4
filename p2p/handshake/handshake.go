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

package handshake

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/xdagj/xdagj-p2p-go/p2p/ban"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
	"github.com/xdagj/xdagj-p2p-go/p2p/frame"
	"github.com/xdagj/xdagj-p2p-go/p2p/perr"
)

// State is a handshake's position in the dialer or acceptor state machine.
type State int

const (
	StateIdle State = iota
	StateSentInit
	StateAwaitingHello
	StateSentWorld
	StateAwaitingInit
	StateSentHello
	StateDone
)

// packetSource is the minimal read side a handshake needs; *frame.Decoder
// satisfies it, and tests supply a fake.
type packetSource interface {
	Next() (packetType byte, body []byte, err error)
}

// packetSink is the minimal write side a handshake needs; callers hand in
// a function that writes one already-framed packet's frames to the wire.
type packetSink func(packetType byte, payload []byte) error

// Failure wraps a handshake error with the ban reason the caller should
// apply, if any. Ban false means the caller should close without banning
// (e.g. a timeout); Reason is then empty.
type Failure struct {
	Err    error
	Reason ban.Reason
	Ban    bool
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

func fail(err error, reason ban.Reason) *Failure {
	return &Failure{Err: err, Reason: reason, Ban: true}
}

func failNoBan(err error) *Failure {
	return &Failure{Err: err, Ban: false}
}

func newSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("handshake: generate secret: %w", err)
	}
	return s, nil
}

// RunDialer drives the outbound half of the handshake: IDLE -> SENT_INIT ->
// AWAITING_HELLO -> SENT_WORLD -> DONE. local.NodeID is filled in by the
// caller. On success it returns the verified remote Descriptor.
func RunDialer(dec packetSource, send packetSink, priv *ecdsa.PrivateKey, local Descriptor, expiry time.Duration) (Descriptor, *Failure) {
	secret, err := newSecret()
	if err != nil {
		return Descriptor{}, failNoBan(err)
	}

	if err := send(OpInit, encodeInit(Init{Secret: secret, Timestamp: time.Now().Unix()})); err != nil {
		return Descriptor{}, failNoBan(err)
	}

	pt, body, err := readWithin(dec, expiry)
	if err != nil {
		return Descriptor{}, failNoBan(perr.ErrHandshakeTimeout)
	}
	if pt != OpHello {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.ProtocolViolation)
	}

	remote, echoed, recovered, err := decodeGreeting(body)
	if err != nil {
		return Descriptor{}, fail(perr.ErrSignatureInvalid, ban.MaliciousBehavior)
	}
	if recovered != remote.NodeID {
		return Descriptor{}, fail(perr.ErrSignatureInvalid, ban.MaliciousBehavior)
	}
	if echoed != secret {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.BadHandshake)
	}
	if remote.NetworkID != local.NetworkID || remote.NetworkVersion != local.NetworkVersion {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.BadHandshake)
	}

	world, err := encodeGreeting(local, secret, priv)
	if err != nil {
		return Descriptor{}, failNoBan(err)
	}
	if err := send(OpWorld, world); err != nil {
		return Descriptor{}, failNoBan(err)
	}
	return remote, nil
}

// RunAcceptor drives the inbound half: IDLE -> AWAITING_INIT -> SENT_HELLO
// -> DONE, verifying the dialer's WORLD against the secret this side
// issued in HELLO.
func RunAcceptor(dec packetSource, send packetSink, priv *ecdsa.PrivateKey, local Descriptor, expiry time.Duration) (Descriptor, *Failure) {
	pt, body, err := readWithin(dec, expiry)
	if err != nil {
		return Descriptor{}, failNoBan(perr.ErrHandshakeTimeout)
	}
	if pt != OpInit {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.ProtocolViolation)
	}
	initMsg, err := decodeInit(body)
	if err != nil {
		return Descriptor{}, fail(perr.ErrMalformedMessage, ban.BadHandshake)
	}

	hello, err := encodeGreeting(local, initMsg.Secret, priv)
	if err != nil {
		return Descriptor{}, failNoBan(err)
	}
	if err := send(OpHello, hello); err != nil {
		return Descriptor{}, failNoBan(err)
	}

	pt, body, err = readWithin(dec, expiry)
	if err != nil {
		return Descriptor{}, failNoBan(perr.ErrHandshakeTimeout)
	}
	if pt != OpWorld {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.ProtocolViolation)
	}

	remote, echoed, recovered, err := decodeGreeting(body)
	if err != nil {
		return Descriptor{}, fail(perr.ErrSignatureInvalid, ban.MaliciousBehavior)
	}
	if recovered != remote.NodeID {
		return Descriptor{}, fail(perr.ErrSignatureInvalid, ban.MaliciousBehavior)
	}
	if echoed != initMsg.Secret {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.BadHandshake)
	}
	if remote.NetworkID != local.NetworkID || remote.NetworkVersion != local.NetworkVersion {
		return Descriptor{}, fail(perr.ErrProtocolViolation, ban.BadHandshake)
	}
	return remote, nil
}

// readWithin reads the next packet. The actual timeout enforcement is the
// caller's responsibility: it must arrange for dec.Next() to unblock with
// an error once expiry has elapsed, normally by setting a read deadline on
// the underlying net.Conn before invoking RunDialer/RunAcceptor. expiry is
// accepted here only so the resulting error can be attributed to
// HandshakeTimeout regardless of what the underlying I/O error says.
func readWithin(dec packetSource, expiry time.Duration) (byte, []byte, error) {
	return dec.Next()
}

// FrameSink adapts a *frame.Encoder plus a raw writer into a packetSink.
func FrameSink(enc *frame.Encoder, write func([]byte) error) packetSink {
	return func(packetType byte, payload []byte) error {
		frames, err := enc.Encode(packetType, payload)
		if err != nil {
			return err
		}
		for _, f := range frames {
			if err := write(f); err != nil {
				return err
			}
		}
		return nil
	}
}
