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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xdagj/xdagj-p2p-go/crypto"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

type packet struct {
	pt   byte
	body []byte
}

// pipe connects a dialer and acceptor's packet streams in memory, so the
// state machine can be exercised without a real socket.
type pipe struct {
	in chan packet
}

func newPipe() *pipe { return &pipe{in: make(chan packet, 4)} }

func (p *pipe) Next() (byte, []byte, error) {
	pkt := <-p.in
	return pkt.pt, pkt.body, nil
}

func (p *pipe) sink() packetSink {
	return func(pt byte, body []byte) error {
		p.in <- packet{pt, body}
		return nil
	}
}

func descriptor(priv *ecdsa.PrivateKey) Descriptor {
	return Descriptor{
		NetworkID:      1,
		NetworkVersion: 1,
		NodeID:         enode.NodeIDFromPubkey(&priv.PublicKey),
		ListenPort:     30303,
		ClientID:       "test/1.0",
		Tag:            "full",
		Capabilities:   []string{"xdag/1"},
		LatestBlock:    100,
	}
}

func TestHandshakeSucceeds(t *testing.T) {
	dialerPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	acceptorPriv, err := crypto.GenerateKey()
	require.NoError(t, err)

	toAcceptor := newPipe()
	toDialer := newPipe()

	dialerLocal := descriptor(dialerPriv)
	acceptorLocal := descriptor(acceptorPriv)

	var dialerResult, acceptorResult Descriptor
	var dialerFail, acceptorFail *Failure
	done := make(chan struct{})

	go func() {
		dialerResult, dialerFail = RunDialer(toDialer, toAcceptor.sink(), dialerPriv, dialerLocal, time.Second)
		done <- struct{}{}
	}()
	go func() {
		acceptorResult, acceptorFail = RunAcceptor(toAcceptor, toDialer.sink(), acceptorPriv, acceptorLocal, time.Second)
		done <- struct{}{}
	}()
	<-done
	<-done

	require.Nil(t, dialerFail)
	require.Nil(t, acceptorFail)
	require.Equal(t, acceptorLocal.NodeID, dialerResult.NodeID)
	require.Equal(t, dialerLocal.NodeID, acceptorResult.NodeID)
}

// TestHandshakeSecretMismatch is scenario S3: the acceptor echoes a secret
// that doesn't match what the dialer sent; the dialer must fail with a
// banning failure.
func TestHandshakeSecretMismatch(t *testing.T) {
	dialerPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	acceptorPriv, err := crypto.GenerateKey()
	require.NoError(t, err)

	toDialer := newPipe()
	dialerLocal := descriptor(dialerPriv)
	acceptorLocal := descriptor(acceptorPriv)

	// Fake acceptor: reads INIT, ignores the real secret, replies HELLO
	// echoing a different one.
	toAcceptor := newPipe()
	go func() {
		_, body, _ := toAcceptor.Next()
		_, err := decodeInit(body)
		require.NoError(t, err)

		var wrongSecret Secret
		wrongSecret[0] = 0xFF
		hello, err := encodeGreeting(acceptorLocal, wrongSecret, acceptorPriv)
		require.NoError(t, err)
		toDialer.sink()(OpHello, hello)
	}()

	_, failure := RunDialer(toDialer, toAcceptor.sink(), dialerPriv, dialerLocal, time.Second)
	require.NotNil(t, failure)
	require.True(t, failure.Ban)
}

func TestHandshakeNetworkMismatch(t *testing.T) {
	dialerPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	acceptorPriv, err := crypto.GenerateKey()
	require.NoError(t, err)

	toAcceptor := newPipe()
	toDialer := newPipe()

	dialerLocal := descriptor(dialerPriv)
	acceptorLocal := descriptor(acceptorPriv)
	acceptorLocal.NetworkID = 99

	done := make(chan *Failure, 2)
	go func() {
		_, f := RunDialer(toDialer, toAcceptor.sink(), dialerPriv, dialerLocal, time.Second)
		done <- f
	}()
	go func() {
		_, _ = RunAcceptor(toAcceptor, toDialer.sink(), acceptorPriv, acceptorLocal, time.Second)
	}()

	f := <-done
	require.NotNil(t, f)
}

func TestHandshakeWrongOpcodeIsProtocolViolation(t *testing.T) {
	dialerPriv, err := crypto.GenerateKey()
	require.NoError(t, err)

	toDialer := newPipe()
	toAcceptor := newPipe()
	go func() {
		_, body, _ := toAcceptor.Next()
		_ = body
		toDialer.sink()(OpWorld, []byte{1, 2, 3})
	}()

	_, f := RunDialer(toDialer, toAcceptor.sink(), dialerPriv, descriptor(dialerPriv), time.Second)
	require.NotNil(t, f)
	require.True(t, f.Ban)
}
