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

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

func TestRegisterHandlerRejectsFrameworkOpcode(t *testing.T) {
	svc, err := NewService(Config{Port: 0})
	require.NoError(t, err)

	err = svc.RegisterHandler(OpKeepAlivePing, func(*Peer, byte, []byte) {})
	require.ErrorIs(t, err, ErrTypeAlreadyRegistered)

	err = svc.RegisterHandler(0x1F, func(*Peer, byte, []byte) {})
	require.ErrorIs(t, err, ErrTypeAlreadyRegistered)
}

func TestRegisterHandlerRejectsDuplicate(t *testing.T) {
	svc, err := NewService(Config{Port: 0})
	require.NoError(t, err)

	require.NoError(t, svc.RegisterHandler(0x20, func(*Peer, byte, []byte) {}))
	err = svc.RegisterHandler(0x20, func(*Peer, byte, []byte) {})
	require.ErrorIs(t, err, ErrTypeAlreadyRegistered)
}

func TestNewServiceGeneratesEphemeralKeyWhenUnset(t *testing.T) {
	svc, err := NewService(Config{Port: 0})
	require.NoError(t, err)
	require.False(t, svc.Self().IsZero())
}

func TestGetConnectableNodesEmptyWithNoPeers(t *testing.T) {
	svc, err := NewService(Config{Port: 0})
	require.NoError(t, err)
	require.Empty(t, svc.GetConnectableNodes())
}

// TestServiceHandshakeAndMessageRoundTrip starts two services on fixed
// loopback ports, connects one to the other explicitly (bypassing
// discovery), and checks that the handshake completes, OnConnect fires on
// both sides, and an application-opcode message sent from one arrives at
// the other's registered handler.
func TestServiceHandshakeAndMessageRoundTrip(t *testing.T) {
	const portA = 19219
	const portB = 19229

	cfgA := Config{Port: portA, EnableDiscovery: false, MinConnections: 0}
	cfgB := Config{Port: portB, EnableDiscovery: false, MinConnections: 0}

	svcA, err := NewService(cfgA)
	require.NoError(t, err)
	svcB, err := NewService(cfgB)
	require.NoError(t, err)

	doneA, doneB := make(chan struct{}), make(chan struct{})
	svcA.OnConnect(func(p *Peer) { close(doneA) })
	svcB.OnConnect(func(p *Peer) { close(doneB) })

	var recvMu sync.Mutex
	var received []byte
	recvCh := make(chan struct{})
	require.NoError(t, svcB.RegisterHandler(0x20, func(p *Peer, opcode byte, payload []byte) {
		recvMu.Lock()
		received = append([]byte(nil), payload...)
		recvMu.Unlock()
		close(recvCh)
	}))

	require.NoError(t, svcA.Start())
	defer svcA.Stop()
	require.NoError(t, svcB.Start())
	defer svcB.Stop()

	svcA.Connect(enode.Endpoint{IP: net.ParseIP("127.0.0.1"), TCPPort: portB, UDPPort: portB})

	waitOrFail(t, doneA, 5*time.Second, "service A never saw OnConnect")
	waitOrFail(t, doneB, 5*time.Second, "service B never saw OnConnect")

	peersA := svcA.Peers()
	require.Len(t, peersA, 1)
	peersA[0].Send(0x20, []byte("hello"))

	waitOrFail(t, recvCh, 5*time.Second, "service B never received the application message")
	recvMu.Lock()
	require.Equal(t, []byte("hello"), received)
	recvMu.Unlock()
}

func waitOrFail(t *testing.T, ch chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal(msg)
	}
}
