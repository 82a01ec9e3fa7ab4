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

package discover

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xdagj/xdagj-p2p-go/crypto"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

func testEndpoint(port uint16) enode.Endpoint {
	return enode.Endpoint{IP: net.ParseIP("127.0.0.1"), TCPPort: port, UDPPort: port}
}

func TestPingRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	want := Ping{From: testEndpoint(30303), To: testEndpoint(30304)}
	packet, err := encodePing(want, priv)
	require.NoError(t, err)

	code, body, sender, err := decodeSigned(packet)
	require.NoError(t, err)
	require.Equal(t, CodePing, code)
	require.Equal(t, enode.NodeIDFromPubkey(&priv.PublicKey), sender)

	got, err := decodePing(body)
	require.NoError(t, err)
	require.Equal(t, want.From.TCPPort, got.From.TCPPort)
	require.Equal(t, want.To.UDPPort, got.To.UDPPort)
}

func TestPongRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	want := Pong{From: testEndpoint(30303)}
	packet, err := encodePong(want, priv)
	require.NoError(t, err)

	code, body, _, err := decodeSigned(packet)
	require.NoError(t, err)
	require.Equal(t, CodePong, code)

	got, err := decodePong(body)
	require.NoError(t, err)
	require.Equal(t, want.From.TCPPort, got.From.TCPPort)
}

func TestFindNodeRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	var target enode.NodeID
	target[0] = 0xAB

	want := FindNode{From: testEndpoint(30303), Target: target}
	packet, err := encodeFindNode(want, priv)
	require.NoError(t, err)

	code, body, _, err := decodeSigned(packet)
	require.NoError(t, err)
	require.Equal(t, CodeFindNode, code)

	got, err := decodeFindNode(body)
	require.NoError(t, err)
	require.Equal(t, want.Target, got.Target)
}

func TestNeighborsRoundTrip(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	var id1, id2 enode.NodeID
	id1[0], id2[0] = 1, 2
	want := Neighbors{
		From: testEndpoint(30303),
		Nodes: []NeighborNode{
			{ID: id1, Endpoint: testEndpoint(30305)},
			{ID: id2, Endpoint: testEndpoint(30306)},
		},
	}
	packet, err := encodeNeighbors(want, priv)
	require.NoError(t, err)

	code, body, _, err := decodeSigned(packet)
	require.NoError(t, err)
	require.Equal(t, CodeNeighbors, code)

	got, err := decodeNeighbors(body)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)
	require.Equal(t, want.Nodes[0].ID, got.Nodes[0].ID)
	require.Equal(t, want.Nodes[1].Endpoint.TCPPort, got.Nodes[1].Endpoint.TCPPort)
}

func TestDecodeSignedRejectsTamperedBody(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	packet, err := encodePing(Ping{From: testEndpoint(1), To: testEndpoint(2)}, priv)
	require.NoError(t, err)
	packet[5] ^= 0xFF

	_, _, _, err = decodeSigned(packet)
	require.Error(t, err)
}

func TestDecodeSignedRejectsShortPacket(t *testing.T) {
	_, _, _, err := decodeSigned([]byte{CodePing})
	require.Error(t, err)
}
