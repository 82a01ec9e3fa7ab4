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
	"crypto/ecdsa"
	"fmt"
	"net"

	"github.com/xdagj/xdagj-p2p-go/crypto"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
	"github.com/xdagj/xdagj-p2p-go/p2p/wire"
)

// Message codes for the UDP discovery datagram.
const (
	CodePing      byte = 0x01
	CodePong      byte = 0x02
	CodeFindNode  byte = 0x03
	CodeNeighbors byte = 0x04
)

// sigSize is the length of a recoverable ECDSA signature (r||s||recid).
const sigSize = 65

// Ping requests liveness from the endpoint it is sent to.
type Ping struct {
	From enode.Endpoint
	To   enode.Endpoint
}

// Pong answers a Ping in kind, identifying the ponder's own endpoint.
type Pong struct {
	From enode.Endpoint
}

// FindNode asks for up to BucketSize nodes closest to Target.
type FindNode struct {
	From   enode.Endpoint
	Target enode.NodeID
}

// NeighborNode is one entry of a Neighbors reply.
type NeighborNode struct {
	ID       enode.NodeID
	Endpoint enode.Endpoint
}

// Neighbors answers a FindNode with up to BucketSize candidate nodes.
type Neighbors struct {
	From  enode.Endpoint
	Nodes []NeighborNode
}

func writeEndpoint(w *wire.Writer, e enode.Endpoint) {
	ip4 := e.IP.To4()
	if ip4 != nil {
		w.WriteUint8(4)
		w.WriteFixed(ip4)
	} else {
		w.WriteUint8(6)
		w.WriteFixed(e.IP.To16())
	}
	w.WriteUint16(e.TCPPort)
	w.WriteUint16(e.UDPPort)
}

func readEndpoint(r *wire.Reader) (enode.Endpoint, error) {
	var e enode.Endpoint
	fam, err := r.ReadUint8()
	if err != nil {
		return e, err
	}
	n := 4
	if fam == 6 {
		n = 16
	}
	ipBytes, err := r.ReadFixed(n)
	if err != nil {
		return e, err
	}
	e.IP = net.IP(append([]byte(nil), ipBytes...))
	if e.TCPPort, err = r.ReadUint16(); err != nil {
		return e, err
	}
	if e.UDPPort, err = r.ReadUint16(); err != nil {
		return e, err
	}
	return e, nil
}

func encodeBody(code byte, body []byte) []byte {
	return append([]byte{code}, body...)
}

// encodeSigned signs (code || body) with priv and returns the full datagram:
// code || body || signature.
func encodeSigned(code byte, body []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	msg := encodeBody(code, body)
	digest := crypto.Keccak256(msg)
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("discover: sign packet: %w", err)
	}
	return append(msg, sig...), nil
}

// decodeSigned verifies the trailing signature and returns the message code,
// body and sender NodeID.
func decodeSigned(packet []byte) (code byte, body []byte, sender enode.NodeID, err error) {
	if len(packet) < 1+sigSize {
		return 0, nil, sender, wire.ErrMalformedMessage
	}
	msg := packet[:len(packet)-sigSize]
	sig := packet[len(packet)-sigSize:]
	digest := crypto.Keccak256(msg)

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return 0, nil, sender, err
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(pub), digest, sig[:64]) {
		return 0, nil, sender, wire.ErrMalformedMessage
	}
	sender = enode.NodeIDFromPubkey(pub)
	return msg[0], msg[1:], sender, nil
}

func encodePing(p Ping, priv *ecdsa.PrivateKey) ([]byte, error) {
	w := wire.NewWriter()
	writeEndpoint(w, p.From)
	writeEndpoint(w, p.To)
	return encodeSigned(CodePing, w.Bytes(), priv)
}

func decodePing(body []byte) (Ping, error) {
	r := wire.NewReader(body)
	var p Ping
	var err error
	if p.From, err = readEndpoint(r); err != nil {
		return p, err
	}
	p.To, err = readEndpoint(r)
	return p, err
}

func encodePong(p Pong, priv *ecdsa.PrivateKey) ([]byte, error) {
	w := wire.NewWriter()
	writeEndpoint(w, p.From)
	return encodeSigned(CodePong, w.Bytes(), priv)
}

func decodePong(body []byte) (Pong, error) {
	r := wire.NewReader(body)
	var p Pong
	var err error
	p.From, err = readEndpoint(r)
	return p, err
}

func encodeFindNode(f FindNode, priv *ecdsa.PrivateKey) ([]byte, error) {
	w := wire.NewWriter()
	writeEndpoint(w, f.From)
	w.WriteFixed(f.Target[:])
	return encodeSigned(CodeFindNode, w.Bytes(), priv)
}

func decodeFindNode(body []byte) (FindNode, error) {
	r := wire.NewReader(body)
	var f FindNode
	var err error
	if f.From, err = readEndpoint(r); err != nil {
		return f, err
	}
	idBytes, err := r.ReadFixed(enode.IDLength)
	if err != nil {
		return f, err
	}
	copy(f.Target[:], idBytes)
	return f, nil
}

func encodeNeighbors(n Neighbors, priv *ecdsa.PrivateKey) ([]byte, error) {
	w := wire.NewWriter()
	writeEndpoint(w, n.From)
	w.WriteArrayLen(len(n.Nodes))
	for _, nb := range n.Nodes {
		w.WriteFixed(nb.ID[:])
		writeEndpoint(w, nb.Endpoint)
	}
	return encodeSigned(CodeNeighbors, w.Bytes(), priv)
}

func decodeNeighbors(body []byte) (Neighbors, error) {
	r := wire.NewReader(body)
	var n Neighbors
	var err error
	if n.From, err = readEndpoint(r); err != nil {
		return n, err
	}
	count, err := r.ReadArrayLen()
	if err != nil {
		return n, err
	}
	n.Nodes = make([]NeighborNode, 0, count)
	for i := 0; i < count; i++ {
		idBytes, err := r.ReadFixed(enode.IDLength)
		if err != nil {
			return n, err
		}
		var nb NeighborNode
		copy(nb.ID[:], idBytes)
		if nb.Endpoint, err = readEndpoint(r); err != nil {
			return n, err
		}
		n.Nodes = append(n.Nodes, nb)
	}
	return n, nil
}
