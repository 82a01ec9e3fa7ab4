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

// Package handshake implements the three-phase INIT/HELLO/WORLD
// authenticated handshake that establishes a TCP peer session: a random
// secret issued in INIT must be echoed byte-exact in HELLO/WORLD, each
// signed by the sender's long-term key, binding the exchange to this one
// connection.
package handshake

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/xdagj/xdagj-p2p-go/crypto"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
	"github.com/xdagj/xdagj-p2p-go/p2p/wire"
)

// TCP opcodes for the handshake phase.
const (
	OpInit  byte = 0x10
	OpHello byte = 0x11
	OpWorld byte = 0x12
)

// SecretSize is the length in bytes of the INIT-issued nonce.
const SecretSize = 32

// Secret is the nonce issued in INIT and echoed back in HELLO/WORLD.
type Secret [SecretSize]byte

// Init is the first handshake message: a fresh secret plus a timestamp.
type Init struct {
	Secret    Secret
	Timestamp int64
}

func encodeInit(m Init) []byte {
	w := wire.NewWriter()
	w.WriteFixed(m.Secret[:])
	w.WriteUint64(uint64(m.Timestamp))
	return w.Bytes()
}

func decodeInit(body []byte) (Init, error) {
	r := wire.NewReader(body)
	var m Init
	secretBytes, err := r.ReadFixed(SecretSize)
	if err != nil {
		return m, err
	}
	copy(m.Secret[:], secretBytes)
	ts, err := r.ReadUint64()
	if err != nil {
		return m, err
	}
	m.Timestamp = int64(ts)
	return m, nil
}

// Descriptor is the peer self-description exchanged in HELLO and WORLD.
type Descriptor struct {
	NetworkID      byte
	NetworkVersion uint16
	NodeID         enode.NodeID
	ListenPort     uint16
	ClientID       string
	Tag            string
	Capabilities   []string
	LatestBlock    uint64
}

// greeting is the shared HELLO/WORLD shape: a Descriptor, the echoed
// secret, and a signature over everything preceding it.
type greeting struct {
	Descriptor Descriptor
	Secret     Secret
	Signature  []byte
}

func encodeDescriptor(w *wire.Writer, d Descriptor) {
	w.WriteUint8(d.NetworkID)
	w.WriteUint16(d.NetworkVersion)
	w.WriteFixed(d.NodeID[:])
	w.WriteUint16(d.ListenPort)
	w.WriteString(d.ClientID)
	w.WriteString(d.Tag)
	w.WriteArrayLen(len(d.Capabilities))
	for _, c := range d.Capabilities {
		w.WriteString(c)
	}
	w.WriteUint64(d.LatestBlock)
}

func decodeDescriptor(r *wire.Reader) (Descriptor, error) {
	var d Descriptor
	var err error
	if d.NetworkID, err = r.ReadUint8(); err != nil {
		return d, err
	}
	if d.NetworkVersion, err = r.ReadUint16(); err != nil {
		return d, err
	}
	idBytes, err := r.ReadFixed(enode.IDLength)
	if err != nil {
		return d, err
	}
	copy(d.NodeID[:], idBytes)
	if d.ListenPort, err = r.ReadUint16(); err != nil {
		return d, err
	}
	if d.ClientID, err = r.ReadString(); err != nil {
		return d, err
	}
	if d.Tag, err = r.ReadString(); err != nil {
		return d, err
	}
	n, err := r.ReadArrayLen()
	if err != nil {
		return d, err
	}
	d.Capabilities = make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, err := r.ReadString()
		if err != nil {
			return d, err
		}
		d.Capabilities = append(d.Capabilities, c)
	}
	if d.LatestBlock, err = r.ReadUint64(); err != nil {
		return d, err
	}
	return d, nil
}

// encodeGreeting signs (descriptor || secret) with priv and returns the
// wire body: descriptor || secret || signature.
func encodeGreeting(d Descriptor, secret Secret, priv *ecdsa.PrivateKey) ([]byte, error) {
	w := wire.NewWriter()
	encodeDescriptor(w, d)
	w.WriteFixed(secret[:])
	unsigned := w.Bytes()

	digest := crypto.Keccak256(unsigned)
	sig, err := crypto.Sign(digest, priv)
	if err != nil {
		return nil, fmt.Errorf("handshake: sign greeting: %w", err)
	}
	return append(unsigned, sig...), nil
}

// decodeGreeting parses and verifies a HELLO/WORLD body, returning the
// descriptor, echoed secret, and the NodeID the signature actually recovers
// to (which callers must compare against Descriptor.NodeID).
func decodeGreeting(body []byte) (Descriptor, Secret, enode.NodeID, error) {
	var secret Secret
	var recovered enode.NodeID

	if len(body) < sigSize {
		return Descriptor{}, secret, recovered, wire.ErrMalformedMessage
	}
	unsigned := body[:len(body)-sigSize]
	sig := body[len(body)-sigSize:]

	r := wire.NewReader(unsigned)
	d, err := decodeDescriptor(r)
	if err != nil {
		return d, secret, recovered, err
	}
	secretBytes, err := r.ReadFixed(SecretSize)
	if err != nil {
		return d, secret, recovered, err
	}
	copy(secret[:], secretBytes)

	digest := crypto.Keccak256(unsigned)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return d, secret, recovered, err
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(pub), digest, sig[:64]) {
		return d, secret, recovered, wire.ErrMalformedMessage
	}
	recovered = enode.NodeIDFromPubkey(pub)
	return d, secret, recovered, nil
}

const sigSize = 65
