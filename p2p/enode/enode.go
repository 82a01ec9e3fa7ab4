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

// Package enode defines the node identity primitives shared by every p2p
// subpackage: the 160-bit NodeID, XOR distance and the network Endpoint a
// node is reached at. It has no dependency on the rest of p2p so that
// discover, handshake, reputation and ban can all import it without creating
// an import cycle back to the root p2p package.
package enode

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"net"

	"github.com/xdagj/xdagj-p2p-go/crypto"
)

// IDLength is the byte length of a NodeID (160 bits).
const IDLength = 20

// NodeID is the 160-bit identifier derived from a node's long-term signing key.
type NodeID [IDLength]byte

// NodeIDFromPubkey derives a NodeID by truncating the Keccak-256 hash of the
// compressed public key to its leading 160 bits. Truncation (rather than a
// wider hash) keeps routing-table bucket indices and wire encodings small,
// matching the bittorrent/Kademlia-style 160-bit ID space used by the rest
// of this package.
func NodeIDFromPubkey(pub *ecdsa.PublicKey) NodeID {
	compressed := crypto.CompressPubkey(pub)
	digest := crypto.Keccak256(compressed)
	var id NodeID
	copy(id[:], digest[:IDLength])
	return id
}

// String returns the hex encoding of the id.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// HexID decodes a hex-encoded NodeID, accepting an optional "0x" prefix.
func HexID(s string) (NodeID, error) {
	var id NodeID
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != IDLength {
		return id, fmt.Errorf("p2p: node id must be %d bytes, got %d", IDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Distance computes the unsigned XOR distance between two ids as a big-endian
// 160-bit value, represented here as another NodeID (d = a XOR b).
func Distance(a, b NodeID) NodeID {
	var d NodeID
	for i := range d {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// leadingZeros counts the number of leading zero bits in a 160-bit value.
func leadingZeros(d NodeID) int {
	for i, b := range d {
		if b == 0 {
			continue
		}
		n := 0
		for mask := byte(0x80); mask != 0 && b&mask == 0; mask >>= 1 {
			n++
		}
		return i*8 + n
	}
	return IDLength * 8
}

// BucketIndex returns the K-bucket index that node a occupies relative to
// self b: the number of leading zero bits in their XOR distance. A zero
// distance (a == b) has no valid bucket; callers must check for that case
// themselves (self nodes are never inserted into the table).
func BucketIndex(a, b NodeID) int {
	return leadingZeros(Distance(a, b))
}

// Endpoint is a network address a node can be reached at: its IP plus the
// (normally equal) TCP and UDP ports.
type Endpoint struct {
	IP      net.IP
	TCPPort uint16
	UDPPort uint16
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.TCPPort)
}

// UDPAddr returns the endpoint's UDP address.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: int(e.UDPPort)}
}

// TCPAddr returns the endpoint's TCP address.
func (e Endpoint) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: e.IP, Port: int(e.TCPPort)}
}
