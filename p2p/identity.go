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
	"crypto/ecdsa"

	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

// NodeID and Endpoint are aliased from enode so callers of the root package
// never need a second import; discover, handshake, reputation and ban use
// enode directly since the root package cannot be their dependency.
type NodeID = enode.NodeID

type Endpoint = enode.Endpoint

const IDLength = enode.IDLength

// HexID decodes a hex-encoded NodeID, accepting an optional "0x" prefix.
func HexID(s string) (NodeID, error) { return enode.HexID(s) }

// NodeIDFromPubkey derives a node's identity from its public key.
func NodeIDFromPubkey(pub *ecdsa.PublicKey) NodeID { return enode.NodeIDFromPubkey(pub) }
