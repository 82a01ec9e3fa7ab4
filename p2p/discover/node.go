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

// Package discover implements the Kademlia-style node discovery protocol:
// a routing table of known peers and the UDP PING/PONG/FIND_NODE/NEIGHBORS
// exchange used to populate and refresh it.
package discover

import (
	"time"

	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

// State is a node's position in the discovery lifecycle.
type State int

const (
	// StateDiscovered is a node heard about (e.g. via NEIGHBORS) but never
	// directly contacted.
	StateDiscovered State = iota
	// StateAlive is a node that has answered a PING with a valid PONG.
	StateAlive
	// StateDead is a node that failed to answer a PING in time. Dead nodes
	// are evicted from their bucket in favor of a live replacement.
	StateDead
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Node is one entry in the routing table.
type Node struct {
	ID       enode.NodeID
	Endpoint enode.Endpoint

	State State

	LastSeen     time.Time
	LastPingSent time.Time

	// Reputation mirrors the reputation store's current decayed score for
	// this id at the time it was last read; the table itself never decays
	// it, the reputation store does.
	Reputation int32
}
