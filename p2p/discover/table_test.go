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
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

func nodeWithID(b byte, ipOctet byte) *Node {
	var id enode.NodeID
	id[0] = b
	return &Node{
		ID:       id,
		Endpoint: enode.Endpoint{IP: net.IPv4(10, 0, 0, ipOctet), TCPPort: 30303, UDPPort: 30303},
		State:    StateAlive,
	}
}

func TestAddAndClosest(t *testing.T) {
	var self enode.NodeID
	tbl := NewTable(self)

	for i := byte(1); i <= 5; i++ {
		require.True(t, tbl.Add(nodeWithID(i, i)))
	}
	require.Equal(t, 5, tbl.Len())

	var target enode.NodeID
	target[0] = 1
	closest := tbl.Closest(target, 3)
	require.Len(t, closest, 3)
	require.Equal(t, target, closest[0].ID)
}

func TestAddRejectsSelf(t *testing.T) {
	var self enode.NodeID
	self[0] = 9
	tbl := NewTable(self)
	require.False(t, tbl.Add(&Node{ID: self}))
}

func TestAddRefreshesExistingEntry(t *testing.T) {
	var self enode.NodeID
	tbl := NewTable(self)
	n := nodeWithID(1, 1)
	require.True(t, tbl.Add(n))
	require.True(t, tbl.Add(n))
	require.Equal(t, 1, tbl.Len())
}

func TestMarkDeadEvictsAndPromotesReplacement(t *testing.T) {
	var self enode.NodeID
	tbl := NewTable(self)

	// Fill one bucket to capacity by crafting ids that collide on bucket
	// index: set the top bit of the first byte so leadingZeros(XOR) against
	// the zero self id is 0 for all of them, and vary only the last byte.
	var ids []enode.NodeID
	for i := 0; i < BucketSize+1; i++ {
		var id enode.NodeID
		id[0] = 0x80
		id[enode.IDLength-1] = byte(i + 1)
		ids = append(ids, id)
	}
	for i, id := range ids {
		n := &Node{ID: id, Endpoint: enode.Endpoint{IP: net.IPv4(10, 1, byte(i), 1), TCPPort: 1, UDPPort: 1}, State: StateAlive}
		tbl.Add(n)
	}
	require.LessOrEqual(t, tbl.Len(), BucketSize)

	b := tbl.bucketFor(ids[0])
	before := len(b.entries)
	if len(b.replacements) == 0 {
		t.Skip("bucket distribution did not produce a replacement for this id set")
	}
	tbl.MarkDead(ids[0])
	require.Equal(t, before, len(b.entries), "a replacement should backfill the evicted slot")
}

func TestClosestOrdersByDistance(t *testing.T) {
	var self enode.NodeID
	tbl := NewTable(self)
	for i := byte(1); i <= 10; i++ {
		tbl.Add(nodeWithID(i, i))
	}
	var target enode.NodeID
	closest := tbl.Closest(target, 4)
	for i := 1; i < len(closest); i++ {
		require.True(t, distLess(target, closest[i-1].ID, closest[i].ID) || closest[i-1].ID == closest[i].ID,
			fmt.Sprintf("node %d should not be closer than node %d", i, i-1))
	}
}
