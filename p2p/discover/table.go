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
	"sort"
	"sync"
	"time"

	"github.com/xdagj/xdagj-p2p-go/p2p/distip"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

const (
	// BucketSize is K: the maximum number of live nodes kept per bucket.
	BucketSize = 16
	// NumBuckets is the number of bits in a NodeID, one bucket per possible
	// leading-zero count of the XOR distance.
	NumBuckets = enode.IDLength * 8
	// MaxReplacements bounds the replacement cache kept behind each bucket,
	// used to fill a slot as soon as a live entry goes dead.
	MaxReplacements = 10

	// bucketIPLimit/bucketSubnet and tableIPLimit/tableSubnet mirror the
	// teacher's distip-based Sybil mitigation: no more than bucketIPLimit
	// entries in a bucket, or tableIPLimit entries in the whole table, may
	// share a /bucketSubnet or /tableSubnet network.
	bucketIPLimit, bucketSubnet = 2, 24
	tableIPLimit, tableSubnet   = 10, 24
)

// bucket holds the live entries and replacement cache for one distance
// range. Entries are ordered most-recently-seen first, the classic
// Kademlia LRU-by-bucket eviction discipline.
type bucket struct {
	entries      []*Node
	replacements []*Node
	ips          distip.DistinctNetSet
}

// Table is the Kademlia routing table: NumBuckets buckets of up to
// BucketSize live nodes each, indexed by leading-zero-count of XOR distance
// from self.
type Table struct {
	mu      sync.Mutex
	buckets [NumBuckets]*bucket
	self    enode.NodeID

	ips distip.DistinctNetSet
}

// NewTable creates an empty table for self.
func NewTable(self enode.NodeID) *Table {
	t := &Table{
		self: self,
		ips:  distip.DistinctNetSet{Subnet: tableSubnet, Limit: tableIPLimit},
	}
	for i := range t.buckets {
		t.buckets[i] = &bucket{
			ips: distip.DistinctNetSet{Subnet: bucketSubnet, Limit: bucketIPLimit},
		}
	}
	return t
}

func (t *Table) bucketFor(id enode.NodeID) *bucket {
	idx := enode.BucketIndex(id, t.self)
	if idx >= NumBuckets {
		idx = NumBuckets - 1
	}
	return t.buckets[idx]
}

// Add inserts or refreshes n. A node already present is moved to the front
// of its bucket (most-recently-seen). A new node is added to the front if
// the bucket has room; otherwise it goes into the bucket's replacement
// cache, to be promoted only when a live entry dies. Add returns false if n
// was rejected outright (self, or over the table/bucket IP-diversity
// limit).
func (t *Table) Add(n *Node) bool {
	if n.ID == t.self {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.bucketFor(n.ID)
	if i := nodeIndex(b.entries, n.ID); i >= 0 {
		n.State = b.entries[i].State
		copy(b.entries[1:i+1], b.entries[:i])
		b.entries[0] = n
		return true
	}

	if !t.ips.Add(n.Endpoint.IP) {
		return false
	}
	if !b.ips.Add(n.Endpoint.IP) {
		t.ips.Remove(n.Endpoint.IP)
		return false
	}

	if len(b.entries) < BucketSize {
		b.entries = append([]*Node{n}, b.entries...)
		return true
	}

	t.addReplacement(b, n)
	return true
}

func (t *Table) addReplacement(b *bucket, n *Node) {
	for _, r := range b.replacements {
		if r.ID == n.ID {
			return
		}
	}
	b.replacements = append([]*Node{n}, b.replacements...)
	if len(b.replacements) > MaxReplacements {
		dropped := b.replacements[len(b.replacements)-1]
		b.replacements = b.replacements[:len(b.replacements)-1]
		b.ips.Remove(dropped.Endpoint.IP)
	}
}

// MarkDead moves n to StateDead and evicts it from its bucket, promoting
// the most-recently-seen replacement (if any) into its place.
func (t *Table) MarkDead(id enode.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.bucketFor(id)
	i := nodeIndex(b.entries, id)
	if i < 0 {
		return
	}
	dead := b.entries[i]
	dead.State = StateDead
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	b.ips.Remove(dead.Endpoint.IP)
	t.ips.Remove(dead.Endpoint.IP)

	if len(b.replacements) == 0 {
		return
	}
	rep := b.replacements[0]
	b.replacements = b.replacements[1:]
	rep.State = StateAlive
	b.entries = append(b.entries, rep)
}

// MarkAlive records a successful PONG, promoting the node to StateAlive and
// moving it to the front of its bucket (most-recently-seen).
func (t *Table) MarkAlive(id enode.NodeID, seenAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bucketFor(id)
	i := nodeIndex(b.entries, id)
	if i < 0 {
		return
	}
	n := b.entries[i]
	n.State = StateAlive
	n.LastSeen = seenAt
	copy(b.entries[1:i+1], b.entries[:i])
	b.entries[0] = n
}

func nodeIndex(entries []*Node, id enode.NodeID) int {
	for i, n := range entries {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Closest returns the n nodes in the table closest to target, sorted by
// ascending distance.
func (t *Table) Closest(target enode.NodeID, n int) []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	var all []*Node
	for _, b := range t.buckets {
		all = append(all, b.entries...)
	}
	sort.Slice(all, func(i, j int) bool {
		return distLess(target, all[i].ID, all[j].ID)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func distLess(target, a, b enode.NodeID) bool {
	da, db := enode.Distance(target, a), enode.Distance(target, b)
	for i := range da {
		if da[i] != db[i] {
			return da[i] < db[i]
		}
	}
	return false
}

// Len returns the total number of live entries across all buckets.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b.entries)
	}
	return n
}

// AllNodes returns every live node currently in the table, for callers
// building a connectable-node list.
func (t *Table) AllNodes() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	var all []*Node
	for _, b := range t.buckets {
		all = append(all, b.entries...)
	}
	return all
}
