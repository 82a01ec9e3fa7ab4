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
	"sort"
	"sync"
	"time"

	"github.com/xdagj/xdagj-p2p-go/metrics"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
	"github.com/xdagj/xdagj-p2p-go/p2p/reputation"
)

// Alpha is the lookup concurrency factor.
const Alpha = 3

// MaxLookupRounds bounds an iterative lookup so a pathological or adversarial
// table can never spin it forever.
const MaxLookupRounds = 8

const maxPacketSize = 1280

// PingTimeout is how long a PING may go unanswered before the sender
// decrements the target's reputation, marking it DEAD once the score falls
// below DeadReputationThreshold.
const PingTimeout = 5 * time.Second

// DiscoveryCycle is the period of the background liveness sweep.
const DiscoveryCycle = 15 * time.Second

// Transport owns the UDP socket and drives the discovery protocol: handling
// inbound PING/PONG/FIND_NODE/NEIGHBORS, running iterative lookups, and the
// periodic liveness sweep over the routing table.
type Transport struct {
	conn *net.UDPConn
	priv *ecdsa.PrivateKey
	self enode.NodeID

	table *Table
	rep   *reputation.Store

	mu      sync.Mutex
	pending map[string]chan interface{} // keyed by remote addr + code

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// ListenUDP opens the discovery socket and starts its read loop and
// background liveness sweep.
func ListenUDP(addr *net.UDPAddr, priv *ecdsa.PrivateKey, table *Table, rep *reputation.Store) (*Transport, error) {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("discover: listen udp: %w", err)
	}
	t := &Transport{
		conn:    conn,
		priv:    priv,
		self:    enode.NodeIDFromPubkey(&priv.PublicKey),
		table:   table,
		rep:     rep,
		pending: make(map[string]chan interface{}),
		closeCh: make(chan struct{}),
	}
	t.wg.Add(2)
	go t.readLoop()
	go t.livenessLoop()
	return t, nil
}

// Close shuts the socket and background loops down.
func (t *Transport) Close() error {
	close(t.closeCh)
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

func (t *Transport) localEndpoint() enode.Endpoint {
	addr := t.conn.LocalAddr().(*net.UDPAddr)
	return enode.Endpoint{IP: addr.IP, TCPPort: uint16(addr.Port), UDPPort: uint16(addr.Port)}
}

func (t *Transport) readLoop() {
	defer t.wg.Done()
	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
				continue
			}
		}
		packet := append([]byte(nil), buf[:n]...)
		go t.handlePacket(packet, from)
	}
}

func (t *Transport) handlePacket(packet []byte, from *net.UDPAddr) {
	code, body, sender, err := decodeSigned(packet)
	if err != nil {
		metrics.DiscoverBadSig.Mark(1)
		return
	}

	switch code {
	case CodePing:
		p, err := decodePing(body)
		if err != nil {
			return
		}
		t.onPing(p, sender, from)
	case CodePong:
		p, err := decodePong(body)
		if err != nil {
			return
		}
		t.onPong(p, sender, from)
	case CodeFindNode:
		f, err := decodeFindNode(body)
		if err != nil {
			return
		}
		t.onFindNode(f, sender, from)
	case CodeNeighbors:
		n, err := decodeNeighbors(body)
		if err != nil {
			return
		}
		t.onNeighbors(n, sender, from)
	}
}

func (t *Transport) deliver(from *net.UDPAddr, code byte, msg interface{}) {
	key := pendingKey(from, code)
	t.mu.Lock()
	ch, ok := t.pending[key]
	t.mu.Unlock()
	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

func pendingKey(addr *net.UDPAddr, code byte) string {
	return fmt.Sprintf("%s:%d", addr.String(), code)
}

func (t *Transport) await(addr *net.UDPAddr, code byte, timeout time.Duration) (interface{}, error) {
	key := pendingKey(addr, code)
	ch := make(chan interface{}, 1)
	t.mu.Lock()
	t.pending[key] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, key)
		t.mu.Unlock()
	}()

	select {
	case msg := <-ch:
		return msg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("discover: timed out waiting for reply from %s", addr)
	}
}

func (t *Transport) onPing(p Ping, sender enode.NodeID, from *net.UDPAddr) {
	mlogDiscover.Send(mlogPingHandleFrom.SetDetailValues(from.String(), sender.String()).String())

	t.table.Add(&Node{ID: sender, Endpoint: enode.Endpoint{IP: from.IP, TCPPort: p.From.TCPPort, UDPPort: uint16(from.Port)}, State: StateDiscovered})

	pong := Pong{From: t.localEndpoint()}
	packet, err := encodePong(pong, t.priv)
	if err != nil {
		return
	}
	t.conn.WriteToUDP(packet, from)
}

func (t *Transport) onPong(p Pong, sender enode.NodeID, from *net.UDPAddr) {
	mlogDiscover.Send(mlogPongHandleFrom.SetDetailValues(from.String(), sender.String()).String())
	metrics.DiscoverPongIn.Mark(1)

	t.table.MarkAlive(sender, time.Now())
	t.rep.Adjust(sender, 5)
	t.deliver(from, CodePong, p)
}

func (t *Transport) onFindNode(f FindNode, sender enode.NodeID, from *net.UDPAddr) {
	mlogDiscover.Send(mlogFindNodeHandleFrom.SetDetailValues(from.String(), sender.String()).String())

	closest := t.table.Closest(f.Target, BucketSize)
	nodes := make([]NeighborNode, 0, len(closest))
	for _, n := range closest {
		nodes = append(nodes, NeighborNode{ID: n.ID, Endpoint: n.Endpoint})
	}
	reply := Neighbors{From: t.localEndpoint(), Nodes: nodes}
	packet, err := encodeNeighbors(reply, t.priv)
	if err != nil {
		return
	}
	mlogDiscover.Send(mlogFindNodeSendNeighbors.SetDetailValues(from.String(), sender.String(), len(nodes)).String())
	t.conn.WriteToUDP(packet, from)
}

func (t *Transport) onNeighbors(n Neighbors, sender enode.NodeID, from *net.UDPAddr) {
	mlogDiscover.Send(mlogNeighborsHandleFrom.SetDetailValues(from.String(), sender.String(), len(n.Nodes)).String())
	metrics.DiscoverNeighborsIn.Mark(1)

	for _, nb := range n.Nodes {
		t.table.Add(&Node{ID: nb.ID, Endpoint: nb.Endpoint, State: StateDiscovered})
	}
	t.deliver(from, CodeNeighbors, n)
}

// Ping sends a PING to addr and blocks for PONG up to PingTimeout. On
// timeout, the target's reputation is decremented by 5, and the target (if
// in the table) is marked dead once its score falls below
// DeadReputationThreshold.
func (t *Transport) Ping(target enode.NodeID, addr *net.UDPAddr) error {
	ping := Ping{From: t.localEndpoint(), To: enode.Endpoint{IP: addr.IP, TCPPort: uint16(addr.Port), UDPPort: uint16(addr.Port)}}
	packet, err := encodePing(ping, t.priv)
	if err != nil {
		return err
	}
	metrics.DiscoverPingOut.Mark(1)
	if _, err := t.conn.WriteToUDP(packet, addr); err != nil {
		return err
	}
	if _, err := t.await(addr, CodePong, PingTimeout); err != nil {
		t.rep.Adjust(target, -5)
		if t.rep.Get(target) < DeadReputationThreshold {
			t.table.MarkDead(target)
		}
		return err
	}
	return nil
}

// DeadReputationThreshold is the score below which a node is marked dead.
const DeadReputationThreshold = 20

// findNode sends FIND_NODE(target) to addr and waits for the NEIGHBORS
// reply.
func (t *Transport) findNode(addr *net.UDPAddr, target enode.NodeID) ([]NeighborNode, error) {
	req := FindNode{From: t.localEndpoint(), Target: target}
	packet, err := encodeFindNode(req, t.priv)
	if err != nil {
		return nil, err
	}
	metrics.DiscoverFindNodeOut.Mark(1)
	if _, err := t.conn.WriteToUDP(packet, addr); err != nil {
		return nil, err
	}
	resp, err := t.await(addr, CodeNeighbors, PingTimeout)
	if err != nil {
		return nil, err
	}
	return resp.(Neighbors).Nodes, nil
}

// Lookup runs an iterative Kademlia lookup for target: each round queries
// the Alpha closest not-yet-queried candidates in parallel, merges their
// NEIGHBORS replies into the candidate set, and stops when a round adds no
// new candidate, no unqueried candidate remains, or MaxLookupRounds is
// reached.
func (t *Transport) Lookup(target enode.NodeID) []*Node {
	seen := make(map[enode.NodeID]bool)
	queried := make(map[enode.NodeID]bool)
	var result []*Node
	for _, n := range t.table.Closest(target, BucketSize) {
		seen[n.ID] = true
		result = append(result, n)
	}

	for round := 0; round < MaxLookupRounds; round++ {
		sort.Slice(result, func(i, j int) bool {
			return distLess(target, result[i].ID, result[j].ID)
		})

		candidates := unqueried(result, queried, Alpha)
		if len(candidates) == 0 {
			break
		}
		mlogDiscover.Send(mlogLookupRound.SetDetailValues(target.String(), round, len(candidates)).String())

		type reply struct {
			nodes []NeighborNode
		}
		replies := make(chan reply, len(candidates))
		var wg sync.WaitGroup
		for _, c := range candidates {
			queried[c.ID] = true
			wg.Add(1)
			go func(c *Node) {
				defer wg.Done()
				nodes, err := t.findNode(c.Endpoint.UDPAddr(), target)
				if err == nil {
					replies <- reply{nodes: nodes}
				}
			}(c)
		}
		wg.Wait()
		close(replies)

		improved := false
		for r := range replies {
			for _, nb := range r.nodes {
				if seen[nb.ID] || nb.ID == t.self {
					continue
				}
				seen[nb.ID] = true
				n := &Node{ID: nb.ID, Endpoint: nb.Endpoint, State: StateDiscovered}
				t.table.Add(n)
				result = append(result, n)
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return distLess(target, result[i].ID, result[j].ID)
	})
	if len(result) > BucketSize {
		result = result[:BucketSize]
	}
	return result
}

func unqueried(nodes []*Node, seen map[enode.NodeID]bool, limit int) []*Node {
	var out []*Node
	for _, n := range nodes {
		if len(out) >= limit {
			break
		}
		if !seen[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Bootstrap sends FIND_NODE(self) to every seed endpoint, seeding the table
// with whatever NEIGHBORS replies come back.
func (t *Transport) Bootstrap(seeds []enode.Endpoint) {
	var wg sync.WaitGroup
	for _, seed := range seeds {
		wg.Add(1)
		go func(seed enode.Endpoint) {
			defer wg.Done()
			mlogDiscover.Send(mlogBootstrap.SetDetailValues(seed.String()).String())
			nodes, err := t.findNode(seed.UDPAddr(), t.self)
			if err != nil {
				return
			}
			for _, nb := range nodes {
				if nb.ID == t.self {
					continue
				}
				t.table.Add(&Node{ID: nb.ID, Endpoint: nb.Endpoint, State: StateDiscovered})
			}
		}(seed)
	}
	wg.Wait()
	t.Lookup(t.self)
}

// livenessLoop pings every node whose LastSeen is older than DiscoveryCycle.
func (t *Transport) livenessLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(DiscoveryCycle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.sweep()
		case <-t.closeCh:
			return
		}
	}
}

func (t *Transport) sweep() {
	cutoff := time.Now().Add(-DiscoveryCycle)
	for _, n := range t.table.AllNodes() {
		if n.LastSeen.After(cutoff) {
			continue
		}
		n.LastPingSent = time.Now()
		go t.Ping(n.ID, n.Endpoint.UDPAddr())
	}
}

// GetConnectableNodes returns every StateAlive node in the table, the
// routing-table part of the candidate list the connection manager dials from.
func (t *Transport) GetConnectableNodes() []*Node {
	var out []*Node
	for _, n := range t.table.AllNodes() {
		if n.State == StateAlive {
			out = append(out, n)
		}
	}
	return out
}
