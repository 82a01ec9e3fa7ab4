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
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/xdagj/xdagj-p2p-go/logger/glog"
	"github.com/xdagj/xdagj-p2p-go/metrics"
	"github.com/xdagj/xdagj-p2p-go/p2p/ban"
	"github.com/xdagj/xdagj-p2p-go/p2p/discover"
	"github.com/xdagj/xdagj-p2p-go/p2p/frame"
	"github.com/xdagj/xdagj-p2p-go/p2p/handshake"
)

// connectTarget is something the connection manager can dial: a discovered
// routing-table node or an explicitly injected endpoint.
type connectTarget struct {
	ID     NodeID
	Remote Endpoint
}

// dialStamp is the value stored in the debounce cache: the time a dial to
// an address was last attempted.
type dialStamp struct {
	at time.Time
}

// server is the connection manager: it accepts inbound TCP, dials outbound
// to fill the configured connection floor, runs every new socket through
// the handshake, enforces bans, and suppresses duplicate peers.
type server struct {
	cfg    Config
	priv   *ecdsa.PrivateKey
	self   NodeID
	ln     net.Listener
	table  *discover.Table
	disc   *discover.Transport
	bans   *ban.Store
	dialDebounce *lru.Cache

	mu      sync.Mutex
	peers   map[NodeID]*Peer
	closing bool

	extraNodes []connectTarget

	onConnect    func(*Peer)
	onDisconnect func(*Peer)
	onMessage    func(p *Peer, opcode byte, payload []byte)

	wg      sync.WaitGroup
	closeCh chan struct{}
}

func newServer(cfg Config, priv *ecdsa.PrivateKey, table *discover.Table, disc *discover.Transport, bans *ban.Store) *server {
	debounce, _ := lru.New(1024)
	s := &server{
		cfg:          cfg,
		priv:         priv,
		self:         NodeIDFromPubkey(&priv.PublicKey),
		table:        table,
		disc:         disc,
		bans:         bans,
		dialDebounce: debounce,
		peers:        make(map[NodeID]*Peer),
		closeCh:      make(chan struct{}),
	}
	bans.CloseSessions = s.closeSessionsForIP
	return s
}

// listenAndServe opens the TCP listener and starts the accept loop, the
// outbound dial loop, and the periodic over-capacity eviction sweep.
func (s *server) listenAndServe() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("p2p: listen tcp: %w", err)
	}
	s.ln = ln

	s.wg.Add(3)
	go s.acceptLoop()
	go s.dialLoop()
	go s.evictionLoop()
	return nil
}

func (s *server) stop() {
	s.mu.Lock()
	s.closing = true
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	close(s.closeCh)
	if s.ln != nil {
		s.ln.Close()
	}
	for _, p := range peers {
		p.CloseWithoutBan()
	}
	s.wg.Wait()
}

func (s *server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				continue
			}
		}
		ip := remoteIP(conn)
		if s.bans.IsBanned(ip) {
			conn.Close()
			continue
		}
		go s.runInbound(conn)
	}
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (s *server) localDescriptor() handshake.Descriptor {
	return handshake.Descriptor{
		NetworkID:      s.cfg.NetworkID,
		NetworkVersion: s.cfg.NetworkVersion,
		NodeID:         s.self,
		ListenPort:     uint16(s.cfg.Port),
		ClientID:       s.cfg.ClientID,
		Tag:            s.cfg.ListenTag,
		Capabilities:   s.cfg.Capabilities,
		LatestBlock:    s.cfg.LatestBlock,
	}
}

func (s *server) frameOptions() frame.Options {
	return frame.Options{
		MaxFrameBodySize: s.cfg.MaxFrameBodySize,
		MaxPacketSize:    s.cfg.MaxPacketSize,
		Compress:         s.cfg.EnableFrameCompression,
	}
}

func (s *server) runInbound(conn net.Conn) {
	ip := remoteIP(conn)
	conn.SetDeadline(time.Now().Add(s.cfg.HandshakeExpiry))
	enc := frame.NewEncoder(s.frameOptions())
	dec := frame.NewDecoder(conn, s.frameOptions())
	sink := handshake.FrameSink(enc, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	})

	start := time.Now()
	remote, failure := handshake.RunAcceptor(dec, sink, s.priv, s.localDescriptor(), s.cfg.HandshakeExpiry)
	metrics.HandshakeTimer.UpdateSince(start)
	if failure != nil {
		metrics.HandshakeFailure.Mark(1)
		s.rejectHandshake(conn, ip, failure)
		return
	}
	metrics.HandshakeSuccess.Mark(1)
	conn.SetDeadline(time.Time{})

	p := NewPeer(conn, enc, dec, remote.NodeID, Endpoint{IP: conn.RemoteAddr().(*net.TCPAddr).IP, TCPPort: remote.ListenPort}, RoleListener, DefaultKeepAliveInterval, DefaultReadTimeout)
	s.adopt(p)
}

func (s *server) rejectHandshake(conn net.Conn, ip string, failure *handshake.Failure) {
	conn.Close()
	if failure.Ban {
		s.bans.Ban(ip, failure.Reason, ban.DefaultDurations[failure.Reason])
	}
}

// adopt registers a freshly handshaken peer, applying the duplicate-peer
// rule: when two sessions to the same NodeID race, the newer one loses.
func (s *server) adopt(p *Peer) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		p.CloseWithoutBan()
		return
	}
	if existing, ok := s.peers[p.NodeID]; ok {
		s.mu.Unlock()
		metrics.ConnDuplicateDropped.Mark(1)
		mlogServer.Send(mlogServerPeerDuplicate.SetDetailValues(p.NodeID.String()).String())
		p.CloseWithoutBan()
		_ = existing
		return
	}
	s.peers[p.NodeID] = p
	count := len(s.peers)
	s.mu.Unlock()

	metrics.ConnActive.Update(int64(count))
	mlogServer.Send(mlogServerPeerAdded.SetDetailValues(p.NodeID.String(), p.Remote.String(), count).String())
	p.OnClose = s.onPeerClose
	p.OnMessage = s.onMessage
	if s.onConnect != nil {
		s.onConnect(p)
	}
	go p.Run()
}

func (s *server) onPeerClose(p *Peer, reason DisconnectReason, banReason ban.Reason, doBan bool) {
	s.mu.Lock()
	if s.peers[p.NodeID] == p {
		delete(s.peers, p.NodeID)
	}
	count := len(s.peers)
	s.mu.Unlock()
	metrics.ConnActive.Update(int64(count))
	mlogServer.Send(mlogServerPeerRemove.SetDetailValues(p.NodeID.String(), fmt.Sprintf("%d", reason), count).String())

	if doBan && banReason != "" {
		ip := remoteIP(p.conn)
		s.bans.Ban(ip, banReason, ban.DefaultDurations[banReason])
		mlogServer.Send(mlogServerBanApplied.SetDetailValues(ip, string(banReason), s.bans.Stats().TotalBans).String())
	}
	if s.onDisconnect != nil {
		s.onDisconnect(p)
	}
}

func (s *server) closeSessionsForIP(ip string) {
	s.mu.Lock()
	var victims []*Peer
	for _, p := range s.peers {
		if remoteIP(p.conn) == ip {
			victims = append(victims, p)
		}
	}
	s.mu.Unlock()
	for _, p := range victims {
		p.CloseWithoutBan()
	}
}

func (s *server) peerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// peersSnapshot returns the currently established peers, for callers that
// need to broadcast or inspect the live set (e.g. ban statistics, tests).
func (s *server) peersSnapshot() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// connectableNodes is the union of ALIVE routing-table nodes and any
// endpoints injected via Connect.
func (s *server) connectableNodes() []connectTarget {
	var out []connectTarget
	if s.table != nil {
		for _, n := range s.table.AllNodes() {
			if n.State == discover.StateAlive {
				out = append(out, connectTarget{ID: n.ID, Remote: n.Endpoint})
			}
		}
	}
	s.mu.Lock()
	out = append(out, s.extraNodes...)
	s.mu.Unlock()
	return out
}

// dialLoop periodically computes how many additional outbound connections
// are needed to reach MinConnections and dials that many candidates.
func (s *server) dialLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(DefaultDialInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.fillConnections()
		case <-s.closeCh:
			return
		}
	}
}

func (s *server) fillConnections() {
	desired := s.cfg.MinConnections - s.peerCount()
	if desired <= 0 {
		return
	}
	candidates := s.connectableNodes()
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	for _, cand := range candidates {
		if desired <= 0 {
			break
		}
		if s.alreadyConnected(cand.ID) {
			continue
		}
		addr := cand.Remote.TCPAddr().String()
		if s.recentlyDialed(addr) {
			continue
		}
		if s.bans.IsBanned(cand.Remote.IP.String()) {
			continue
		}
		desired--
		go s.dial(cand)
	}
}

func (s *server) alreadyConnected(id NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.peers[id]
	return ok
}

func (s *server) recentlyDialed(addr string) bool {
	debounce := DefaultDialDebounce
	if v, ok := s.dialDebounce.Get(addr); ok {
		if time.Since(v.(dialStamp).at) < debounce {
			return true
		}
	}
	s.dialDebounce.Add(addr, dialStamp{at: time.Now()})
	return false
}

func (s *server) dial(cand connectTarget) {
	addr := cand.Remote.TCPAddr()
	conn, err := net.DialTimeout("tcp", addr.String(), s.cfg.HandshakeExpiry)
	if err != nil {
		return
	}
	conn.SetDeadline(time.Now().Add(s.cfg.HandshakeExpiry))

	enc := frame.NewEncoder(s.frameOptions())
	dec := frame.NewDecoder(conn, s.frameOptions())
	sink := handshake.FrameSink(enc, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	})

	start := time.Now()
	remote, failure := handshake.RunDialer(dec, sink, s.priv, s.localDescriptor(), s.cfg.HandshakeExpiry)
	metrics.HandshakeTimer.UpdateSince(start)
	if failure != nil {
		metrics.HandshakeFailure.Mark(1)
		s.rejectHandshake(conn, cand.Remote.IP.String(), failure)
		return
	}
	if remote.NodeID != cand.ID && !cand.ID.IsZero() {
		glog.V(1).Infof("p2p: dialed node announced a different id than expected for %s", addr)
	}
	metrics.HandshakeSuccess.Mark(1)
	conn.SetDeadline(time.Time{})

	p := NewPeer(conn, enc, dec, remote.NodeID, cand.Remote, RoleDialer, DefaultKeepAliveInterval, DefaultReadTimeout)
	s.adopt(p)
}

// Connect dials addr explicitly, bypassing the connectable-nodes filter,
// though bans are still enforced.
func (s *server) Connect(remote Endpoint) {
	s.mu.Lock()
	s.extraNodes = append(s.extraNodes, connectTarget{Remote: remote})
	s.mu.Unlock()
	if s.bans.IsBanned(remote.IP.String()) {
		return
	}
	go s.dial(connectTarget{Remote: remote})
}

// evictionLoop closes one random non-trust peer whenever the connection
// count reaches or exceeds MaxConnections, making room for better-connected
// peers.
func (s *server) evictionLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(DefaultEvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictIfOverCapacity()
		case <-s.closeCh:
			return
		}
	}
}

func (s *server) evictIfOverCapacity() {
	s.mu.Lock()
	if len(s.peers) < s.cfg.MaxConnections {
		s.mu.Unlock()
		return
	}
	var candidates []*Peer
	for _, p := range s.peers {
		if s.isTrusted(remoteIP(p.conn)) {
			continue
		}
		candidates = append(candidates, p)
	}
	s.mu.Unlock()
	if len(candidates) == 0 {
		return
	}
	victim := candidates[rand.Intn(len(candidates))]
	metrics.ConnEvicted.Mark(1)
	victim.CloseWithoutBan()
}

func (s *server) isTrusted(ip string) bool {
	for _, t := range s.cfg.TrustNodes {
		if t == ip {
			return true
		}
	}
	return false
}
