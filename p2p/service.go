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
	"net"
	"path/filepath"
	"sync"

	"github.com/xdagj/xdagj-p2p-go/common"
	"github.com/xdagj/xdagj-p2p-go/crypto"
	"github.com/xdagj/xdagj-p2p-go/logger/glog"
	"github.com/xdagj/xdagj-p2p-go/p2p/ban"
	"github.com/xdagj/xdagj-p2p-go/p2p/discover"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
	"github.com/xdagj/xdagj-p2p-go/p2p/reputation"
)

// MessageHandler is invoked for every decoded application-opcode payload,
// from the peer's reader goroutine: it must not block.
type MessageHandler func(peer *Peer, opcode byte, payload []byte)

// Service is the lifecycle façade the out-of-scope CLI/embedder drives: it
// owns the routing table, reputation store, discovery transport and
// connection manager, and fans inbound application messages out to the
// handlers registered for their opcode. It is the only type this module's
// consumers construct directly.
type Service struct {
	cfg  Config
	priv *ecdsa.PrivateKey
	self NodeID

	table *discover.Table
	rep   *reputation.Store
	disc  *discover.Transport
	bans  *ban.Store
	srv   *server

	mu       sync.Mutex
	handlers map[byte]MessageHandler
	started  bool

	onConnectCb    func(*Peer)
	onDisconnectCb func(*Peer)
}

// NewService builds a Service from cfg, generating an ephemeral signing key
// if cfg.NodeKey is nil (test/demo use only).
func NewService(cfg Config) (*Service, error) {
	cfg = cfg.WithDefaults()

	priv := cfg.NodeKey
	if priv == nil {
		var err error
		priv, err = crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("p2p: generate ephemeral node key: %w", err)
		}
		glog.V(0).Infof("p2p: no node key configured, using ephemeral key (test/demo only)")
	}

	self := NodeIDFromPubkey(&priv.PublicKey)
	table := discover.NewTable(self)
	rep := reputation.NewStore(repDir(cfg.DataDir))
	bans := ban.NewStore(cfg.TrustNodes)

	svc := &Service{
		cfg:      cfg,
		priv:     priv,
		self:     self,
		table:    table,
		rep:      rep,
		bans:     bans,
		handlers: make(map[byte]MessageHandler),
	}
	svc.srv = newServer(cfg, priv, table, nil, bans)
	svc.srv.onConnect = svc.dispatchConnect
	svc.srv.onDisconnect = svc.dispatchDisconnect
	svc.srv.onMessage = svc.dispatchMessage
	return svc, nil
}

func repDir(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "reputation")
}

// RegisterHandler associates opcode (which must be in the application
// range 0x20-0xFF) with handler. Registering a framework opcode, or
// registering the same opcode twice, fails with ErrTypeAlreadyRegistered -
// a configuration-time error the caller must resolve before Start.
func (s *Service) RegisterHandler(opcode byte, handler MessageHandler) error {
	if opcode <= FrameworkOpcodeMax {
		return ErrTypeAlreadyRegistered
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[opcode]; exists {
		return ErrTypeAlreadyRegistered
	}
	s.handlers[opcode] = handler
	return nil
}

// OnConnect registers a callback invoked whenever a peer session becomes
// ESTABLISHED.
func (s *Service) OnConnect(cb func(*Peer)) { s.onConnectCb = cb }

// OnDisconnect registers a callback invoked whenever a peer session closes.
func (s *Service) OnDisconnect(cb func(*Peer)) { s.onDisconnectCb = cb }

func (s *Service) dispatchConnect(p *Peer) {
	if s.onConnectCb != nil {
		s.onConnectCb(p)
	}
}

func (s *Service) dispatchDisconnect(p *Peer) {
	if s.onDisconnectCb != nil {
		s.onDisconnectCb(p)
	}
}

func (s *Service) dispatchMessage(p *Peer, opcode byte, payload []byte) {
	s.mu.Lock()
	h, ok := s.handlers[opcode]
	s.mu.Unlock()
	if !ok {
		glog.V(1).Infof("p2p: no handler registered for opcode 0x%x, dropping", opcode)
		return
	}
	h(p, opcode, payload)
}

// Self returns this node's identity.
func (s *Service) Self() NodeID { return s.self }

// Start brings up the reputation store, the discovery transport (if
// enabled), the TCP listener and dial loop, and kicks off bootstrap against
// the configured seed nodes. A listener bind failure or a signing-key
// problem aborts Start and returns the underlying error; nothing is left
// partially running.
func (s *Service) Start() error {
	if err := s.rep.Start(DefaultSaveInterval); err != nil {
		return fmt.Errorf("p2p: start reputation store: %w", err)
	}

	if s.cfg.EnableDiscovery {
		udpAddr := &net.UDPAddr{Port: s.cfg.Port}
		disc, err := discover.ListenUDP(udpAddr, s.priv, s.table, s.rep)
		if err != nil {
			s.rep.Stop()
			return fmt.Errorf("p2p: start discovery: %w", err)
		}
		s.disc = disc
		s.srv.disc = disc
	}

	if err := s.srv.listenAndServe(); err != nil {
		if s.disc != nil {
			s.disc.Close()
		}
		s.rep.Stop()
		return err
	}

	if id := common.GetClientSessionIdentity(); id != nil {
		glog.V(0).Infof("p2p: service started self=%s port=%d %s", s.self, s.cfg.Port, id.String())
	}

	if s.disc != nil && len(s.cfg.SeedNodes) > 0 {
		go s.disc.Bootstrap(s.cfg.SeedNodes)
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// Stop reverses Start: it stops the dial/eviction/accept loops, closes
// every session without banning, shuts the discovery socket, and flushes
// the reputation store one last time.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.srv.stop()
	if s.disc != nil {
		s.disc.Close()
	}
	if err := s.rep.Stop(); err != nil {
		glog.Errorf("p2p: final reputation save failed: %s", err)
	}
}

// Connect dials remote explicitly, bypassing the connectable-nodes filter
// derived from the routing table; bans are still enforced.
func (s *Service) Connect(remote Endpoint) {
	s.srv.Connect(remote)
}

// GetConnectableNodes returns the union of ALIVE routing-table nodes and
// any endpoints previously passed to Connect, the same candidate list the
// dial loop draws from.
func (s *Service) GetConnectableNodes() []enode.Endpoint {
	targets := s.srv.connectableNodes()
	out := make([]enode.Endpoint, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Remote)
	}
	return out
}

// Peers returns every currently ESTABLISHED peer session.
func (s *Service) Peers() []*Peer { return s.srv.peersSnapshot() }

// GetAllBannedNodes returns every currently active ban record.
func (s *Service) GetAllBannedNodes() []ban.Record { return s.bans.AllBanned() }

// BanStats returns a snapshot of the ban subsystem's counters.
func (s *Service) BanStats() ban.Stats { return s.bans.Stats() }

// Reputation exposes the reputation store's decayed score for id.
func (s *Service) Reputation(id NodeID) int32 { return s.rep.Get(id) }
