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
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xdagj/xdagj-p2p-go/logger/glog"
	"github.com/xdagj/xdagj-p2p-go/metrics"
	"github.com/xdagj/xdagj-p2p-go/p2p/ban"
	"github.com/xdagj/xdagj-p2p-go/p2p/frame"
)

// Role identifies which side of a TCP connection this session is.
type Role int

const (
	RoleDialer Role = iota
	RoleListener
)

// SessionState is a peer session's lifecycle position.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateHandshaking
	StateEstablished
	StateClosing
)

// Framework opcodes reserved outside the application range.
const (
	OpDisconnect byte = 0x13
	OpKeepAlivePing byte = 0x14
	OpKeepAlivePong byte = 0x15

	// FrameworkOpcodeMax is the top of the reserved range; application
	// handlers may only be registered above it.
	FrameworkOpcodeMax = 0x1F
)

// DisconnectReason is the single-byte payload of an OpDisconnect frame.
type DisconnectReason byte

const (
	ReasonRequested DisconnectReason = iota
	ReasonReadTimeout
	ReasonDuplicatePeer
	ReasonBanned
	ReasonProtocolViolation
	ReasonShutdown
)

const sendQueueSize = 256

type outgoing struct {
	opcode  byte
	payload []byte
}

// Stats are the layered byte/message counters kept per session.
type Stats struct {
	NetworkBytesIn   int64
	NetworkBytesOut  int64
	AppMessagesIn    int64
	AppMessagesOut   int64
	perOpcodeIn      map[byte]int64
	perOpcodeOut     map[byte]int64
	mu               sync.Mutex
}

func newStats() *Stats {
	return &Stats{perOpcodeIn: make(map[byte]int64), perOpcodeOut: make(map[byte]int64)}
}

func (s *Stats) recordIn(opcode byte, n int) {
	atomic.AddInt64(&s.NetworkBytesIn, int64(n))
	atomic.AddInt64(&s.AppMessagesIn, 1)
	s.mu.Lock()
	s.perOpcodeIn[opcode]++
	s.mu.Unlock()
}

func (s *Stats) recordOut(opcode byte, n int) {
	atomic.AddInt64(&s.NetworkBytesOut, int64(n))
	atomic.AddInt64(&s.AppMessagesOut, 1)
	s.mu.Lock()
	s.perOpcodeOut[opcode]++
	s.mu.Unlock()
}

// Peer is one established TCP session: its framed transport, a bounded send
// queue drained by a writer loop, keep-alive and read-timeout enforcement,
// and layered stats. A Peer is owned exclusively by the connection manager
// that created it.
type Peer struct {
	conn   net.Conn
	enc    *frame.Encoder
	dec    *frame.Decoder
	NodeID NodeID
	Remote Endpoint
	Role   Role

	state int32 // SessionState, atomic

	sendCh chan outgoing
	doneCh chan struct{}
	once   sync.Once

	mu          sync.Mutex
	lastSend    time.Time
	lastRecv    time.Time
	avgLatency  time.Duration
	latencyN    int64
	pendingPing time.Time

	Stats *Stats

	keepAliveInterval time.Duration
	readTimeout       time.Duration

	// OnMessage is invoked for every application-range opcode (0x20-0xFF)
	// received, from the reader goroutine: handlers must not block.
	OnMessage func(p *Peer, opcode byte, payload []byte)
	// OnClose is invoked exactly once when the session's loops exit.
	OnClose func(p *Peer, reason DisconnectReason, banReason ban.Reason, doBan bool)
}

// NewPeer wraps an already-handshaken connection. enc/dec are the same
// frame codec instances the handshake used, so no bytes are lost mid
// stream.
func NewPeer(conn net.Conn, enc *frame.Encoder, dec *frame.Decoder, id NodeID, remote Endpoint, role Role, keepAlive, readTimeout time.Duration) *Peer {
	now := time.Now()
	return &Peer{
		conn:              conn,
		enc:               enc,
		dec:               dec,
		NodeID:            id,
		Remote:            remote,
		Role:              role,
		state:             int32(StateEstablished),
		sendCh:            make(chan outgoing, sendQueueSize),
		doneCh:            make(chan struct{}),
		lastSend:          now,
		lastRecv:          now,
		Stats:             newStats(),
		keepAliveInterval: keepAlive,
		readTimeout:       readTimeout,
	}
}

// State returns the session's current lifecycle state.
func (p *Peer) State() SessionState { return SessionState(atomic.LoadInt32(&p.state)) }

// Run starts the peer's reader and writer loops and blocks until the
// session closes. Callers normally invoke this in its own goroutine.
func (p *Peer) Run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); p.writeLoop() }()
	go func() { defer wg.Done(); p.readLoop() }()
	wg.Wait()
}

// Send enqueues an application message for transmission. It never blocks:
// if the send queue is full the message is dropped, the way an overloaded
// outbound pipe should shed load rather than stall the caller or grow
// without bound.
func (p *Peer) Send(opcode byte, payload []byte) {
	select {
	case p.sendCh <- outgoing{opcode, payload}:
	default:
		glog.V(1).Infof("p2p: send queue full for %s, dropping opcode 0x%x", p.NodeID, opcode)
	}
}

func (p *Peer) writeLoop() {
	ticker := time.NewTicker(p.keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case out := <-p.sendCh:
			if err := p.writeFrame(out.opcode, out.payload); err != nil {
				p.shutdown(ReasonProtocolViolation, "", false)
				return
			}
		case <-ticker.C:
			p.maybeKeepAlive()
		case <-p.doneCh:
			return
		}
	}
}

func (p *Peer) maybeKeepAlive() {
	p.mu.Lock()
	idle := time.Since(p.lastSend)
	p.mu.Unlock()
	if idle <= p.keepAliveInterval {
		return
	}
	now := time.Now()
	w := newKeepAliveBody(now)
	if err := p.writeFrame(OpKeepAlivePing, w); err == nil {
		p.mu.Lock()
		p.pendingPing = now
		p.mu.Unlock()
	}
}

func (p *Peer) writeFrame(opcode byte, payload []byte) error {
	frames, err := p.enc.Encode(opcode, payload)
	if err != nil {
		return err
	}
	n := 0
	for _, f := range frames {
		if _, err := p.conn.Write(f); err != nil {
			return err
		}
		n += len(f)
	}
	p.mu.Lock()
	p.lastSend = time.Now()
	p.mu.Unlock()
	metrics.P2POut.Mark(1)
	metrics.P2POutBytes.Mark(int64(n))
	if opcode > FrameworkOpcodeMax {
		p.Stats.recordOut(opcode, n)
	}
	return nil
}

func (p *Peer) readLoop() {
	for {
		if err := p.conn.SetReadDeadline(time.Now().Add(p.readTimeout)); err != nil {
			p.shutdown(ReasonReadTimeout, "", false)
			return
		}
		opcode, body, err := p.dec.Next()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				p.shutdown(ReasonReadTimeout, "", false)
				return
			}
			p.shutdown(ReasonReadTimeout, "", false)
			return
		}
		p.mu.Lock()
		p.lastRecv = time.Now()
		p.mu.Unlock()
		metrics.P2PIn.Mark(1)
		metrics.P2PInBytes.Mark(int64(len(body)))

		switch {
		case opcode == OpDisconnect:
			p.shutdown(ReasonRequested, "", false)
			return
		case opcode == OpKeepAlivePing:
			// Routed through the send queue rather than written directly:
			// writeFrame must only ever be called from writeLoop, since
			// net.Conn.Write is not safe for concurrent callers.
			p.Send(OpKeepAlivePong, body)
		case opcode == OpKeepAlivePong:
			p.onKeepAlivePong(body)
		case opcode > FrameworkOpcodeMax:
			p.Stats.recordIn(opcode, len(body))
			if p.OnMessage != nil {
				p.OnMessage(p, opcode, body)
			}
		default:
			p.shutdown(ReasonProtocolViolation, ban.ProtocolViolation, true)
			return
		}
	}
}

func (p *Peer) onKeepAlivePong(body []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingPing.IsZero() {
		return
	}
	sample := time.Since(p.pendingPing)
	p.pendingPing = time.Time{}
	p.latencyN++
	p.avgLatency = time.Duration((int64(p.avgLatency)*(p.latencyN-1) + int64(sample)) / p.latencyN)
}

// AvgLatency returns the rolling average keep-alive round-trip latency.
func (p *Peer) AvgLatency() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.avgLatency
}

// Close closes the session with the default ban reason (ProtocolViolation)
// and its default duration.
func (p *Peer) Close() {
	p.shutdown(ReasonRequested, ban.ProtocolViolation, true)
}

// CloseWithBan closes the session and records a ban for its remote IP with
// the given reason.
func (p *Peer) CloseWithBan(reason ban.Reason) {
	p.shutdown(ReasonBanned, reason, true)
}

// CloseWithoutBan closes the session without recording any ban, used
// during shutdown or duplicate-peer suppression.
func (p *Peer) CloseWithoutBan() {
	p.shutdown(ReasonRequested, "", false)
}

func (p *Peer) shutdown(reason DisconnectReason, banReason ban.Reason, doBan bool) {
	p.once.Do(func() {
		atomic.StoreInt32(&p.state, int32(StateClosing))
		close(p.doneCh)
		p.conn.Close()
		if p.OnClose != nil {
			p.OnClose(p, reason, banReason, doBan)
		}
	})
}

func newKeepAliveBody(t time.Time) []byte {
	var b [8]byte
	v := uint64(t.UnixNano())
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b[:]
}
