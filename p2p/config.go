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
	"time"

	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

// Default values. WithDefaults applies DefaultMinConnections,
// DefaultMaxConnections, DefaultHandshakeExpiry, DefaultMaxFrameBodySize and
// DefaultMaxPacketSize when the matching Config field is left zero-valued;
// the other constants have no Config field.
const (
	DefaultDiscoveryCycle    = 15 * time.Second
	DefaultPingTimeout       = 5 * time.Second
	DefaultHandshakeExpiry   = 5 * time.Second
	DefaultMaxFrameBodySize  = 1 << 17 // 128 KiB per physical frame
	DefaultMaxPacketSize     = 4 << 20 // 4 MiB logical payload ceiling
	DefaultSaveInterval      = 60 * time.Second
	DefaultDialInterval      = 5 * time.Second
	DefaultEvictionInterval  = 30 * time.Second
	DefaultDialDebounce      = 30 * time.Second
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultReadTimeout       = 60 * time.Second
	DefaultMinConnections    = 8
	DefaultMaxConnections    = 32

	DeadReputationThreshold = 20
)

// Config carries every tunable of a Service. It is built by the
// out-of-scope CLI/embedder and handed to NewService.
type Config struct {
	// Port is the shared TCP/UDP listen port.
	Port int

	// NetworkID and NetworkVersion are compared during the handshake;
	// a mismatch aborts the connection with BadHandshake.
	NetworkID      byte
	NetworkVersion uint16

	MinConnections int
	MaxConnections int

	// SeedNodes are contacted on bootstrap.
	SeedNodes []enode.Endpoint
	// TrustNodes are never banned and never randomly evicted.
	TrustNodes []string

	// NodeKey is the long-term signing key. If nil, an ephemeral key is
	// generated (test/demo use only).
	NodeKey *ecdsa.PrivateKey

	HandshakeExpiry  time.Duration
	MaxFrameBodySize int
	MaxPacketSize    int

	EnableFrameCompression bool
	EnableDiscovery        bool

	DataDir string

	// ClientID/Tag/Capabilities/LatestBlock feed the HELLO/WORLD descriptor.
	ClientID     string
	ListenTag    string
	Capabilities []string
	LatestBlock  uint64
}

// WithDefaults returns a copy of c with zero-valued tunables replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.MinConnections == 0 {
		c.MinConnections = DefaultMinConnections
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.HandshakeExpiry == 0 {
		c.HandshakeExpiry = DefaultHandshakeExpiry
	}
	if c.MaxFrameBodySize == 0 {
		c.MaxFrameBodySize = DefaultMaxFrameBodySize
	}
	if c.MaxPacketSize == 0 {
		c.MaxPacketSize = DefaultMaxPacketSize
	}
	return c
}
