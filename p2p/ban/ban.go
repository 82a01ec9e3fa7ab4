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

// Package ban implements the graduated IP ban list: offense-driven duration
// escalation, a whitelist override for trusted peers, and ban statistics.
package ban

import (
	"sync"
	"sync/atomic"
	"time"
)

// Reason is a ban cause, each with its own default duration.
type Reason string

const (
	ProtocolViolation   Reason = "ProtocolViolation"
	MaliciousBehavior   Reason = "MaliciousBehavior"
	BadHandshake        Reason = "BadHandshake"
	TooManyConnections  Reason = "TooManyConnections"
	ManualBan           Reason = "ManualBan"
)

// DefaultDurations gives the base duration for each reason before graduated
// escalation is applied.
var DefaultDurations = map[Reason]time.Duration{
	ProtocolViolation:  5 * time.Minute,
	MaliciousBehavior:  1 * time.Hour,
	BadHandshake:       10 * time.Minute,
	TooManyConnections: 2 * time.Minute,
	ManualBan:          24 * time.Hour,
}

// MaxDuration is the escalation ceiling regardless of offense count.
const MaxDuration = 30 * 24 * time.Hour

// Record is one active ban.
type Record struct {
	IP        string
	Reason    Reason
	BannedAt  time.Time
	ExpiresAt time.Time
	Offenses  int
}

// Store is the concurrent ban list plus per-IP offense counters and the
// whitelist override.
type Store struct {
	mu        sync.Mutex
	bans      map[string]*Record
	offenses  map[string]int
	whitelist map[string]bool

	// CloseSessions is invoked with the banned IP after a ban is recorded,
	// so the connection manager can drop any existing sessions from it.
	// It must not itself call Ban, or it would recurse into this lock.
	CloseSessions func(ip string)

	totalBans   int64
	totalUnbans int64
	perReason   map[Reason]int64
}

// NewStore creates an empty ban list. trustIPs are whitelisted up front.
func NewStore(trustIPs []string) *Store {
	s := &Store{
		bans:      make(map[string]*Record),
		offenses:  make(map[string]int),
		whitelist: make(map[string]bool, len(trustIPs)),
		perReason: make(map[Reason]int64),
	}
	for _, ip := range trustIPs {
		s.whitelist[ip] = true
	}
	return s
}

// Whitelist adds ip to the whitelist; it can never be banned while listed.
func (s *Store) Whitelist(ip string) {
	s.mu.Lock()
	s.whitelist[ip] = true
	s.mu.Unlock()
}

// Ban records a ban for ip. duration <= 0 uses reason's default. The
// effective duration is base*2^(offenses-1), capped at MaxDuration: a
// second ban is twice as long as the first, a third four times, and so on.
// Whitelisted IPs are a no-op. Any previously active ban for this IP is
// replaced.
func (s *Store) Ban(ip string, reason Reason, duration time.Duration) {
	s.mu.Lock()
	if s.whitelist[ip] {
		s.mu.Unlock()
		return
	}
	if duration <= 0 {
		duration = DefaultDurations[reason]
	}
	s.offenses[ip]++
	c := s.offenses[ip]

	effective := duration
	for i := 1; i < c; i++ {
		effective *= 2
		if effective > MaxDuration {
			effective = MaxDuration
			break
		}
	}
	if effective > MaxDuration {
		effective = MaxDuration
	}

	now := time.Now()
	s.bans[ip] = &Record{
		IP:        ip,
		Reason:    reason,
		BannedAt:  now,
		ExpiresAt: now.Add(effective),
		Offenses:  c,
	}
	atomic.AddInt64(&s.totalBans, 1)
	s.perReason[reason]++
	closeFn := s.CloseSessions
	s.mu.Unlock()

	if closeFn != nil {
		closeFn(ip)
	}
}

// IsBanned reports whether ip currently has an active ban. Expired records
// are removed lazily on lookup. Whitelisted IPs are never banned.
func (s *Store) IsBanned(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.whitelist[ip] {
		return false
	}
	r, ok := s.bans[ip]
	if !ok {
		return false
	}
	if time.Now().After(r.ExpiresAt) {
		delete(s.bans, ip)
		return false
	}
	return true
}

// Unban removes any active ban record for ip. The offense counter is
// intentionally preserved, so a re-banned peer keeps climbing the
// escalation curve rather than resetting to the base duration.
func (s *Store) Unban(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bans[ip]; ok {
		delete(s.bans, ip)
		atomic.AddInt64(&s.totalUnbans, 1)
	}
}

// Stats is a snapshot of ban counters.
type Stats struct {
	TotalBans   int64
	Active      int
	TotalUnbans int64
	PerReason   map[Reason]int64
}

// Stats returns the current counters, expiring stale records first so
// Active reflects reality.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for ip, r := range s.bans {
		if now.After(r.ExpiresAt) {
			delete(s.bans, ip)
		}
	}
	perReason := make(map[Reason]int64, len(s.perReason))
	for k, v := range s.perReason {
		perReason[k] = v
	}
	return Stats{
		TotalBans:   atomic.LoadInt64(&s.totalBans),
		Active:      len(s.bans),
		TotalUnbans: atomic.LoadInt64(&s.totalUnbans),
		PerReason:   perReason,
	}
}

// AllBanned returns every currently active ban record.
func (s *Store) AllBanned() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]Record, 0, len(s.bans))
	for ip, r := range s.bans {
		if now.After(r.ExpiresAt) {
			delete(s.bans, ip)
			continue
		}
		out = append(out, *r)
	}
	return out
}
