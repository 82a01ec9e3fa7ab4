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

// Package reputation tracks a decaying trust score per node id, persisted to
// disk with the tempfile-fsync-rename protocol the rest of this codebase
// uses for anything that must survive a crash mid-write.
package reputation

import (
	"sync"
	"time"

	"github.com/xdagj/xdagj-p2p-go/logger/glog"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

// Score bounds and decay constants.
const (
	MinScore     int32 = 0
	MaxScore     int32 = 200
	NeutralScore int32 = 100

	decayPerDay  int32 = 5
	msPerDay     int64 = 86_400_000
)

// DefaultSaveInterval is how often the store flushes to disk in the
// background when Start is used.
const DefaultSaveInterval = 60 * time.Second

type entry struct {
	score      int32
	lastUpdate int64 // unix millis
}

// Store is a concurrent map of node id to reputation score, with the score
// decaying toward NeutralScore the longer it goes unset. Decay is computed
// on read; the stored value and its timestamp are never rewritten by a Get.
type Store struct {
	mu      sync.RWMutex
	entries map[enode.NodeID]entry

	path string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	nowFn func() int64
}

// NewStore creates a Store that persists to path (a directory; the store
// writes reputation.dat/.bak/.tmp inside it). An empty path disables
// persistence entirely; Load and Save become no-ops.
func NewStore(path string) *Store {
	return &Store{
		entries: make(map[enode.NodeID]entry),
		path:    path,
		nowFn:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Get returns the decayed score for id. Nodes never seen before are
// NeutralScore.
func (s *Store) Get(id enode.NodeID) int32 {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return NeutralScore
	}
	return decay(e.score, e.lastUpdate, s.now())
}

// decay moves score toward NeutralScore by decayPerDay points for every full
// day elapsed since lastUpdate, clamping at NeutralScore rather than
// overshooting past it.
func decay(score int32, lastUpdate, now int64) int32 {
	if now <= lastUpdate {
		return score
	}
	days := (now - lastUpdate) / msPerDay
	if days <= 0 {
		return score
	}
	delta := int32(days) * decayPerDay
	switch {
	case score > NeutralScore:
		score -= delta
		if score < NeutralScore {
			score = NeutralScore
		}
	case score < NeutralScore:
		score += delta
		if score > NeutralScore {
			score = NeutralScore
		}
	}
	return score
}

// Set overwrites id's score, clamped to [MinScore, MaxScore], and records
// the current time as its last update.
func (s *Store) Set(id enode.NodeID, score int32) {
	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	s.mu.Lock()
	s.entries[id] = entry{score: score, lastUpdate: s.now()}
	s.mu.Unlock()
}

// Adjust adds delta to id's current decayed score and stores the result,
// clamped to [MinScore, MaxScore]. The read-decay-add-clamp-store sequence
// runs under a single lock so concurrent Adjust calls for the same id never
// lose an update to each other.
func (s *Store) Adjust(id enode.NodeID, delta int32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := NeutralScore
	if e, ok := s.entries[id]; ok {
		score = decay(e.score, e.lastUpdate, s.now())
	}
	newScore := score + delta
	if newScore < MinScore {
		newScore = MinScore
	}
	if newScore > MaxScore {
		newScore = MaxScore
	}
	s.entries[id] = entry{score: newScore, lastUpdate: s.now()}
	return newScore
}

// Size returns the number of tracked node ids.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear discards every tracked score.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[enode.NodeID]entry)
	s.mu.Unlock()
}

func (s *Store) now() int64 {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now().UnixMilli()
}

// Start loads any existing persisted state and launches the background
// saver, which flushes every interval until Stop is called. interval <= 0
// uses DefaultSaveInterval.
func (s *Store) Start(interval time.Duration) error {
	if err := s.Load(); err != nil {
		glog.Warningf("reputation: load failed, starting empty: %s", err)
	}
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.saveLoop(interval)
	return nil
}

func (s *Store) saveLoop(interval time.Duration) {
	defer close(s.doneCh)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.Save(); err != nil {
				glog.Errorf("reputation: periodic save failed: %s", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop halts the background saver and performs one final save.
func (s *Store) Stop() error {
	s.stopOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			<-s.doneCh
		}
	})
	return s.Save()
}
