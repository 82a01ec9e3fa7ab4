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

package reputation

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

// On-disk layout: magic(u32) | version(u16) | count(u32) | repeated
// { id_len(u16), id_bytes, score(i16), timestamp(i64) }. The explicit
// version field is what lets a future format change fail loudly instead of
// silently misreading an old file; id_len is carried even though every id
// in this codebase is enode.IDLength bytes, so the format itself does not
// have to change if that ever stops being true.
const (
	fileMagic   uint32 = 0x52455054 // "REPT"
	fileVersion uint16 = 1

	datName = "reputation.dat"
	bakName = "reputation.dat.bak"
	tmpName = "reputation.tmp"
)

func (s *Store) datPath() string { return filepath.Join(s.path, datName) }
func (s *Store) bakPath() string { return filepath.Join(s.path, bakName) }
func (s *Store) tmpPath() string { return filepath.Join(s.path, tmpName) }

// Save serializes the full table to a temp file, fsyncs it, rotates the
// existing data file to .bak, then renames the temp file into place. A
// crash before the rotation leaves the old reputation.dat in place; a crash
// between the rotation and the final rename leaves no reputation.dat, with
// the prior generation in .bak, which Load falls back to; a crash after
// leaves the new data file in place with the prior generation preserved as
// .bak.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(s.path, 0755); err != nil {
		return fmt.Errorf("reputation: mkdir: %w", err)
	}

	s.mu.RLock()
	snapshot := make(map[enode.NodeID]entry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	tmp := s.tmpPath()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("reputation: open temp file: %w", err)
	}
	if err := writeSnapshot(f, snapshot); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("reputation: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("reputation: close temp file: %w", err)
	}

	dat := s.datPath()
	if _, err := os.Stat(dat); err == nil {
		if err := os.Rename(dat, s.bakPath()); err != nil {
			return fmt.Errorf("reputation: rotate backup: %w", err)
		}
	}
	if err := os.Rename(tmp, dat); err != nil {
		return fmt.Errorf("reputation: install new data file: %w", err)
	}
	return nil
}

func writeSnapshot(w io.Writer, snapshot map[enode.NodeID]entry) error {
	bw := bufio.NewWriter(w)
	var hdr [10]byte
	binary.BigEndian.PutUint32(hdr[0:4], fileMagic)
	binary.BigEndian.PutUint16(hdr[4:6], fileVersion)
	binary.BigEndian.PutUint32(hdr[6:10], uint32(len(snapshot)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("reputation: write header: %w", err)
	}

	var rec [2 + enode.IDLength + 2 + 8]byte
	for id, e := range snapshot {
		binary.BigEndian.PutUint16(rec[0:2], uint16(enode.IDLength))
		copy(rec[2:2+enode.IDLength], id[:])
		binary.BigEndian.PutUint16(rec[2+enode.IDLength:4+enode.IDLength], uint16(int16(e.score)))
		binary.BigEndian.PutUint64(rec[4+enode.IDLength:12+enode.IDLength], uint64(e.lastUpdate))
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("reputation: write record: %w", err)
		}
	}
	return bw.Flush()
}

// Load populates the store from reputation.dat, falling back to the .bak
// rotation if the primary file is missing or fails to parse, and leaving
// the store empty (not an error) if neither exists or parses.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	entries, err := readFile(s.datPath())
	if err != nil {
		entries, err = readFile(s.bakPath())
		if err != nil {
			s.mu.Lock()
			s.entries = make(map[enode.NodeID]entry)
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func readFile(path string) (map[enode.NodeID]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readSnapshot(bufio.NewReader(f))
}

func readSnapshot(r io.Reader) (map[enode.NodeID]entry, error) {
	var hdr [10]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reputation: read header: %w", err)
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != fileMagic {
		return nil, fmt.Errorf("reputation: bad magic")
	}
	if binary.BigEndian.Uint16(hdr[4:6]) != fileVersion {
		return nil, fmt.Errorf("reputation: unsupported version %d", binary.BigEndian.Uint16(hdr[4:6]))
	}
	count := binary.BigEndian.Uint32(hdr[6:10])

	entries := make(map[enode.NodeID]entry, count)
	for i := uint32(0); i < count; i++ {
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("reputation: read id length: %w", err)
		}
		idLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return nil, fmt.Errorf("reputation: read id: %w", err)
		}
		var rest [10]byte
		if _, err := io.ReadFull(r, rest[:]); err != nil {
			return nil, fmt.Errorf("reputation: read record tail: %w", err)
		}
		score := int32(int16(binary.BigEndian.Uint16(rest[0:2])))
		ts := int64(binary.BigEndian.Uint64(rest[2:10]))

		if idLen != enode.IDLength {
			// A record for an id width this build doesn't understand;
			// skip it rather than fail the whole load.
			continue
		}
		var id enode.NodeID
		copy(id[:], idBytes)
		entries[id] = entry{score: score, lastUpdate: ts}
	}
	return entries, nil
}
