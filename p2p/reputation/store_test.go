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
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
	"github.com/xdagj/xdagj-p2p-go/p2p/enode"
)

func testID(b byte) enode.NodeID {
	var id enode.NodeID
	id[0] = b
	return id
}

func TestGetUnknownNodeIsNeutral(t *testing.T) {
	s := NewStore("")
	require.EqualValues(t, NeutralScore, s.Get(testID(1)))
}

func TestSetClampsToBounds(t *testing.T) {
	s := NewStore("")
	s.Set(testID(1), 500)
	require.EqualValues(t, MaxScore, s.Get(testID(1)))
	s.Set(testID(1), -50)
	require.EqualValues(t, MinScore, s.Get(testID(1)))
}

func TestDecayMovesTowardNeutral(t *testing.T) {
	s := NewStore("")
	now := int64(0)
	s.nowFn = func() int64 { return now }
	s.Set(testID(1), 200)

	now = 3 * msPerDay
	got := s.Get(testID(1))
	require.EqualValues(t, 200-3*decayPerDay, got)
}

func TestDecayClampsAtNeutralFromAbove(t *testing.T) {
	s := NewStore("")
	now := int64(0)
	s.nowFn = func() int64 { return now }
	s.Set(testID(1), 105)

	now = 10 * msPerDay
	require.EqualValues(t, NeutralScore, s.Get(testID(1)))
}

func TestDecayClampsAtNeutralFromBelow(t *testing.T) {
	s := NewStore("")
	now := int64(0)
	s.nowFn = func() int64 { return now }
	s.Set(testID(1), 10)

	now = 100 * msPerDay
	require.EqualValues(t, NeutralScore, s.Get(testID(1)))
}

func TestSizeAndClear(t *testing.T) {
	s := NewStore("")
	s.Set(testID(1), 150)
	s.Set(testID(2), 50)
	require.Equal(t, 2, s.Size())
	s.Clear()
	require.Equal(t, 0, s.Size())
}

func TestAdjustAddsToDecayedScore(t *testing.T) {
	s := NewStore("")
	s.Set(testID(1), 100)
	got := s.Adjust(testID(1), 20)
	require.EqualValues(t, 120, got)
	require.EqualValues(t, 120, s.Get(testID(1)))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.Set(testID(1), 150)
	s.Set(testID(2), 30)
	require.NoError(t, s.Save())

	s2 := NewStore(dir)
	require.NoError(t, s2.Load())
	if s2.Size() != 2 {
		t.Fatalf("recovered entries mismatch after save/load round trip:\n%s", spew.Sdump(s2.entries))
	}
	require.EqualValues(t, 150, s2.entries[testID(1)].score)
	require.EqualValues(t, 30, s2.entries[testID(2)].score)
}

func TestLoadFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.Set(testID(1), 77)
	require.NoError(t, s.Save())
	// A second save rotates reputation.dat -> .bak and writes a fresh one.
	s.Set(testID(2), 88)
	require.NoError(t, s.Save())
	require.FileExists(t, filepath.Join(dir, bakName))

	// Corrupt the primary file; Load must fall back to .bak.
	require.NoError(t, writeGarbage(filepath.Join(dir, datName)))

	s2 := NewStore(dir)
	require.NoError(t, s2.Load())
	require.Equal(t, 1, s2.Size())
	require.EqualValues(t, 77, s2.entries[testID(1)].score)
}

func TestLoadEmptyWhenNoFilesExist(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Load())
	require.Equal(t, 0, s.Size())
}

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0644)
}
