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

package frame

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func opts() Options {
	return Options{MaxFrameBodySize: 64, MaxPacketSize: 1 << 20, Compress: false}
}

func TestRoundTripSingleFrame(t *testing.T) {
	enc := NewEncoder(opts())
	frames, err := enc.Encode(0x15, []byte("pong payload"))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	dec := NewDecoder(&buf, opts())
	pt, body, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x15), pt)
	require.Equal(t, "pong payload", string(body))
}

func TestRoundTripEmptyPayload(t *testing.T) {
	enc := NewEncoder(opts())
	frames, err := enc.Encode(0x14, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	var buf bytes.Buffer
	buf.Write(frames[0])
	dec := NewDecoder(&buf, opts())
	pt, body, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x14), pt)
	require.Empty(t, body)
}

func TestChunkingBoundary(t *testing.T) {
	o := opts()
	enc := NewEncoder(o)

	atMax := bytes.Repeat([]byte{0xAB}, o.MaxFrameBodySize)
	frames, err := enc.Encode(0x20, atMax)
	require.NoError(t, err)
	require.Len(t, frames, 1, "body size == max must stay a single frame")

	overMax := bytes.Repeat([]byte{0xCD}, o.MaxFrameBodySize+1)
	frames2, err := enc.Encode(0x20, overMax)
	require.NoError(t, err)
	require.Len(t, frames2, 2, "body size == max+1 must split into two frames")
}

func TestChunkedRoundTripVaryingFrameSize(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 50) // 500 bytes
	for m := 1; m <= len(payload)+1; m++ {
		o := Options{MaxFrameBodySize: m, MaxPacketSize: 1 << 20}
		enc := NewEncoder(o)
		frames, err := enc.Encode(0x21, payload)
		require.NoError(t, err)

		var buf bytes.Buffer
		for _, f := range frames {
			buf.Write(f)
		}
		dec := NewDecoder(&buf, o)
		pt, body, err := dec.Next()
		require.NoError(t, err, "max_frame_body=%d", m)
		require.Equal(t, byte(0x21), pt)
		if !bytes.Equal(payload, body) {
			t.Fatalf("max_frame_body=%d reassembled payload mismatch:\nwant %sgot %s", m, spew.Sdump(payload), spew.Sdump(body))
		}
	}
}

func TestSnappyCompressionRoundTrip(t *testing.T) {
	o := Options{MaxFrameBodySize: 4096, MaxPacketSize: 1 << 20, Compress: true}
	enc := NewEncoder(o)
	payload := bytes.Repeat([]byte("compress me please "), 1000)
	frames, err := enc.Encode(0x22, payload)
	require.NoError(t, err)

	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	dec := NewDecoder(&buf, o)
	pt, body, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x22), pt)
	require.Equal(t, payload, body)
}

// TestBadMagicResync is scenario S2: garbage bytes ahead of a well-formed
// frame must not corrupt the stream; exactly one message is decoded.
func TestBadMagicResync(t *testing.T) {
	o := opts()
	enc := NewEncoder(o)
	frames, err := enc.Encode(0x15, bytes.Repeat([]byte{1}, 100))
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03})
	for _, f := range frames {
		buf.Write(f)
	}

	dec := NewDecoder(&buf, o)
	pt, body, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, byte(0x15), pt)
	require.Equal(t, bytes.Repeat([]byte{1}, 100), body)
}

func TestPayloadTooLarge(t *testing.T) {
	o := Options{MaxFrameBodySize: 64, MaxPacketSize: 10}
	enc := NewEncoder(o)
	_, err := enc.Encode(0x20, bytes.Repeat([]byte{1}, 11))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestInflightOverflowClearsAggregates(t *testing.T) {
	o := Options{MaxFrameBodySize: 4, MaxPacketSize: 1 << 20}
	dec := NewDecoder(&bytes.Buffer{}, o)

	// Feed one unfinished chunk for MaxInflight+1 distinct packet ids
	// directly through the reassembly step: each leaves remaining > 0, so
	// none ever completes and the map keeps growing until it overflows.
	for id := uint32(1); id <= MaxInflight+1; id++ {
		h := Header{Version: Version, PacketType: 0x20, PacketID: id, PacketSize: 8, BodySize: 4}
		_, _, done, err := dec.accumulate(h, []byte{1, 2, 3, 4})
		require.NoError(t, err)
		require.False(t, done)
	}
	require.LessOrEqual(t, dec.InflightCount(), MaxInflight)
}
