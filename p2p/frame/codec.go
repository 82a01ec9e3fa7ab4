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

// Package frame implements the length-framed, optionally Snappy-compressed
// wire codec carried over every TCP connection: a fixed 20-byte header,
// chunking for payloads larger than a single frame, and magic-number
// resynchronization after stream corruption.
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang/snappy"
)

// HeaderSize is the fixed byte length of a frame header.
const HeaderSize = 20

// Magic is the 4-byte sentinel every frame header begins with.
const Magic uint32 = 0x58444147

// CompressType identifies the body compression algorithm of a frame.
type CompressType uint8

const (
	CompressNone   CompressType = 0
	CompressSnappy CompressType = 1
)

// Version is the codec's wire version. Frames with a different version are
// treated as corrupt and trigger resync rather than a hard decode error,
// since a version bump should not be distinguishable on the wire from bit
// rot to a passive observer.
const Version uint16 = 1

// MaxInflight bounds the number of concurrently-reassembling chunked packets
// per connection. Exceeding it clears all aggregates: crude but bounded
// backpressure against a peer that opens many partial packets and never
// finishes any of them.
const MaxInflight = 64

// Header is the 20-byte fixed frame header.
type Header struct {
	Version      uint16
	CompressType CompressType
	PacketType   byte
	PacketID     uint32
	PacketSize   uint32
	BodySize     uint32
}

// Chunked reports whether this frame is part of a multi-frame logical packet.
func (h Header) Chunked() bool { return h.BodySize < h.PacketSize }

func encodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], Magic)
	binary.BigEndian.PutUint16(b[4:6], h.Version)
	b[6] = byte(h.CompressType)
	b[7] = h.PacketType
	binary.BigEndian.PutUint32(b[8:12], h.PacketID)
	binary.BigEndian.PutUint32(b[12:16], h.PacketSize)
	binary.BigEndian.PutUint32(b[16:20], h.BodySize)
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Version:      binary.BigEndian.Uint16(b[4:6]),
		CompressType: CompressType(b[6]),
		PacketType:   b[7],
		PacketID:     binary.BigEndian.Uint32(b[8:12]),
		PacketSize:   binary.BigEndian.Uint32(b[12:16]),
		BodySize:     binary.BigEndian.Uint32(b[16:20]),
	}
}

// Options configures an Encoder/Decoder pair for a single connection.
type Options struct {
	MaxFrameBodySize int
	MaxPacketSize    int
	Compress         bool
}

// Encoder turns logical (opcode, payload) packets into one or more wire
// frames. One Encoder belongs to exactly one connection; its packet-id
// counter is monotonically increasing per connection, as required so
// concurrent packets never collide on id.
type Encoder struct {
	opts      Options
	nextID    uint32
}

// NewEncoder constructs an Encoder for one connection's outbound direction.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Encode produces the ordered sequence of wire frames for one logical
// packet. Every returned frame must be written to the connection in order.
func (e *Encoder) Encode(packetType byte, payload []byte) ([][]byte, error) {
	data := payload
	compressType := CompressNone
	if e.opts.Compress {
		compressed, err := snappyEncode(payload)
		if err != nil {
			return nil, fmt.Errorf("frame: encode failed: %w", err)
		}
		data = compressed
		compressType = CompressSnappy
	}
	if len(data) > e.opts.MaxPacketSize {
		return nil, errPayloadTooLarge
	}

	packetID := atomic.AddUint32(&e.nextID, 1)
	packetSize := uint32(len(data))
	maxBody := e.opts.MaxFrameBodySize

	if len(data) == 0 {
		h := Header{Version: Version, CompressType: compressType, PacketType: packetType, PacketID: packetID, PacketSize: 0, BodySize: 0}
		return [][]byte{encodeHeader(h)}, nil
	}

	var frames [][]byte
	for off := 0; off < len(data); off += maxBody {
		end := off + maxBody
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		h := Header{
			Version:      Version,
			CompressType: compressType,
			PacketType:   packetType,
			PacketID:     packetID,
			PacketSize:   packetSize,
			BodySize:     uint32(len(chunk)),
		}
		frame := append(encodeHeader(h), chunk...)
		frames = append(frames, frame)
	}
	return frames, nil
}

// snappyEncode is split out so tests can simulate a compression failure
// without depending on snappy's internals, which do not actually fail for
// arbitrary input.
var snappyEncode = func(b []byte) ([]byte, error) {
	return snappy.Encode(nil, b), nil
}

var errPayloadTooLarge = fmt.Errorf("frame: payload exceeds configured maximum")

// ErrPayloadTooLarge is returned by Encode when the (possibly compressed)
// payload exceeds MaxPacketSize, and by Decoder.Next for the same condition
// on the receive side.
var ErrPayloadTooLarge = errPayloadTooLarge

// ErrMalformedFraming is returned when a chunked aggregate's accounting goes
// negative (more body bytes received than the packet declared).
var ErrMalformedFraming = fmt.Errorf("frame: chunk aggregate accounting is inconsistent")

type pendingPacket struct {
	packetType   byte
	packetSize   uint32
	remaining    int64
	compressType CompressType
	chunks       [][]byte
}

// Decoder reassembles wire frames read from one connection back into
// logical (opcode, payload) packets, resynchronizing on magic-number loss.
type Decoder struct {
	r    *bufio.Reader
	opts Options

	aggregates map[uint32]*pendingPacket
}

// NewDecoder wraps r for one connection's inbound direction.
func NewDecoder(r io.Reader, opts Options) *Decoder {
	return &Decoder{
		r:          bufio.NewReaderSize(r, opts.MaxFrameBodySize+HeaderSize),
		opts:       opts,
		aggregates: make(map[uint32]*pendingPacket),
	}
}

// Next blocks until one complete logical packet has been read, resyncing
// past any corruption in between. It returns io.EOF (or a wrapped I/O
// error) only when the underlying stream itself fails.
func (d *Decoder) Next() (packetType byte, body []byte, err error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(d.r, hdr); err != nil {
		return 0, nil, err
	}
	if err := d.alignToMagic(hdr); err != nil {
		return 0, nil, err
	}

	for {
		h := decodeHeader(hdr)

		if h.Version != Version || int(h.BodySize) > d.opts.MaxFrameBodySize {
			// Resync: the magic matched but the rest of the header is not
			// one we understand; shift the window by one byte rather than
			// trusting the length we just (mis)parsed, and keep scanning.
			if err := d.shiftAndRealign(hdr); err != nil {
				return 0, nil, err
			}
			continue
		}

		chunk := make([]byte, h.BodySize)
		if _, err := io.ReadFull(d.r, chunk); err != nil {
			return 0, nil, err
		}

		if !h.Chunked() {
			out, err := d.finish(h.CompressType, chunk)
			if err != nil {
				return 0, nil, err
			}
			return h.PacketType, out, nil
		}

		pt, body, done, err := d.accumulate(h, chunk)
		if err != nil {
			return 0, nil, err
		}
		if done {
			return pt, body, nil
		}
		// Not done: read the next frame's header (for this or another
		// inflight packet id) and continue the loop.
		if _, err := io.ReadFull(d.r, hdr); err != nil {
			return 0, nil, err
		}
		if err := d.alignToMagic(hdr); err != nil {
			return 0, nil, err
		}
	}
}

// alignToMagic scans byte-by-byte past anything that isn't a valid magic
// number, the resync procedure in §4.B. hdr must already hold HeaderSize
// freshly-read bytes; on return it holds HeaderSize bytes starting at a
// magic match.
func (d *Decoder) alignToMagic(hdr []byte) error {
	for binary.BigEndian.Uint32(hdr[0:4]) != Magic {
		if err := d.shiftAndRealign(hdr); err != nil {
			return err
		}
	}
	return nil
}

// shiftAndRealign discards hdr[0], shifts the remaining 19 bytes left, reads
// one new byte to refill the window, and keeps doing so until the window
// starts with the magic number.
func (d *Decoder) shiftAndRealign(hdr []byte) error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		copy(hdr, hdr[1:])
		hdr[HeaderSize-1] = b
		if binary.BigEndian.Uint32(hdr[0:4]) == Magic {
			return nil
		}
	}
}

func (d *Decoder) finish(ct CompressType, body []byte) ([]byte, error) {
	if ct == CompressSnappy {
		out, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("frame: snappy decode: %w", err)
		}
		return out, nil
	}
	return body, nil
}

func (d *Decoder) accumulate(h Header, chunk []byte) (packetType byte, body []byte, done bool, err error) {
	if int(h.PacketSize) > d.opts.MaxPacketSize {
		return 0, nil, false, ErrPayloadTooLarge
	}

	agg, ok := d.aggregates[h.PacketID]
	if !ok {
		agg = &pendingPacket{
			packetType:   h.PacketType,
			packetSize:   h.PacketSize,
			remaining:    int64(h.PacketSize),
			compressType: h.CompressType,
		}
		d.aggregates[h.PacketID] = agg
		if len(d.aggregates) > MaxInflight {
			d.aggregates = make(map[uint32]*pendingPacket)
			return 0, nil, false, nil
		}
	}

	agg.chunks = append(agg.chunks, chunk)
	agg.remaining -= int64(len(chunk))
	if agg.remaining < 0 {
		delete(d.aggregates, h.PacketID)
		return 0, nil, false, ErrMalformedFraming
	}
	if agg.remaining > 0 {
		return 0, nil, false, nil
	}

	delete(d.aggregates, h.PacketID)
	total := make([]byte, 0, agg.packetSize)
	for _, c := range agg.chunks {
		total = append(total, c...)
	}
	out, err := d.finish(agg.compressType, total)
	if err != nil {
		return 0, nil, false, err
	}
	return agg.packetType, out, true, nil
}

// InflightCount returns the number of chunked packets currently being
// reassembled. Exposed for tests exercising the MaxInflight backpressure.
func (d *Decoder) InflightCount() int { return len(d.aggregates) }
