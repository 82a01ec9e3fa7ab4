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

// Package wire holds the shared big-endian cursor primitives used to encode
// and decode discovery datagrams and handshake messages.
package wire

import (
	"encoding/binary"

	"github.com/xdagj/xdagj-p2p-go/p2p/perr"
)

// ErrMalformedMessage is returned on underrun or an invalid length while
// decoding.
var ErrMalformedMessage = perr.ErrMalformedMessage

// Reader is the minimal cursor the wire primitives decode from. Both the
// discovery datagram parser and the handshake message parser wrap a []byte
// in one of these.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Bytes returns the remaining unread bytes without consuming them.
func (r *Reader) Bytes() []byte { return r.buf[r.pos:] }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, ErrMalformedMessage
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a big-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadBytes reads a 4-byte-length-prefixed byte array. A negative (i.e.
// absurdly large, since length is unsigned) or underrunning length fails
// with ErrMalformedMessage.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

// ReadFixed reads exactly n raw bytes (no length prefix), used for
// fixed-width fields like node ids and signatures.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	return r.take(n)
}

// ReadString reads a 4-byte-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadArrayLen reads a 4-byte element count for a length-prefixed array. The
// count is rejected with ErrMalformedMessage if it exceeds the number of
// bytes remaining in the buffer, since every element consumes at least one
// byte; this stops a forged count (e.g. 0xFFFFFFFF) from pre-sizing a
// multi-gigabyte slice before the caller has verified anything about the
// message.
func (r *Reader) ReadArrayLen() (int, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if int(n) > r.Len() {
		return 0, ErrMalformedMessage
	}
	return int(n), nil
}

// Writer accumulates encoded wire primitives.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

// WriteUint16 appends a big-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint32 appends a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteUint64 appends a big-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteBytes appends a 4-byte length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteFixed appends b with no length prefix.
func (w *Writer) WriteFixed(b []byte) { w.buf = append(w.buf, b...) }

// WriteString appends a 4-byte-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) { w.WriteBytes([]byte(s)) }

// WriteArrayLen appends a 4-byte element count.
func (w *Writer) WriteArrayLen(n int) { w.WriteUint32(uint32(n)) }
