// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"encoding/binary"
)

// Reader is a bounded little-endian reader over an in-memory byte span with
// a running cursor. Slices created from a reader share the underlying bytes
// but carry their own bounds, so a signature decoder can never escape its
// blob.
type Reader struct {
	data []byte
	pos  uint32
}

// NewReader returns a reader over data with the cursor at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the total length of the underlying span.
func (r *Reader) Len() uint32 {
	return uint32(len(r.data))
}

// Offset returns the current cursor position.
func (r *Reader) Offset() uint32 {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() uint32 {
	return uint32(len(r.data)) - r.pos
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(offset uint32) error {
	if offset > uint32(len(r.data)) {
		return ErrEndOfStream
	}
	r.pos = offset
	return nil
}

// Slice creates a bounded sub-reader of size bytes starting at offset. The
// parent cursor is unaffected.
func (r *Reader) Slice(offset, size uint32) (*Reader, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(r.data)) {
		return nil, ErrEndOfStream
	}
	return &Reader{data: r.data[offset:end]}, nil
}

// ReadBytes consumes n bytes from the cursor.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrEndOfStream
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint8 reads a byte at the cursor.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ErrEndOfStream
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a little-endian uint16 at the cursor.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ErrEndOfStream
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a little-endian uint32 at the cursor.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrEndOfStream
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64 at the cursor.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrEndOfStream
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadCompressedUint reads an ECMA-335 II.23.2 compressed unsigned integer.
// The top bits of the first byte discriminate the width: 0b0 one byte,
// 0b10 two bytes, 0b110 four bytes. A 0b111 prefix is invalid.
func (r *Reader) ReadCompressedUint() (uint32, error) {
	v, _, err := r.readCompressedUint()
	return v, err
}

func (r *Reader) readCompressedUint() (uint32, int, error) {
	b0, err := r.ReadUint8()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadUint8()
		if err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), 2, nil
	case b0&0xE0 == 0xC0:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, 0, err
		}
		v := uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 |
			uint32(rest[1])<<8 | uint32(rest[2])
		return v, 4, nil
	default:
		return 0, 0, ErrMalformedCompressedInt
	}
}

// ReadCompressedInt reads an ECMA-335 II.23.2 compressed signed integer. The
// sign bit is rotated into the least significant position before the value
// is compressed as unsigned, so decoding rotates it back out and sign
// extends according to the encoded width.
func (r *Reader) ReadCompressedInt() (int32, error) {
	u, width, err := r.readCompressedUint()
	if err != nil {
		return 0, err
	}
	v := u >> 1
	if u&1 != 0 {
		switch width {
		case 1:
			v |= 0xFFFFFFC0
		case 2:
			v |= 0xFFFFE000
		default:
			v |= 0xF0000000
		}
	}
	return int32(v), nil
}

// ReadSerString reads a serialized string: a compressed length followed by
// that many UTF-8 bytes. A single 0xFF byte denotes the null string, which
// is reported through the second return value.
func (r *Reader) ReadSerString() (string, bool, error) {
	if r.Remaining() < 1 {
		return "", false, ErrEndOfStream
	}
	if r.data[r.pos] == 0xFF {
		r.pos++
		return "", true, nil
	}
	n, err := r.ReadCompressedUint()
	if err != nil {
		return "", false, err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", false, err
	}
	return string(b), false, nil
}
