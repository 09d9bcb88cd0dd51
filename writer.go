// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"encoding/binary"
)

// Writer is an append-only little-endian writer with a running offset. It is
// the inverse of Reader and additionally knows how to size compressed
// integers and serialized strings without emitting them, which the
// PhysicalLen methods of signatures and marshal descriptors build on.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() uint32 {
	return uint32(len(w.buf))
}

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteBytes appends b.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteUint8 appends a byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteCompressedUint appends v in the ECMA-335 II.23.2 compressed unsigned
// encoding. Values above 0x1FFFFFFF do not fit any width and are rejected.
func (w *Writer) WriteCompressedUint(v uint32) error {
	switch {
	case v <= 0x7F:
		w.buf = append(w.buf, uint8(v))
	case v <= 0x3FFF:
		w.buf = append(w.buf, 0x80|uint8(v>>8), uint8(v))
	case v <= 0x1FFFFFFF:
		w.buf = append(w.buf, 0xC0|uint8(v>>24), uint8(v>>16),
			uint8(v>>8), uint8(v))
	default:
		return ErrMalformedCompressedInt
	}
	return nil
}

// WriteCompressedInt appends v in the compressed signed encoding: the sign
// bit rotated to the least significant position, emitted at the width of
// the narrowest range covering v. The width is part of the value: the
// decoder sign extends according to it, so a small rotated value must not
// collapse to a narrower form.
func (w *Writer) WriteCompressedInt(v int32) error {
	sign := uint32(v>>31) & 1
	switch {
	case v >= -0x40 && v <= 0x3F:
		u := uint32(v<<1)&0x7E | sign
		w.buf = append(w.buf, uint8(u))
	case v >= -0x2000 && v <= 0x1FFF:
		u := uint32(v<<1)&0x3FFE | sign
		w.buf = append(w.buf, 0x80|uint8(u>>8), uint8(u))
	case v >= -0x10000000 && v <= 0x0FFFFFFF:
		u := uint32(v<<1)&0x1FFFFFFE | sign
		w.buf = append(w.buf, 0xC0|uint8(u>>24), uint8(u>>16),
			uint8(u>>8), uint8(u))
	default:
		return ErrMalformedCompressedInt
	}
	return nil
}

// WriteSerString appends a serialized string: compressed length then UTF-8
// bytes. A null string is the single byte 0xFF.
func (w *Writer) WriteSerString(s string, null bool) error {
	if null {
		w.buf = append(w.buf, 0xFF)
		return nil
	}
	if err := w.WriteCompressedUint(uint32(len(s))); err != nil {
		return err
	}
	w.buf = append(w.buf, s...)
	return nil
}

// Align pads the buffer with zero bytes up to the next multiple of n.
func (w *Writer) Align(n uint32) {
	for w.Len()%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

// CompressedUintSize returns the encoded size of v without emitting it, or
// zero when v does not fit any compressed width.
func CompressedUintSize(v uint32) uint32 {
	switch {
	case v <= 0x7F:
		return 1
	case v <= 0x3FFF:
		return 2
	case v <= 0x1FFFFFFF:
		return 4
	default:
		return 0
	}
}

// SerStringSize returns the encoded size of a serialized string.
func SerStringSize(s string, null bool) uint32 {
	if null {
		return 1
	}
	return CompressedUintSize(uint32(len(s))) + uint32(len(s))
}
