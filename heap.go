// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// The four metadata heaps are append-only byte regions addressed by offset.
// #Strings, #US and #Blob keep offset 0 as the pre-seeded empty entry;
// #GUID is addressed by 1-based record index with 0 meaning null. GetOrAdd
// interns by content so equal payloads coalesce to one physical entry;
// AppendRaw bypasses the intern index entirely.

// StringsHeap is the #Strings heap: NUL-terminated UTF-8 strings interned
// by decoded value.
type StringsHeap struct {
	buf    []byte
	intern map[string]uint32
}

// NewStringsHeap returns a heap seeded with the empty string at offset 0.
func NewStringsHeap() *StringsHeap {
	return &StringsHeap{
		buf:    []byte{0},
		intern: map[string]uint32{"": 0},
	}
}

func stringsHeapFromStream(data []byte) *StringsHeap {
	return &StringsHeap{buf: data, intern: map[string]uint32{"": 0}}
}

// GetOrAdd interns s and returns its offset.
func (h *StringsHeap) GetOrAdd(s string) uint32 {
	if off, ok := h.intern[s]; ok {
		return off
	}
	off := uint32(len(h.buf))
	h.buf = append(h.buf, s...)
	h.buf = append(h.buf, 0)
	h.intern[s] = off
	return off
}

// AppendRaw appends bytes followed by a NUL terminator without touching the
// intern index.
func (h *StringsHeap) AppendRaw(b []byte) uint32 {
	off := uint32(len(h.buf))
	h.buf = append(h.buf, b...)
	h.buf = append(h.buf, 0)
	return off
}

// GetString returns the NUL-terminated string at offset.
func (h *StringsHeap) GetString(offset uint32) (string, error) {
	if offset >= uint32(len(h.buf)) {
		return "", ErrInvalidHeapReference
	}
	end := bytes.IndexByte(h.buf[offset:], 0)
	if end < 0 {
		return "", ErrInvalidHeapReference
	}
	return string(h.buf[offset : offset+uint32(end)]), nil
}

// Len returns the heap size in bytes.
func (h *StringsHeap) Len() uint32 {
	return uint32(len(h.buf))
}

// CreateStream returns the heap body padded to a 4-byte boundary.
func (h *StringsHeap) CreateStream() []byte {
	return padStream(h.buf)
}

// utf16LE converts between UTF-8 and UTF-16LE without BOM handling.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// USHeap is the #US heap: compressed-length-prefixed UTF-16 user strings
// with a trailing terminator byte, interned by decoded value.
type USHeap struct {
	buf    []byte
	intern map[string]uint32
}

// NewUSHeap returns a heap seeded with the empty entry at offset 0.
func NewUSHeap() *USHeap {
	return &USHeap{
		buf:    []byte{0},
		intern: map[string]uint32{"": 0},
	}
}

func usHeapFromStream(data []byte) *USHeap {
	return &USHeap{buf: data, intern: map[string]uint32{"": 0}}
}

// userStringTerminator returns 1 when any UTF-16 code unit of the payload
// falls outside the safe set, that is, is one of 0x01..0x08, 0x0E..0x1F,
// 0x27, 0x2D, or anything at or above 0x7F; else 0.
func userStringTerminator(payload []byte) byte {
	for i := 0; i+1 < len(payload); i += 2 {
		u := uint16(payload[i]) | uint16(payload[i+1])<<8
		switch {
		case u >= 0x01 && u <= 0x08,
			u >= 0x0E && u <= 0x1F,
			u == 0x27, u == 0x2D,
			u >= 0x7F:
			return 1
		}
	}
	return 0
}

// GetOrAdd interns s and returns its offset.
func (h *USHeap) GetOrAdd(s string) (uint32, error) {
	if off, ok := h.intern[s]; ok {
		return off, nil
	}
	payload, err := utf16LE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return 0, err
	}
	off := uint32(len(h.buf))
	w := NewWriter()
	if err := w.WriteCompressedUint(uint32(len(payload)) + 1); err != nil {
		return 0, err
	}
	h.buf = append(h.buf, w.Bytes()...)
	h.buf = append(h.buf, payload...)
	h.buf = append(h.buf, userStringTerminator(payload))
	h.intern[s] = off
	return off, nil
}

// AppendRaw appends a UTF-16LE payload, adding the length prefix and the
// terminator byte here, without touching the intern index.
func (h *USHeap) AppendRaw(payload []byte) uint32 {
	off := uint32(len(h.buf))
	w := NewWriter()
	_ = w.WriteCompressedUint(uint32(len(payload)) + 1)
	h.buf = append(h.buf, w.Bytes()...)
	h.buf = append(h.buf, payload...)
	h.buf = append(h.buf, userStringTerminator(payload))
	return off
}

// GetUserString decodes the user string at offset.
func (h *USHeap) GetUserString(offset uint32) (string, error) {
	payload, _, err := h.entryAt(offset)
	if err != nil {
		return "", err
	}
	decoded, err := utf16LE.NewDecoder().Bytes(payload)
	if err != nil {
		return "", ErrInvalidHeapReference
	}
	return string(decoded), nil
}

// entryAt returns the UTF-16 payload and terminator byte at offset.
func (h *USHeap) entryAt(offset uint32) ([]byte, byte, error) {
	if offset >= uint32(len(h.buf)) {
		return nil, 0, ErrInvalidHeapReference
	}
	r := NewReader(h.buf)
	if err := r.Seek(offset); err != nil {
		return nil, 0, ErrInvalidHeapReference
	}
	n, err := r.ReadCompressedUint()
	if err != nil || n == 0 {
		if err != nil {
			return nil, 0, ErrInvalidHeapReference
		}
		return nil, 0, nil
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, 0, ErrInvalidHeapReference
	}
	return b[:n-1], b[n-1], nil
}

// Len returns the heap size in bytes.
func (h *USHeap) Len() uint32 {
	return uint32(len(h.buf))
}

// CreateStream returns the heap body padded to a 4-byte boundary.
func (h *USHeap) CreateStream() []byte {
	return padStream(h.buf)
}

// BlobHeap is the #Blob heap: compressed-length-prefixed byte sequences
// interned by raw content through an xxhash index with bucketed collision
// fallback.
type BlobHeap struct {
	buf    []byte
	intern map[uint64][]uint32
}

// NewBlobHeap returns a heap seeded with the empty blob at offset 0.
func NewBlobHeap() *BlobHeap {
	return &BlobHeap{
		buf:    []byte{0},
		intern: map[uint64][]uint32{xxhash.Sum64(nil): {0}},
	}
}

func blobHeapFromStream(data []byte) *BlobHeap {
	return &BlobHeap{buf: data, intern: map[uint64][]uint32{}}
}

// GetOrAdd interns b and returns its offset.
func (h *BlobHeap) GetOrAdd(b []byte) uint32 {
	sum := xxhash.Sum64(b)
	for _, off := range h.intern[sum] {
		if existing, err := h.GetBlob(off); err == nil &&
			bytes.Equal(existing, b) {
			return off
		}
	}
	off := h.append(b)
	h.intern[sum] = append(h.intern[sum], off)
	return off
}

// AppendRaw appends a length-prefixed entry without touching the intern
// index.
func (h *BlobHeap) AppendRaw(b []byte) uint32 {
	return h.append(b)
}

func (h *BlobHeap) append(b []byte) uint32 {
	off := uint32(len(h.buf))
	w := NewWriter()
	_ = w.WriteCompressedUint(uint32(len(b)))
	h.buf = append(h.buf, w.Bytes()...)
	h.buf = append(h.buf, b...)
	return off
}

// GetBlob returns the blob bytes at offset.
func (h *BlobHeap) GetBlob(offset uint32) ([]byte, error) {
	if offset >= uint32(len(h.buf)) {
		return nil, ErrInvalidHeapReference
	}
	r := NewReader(h.buf)
	if err := r.Seek(offset); err != nil {
		return nil, ErrInvalidHeapReference
	}
	n, err := r.ReadCompressedUint()
	if err != nil {
		return nil, ErrInvalidHeapReference
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, ErrInvalidHeapReference
	}
	return b, nil
}

// Len returns the heap size in bytes.
func (h *BlobHeap) Len() uint32 {
	return uint32(len(h.buf))
}

// CreateStream returns the heap body padded to a 4-byte boundary.
func (h *BlobHeap) CreateStream() []byte {
	return padStream(h.buf)
}

// GUIDHeap is the #GUID heap: 16-byte records addressed by 1-based index.
type GUIDHeap struct {
	records []uuid.UUID
	intern  map[uuid.UUID]uint32
}

// NewGUIDHeap returns an empty heap.
func NewGUIDHeap() *GUIDHeap {
	return &GUIDHeap{intern: map[uuid.UUID]uint32{}}
}

func guidHeapFromStream(data []byte) *GUIDHeap {
	h := NewGUIDHeap()
	for off := 0; off+16 <= len(data); off += 16 {
		h.records = append(h.records, guidFromBytes(data[off:off+16]))
	}
	return h
}

// GetOrAdd interns g and returns its 1-based index. The nil UUID maps to
// the null index 0.
func (h *GUIDHeap) GetOrAdd(g uuid.UUID) uint32 {
	if g == uuid.Nil {
		return 0
	}
	if idx, ok := h.intern[g]; ok {
		return idx
	}
	h.records = append(h.records, g)
	idx := uint32(len(h.records))
	h.intern[g] = idx
	return idx
}

// AppendRaw appends a record without touching the intern index and returns
// its 1-based index.
func (h *GUIDHeap) AppendRaw(b []byte) uint32 {
	var g uuid.UUID
	if len(b) >= 16 {
		g = guidFromBytes(b)
	}
	h.records = append(h.records, g)
	return uint32(len(h.records))
}

// GetGUID returns the record at the 1-based index; index 0 yields the nil
// UUID.
func (h *GUIDHeap) GetGUID(index uint32) (uuid.UUID, error) {
	if index == 0 {
		return uuid.Nil, nil
	}
	if index > uint32(len(h.records)) {
		return uuid.Nil, ErrInvalidHeapReference
	}
	return h.records[index-1], nil
}

// Len returns the heap size in bytes.
func (h *GUIDHeap) Len() uint32 {
	return uint32(len(h.records)) * 16
}

// CreateStream returns the concatenated 16-byte records.
func (h *GUIDHeap) CreateStream() []byte {
	out := make([]byte, 0, len(h.records)*16)
	for _, g := range h.records {
		out = append(out, guidToBytes(g)...)
	}
	return out
}

// guidToBytes renders a UUID in the on-disk GUID layout: the first three
// groups little-endian, the remaining eight bytes verbatim.
func guidToBytes(g uuid.UUID) []byte {
	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = g[3], g[2], g[1], g[0]
	b[4], b[5] = g[5], g[4]
	b[6], b[7] = g[7], g[6]
	copy(b[8:], g[8:])
	return b
}

func guidFromBytes(b []byte) uuid.UUID {
	var g uuid.UUID
	g[0], g[1], g[2], g[3] = b[3], b[2], b[1], b[0]
	g[4], g[5] = b[5], b[4]
	g[6], g[7] = b[7], b[6]
	copy(g[8:], b[8:16])
	return g
}

// padStream pads a heap body to a 4-byte boundary for emission.
func padStream(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}
