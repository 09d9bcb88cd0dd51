// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStringsHeapDistinctStrings(t *testing.T) {
	h := NewStringsHeap()

	a := h.GetOrAdd("String 1")
	b := h.GetOrAdd("String 2")
	require.NotEqual(t, a, b)

	s, err := h.GetString(a)
	require.NoError(t, err)
	require.Equal(t, "String 1", s)

	s, err = h.GetString(b)
	require.NoError(t, err)
	require.Equal(t, "String 2", s)
}

func TestStringsHeapDuplicateStrings(t *testing.T) {
	h := NewStringsHeap()

	a := h.GetOrAdd("String 1")
	before := h.Len()
	b := h.GetOrAdd("String 1")

	require.Equal(t, a, b)
	require.Equal(t, before, h.Len(), "duplicate insert must not grow the heap")
}

func TestStringsHeapEmptyAtZero(t *testing.T) {
	h := NewStringsHeap()
	require.Zero(t, h.GetOrAdd(""))

	s, err := h.GetString(0)
	require.NoError(t, err)
	require.Empty(t, s)
}

func TestStringsHeapAppendRawBypassesInterning(t *testing.T) {
	h := NewStringsHeap()

	a := h.GetOrAdd("payload")
	raw := h.AppendRaw([]byte("payload"))
	require.NotEqual(t, a, raw)

	// The raw slot is not indexed: another GetOrAdd still returns the
	// interned offset.
	require.Equal(t, a, h.GetOrAdd("payload"))
}

func TestUserStringTerminator(t *testing.T) {
	tests := []struct {
		in   string
		want byte
	}{
		{"My String" + string(rune(0x27)), 1},
		{"My String" + string(rune(0x2D)), 1},
		{"My StringA", 0},
		{"My String" + string(rune(0x09)), 0},
		{"My String" + string(rune(0x7F)), 1},
		{"héllo", 1},
		{"hello", 0},
	}
	for _, tt := range tests {
		h := NewUSHeap()
		off, err := h.GetOrAdd(tt.in)
		require.NoError(t, err)

		payload, term, err := h.entryAt(off)
		require.NoError(t, err)
		require.Equal(t, tt.want, term, "string %q", tt.in)
		require.Equal(t, len(payload)%2, 0)

		s, err := h.GetUserString(off)
		require.NoError(t, err)
		require.Equal(t, tt.in, s)
	}
}

func TestUSHeapInterning(t *testing.T) {
	h := NewUSHeap()

	a, err := h.GetOrAdd("dup")
	require.NoError(t, err)
	b, err := h.GetOrAdd("dup")
	require.NoError(t, err)
	require.Equal(t, a, b)

	raw := h.AppendRaw([]byte{'d', 0, 'u', 0, 'p', 0})
	require.NotEqual(t, a, raw)
}

func TestBlobHeapInterning(t *testing.T) {
	h := NewBlobHeap()

	a := h.GetOrAdd([]byte{1, 2, 3})
	b := h.GetOrAdd([]byte{1, 2, 3})
	c := h.GetOrAdd([]byte{1, 2, 4})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	blob, err := h.GetBlob(a)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, blob)

	require.Zero(t, h.GetOrAdd(nil))

	empty, err := h.GetBlob(0)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestBlobHeapAppendRawBypassesInterning(t *testing.T) {
	h := NewBlobHeap()

	a := h.GetOrAdd([]byte{9, 9})
	raw := h.AppendRaw([]byte{9, 9})
	require.NotEqual(t, a, raw)
	require.Equal(t, a, h.GetOrAdd([]byte{9, 9}))
}

func TestBlobHeapInvalidOffset(t *testing.T) {
	h := NewBlobHeap()
	_, err := h.GetBlob(999)
	require.ErrorIs(t, err, ErrInvalidHeapReference)
}

func TestGUIDHeap(t *testing.T) {
	h := NewGUIDHeap()

	g1 := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	g2 := uuid.MustParse("99999999-8888-7777-6666-555555555555")

	require.Zero(t, h.GetOrAdd(uuid.Nil))
	require.Equal(t, uint32(1), h.GetOrAdd(g1))
	require.Equal(t, uint32(2), h.GetOrAdd(g2))
	require.Equal(t, uint32(1), h.GetOrAdd(g1))

	got, err := h.GetGUID(1)
	require.NoError(t, err)
	require.Equal(t, g1, got)

	null, err := h.GetGUID(0)
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, null)

	_, err = h.GetGUID(3)
	require.ErrorIs(t, err, ErrInvalidHeapReference)

	require.Equal(t, uint32(32), h.Len())
}

func TestGUIDHeapStreamRoundTrip(t *testing.T) {
	h := NewGUIDHeap()
	g := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	h.GetOrAdd(g)

	stream := h.CreateStream()
	require.Len(t, stream, 16)

	parsed := guidHeapFromStream(stream)
	got, err := parsed.GetGUID(1)
	require.NoError(t, err)
	require.Equal(t, g, got)
}
