// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressedUintRoundTrip(t *testing.T) {
	values := []uint32{
		0, 1, 0x03, 0x7F, 0x80, 0x2E57, 0x3FFF, 0x4000, 0x1FFFFFFF,
	}
	for _, v := range values {
		w := NewWriter()
		require.NoError(t, w.WriteCompressedUint(v))
		require.Equal(t, CompressedUintSize(v), w.Len())

		r := NewReader(w.Bytes())
		got, err := r.ReadCompressedUint()
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Zero(t, r.Remaining())
	}
}

func TestCompressedUintKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint32
		bytes []byte
	}{
		{0x03, []byte{0x03}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x80, 0x80}},
		{0x2E57, []byte{0xAE, 0x57}},
		{0x3FFF, []byte{0xBF, 0xFF}},
		{0x4000, []byte{0xC0, 0x00, 0x40, 0x00}},
		{0x1FFFFFFF, []byte{0xDF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		w := NewWriter()
		require.NoError(t, w.WriteCompressedUint(tt.value))
		require.Equal(t, tt.bytes, w.Bytes())
	}
}

func TestCompressedUintMalformed(t *testing.T) {
	r := NewReader([]byte{0xE0, 0x00, 0x00, 0x00})
	_, err := r.ReadCompressedUint()
	require.ErrorIs(t, err, ErrMalformedCompressedInt)

	w := NewWriter()
	require.ErrorIs(t, w.WriteCompressedUint(0x20000000),
		ErrMalformedCompressedInt)
}

func TestCompressedIntRoundTrip(t *testing.T) {
	values := []int32{
		0, 3, -3, 0x3F, -0x40, 0x40, -0x41, 8192 - 1, -8192,
		0x0FFFFFFF, -0x10000000,
	}
	for _, v := range values {
		w := NewWriter()
		require.NoError(t, w.WriteCompressedInt(v))

		r := NewReader(w.Bytes())
		got, err := r.ReadCompressedInt()
		require.NoError(t, err)
		require.Equal(t, v, got, "value %d", v)
	}
}

func TestCompressedIntKnownEncodings(t *testing.T) {
	// Worked examples from ECMA-335 II.23.2.
	tests := []struct {
		value int32
		bytes []byte
	}{
		{3, []byte{0x06}},
		{-3, []byte{0x7B}},
		{64, []byte{0x80, 0x80}},
		{-64, []byte{0x01}},
		{8192, []byte{0xC0, 0x00, 0x40, 0x00}},
		{-8192, []byte{0x80, 0x01}},
		{268435455, []byte{0xDF, 0xFF, 0xFF, 0xFE}},
		{-268435456, []byte{0xC0, 0x00, 0x00, 0x01}},
	}
	for _, tt := range tests {
		w := NewWriter()
		require.NoError(t, w.WriteCompressedInt(tt.value))
		require.Equal(t, tt.bytes, w.Bytes(), "value %d", tt.value)

		r := NewReader(tt.bytes)
		got, err := r.ReadCompressedInt()
		require.NoError(t, err)
		require.Equal(t, tt.value, got)
	}
}

func TestSerString(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteSerString("hello", false))
	require.NoError(t, w.WriteSerString("", true))
	require.NoError(t, w.WriteSerString("", false))

	r := NewReader(w.Bytes())

	s, null, err := r.ReadSerString()
	require.NoError(t, err)
	require.False(t, null)
	require.Equal(t, "hello", s)

	s, null, err = r.ReadSerString()
	require.NoError(t, err)
	require.True(t, null)
	require.Empty(t, s)

	s, null, err = r.ReadSerString()
	require.NoError(t, err)
	require.False(t, null)
	require.Empty(t, s)

	require.Equal(t, SerStringSize("hello", false), uint32(6))
	require.Equal(t, SerStringSize("", true), uint32(1))
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})

	_, err := r.ReadUint32()
	require.ErrorIs(t, err, ErrEndOfStream)

	require.NoError(t, r.Seek(2))
	v, err := r.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(3), v)

	_, err = r.ReadUint8()
	require.ErrorIs(t, err, ErrEndOfStream)

	require.ErrorIs(t, r.Seek(4), ErrEndOfStream)

	_, err = r.Slice(2, 2)
	require.ErrorIs(t, err, ErrEndOfStream)

	sub, err := r.Slice(1, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), sub.Len())
	got, err := sub.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0302), got)
}

func TestWriterAlign(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(0xAA)
	w.Align(4)
	require.Equal(t, uint32(4), w.Len())
	w.Align(4)
	require.Equal(t, uint32(4), w.Len())
}
