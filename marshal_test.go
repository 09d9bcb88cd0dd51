// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCustomMarshalRoundTrip(t *testing.T) {
	d := &CustomMarshalDescriptor{
		Guid:          uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		UnmanagedType: "u",
		ManagedType:   "m",
		Cookie:        "c",
	}

	w := NewWriter()
	require.NoError(t, d.Encode(w))

	// Tag byte, the braced GUID text plus its length prefix, then the
	// three remaining serialized strings.
	want := uint32(1 + 39 + 2 + 2 + 2)
	require.Equal(t, want, d.PhysicalLen())
	require.Equal(t, want, w.Len())

	decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
	require.NoError(t, err)
	custom, ok := decoded.(*CustomMarshalDescriptor)
	require.True(t, ok)
	require.Equal(t, d, custom)
	require.Equal(t, NativeCustom, custom.NativeType())
}

func TestCustomMarshalInvalidGUIDReadsAsZero(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(uint8(NativeCustom))
	require.NoError(t, w.WriteSerString("not a guid", false))
	require.NoError(t, w.WriteSerString("u", false))
	require.NoError(t, w.WriteSerString("m", false))
	require.NoError(t, w.WriteSerString("c", false))

	decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
	require.NoError(t, err)
	custom := decoded.(*CustomMarshalDescriptor)
	require.Equal(t, uuid.Nil, custom.Guid)
	require.Equal(t, "u", custom.UnmanagedType)
	require.Equal(t, "m", custom.ManagedType)
	require.Equal(t, "c", custom.Cookie)
}

func TestCustomMarshalNullGUIDString(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(uint8(NativeCustom))
	require.NoError(t, w.WriteSerString("", true))
	require.NoError(t, w.WriteSerString("", false))
	require.NoError(t, w.WriteSerString("", false))
	require.NoError(t, w.WriteSerString("", false))

	decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, decoded.(*CustomMarshalDescriptor).Guid)
}

func TestSimpleMarshalDescriptor(t *testing.T) {
	for _, nt := range []NativeType{
		NativeBoolean, NativeI4, NativeLPWStr, NativeFunc,
	} {
		w := NewWriter()
		d := &SimpleMarshalDescriptor{Type: nt}
		require.NoError(t, d.Encode(w))
		require.Equal(t, uint32(1), d.PhysicalLen())

		decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
		require.NoError(t, err)
		require.Equal(t, d, decoded)
	}
}

func TestMarshalDescriptorUnknownTag(t *testing.T) {
	_, err := DecodeMarshalDescriptor(NewReader([]byte{0x60}))
	require.ErrorIs(t, err, ErrMalformedSignature)
}

func TestFixedArrayMarshalRoundTrip(t *testing.T) {
	d := &FixedArrayMarshalDescriptor{
		Size: 16, HasElemType: true, ElemType: NativeU1,
	}
	w := NewWriter()
	require.NoError(t, d.Encode(w))
	require.Equal(t, d.PhysicalLen(), w.Len())

	decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, d, decoded)
}

func TestLPArrayMarshalRoundTrip(t *testing.T) {
	tests := []*LPArrayMarshalDescriptor{
		{ElemType: NativeI4},
		{ElemType: NativeU1, HasParamIndex: true, ParamIndex: 2},
		{ElemType: NativeU1, HasParamIndex: true, ParamIndex: 2,
			HasNumElem: true, NumElements: 128},
	}
	for _, d := range tests {
		w := NewWriter()
		require.NoError(t, d.Encode(w))
		require.Equal(t, d.PhysicalLen(), w.Len())

		decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
		require.NoError(t, err)
		require.Equal(t, d, decoded)
	}
}

func TestSafeArrayMarshalRoundTrip(t *testing.T) {
	for _, d := range []*SafeArrayMarshalDescriptor{
		{},
		{HasVariantType: true, VariantType: 0x0B},
	} {
		w := NewWriter()
		require.NoError(t, d.Encode(w))
		require.Equal(t, d.PhysicalLen(), w.Len())

		decoded, err := DecodeMarshalDescriptor(NewReader(w.Bytes()))
		require.NoError(t, err)
		require.Equal(t, d, decoded)
	}
}
