// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMetadataBadSignature(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := ParseMetadata(NewReader(data))
	require.ErrorIs(t, err, ErrBadImageFormat)
}

func TestParseMetadataTruncated(t *testing.T) {
	_, err := ParseMetadata(NewReader([]byte{0x42, 0x53}))
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestParseMetadataMissingTableStream(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(MetadataSignature)
	w.WriteUint16(1)
	w.WriteUint16(1)
	w.WriteUint32(0)
	w.WriteUint32(4)
	w.WriteBytes([]byte{'v', '4', 0, 0})
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteUint16(0) // no streams at all

	_, err := ParseMetadata(NewReader(w.Bytes()))
	require.ErrorIs(t, err, ErrBadImageFormat)
}

func TestFileNewBytesParse(t *testing.T) {
	module := NewModule("file.dll")
	module.AddType(NewType("N", "T", 0))

	data, err := NewBuilder().Build(module)
	require.NoError(t, err)

	// The directory sits at an arbitrary offset inside a larger image.
	image := append(make([]byte, 128), data...)

	f, err := NewBytes(image, nil)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.ParseMetadata(128))
	require.NotNil(t, f.Metadata)
	require.Equal(t, uint32(1), f.Metadata.RowCount(TypeDef))

	loaded, err := f.Module()
	require.NoError(t, err)
	require.Equal(t, "file.dll", loaded.Name())
}

func TestFileParseMetadataBadOffset(t *testing.T) {
	f, err := NewBytes([]byte{1, 2, 3}, nil)
	require.NoError(t, err)
	require.ErrorIs(t, f.ParseMetadata(64), ErrBadImageFormat)
}

func TestTableIndexNames(t *testing.T) {
	tests := []struct {
		in  TableIndex
		out string
	}{
		{Module, "Module"},
		{TypeDef, "TypeDef"},
		{FileMD, "File"},
		{GenericParamConstraint, "GenericParamConstraint"},
		{TableIndex(0x3F), ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.out, tt.in.String())
	}
}
