// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenParts(t *testing.T) {
	tok := NewToken(TypeDef, 5)
	require.Equal(t, TypeDef, tok.Table())
	require.Equal(t, uint32(5), tok.RID())
	require.False(t, tok.IsNull())
	require.Equal(t, "0x02000005", tok.String())

	require.True(t, NewToken(Method, 0).IsNull())
}

func TestCodedIndexRoundTrip(t *testing.T) {
	kinds := []CodedIndex{
		TypeDefOrRef, HasConstant, HasCustomAttribute, HasFieldMarshal,
		HasDeclSecurity, MemberRefParent, HasSemantics, MethodDefOrRef,
		MemberForwarded, Implementation, CustomAttributeType,
		ResolutionScope, TypeOrMethodDef,
	}
	for _, kind := range kinds {
		for tag, table := range kind.Tables() {
			if table == invalidTable {
				continue
			}
			tok := NewToken(table, 42)
			v, err := kind.Encode(tok)
			require.NoError(t, err)
			require.Equal(t, uint32(42<<kind.TagBits())|uint32(tag), v)

			back, err := kind.Decode(v)
			require.NoError(t, err)
			require.Equal(t, tok, back)
		}
	}
}

func TestCodedIndexRejectsForeignTable(t *testing.T) {
	_, err := TypeDefOrRef.Encode(NewToken(Method, 1))
	require.ErrorIs(t, err, ErrUnresolvableToken)

	// Tag 4 of CustomAttributeType is an unoccupied slot.
	_, err = CustomAttributeType.Decode(4)
	require.ErrorIs(t, err, ErrUnresolvableToken)
}

func TestCodedIndexNull(t *testing.T) {
	v, err := TypeDefOrRef.Encode(0)
	require.NoError(t, err)
	require.Zero(t, v)

	tok, err := TypeDefOrRef.Decode(0)
	require.NoError(t, err)
	require.True(t, tok.IsNull())
	require.Equal(t, TypeDef, tok.Table())
}

func TestCodedIndexWidth(t *testing.T) {
	var s sizeSet

	// 2 tag bits leave 14 bits of row number in a 16-bit column.
	s.rowCounts[TypeDef] = 1<<14 - 1
	require.Equal(t, uint32(2), s.codedIndexSize(TypeDefOrRef))

	s.rowCounts[TypeDef] = 1 << 14
	require.Equal(t, uint32(4), s.codedIndexSize(TypeDefOrRef))

	// The widest candidate drives the union's width.
	s = sizeSet{}
	s.rowCounts[TypeSpec] = 1 << 15
	require.Equal(t, uint32(4), s.codedIndexSize(TypeDefOrRef))

	// 5 tag bits leave 11 bits.
	s = sizeSet{}
	s.rowCounts[MemberRef] = 1<<11 - 1
	require.Equal(t, uint32(2), s.codedIndexSize(HasCustomAttribute))
	s.rowCounts[MemberRef] = 1 << 11
	require.Equal(t, uint32(4), s.codedIndexSize(HasCustomAttribute))
}

func TestTableIndexWidth(t *testing.T) {
	var s sizeSet
	s.rowCounts[Field] = 0xFFFF
	require.Equal(t, uint32(2), s.tableIndexSize(Field))
	s.rowCounts[Field] = 0x10000
	require.Equal(t, uint32(4), s.tableIndexSize(Field))
}

func TestHeapIndexWidth(t *testing.T) {
	s := sizeSet{heapFlags: HeapSizesWideBlob}
	require.Equal(t, uint32(2), s.heapIndexSize(ColStrings))
	require.Equal(t, uint32(2), s.heapIndexSize(ColGUID))
	require.Equal(t, uint32(4), s.heapIndexSize(ColBlob))
}

func TestRowSize(t *testing.T) {
	var s sizeSet

	// Narrow image: Module is u16 + three 2-byte heap indexes + a 2-byte
	// string index.
	require.Equal(t, uint32(10), s.rowSize(Module))

	// TypeDef: u32 + 2 strings + coded + 2 table indexes.
	require.Equal(t, uint32(14), s.rowSize(TypeDef))

	s.heapFlags = HeapSizesWideStrings
	require.Equal(t, uint32(18), s.rowSize(TypeDef))
}

func TestSchemaShapes(t *testing.T) {
	for i := TableIndex(0); i < TableCount; i++ {
		require.NotEmpty(t, Schema(i), "table %s has no schema", i)
	}
	require.Nil(t, Schema(TableIndex(0x3F)))

	require.Len(t, Schema(Assembly), 9)
	require.Len(t, Schema(NestedClass), 2)
	require.Equal(t, "Mvid", Schema(Module)[2].Name)
}
