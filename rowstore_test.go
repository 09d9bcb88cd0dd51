// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableLazyMaterialisation(t *testing.T) {
	// Two NestedClass rows at narrow widths: 2-byte TypeDef indexes.
	raw := []byte{
		0x05, 0x00, 0x02, 0x00,
		0x07, 0x00, 0x02, 0x00,
	}
	sizes := &sizeSet{}
	sizes.rowCounts[TypeDef] = 7
	sizes.rowCounts[NestedClass] = 2

	table := tableFromSlice(NestedClass, raw, 2, sizes)
	require.Equal(t, uint32(2), table.Count())

	row, err := table.Get(1)
	require.NoError(t, err)
	require.Equal(t, Row{5, 2}, row)

	row, err = table.Get(2)
	require.NoError(t, err)
	require.Equal(t, Row{7, 2}, row)

	_, err = table.Get(0)
	require.ErrorIs(t, err, ErrUnresolvableToken)
	_, err = table.Get(3)
	require.ErrorIs(t, err, ErrUnresolvableToken)
}

func TestTableSetAndAppend(t *testing.T) {
	table := newMetadataTable(NestedClass)

	rid := table.Append(Row{3, 1})
	require.Equal(t, uint32(1), rid)

	require.NoError(t, table.Set(1, Row{4, 1}))
	row, err := table.Get(1)
	require.NoError(t, err)
	require.Equal(t, Row{4, 1}, row)

	require.ErrorIs(t, table.Set(2, Row{1, 1}), ErrUnresolvableToken)
	require.ErrorIs(t, table.Set(1, Row{1}), ErrBadImageFormat)
}

func TestTableSort(t *testing.T) {
	table := newMetadataTable(NestedClass)
	table.Append(Row{9, 3})
	table.Append(Row{2, 1})
	table.Append(Row{5, 2})

	require.True(t, table.SortRequired())
	require.NoError(t, table.Sort())

	rows, err := table.Rows()
	require.NoError(t, err)
	require.Equal(t, []Row{{2, 1}, {5, 2}, {9, 3}}, rows)
}

func TestTableSortSecondaryKey(t *testing.T) {
	// GenericParam sorts by Owner then Number.
	table := newMetadataTable(GenericParam)
	table.Append(Row{1, 0, 6, 0})
	table.Append(Row{0, 0, 6, 0})
	table.Append(Row{0, 0, 2, 0})

	require.NoError(t, table.Sort())
	rows, err := table.Rows()
	require.NoError(t, err)
	require.Equal(t, []Row{{0, 0, 2, 0}, {0, 0, 6, 0}, {1, 0, 6, 0}}, rows)
}

func TestUnsortedTableKeepsOrder(t *testing.T) {
	table := newMetadataTable(TypeRef)
	table.Append(Row{9, 1, 2})
	table.Append(Row{1, 3, 4})

	require.False(t, table.SortRequired())
	require.NoError(t, table.Sort())

	rows, err := table.Rows()
	require.NoError(t, err)
	require.Equal(t, []Row{{9, 1, 2}, {1, 3, 4}}, rows)
}

func TestTableStoreResolve(t *testing.T) {
	store := NewTableStore()
	store.Table(TypeDef).Append(TypeDefRow{Flags: 1}.Row())

	row, err := store.Resolve(NewToken(TypeDef, 1))
	require.NoError(t, err)
	require.Equal(t, uint32(1), row[0])

	_, err = store.Resolve(NewToken(TypeDef, 2))
	require.ErrorIs(t, err, ErrUnresolvableToken)
	_, err = store.Resolve(NewToken(TypeDef, 0))
	require.ErrorIs(t, err, ErrUnresolvableToken)
	_, err = store.Resolve(Token(0xFF000001))
	require.ErrorIs(t, err, ErrUnresolvableToken)
}

func TestNestedClassRowEquality(t *testing.T) {
	a := NewNestedClassRow(Token(0x02000005), Token(0x02000002))
	b := NewNestedClassRow(Token(0x02000005), Token(0x02000002))

	require.True(t, a.Equal(b))
	require.Equal(t, a, b)
	require.Equal(t, uint32(5*397^2), a.Hash())
	require.Equal(t, a.Hash(), b.Hash())

	c := NewNestedClassRow(Token(0x02000006), Token(0x02000002))
	require.False(t, a.Equal(c))
}

func TestTypedRowConversions(t *testing.T) {
	m := ModuleRow{Generation: 1, Name: 2, Mvid: 3, EncID: 4, EncBaseID: 5}
	require.Equal(t, m, moduleRowFrom(m.Row()))

	td := TypeDefRow{Flags: 0x100001, TypeName: 7, TypeNamespace: 8,
		Extends: 9, FieldList: 1, MethodList: 1}
	require.Equal(t, td, typeDefRowFrom(td.Row()))

	a := AssemblyRow{HashAlgID: 0x8004, MajorVersion: 1, MinorVersion: 2,
		BuildNumber: 3, RevisionNumber: 4, Flags: 0, PublicKey: 5,
		Name: 6, Culture: 7}
	require.Equal(t, a, assemblyRowFrom(a.Row()))
}
