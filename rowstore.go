// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"sort"
	"sync"
)

// Row is one table row: one unsigned integer per schema column. Widths are
// a serialisation concern; in memory every column is held as uint32.
type Row []uint32

// MetadataTable is a densely indexed sequence of rows for one table index.
// Rows backed by an image slice materialise lazily on first access at
// base + (rid-1)*stride; fresh rows are appended directly. External row
// indices are 1-based.
type MetadataTable struct {
	index   TableIndex
	columns []Column
	rows    []Row
	raw     []byte
	stride  uint32
	sizes   *sizeSet
	mu      sync.Mutex
}

func newMetadataTable(index TableIndex) *MetadataTable {
	return &MetadataTable{index: index, columns: Schema(index)}
}

// tableFromSlice wires a table to its raw image slice for lazy reads.
func tableFromSlice(index TableIndex, raw []byte, count uint32,
	sizes *sizeSet) *MetadataTable {
	t := newMetadataTable(index)
	t.raw = raw
	t.sizes = sizes
	t.stride = sizes.rowSize(index)
	t.rows = make([]Row, count)
	return t
}

// Index returns the table index.
func (t *MetadataTable) Index() TableIndex {
	return t.index
}

// Columns returns the table's schema columns.
func (t *MetadataTable) Columns() []Column {
	return t.columns
}

// Count returns the number of rows.
func (t *MetadataTable) Count() uint32 {
	return uint32(len(t.rows))
}

// SyncRoot exposes the table's mutex for callers that mutate it from
// multiple goroutines. Internal code never takes it during write.
func (t *MetadataTable) SyncRoot() *sync.Mutex {
	return &t.mu
}

// Get returns the row with the given 1-based index, materialising it from
// the image slice on first access.
func (t *MetadataTable) Get(rid uint32) (Row, error) {
	if rid == 0 || rid > uint32(len(t.rows)) {
		return nil, ErrUnresolvableToken
	}
	if t.rows[rid-1] == nil {
		row, err := t.materialize(rid)
		if err != nil {
			return nil, err
		}
		t.rows[rid-1] = row
	}
	return t.rows[rid-1], nil
}

func (t *MetadataTable) materialize(rid uint32) (Row, error) {
	base := (rid - 1) * t.stride
	if uint64(base)+uint64(t.stride) > uint64(len(t.raw)) {
		return nil, ErrBadImageFormat
	}
	r := NewReader(t.raw[base : base+t.stride])
	return decodeRow(r, t.columns, t.sizes)
}

// Set replaces the row with the given 1-based index.
func (t *MetadataTable) Set(rid uint32, row Row) error {
	if rid == 0 || rid > uint32(len(t.rows)) {
		return ErrUnresolvableToken
	}
	if len(row) != len(t.columns) {
		return ErrBadImageFormat
	}
	t.rows[rid-1] = row
	return nil
}

// Append adds a row and returns its 1-based index.
func (t *MetadataTable) Append(row Row) uint32 {
	t.rows = append(t.rows, row)
	return uint32(len(t.rows))
}

// Rows materialises and returns every row.
func (t *MetadataTable) Rows() ([]Row, error) {
	for rid := uint32(1); rid <= t.Count(); rid++ {
		if _, err := t.Get(rid); err != nil {
			return nil, err
		}
	}
	return t.rows, nil
}

// tableSortKeys lists, per sorted table, the column positions forming the
// ECMA-mandated sort key in priority order.
var tableSortKeys = map[TableIndex][]int{
	InterfaceImpl:          {0, 1},
	Constant:               {1},
	CustomAttribute:        {0},
	FieldMarshal:           {0},
	DeclSecurity:           {1},
	ClassLayout:            {2},
	FieldLayout:            {1},
	MethodSemantics:        {2},
	MethodImpl:             {0},
	ImplMap:                {1},
	FieldRVA:               {1},
	NestedClass:            {0},
	GenericParam:           {2, 0},
	GenericParamConstraint: {0},
}

// SortRequired reports whether ECMA-335 requires the table to be emitted
// sorted.
func (t *MetadataTable) SortRequired() bool {
	_, ok := tableSortKeys[t.index]
	return ok
}

// Sort orders the rows by the table's mandated key. Tables without a
// mandated key are left untouched.
func (t *MetadataTable) Sort() error {
	keys, ok := tableSortKeys[t.index]
	if !ok {
		return nil
	}
	if _, err := t.Rows(); err != nil {
		return err
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		for _, k := range keys {
			if t.rows[i][k] != t.rows[j][k] {
				return t.rows[i][k] < t.rows[j][k]
			}
		}
		return false
	})
	return nil
}

// decodeRow reads one row at the reader's cursor using the widths implied
// by the size snapshot.
func decodeRow(r *Reader, cols []Column, s *sizeSet) (Row, error) {
	row := make(Row, len(cols))
	for i, c := range cols {
		switch s.columnSize(c) {
		case 2:
			v, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			row[i] = uint32(v)
		default:
			v, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
	}
	return row, nil
}

// encodeRow writes one row at the widths implied by the size snapshot.
func encodeRow(w *Writer, row Row, cols []Column, s *sizeSet) {
	for i, c := range cols {
		switch s.columnSize(c) {
		case 2:
			w.WriteUint16(uint16(row[i]))
		default:
			w.WriteUint32(row[i])
		}
	}
}

// TableStore owns the 45 metadata tables of one image.
type TableStore struct {
	tables [TableCount]*MetadataTable
}

// NewTableStore returns a store with every table empty.
func NewTableStore() *TableStore {
	s := &TableStore{}
	for i := TableIndex(0); i < TableCount; i++ {
		s.tables[i] = newMetadataTable(i)
	}
	return s
}

// Table returns the table with the given index, or nil when undefined.
func (s *TableStore) Table(t TableIndex) *MetadataTable {
	if !t.IsDefined() {
		return nil
	}
	return s.tables[t]
}

// Resolve returns the row a token references, or ErrUnresolvableToken for
// a null token or one beyond the table tail.
func (s *TableStore) Resolve(t Token) (Row, error) {
	table := s.Table(t.Table())
	if table == nil {
		return nil, ErrUnresolvableToken
	}
	return table.Get(t.RID())
}

// rowCounts snapshots the current table cardinalities.
func (s *TableStore) rowCounts() [TableCount]uint32 {
	var counts [TableCount]uint32
	for i, t := range s.tables {
		counts[i] = t.Count()
	}
	return counts
}
