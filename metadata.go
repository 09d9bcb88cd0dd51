// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"fmt"
)

// MetadataSignature is the BSJB magic of the storage signature header.
const MetadataSignature = 0x424A5342

// MetadataHeader is the storage signature plus storage header that opens
// the metadata directory.
type MetadataHeader struct {
	// Magic signature for physical metadata: 0x424A5342, read as the
	// characters BSJB.
	Signature uint32
	// Major version.
	MajorVersion uint16
	// Minor version.
	MinorVersion uint16
	// Reserved, set to 0.
	ExtraData uint32
	// Length of the version string field, including its padding.
	VersionString uint32
	// Version string.
	Version string
	// Reserved, set to 0.
	Flags uint8
	// Number of streams.
	Streams uint16
}

// StreamHeader names one stream of the directory.
type StreamHeader struct {
	// Offset of the stream relative to the metadata root.
	Offset uint32
	// Size of the stream in bytes.
	Size uint32
	// Zero-terminated ASCII name, at most 31 characters, padded to a
	// 4-byte boundary.
	Name string
}

// TableStreamHeader opens the #~ stream.
type TableStreamHeader struct {
	// Reserved, set to 0.
	Reserved uint32
	// Major version of the table schema.
	MajorVersion uint8
	// Minor version of the table schema.
	MinorVersion uint8
	// Width flags for heap offsets: 0x01 wide #Strings, 0x02 wide #GUID,
	// 0x04 wide #Blob.
	HeapSizes uint8
	// Reserved, set to 1.
	RID uint8
	// Bit vector of present tables.
	MaskValid uint64
	// Bit vector of sorted tables.
	Sorted uint64
}

// Metadata is one loaded metadata directory: header, heaps, and row store.
type Metadata struct {
	Header        MetadataHeader
	StreamHeaders []StreamHeader
	TablesHeader  TableStreamHeader

	Tables  *TableStore
	Strings *StringsHeap
	US      *USHeap
	Blob    *BlobHeap
	GUID    *GUIDHeap

	sizes *sizeSet
}

// NewMetadata returns an empty in-memory metadata directory ready for
// user construction.
func NewMetadata() *Metadata {
	return &Metadata{
		Header: MetadataHeader{
			Signature:    MetadataSignature,
			MajorVersion: 1,
			MinorVersion: 1,
			Version:      "v4.0.30319",
		},
		Tables:  NewTableStore(),
		Strings: NewStringsHeap(),
		US:      NewUSHeap(),
		Blob:    NewBlobHeap(),
		GUID:    NewGUIDHeap(),
	}
}

// ParseMetadata reads a metadata directory from a reader positioned at the
// metadata root. The caller obtains the root offset from the surrounding
// PE container.
func ParseMetadata(r *Reader) (*Metadata, error) {
	md := &Metadata{}

	if err := md.parseHeader(r); err != nil {
		return nil, err
	}
	if err := md.parseStreamHeaders(r); err != nil {
		return nil, err
	}
	if err := md.parseStreams(r); err != nil {
		return nil, err
	}
	return md, nil
}

func (md *Metadata) parseHeader(r *Reader) error {
	var err error
	h := &md.Header

	if h.Signature, err = r.ReadUint32(); err != nil {
		return err
	}
	if h.Signature != MetadataSignature {
		return fmt.Errorf("%w: bad metadata signature 0x%08X",
			ErrBadImageFormat, h.Signature)
	}
	if h.MajorVersion, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.MinorVersion, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.ExtraData, err = r.ReadUint32(); err != nil {
		return err
	}
	if h.VersionString, err = r.ReadUint32(); err != nil {
		return err
	}
	ver, err := r.ReadBytes(h.VersionString)
	if err != nil {
		return err
	}
	for i, c := range ver {
		if c == 0 {
			ver = ver[:i]
			break
		}
	}
	h.Version = string(ver)

	if h.Flags, err = r.ReadUint8(); err != nil {
		return err
	}
	// Padding byte after the flags.
	if _, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.Streams, err = r.ReadUint16(); err != nil {
		return err
	}
	return nil
}

func (md *Metadata) parseStreamHeaders(r *Reader) error {
	for i := uint16(0); i < md.Header.Streams; i++ {
		var sh StreamHeader
		var err error
		if sh.Offset, err = r.ReadUint32(); err != nil {
			return err
		}
		if sh.Size, err = r.ReadUint32(); err != nil {
			return err
		}
		// The name is NUL-terminated and padded to a 4-byte boundary.
		for j := uint32(0); j <= 32; j++ {
			c, err := r.ReadUint8()
			if err != nil {
				return err
			}
			if c == 0 && (j+1)%4 == 0 {
				break
			}
			if c != 0 {
				sh.Name += string(rune(c))
			}
		}
		md.StreamHeaders = append(md.StreamHeaders, sh)
	}
	return nil
}

func (md *Metadata) streamSlice(r *Reader, name string) (*Reader, error) {
	for _, sh := range md.StreamHeaders {
		if sh.Name == name {
			return r.Slice(sh.Offset, sh.Size)
		}
	}
	return nil, nil
}

func (md *Metadata) parseStreams(r *Reader) error {
	// The streams #~ and #- are mutually exclusive: the module's metadata
	// is either optimized or un-optimized, never both.
	tables, err := md.streamSlice(r, "#~")
	if err != nil {
		return err
	}
	if tables == nil {
		if tables, err = md.streamSlice(r, "#-"); err != nil {
			return err
		}
	}
	if tables == nil {
		return fmt.Errorf("%w: missing table stream", ErrBadImageFormat)
	}

	if s, err := md.streamSlice(r, "#Strings"); err != nil {
		return err
	} else if s != nil {
		md.Strings = stringsHeapFromStream(s.data)
	} else {
		md.Strings = NewStringsHeap()
	}

	if s, err := md.streamSlice(r, "#US"); err != nil {
		return err
	} else if s != nil {
		md.US = usHeapFromStream(s.data)
	} else {
		md.US = NewUSHeap()
	}

	if s, err := md.streamSlice(r, "#Blob"); err != nil {
		return err
	} else if s != nil {
		md.Blob = blobHeapFromStream(s.data)
	} else {
		md.Blob = NewBlobHeap()
	}

	if s, err := md.streamSlice(r, "#GUID"); err != nil {
		return err
	} else if s != nil {
		md.GUID = guidHeapFromStream(s.data)
	} else {
		md.GUID = NewGUIDHeap()
	}

	return md.parseTableStream(tables)
}

func (md *Metadata) parseTableStream(r *Reader) error {
	var err error
	h := &md.TablesHeader

	if h.Reserved, err = r.ReadUint32(); err != nil {
		return err
	}
	if h.MajorVersion, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.MinorVersion, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.HeapSizes, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.RID, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.MaskValid, err = r.ReadUint64(); err != nil {
		return err
	}
	if h.Sorted, err = r.ReadUint64(); err != nil {
		return err
	}

	sizes := &sizeSet{heapFlags: h.HeapSizes}
	for i := TableIndex(0); i < 64; i++ {
		if h.MaskValid&(1<<uint(i)) == 0 {
			continue
		}
		count, err := r.ReadUint32()
		if err != nil {
			return err
		}
		if !i.IsDefined() {
			return fmt.Errorf("%w: unknown table 0x%02X present",
				ErrBadImageFormat, uint8(i))
		}
		sizes.rowCounts[i] = count
	}
	md.sizes = sizes

	md.Tables = NewTableStore()
	for i := TableIndex(0); i < TableCount; i++ {
		count := sizes.rowCounts[i]
		if count == 0 {
			continue
		}
		stride := sizes.rowSize(i)
		if uint64(stride)*uint64(count) > uint64(r.Remaining()) {
			return fmt.Errorf("%w: truncated table %s", ErrBadImageFormat, i)
		}
		raw, err := r.ReadBytes(stride * count)
		if err != nil {
			return fmt.Errorf("%w: truncated table %s", ErrBadImageFormat, i)
		}
		md.Tables.tables[i] = tableFromSlice(i, raw, count, sizes)
	}
	return nil
}

// RowCount returns the cardinality of a table.
func (md *Metadata) RowCount(t TableIndex) uint32 {
	table := md.Tables.Table(t)
	if table == nil {
		return 0
	}
	return table.Count()
}

// ResolveString reads a #Strings entry referenced by a row column.
func (md *Metadata) ResolveString(offset uint32) (string, error) {
	return md.Strings.GetString(offset)
}

// ResolveBlob reads a #Blob entry referenced by a row column.
func (md *Metadata) ResolveBlob(offset uint32) ([]byte, error) {
	return md.Blob.GetBlob(offset)
}
