// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

// The table schema declares row layouts for all 45 metadata tables. Column
// widths are not intrinsic to a row: indexes into tables, coded-index
// unions, and heaps are 2 or 4 bytes wide depending on the cardinalities of
// the target tables and the sizes of the heaps in the image at hand.
// https://www.ecma-international.org/wp-content/uploads/ECMA-335_6th_edition_june_2012.pdf

// ColumnKind discriminates how a column's width and meaning are determined.
type ColumnKind uint8

// Column kinds.
const (
	// ColFixed16 is an unsigned 16-bit constant-width column.
	ColFixed16 ColumnKind = iota
	// ColFixed32 is an unsigned 32-bit constant-width column.
	ColFixed32
	// ColStrings is an offset into the #Strings heap.
	ColStrings
	// ColGUID is a 1-based index into the #GUID heap.
	ColGUID
	// ColBlob is an offset into the #Blob heap.
	ColBlob
	// ColTable is a 1-based row index into a single target table.
	ColTable
	// ColCoded is a coded index over a union of candidate tables.
	ColCoded
)

// CodedIndex identifies one of the coded-index kinds of ECMA-335 II.24.2.6.
type CodedIndex uint8

// Coded-index kinds.
const (
	TypeDefOrRef CodedIndex = iota
	HasConstant
	HasCustomAttribute
	HasFieldMarshal
	HasDeclSecurity
	MemberRefParent
	HasSemantics
	MethodDefOrRef
	MemberForwarded
	Implementation
	CustomAttributeType
	ResolutionScope
	TypeOrMethodDef

	codedIndexCount
)

// codedIndexDef holds the tag width and ordered candidate tables of one
// coded-index kind. An invalidTable entry marks a tag value that no table
// occupies.
type codedIndexDef struct {
	tagBits uint8
	tables  []TableIndex
}

var codedIndexDefs = [codedIndexCount]codedIndexDef{
	TypeDefOrRef:    {2, []TableIndex{TypeDef, TypeRef, TypeSpec}},
	HasConstant:     {2, []TableIndex{Field, Param, Property}},
	HasCustomAttribute: {5, []TableIndex{
		Method, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef,
		Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef,
		TypeSpec, Assembly, AssemblyRef, FileMD, ExportedType,
		ManifestResource, GenericParam, GenericParamConstraint, MethodSpec,
	}},
	HasFieldMarshal: {1, []TableIndex{Field, Param}},
	HasDeclSecurity: {2, []TableIndex{TypeDef, Method, Assembly}},
	MemberRefParent: {3, []TableIndex{
		TypeDef, TypeRef, ModuleRef, Method, TypeSpec,
	}},
	HasSemantics:   {1, []TableIndex{Event, Property}},
	MethodDefOrRef: {1, []TableIndex{Method, MemberRef}},
	MemberForwarded: {1, []TableIndex{Field, Method}},
	Implementation: {2, []TableIndex{FileMD, AssemblyRef, ExportedType}},
	CustomAttributeType: {3, []TableIndex{
		invalidTable, invalidTable, Method, MemberRef, invalidTable,
	}},
	ResolutionScope: {2, []TableIndex{
		Module, ModuleRef, AssemblyRef, TypeRef,
	}},
	TypeOrMethodDef: {1, []TableIndex{TypeDef, Method}},
}

// TagBits returns the number of tag bits of the coded-index kind.
func (c CodedIndex) TagBits() uint8 {
	return codedIndexDefs[c].tagBits
}

// Tables returns the ordered candidate tables of the coded-index kind.
func (c CodedIndex) Tables() []TableIndex {
	return codedIndexDefs[c].tables
}

// Encode packs a token into the coded value (rid << tagBits | tag). A null
// token encodes as zero. ErrUnresolvableToken is returned when the token's
// table is not a candidate of this kind.
func (c CodedIndex) Encode(t Token) (uint32, error) {
	if t.IsNull() {
		return 0, nil
	}
	def := codedIndexDefs[c]
	for tag, table := range def.tables {
		if table == t.Table() {
			return t.RID()<<def.tagBits | uint32(tag), nil
		}
	}
	return 0, ErrUnresolvableToken
}

// Decode unpacks a coded value into a token. A zero value decodes to the
// null token of the kind's first candidate table; where tag 0 is an
// unoccupied slot (CustomAttributeType), it is ErrUnresolvableToken.
func (c CodedIndex) Decode(v uint32) (Token, error) {
	def := codedIndexDefs[c]
	tag := v & (1<<def.tagBits - 1)
	if int(tag) >= len(def.tables) || def.tables[tag] == invalidTable {
		return 0, ErrUnresolvableToken
	}
	return NewToken(def.tables[tag], v>>def.tagBits), nil
}

// Column declares one column of a table row: its kind plus the kind's
// target (heap, table, or coded-index union).
type Column struct {
	Name  string
	Kind  ColumnKind
	Table TableIndex // target table for ColTable
	Coded CodedIndex // coded-index kind for ColCoded
}

func fixed16(name string) Column { return Column{Name: name, Kind: ColFixed16} }
func fixed32(name string) Column { return Column{Name: name, Kind: ColFixed32} }
func strCol(name string) Column  { return Column{Name: name, Kind: ColStrings} }
func guidCol(name string) Column { return Column{Name: name, Kind: ColGUID} }
func blobCol(name string) Column { return Column{Name: name, Kind: ColBlob} }
func tblCol(name string, t TableIndex) Column {
	return Column{Name: name, Kind: ColTable, Table: t}
}
func codedCol(name string, c CodedIndex) Column {
	return Column{Name: name, Kind: ColCoded, Coded: c}
}

// tableSchemas maps each table index to its ordered column list.
var tableSchemas = [TableCount][]Column{
	Module: {
		fixed16("Generation"), strCol("Name"), guidCol("Mvid"),
		guidCol("EncId"), guidCol("EncBaseId"),
	},
	TypeRef: {
		codedCol("ResolutionScope", ResolutionScope),
		strCol("TypeName"), strCol("TypeNamespace"),
	},
	TypeDef: {
		fixed32("Flags"), strCol("TypeName"), strCol("TypeNamespace"),
		codedCol("Extends", TypeDefOrRef),
		tblCol("FieldList", Field), tblCol("MethodList", Method),
	},
	FieldPtr: {tblCol("Field", Field)},
	Field: {
		fixed16("Flags"), strCol("Name"), blobCol("Signature"),
	},
	MethodPtr: {tblCol("Method", Method)},
	Method: {
		fixed32("RVA"), fixed16("ImplFlags"), fixed16("Flags"),
		strCol("Name"), blobCol("Signature"), tblCol("ParamList", Param),
	},
	ParamPtr: {tblCol("Param", Param)},
	Param: {
		fixed16("Flags"), fixed16("Sequence"), strCol("Name"),
	},
	InterfaceImpl: {
		tblCol("Class", TypeDef), codedCol("Interface", TypeDefOrRef),
	},
	MemberRef: {
		codedCol("Class", MemberRefParent), strCol("Name"),
		blobCol("Signature"),
	},
	Constant: {
		fixed16("Type"), codedCol("Parent", HasConstant), blobCol("Value"),
	},
	CustomAttribute: {
		codedCol("Parent", HasCustomAttribute),
		codedCol("Type", CustomAttributeType), blobCol("Value"),
	},
	FieldMarshal: {
		codedCol("Parent", HasFieldMarshal), blobCol("NativeType"),
	},
	DeclSecurity: {
		fixed16("Action"), codedCol("Parent", HasDeclSecurity),
		blobCol("PermissionSet"),
	},
	ClassLayout: {
		fixed16("PackingSize"), fixed32("ClassSize"),
		tblCol("Parent", TypeDef),
	},
	FieldLayout: {
		fixed32("Offset"), tblCol("Field", Field),
	},
	StandAloneSig: {blobCol("Signature")},
	EventMap: {
		tblCol("Parent", TypeDef), tblCol("EventList", Event),
	},
	EventPtr: {tblCol("Event", Event)},
	Event: {
		fixed16("EventFlags"), strCol("Name"),
		codedCol("EventType", TypeDefOrRef),
	},
	PropertyMap: {
		tblCol("Parent", TypeDef), tblCol("PropertyList", Property),
	},
	PropertyPtr: {tblCol("Property", Property)},
	Property: {
		fixed16("Flags"), strCol("Name"), blobCol("Type"),
	},
	MethodSemantics: {
		fixed16("Semantics"), tblCol("Method", Method),
		codedCol("Association", HasSemantics),
	},
	MethodImpl: {
		tblCol("Class", TypeDef),
		codedCol("MethodBody", MethodDefOrRef),
		codedCol("MethodDeclaration", MethodDefOrRef),
	},
	ModuleRef: {strCol("Name")},
	TypeSpec:  {blobCol("Signature")},
	ImplMap: {
		fixed16("MappingFlags"),
		codedCol("MemberForwarded", MemberForwarded),
		strCol("ImportName"), tblCol("ImportScope", ModuleRef),
	},
	FieldRVA: {
		fixed32("RVA"), tblCol("Field", Field),
	},
	ENCLog: {fixed32("Token"), fixed32("FuncCode")},
	ENCMap: {fixed32("Token")},
	Assembly: {
		fixed32("HashAlgId"), fixed16("MajorVersion"),
		fixed16("MinorVersion"), fixed16("BuildNumber"),
		fixed16("RevisionNumber"), fixed32("Flags"),
		blobCol("PublicKey"), strCol("Name"), strCol("Culture"),
	},
	AssemblyProcessor: {fixed32("Processor")},
	AssemblyOS: {
		fixed32("OSPlatformID"), fixed32("OSMajorVersion"),
		fixed32("OSMinorVersion"),
	},
	AssemblyRef: {
		fixed16("MajorVersion"), fixed16("MinorVersion"),
		fixed16("BuildNumber"), fixed16("RevisionNumber"),
		fixed32("Flags"), blobCol("PublicKeyOrToken"), strCol("Name"),
		strCol("Culture"), blobCol("HashValue"),
	},
	AssemblyRefProcessor: {
		fixed32("Processor"), tblCol("AssemblyRef", AssemblyRef),
	},
	AssemblyRefOS: {
		fixed32("OSPlatformID"), fixed32("OSMajorVersion"),
		fixed32("OSMinorVersion"), tblCol("AssemblyRef", AssemblyRef),
	},
	FileMD: {
		fixed32("Flags"), strCol("Name"), blobCol("HashValue"),
	},
	ExportedType: {
		fixed32("Flags"), fixed32("TypeDefId"), strCol("TypeName"),
		strCol("TypeNamespace"), codedCol("Implementation", Implementation),
	},
	ManifestResource: {
		fixed32("Offset"), fixed32("Flags"), strCol("Name"),
		codedCol("Implementation", Implementation),
	},
	NestedClass: {
		tblCol("NestedClass", TypeDef), tblCol("EnclosingClass", TypeDef),
	},
	GenericParam: {
		fixed16("Number"), fixed16("Flags"),
		codedCol("Owner", TypeOrMethodDef), strCol("Name"),
	},
	MethodSpec: {
		codedCol("Method", MethodDefOrRef), blobCol("Instantiation"),
	},
	GenericParamConstraint: {
		tblCol("Owner", GenericParam),
		codedCol("Constraint", TypeDefOrRef),
	},
}

// Schema returns the ordered column list of a table.
func Schema(t TableIndex) []Column {
	if !t.IsDefined() {
		return nil
	}
	return tableSchemas[t]
}

// Heap-sizes flag bits of the #~ header.
const (
	HeapSizesWideStrings = 0x01
	HeapSizesWideGUID    = 0x02
	HeapSizesWideBlob    = 0x04
)

// sortedTablesMask is the ECMA-mandated set of sorted tables.
const sortedTablesMask uint64 = 1<<uint(InterfaceImpl) |
	1<<uint(Constant) | 1<<uint(CustomAttribute) |
	1<<uint(FieldMarshal) | 1<<uint(DeclSecurity) |
	1<<uint(ClassLayout) | 1<<uint(FieldLayout) |
	1<<uint(MethodSemantics) | 1<<uint(MethodImpl) |
	1<<uint(ImplMap) | 1<<uint(FieldRVA) |
	1<<uint(NestedClass) | 1<<uint(GenericParam) |
	1<<uint(GenericParamConstraint)

// sizeSet snapshots table cardinalities and heap widths; every width
// question during layout and parsing is answered against one snapshot.
type sizeSet struct {
	rowCounts [TableCount]uint32
	heapFlags uint8
}

// heapIndexSize returns 2 or 4 for a heap-index column kind.
func (s *sizeSet) heapIndexSize(kind ColumnKind) uint32 {
	var bit uint8
	switch kind {
	case ColStrings:
		bit = HeapSizesWideStrings
	case ColGUID:
		bit = HeapSizesWideGUID
	case ColBlob:
		bit = HeapSizesWideBlob
	}
	if s.heapFlags&bit != 0 {
		return 4
	}
	return 2
}

// tableIndexSize returns 2 or 4 for a plain table-index column.
func (s *sizeSet) tableIndexSize(t TableIndex) uint32 {
	if s.rowCounts[t] > 0xFFFF {
		return 4
	}
	return 2
}

// codedIndexSize returns 2 or 4 for a coded-index column: 16-bit only when
// the largest candidate cardinality still fits beside the tag bits.
func (s *sizeSet) codedIndexSize(c CodedIndex) uint32 {
	def := codedIndexDefs[c]
	var max uint32
	for _, t := range def.tables {
		if t == invalidTable {
			continue
		}
		if s.rowCounts[t] > max {
			max = s.rowCounts[t]
		}
	}
	if uint64(max)<<def.tagBits > 0xFFFF {
		return 4
	}
	return 2
}

// columnSize returns the byte width of one column under this snapshot.
func (s *sizeSet) columnSize(c Column) uint32 {
	switch c.Kind {
	case ColFixed16:
		return 2
	case ColFixed32:
		return 4
	case ColStrings, ColGUID, ColBlob:
		return s.heapIndexSize(c.Kind)
	case ColTable:
		return s.tableIndexSize(c.Table)
	default:
		return s.codedIndexSize(c.Coded)
	}
}

// rowSize returns the byte stride of one row of table t.
func (s *sizeSet) rowSize(t TableIndex) uint32 {
	var n uint32
	for _, c := range tableSchemas[t] {
		n += s.columnSize(c)
	}
	return n
}

// validMask returns the present-tables bitmask.
func (s *sizeSet) validMask() uint64 {
	var m uint64
	for i := TableIndex(0); i < TableCount; i++ {
		if s.rowCounts[i] > 0 {
			m |= 1 << uint(i)
		}
	}
	return m
}
