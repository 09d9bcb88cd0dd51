// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

// TableIndex identifies one of the metadata tables defined by ECMA-335.
type TableIndex uint8

// Metadata table indices.
const (
	// The current module descriptor.
	Module TableIndex = 0
	// Class reference descriptors.
	TypeRef TableIndex = 1
	// Class or interface definition descriptors.
	TypeDef TableIndex = 2
	// A class-to-fields lookup table, absent from optimized metadata.
	FieldPtr TableIndex = 3
	// Field definition descriptors.
	Field TableIndex = 4
	// A class-to-methods lookup table, absent from optimized metadata.
	MethodPtr TableIndex = 5
	// Method definition descriptors.
	Method TableIndex = 6
	// A method-to-parameters lookup table, absent from optimized metadata.
	ParamPtr TableIndex = 7
	// Parameter definition descriptors.
	Param TableIndex = 8
	// Interface implementation descriptors.
	InterfaceImpl TableIndex = 9
	// Member (field or method) reference descriptors.
	MemberRef TableIndex = 10
	// Constant value descriptors mapping default values in the #Blob stream
	// to fields, parameters, and properties.
	Constant TableIndex = 11
	// Custom attribute descriptors.
	CustomAttribute TableIndex = 12
	// Field or parameter marshaling descriptors for managed/unmanaged
	// inter-operation.
	FieldMarshal TableIndex = 13
	// Security descriptors.
	DeclSecurity TableIndex = 14
	// Class layout descriptors.
	ClassLayout TableIndex = 15
	// Field layout descriptors.
	FieldLayout TableIndex = 16
	// Stand-alone signature descriptors.
	StandAloneSig TableIndex = 17
	// A class-to-events mapping table.
	EventMap TableIndex = 18
	// An event map-to-events lookup table, absent from optimized metadata.
	EventPtr TableIndex = 19
	// Event descriptors.
	Event TableIndex = 20
	// A class-to-properties mapping table.
	PropertyMap TableIndex = 21
	// A property map-to-properties lookup table, absent from optimized
	// metadata.
	PropertyPtr TableIndex = 22
	// Property descriptors.
	Property TableIndex = 23
	// Method semantics descriptors tying methods to properties or events.
	MethodSemantics TableIndex = 24
	// Method implementation descriptors.
	MethodImpl TableIndex = 25
	// Module reference descriptors.
	ModuleRef TableIndex = 26
	// Type specification descriptors.
	TypeSpec TableIndex = 27
	// Implementation map descriptors used for P/Invoke.
	ImplMap TableIndex = 28
	// Field-to-data mapping descriptors.
	FieldRVA TableIndex = 29
	// Edit-and-continue log descriptors, absent from optimized metadata.
	ENCLog TableIndex = 30
	// Edit-and-continue mapping descriptors, absent from optimized metadata.
	ENCMap TableIndex = 31
	// The current assembly descriptor, prime module metadata only.
	Assembly TableIndex = 32
	// This table is unused.
	AssemblyProcessor TableIndex = 33
	// This table is unused.
	AssemblyOS TableIndex = 34
	// Assembly reference descriptors.
	AssemblyRef TableIndex = 35
	// This table is unused.
	AssemblyRefProcessor TableIndex = 36
	// This table is unused.
	AssemblyRefOS TableIndex = 37
	// File descriptors for other files in the current assembly.
	FileMD TableIndex = 38
	// Exported type descriptors, prime module metadata only.
	ExportedType TableIndex = 39
	// Managed resource descriptors.
	ManifestResource TableIndex = 40
	// Nested class descriptors mapping nested classes to their enclosing
	// classes.
	NestedClass TableIndex = 41
	// Type parameter descriptors for generic classes and methods.
	GenericParam TableIndex = 42
	// Generic method instantiation descriptors.
	MethodSpec TableIndex = 43
	// Constraint descriptors for type parameters of generic classes and
	// methods.
	GenericParamConstraint TableIndex = 44

	// TableCount is the number of defined tables.
	TableCount = 45

	// invalidTable marks an unused slot in a coded-index candidate list.
	invalidTable TableIndex = 0xFF
)

var tableNames = map[TableIndex]string{
	Module:                 "Module",
	TypeRef:                "TypeRef",
	TypeDef:                "TypeDef",
	FieldPtr:               "FieldPtr",
	Field:                  "Field",
	MethodPtr:              "MethodPtr",
	Method:                 "Method",
	ParamPtr:               "ParamPtr",
	Param:                  "Param",
	InterfaceImpl:          "InterfaceImpl",
	MemberRef:              "MemberRef",
	Constant:               "Constant",
	CustomAttribute:        "CustomAttribute",
	FieldMarshal:           "FieldMarshal",
	DeclSecurity:           "DeclSecurity",
	ClassLayout:            "ClassLayout",
	FieldLayout:            "FieldLayout",
	StandAloneSig:          "StandAloneSig",
	EventMap:               "EventMap",
	EventPtr:               "EventPtr",
	Event:                  "Event",
	PropertyMap:            "PropertyMap",
	PropertyPtr:            "PropertyPtr",
	Property:               "Property",
	MethodSemantics:        "MethodSemantics",
	MethodImpl:             "MethodImpl",
	ModuleRef:              "ModuleRef",
	TypeSpec:               "TypeSpec",
	ImplMap:                "ImplMap",
	FieldRVA:               "FieldRVA",
	ENCLog:                 "ENCLog",
	ENCMap:                 "ENCMap",
	Assembly:               "Assembly",
	AssemblyProcessor:      "AssemblyProcessor",
	AssemblyOS:             "AssemblyOS",
	AssemblyRef:            "AssemblyRef",
	AssemblyRefProcessor:   "AssemblyRefProcessor",
	AssemblyRefOS:          "AssemblyRefOS",
	FileMD:                 "File",
	ExportedType:           "ExportedType",
	ManifestResource:       "ManifestResource",
	NestedClass:            "NestedClass",
	GenericParam:           "GenericParam",
	MethodSpec:             "MethodSpec",
	GenericParamConstraint: "GenericParamConstraint",
}

// String returns the table name, or the empty string for an undefined index.
func (t TableIndex) String() string {
	return tableNames[t]
}

// IsDefined reports whether the index maps to a defined table.
func (t TableIndex) IsDefined() bool {
	return t < TableCount
}
