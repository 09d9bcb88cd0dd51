// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

// Typed views over the generic rows of the tables the object model works
// with. Field meanings follow ECMA-335 6th edition; heap columns hold
// offsets, table columns hold 1-based row indices, coded columns hold the
// packed coded value.

// ModuleRow is a row of the Module table (0x00).
type ModuleRow struct {
	// Reserved, shall be zero.
	Generation uint16
	// An index into the #Strings heap.
	Name uint32
	// An index into the #GUID heap distinguishing two versions of the same
	// module.
	Mvid uint32
	// An index into the #GUID heap; reserved, shall be zero.
	EncID uint32
	// An index into the #GUID heap; reserved, shall be zero.
	EncBaseID uint32
}

// Row flattens the typed view into a generic row.
func (m ModuleRow) Row() Row {
	return Row{uint32(m.Generation), m.Name, m.Mvid, m.EncID, m.EncBaseID}
}

func moduleRowFrom(r Row) ModuleRow {
	return ModuleRow{uint16(r[0]), r[1], r[2], r[3], r[4]}
}

// TypeRefRow is a row of the TypeRef table (0x01).
type TypeRefRow struct {
	// A ResolutionScope coded index.
	ResolutionScope uint32
	// An index into the #Strings heap.
	TypeName uint32
	// An index into the #Strings heap.
	TypeNamespace uint32
}

// Row flattens the typed view into a generic row.
func (t TypeRefRow) Row() Row {
	return Row{t.ResolutionScope, t.TypeName, t.TypeNamespace}
}

func typeRefRowFrom(r Row) TypeRefRow {
	return TypeRefRow{r[0], r[1], r[2]}
}

// TypeDefRow is a row of the TypeDef table (0x02).
type TypeDefRow struct {
	// A 4-byte bitmask of TypeAttributes.
	Flags uint32
	// An index into the #Strings heap.
	TypeName uint32
	// An index into the #Strings heap.
	TypeNamespace uint32
	// A TypeDefOrRef coded index.
	Extends uint32
	// The first of a contiguous run of Fields owned by this type.
	FieldList uint32
	// The first of a contiguous run of Methods owned by this type.
	MethodList uint32
}

// Row flattens the typed view into a generic row.
func (t TypeDefRow) Row() Row {
	return Row{t.Flags, t.TypeName, t.TypeNamespace, t.Extends,
		t.FieldList, t.MethodList}
}

func typeDefRowFrom(r Row) TypeDefRow {
	return TypeDefRow{r[0], r[1], r[2], r[3], r[4], r[5]}
}

// FieldRow is a row of the Field table (0x04).
type FieldRow struct {
	// A 2-byte bitmask of FieldAttributes.
	Flags uint16
	// An index into the #Strings heap.
	Name uint32
	// An index into the #Blob heap holding a field signature.
	Signature uint32
}

// Row flattens the typed view into a generic row.
func (f FieldRow) Row() Row {
	return Row{uint32(f.Flags), f.Name, f.Signature}
}

func fieldRowFrom(r Row) FieldRow {
	return FieldRow{uint16(r[0]), r[1], r[2]}
}

// MethodDefRow is a row of the Method table (0x06).
type MethodDefRow struct {
	RVA uint32
	// A 2-byte bitmask of MethodImplAttributes.
	ImplFlags uint16
	// A 2-byte bitmask of MethodAttributes.
	Flags uint16
	// An index into the #Strings heap.
	Name uint32
	// An index into the #Blob heap holding a method signature.
	Signature uint32
	// The first of a contiguous run of Params owned by this method.
	ParamList uint32
}

// Row flattens the typed view into a generic row.
func (m MethodDefRow) Row() Row {
	return Row{m.RVA, uint32(m.ImplFlags), uint32(m.Flags), m.Name,
		m.Signature, m.ParamList}
}

func methodDefRowFrom(r Row) MethodDefRow {
	return MethodDefRow{r[0], uint16(r[1]), uint16(r[2]), r[3], r[4], r[5]}
}

// ParamRow is a row of the Param table (0x08).
type ParamRow struct {
	// A 2-byte bitmask of ParamAttributes.
	Flags uint16
	// 0 for the return value, 1..n for parameters.
	Sequence uint16
	// An index into the #Strings heap.
	Name uint32
}

// Row flattens the typed view into a generic row.
func (p ParamRow) Row() Row {
	return Row{uint32(p.Flags), uint32(p.Sequence), p.Name}
}

func paramRowFrom(r Row) ParamRow {
	return ParamRow{uint16(r[0]), uint16(r[1]), r[2]}
}

// InterfaceImplRow is a row of the InterfaceImpl table (0x09).
type InterfaceImplRow struct {
	// An index into the TypeDef table.
	Class uint32
	// A TypeDefOrRef coded index.
	Interface uint32
}

// Row flattens the typed view into a generic row.
func (i InterfaceImplRow) Row() Row {
	return Row{i.Class, i.Interface}
}

// MemberRefRow is a row of the MemberRef table (0x0A).
type MemberRefRow struct {
	// A MemberRefParent coded index.
	Class uint32
	// An index into the #Strings heap.
	Name uint32
	// An index into the #Blob heap.
	Signature uint32
}

// Row flattens the typed view into a generic row.
func (m MemberRefRow) Row() Row {
	return Row{m.Class, m.Name, m.Signature}
}

func memberRefRowFrom(r Row) MemberRefRow {
	return MemberRefRow{r[0], r[1], r[2]}
}

// ModuleRefRow is a row of the ModuleRef table (0x1A).
type ModuleRefRow struct {
	// An index into the #Strings heap.
	Name uint32
}

// Row flattens the typed view into a generic row.
func (m ModuleRefRow) Row() Row {
	return Row{m.Name}
}

// TypeSpecRow is a row of the TypeSpec table (0x1B).
type TypeSpecRow struct {
	// An index into the #Blob heap holding a type signature.
	Signature uint32
}

// Row flattens the typed view into a generic row.
func (t TypeSpecRow) Row() Row {
	return Row{t.Signature}
}

// StandAloneSigRow is a row of the StandAloneSig table (0x11).
type StandAloneSigRow struct {
	// An index into the #Blob heap.
	Signature uint32
}

// Row flattens the typed view into a generic row.
func (s StandAloneSigRow) Row() Row {
	return Row{s.Signature}
}

// AssemblyRow is a row of the Assembly table (0x20).
type AssemblyRow struct {
	HashAlgID      uint32
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	// An index into the #Blob heap.
	PublicKey uint32
	// An index into the #Strings heap.
	Name uint32
	// An index into the #Strings heap.
	Culture uint32
}

// Row flattens the typed view into a generic row.
func (a AssemblyRow) Row() Row {
	return Row{a.HashAlgID, uint32(a.MajorVersion), uint32(a.MinorVersion),
		uint32(a.BuildNumber), uint32(a.RevisionNumber), a.Flags,
		a.PublicKey, a.Name, a.Culture}
}

func assemblyRowFrom(r Row) AssemblyRow {
	return AssemblyRow{r[0], uint16(r[1]), uint16(r[2]), uint16(r[3]),
		uint16(r[4]), r[5], r[6], r[7], r[8]}
}

// AssemblyRefRow is a row of the AssemblyRef table (0x23).
type AssemblyRefRow struct {
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	// An index into the #Blob heap.
	PublicKeyOrToken uint32
	// An index into the #Strings heap.
	Name uint32
	// An index into the #Strings heap.
	Culture uint32
	// An index into the #Blob heap.
	HashValue uint32
}

// Row flattens the typed view into a generic row.
func (a AssemblyRefRow) Row() Row {
	return Row{uint32(a.MajorVersion), uint32(a.MinorVersion),
		uint32(a.BuildNumber), uint32(a.RevisionNumber), a.Flags,
		a.PublicKeyOrToken, a.Name, a.Culture, a.HashValue}
}

func assemblyRefRowFrom(r Row) AssemblyRefRow {
	return AssemblyRefRow{uint16(r[0]), uint16(r[1]), uint16(r[2]),
		uint16(r[3]), r[4], r[5], r[6], r[7], r[8]}
}

// CustomAttributeRow is a row of the CustomAttribute table (0x0C).
type CustomAttributeRow struct {
	// A HasCustomAttribute coded index.
	Parent uint32
	// A CustomAttributeType coded index.
	Type uint32
	// An index into the #Blob heap.
	Value uint32
}

// Row flattens the typed view into a generic row.
func (c CustomAttributeRow) Row() Row {
	return Row{c.Parent, c.Type, c.Value}
}

// GenericParamRow is a row of the GenericParam table (0x2A).
type GenericParamRow struct {
	// The 0-based ordinal of the parameter.
	Number uint16
	// A 2-byte bitmask of GenericParamAttributes.
	Flags uint16
	// A TypeOrMethodDef coded index.
	Owner uint32
	// An index into the #Strings heap.
	Name uint32
}

// Row flattens the typed view into a generic row.
func (g GenericParamRow) Row() Row {
	return Row{uint32(g.Number), uint32(g.Flags), g.Owner, g.Name}
}

// MethodSpecRow is a row of the MethodSpec table (0x2B).
type MethodSpecRow struct {
	// A MethodDefOrRef coded index.
	Method uint32
	// An index into the #Blob heap holding an instantiation signature.
	Instantiation uint32
}

// Row flattens the typed view into a generic row.
func (m MethodSpecRow) Row() Row {
	return Row{m.Method, m.Instantiation}
}

// NestedClassRow is a row of the NestedClass table (0x29). Both columns
// hold TypeDef row indices.
type NestedClassRow struct {
	NestedClass    uint32
	EnclosingClass uint32
}

// NewNestedClassRow builds a row from two TypeDef tokens.
func NewNestedClassRow(nested, enclosing Token) NestedClassRow {
	return NestedClassRow{nested.RID(), enclosing.RID()}
}

// Row flattens the typed view into a generic row.
func (n NestedClassRow) Row() Row {
	return Row{n.NestedClass, n.EnclosingClass}
}

// Equal reports value equality of two rows.
func (n NestedClassRow) Equal(o NestedClassRow) bool {
	return n == o
}

// Hash mixes both columns into a 32-bit hash.
func (n NestedClassRow) Hash() uint32 {
	return n.NestedClass*397 ^ n.EnclosingClass
}
