// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"fmt"
)

// DefaultMaxLayoutIterations bounds the width-convergence loop of the
// write pass. Widths only grow, so two iterations settle in practice; the
// cap is defensive.
const DefaultMaxLayoutIterations = 4

// Builder re-emits a consistent metadata directory from an in-memory
// model. Prepare reserves dense 1-based tokens per table in deterministic
// traversal order and interns every heap payload; write freezes column
// widths from the final cardinalities and emits the directory. The source
// model is never mutated.
type Builder struct {
	maxIterations int

	out    *Metadata
	tokens map[interface{}]Token
	sorted uint64
}

// NewBuilder returns a builder with default limits.
func NewBuilder() *Builder {
	return &Builder{
		maxIterations: DefaultMaxLayoutIterations,
		tokens:        map[interface{}]Token{},
		sorted:        sortedTablesMask,
	}
}

// TokenOf returns the token the last prepare pass assigned to a
// descriptor, or the null token when the descriptor was not reachable.
func (b *Builder) TokenOf(desc interface{}) Token {
	return b.tokens[desc]
}

// Build runs prepare and write over the object model reachable from the
// manifest module and returns the emitted directory bytes.
func (b *Builder) Build(module *ModuleDefinition) ([]byte, error) {
	md, err := b.BuildMetadata(module)
	if err != nil {
		return nil, err
	}
	return b.emitDirectory(md)
}

// BuildMetadata runs the prepare pass only, returning the assembled
// directory model without serialising it.
func (b *Builder) BuildMetadata(module *ModuleDefinition) (*Metadata, error) {
	b.out = NewMetadata()
	b.tokens = map[interface{}]Token{}

	if err := b.prepareModule(module); err != nil {
		return nil, err
	}
	if err := b.sortTables(); err != nil {
		return nil, err
	}
	return b.out, nil
}

// Rebuild re-emits an existing parsed directory: rows are carried over
// with heap columns re-interned into fresh heaps, so the output is
// row-equal but not necessarily byte-equal to the source.
func (b *Builder) Rebuild(src *Metadata) ([]byte, error) {
	md, err := b.RebuildMetadata(src)
	if err != nil {
		return nil, err
	}
	return b.emitDirectory(md)
}

// RebuildMetadata runs the row-store carry-over without serialising it.
func (b *Builder) RebuildMetadata(src *Metadata) (*Metadata, error) {
	out := NewMetadata()
	out.Header.Version = src.Header.Version
	b.sorted = src.TablesHeader.Sorted
	if b.sorted == 0 {
		b.sorted = sortedTablesMask
	}

	// The #US heap is unreferenced by table columns; its content carries
	// over verbatim.
	out.US = usHeapFromStream(append([]byte(nil), src.US.buf...))

	for i := TableIndex(0); i < TableCount; i++ {
		srcTable := src.Tables.Table(i)
		outTable := out.Tables.Table(i)
		cols := srcTable.Columns()
		for rid := uint32(1); rid <= srcTable.Count(); rid++ {
			row, err := srcTable.Get(rid)
			if err != nil {
				return nil, err
			}
			mapped := make(Row, len(row))
			for c, col := range cols {
				v := row[c]
				switch col.Kind {
				case ColStrings:
					s, err := src.Strings.GetString(v)
					if err != nil {
						return nil, err
					}
					v = out.Strings.GetOrAdd(s)
				case ColGUID:
					g, err := src.GUID.GetGUID(v)
					if err != nil {
						return nil, err
					}
					v = out.GUID.GetOrAdd(g)
				case ColBlob:
					blob, err := src.Blob.GetBlob(v)
					if err != nil {
						return nil, err
					}
					if v != 0 {
						v = out.Blob.GetOrAdd(blob)
					}
				}
				mapped[c] = v
			}
			outTable.Append(mapped)
		}
	}
	b.out = out
	return out, nil
}

// prepareModule reserves tokens and interns heap payloads for everything
// reachable from the manifest module.
func (b *Builder) prepareModule(m *ModuleDefinition) error {
	out := b.out

	// Types first: every later row may reference a type token. Top-level
	// types in declaration order, then nested types level by level.
	types := collectTypes(m)
	for i, t := range types {
		b.tokens[t] = NewToken(TypeDef, uint32(i+1))
	}
	for i, r := range m.TypeReferences() {
		b.tokens[r] = NewToken(TypeRef, uint32(i+1))
	}
	for i, s := range m.TypeSpecifications() {
		b.tokens[s] = NewToken(TypeSpec, uint32(i+1))
	}
	for i, r := range m.AssemblyReferences() {
		b.tokens[r] = NewToken(AssemblyRef, uint32(i+1))
	}
	for i, r := range m.ModuleReferences() {
		b.tokens[r] = NewToken(ModuleRef, uint32(i+1))
	}
	for i, r := range m.MemberReferences() {
		b.tokens[r] = NewToken(MemberRef, uint32(i+1))
	}

	// Members get dense tokens in declaration order within each type.
	var fieldRID, methodRID, paramRID uint32
	for _, t := range types {
		for _, f := range t.Fields() {
			fieldRID++
			b.tokens[f] = NewToken(Field, fieldRID)
		}
		for _, meth := range t.Methods() {
			methodRID++
			b.tokens[meth] = NewToken(Method, methodRID)
			for _, p := range meth.Parameters() {
				paramRID++
				b.tokens[p] = NewToken(Param, paramRID)
			}
		}
	}

	// Module row.
	out.Tables.Table(Module).Append(ModuleRow{
		Name: out.Strings.GetOrAdd(m.Name()),
		Mvid: out.GUID.GetOrAdd(m.Mvid()),
	}.Row())

	// TypeRef rows.
	for _, r := range m.TypeReferences() {
		scope, err := b.resolutionScopeOf(r.Scope())
		if err != nil {
			return err
		}
		out.Tables.Table(TypeRef).Append(TypeRefRow{
			ResolutionScope: scope,
			TypeName:        out.Strings.GetOrAdd(r.Name()),
			TypeNamespace:   out.Strings.GetOrAdd(r.Namespace()),
		}.Row())
	}

	// TypeDef rows with their field and method runs, plus the member rows
	// themselves.
	fieldRID, methodRID, paramRID = 1, 1, 1
	for _, t := range types {
		extends, err := b.typeDefOrRefCoded(t.BaseType())
		if err != nil {
			return err
		}
		out.Tables.Table(TypeDef).Append(TypeDefRow{
			Flags:         t.Flags(),
			TypeName:      out.Strings.GetOrAdd(t.Name()),
			TypeNamespace: out.Strings.GetOrAdd(t.Namespace()),
			Extends:       extends,
			FieldList:     fieldRID,
			MethodList:    methodRID,
		}.Row())

		for _, f := range t.Fields() {
			fieldRID++
			sigOff, err := b.internFieldSig(f)
			if err != nil {
				return err
			}
			out.Tables.Table(Field).Append(FieldRow{
				Flags:     f.Flags(),
				Name:      out.Strings.GetOrAdd(f.Name()),
				Signature: sigOff,
			}.Row())
		}
		for _, meth := range t.Methods() {
			methodRID++
			sigOff, err := b.internMethodSig(meth)
			if err != nil {
				return err
			}
			out.Tables.Table(Method).Append(MethodDefRow{
				RVA:       meth.RVA(),
				ImplFlags: meth.ImplFlags(),
				Flags:     meth.Flags(),
				Name:      out.Strings.GetOrAdd(meth.Name()),
				Signature: sigOff,
				ParamList: paramRID,
			}.Row())
			for _, p := range meth.Parameters() {
				paramRID++
				out.Tables.Table(Param).Append(ParamRow{
					Flags:    p.Flags(),
					Sequence: p.Sequence(),
					Name:     out.Strings.GetOrAdd(p.Name()),
				}.Row())
			}
		}
	}

	// InterfaceImpl and NestedClass relations.
	for i, t := range types {
		for _, iface := range t.Interfaces() {
			coded, err := b.typeDefOrRefCoded(iface)
			if err != nil {
				return err
			}
			out.Tables.Table(InterfaceImpl).Append(InterfaceImplRow{
				Class:     uint32(i + 1),
				Interface: coded,
			}.Row())
		}
		if t.DeclaringType() != nil {
			out.Tables.Table(NestedClass).Append(NestedClassRow{
				NestedClass:    b.tokens[t].RID(),
				EnclosingClass: b.tokens[t.DeclaringType()].RID(),
			}.Row())
		}
	}

	// MemberRef rows.
	for _, r := range m.MemberReferences() {
		parentTok, ok := b.tokens[r.Parent()]
		if !ok && r.Parent() != nil {
			return fmt.Errorf("%w: member reference parent not reachable",
				ErrUnresolvableToken)
		}
		coded, err := MemberRefParent.Encode(parentTok)
		if err != nil {
			return err
		}
		out.Tables.Table(MemberRef).Append(MemberRefRow{
			Class:     coded,
			Name:      out.Strings.GetOrAdd(r.Name()),
			Signature: b.internBlob(r.SignatureBlob()),
		}.Row())
	}

	// TypeSpec rows: signatures re-encoded against builder tokens.
	for _, s := range m.TypeSpecifications() {
		sig := s.Signature()
		if sig == nil {
			return fmt.Errorf("%w: undecodable type specification",
				ErrMalformedSignature)
		}
		w := NewWriter()
		if err := sig.Encode(w); err != nil {
			return err
		}
		out.Tables.Table(TypeSpec).Append(TypeSpecRow{
			Signature: out.Blob.GetOrAdd(w.Bytes()),
		}.Row())
	}

	// ModuleRef and AssemblyRef rows.
	for _, r := range m.ModuleReferences() {
		out.Tables.Table(ModuleRef).Append(ModuleRefRow{
			Name: out.Strings.GetOrAdd(r.Name()),
		}.Row())
	}
	for _, r := range m.AssemblyReferences() {
		v := r.Version()
		out.Tables.Table(AssemblyRef).Append(AssemblyRefRow{
			MajorVersion:     v.Major,
			MinorVersion:     v.Minor,
			BuildNumber:      v.Build,
			RevisionNumber:   v.Revision,
			Flags:            r.Flags(),
			PublicKeyOrToken: b.internBlob(r.PublicKeyOrToken()),
			Name:             out.Strings.GetOrAdd(r.Name()),
			Culture:          out.Strings.GetOrAdd(r.Culture()),
			HashValue:        b.internBlob(r.hashValue),
		}.Row())
	}

	// Assembly manifest.
	if a := m.Assembly(); a != nil {
		v := a.Version()
		out.Tables.Table(Assembly).Append(AssemblyRow{
			HashAlgID:      a.HashAlgID(),
			MajorVersion:   v.Major,
			MinorVersion:   v.Minor,
			BuildNumber:    v.Build,
			RevisionNumber: v.Revision,
			Flags:          a.Flags(),
			PublicKey:      b.internBlob(a.PublicKey()),
			Name:           out.Strings.GetOrAdd(a.Name()),
			Culture:        out.Strings.GetOrAdd(a.Culture()),
		}.Row())
	}
	return nil
}

// collectTypes flattens the type tree: top-level declarations first, then
// nested types level by level, matching the deterministic reservation
// order tokens are handed out in.
func collectTypes(m *ModuleDefinition) []*TypeDefinition {
	var all []*TypeDefinition
	queue := m.TopLevelTypes()
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		all = append(all, t)
		queue = append(queue, t.NestedTypes()...)
	}
	return all
}

func (b *Builder) internBlob(blob []byte) uint32 {
	if len(blob) == 0 {
		return 0
	}
	return b.out.Blob.GetOrAdd(blob)
}

func (b *Builder) internFieldSig(f *FieldDefinition) (uint32, error) {
	sig := f.Signature()
	if sig == nil {
		return 0, fmt.Errorf("%w: field %s has no signature",
			ErrMalformedSignature, f.FullName())
	}
	w := NewWriter()
	if err := sig.Encode(w); err != nil {
		return 0, err
	}
	return b.out.Blob.GetOrAdd(w.Bytes()), nil
}

func (b *Builder) internMethodSig(m *MethodDefinition) (uint32, error) {
	sig := m.Signature()
	if sig == nil {
		return 0, fmt.Errorf("%w: method %s has no signature",
			ErrMalformedSignature, m.FullName())
	}
	w := NewWriter()
	if err := sig.Encode(w); err != nil {
		return 0, err
	}
	return b.out.Blob.GetOrAdd(w.Bytes()), nil
}

// typeDefOrRefCoded maps a type descriptor to a TypeDefOrRef coded value
// through the builder's token assignment.
func (b *Builder) typeDefOrRefCoded(d TypeDescriptor) (uint32, error) {
	if d == nil {
		return 0, nil
	}
	tok, ok := b.tokens[d]
	if !ok {
		return 0, fmt.Errorf("%w: type %s not reachable from module",
			ErrUnresolvableToken, d.FullName())
	}
	return TypeDefOrRef.Encode(tok)
}

// resolutionScopeOf maps a type-reference scope to a ResolutionScope coded
// value.
func (b *Builder) resolutionScopeOf(scope interface{}) (uint32, error) {
	switch s := scope.(type) {
	case nil:
		return 0, nil
	case *ModuleDefinition:
		return ResolutionScope.Encode(NewToken(Module, 1))
	case *ModuleReference, *AssemblyReference, *TypeReference:
		tok, ok := b.tokens[s]
		if !ok {
			return 0, fmt.Errorf("%w: resolution scope not reachable",
				ErrUnresolvableToken)
		}
		return ResolutionScope.Encode(tok)
	default:
		return 0, fmt.Errorf("%w: unsupported resolution scope",
			ErrUnresolvableToken)
	}
}

// sortTables orders every sorted table by its mandated key.
func (b *Builder) sortTables() error {
	for i := TableIndex(0); i < TableCount; i++ {
		if err := b.out.Tables.Table(i).Sort(); err != nil {
			return err
		}
	}
	return nil
}

// layout computes the frozen size snapshot, iterating until widths are
// stable. Growth is monotone; exceeding the defensive cap is a structural
// failure.
func (b *Builder) layout(md *Metadata) (*sizeSet, error) {
	sizes := &sizeSet{rowCounts: md.Tables.rowCounts()}
	for iter := 0; ; iter++ {
		if iter >= b.maxIterations {
			return nil, fmt.Errorf("%w: table layout did not converge",
				ErrBadImageFormat)
		}
		flags := uint8(0)
		if md.Strings.Len() > 0xFFFF {
			flags |= HeapSizesWideStrings
		}
		if md.GUID.Len() > 0xFFFF {
			flags |= HeapSizesWideGUID
		}
		if md.Blob.Len() > 0xFFFF {
			flags |= HeapSizesWideBlob
		}
		if flags == sizes.heapFlags && iter > 0 {
			return sizes, nil
		}
		sizes.heapFlags = flags
	}
}

// emitTableStream serialises the #~ stream at the frozen widths.
func (b *Builder) emitTableStream(md *Metadata, sizes *sizeSet) ([]byte, error) {
	w := NewWriter()
	valid := sizes.validMask()

	w.WriteUint32(0)
	w.WriteUint8(2)
	w.WriteUint8(0)
	w.WriteUint8(sizes.heapFlags)
	w.WriteUint8(1)
	w.WriteUint64(valid)
	w.WriteUint64(b.sorted)

	for i := TableIndex(0); i < TableCount; i++ {
		if valid&(1<<uint(i)) != 0 {
			w.WriteUint32(sizes.rowCounts[i])
		}
	}
	for i := TableIndex(0); i < TableCount; i++ {
		if valid&(1<<uint(i)) == 0 {
			continue
		}
		table := md.Tables.Table(i)
		rows, err := table.Rows()
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			encodeRow(w, row, table.Columns(), sizes)
		}
	}
	w.Align(4)
	return w.Bytes(), nil
}

// emitDirectory serialises the full metadata directory: storage signature,
// version string, stream headers, then the stream bodies.
func (b *Builder) emitDirectory(md *Metadata) ([]byte, error) {
	sizes, err := b.layout(md)
	if err != nil {
		return nil, err
	}
	md.TablesHeader = TableStreamHeader{
		MajorVersion: 2,
		HeapSizes:    sizes.heapFlags,
		RID:          1,
		MaskValid:    sizes.validMask(),
		Sorted:       b.sorted,
	}

	tableStream, err := b.emitTableStream(md, sizes)
	if err != nil {
		return nil, err
	}

	streams := []struct {
		name string
		body []byte
	}{
		{"#~", tableStream},
		{"#Strings", md.Strings.CreateStream()},
		{"#US", md.US.CreateStream()},
		{"#GUID", md.GUID.CreateStream()},
		{"#Blob", md.Blob.CreateStream()},
	}

	version := []byte(md.Header.Version)
	version = append(version, 0)
	for len(version)%4 != 0 {
		version = append(version, 0)
	}

	// Header size: storage signature, version, storage header, then one
	// 8-byte offset/size pair plus the padded name per stream.
	headerSize := uint32(16 + len(version) + 4)
	for _, s := range streams {
		nameLen := uint32(len(s.name)) + 1
		for nameLen%4 != 0 {
			nameLen++
		}
		headerSize += 8 + nameLen
	}

	w := NewWriter()
	w.WriteUint32(MetadataSignature)
	w.WriteUint16(md.Header.MajorVersion)
	w.WriteUint16(md.Header.MinorVersion)
	w.WriteUint32(0)
	w.WriteUint32(uint32(len(version)))
	w.WriteBytes(version)
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteUint16(uint16(len(streams)))

	offset := headerSize
	md.StreamHeaders = md.StreamHeaders[:0]
	for _, s := range streams {
		w.WriteUint32(offset)
		w.WriteUint32(uint32(len(s.body)))
		name := []byte(s.name)
		name = append(name, 0)
		for len(name)%4 != 0 {
			name = append(name, 0)
		}
		w.WriteBytes(name)
		md.StreamHeaders = append(md.StreamHeaders, StreamHeader{
			Offset: offset, Size: uint32(len(s.body)), Name: s.name,
		})
		offset += uint32(len(s.body))
	}
	for _, s := range streams {
		w.WriteBytes(s.body)
	}
	return w.Bytes(), nil
}
