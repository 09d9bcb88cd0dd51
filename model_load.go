// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

// Materialisation of the object model from a loaded image. Descriptor
// shells are created eagerly with their names; member collections, base
// types, and signatures stay behind lazy cells keyed by the row bookmarks
// stored on each shell.

// ModuleFromMetadata materialises the manifest module of a loaded
// directory.
func ModuleFromMetadata(md *Metadata) (*ModuleDefinition, error) {
	table := md.Tables.Table(Module)
	if table.Count() == 0 {
		return nil, ErrBadImageFormat
	}
	row, err := table.Get(1)
	if err != nil {
		return nil, err
	}
	mr := moduleRowFrom(row)

	m := &ModuleDefinition{md: md}
	if m.name, err = md.Strings.GetString(mr.Name); err != nil {
		return nil, err
	}
	if m.mvid, err = md.GUID.GetGUID(mr.Mvid); err != nil {
		return nil, err
	}

	if err := m.loadAssembly(); err != nil {
		return nil, err
	}
	if err := m.loadAssemblyRefs(); err != nil {
		return nil, err
	}
	if err := m.loadModuleRefs(); err != nil {
		return nil, err
	}
	if err := m.loadMemberRefs(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ModuleDefinition) loadAssembly() error {
	table := m.md.Tables.Table(Assembly)
	if table.Count() == 0 {
		return nil
	}
	row, err := table.Get(1)
	if err != nil {
		return err
	}
	ar := assemblyRowFrom(row)

	a := &AssemblyDefinition{
		module:    m,
		hashAlgID: ar.HashAlgID,
		flags:     ar.Flags,
		version: AssemblyVersion{
			Major:    ar.MajorVersion,
			Minor:    ar.MinorVersion,
			Build:    ar.BuildNumber,
			Revision: ar.RevisionNumber,
		},
	}
	if a.name, err = m.md.Strings.GetString(ar.Name); err != nil {
		return err
	}
	if a.culture, err = m.md.Strings.GetString(ar.Culture); err != nil {
		return err
	}
	if a.publicKey, err = m.md.Blob.GetBlob(ar.PublicKey); err != nil {
		return err
	}
	m.assembly = a
	return nil
}

func (m *ModuleDefinition) loadAssemblyRefs() error {
	table := m.md.Tables.Table(AssemblyRef)
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		if err != nil {
			return err
		}
		ar := assemblyRefRowFrom(row)
		ref := &AssemblyReference{
			module: m,
			flags:  ar.Flags,
			version: AssemblyVersion{
				Major:    ar.MajorVersion,
				Minor:    ar.MinorVersion,
				Build:    ar.BuildNumber,
				Revision: ar.RevisionNumber,
			},
		}
		if ref.name, err = m.md.Strings.GetString(ar.Name); err != nil {
			return err
		}
		if ref.culture, err = m.md.Strings.GetString(ar.Culture); err != nil {
			return err
		}
		if ref.publicKeyOrToken, err = m.md.Blob.GetBlob(ar.PublicKeyOrToken); err != nil {
			return err
		}
		if ref.hashValue, err = m.md.Blob.GetBlob(ar.HashValue); err != nil {
			return err
		}
		m.asmRefs = append(m.asmRefs, ref)
	}
	return nil
}

func (m *ModuleDefinition) loadModuleRefs() error {
	table := m.md.Tables.Table(ModuleRef)
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		if err != nil {
			return err
		}
		name, err := m.md.Strings.GetString(row[0])
		if err != nil {
			return err
		}
		m.moduleRefs = append(m.moduleRefs, &ModuleReference{
			module: m, name: name,
		})
	}
	return nil
}

func (m *ModuleDefinition) loadMemberRefs() error {
	table := m.md.Tables.Table(MemberRef)
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		if err != nil {
			return err
		}
		mr := memberRefRowFrom(row)
		ref := &MemberReference{module: m}
		if ref.name, err = m.md.Strings.GetString(mr.Name); err != nil {
			return err
		}
		if ref.sigBlob, err = m.md.Blob.GetBlob(mr.Signature); err != nil {
			return err
		}
		if parent, err := MemberRefParent.Decode(mr.Class); err == nil {
			ref.parent = m.typeDescriptor(parent)
		}
		m.memberRefs = append(m.memberRefs, ref)
	}
	return nil
}

// typeDescriptor resolves a TypeDefOrRef-shaped token to a descriptor, or
// nil when the token targets another table or is out of range.
func (m *ModuleDefinition) typeDescriptor(t Token) TypeDescriptor {
	rid := t.RID()
	switch t.Table() {
	case TypeDef:
		all := *m.types.Get(m.loadTypes)
		if rid >= 1 && rid <= uint32(len(all)) {
			return all[rid-1]
		}
	case TypeRef:
		refs := *m.typeRefs.Get(m.loadTypeRefs)
		if rid >= 1 && rid <= uint32(len(refs)) {
			return refs[rid-1]
		}
	case TypeSpec:
		specs := *m.typeSpecs.Get(m.loadTypeSpecs)
		if rid >= 1 && rid <= uint32(len(specs)) {
			return specs[rid-1]
		}
	}
	return nil
}

func (m *ModuleDefinition) loadTypes() []*TypeDefinition {
	if m.md == nil {
		return nil
	}
	table := m.md.Tables.Table(TypeDef)
	count := table.Count()
	types := make([]*TypeDefinition, 0, count)

	fieldCount := m.md.Tables.Table(Field).Count()
	methodCount := m.md.Tables.Table(Method).Count()

	for rid := uint32(1); rid <= count; rid++ {
		row, err := table.Get(rid)
		if err != nil {
			return types
		}
		tr := typeDefRowFrom(row)
		t := &TypeDefinition{
			module:       m,
			flags:        tr.Flags,
			srcRID:       rid,
			extendsCoded: tr.Extends,
			fieldFirst:   tr.FieldList,
			methodFirst:  tr.MethodList,
		}
		t.name, _ = m.md.Strings.GetString(tr.TypeName)
		t.namespace, _ = m.md.Strings.GetString(tr.TypeNamespace)
		types = append(types, t)
	}

	// Member lists are contiguous runs delimited by the next row's list
	// start; the last run extends to the table tail.
	for i, t := range types {
		t.fieldEnd = fieldCount + 1
		t.methodEnd = methodCount + 1
		if i+1 < len(types) {
			t.fieldEnd = types[i+1].fieldFirst
			t.methodEnd = types[i+1].methodFirst
		}
	}

	// Wire nesting relations so FullName composes before any lazy access.
	nested := m.md.Tables.Table(NestedClass)
	for rid := uint32(1); rid <= nested.Count(); rid++ {
		row, err := nested.Get(rid)
		if err != nil {
			break
		}
		inner, outer := row[0], row[1]
		if inner >= 1 && inner <= count && outer >= 1 && outer <= count {
			types[inner-1].declaring = types[outer-1]
		}
	}
	return types
}

func (t *TypeDefinition) loadBaseType() TypeDescriptor {
	if t.module == nil || t.module.md == nil || t.extendsCoded == 0 {
		return nil
	}
	tok, err := TypeDefOrRef.Decode(t.extendsCoded)
	if err != nil {
		return nil
	}
	return t.module.typeDescriptor(tok)
}

func (t *TypeDefinition) loadFields() []*FieldDefinition {
	if t.module == nil || t.module.md == nil || t.fieldFirst == 0 {
		return nil
	}
	md := t.module.md
	table := md.Tables.Table(Field)
	var fields []*FieldDefinition
	for rid := t.fieldFirst; rid < t.fieldEnd; rid++ {
		row, err := table.Get(rid)
		if err != nil {
			break
		}
		fr := fieldRowFrom(row)
		f := &FieldDefinition{declaring: t, flags: fr.Flags}
		f.name, _ = md.Strings.GetString(fr.Name)
		f.sigBlob, _ = md.Blob.GetBlob(fr.Signature)
		fields = append(fields, f)
	}
	return fields
}

func (t *TypeDefinition) loadMethods() []*MethodDefinition {
	if t.module == nil || t.module.md == nil || t.methodFirst == 0 {
		return nil
	}
	md := t.module.md
	table := md.Tables.Table(Method)
	paramCount := md.Tables.Table(Param).Count()
	var methods []*MethodDefinition
	for rid := t.methodFirst; rid < t.methodEnd; rid++ {
		row, err := table.Get(rid)
		if err != nil {
			break
		}
		mr := methodDefRowFrom(row)
		meth := &MethodDefinition{
			declaring:  t,
			flags:      mr.Flags,
			implFlags:  mr.ImplFlags,
			rva:        mr.RVA,
			paramFirst: mr.ParamList,
			paramEnd:   paramCount + 1,
		}
		if next, err := table.Get(rid + 1); err == nil {
			meth.paramEnd = methodDefRowFrom(next).ParamList
		}
		meth.name, _ = md.Strings.GetString(mr.Name)
		meth.sigBlob, _ = md.Blob.GetBlob(mr.Signature)
		methods = append(methods, meth)
	}
	return methods
}

func (m *MethodDefinition) loadParams() []*ParameterDefinition {
	if m.declaring == nil || m.declaring.module == nil ||
		m.declaring.module.md == nil || m.paramFirst == 0 {
		return nil
	}
	md := m.declaring.module.md
	table := md.Tables.Table(Param)
	var params []*ParameterDefinition
	for rid := m.paramFirst; rid < m.paramEnd; rid++ {
		row, err := table.Get(rid)
		if err != nil {
			break
		}
		pr := paramRowFrom(row)
		p := &ParameterDefinition{
			method:   m,
			flags:    pr.Flags,
			sequence: pr.Sequence,
		}
		p.name, _ = md.Strings.GetString(pr.Name)
		params = append(params, p)
	}
	return params
}

func (t *TypeDefinition) loadNested() []*TypeDefinition {
	if t.module == nil || t.module.md == nil || t.srcRID == 0 {
		return nil
	}
	all := *t.module.types.Get(t.module.loadTypes)
	var nested []*TypeDefinition
	for _, cand := range all {
		if cand.declaring == t {
			nested = append(nested, cand)
		}
	}
	return nested
}

func (t *TypeDefinition) loadInterfaces() []TypeDescriptor {
	if t.module == nil || t.module.md == nil || t.srcRID == 0 {
		return nil
	}
	table := t.module.md.Tables.Table(InterfaceImpl)
	var ifaces []TypeDescriptor
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		if err != nil {
			break
		}
		if row[0] != t.srcRID {
			continue
		}
		tok, err := TypeDefOrRef.Decode(row[1])
		if err != nil {
			continue
		}
		if d := t.module.typeDescriptor(tok); d != nil {
			ifaces = append(ifaces, d)
		}
	}
	return ifaces
}

func (m *ModuleDefinition) loadTypeRefs() []*TypeReference {
	if m.md == nil {
		return nil
	}
	table := m.md.Tables.Table(TypeRef)
	count := table.Count()
	refs := make([]*TypeReference, 0, count)
	scopes := make([]uint32, 0, count)

	for rid := uint32(1); rid <= count; rid++ {
		row, err := table.Get(rid)
		if err != nil {
			return refs
		}
		tr := typeRefRowFrom(row)
		ref := &TypeReference{module: m}
		ref.name, _ = m.md.Strings.GetString(tr.TypeName)
		ref.namespace, _ = m.md.Strings.GetString(tr.TypeNamespace)
		refs = append(refs, ref)
		scopes = append(scopes, tr.ResolutionScope)
	}

	// Scopes wire in a second pass: a nested reference may point at a
	// TypeRef row that follows it.
	for i, ref := range refs {
		tok, err := ResolutionScope.Decode(scopes[i])
		if err != nil || tok.IsNull() {
			continue
		}
		rid := tok.RID()
		switch tok.Table() {
		case Module:
			ref.scope = m
		case ModuleRef:
			if rid <= uint32(len(m.moduleRefs)) {
				ref.scope = m.moduleRefs[rid-1]
			}
		case AssemblyRef:
			if rid <= uint32(len(m.asmRefs)) {
				ref.scope = m.asmRefs[rid-1]
			}
		case TypeRef:
			if rid <= uint32(len(refs)) {
				ref.scope = refs[rid-1]
			}
		}
	}
	return refs
}

func (m *ModuleDefinition) loadTypeSpecs() []*TypeSpecification {
	if m.md == nil {
		return nil
	}
	table := m.md.Tables.Table(TypeSpec)
	var specs []*TypeSpecification
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		if err != nil {
			return specs
		}
		blob, err := m.md.Blob.GetBlob(row[0])
		if err != nil {
			return specs
		}
		specs = append(specs, &TypeSpecification{module: m, sigBlob: blob})
	}
	return specs
}
