// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"fmt"

	"github.com/google/uuid"
)

// The object model bridges raw rows and resolved references. Descriptors
// never store tokens: tokens are a serialisation-time concept computed by
// the builder from descriptor identity, so descriptors survive token
// reassignment across rewrites. Expensive sub-fields sit behind lazyCell
// so loaded images materialise on demand.

// TypeDescriptor is the uniform capability set shared by type definitions,
// type references, and type specifications.
type TypeDescriptor interface {
	Name() string
	FullName() string
	Module() *ModuleDefinition
}

// ModuleDefinition is the manifest module: the root every build starts
// from.
type ModuleDefinition struct {
	name string
	mvid uuid.UUID

	assembly   *AssemblyDefinition
	asmRefs    []*AssemblyReference
	moduleRefs []*ModuleReference
	memberRefs []*MemberReference

	md *Metadata

	types     lazyCell[[]*TypeDefinition]
	typeRefs  lazyCell[[]*TypeReference]
	typeSpecs lazyCell[[]*TypeSpecification]
}

// NewModule creates a fresh module with a random Mvid.
func NewModule(name string) *ModuleDefinition {
	m := &ModuleDefinition{name: name, mvid: uuid.New()}
	m.types.Set(nil)
	m.typeRefs.Set(nil)
	m.typeSpecs.Set(nil)
	return m
}

// Name returns the module name.
func (m *ModuleDefinition) Name() string { return m.name }

// SetName replaces the module name.
func (m *ModuleDefinition) SetName(name string) { m.name = name }

// Mvid returns the module version identifier.
func (m *ModuleDefinition) Mvid() uuid.UUID { return m.mvid }

// SetMvid replaces the module version identifier.
func (m *ModuleDefinition) SetMvid(g uuid.UUID) { m.mvid = g }

// Assembly returns the assembly manifest, or nil for a netmodule.
func (m *ModuleDefinition) Assembly() *AssemblyDefinition { return m.assembly }

// SetAssembly attaches an assembly manifest to the module.
func (m *ModuleDefinition) SetAssembly(a *AssemblyDefinition) {
	m.assembly = a
	if a != nil {
		a.module = m
	}
}

// AssemblyReferences returns the assembly references in declaration order.
func (m *ModuleDefinition) AssemblyReferences() []*AssemblyReference {
	return m.asmRefs
}

// AddAssemblyReference appends an assembly reference.
func (m *ModuleDefinition) AddAssemblyReference(r *AssemblyReference) {
	r.module = m
	m.asmRefs = append(m.asmRefs, r)
}

// ModuleReferences returns the module references in declaration order.
func (m *ModuleDefinition) ModuleReferences() []*ModuleReference {
	return m.moduleRefs
}

// AddModuleReference appends a module reference.
func (m *ModuleDefinition) AddModuleReference(r *ModuleReference) {
	r.module = m
	m.moduleRefs = append(m.moduleRefs, r)
}

// MemberReferences returns the member references in declaration order.
func (m *ModuleDefinition) MemberReferences() []*MemberReference {
	return m.memberRefs
}

// AddMemberReference appends a member reference.
func (m *ModuleDefinition) AddMemberReference(r *MemberReference) {
	r.module = m
	m.memberRefs = append(m.memberRefs, r)
}

// TopLevelTypes returns the non-nested type definitions in declaration
// order, materialising them from the source image on first access.
func (m *ModuleDefinition) TopLevelTypes() []*TypeDefinition {
	all := *m.types.Get(m.loadTypes)
	var top []*TypeDefinition
	for _, t := range all {
		if t.declaring == nil {
			top = append(top, t)
		}
	}
	return top
}

// AllTypes returns every type definition, nested included, in TypeDef row
// order.
func (m *ModuleDefinition) AllTypes() []*TypeDefinition {
	return *m.types.Get(m.loadTypes)
}

// AddType appends a top-level type and sets its back reference.
func (m *ModuleDefinition) AddType(t *TypeDefinition) {
	t.module = m
	all := *m.types.Get(m.loadTypes)
	m.types.Set(append(all, t))
}

// RemoveType detaches a top-level type, clearing its back reference.
func (m *ModuleDefinition) RemoveType(t *TypeDefinition) {
	all := *m.types.Get(m.loadTypes)
	for i, cand := range all {
		if cand == t {
			m.types.Set(append(all[:i:i], all[i+1:]...))
			t.module = nil
			return
		}
	}
}

// TypeReferences returns the type references in TypeRef row order.
func (m *ModuleDefinition) TypeReferences() []*TypeReference {
	return *m.typeRefs.Get(m.loadTypeRefs)
}

// AddTypeReference appends a type reference.
func (m *ModuleDefinition) AddTypeReference(r *TypeReference) {
	r.module = m
	refs := *m.typeRefs.Get(m.loadTypeRefs)
	m.typeRefs.Set(append(refs, r))
}

// TypeSpecifications returns the type specifications in TypeSpec row
// order.
func (m *ModuleDefinition) TypeSpecifications() []*TypeSpecification {
	return *m.typeSpecs.Get(m.loadTypeSpecs)
}

// AddTypeSpecification appends a type specification.
func (m *ModuleDefinition) AddTypeSpecification(s *TypeSpecification) {
	s.module = m
	specs := *m.typeSpecs.Get(m.loadTypeSpecs)
	m.typeSpecs.Set(append(specs, s))
}

// TypeFullName resolves a TypeDefOrRef token to a display name,
// implementing TypeNamer for signature rendering. Unresolvable tokens fall
// back to the hex form.
func (m *ModuleDefinition) TypeFullName(t Token) string {
	switch t.Table() {
	case TypeDef:
		all := *m.types.Get(m.loadTypes)
		if rid := t.RID(); rid >= 1 && rid <= uint32(len(all)) {
			return all[rid-1].FullName()
		}
	case TypeRef:
		refs := *m.typeRefs.Get(m.loadTypeRefs)
		if rid := t.RID(); rid >= 1 && rid <= uint32(len(refs)) {
			return refs[rid-1].FullName()
		}
	case TypeSpec:
		specs := *m.typeSpecs.Get(m.loadTypeSpecs)
		if rid := t.RID(); rid >= 1 && rid <= uint32(len(specs)) {
			return specs[rid-1].FullName()
		}
	}
	return t.String()
}

// TypeDefinition is a class or interface definition.
type TypeDefinition struct {
	module    *ModuleDefinition
	declaring *TypeDefinition

	namespace string
	name      string
	flags     uint32

	baseType   lazyCell[TypeDescriptor]
	fields     lazyCell[[]*FieldDefinition]
	methods    lazyCell[[]*MethodDefinition]
	nested     lazyCell[[]*TypeDefinition]
	interfaces lazyCell[[]TypeDescriptor]

	// Loader bookmarks into the source image; zero for fresh types.
	srcRID       uint32
	extendsCoded uint32
	fieldFirst   uint32
	fieldEnd     uint32
	methodFirst  uint32
	methodEnd    uint32
}

// NewType creates a fresh type definition.
func NewType(namespace, name string, flags uint32) *TypeDefinition {
	t := &TypeDefinition{namespace: namespace, name: name, flags: flags}
	t.baseType.Set(nil)
	t.fields.Set(nil)
	t.methods.Set(nil)
	t.nested.Set(nil)
	t.interfaces.Set(nil)
	return t
}

// Name returns the simple type name.
func (t *TypeDefinition) Name() string { return t.name }

// SetName replaces the simple type name.
func (t *TypeDefinition) SetName(name string) { t.name = name }

// Namespace returns the namespace, empty for the global one.
func (t *TypeDefinition) Namespace() string { return t.namespace }

// Flags returns the TypeAttributes bitmask.
func (t *TypeDefinition) Flags() uint32 { return t.flags }

// Module returns the owning module.
func (t *TypeDefinition) Module() *ModuleDefinition { return t.module }

// DeclaringType returns the enclosing type for nested types, else nil.
func (t *TypeDefinition) DeclaringType() *TypeDefinition { return t.declaring }

// FullName composes namespace, enclosing types, and name.
func (t *TypeDefinition) FullName() string {
	if t.declaring != nil {
		return t.declaring.FullName() + "+" + t.name
	}
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "." + t.name
}

// BaseType returns the extended type, or nil for interfaces and
// System.Object itself.
func (t *TypeDefinition) BaseType() TypeDescriptor {
	return *t.baseType.Get(t.loadBaseType)
}

// SetBaseType replaces the extended type.
func (t *TypeDefinition) SetBaseType(base TypeDescriptor) {
	t.baseType.Set(base)
}

// Fields returns the field definitions in declaration order.
func (t *TypeDefinition) Fields() []*FieldDefinition {
	return *t.fields.Get(t.loadFields)
}

// AddField appends a field and sets its back reference.
func (t *TypeDefinition) AddField(f *FieldDefinition) {
	f.declaring = t
	t.fields.Set(append(*t.fields.Get(t.loadFields), f))
}

// RemoveField detaches a field, clearing its back reference.
func (t *TypeDefinition) RemoveField(f *FieldDefinition) {
	fields := *t.fields.Get(t.loadFields)
	for i, cand := range fields {
		if cand == f {
			t.fields.Set(append(fields[:i:i], fields[i+1:]...))
			f.declaring = nil
			return
		}
	}
}

// Methods returns the method definitions in declaration order.
func (t *TypeDefinition) Methods() []*MethodDefinition {
	return *t.methods.Get(t.loadMethods)
}

// AddMethod appends a method and sets its back reference.
func (t *TypeDefinition) AddMethod(m *MethodDefinition) {
	m.declaring = t
	t.methods.Set(append(*t.methods.Get(t.loadMethods), m))
}

// RemoveMethod detaches a method, clearing its back reference.
func (t *TypeDefinition) RemoveMethod(m *MethodDefinition) {
	methods := *t.methods.Get(t.loadMethods)
	for i, cand := range methods {
		if cand == m {
			t.methods.Set(append(methods[:i:i], methods[i+1:]...))
			m.declaring = nil
			return
		}
	}
}

// NestedTypes returns the directly nested types.
func (t *TypeDefinition) NestedTypes() []*TypeDefinition {
	return *t.nested.Get(t.loadNested)
}

// AddNestedType appends a nested type and sets both back references.
func (t *TypeDefinition) AddNestedType(n *TypeDefinition) {
	n.declaring = t
	n.module = t.module
	t.nested.Set(append(*t.nested.Get(t.loadNested), n))
}

// Interfaces returns the implemented interfaces in declaration order.
func (t *TypeDefinition) Interfaces() []TypeDescriptor {
	return *t.interfaces.Get(t.loadInterfaces)
}

// AddInterface appends an implemented interface.
func (t *TypeDefinition) AddInterface(i TypeDescriptor) {
	t.interfaces.Set(append(*t.interfaces.Get(t.loadInterfaces), i))
}

// FieldDefinition is a field declared by a type.
type FieldDefinition struct {
	declaring *TypeDefinition
	name      string
	flags     uint16

	sig     lazyCell[*FieldSig]
	sigBlob []byte
}

// NewField creates a fresh field definition.
func NewField(name string, flags uint16, sig *FieldSig) *FieldDefinition {
	f := &FieldDefinition{name: name, flags: flags}
	f.sig.Set(sig)
	return f
}

// Name returns the field name.
func (f *FieldDefinition) Name() string { return f.name }

// Flags returns the FieldAttributes bitmask.
func (f *FieldDefinition) Flags() uint16 { return f.flags }

// DeclaringType returns the owning type.
func (f *FieldDefinition) DeclaringType() *TypeDefinition { return f.declaring }

// Module returns the owning module.
func (f *FieldDefinition) Module() *ModuleDefinition {
	if f.declaring == nil {
		return nil
	}
	return f.declaring.module
}

// FullName composes the declaring type's full name and the field name.
func (f *FieldDefinition) FullName() string {
	if f.declaring == nil {
		return f.name
	}
	return f.declaring.FullName() + "::" + f.name
}

// Signature returns the field signature, decoding it from the source blob
// on first access.
func (f *FieldDefinition) Signature() *FieldSig {
	return *f.sig.Get(func() *FieldSig {
		sig, err := DecodeFieldSignature(NewReader(f.sigBlob))
		if err != nil {
			return nil
		}
		return sig
	})
}

// SetSignature replaces the field signature.
func (f *FieldDefinition) SetSignature(s *FieldSig) { f.sig.Set(s) }

// MethodDefinition is a method declared by a type.
type MethodDefinition struct {
	declaring *TypeDefinition
	name      string
	flags     uint16
	implFlags uint16
	rva       uint32

	sig    lazyCell[*MethodSig]
	params lazyCell[[]*ParameterDefinition]

	sigBlob    []byte
	paramFirst uint32
	paramEnd   uint32
}

// NewMethod creates a fresh method definition.
func NewMethod(name string, flags uint16, sig *MethodSig) *MethodDefinition {
	m := &MethodDefinition{name: name, flags: flags}
	m.sig.Set(sig)
	m.params.Set(nil)
	return m
}

// Name returns the method name.
func (m *MethodDefinition) Name() string { return m.name }

// Flags returns the MethodAttributes bitmask.
func (m *MethodDefinition) Flags() uint16 { return m.flags }

// ImplFlags returns the MethodImplAttributes bitmask.
func (m *MethodDefinition) ImplFlags() uint16 { return m.implFlags }

// RVA returns the method body address, zero for abstract methods.
func (m *MethodDefinition) RVA() uint32 { return m.rva }

// SetRVA replaces the method body address.
func (m *MethodDefinition) SetRVA(rva uint32) { m.rva = rva }

// DeclaringType returns the owning type.
func (m *MethodDefinition) DeclaringType() *TypeDefinition { return m.declaring }

// Module returns the owning module.
func (m *MethodDefinition) Module() *ModuleDefinition {
	if m.declaring == nil {
		return nil
	}
	return m.declaring.module
}

// FullName composes the declaring type's full name and the method name.
func (m *MethodDefinition) FullName() string {
	if m.declaring == nil {
		return m.name
	}
	return m.declaring.FullName() + "::" + m.name
}

// Signature returns the method signature, decoding it from the source blob
// on first access.
func (m *MethodDefinition) Signature() *MethodSig {
	return *m.sig.Get(func() *MethodSig {
		sig, err := DecodeMethodSignature(NewReader(m.sigBlob))
		if err != nil {
			return nil
		}
		return sig
	})
}

// SetSignature replaces the method signature.
func (m *MethodDefinition) SetSignature(s *MethodSig) { m.sig.Set(s) }

// Parameters returns the parameter definitions in sequence order.
func (m *MethodDefinition) Parameters() []*ParameterDefinition {
	return *m.params.Get(m.loadParams)
}

// AddParameter appends a parameter and sets its back reference.
func (m *MethodDefinition) AddParameter(p *ParameterDefinition) {
	p.method = m
	m.params.Set(append(m.Parameters(), p))
}

// ParameterDefinition names one parameter of a method.
type ParameterDefinition struct {
	method   *MethodDefinition
	name     string
	flags    uint16
	sequence uint16
}

// NewParameter creates a fresh parameter definition. Sequence 0 denotes
// the return value.
func NewParameter(name string, sequence, flags uint16) *ParameterDefinition {
	return &ParameterDefinition{name: name, sequence: sequence, flags: flags}
}

// Name returns the parameter name.
func (p *ParameterDefinition) Name() string { return p.name }

// Sequence returns the 1-based parameter ordinal, 0 for the return value.
func (p *ParameterDefinition) Sequence() uint16 { return p.sequence }

// Flags returns the ParamAttributes bitmask.
func (p *ParameterDefinition) Flags() uint16 { return p.flags }

// Method returns the owning method.
func (p *ParameterDefinition) Method() *MethodDefinition { return p.method }

// TypeReference is a reference to a type in another scope.
type TypeReference struct {
	module    *ModuleDefinition
	scope     interface{} // *AssemblyReference, *ModuleReference, *ModuleDefinition, or *TypeReference for nesting
	namespace string
	name      string
}

// NewTypeReference creates a type reference resolved in the given scope.
func NewTypeReference(scope interface{}, namespace, name string) *TypeReference {
	return &TypeReference{scope: scope, namespace: namespace, name: name}
}

// Name returns the simple type name.
func (t *TypeReference) Name() string { return t.name }

// Namespace returns the namespace.
func (t *TypeReference) Namespace() string { return t.namespace }

// Module returns the module the reference lives in.
func (t *TypeReference) Module() *ModuleDefinition { return t.module }

// Scope returns the resolution scope.
func (t *TypeReference) Scope() interface{} { return t.scope }

// FullName composes the enclosing references, namespace, and name.
func (t *TypeReference) FullName() string {
	if enclosing, ok := t.scope.(*TypeReference); ok {
		return enclosing.FullName() + "+" + t.name
	}
	if t.namespace == "" {
		return t.name
	}
	return t.namespace + "." + t.name
}

// TypeSpecification wraps a type signature as a referencable entity.
type TypeSpecification struct {
	module *ModuleDefinition

	sig     lazyCell[*TypeSig]
	sigBlob []byte
}

// NewTypeSpecification creates a specification for the given signature.
func NewTypeSpecification(sig *TypeSig) *TypeSpecification {
	s := &TypeSpecification{}
	s.sig.Set(sig)
	return s
}

// Module returns the owning module.
func (t *TypeSpecification) Module() *ModuleDefinition { return t.module }

// Signature returns the wrapped type signature, decoding it from the
// source blob on first access.
func (t *TypeSpecification) Signature() *TypeSig {
	return *t.sig.Get(func() *TypeSig {
		sig, err := DecodeTypeSignature(NewReader(t.sigBlob))
		if err != nil {
			return nil
		}
		return sig
	})
}

// Name returns the composed signature name.
func (t *TypeSpecification) Name() string {
	return t.FullName()
}

// FullName returns the composed signature name.
func (t *TypeSpecification) FullName() string {
	sig := t.Signature()
	if sig == nil {
		return ""
	}
	return sig.Name(t.module)
}

// MemberReference references a field or method owned by another type.
type MemberReference struct {
	module *ModuleDefinition
	parent TypeDescriptor
	name   string

	sigBlob []byte
}

// NewMemberReference creates a member reference with a raw signature blob.
func NewMemberReference(parent TypeDescriptor, name string,
	sigBlob []byte) *MemberReference {
	return &MemberReference{parent: parent, name: name, sigBlob: sigBlob}
}

// Name returns the member name.
func (m *MemberReference) Name() string { return m.name }

// Parent returns the declaring type descriptor.
func (m *MemberReference) Parent() TypeDescriptor { return m.parent }

// Module returns the module the reference lives in.
func (m *MemberReference) Module() *ModuleDefinition { return m.module }

// FullName composes the parent's full name and the member name.
func (m *MemberReference) FullName() string {
	if m.parent == nil {
		return m.name
	}
	return m.parent.FullName() + "::" + m.name
}

// SignatureBlob returns the raw signature bytes.
func (m *MemberReference) SignatureBlob() []byte { return m.sigBlob }

// IsField reports whether the signature is a field signature.
func (m *MemberReference) IsField() bool {
	return len(m.sigBlob) > 0 &&
		m.sigBlob[0]&CallConvMask == CallConvField
}

// AssemblyVersion is the four-part version of an assembly manifest.
type AssemblyVersion struct {
	Major    uint16
	Minor    uint16
	Build    uint16
	Revision uint16
}

// AssemblyDefinition is the assembly manifest of the prime module.
type AssemblyDefinition struct {
	module *ModuleDefinition

	name      string
	culture   string
	version   AssemblyVersion
	flags     uint32
	hashAlgID uint32
	publicKey []byte
}

// NewAssembly creates a fresh assembly manifest.
func NewAssembly(name string, version AssemblyVersion) *AssemblyDefinition {
	return &AssemblyDefinition{name: name, version: version}
}

// Name returns the assembly simple name.
func (a *AssemblyDefinition) Name() string { return a.name }

// Culture returns the culture string, empty for neutral.
func (a *AssemblyDefinition) Culture() string { return a.culture }

// SetCulture replaces the culture string.
func (a *AssemblyDefinition) SetCulture(c string) { a.culture = c }

// Version returns the assembly version.
func (a *AssemblyDefinition) Version() AssemblyVersion { return a.version }

// Flags returns the AssemblyFlags bitmask.
func (a *AssemblyDefinition) Flags() uint32 { return a.flags }

// HashAlgID returns the hash algorithm identifier.
func (a *AssemblyDefinition) HashAlgID() uint32 { return a.hashAlgID }

// PublicKey returns the raw public key blob.
func (a *AssemblyDefinition) PublicKey() []byte { return a.publicKey }

// SetPublicKey replaces the public key blob.
func (a *AssemblyDefinition) SetPublicKey(k []byte) { a.publicKey = k }

// Module returns the manifest module.
func (a *AssemblyDefinition) Module() *ModuleDefinition { return a.module }

// FullName composes name, version, and culture.
func (a *AssemblyDefinition) FullName() string {
	culture := a.culture
	if culture == "" {
		culture = "neutral"
	}
	return a.name + ", Version=" + a.version.String() +
		", Culture=" + culture
}

// String renders the version in dotted form.
func (v AssemblyVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// PublicKeyToken derives the short token of the public key. The operation
// is reserved and raises ErrNotImplemented.
func (a *AssemblyDefinition) PublicKeyToken() ([]byte, error) {
	return nil, ErrNotImplemented
}

// AssemblyReference references another assembly by name and version.
type AssemblyReference struct {
	module *ModuleDefinition

	name             string
	culture          string
	version          AssemblyVersion
	flags            uint32
	publicKeyOrToken []byte
	hashValue        []byte
}

// NewAssemblyReference creates a fresh assembly reference.
func NewAssemblyReference(name string,
	version AssemblyVersion) *AssemblyReference {
	return &AssemblyReference{name: name, version: version}
}

// Name returns the referenced assembly's simple name.
func (a *AssemblyReference) Name() string { return a.name }

// Culture returns the culture string, empty for neutral.
func (a *AssemblyReference) Culture() string { return a.culture }

// Version returns the referenced version.
func (a *AssemblyReference) Version() AssemblyVersion { return a.version }

// Flags returns the AssemblyFlags bitmask.
func (a *AssemblyReference) Flags() uint32 { return a.flags }

// PublicKeyOrToken returns the raw key-or-token blob.
func (a *AssemblyReference) PublicKeyOrToken() []byte {
	return a.publicKeyOrToken
}

// SetPublicKeyOrToken replaces the key-or-token blob.
func (a *AssemblyReference) SetPublicKeyOrToken(b []byte) {
	a.publicKeyOrToken = b
}

// Module returns the module the reference lives in.
func (a *AssemblyReference) Module() *ModuleDefinition { return a.module }

// ModuleReference references an external unmanaged or managed module by
// file name.
type ModuleReference struct {
	module *ModuleDefinition
	name   string
}

// NewModuleReference creates a fresh module reference.
func NewModuleReference(name string) *ModuleReference {
	return &ModuleReference{name: name}
}

// Name returns the referenced module's file name.
func (m *ModuleReference) Name() string { return m.name }

// Module returns the module the reference lives in.
func (m *ModuleReference) Module() *ModuleDefinition { return m.module }
