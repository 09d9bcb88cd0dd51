// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"fmt"
	"strings"
)

// ElementType is an element-type tag of ECMA-335 II.23.1.16, the first byte
// of every type signature.
type ElementType uint8

// Element types.
const (
	ElemEnd         ElementType = 0x00
	ElemVoid        ElementType = 0x01
	ElemBoolean     ElementType = 0x02
	ElemChar        ElementType = 0x03
	ElemI1          ElementType = 0x04
	ElemU1          ElementType = 0x05
	ElemI2          ElementType = 0x06
	ElemU2          ElementType = 0x07
	ElemI4          ElementType = 0x08
	ElemU4          ElementType = 0x09
	ElemI8          ElementType = 0x0A
	ElemU8          ElementType = 0x0B
	ElemR4          ElementType = 0x0C
	ElemR8          ElementType = 0x0D
	ElemString      ElementType = 0x0E
	ElemPtr         ElementType = 0x0F
	ElemByRef       ElementType = 0x10
	ElemValueType   ElementType = 0x11
	ElemClass       ElementType = 0x12
	ElemVar         ElementType = 0x13
	ElemArray       ElementType = 0x14
	ElemGenericInst ElementType = 0x15
	ElemTypedByRef  ElementType = 0x16
	ElemI           ElementType = 0x18
	ElemU           ElementType = 0x19
	ElemFnPtr       ElementType = 0x1B
	ElemObject      ElementType = 0x1C
	ElemSzArray     ElementType = 0x1D
	ElemMVar        ElementType = 0x1E
	ElemCModReqd    ElementType = 0x1F
	ElemCModOpt     ElementType = 0x20
	ElemSentinel    ElementType = 0x41
	ElemPinned      ElementType = 0x45
)

// Calling-convention flags of the leading byte of member signatures.
const (
	CallConvDefault     = 0x00
	CallConvC           = 0x01
	CallConvStdCall     = 0x02
	CallConvThisCall    = 0x03
	CallConvFastCall    = 0x04
	CallConvVararg      = 0x05
	CallConvField       = 0x06
	CallConvLocalSig    = 0x07
	CallConvProperty    = 0x08
	CallConvGenericInst = 0x0A
	CallConvMask        = 0x0F

	SigGeneric      = 0x10
	SigHasThis      = 0x20
	SigExplicitThis = 0x40
)

// DefaultMaxSignatureDepth bounds recursive signature decoding.
const DefaultMaxSignatureDepth = 100

// recursionGuard is a plain depth counter threaded through decode calls.
// The signature grammar is a tree, so a counter suffices; no visited set.
type recursionGuard struct {
	depth uint32
	max   uint32
}

func newRecursionGuard(max uint32) *recursionGuard {
	if max == 0 {
		max = DefaultMaxSignatureDepth
	}
	return &recursionGuard{max: max}
}

func (g *recursionGuard) enter() error {
	g.depth++
	if g.depth > g.max {
		return fmt.Errorf("%w: recursion depth exceeds %d",
			ErrMalformedSignature, g.max)
	}
	return nil
}

func (g *recursionGuard) exit() {
	g.depth--
}

// primitiveNames maps leaf element types to their system type names.
var primitiveNames = map[ElementType]string{
	ElemVoid:       "System.Void",
	ElemBoolean:    "System.Boolean",
	ElemChar:       "System.Char",
	ElemI1:         "System.SByte",
	ElemU1:         "System.Byte",
	ElemI2:         "System.Int16",
	ElemU2:         "System.UInt16",
	ElemI4:         "System.Int32",
	ElemU4:         "System.UInt32",
	ElemI8:         "System.Int64",
	ElemU8:         "System.UInt64",
	ElemR4:         "System.Single",
	ElemR8:         "System.Double",
	ElemString:     "System.String",
	ElemObject:     "System.Object",
	ElemTypedByRef: "System.TypedReference",
	ElemI:          "System.IntPtr",
	ElemU:          "System.UIntPtr",
}

// TypeNamer resolves a TypeDefOrRef token to a display name. The object
// model's ModuleDefinition implements it; a nil namer falls back to the hex
// token form.
type TypeNamer interface {
	TypeFullName(t Token) string
}

// TypeSig is a node of the recursive type-signature tree, a flat tagged sum
// over the element-type domain. Only the fields the Kind requires are set.
type TypeSig struct {
	Kind ElementType

	// Referenced type for ElemClass, ElemValueType, and the modifier kinds.
	Ref Token

	// Child signature for ElemPtr, ElemByRef, ElemSzArray, ElemPinned, the
	// modifier kinds, and the element type of ElemArray.
	Inner *TypeSig

	// General array shape for ElemArray.
	Rank        uint32
	Sizes       []uint32
	LowerBounds []int32

	// Generic parameter index for ElemVar and ElemMVar.
	Index uint32

	// Instantiated definition and arguments for ElemGenericInst.
	GenericArgs []*TypeSig

	// Embedded method signature for ElemFnPtr.
	Method *MethodSig
}

// encodeTypeDefOrRef writes a token as a compressed TypeDefOrRef coded
// index.
func encodeTypeDefOrRef(w *Writer, t Token) error {
	v, err := TypeDefOrRef.Encode(t)
	if err != nil {
		return err
	}
	return w.WriteCompressedUint(v)
}

func decodeTypeDefOrRef(r *Reader) (Token, error) {
	v, err := r.ReadCompressedUint()
	if err != nil {
		return 0, err
	}
	t, err := TypeDefOrRef.Decode(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid TypeDefOrRef tag", ErrMalformedSignature)
	}
	return t, nil
}

func typeDefOrRefSize(t Token) uint32 {
	v, err := TypeDefOrRef.Encode(t)
	if err != nil {
		return 0
	}
	return CompressedUintSize(v)
}

// DecodeTypeSignature decodes one type signature from the reader with the
// default recursion bound.
func DecodeTypeSignature(r *Reader) (*TypeSig, error) {
	return decodeTypeSig(r, newRecursionGuard(0))
}

// DecodeTypeSignatureDepth decodes one type signature with a custom
// recursion bound.
func DecodeTypeSignatureDepth(r *Reader, maxDepth uint32) (*TypeSig, error) {
	return decodeTypeSig(r, newRecursionGuard(maxDepth))
}

// clampCount bounds an element count read from a hostile blob: every
// element costs at least one byte, so the remaining stream length caps any
// honest count and a preallocation beyond it is wasted.
func clampCount(n uint32, r *Reader) int {
	if n > r.Remaining() {
		return int(r.Remaining())
	}
	return int(n)
}

// childTypeSig decodes a nested type signature, charging one level of
// recursion for the descent.
func childTypeSig(r *Reader, g *recursionGuard) (*TypeSig, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.exit()
	return decodeTypeSig(r, g)
}

func decodeTypeSig(r *Reader, g *recursionGuard) (*TypeSig, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	kind := ElementType(b)
	sig := &TypeSig{Kind: kind}

	switch kind {
	case ElemVoid, ElemBoolean, ElemChar, ElemI1, ElemU1, ElemI2, ElemU2,
		ElemI4, ElemU4, ElemI8, ElemU8, ElemR4, ElemR8, ElemString,
		ElemObject, ElemTypedByRef, ElemI, ElemU, ElemSentinel, ElemEnd:
		return sig, nil

	case ElemClass, ElemValueType:
		if sig.Ref, err = decodeTypeDefOrRef(r); err != nil {
			return nil, err
		}
		return sig, nil

	case ElemPtr, ElemByRef, ElemSzArray, ElemPinned:
		if sig.Inner, err = childTypeSig(r, g); err != nil {
			return nil, err
		}
		return sig, nil

	case ElemArray:
		if sig.Inner, err = childTypeSig(r, g); err != nil {
			return nil, err
		}
		if sig.Rank, err = r.ReadCompressedUint(); err != nil {
			return nil, err
		}
		numSizes, err := r.ReadCompressedUint()
		if err != nil {
			return nil, err
		}
		sig.Sizes = make([]uint32, 0, clampCount(numSizes, r))
		for i := uint32(0); i < numSizes; i++ {
			v, err := r.ReadCompressedUint()
			if err != nil {
				return nil, err
			}
			sig.Sizes = append(sig.Sizes, v)
		}
		numLoBounds, err := r.ReadCompressedUint()
		if err != nil {
			return nil, err
		}
		sig.LowerBounds = make([]int32, 0, clampCount(numLoBounds, r))
		for i := uint32(0); i < numLoBounds; i++ {
			v, err := r.ReadCompressedInt()
			if err != nil {
				return nil, err
			}
			sig.LowerBounds = append(sig.LowerBounds, v)
		}
		return sig, nil

	case ElemGenericInst:
		if sig.Inner, err = childTypeSig(r, g); err != nil {
			return nil, err
		}
		if sig.Inner.Kind != ElemClass && sig.Inner.Kind != ElemValueType {
			return nil, fmt.Errorf(
				"%w: generic instantiation of non class/valuetype",
				ErrMalformedSignature)
		}
		argc, err := r.ReadCompressedUint()
		if err != nil {
			return nil, err
		}
		sig.GenericArgs = make([]*TypeSig, 0, clampCount(argc, r))
		for i := uint32(0); i < argc; i++ {
			arg, err := childTypeSig(r, g)
			if err != nil {
				return nil, err
			}
			sig.GenericArgs = append(sig.GenericArgs, arg)
		}
		return sig, nil

	case ElemVar, ElemMVar:
		if sig.Index, err = r.ReadCompressedUint(); err != nil {
			return nil, err
		}
		return sig, nil

	case ElemFnPtr:
		// The embedded method signature recurses through its return and
		// parameter types; the descent charges one level.
		if err = g.enter(); err != nil {
			return nil, err
		}
		sig.Method, err = decodeMethodSig(r, g)
		g.exit()
		if err != nil {
			return nil, err
		}
		return sig, nil

	case ElemCModReqd, ElemCModOpt:
		if sig.Ref, err = decodeTypeDefOrRef(r); err != nil {
			return nil, err
		}
		if sig.Inner, err = childTypeSig(r, g); err != nil {
			return nil, err
		}
		return sig, nil

	default:
		return nil, fmt.Errorf("%w: unknown element type 0x%02X",
			ErrMalformedSignature, b)
	}
}

// Encode emits the signature as the symmetric inverse of decoding.
func (s *TypeSig) Encode(w *Writer) error {
	w.WriteUint8(uint8(s.Kind))

	switch s.Kind {
	case ElemClass, ElemValueType:
		return encodeTypeDefOrRef(w, s.Ref)

	case ElemPtr, ElemByRef, ElemSzArray, ElemPinned:
		return s.Inner.Encode(w)

	case ElemArray:
		if err := s.Inner.Encode(w); err != nil {
			return err
		}
		if err := w.WriteCompressedUint(s.Rank); err != nil {
			return err
		}
		if err := w.WriteCompressedUint(uint32(len(s.Sizes))); err != nil {
			return err
		}
		for _, v := range s.Sizes {
			if err := w.WriteCompressedUint(v); err != nil {
				return err
			}
		}
		if err := w.WriteCompressedUint(uint32(len(s.LowerBounds))); err != nil {
			return err
		}
		for _, v := range s.LowerBounds {
			if err := w.WriteCompressedInt(v); err != nil {
				return err
			}
		}
		return nil

	case ElemGenericInst:
		if err := s.Inner.Encode(w); err != nil {
			return err
		}
		if err := w.WriteCompressedUint(uint32(len(s.GenericArgs))); err != nil {
			return err
		}
		for _, a := range s.GenericArgs {
			if err := a.Encode(w); err != nil {
				return err
			}
		}
		return nil

	case ElemVar, ElemMVar:
		return w.WriteCompressedUint(s.Index)

	case ElemFnPtr:
		return s.Method.Encode(w)

	case ElemCModReqd, ElemCModOpt:
		if err := encodeTypeDefOrRef(w, s.Ref); err != nil {
			return err
		}
		return s.Inner.Encode(w)

	default:
		return nil
	}
}

// PhysicalLen computes the encoded size without emitting: the tag byte plus
// the compressed sizes of every operand and child.
func (s *TypeSig) PhysicalLen() uint32 {
	n := uint32(1)

	switch s.Kind {
	case ElemClass, ElemValueType:
		n += typeDefOrRefSize(s.Ref)
	case ElemPtr, ElemByRef, ElemSzArray, ElemPinned:
		n += s.Inner.PhysicalLen()
	case ElemArray:
		n += s.Inner.PhysicalLen()
		n += CompressedUintSize(s.Rank)
		n += CompressedUintSize(uint32(len(s.Sizes)))
		for _, v := range s.Sizes {
			n += CompressedUintSize(v)
		}
		n += CompressedUintSize(uint32(len(s.LowerBounds)))
		for _, v := range s.LowerBounds {
			n += compressedIntSize(v)
		}
	case ElemGenericInst:
		n += s.Inner.PhysicalLen()
		n += CompressedUintSize(uint32(len(s.GenericArgs)))
		for _, a := range s.GenericArgs {
			n += a.PhysicalLen()
		}
	case ElemVar, ElemMVar:
		n += CompressedUintSize(s.Index)
	case ElemFnPtr:
		n += s.Method.PhysicalLen()
	case ElemCModReqd, ElemCModOpt:
		n += typeDefOrRefSize(s.Ref)
		n += s.Inner.PhysicalLen()
	}
	return n
}

func compressedIntSize(v int32) uint32 {
	switch {
	case v >= -0x40 && v <= 0x3F:
		return 1
	case v >= -0x2000 && v <= 0x1FFF:
		return 2
	default:
		return 4
	}
}

// Name composes the display name of the signature, resolving token
// references through the namer; a nil namer yields hex token forms.
func (s *TypeSig) Name(n TypeNamer) string {
	refName := func(t Token) string {
		if n != nil {
			return n.TypeFullName(t)
		}
		return t.String()
	}

	switch s.Kind {
	case ElemClass, ElemValueType:
		return refName(s.Ref)
	case ElemPtr:
		return s.Inner.Name(n) + "*"
	case ElemByRef:
		return s.Inner.Name(n) + "&"
	case ElemSzArray:
		return s.Inner.Name(n) + "[]"
	case ElemArray:
		rank := int(s.Rank)
		if rank < 1 {
			rank = 1
		}
		return s.Inner.Name(n) + "[" + strings.Repeat(",", rank-1) + "]"
	case ElemGenericInst:
		args := make([]string, len(s.GenericArgs))
		for i, a := range s.GenericArgs {
			args[i] = a.Name(n)
		}
		return s.Inner.Name(n) + "<" + strings.Join(args, ",") + ">"
	case ElemVar:
		return fmt.Sprintf("!%d", s.Index)
	case ElemMVar:
		return fmt.Sprintf("!!%d", s.Index)
	case ElemFnPtr:
		params := make([]string, len(s.Method.Params))
		for i, p := range s.Method.Params {
			params[i] = p.Name(n)
		}
		return "method " + s.Method.ReturnType.Name(n) +
			" *(" + strings.Join(params, ",") + ")"
	case ElemCModReqd:
		return s.Inner.Name(n) + " modreq(" + refName(s.Ref) + ")"
	case ElemCModOpt:
		return s.Inner.Name(n) + " modopt(" + refName(s.Ref) + ")"
	case ElemPinned:
		return s.Inner.Name(n) + " pinned"
	case ElemSentinel:
		return "..."
	default:
		if name, ok := primitiveNames[s.Kind]; ok {
			return name
		}
		return fmt.Sprintf("ELEMENT_TYPE_0x%02X", uint8(s.Kind))
	}
}

// MethodSig is a method or function-pointer signature: calling convention,
// optional generic arity, return type, and parameters. SentinelIndex marks
// the boundary between fixed and vararg parameters, or -1 when absent.
type MethodSig struct {
	Flags             uint8
	GenericParamCount uint32
	ReturnType        *TypeSig
	Params            []*TypeSig
	SentinelIndex     int
}

// HasThis reports whether the signature carries an implicit this pointer.
func (m *MethodSig) HasThis() bool {
	return m.Flags&SigHasThis != 0
}

// IsGeneric reports whether the method declares generic parameters.
func (m *MethodSig) IsGeneric() bool {
	return m.Flags&SigGeneric != 0
}

// CallConv returns the calling-convention nibble.
func (m *MethodSig) CallConv() uint8 {
	return m.Flags & CallConvMask
}

// DecodeMethodSignature decodes a method signature with the default
// recursion bound.
func DecodeMethodSignature(r *Reader) (*MethodSig, error) {
	return decodeMethodSig(r, newRecursionGuard(0))
}

func decodeMethodSig(r *Reader, g *recursionGuard) (*MethodSig, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	sig := &MethodSig{Flags: flags, SentinelIndex: -1}

	if flags&SigGeneric != 0 {
		if sig.GenericParamCount, err = r.ReadCompressedUint(); err != nil {
			return nil, err
		}
	}
	paramCount, err := r.ReadCompressedUint()
	if err != nil {
		return nil, err
	}
	if sig.ReturnType, err = decodeTypeSig(r, g); err != nil {
		return nil, err
	}
	sig.Params = make([]*TypeSig, 0, clampCount(paramCount, r))
	for i := uint32(0); i < paramCount; i++ {
		p, err := decodeTypeSig(r, g)
		if err != nil {
			return nil, err
		}
		// The sentinel splits fixed from vararg parameters and does not
		// count toward the declared parameter count.
		if p.Kind == ElemSentinel {
			sig.SentinelIndex = int(i)
			i--
			continue
		}
		sig.Params = append(sig.Params, p)
	}
	return sig, nil
}

// Encode emits the method signature.
func (m *MethodSig) Encode(w *Writer) error {
	w.WriteUint8(m.Flags)
	if m.IsGeneric() {
		if err := w.WriteCompressedUint(m.GenericParamCount); err != nil {
			return err
		}
	}
	if err := w.WriteCompressedUint(uint32(len(m.Params))); err != nil {
		return err
	}
	if err := m.ReturnType.Encode(w); err != nil {
		return err
	}
	for i, p := range m.Params {
		if m.SentinelIndex == i {
			w.WriteUint8(uint8(ElemSentinel))
		}
		if err := p.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (m *MethodSig) PhysicalLen() uint32 {
	n := uint32(1)
	if m.IsGeneric() {
		n += CompressedUintSize(m.GenericParamCount)
	}
	n += CompressedUintSize(uint32(len(m.Params)))
	n += m.ReturnType.PhysicalLen()
	for i, p := range m.Params {
		if m.SentinelIndex == i {
			n++
		}
		n += p.PhysicalLen()
	}
	return n
}

// FieldSig is a field signature: the FIELD calling convention wrapping one
// type.
type FieldSig struct {
	Type *TypeSig
}

// DecodeFieldSignature decodes a field signature.
func DecodeFieldSignature(r *Reader) (*FieldSig, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&CallConvMask != CallConvField {
		return nil, fmt.Errorf("%w: not a field signature",
			ErrMalformedSignature)
	}
	t, err := decodeTypeSig(r, newRecursionGuard(0))
	if err != nil {
		return nil, err
	}
	return &FieldSig{Type: t}, nil
}

// Encode emits the field signature.
func (f *FieldSig) Encode(w *Writer) error {
	w.WriteUint8(CallConvField)
	return f.Type.Encode(w)
}

// PhysicalLen computes the encoded size without emitting.
func (f *FieldSig) PhysicalLen() uint32 {
	return 1 + f.Type.PhysicalLen()
}

// LocalVarSig is a local-variable signature of a method body.
type LocalVarSig struct {
	Locals []*TypeSig
}

// DecodeLocalVarSignature decodes a LOCAL_SIG blob.
func DecodeLocalVarSignature(r *Reader) (*LocalVarSig, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&CallConvMask != CallConvLocalSig {
		return nil, fmt.Errorf("%w: not a local variable signature",
			ErrMalformedSignature)
	}
	count, err := r.ReadCompressedUint()
	if err != nil {
		return nil, err
	}
	g := newRecursionGuard(0)
	sig := &LocalVarSig{Locals: make([]*TypeSig, 0, clampCount(count, r))}
	for i := uint32(0); i < count; i++ {
		local, err := decodeTypeSig(r, g)
		if err != nil {
			return nil, err
		}
		sig.Locals = append(sig.Locals, local)
	}
	return sig, nil
}

// Encode emits the local-variable signature.
func (l *LocalVarSig) Encode(w *Writer) error {
	w.WriteUint8(CallConvLocalSig)
	if err := w.WriteCompressedUint(uint32(len(l.Locals))); err != nil {
		return err
	}
	for _, t := range l.Locals {
		if err := t.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (l *LocalVarSig) PhysicalLen() uint32 {
	n := uint32(1) + CompressedUintSize(uint32(len(l.Locals)))
	for _, t := range l.Locals {
		n += t.PhysicalLen()
	}
	return n
}

// PropertySig is a property signature: the property type plus its indexer
// parameters.
type PropertySig struct {
	HasThis bool
	Type    *TypeSig
	Params  []*TypeSig
}

// DecodePropertySignature decodes a PROPERTY blob.
func DecodePropertySignature(r *Reader) (*PropertySig, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&CallConvMask != CallConvProperty {
		return nil, fmt.Errorf("%w: not a property signature",
			ErrMalformedSignature)
	}
	count, err := r.ReadCompressedUint()
	if err != nil {
		return nil, err
	}
	g := newRecursionGuard(0)
	sig := &PropertySig{HasThis: flags&SigHasThis != 0}
	if sig.Type, err = decodeTypeSig(r, g); err != nil {
		return nil, err
	}
	sig.Params = make([]*TypeSig, 0, clampCount(count, r))
	for i := uint32(0); i < count; i++ {
		p, err := decodeTypeSig(r, g)
		if err != nil {
			return nil, err
		}
		sig.Params = append(sig.Params, p)
	}
	return sig, nil
}

// Encode emits the property signature.
func (p *PropertySig) Encode(w *Writer) error {
	flags := uint8(CallConvProperty)
	if p.HasThis {
		flags |= SigHasThis
	}
	w.WriteUint8(flags)
	if err := w.WriteCompressedUint(uint32(len(p.Params))); err != nil {
		return err
	}
	if err := p.Type.Encode(w); err != nil {
		return err
	}
	for _, t := range p.Params {
		if err := t.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (p *PropertySig) PhysicalLen() uint32 {
	n := uint32(1) + CompressedUintSize(uint32(len(p.Params))) +
		p.Type.PhysicalLen()
	for _, t := range p.Params {
		n += t.PhysicalLen()
	}
	return n
}

// MethodSpecSig is the instantiation blob of a MethodSpec row.
type MethodSpecSig struct {
	Args []*TypeSig
}

// DecodeMethodSpecSignature decodes a GENERICINST instantiation blob.
func DecodeMethodSpecSignature(r *Reader) (*MethodSpecSig, error) {
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&CallConvMask != CallConvGenericInst {
		return nil, fmt.Errorf("%w: not a method instantiation",
			ErrMalformedSignature)
	}
	count, err := r.ReadCompressedUint()
	if err != nil {
		return nil, err
	}
	g := newRecursionGuard(0)
	sig := &MethodSpecSig{Args: make([]*TypeSig, 0, clampCount(count, r))}
	for i := uint32(0); i < count; i++ {
		arg, err := decodeTypeSig(r, g)
		if err != nil {
			return nil, err
		}
		sig.Args = append(sig.Args, arg)
	}
	return sig, nil
}

// Encode emits the instantiation blob.
func (m *MethodSpecSig) Encode(w *Writer) error {
	w.WriteUint8(CallConvGenericInst)
	if err := w.WriteCompressedUint(uint32(len(m.Args))); err != nil {
		return err
	}
	for _, t := range m.Args {
		if err := t.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (m *MethodSpecSig) PhysicalLen() uint32 {
	n := uint32(1) + CompressedUintSize(uint32(len(m.Args)))
	for _, t := range m.Args {
		n += t.PhysicalLen()
	}
	return n
}
