// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeFullNameComposition(t *testing.T) {
	top := NewType("System.Collections", "List", 0)
	require.Equal(t, "System.Collections.List", top.FullName())

	global := NewType("", "Orphan", 0)
	require.Equal(t, "Orphan", global.FullName())

	inner := NewType("", "Enumerator", 0)
	top.AddNestedType(inner)
	require.Equal(t, "System.Collections.List+Enumerator",
		inner.FullName())
	require.Same(t, top, inner.DeclaringType())
}

func TestOwnedCollectionBackReferences(t *testing.T) {
	module := NewModule("m.dll")
	typ := NewType("N", "T", 0)
	module.AddType(typ)
	require.Same(t, module, typ.Module())

	field := NewField("f", 0, &FieldSig{Type: &TypeSig{Kind: ElemI4}})
	typ.AddField(field)
	require.Same(t, typ, field.DeclaringType())
	require.Same(t, module, field.Module())

	// Removal clears the back reference.
	typ.RemoveField(field)
	require.Nil(t, field.DeclaringType())
	require.Empty(t, typ.Fields())

	method := NewMethod("m", 0, &MethodSig{
		ReturnType: &TypeSig{Kind: ElemVoid}, SentinelIndex: -1,
	})
	typ.AddMethod(method)
	require.Same(t, typ, method.DeclaringType())
	typ.RemoveMethod(method)
	require.Nil(t, method.DeclaringType())

	module.RemoveType(typ)
	require.Nil(t, typ.Module())
	require.Empty(t, module.TopLevelTypes())
}

func TestMemberFullNames(t *testing.T) {
	typ := NewType("N", "T", 0)
	field := NewField("f", 0, nil)
	typ.AddField(field)
	require.Equal(t, "N.T::f", field.FullName())

	method := NewMethod("Run", 0, nil)
	typ.AddMethod(method)
	require.Equal(t, "N.T::Run", method.FullName())
}

func TestTypeReferenceFullName(t *testing.T) {
	corlib := NewAssemblyReference("mscorlib", AssemblyVersion{Major: 4})
	outer := NewTypeReference(corlib, "System", "Environment")
	require.Equal(t, "System.Environment", outer.FullName())

	nested := NewTypeReference(outer, "", "SpecialFolder")
	require.Equal(t, "System.Environment+SpecialFolder", nested.FullName())
	require.Same(t, outer, nested.Scope())
}

func TestAssemblyFullName(t *testing.T) {
	a := NewAssembly("mylib", AssemblyVersion{Major: 1, Minor: 2,
		Build: 3, Revision: 4})
	require.Equal(t, "mylib, Version=1.2.3.4, Culture=neutral",
		a.FullName())

	a.SetCulture("en-US")
	require.Equal(t, "mylib, Version=1.2.3.4, Culture=en-US", a.FullName())
}

func TestPublicKeyTokenNotImplemented(t *testing.T) {
	a := NewAssembly("x", AssemblyVersion{})
	a.SetPublicKey([]byte{1, 2, 3})

	_, err := a.PublicKeyToken()
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestModuleTypeFullNameFallback(t *testing.T) {
	module := NewModule("m.dll")
	require.Equal(t, "0x1B000007",
		module.TypeFullName(NewToken(TypeSpec, 7)))
}

func TestMemberReferenceKind(t *testing.T) {
	fieldSig := NewWriter()
	require.NoError(t, (&FieldSig{
		Type: &TypeSig{Kind: ElemI4},
	}).Encode(fieldSig))

	ref := NewMemberReference(nil, "field", fieldSig.Bytes())
	require.True(t, ref.IsField())
	require.Equal(t, "field", ref.FullName())
}
