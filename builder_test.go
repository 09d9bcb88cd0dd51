// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// testModule assembles a small but representative object model: an
// assembly with one referenced scope, a type with a field, a method with a
// parameter, a nested type, an interface implementation, a member
// reference, and a type specification.
func testModule(t *testing.T) *ModuleDefinition {
	t.Helper()

	module := NewModule("test.dll")
	module.SetAssembly(NewAssembly("test", AssemblyVersion{Major: 1}))

	corlib := NewAssemblyReference("mscorlib", AssemblyVersion{Major: 4})
	corlib.SetPublicKeyOrToken([]byte{0xB7, 0x7A, 0x5C, 0x56, 0x19, 0x34,
		0xE0, 0x89})
	module.AddAssemblyReference(corlib)

	objectRef := NewTypeReference(corlib, "System", "Object")
	module.AddTypeReference(objectRef)
	disposableRef := NewTypeReference(corlib, "System", "IDisposable")
	module.AddTypeReference(disposableRef)

	myType := NewType("MyNs", "MyType", 0x00100001)
	module.AddType(myType)
	myType.SetBaseType(objectRef)
	myType.AddInterface(disposableRef)

	myType.AddField(NewField("value", 0x0001, &FieldSig{
		Type: &TypeSig{Kind: ElemI4},
	}))

	run := NewMethod("Run", 0x0086, &MethodSig{
		Flags:         SigHasThis,
		ReturnType:    &TypeSig{Kind: ElemVoid},
		Params:        []*TypeSig{{Kind: ElemI4}},
		SentinelIndex: -1,
	})
	myType.AddMethod(run)
	run.AddParameter(NewParameter("x", 1, 0))

	inner := NewType("", "Inner", 0x00100002)
	myType.AddNestedType(inner)

	ctorSig := NewWriter()
	require.NoError(t, (&MethodSig{
		Flags:         SigHasThis,
		ReturnType:    &TypeSig{Kind: ElemVoid},
		SentinelIndex: -1,
	}).Encode(ctorSig))
	module.AddMemberReference(NewMemberReference(objectRef, ".ctor",
		ctorSig.Bytes()))

	module.AddTypeSpecification(NewTypeSpecification(&TypeSig{
		Kind:  ElemSzArray,
		Inner: &TypeSig{Kind: ElemClass, Ref: NewToken(TypeRef, 1)},
	}))

	return module
}

func TestBuilderTokenAssignment(t *testing.T) {
	module := testModule(t)
	b := NewBuilder()
	_, err := b.BuildMetadata(module)
	require.NoError(t, err)

	myType := module.TopLevelTypes()[0]
	require.Equal(t, Token(0x02000001), b.TokenOf(myType))
	require.Equal(t, Token(0x02000002), b.TokenOf(myType.NestedTypes()[0]))
	require.Equal(t, Token(0x04000001), b.TokenOf(myType.Fields()[0]))
	require.Equal(t, Token(0x06000001), b.TokenOf(myType.Methods()[0]))
	require.Equal(t, Token(0x01000001),
		b.TokenOf(module.TypeReferences()[0]))
	require.True(t, b.TokenOf("unreachable").IsNull())
}

func TestBuildParseRoundTrip(t *testing.T) {
	module := testModule(t)

	data, err := NewBuilder().Build(module)
	require.NoError(t, err)

	md, err := ParseMetadata(NewReader(data))
	require.NoError(t, err)

	require.Equal(t, uint32(1), md.RowCount(Module))
	require.Equal(t, uint32(2), md.RowCount(TypeRef))
	require.Equal(t, uint32(2), md.RowCount(TypeDef))
	require.Equal(t, uint32(1), md.RowCount(Field))
	require.Equal(t, uint32(1), md.RowCount(Method))
	require.Equal(t, uint32(1), md.RowCount(Param))
	require.Equal(t, uint32(1), md.RowCount(InterfaceImpl))
	require.Equal(t, uint32(1), md.RowCount(MemberRef))
	require.Equal(t, uint32(1), md.RowCount(TypeSpec))
	require.Equal(t, uint32(1), md.RowCount(Assembly))
	require.Equal(t, uint32(1), md.RowCount(AssemblyRef))
	require.Equal(t, uint32(1), md.RowCount(NestedClass))

	loaded, err := ModuleFromMetadata(md)
	require.NoError(t, err)
	require.Equal(t, "test.dll", loaded.Name())
	require.Equal(t, module.Mvid(), loaded.Mvid())

	require.NotNil(t, loaded.Assembly())
	require.Equal(t, "test", loaded.Assembly().Name())

	types := loaded.AllTypes()
	require.Len(t, types, 2)
	require.Equal(t, "MyNs.MyType", types[0].FullName())
	require.Equal(t, "MyNs.MyType+Inner", types[1].FullName())

	myType := types[0]
	require.Len(t, myType.Fields(), 1)
	require.Equal(t, "value", myType.Fields()[0].Name())
	fieldSig := myType.Fields()[0].Signature()
	require.NotNil(t, fieldSig)
	require.Equal(t, ElemI4, fieldSig.Type.Kind)

	require.Len(t, myType.Methods(), 1)
	run := myType.Methods()[0]
	require.Equal(t, "Run", run.Name())
	require.Len(t, run.Parameters(), 1)
	require.Equal(t, "x", run.Parameters()[0].Name())
	require.True(t, run.Signature().HasThis())

	base := myType.BaseType()
	require.NotNil(t, base)
	require.Equal(t, "System.Object", base.FullName())

	require.Len(t, myType.Interfaces(), 1)
	require.Equal(t, "System.IDisposable", myType.Interfaces()[0].FullName())

	require.Len(t, myType.NestedTypes(), 1)
	require.Same(t, myType, types[1].DeclaringType())

	refs := loaded.MemberReferences()
	require.Len(t, refs, 1)
	require.Equal(t, "System.Object::.ctor", refs[0].FullName())
	require.False(t, refs[0].IsField())

	specs := loaded.TypeSpecifications()
	require.Len(t, specs, 1)
	require.Equal(t, "System.Object[]", specs[0].FullName())
}

// canonicalRows renders a table's rows with heap columns dereferenced to
// their content, so two images compare by meaning rather than by heap
// layout.
func canonicalRows(t *testing.T, md *Metadata, idx TableIndex) []string {
	t.Helper()
	table := md.Tables.Table(idx)
	cols := table.Columns()
	var out []string
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		require.NoError(t, err)
		entry := ""
		for c, col := range cols {
			switch col.Kind {
			case ColStrings:
				s, err := md.Strings.GetString(row[c])
				require.NoError(t, err)
				entry += fmt.Sprintf("s:%q|", s)
			case ColBlob:
				b, err := md.Blob.GetBlob(row[c])
				require.NoError(t, err)
				entry += fmt.Sprintf("b:%x|", b)
			case ColGUID:
				g, err := md.GUID.GetGUID(row[c])
				require.NoError(t, err)
				entry += fmt.Sprintf("g:%s|", g)
			default:
				entry += fmt.Sprintf("v:%d|", row[c])
			}
		}
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}

func TestRebuildRoundTrip(t *testing.T) {
	data, err := NewBuilder().Build(testModule(t))
	require.NoError(t, err)

	src, err := ParseMetadata(NewReader(data))
	require.NoError(t, err)

	rebuilt, err := NewBuilder().Rebuild(src)
	require.NoError(t, err)

	dst, err := ParseMetadata(NewReader(rebuilt))
	require.NoError(t, err)

	for i := TableIndex(0); i < TableCount; i++ {
		require.Equal(t, src.RowCount(i), dst.RowCount(i),
			"row count of %s", i)
		require.Equal(t, canonicalRows(t, src, i),
			canonicalRows(t, dst, i), "rows of %s", i)
	}
}

func TestHeapSizesFlagReflectsWidths(t *testing.T) {
	module := NewModule("big.dll")
	base := NewType("", "Base", 0)
	module.AddType(base)
	// Enough distinct long names to push #Strings past the 16-bit
	// boundary.
	for i := 0; i < 2200; i++ {
		module.AddType(NewType("Namespace.Of.Padding",
			fmt.Sprintf("GeneratedType_%04d_%032d", i, i), 0))
	}

	data, err := NewBuilder().Build(module)
	require.NoError(t, err)

	md, err := ParseMetadata(NewReader(data))
	require.NoError(t, err)
	require.NotZero(t, md.TablesHeader.HeapSizes&HeapSizesWideStrings)
	require.Greater(t, md.Strings.Len(), uint32(0xFFFF))

	// Wide string columns survive the round trip.
	loaded, err := ModuleFromMetadata(md)
	require.NoError(t, err)
	types := loaded.AllTypes()
	require.Len(t, types, 2201)
	require.Equal(t, "Base", types[0].Name())
	require.Equal(t,
		fmt.Sprintf("Namespace.Of.Padding.GeneratedType_%04d_%032d", 7, 7),
		types[8].FullName())
}

func TestSortedTablesEmittedSorted(t *testing.T) {
	module := NewModule("sorted.dll")
	corlib := NewAssemblyReference("mscorlib", AssemblyVersion{Major: 4})
	module.AddAssemblyReference(corlib)
	ifaceA := NewTypeReference(corlib, "System", "IDisposable")
	ifaceB := NewTypeReference(corlib, "System", "IComparable")
	module.AddTypeReference(ifaceA)
	module.AddTypeReference(ifaceB)

	// Three types implementing interfaces in a scattered declaration
	// order.
	for i := 0; i < 3; i++ {
		typ := NewType("N", fmt.Sprintf("T%d", 2-i), 0)
		module.AddType(typ)
		typ.AddInterface(ifaceA)
		typ.AddInterface(ifaceB)
	}

	data, err := NewBuilder().Build(module)
	require.NoError(t, err)

	md, err := ParseMetadata(NewReader(data))
	require.NoError(t, err)

	table := md.Tables.Table(InterfaceImpl)
	require.Equal(t, uint32(6), table.Count())
	var prev Row
	for rid := uint32(1); rid <= table.Count(); rid++ {
		row, err := table.Get(rid)
		require.NoError(t, err)
		if prev != nil {
			less := prev[0] < row[0] ||
				(prev[0] == row[0] && prev[1] <= row[1])
			require.True(t, less, "rows %d and %d out of order", rid-1, rid)
		}
		prev = row
	}

	require.NotZero(t, md.TablesHeader.Sorted&(1<<uint(InterfaceImpl)))
}

func TestBuilderRejectsUnreachableBaseType(t *testing.T) {
	module := NewModule("broken.dll")
	typ := NewType("N", "T", 0)
	module.AddType(typ)
	// The base type was never added to the module's type references.
	typ.SetBaseType(NewTypeReference(nil, "System", "Object"))

	_, err := NewBuilder().Build(module)
	require.ErrorIs(t, err, ErrUnresolvableToken)
}

func TestEmittedDirectoryStreamLayout(t *testing.T) {
	data, err := NewBuilder().Build(testModule(t))
	require.NoError(t, err)

	md, err := ParseMetadata(NewReader(data))
	require.NoError(t, err)

	names := make([]string, 0, len(md.StreamHeaders))
	for _, sh := range md.StreamHeaders {
		names = append(names, sh.Name)
		require.Zero(t, sh.Offset%4, "stream %s misaligned", sh.Name)
	}
	require.Equal(t,
		[]string{"#~", "#Strings", "#US", "#GUID", "#Blob"}, names)
	require.Equal(t, "v4.0.30319", md.Header.Version)
}
