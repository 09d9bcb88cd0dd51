// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"fmt"

	"github.com/google/uuid"
)

// NativeType is a native-type tag of a FieldMarshal blob, ECMA-335
// II.23.4.
type NativeType uint8

// Native types.
const (
	NativeBoolean     NativeType = 0x02
	NativeI1          NativeType = 0x03
	NativeU1          NativeType = 0x04
	NativeI2          NativeType = 0x05
	NativeU2          NativeType = 0x06
	NativeI4          NativeType = 0x07
	NativeU4          NativeType = 0x08
	NativeI8          NativeType = 0x09
	NativeU8          NativeType = 0x0A
	NativeR4          NativeType = 0x0B
	NativeR8          NativeType = 0x0C
	NativeLPStr       NativeType = 0x14
	NativeLPWStr      NativeType = 0x15
	NativeByValStr    NativeType = 0x17
	NativeIUnknown    NativeType = 0x19
	NativeIDispatch   NativeType = 0x1A
	NativeStruct      NativeType = 0x1B
	NativeInterface   NativeType = 0x1C
	NativeSafeArray   NativeType = 0x1D
	NativeFixedArray  NativeType = 0x1E
	NativeInt         NativeType = 0x1F
	NativeUInt        NativeType = 0x20
	NativeFunc        NativeType = 0x26
	NativeAsAny       NativeType = 0x28
	NativeLPArray     NativeType = 0x2A
	NativeLPStruct    NativeType = 0x2B
	NativeCustom      NativeType = 0x2C
	NativeError       NativeType = 0x2D
	NativeMax         NativeType = 0x50
)

// MarshalDescriptor is a decoded FieldMarshal blob.
type MarshalDescriptor interface {
	NativeType() NativeType
	Encode(w *Writer) error
	PhysicalLen() uint32
}

// SimpleMarshalDescriptor is a marshal blob that is just a native-type tag.
type SimpleMarshalDescriptor struct {
	Type NativeType
}

// NativeType returns the descriptor's tag.
func (d *SimpleMarshalDescriptor) NativeType() NativeType { return d.Type }

// Encode emits the descriptor.
func (d *SimpleMarshalDescriptor) Encode(w *Writer) error {
	w.WriteUint8(uint8(d.Type))
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (d *SimpleMarshalDescriptor) PhysicalLen() uint32 { return 1 }

// FixedArrayMarshalDescriptor marshals a fixed-length embedded array.
type FixedArrayMarshalDescriptor struct {
	Size        uint32
	HasElemType bool
	ElemType    NativeType
}

// NativeType returns the descriptor's tag.
func (d *FixedArrayMarshalDescriptor) NativeType() NativeType {
	return NativeFixedArray
}

// Encode emits the descriptor.
func (d *FixedArrayMarshalDescriptor) Encode(w *Writer) error {
	w.WriteUint8(uint8(NativeFixedArray))
	if err := w.WriteCompressedUint(d.Size); err != nil {
		return err
	}
	if d.HasElemType {
		w.WriteUint8(uint8(d.ElemType))
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (d *FixedArrayMarshalDescriptor) PhysicalLen() uint32 {
	n := 1 + CompressedUintSize(d.Size)
	if d.HasElemType {
		n++
	}
	return n
}

// LPArrayMarshalDescriptor marshals a pointer-to-array with an element type
// and optional size information taken from another parameter.
type LPArrayMarshalDescriptor struct {
	ElemType      NativeType
	HasParamIndex bool
	ParamIndex    uint32
	HasNumElem    bool
	NumElements   uint32
}

// NativeType returns the descriptor's tag.
func (d *LPArrayMarshalDescriptor) NativeType() NativeType {
	return NativeLPArray
}

// Encode emits the descriptor.
func (d *LPArrayMarshalDescriptor) Encode(w *Writer) error {
	w.WriteUint8(uint8(NativeLPArray))
	w.WriteUint8(uint8(d.ElemType))
	if d.HasParamIndex {
		if err := w.WriteCompressedUint(d.ParamIndex); err != nil {
			return err
		}
		if d.HasNumElem {
			return w.WriteCompressedUint(d.NumElements)
		}
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (d *LPArrayMarshalDescriptor) PhysicalLen() uint32 {
	n := uint32(2)
	if d.HasParamIndex {
		n += CompressedUintSize(d.ParamIndex)
		if d.HasNumElem {
			n += CompressedUintSize(d.NumElements)
		}
	}
	return n
}

// SafeArrayMarshalDescriptor marshals a COM safe array with an optional
// variant type.
type SafeArrayMarshalDescriptor struct {
	HasVariantType bool
	VariantType    uint32
}

// NativeType returns the descriptor's tag.
func (d *SafeArrayMarshalDescriptor) NativeType() NativeType {
	return NativeSafeArray
}

// Encode emits the descriptor.
func (d *SafeArrayMarshalDescriptor) Encode(w *Writer) error {
	w.WriteUint8(uint8(NativeSafeArray))
	if d.HasVariantType {
		return w.WriteCompressedUint(d.VariantType)
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (d *SafeArrayMarshalDescriptor) PhysicalLen() uint32 {
	if d.HasVariantType {
		return 1 + CompressedUintSize(d.VariantType)
	}
	return 1
}

// CustomMarshalDescriptor marshals through a custom marshaler class: four
// serialized strings holding the marshaler GUID, the unmanaged and managed
// type names, and an arbitrary cookie.
type CustomMarshalDescriptor struct {
	Guid          uuid.UUID
	UnmanagedType string
	ManagedType   string
	Cookie        string
}

// NativeType returns the descriptor's tag.
func (d *CustomMarshalDescriptor) NativeType() NativeType {
	return NativeCustom
}

// guidText renders the GUID with braces and hyphens, the form compilers
// emit into custom-marshal blobs.
func (d *CustomMarshalDescriptor) guidText() string {
	return "{" + d.Guid.String() + "}"
}

// Encode emits the descriptor.
func (d *CustomMarshalDescriptor) Encode(w *Writer) error {
	w.WriteUint8(uint8(NativeCustom))
	for _, s := range []string{
		d.guidText(), d.UnmanagedType, d.ManagedType, d.Cookie,
	} {
		if err := w.WriteSerString(s, false); err != nil {
			return err
		}
	}
	return nil
}

// PhysicalLen computes the encoded size without emitting.
func (d *CustomMarshalDescriptor) PhysicalLen() uint32 {
	return 1 + SerStringSize(d.guidText(), false) +
		SerStringSize(d.UnmanagedType, false) +
		SerStringSize(d.ManagedType, false) +
		SerStringSize(d.Cookie, false)
}

// DecodeMarshalDescriptor decodes a FieldMarshal blob. A custom-marshal
// GUID string that fails to parse yields the zero GUID rather than an
// error; every other malformation surfaces.
func DecodeMarshalDescriptor(r *Reader) (MarshalDescriptor, error) {
	tag, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	switch NativeType(tag) {
	case NativeCustom:
		d := &CustomMarshalDescriptor{}
		guidStr, _, err := r.ReadSerString()
		if err != nil {
			return nil, err
		}
		// A missing or unparseable GUID reads as all-zero by design.
		if g, err := uuid.Parse(guidStr); err == nil {
			d.Guid = g
		}
		if d.UnmanagedType, _, err = r.ReadSerString(); err != nil {
			return nil, err
		}
		if d.ManagedType, _, err = r.ReadSerString(); err != nil {
			return nil, err
		}
		if d.Cookie, _, err = r.ReadSerString(); err != nil {
			return nil, err
		}
		return d, nil

	case NativeFixedArray:
		d := &FixedArrayMarshalDescriptor{}
		if d.Size, err = r.ReadCompressedUint(); err != nil {
			return nil, err
		}
		if r.Remaining() > 0 {
			b, err := r.ReadUint8()
			if err != nil {
				return nil, err
			}
			d.HasElemType = true
			d.ElemType = NativeType(b)
		}
		return d, nil

	case NativeLPArray:
		d := &LPArrayMarshalDescriptor{}
		b, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		d.ElemType = NativeType(b)
		if r.Remaining() > 0 {
			if d.ParamIndex, err = r.ReadCompressedUint(); err != nil {
				return nil, err
			}
			d.HasParamIndex = true
			if r.Remaining() > 0 {
				if d.NumElements, err = r.ReadCompressedUint(); err != nil {
					return nil, err
				}
				d.HasNumElem = true
			}
		}
		return d, nil

	case NativeSafeArray:
		d := &SafeArrayMarshalDescriptor{}
		if r.Remaining() > 0 {
			if d.VariantType, err = r.ReadCompressedUint(); err != nil {
				return nil, err
			}
			d.HasVariantType = true
		}
		return d, nil

	default:
		if NativeType(tag) >= NativeMax {
			return nil, fmt.Errorf("%w: unknown native type 0x%02X",
				ErrMalformedSignature, tag)
		}
		return &SimpleMarshalDescriptor{Type: NativeType(tag)}, nil
	}
}
