// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import "errors"

// Errors
var (

	// ErrEndOfStream is returned when a read would cross the bound of the
	// underlying slice.
	ErrEndOfStream = errors.New("read beyond end of stream")

	// ErrMalformedCompressedInt is returned when the discriminator bits of a
	// compressed integer are invalid (0b111 prefix).
	ErrMalformedCompressedInt = errors.New("malformed compressed integer")

	// ErrMalformedSignature is returned for recursion overflow or an invalid
	// element-type tag while decoding a signature blob.
	ErrMalformedSignature = errors.New("malformed signature blob")

	// ErrUnresolvableToken is returned when a row or signature references a
	// row that does not exist in its declared table.
	ErrUnresolvableToken = errors.New("unresolvable metadata token")

	// ErrInvalidHeapReference is returned when a heap offset does not address
	// a valid entry.
	ErrInvalidHeapReference = errors.New("invalid heap reference")

	// ErrBadImageFormat is returned for structural violations of the metadata
	// directory.
	ErrBadImageFormat = errors.New("bad image format")

	// ErrNotImplemented is returned for reserved operations such as
	// PublicKeyToken derivation.
	ErrNotImplemented = errors.New("operation not implemented")
)
