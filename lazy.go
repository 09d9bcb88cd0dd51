// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import "sync/atomic"

// lazyCell is a single-assignment holder: the first observer runs the
// initialiser and publishes the result with a compare-and-swap; concurrent
// losers discard their computed value and adopt the winner's. After
// initialisation the value is freely mutable through Set or the returned
// pointer; callers mixing writes with concurrent reads coordinate
// externally.
type lazyCell[T any] struct {
	p atomic.Pointer[T]
}

// Get returns the held value, running init on first access.
func (c *lazyCell[T]) Get(init func() T) *T {
	if v := c.p.Load(); v != nil {
		return v
	}
	v := init()
	if c.p.CompareAndSwap(nil, &v) {
		return &v
	}
	return c.p.Load()
}

// Set replaces the held value, marking the cell initialised.
func (c *lazyCell[T]) Set(v T) {
	c.p.Store(&v)
}

// Initialized reports whether the cell holds a value.
func (c *lazyCell[T]) Initialized() bool {
	return c.p.Load() != nil
}
