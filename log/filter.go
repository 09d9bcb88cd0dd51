// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package log

// FilterOption is a filter option.
type FilterOption func(*Filter)

// FilterLevel drops records below the given level.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) {
		f.level = level
	}
}

// FilterFunc drops records the function returns true for.
func FilterFunc(fn func(level Level, keyvals ...interface{}) bool) FilterOption {
	return func(f *Filter) {
		f.filter = fn
	}
}

// Filter is a Logger decorator that drops records by level or predicate.
type Filter struct {
	logger Logger
	level  Level
	filter func(level Level, keyvals ...interface{}) bool
}

// NewFilter wraps a logger with filter options.
func NewFilter(logger Logger, opts ...FilterOption) *Filter {
	f := &Filter{logger: logger}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Log forwards the record unless a filter drops it.
func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	if f.filter != nil && f.filter(level, keyvals...) {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}
