// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides a minimal leveled logging facade: a Logger sink
// interface, a standard-output implementation, a level filter, and a
// printf-style helper.
package log

// Logger is the sink every log record flows through.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// DefaultLogger is used by package-level helpers.
var DefaultLogger Logger = NewStdLogger(nil)
