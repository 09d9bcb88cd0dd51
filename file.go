// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cil

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/saferwall/cil/log"
)

// A File represents an open image whose metadata directory is being read.
// Locating the directory inside a PE container is the caller's concern;
// the file only needs the metadata root offset.
type File struct {
	Metadata *Metadata

	data   mmap.MMap
	raw    []byte
	f      *os.File
	opts   *Options
	logger *log.Helper
}

// Options for parsing.
type Options struct {

	// Maximum signature recursion depth, by default
	// (DefaultMaxSignatureDepth).
	MaxSignatureDepth uint32

	// Maximum layout iterations during build, by default
	// (DefaultMaxLayoutIterations).
	MaxLayoutIterations int

	// A custom logger.
	Logger log.Logger
}

func newFile(opts *Options) *File {
	file := &File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}
	if file.opts.MaxSignatureDepth == 0 {
		file.opts.MaxSignatureDepth = DefaultMaxSignatureDepth
	}
	if file.opts.MaxLayoutIterations == 0 {
		file.opts.MaxLayoutIterations = DefaultMaxLayoutIterations
	}

	if file.opts.Logger == nil {
		logger := log.NewStdLogger(os.Stdout)
		file.logger = log.NewHelper(log.NewFilter(logger,
			log.FilterLevel(log.LevelError)))
	} else {
		file.logger = log.NewHelper(file.opts.Logger)
	}
	return file
}

// New instantiates a file instance with options given a file name. The
// file is memory mapped instead of read into a buffer.
func New(name string, opts *Options) (*File, error) {

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := newFile(opts)
	file.data = data
	file.raw = data
	file.f = f
	return file, nil
}

// NewBytes instantiates a file instance with options given a memory
// buffer.
func NewBytes(data []byte, opts *Options) (*File, error) {
	file := newFile(opts)
	file.raw = data
	return file, nil
}

// Close closes the File.
func (f *File) Close() error {
	if f.data != nil {
		_ = f.data.Unmap()
	}
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// ParseMetadata parses the metadata directory at the given absolute file
// offset, as resolved by the surrounding PE container.
func (f *File) ParseMetadata(offset uint32) error {
	if offset >= uint32(len(f.raw)) {
		return ErrBadImageFormat
	}
	r := NewReader(f.raw)
	sub, err := r.Slice(offset, uint32(len(f.raw))-offset)
	if err != nil {
		return err
	}
	md, err := ParseMetadata(sub)
	if err != nil {
		f.logger.Errorf("metadata parsing failed: %v", err)
		return err
	}
	f.Metadata = md
	f.logger.Debugf("parsed metadata version %s with %d streams",
		md.Header.Version, md.Header.Streams)
	for _, sh := range md.StreamHeaders {
		switch sh.Name {
		case "#~", "#-", "#Strings", "#US", "#GUID", "#Blob":
		default:
			f.logger.Warnf("unknown metadata stream %q", sh.Name)
		}
	}
	return nil
}

// DecodeTypeSignature decodes a type-signature blob under the file's
// configured recursion bound.
func (f *File) DecodeTypeSignature(blob []byte) (*TypeSig, error) {
	return DecodeTypeSignatureDepth(NewReader(blob),
		f.opts.MaxSignatureDepth)
}

// NewBuilder returns a builder honouring the file's layout limits.
func (f *File) NewBuilder() *Builder {
	b := NewBuilder()
	b.maxIterations = f.opts.MaxLayoutIterations
	return b
}

// Module materialises the object model of the parsed directory.
func (f *File) Module() (*ModuleDefinition, error) {
	if f.Metadata == nil {
		return nil, ErrBadImageFormat
	}
	return ModuleFromMetadata(f.Metadata)
}
