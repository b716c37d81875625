// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

// Package iox provides compression-transparent buffered file handles.
// A path ending in ".gz" selects a streaming gzip wrapper; reads and
// writes behave identically either way, so callers never branch on the
// compression kind.
package iox

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GzipSuffix is the filename suffix that selects the compressed
// variant.
const GzipSuffix = ".gz"

// Source is a byte origin, optionally gzip-decompressed.
type Source struct {
	f  *os.File
	gz *gzip.Reader // nil for the plain variant
	r  *bufio.Reader
}

// Open opens path for reading, wrapping it in a gzip decompressor when
// the path carries the gzip suffix.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("iox.Open %q: %w", path, err)
	}

	s := &Source{f: f}
	if strings.HasSuffix(path, GzipSuffix) {
		s.gz, err = gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("iox.Open %q: %w", path, err)
		}
		s.r = bufio.NewReader(s.gz)
	} else {
		s.r = bufio.NewReader(f)
	}
	return s, nil
}

func (s *Source) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *Source) Close() (err error) {
	if s.gz != nil {
		err = s.gz.Close()
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return
}

// Sink is a byte destination, optionally gzip-compressed.
type Sink struct {
	f  *os.File
	gz *gzip.Writer // nil for the plain variant
	w  *bufio.Writer
}

// Create creates (truncating) path for writing, wrapping it in a gzip
// compressor when the path carries the gzip suffix.
func Create(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("iox.Create %q: %w", path, err)
	}

	s := &Sink{f: f}
	if strings.HasSuffix(path, GzipSuffix) {
		s.gz = gzip.NewWriter(f)
		s.w = bufio.NewWriter(s.gz)
	} else {
		s.w = bufio.NewWriter(f)
	}
	return s, nil
}

func (s *Sink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush pushes buffered bytes down to the file. The gzip trailer is
// only written on Close.
func (s *Sink) Flush() (err error) {
	if err = s.w.Flush(); err != nil {
		return
	}
	if s.gz != nil {
		err = s.gz.Flush()
	}
	return
}

// Close flushes all buffered data, including the compressor trailer,
// and closes the underlying file. Trailing bytes are not durable until
// Close returns.
func (s *Sink) Close() (err error) {
	err = s.w.Flush()
	if s.gz != nil {
		if cerr := s.gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return
}

// DiscardClose closes c and discards the error. For defer statements
// where close errors are unactionable.
func DiscardClose(c io.Closer) { _ = c.Close() }
