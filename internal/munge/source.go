package munge

import (
	"bufio"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"example.com/l2munger/internal/ldm"
)

// Encoding describes how a source archive is stored on disk.
type Encoding string

const (
	EncodingPlain Encoding = "plain"
	EncodingGzip  Encoding = "gzip"
	EncodingBzip2 Encoding = "bzip2"
	EncodingLDM   Encoding = "ldm-bzip2"
)

// Source is an opened archive ready to be fed to Run.
type Source struct {
	io.Reader
	Path string
	// Size is the on-disk size. It only matches the archive length for
	// plain sources.
	Size     int64
	Encoding []Encoding
	closers  []io.Closer
}

func (s *Source) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Compressed reports whether any decoding layer sits between the file and
// the archive bytes.
func (s *Source) Compressed() bool {
	for _, e := range s.Encoding {
		if e != EncodingPlain {
			return true
		}
	}
	return false
}

// OpenSource opens path and strips whole-file gzip or bzip2 compression
// (chosen by extension) and LDM record compression (detected from content).
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	src := &Source{Path: path, Size: info.Size(), closers: []io.Closer{f}}
	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		src.closers = append(src.closers, zr)
		src.Encoding = append(src.Encoding, EncodingGzip)
		r = zr
	case ".bz2":
		r = bzip2.NewReader(f)
		src.Encoding = append(src.Encoding, EncodingBzip2)
	}
	br := bufio.NewReaderSize(r, 64*1024)
	if ldm.Peek(br) {
		src.Encoding = append(src.Encoding, EncodingLDM)
		src.Reader = ldm.NewReader(br)
	} else {
		src.Reader = br
	}
	if len(src.Encoding) == 0 {
		src.Encoding = []Encoding{EncodingPlain}
	}
	return src, nil
}
