// Package ldm expands archives whose records were compressed one by one
// with bzip2 for transmission over LDM.
//
// The layout is the 24-byte volume header in the clear, followed by records
// of a 4-byte big-endian control word and a bzip2 stream of that many bytes.
// A negative control word marks the last record of a volume; its absolute
// value is the size.
package ldm

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	volumeHeaderSize = 24
	controlWordSize  = 4
)

var ErrCorruptRecord = errors.New("corrupt ldm record")

// IsCompressed reports whether the start of an archive holds an LDM
// compressed record, i.e. a bzip2 stream signature right after the volume
// header and the first control word.
func IsCompressed(head []byte) bool {
	off := volumeHeaderSize + controlWordSize
	return len(head) >= off+3 && bytes.Equal(head[off:off+3], []byte("BZh"))
}

// Peek inspects br without consuming it and reports whether it carries LDM
// compressed records.
func Peek(br *bufio.Reader) bool {
	head, _ := br.Peek(volumeHeaderSize + controlWordSize + 3)
	return IsCompressed(head)
}

// Reader yields the uncompressed archive.
type Reader struct {
	r       io.Reader
	header  []byte
	chunk   *io.LimitedReader
	bz      io.Reader
	records int
	err     error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Records returns how many compressed records have been opened so far.
func (z *Reader) Records() int { return z.records }

func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if z.header == nil {
		z.header = make([]byte, volumeHeaderSize)
		if _, err := io.ReadFull(z.r, z.header); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			z.err = fmt.Errorf("volume header: %w", err)
			return 0, z.err
		}
		return copyHeader(p, z)
	}
	if len(z.header) > 0 {
		return copyHeader(p, z)
	}
	for {
		if z.bz == nil {
			if err := z.next(); err != nil {
				z.err = err
				return 0, err
			}
		}
		n, err := z.bz.Read(p)
		if errors.Is(err, io.EOF) {
			if _, derr := io.Copy(io.Discard, z.chunk); derr != nil {
				z.err = derr
				return n, derr
			}
			z.bz = nil
			z.chunk = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			z.err = fmt.Errorf("%w %d: %w", ErrCorruptRecord, z.records, err)
			return n, z.err
		}
		return n, nil
	}
}

func copyHeader(p []byte, z *Reader) (int, error) {
	n := copy(p, z.header)
	z.header = z.header[n:]
	return n, nil
}

// next opens the following record. It returns io.EOF at a clean end.
func (z *Reader) next() error {
	for {
		var word [controlWordSize]byte
		if _, err := io.ReadFull(z.r, word[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("%w: control word: %w", ErrCorruptRecord, err)
		}
		size := int64(int32(binary.BigEndian.Uint32(word[:])))
		if size < 0 {
			size = -size
		}
		if size == 0 {
			continue
		}
		z.records++
		z.chunk = &io.LimitedReader{R: z.r, N: size}
		z.bz = bzip2.NewReader(z.chunk)
		return nil
	}
}
