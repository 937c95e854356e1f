package common

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"os"
)

// HashWriter forwards writes to w while hashing and counting them, so the
// output digest is known as soon as the last record is written.
type HashWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func NewHashWriter(w io.Writer) *HashWriter {
	return &HashWriter{w: w, h: sha256.New()}
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		hw.h.Write(p[:n])
		hw.n += int64(n)
	}
	return n, err
}

// Sum returns the hex sha256 of everything written so far.
func (hw *HashWriter) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

func (hw *HashWriter) Count() int64 {
	return hw.n
}

func Sha256OfFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// FileExists reports whether path names an existing file or directory.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
