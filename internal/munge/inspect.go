package munge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"example.com/l2munger/internal/archive2"
)

// Summary describes an archive without modifying it.
type Summary struct {
	Filename    string
	Site        string
	Volume      time.Time
	Packets     int64
	ByType      map[uint8]int64
	FirstPacket time.Time
	LastPacket  time.Time
	Bytes       int64
	// Err is set when the archive ends in the middle of a record.
	Err error
}

// Inspect walks an archive with the same framing rules as Run and reports
// what it holds. A truncated tail is recorded in Summary.Err rather than
// returned, so the packets before it are still described.
func Inspect(src io.Reader) (Summary, error) {
	s := Summary{ByType: make(map[uint8]int64)}
	buf := make([]byte, archive2.VolumeHeaderSize)
	n, err := io.ReadFull(src, buf)
	s.Bytes += int64(n)
	if err != nil {
		return s, &StageError{Stage: StageVolumeHeader, Err: fmt.Errorf("%w: %w", ErrMalformedHeader, io.ErrUnexpectedEOF)}
	}
	vh, err := archive2.DecodeVolumeHeader(buf)
	if err != nil {
		return s, err
	}
	s.Filename = string(vh.Filename[:])
	s.Site = string(vh.Site[:])
	s.Volume = vh.ArchiveTime().Time()

	hdrBuf := make([]byte, archive2.PacketHeaderSize)
	for {
		start := s.Bytes
		n, err := io.ReadFull(src, hdrBuf)
		s.Bytes += int64(n)
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			s.Err = &StageError{Stage: StagePacketHeader, Packet: s.Packets + 1, Offset: start, Err: fmt.Errorf("%w: %w", ErrTruncatedPacket, err)}
			return s, nil
		}
		hdr, err := archive2.DecodePacketHeader(hdrBuf)
		if err != nil {
			s.Err = &StageError{Stage: StagePacketHeader, Packet: s.Packets + 1, Offset: start, Err: err}
			return s, nil
		}
		size, err := archive2.ResolvePayloadLength(hdr)
		if err != nil {
			s.Err = &StageError{Stage: StagePayloadLength, Packet: s.Packets + 1, Offset: start, Err: err}
			return s, nil
		}
		skipped, err := io.CopyN(io.Discard, src, int64(size))
		s.Bytes += skipped
		if err != nil {
			s.Err = &StageError{Stage: StagePayload, Packet: s.Packets + 1, Offset: start, Err: fmt.Errorf("%w: %w", ErrTruncatedPacket, io.ErrUnexpectedEOF)}
			return s, nil
		}
		s.Packets++
		s.ByType[hdr.MessageType]++
		if hdr.Date == 0 {
			continue
		}
		t := hdr.ArchiveTime().Time()
		if s.FirstPacket.IsZero() || t.Before(s.FirstPacket) {
			s.FirstPacket = t
		}
		if t.After(s.LastPacket) {
			s.LastPacket = t
		}
	}
}
