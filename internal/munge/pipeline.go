// Package munge rewrites the timestamps and site identifier of a Level-II
// archive while copying it record by record.
package munge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"example.com/l2munger/internal/archive2"
	"example.com/l2munger/internal/common"
)

var (
	ErrMalformedHeader = errors.New("malformed volume header")
	ErrTruncatedPacket = errors.New("truncated packet")
	ErrRead            = errors.New("read failed")
	ErrWrite           = errors.New("write failed")

	ErrInvalidPayloadLength = archive2.ErrInvalidPayloadLength
)

// Stage names the part of the archive being handled when a run stopped.
type Stage string

const (
	StageVolumeHeader  Stage = "volume-header"
	StagePacketHeader  Stage = "packet-header"
	StagePayloadLength Stage = "payload-length"
	StagePayload       Stage = "payload"
	StageRemap         Stage = "remap"
	StageWrite         Stage = "write"
)

// StageError reports where a run stopped. Packet is 1-based, zero for the
// volume header. Offset is the source offset of the failing record.
type StageError struct {
	Stage  Stage
	Packet int64
	Offset int64
	Err    error
}

func (e *StageError) Error() string {
	if e.Packet == 0 {
		return fmt.Sprintf("%s at offset %d: %v", e.Stage, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s of packet %d at offset %d: %v", e.Stage, e.Packet, e.Offset, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Audit field names.
const (
	FieldVolume      = "volume"
	FieldPacketTime  = "packet.time"
	FieldRadialTime  = "radial.time"
	FieldGenericTime = "generic.time"
)

// Options carries the optional collaborators of a run. The zero value is a
// plain rewrite with no metrics and no audit trail.
type Options struct {
	Metrics *common.Metrics
	Audit   *common.PatchLog
}

// Result summarises a run. On failure it describes the records that were
// written before the error.
type Result struct {
	SourceSite   string
	Reference    time.Time
	Target       time.Time
	Speed        int
	Packets      int64
	Remapped     int64
	Skipped      int64
	ByType       map[uint8]int64
	BytesRead    int64
	BytesWritten int64
}

type pipeline struct {
	src   io.Reader
	dst   io.Writer
	cfg   Config
	opts  Options
	remap *archive2.Remapper
	res   Result
	hdr   [archive2.PacketHeaderSize]byte
}

// Run reads a complete archive from src and writes its rewritten form to
// dst. Every record keeps its size, so the output is exactly as long as the
// input; only the volume header time and site, the packet header time and
// the time fields of type 1 and type 31 payload prefixes change.
//
// Records are written whole. When Run fails, BytesWritten counts the bytes
// of complete records already emitted.
func Run(src io.Reader, dst io.Writer, cfg Config, opts Options) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	p := &pipeline{
		src:  src,
		dst:  dst,
		cfg:  cfg,
		opts: opts,
		res: Result{
			Target: cfg.Target.UTC(),
			Speed:  cfg.Speed,
			ByType: make(map[uint8]int64),
		},
	}
	if m := opts.Metrics; m != nil {
		m.Start()
		defer m.Stop()
	}
	if err := p.volumeHeader(); err != nil {
		return p.res, err
	}
	for {
		done, err := p.packet()
		if err != nil {
			return p.res, err
		}
		if done {
			break
		}
	}
	common.Debugf("munge: %d packets, %d remapped, %d skipped, types %s",
		p.res.Packets, p.res.Remapped, p.res.Skipped, common.FormatTypeCounts(p.res.ByType))
	return p.res, nil
}

func (p *pipeline) readFull(buf []byte) error {
	n, err := io.ReadFull(p.src, buf)
	p.res.BytesRead += int64(n)
	return err
}

func (p *pipeline) write(stage Stage, packet int64, record []byte) error {
	n, err := p.dst.Write(record)
	if err == nil && n < len(record) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &StageError{Stage: StageWrite, Packet: packet, Offset: p.res.BytesWritten, Err: fmt.Errorf("%w: %s: %w", ErrWrite, stage, err)}
	}
	p.res.BytesWritten += int64(len(record))
	return nil
}

func (p *pipeline) audit(field string, packet, offset int64, before, after []byte) {
	if p.opts.Audit == nil {
		return
	}
	if err := p.opts.Audit.Record(field, packet, offset, before, after); err != nil {
		common.Warnf("audit %s packet %d: %v", field, packet, err)
	}
}

func (p *pipeline) volumeHeader() error {
	buf := make([]byte, archive2.VolumeHeaderSize)
	if err := p.readFull(buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: %w", ErrMalformedHeader, io.ErrUnexpectedEOF)
		} else {
			err = fmt.Errorf("%w: %w", ErrRead, err)
		}
		return &StageError{Stage: StageVolumeHeader, Err: err}
	}
	vh, err := archive2.DecodeVolumeHeader(buf)
	if err != nil {
		return &StageError{Stage: StageVolumeHeader, Err: fmt.Errorf("%w: %w", ErrMalformedHeader, err)}
	}
	reference := vh.ArchiveTime()
	p.res.SourceSite = string(vh.Site[:])
	p.res.Reference = reference.Time()
	p.remap, err = archive2.NewRemapper(reference.Unix(), p.cfg.Target.Unix(), p.cfg.Speed)
	if err != nil {
		return &StageError{Stage: StageVolumeHeader, Err: fmt.Errorf("%w: %w", ErrConfiguration, err)}
	}
	target, err := archive2.EncodeArchiveTime(p.remap.Target())
	if err != nil {
		return &StageError{Stage: StageRemap, Err: err}
	}
	out := vh.WithArchiveTime(target)
	out.Site = p.cfg.Site
	record := out.Encode()
	common.Logf("volume %s %s -> %s %s (speed %dx)",
		string(vh.Site[:]), reference, string(out.Site[:]), target, p.cfg.Speed)
	p.audit(FieldVolume, 0, 12, buf[12:archive2.VolumeHeaderSize], record[12:archive2.VolumeHeaderSize])
	return p.write(StageVolumeHeader, 0, record)
}

// packet copies one packet. done is true at a clean end of input.
func (p *pipeline) packet() (done bool, err error) {
	index := p.res.Packets + 1
	start := p.res.BytesRead
	fail := func(stage Stage, err error) error {
		return &StageError{Stage: stage, Packet: index, Offset: start, Err: err}
	}

	if err := p.readFull(p.hdr[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return true, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return false, fail(StagePacketHeader, fmt.Errorf("%w: %w", ErrTruncatedPacket, err))
		default:
			return false, fail(StagePacketHeader, fmt.Errorf("%w: %w", ErrRead, err))
		}
	}
	hdr, err := archive2.DecodePacketHeader(p.hdr[:])
	if err != nil {
		return false, fail(StagePacketHeader, err)
	}
	size, err := archive2.ResolvePayloadLength(hdr)
	if err != nil {
		return false, fail(StagePayloadLength, err)
	}

	record := make([]byte, archive2.PacketHeaderSize+size)
	copy(record, p.hdr[:])
	payload := record[archive2.PacketHeaderSize:]
	if size > 0 {
		if err := p.readFull(payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = fmt.Errorf("%w: want %d payload bytes: %w", ErrTruncatedPacket, size, io.ErrUnexpectedEOF)
			} else {
				err = fmt.Errorf("%w: %w", ErrRead, err)
			}
			return false, fail(StagePayload, err)
		}
	}

	var remapped int64
	// Day 0 marks a header without a time, such as a padding record.
	if hdr.Date != 0 {
		at, err := p.remap.RemapArchiveTime(hdr.ArchiveTime())
		if err != nil {
			return false, fail(StageRemap, err)
		}
		if err := hdr.WithArchiveTime(at).EncodeInto(record); err != nil {
			return false, fail(StagePacketHeader, err)
		}
		p.audit(FieldPacketTime, index, start+18, p.hdr[18:24], record[18:24])
		remapped++
	}

	switch hdr.MessageType {
	case archive2.MessageTypeRadialData:
		ok, err := p.remapRadial(index, start, payload)
		if err != nil {
			return false, fail(StageRemap, err)
		}
		if ok {
			remapped++
		}
	case archive2.MessageTypeGenericData:
		ok, err := p.remapGeneric(index, start, payload)
		if err != nil {
			return false, fail(StageRemap, err)
		}
		if ok {
			remapped++
		}
	}

	if err := p.write(StagePayload, index, record); err != nil {
		return false, err
	}
	p.res.Packets++
	p.res.Remapped += remapped
	p.res.ByType[hdr.MessageType]++
	if m := p.opts.Metrics; m != nil {
		m.AddPacket(hdr.MessageType, int64(len(record)))
		m.AddRemapped(remapped)
	}
	return false, nil
}

// remapRadial rewrites the collection time of a type 1 payload in place.
func (p *pipeline) remapRadial(index, start int64, payload []byte) (bool, error) {
	rd, err := archive2.DecodeRadialData(payload)
	if err != nil {
		p.skip(index, "radial", len(payload))
		return false, nil
	}
	before := snapshot(payload[0:6], p.opts.Audit != nil)
	at, err := p.remap.RemapArchiveTime(rd.ArchiveTime())
	if err != nil {
		return false, err
	}
	if err := rd.WithArchiveTime(at).EncodeInto(payload); err != nil {
		return false, err
	}
	p.audit(FieldRadialTime, index, start+archive2.PacketHeaderSize, before, payload[0:6])
	return true, nil
}

// remapGeneric rewrites the collection time of a type 31 payload in place.
// Payloads too short to hold the fixed prefix are forwarded unchanged.
func (p *pipeline) remapGeneric(index, start int64, payload []byte) (bool, error) {
	gd, err := archive2.DecodeGenericData(payload)
	if err != nil {
		p.skip(index, "generic", len(payload))
		return false, nil
	}
	before := snapshot(payload[4:10], p.opts.Audit != nil)
	at, err := p.remap.RemapArchiveTime(gd.ArchiveTime())
	if err != nil {
		return false, err
	}
	if err := gd.WithArchiveTime(at).EncodeInto(payload); err != nil {
		return false, err
	}
	p.audit(FieldGenericTime, index, start+archive2.PacketHeaderSize+4, before, payload[4:10])
	return true, nil
}

func (p *pipeline) skip(index int64, kind string, size int) {
	p.res.Skipped++
	if m := p.opts.Metrics; m != nil {
		m.IncSkipped()
	}
	common.Warnf("packet %d: %s payload of %d bytes too short for its prefix, forwarded unchanged", index, kind, size)
}

func snapshot(b []byte, want bool) []byte {
	if !want {
		return nil
	}
	return append([]byte(nil), b...)
}
