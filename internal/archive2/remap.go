package archive2

import (
	"errors"
	"fmt"
)

var ErrInvalidSpeedFactor = errors.New("speed factor must be a positive integer")

// Remapper moves timestamps so that a volume starting at reference starts
// at target instead, and compresses every offset from the volume start by
// the speed factor.
type Remapper struct {
	reference int64
	offset    int64
	speed     int64
}

// NewRemapper captures the reference and target volume start times (Unix
// seconds) and the speed factor.
func NewRemapper(reference, target int64, speed int) (*Remapper, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSpeedFactor, speed)
	}
	return &Remapper{
		reference: reference,
		offset:    target - reference,
		speed:     int64(speed),
	}, nil
}

func (r *Remapper) Reference() int64 { return r.reference }
func (r *Remapper) Offset() int64    { return r.offset }
func (r *Remapper) Speed() int       { return int(r.speed) }

// Target is the relocated volume start time.
func (r *Remapper) Target() int64 {
	return r.reference + r.offset
}

// Remap applies the relocation and dilation to t. Division truncates toward
// zero, so offsets before the reference shrink toward it as well.
func (r *Remapper) Remap(t int64) int64 {
	delta := t - r.reference
	return t + r.offset - delta + delta/r.speed
}

// RemapArchiveTime decodes at, remaps it and encodes the result.
func (r *Remapper) RemapArchiveTime(at ArchiveTime) (ArchiveTime, error) {
	return EncodeArchiveTime(r.Remap(at.Unix()))
}
