package archive2

import (
	"errors"
	"fmt"
	"time"
)

var ErrTimeOutOfRange = errors.New("time not representable as archive time")

// ArchiveTime is the two field timestamp used throughout the format: days
// since 1970-01-01 biased by one, and milliseconds past midnight.
type ArchiveTime struct {
	Days   uint16
	Millis uint32
}

// DecodeArchiveTime converts an archive day/millisecond pair to Unix
// seconds. The sub-second part of millis is dropped.
func DecodeArchiveTime(days uint16, millis uint32) int64 {
	return (int64(days)-1)*secondsPerDay + int64(millis/1000)
}

// EncodeArchiveTime converts Unix seconds into an archive day/millisecond
// pair.
func EncodeArchiveTime(t int64) (ArchiveTime, error) {
	if t < 0 {
		return ArchiveTime{}, fmt.Errorf("%w: %d is before 1970-01-01", ErrTimeOutOfRange, t)
	}
	days := t / secondsPerDay
	if days+1 > 0xFFFF {
		return ArchiveTime{}, fmt.Errorf("%w: day %d overflows 16 bits", ErrTimeOutOfRange, days+1)
	}
	millis := 1000 * (t - secondsPerDay*days)
	return ArchiveTime{Days: uint16(days + 1), Millis: uint32(millis)}, nil
}

// Unix returns the timestamp in Unix seconds.
func (at ArchiveTime) Unix() int64 {
	return DecodeArchiveTime(at.Days, at.Millis)
}

// Time returns the timestamp as a UTC time.Time with second resolution.
func (at ArchiveTime) Time() time.Time {
	return time.Unix(at.Unix(), 0).UTC()
}

func (at ArchiveTime) String() string {
	return at.Time().Format("2006-01-02 15:04:05 UTC")
}
