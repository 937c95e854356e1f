package archive2

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// cursor walks a big-endian byte slice field by field. Callers check the
// slice length once up front, so the accessors never go out of range.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) u8() uint8 {
	v := c.buf[c.off]
	c.off++
	return v
}

func (c *cursor) u16() uint16 {
	v := binary.BigEndian.Uint16(c.buf[c.off : c.off+2])
	c.off += 2
	return v
}

func (c *cursor) u32() uint32 {
	v := binary.BigEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v
}

func (c *cursor) bytes(dst []byte) {
	c.off += copy(dst, c.buf[c.off:c.off+len(dst)])
}

func (c *cursor) put8(v uint8) {
	c.buf[c.off] = v
	c.off++
}

func (c *cursor) put16(v uint16) {
	binary.BigEndian.PutUint16(c.buf[c.off:c.off+2], v)
	c.off += 2
}

func (c *cursor) put32(v uint32) {
	binary.BigEndian.PutUint32(c.buf[c.off:c.off+4], v)
	c.off += 4
}

func (c *cursor) putBytes(src []byte) {
	c.off += copy(c.buf[c.off:c.off+len(src)], src)
}

func short(record string, got, want int) error {
	return fmt.Errorf("%s: %d bytes, need %d: %w", record, got, want, io.ErrUnexpectedEOF)
}

// DecodeVolumeHeader parses the 24-byte archive volume header.
func DecodeVolumeHeader(buf []byte) (VolumeHeader, error) {
	var vh VolumeHeader
	if len(buf) < VolumeHeaderSize {
		return vh, short("volume header", len(buf), VolumeHeaderSize)
	}
	c := cursor{buf: buf}
	c.bytes(vh.Filename[:])
	vh.Date = c.u32()
	vh.Time = c.u32()
	c.bytes(vh.Site[:])
	return vh, nil
}

// EncodeInto writes the header into the first VolumeHeaderSize bytes of buf.
func (vh VolumeHeader) EncodeInto(buf []byte) error {
	if len(buf) < VolumeHeaderSize {
		return short("volume header", len(buf), VolumeHeaderSize)
	}
	c := cursor{buf: buf}
	c.putBytes(vh.Filename[:])
	c.put32(vh.Date)
	c.put32(vh.Time)
	c.putBytes(vh.Site[:])
	return nil
}

func (vh VolumeHeader) Encode() []byte {
	buf := make([]byte, VolumeHeaderSize)
	_ = vh.EncodeInto(buf)
	return buf
}

// ArchiveTime returns the volume scan time. The date field is 32 bits wide
// on the wire but only its low half carries the day count.
func (vh VolumeHeader) ArchiveTime() ArchiveTime {
	return ArchiveTime{Days: uint16(vh.Date), Millis: vh.Time}
}

func (vh VolumeHeader) WithArchiveTime(at ArchiveTime) VolumeHeader {
	vh.Date = uint32(at.Days)
	vh.Time = at.Millis
	return vh
}

// DecodePacketHeader parses a 28-byte packet header.
func DecodePacketHeader(buf []byte) (PacketHeader, error) {
	var ph PacketHeader
	if len(buf) < PacketHeaderSize {
		return ph, short("packet header", len(buf), PacketHeaderSize)
	}
	c := cursor{buf: buf}
	c.bytes(ph.CTM[:])
	ph.HalfWords = c.u16()
	ph.Channel = c.u8()
	ph.MessageType = c.u8()
	ph.Sequence = c.u16()
	ph.Date = c.u16()
	ph.Time = c.u32()
	ph.Segments = c.u16()
	ph.Segment = c.u16()
	return ph, nil
}

func (ph PacketHeader) EncodeInto(buf []byte) error {
	if len(buf) < PacketHeaderSize {
		return short("packet header", len(buf), PacketHeaderSize)
	}
	c := cursor{buf: buf}
	c.putBytes(ph.CTM[:])
	c.put16(ph.HalfWords)
	c.put8(ph.Channel)
	c.put8(ph.MessageType)
	c.put16(ph.Sequence)
	c.put16(ph.Date)
	c.put32(ph.Time)
	c.put16(ph.Segments)
	c.put16(ph.Segment)
	return nil
}

func (ph PacketHeader) Encode() []byte {
	buf := make([]byte, PacketHeaderSize)
	_ = ph.EncodeInto(buf)
	return buf
}

func (ph PacketHeader) ArchiveTime() ArchiveTime {
	return ArchiveTime{Days: ph.Date, Millis: ph.Time}
}

func (ph PacketHeader) WithArchiveTime(at ArchiveTime) PacketHeader {
	ph.Date = at.Days
	ph.Time = at.Millis
	return ph
}

// DecodeRadialData parses the fixed prefix of a message type 1 payload.
// Bytes past the prefix are not examined.
func DecodeRadialData(buf []byte) (RadialData, error) {
	var rd RadialData
	if len(buf) < RadialDataSize {
		return rd, short("radial data", len(buf), RadialDataSize)
	}
	c := cursor{buf: buf}
	rd.RadialTime = c.u32()
	rd.RadialDate = c.u16()
	rd.Range = c.u16()
	rd.AzimuthAngle = c.u16()
	rd.AzimuthNumber = c.u16()
	rd.RadialStatus = c.u16()
	rd.ElevationAngle = c.u16()
	rd.ElevationNumber = c.u16()
	rd.ReflectivityRange = int16(c.u16())
	rd.DopplerRange = int16(c.u16())
	rd.ReflectivityGateSize = c.u16()
	rd.DopplerGateSize = c.u16()
	rd.ReflectivityBins = c.u16()
	rd.DopplerBins = c.u16()
	rd.CutSectorNumber = c.u16()
	rd.CalibrationConstant = c.u32()
	rd.ReflectivityOffset = c.u16()
	rd.VelocityOffset = c.u16()
	rd.SpectralWidthOffset = c.u16()
	rd.DopplerResolution = c.u16()
	rd.VCP = c.u16()
	rd.VV = c.u32()
	rd.VV2 = c.u32()
	rd.A2Reflectivity = c.u16()
	rd.A2Velocity = c.u16()
	rd.A2Spectral = c.u16()
	rd.NyquistVelocity = c.u16()
	rd.AtmosAttenuation = int16(c.u16())
	rd.OverlayThreshold = int16(c.u16())
	rd.SpotBlankingStatus = c.u16()
	return rd, nil
}

// EncodeInto overwrites the fixed prefix of payload, leaving the rest of
// the slice untouched.
func (rd RadialData) EncodeInto(payload []byte) error {
	if len(payload) < RadialDataSize {
		return short("radial data", len(payload), RadialDataSize)
	}
	c := cursor{buf: payload}
	c.put32(rd.RadialTime)
	c.put16(rd.RadialDate)
	c.put16(rd.Range)
	c.put16(rd.AzimuthAngle)
	c.put16(rd.AzimuthNumber)
	c.put16(rd.RadialStatus)
	c.put16(rd.ElevationAngle)
	c.put16(rd.ElevationNumber)
	c.put16(uint16(rd.ReflectivityRange))
	c.put16(uint16(rd.DopplerRange))
	c.put16(rd.ReflectivityGateSize)
	c.put16(rd.DopplerGateSize)
	c.put16(rd.ReflectivityBins)
	c.put16(rd.DopplerBins)
	c.put16(rd.CutSectorNumber)
	c.put32(rd.CalibrationConstant)
	c.put16(rd.ReflectivityOffset)
	c.put16(rd.VelocityOffset)
	c.put16(rd.SpectralWidthOffset)
	c.put16(rd.DopplerResolution)
	c.put16(rd.VCP)
	c.put32(rd.VV)
	c.put32(rd.VV2)
	c.put16(rd.A2Reflectivity)
	c.put16(rd.A2Velocity)
	c.put16(rd.A2Spectral)
	c.put16(rd.NyquistVelocity)
	c.put16(uint16(rd.AtmosAttenuation))
	c.put16(uint16(rd.OverlayThreshold))
	c.put16(rd.SpotBlankingStatus)
	return nil
}

func (rd RadialData) Encode() []byte {
	buf := make([]byte, RadialDataSize)
	_ = rd.EncodeInto(buf)
	return buf
}

func (rd RadialData) ArchiveTime() ArchiveTime {
	return ArchiveTime{Days: rd.RadialDate, Millis: rd.RadialTime}
}

func (rd RadialData) WithArchiveTime(at ArchiveTime) RadialData {
	rd.RadialDate = at.Days
	rd.RadialTime = at.Millis
	return rd
}

// DecodeGenericData parses the fixed prefix of a message type 31 payload.
// The data blocks the offsets point at are not interpreted.
func DecodeGenericData(buf []byte) (GenericData, error) {
	var gd GenericData
	if len(buf) < GenericDataSize {
		return gd, short("generic data", len(buf), GenericDataSize)
	}
	c := cursor{buf: buf}
	c.bytes(gd.ICAO[:])
	gd.RadialTime = c.u32()
	gd.RadialDate = c.u16()
	gd.AzimuthNumber = c.u16()
	gd.AzimuthAngleBits = c.u32()
	gd.CompressionType = c.u8()
	gd.Spare = c.u8()
	gd.UncompressedLength = c.u16()
	gd.AzimuthSpacing = c.u8()
	gd.RadialStatus = c.u8()
	gd.ElevationNumber = c.u8()
	gd.CutSectorNumber = c.u8()
	gd.ElevationAngleBits = c.u32()
	gd.SpotBlankingStatus = c.u8()
	gd.AzimuthIndexingMode = c.u8()
	gd.DataBlockCount = c.u16()
	for i := range gd.DataBlockOffsets {
		gd.DataBlockOffsets[i] = c.u32()
	}
	return gd, nil
}

func (gd GenericData) EncodeInto(payload []byte) error {
	if len(payload) < GenericDataSize {
		return short("generic data", len(payload), GenericDataSize)
	}
	c := cursor{buf: payload}
	c.putBytes(gd.ICAO[:])
	c.put32(gd.RadialTime)
	c.put16(gd.RadialDate)
	c.put16(gd.AzimuthNumber)
	c.put32(gd.AzimuthAngleBits)
	c.put8(gd.CompressionType)
	c.put8(gd.Spare)
	c.put16(gd.UncompressedLength)
	c.put8(gd.AzimuthSpacing)
	c.put8(gd.RadialStatus)
	c.put8(gd.ElevationNumber)
	c.put8(gd.CutSectorNumber)
	c.put32(gd.ElevationAngleBits)
	c.put8(gd.SpotBlankingStatus)
	c.put8(gd.AzimuthIndexingMode)
	c.put16(gd.DataBlockCount)
	for _, off := range gd.DataBlockOffsets {
		c.put32(off)
	}
	return nil
}

func (gd GenericData) Encode() []byte {
	buf := make([]byte, GenericDataSize)
	_ = gd.EncodeInto(buf)
	return buf
}

func (gd GenericData) ArchiveTime() ArchiveTime {
	return ArchiveTime{Days: gd.RadialDate, Millis: gd.RadialTime}
}

func (gd GenericData) WithArchiveTime(at ArchiveTime) GenericData {
	gd.RadialDate = at.Days
	gd.RadialTime = at.Millis
	return gd
}

// AzimuthAngle and ElevationAngle decode the raw float bits for display.
func (gd GenericData) AzimuthAngle() float32 {
	return math.Float32frombits(gd.AzimuthAngleBits)
}

func (gd GenericData) ElevationAngle() float32 {
	return math.Float32frombits(gd.ElevationAngleBits)
}
