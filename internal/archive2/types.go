// Package archive2 decodes and re-encodes the records of a NEXRAD Archive II
// (Level II) file: the volume header, the packet headers and the two payload
// kinds that carry their own timestamp.
package archive2

const (
	VolumeHeaderSize = 24
	PacketHeaderSize = 28

	// LegacyCTMHeaderLength is the channel terminal manager prefix that is
	// counted in a generic packet's half-word count.
	LegacyCTMHeaderLength = 12

	// LegacyRecordSize is the fixed size of every non generic record,
	// header included.
	LegacyRecordSize = 2432

	RadialDataSize  = 68
	GenericDataSize = 68

	MessageTypeRadialData  uint8 = 1
	MessageTypeGenericData uint8 = 31

	secondsPerDay = 86400
	millisPerDay  = secondsPerDay * 1000
)

// VolumeHeader is the single record at the start of an archive.
type VolumeHeader struct {
	Filename [12]byte // e.g. "AR2V0006.001"
	Date     uint32   // archive day, only the low 16 bits are meaningful
	Time     uint32   // milliseconds past midnight
	Site     [4]byte
}

// PacketHeader precedes every payload in the archive.
type PacketHeader struct {
	CTM         [12]byte
	HalfWords   uint16
	Channel     uint8
	MessageType uint8
	Sequence    uint16
	Date        uint16
	Time        uint32
	Segments    uint16
	Segment     uint16
}

// RadialData is the fixed prefix of a legacy digital radar data payload
// (message type 1).
type RadialData struct {
	RadialTime           uint32
	RadialDate           uint16
	Range                uint16
	AzimuthAngle         uint16
	AzimuthNumber        uint16
	RadialStatus         uint16
	ElevationAngle       uint16
	ElevationNumber      uint16
	ReflectivityRange    int16
	DopplerRange         int16
	ReflectivityGateSize uint16
	DopplerGateSize      uint16
	ReflectivityBins     uint16
	DopplerBins          uint16
	CutSectorNumber      uint16
	CalibrationConstant  uint32
	ReflectivityOffset   uint16
	VelocityOffset       uint16
	SpectralWidthOffset  uint16
	DopplerResolution    uint16
	VCP                  uint16
	VV                   uint32
	VV2                  uint32
	A2Reflectivity       uint16
	A2Velocity           uint16
	A2Spectral           uint16
	NyquistVelocity      uint16
	AtmosAttenuation     int16
	OverlayThreshold     int16
	SpotBlankingStatus   uint16
}

// GenericData is the fixed prefix of a generic digital radar data payload
// (message type 31). Float fields are kept as their raw IEEE-754 bits.
type GenericData struct {
	ICAO                [4]byte
	RadialTime          uint32
	RadialDate          uint16
	AzimuthNumber       uint16
	AzimuthAngleBits    uint32
	CompressionType     uint8
	Spare               uint8
	UncompressedLength  uint16
	AzimuthSpacing      uint8
	RadialStatus        uint8
	ElevationNumber     uint8
	CutSectorNumber     uint8
	ElevationAngleBits  uint32
	SpotBlankingStatus  uint8
	AzimuthIndexingMode uint8
	DataBlockCount      uint16
	DataBlockOffsets    [9]uint32
}
