package archive2

import (
	"errors"
	"fmt"
)

var ErrInvalidPayloadLength = errors.New("invalid payload length")

// ResolvePayloadLength returns how many payload bytes follow hdr before the
// next packet header. Only generic (type 31) packets size themselves from
// the half-word count, which also covers the CTM prefix; every other type
// is assumed to fill a legacy fixed-size record.
//
// A zero length is valid and means the record is a bare header.
func ResolvePayloadLength(hdr PacketHeader) (int, error) {
	if hdr.MessageType != MessageTypeGenericData {
		return LegacyRecordSize - PacketHeaderSize, nil
	}
	n := 2*int(hdr.HalfWords) - PacketHeaderSize + LegacyCTMHeaderLength
	if n < 0 {
		return 0, fmt.Errorf("%w: %d half words gives %d bytes", ErrInvalidPayloadLength, hdr.HalfWords, n)
	}
	return n, nil
}
