package archive2

// Swap16 reverses the byte order of a 2-byte word.
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Swap32 reverses the byte order of a 4-byte word.
func Swap32(v uint32) uint32 {
	return v<<24 | (v<<8)&0x00FF0000 | (v>>8)&0x0000FF00 | v>>24
}
