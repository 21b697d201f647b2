package tl

const (
	WordLen   = 4
	LongLen   = WordLen * 2
	DoubleLen = WordLen * 2
	Int128Len = WordLen * 4
	Int256Len = WordLen * 8

	// LongLengthMarker prefixes byte strings of 254 bytes or more.
	LongLengthMarker = 0xfe
	maxShortLength   = 253
	maxBytesLength   = 1<<24 - 1

	CrcVector uint32 = 0x1cb5c415
	CrcFalse  uint32 = 0xbc799737
	CrcTrue   uint32 = 0x997275b5
	CrcNull   uint32 = 0x56730bcc
)

// Layer is the newest schema revision this package encodes.
const Layer = 177
