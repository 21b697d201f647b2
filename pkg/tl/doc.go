// Package tl implements the Type Language binary serialization used on the wire.
//
// Every boxed value starts with a 4-byte little-endian constructor ID. Decoding
// looks the ID up in a static registry populated at init time and hands the
// rest of the stream to that type's field decoder.
//
// # Primitives
//
//   - int/long/int128/int256: little-endian fixed width
//   - double: IEEE 754 little-endian
//   - Bool: boolTrue#997275b5 / boolFalse#bc799737
//   - bytes/string: 1-byte length (<254) or 0xFE + 3-byte length, zero padded to 4
//   - Vector<T>: vector#1cb5c415, int32 count, elements
//
// Optional fields are gated by flags words (see Flags). An object may carry
// more than one flags word when it has more than 32 optional fields.
package tl
