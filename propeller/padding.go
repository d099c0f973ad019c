package propeller

import "encoding/binary"

const lengthPrefixSize = 4

// padMessage prefixes message with its 4-byte little-endian length and
// zero-pads the result so its total length is a multiple of dataCount
// (§4.J "optionally pads the message with a 4-byte little-endian length
// prefix so its length aligns to data_count × shard_size").
func padMessage(message []byte, dataCount int) []byte {
	total := lengthPrefixSize + len(message)
	if rem := total % dataCount; rem != 0 {
		total += dataCount - rem
	}
	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out[:lengthPrefixSize], uint32(len(message)))
	copy(out[lengthPrefixSize:], message)
	return out
}

// unpadMessage reverses padMessage, validating the embedded length
// against the padded buffer's size (§4.J "MessagePaddingError").
func unpadMessage(padded []byte) ([]byte, error) {
	if len(padded) < lengthPrefixSize {
		return nil, ErrMessagePaddingError
	}
	length := binary.LittleEndian.Uint32(padded[:lengthPrefixSize])
	end := lengthPrefixSize + int(length)
	if end > len(padded) {
		return nil, ErrMessagePaddingError
	}
	return padded[lengthPrefixSize:end], nil
}
