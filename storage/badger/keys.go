package badger

import (
	"bytes"
	"encoding/binary"
)

// Key layout
const (
	indexHeaderKey    = "idxhdr"
	indexVectorPrefix = "idxvec:"
)

// makeVectorKey generates the key for the vector at a corpus position.
// Positions are written big-endian so that prefix iteration returns them in order.
func makeVectorKey(position int) []byte {
	buf := make([]byte, len(indexVectorPrefix)+8)
	offset := copy(buf, indexVectorPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	return buf
}

// parseVectorKey extracts the position from a vector key.
func parseVectorKey(key []byte) (int, bool) {
	if !bytes.HasPrefix(key, []byte(indexVectorPrefix)) || len(key) != len(indexVectorPrefix)+8 {
		return 0, false
	}
	return int(binary.BigEndian.Uint64(key[len(indexVectorPrefix):])), true
}
