package objstream

import "bytes"

var magic = []byte{byte(StreamMagic >> 8), byte(StreamMagic & 0xFF)}

// Scan returns the offset of the first stream magic in buf. Both magic bytes
// must be adjacent.
func Scan(buf []byte) (int, error) {
	i := bytes.Index(buf, magic)
	if i < 0 {
		return -1, ErrMagicNotFound
	}
	return i, nil
}
