package rosbag

import "encoding/binary"

// The bag format is little-endian throughout. Fields are kept as raw bytes
// wherever semantic context (size, sign) is not yet known, per the design
// note in spec.md §9 ("field values as raw bytes").
var endian binary.ByteOrder = binary.LittleEndian

const lenInBytes = 4

// readUint64LH and putUint64LH spell out the two-word read/write explicitly,
// following spec.md §9's note that a 64-bit integer is "lo u32 + (hi u32 <<
// 32)" and implementers should not assume a wider native integer type is
// available. Go does have a native uint64; these stay thin wrappers around
// it rather than a manual word-splitting loop (see DESIGN.md).
func readUint64LH(b []byte) uint64 {
	lo := uint64(endian.Uint32(b[0:4]))
	hi := uint64(endian.Uint32(b[4:8]))
	return lo | (hi << 32)
}

func putUint64LH(b []byte, v uint64) {
	endian.PutUint32(b[0:4], uint32(v))
	endian.PutUint32(b[4:8], uint32(v>>32))
}
