package rosbag

// Compression names a chunk's compression algorithm (spec.md §3.2). The
// three values below are the ones rosbag tooling in the wild emits; a
// DecompressorTable/CompressorTable may define additional names.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionBZ2  Compression = "bz2"
	CompressionLZ4  Compression = "lz4"
)
