package rosbag

import (
	"context"
	"fmt"
)

// Magic is the 13-byte version line every bag begins with.
const Magic = "#ROSBAG V2.0\n"

// Source is the random-access byte source a Reader pulls from. It is the
// "Filelike" collaborator of spec.md §6, kept external to the codec: any
// in-memory buffer, *os.File, or network-backed store can implement it.
type Source interface {
	// Size reports the total addressable length of the source.
	Size(ctx context.Context) (uint64, error)
	// ReadAt returns exactly length bytes starting at offset, or an error
	// (including a short read, which the Reader treats as ErrUnexpectedEOF).
	ReadAt(ctx context.Context, offset uint64, length uint32) ([]byte, error)
}

// DecompressorTable maps a compression name (spec.md §3.2: "none", "bz2",
// "lz4") to a function decompressing bytes given the expected uncompressed
// size.
type DecompressorTable map[string]func(compressed []byte, uncompressedSize uint32) ([]byte, error)

// Reader parses bag structure out of a Source. It never buffers the whole
// file: chunk contents are fetched lazily via ReadChunk, per spec.md §4.5.
type Reader struct {
	src Source

	// Warnf, if set, receives a formatted warning when lenient parsing
	// skips an unexpected opcode inside a chunk (spec.md §4.5). It
	// defaults to a no-op so the library imposes no logging dependency on
	// callers, matching the teacher's zero-logging-dependency posture
	// (see SPEC_FULL.md "Ambient stack").
	Warnf func(format string, args ...any)

	// Lenient, when true, skips unknown opcodes encountered while reading
	// a chunk instead of failing with ErrUnexpectedOpcode (spec.md §4.5).
	Lenient bool
}

// NewReader returns a Reader over src.
func NewReader(src Source) *Reader {
	return &Reader{src: src, Warnf: func(string, ...any) {}}
}

func (r *Reader) warnf(format string, args ...any) {
	if r.Warnf != nil {
		r.Warnf(format, args...)
	}
}

// ReadHeader reads the magic line and the fixed-position BagHeader record,
// per spec.md §4.5 steps 1-2.
func (r *Reader) ReadHeader(ctx context.Context) (BagHeaderRecord, error) {
	magic, err := r.src.ReadAt(ctx, 0, uint32(len(Magic)))
	if err != nil {
		return BagHeaderRecord{}, fmt.Errorf("%w: reading magic: %w", ErrIO, err)
	}
	if string(magic) != Magic {
		return BagHeaderRecord{}, fmt.Errorf("%w: got %q", ErrBadMagic, magic)
	}

	window, err := r.src.ReadAt(ctx, uint64(len(Magic)), bagHeaderTotalSize)
	if err != nil {
		return BagHeaderRecord{}, fmt.Errorf("%w: reading bag header: %w", ErrIO, err)
	}

	fields, data, _, err := splitRecord(window)
	if err != nil {
		return BagHeaderRecord{}, fmt.Errorf("reading bag header at offset %d: %w", len(Magic), err)
	}
	return decodeBagHeader(fields, data)
}

// ReadConnectionsAndChunkInfos seeks to hdr.IndexPos and reads conn_count
// Connection records followed by chunk_count ChunkInfo records, tolerating
// arbitrary record lengths by reading each record's own framing, per
// spec.md §4.5 step 3.
func (r *Reader) ReadConnectionsAndChunkInfos(ctx context.Context, hdr BagHeaderRecord) (*ConnectionTable, []ChunkInfoRecord, error) {
	conns := NewConnectionTable()
	offset := hdr.IndexPos

	for i := uint32(0); i < hdr.ConnCount; i++ {
		fields, data, size, err := r.readRecordAt(ctx, offset)
		if err != nil {
			return nil, nil, fmt.Errorf("reading connection %d/%d at offset %d: %w", i, hdr.ConnCount, offset, err)
		}
		rec, err := decodeConnection(fields, data)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding connection at offset %d: %w", offset, err)
		}
		conns.Add(rec)
		offset += uint64(size)
	}

	chunkInfos := make([]ChunkInfoRecord, 0, hdr.ChunkCount)
	for i := uint32(0); i < hdr.ChunkCount; i++ {
		fields, data, size, err := r.readRecordAt(ctx, offset)
		if err != nil {
			return nil, nil, fmt.Errorf("reading chunk info %d/%d at offset %d: %w", i, hdr.ChunkCount, offset, err)
		}
		rec, err := decodeChunkInfo(fields, data)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding chunk info at offset %d: %w", offset, err)
		}
		chunkInfos = append(chunkInfos, rec)
		offset += uint64(size)
	}

	return conns, chunkInfos, nil
}

// ReadBag runs the full parse protocol of spec.md §4.5 and returns the
// populated index model.
func (r *Reader) ReadBag(ctx context.Context) (*Bag, error) {
	hdr, err := r.ReadHeader(ctx)
	if err != nil {
		return nil, err
	}
	conns, chunkInfos, err := r.ReadConnectionsAndChunkInfos(ctx, hdr)
	if err != nil {
		return nil, err
	}
	return &Bag{Header: hdr, Connections: conns, ChunkInfos: chunkInfos}, nil
}

// ReadChunk seeks to ci.ChunkPos, reads the Chunk record, decompresses it
// using decompressors, and reads the IndexData records immediately
// following it on disk, per spec.md §4.5 step 5. It reads one IndexData
// record per entry in ci.Connections (the ChunkInfo's per-connection counts,
// one entry per distinct connection in the chunk); the decompressed chunk
// data itself is not scanned to determine that number.
func (r *Reader) ReadChunk(ctx context.Context, ci ChunkInfoRecord, decompressors DecompressorTable) (ChunkRecord, []IndexDataRecord, error) {
	fields, data, size, err := r.readRecordAt(ctx, ci.ChunkPos)
	if err != nil {
		return ChunkRecord{}, nil, fmt.Errorf("reading chunk at offset %d: %w", ci.ChunkPos, err)
	}
	chunk, err := decodeChunk(fields, data)
	if err != nil {
		return ChunkRecord{}, nil, fmt.Errorf("decoding chunk at offset %d: %w", ci.ChunkPos, err)
	}

	if chunk.Compression != string(CompressionNone) {
		decompress, ok := decompressors[chunk.Compression]
		if !ok {
			return ChunkRecord{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, chunk.Compression)
		}
		uncompressed, err := decompress(chunk.Data, chunk.Size)
		if err != nil {
			return ChunkRecord{}, nil, fmt.Errorf("%w: %v", ErrDecompress, err)
		}
		chunk.Data = uncompressed
	}

	offset := ci.ChunkPos + uint64(size)
	indexDataRecords := make([]IndexDataRecord, 0, len(ci.Connections))
	for i := 0; i < len(ci.Connections); i++ {
		fields, data, recSize, err := r.readRecordAt(ctx, offset)
		if err != nil {
			return ChunkRecord{}, nil, fmt.Errorf("reading index data %d/%d at offset %d: %w", i, len(ci.Connections), offset, err)
		}
		idx, err := decodeIndexData(fields, data)
		if err != nil {
			return ChunkRecord{}, nil, fmt.Errorf("decoding index data at offset %d: %w", offset, err)
		}
		indexDataRecords = append(indexDataRecords, idx)
		offset += uint64(recSize)
	}

	return chunk, indexDataRecords, nil
}

// readRecordAt reads one full [header_len][header][data_len][data] record
// starting at offset, without knowing its length in advance: it first reads
// the length prefixes, then the exact remaining bytes. Returns the decoded
// header fields, data section, and total record size in bytes.
func (r *Reader) readRecordAt(ctx context.Context, offset uint64) ([]HeaderField, []byte, int, error) {
	prefix, err := r.src.ReadAt(ctx, offset, lenInBytes)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	headerLen := endian.Uint32(prefix)

	headerAndDataLen, err := r.src.ReadAt(ctx, offset+lenInBytes, headerLen+lenInBytes)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	fields, err := ExtractFields(headerAndDataLen[:headerLen])
	if err != nil {
		return nil, nil, 0, err
	}
	dataLen := endian.Uint32(headerAndDataLen[headerLen:])

	data, err := r.src.ReadAt(ctx, offset+lenInBytes+uint64(headerLen)+lenInBytes, dataLen)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %w", ErrIO, err)
	}

	total := lenInBytes + int(headerLen) + lenInBytes + int(dataLen)
	return fields, data, total, nil
}
