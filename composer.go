package rosbag

import (
	"bytes"
	"context"
	"fmt"
	"sort"
)

// CompressorTable maps a compression name to a function compressing raw
// bytes. Unlike DecompressorTable, this is purely a composer-side concern:
// spec.md treats compress/decompress symmetrically as external collaborators
// (§1), but not every decompressible format in the wild has a practical
// pure-Go compressor (bz2 is the notable gap; see rosbagz/rosbagz.go and
// DESIGN.md).
type CompressorTable map[string]func(raw []byte) ([]byte, error)

// ComposeOptions configures a single Compose/Rewrite call.
type ComposeOptions struct {
	// Decompress is used to re-read existing compressed chunks from the
	// source bag. Required whenever the source bag has any chunk whose
	// compression isn't "none".
	Decompress DecompressorTable

	// Compress and Compression together select the output compression for
	// re-emitted chunks. If Compression is "" or CompressionNone, chunks
	// are written out uncompressed regardless of how they were stored in
	// the source bag.
	Compress    CompressorTable
	Compression Compression
}

// Composer serializes a Reader's source bag (or a transformed version of
// it) back into a bag-shaped byte stream, per spec.md §4.6.
type Composer struct {
	Reader *Reader
	Bag    *Bag
}

// NewComposer returns a Composer that will re-fetch chunk contents through r
// and serialize according to bag's connection table and chunk-info list.
func NewComposer(r *Reader, bag *Bag) *Composer {
	return &Composer{Reader: r, Bag: bag}
}

// Compose implements the single-pass output protocol of spec.md §4.6: for
// an unmodified bag, Reader(Compose(bag)) is equivalent to bag, excluding
// BagHeader padding bytes (normalized to ASCII spaces).
func (c *Composer) Compose(ctx context.Context, opts ComposeOptions) ([]byte, error) {
	return c.composeCore(ctx, opts, func(ctx context.Context, ci ChunkInfoRecord) (ChunkRecord, []IndexDataRecord, ChunkInfoRecord, error) {
		chunk, idx, err := c.Reader.ReadChunk(ctx, ci, opts.Decompress)
		if err != nil {
			return ChunkRecord{}, nil, ChunkInfoRecord{}, err
		}
		return chunk, idx, ci, nil
	})
}

// Rewrite re-serializes the source bag, passing each chunk's decoded
// MessageData records through transform before re-composing the chunk.
// ChunkInfo time range, per-connection counts, and IndexData offsets are
// recomputed from the transformed message list; this is the "optional
// transformed chunk contents" path referenced by C6's responsibility line
// in SPEC_FULL.md §2.
func (c *Composer) Rewrite(ctx context.Context, opts ComposeOptions, transform func(ci ChunkInfoRecord, messages []MessageDataRecord) ([]MessageDataRecord, error)) ([]byte, error) {
	return c.composeCore(ctx, opts, func(ctx context.Context, ci ChunkInfoRecord) (ChunkRecord, []IndexDataRecord, ChunkInfoRecord, error) {
		chunk, _, err := c.Reader.ReadChunk(ctx, ci, opts.Decompress)
		if err != nil {
			return ChunkRecord{}, nil, ChunkInfoRecord{}, err
		}
		messages, err := decodeChunkMessages(chunk.Data, c.Reader.Lenient, c.Reader.warnf)
		if err != nil {
			return ChunkRecord{}, nil, ChunkInfoRecord{}, fmt.Errorf("decoding messages in chunk at %d: %w", ci.ChunkPos, err)
		}
		messages, err = transform(ci, messages)
		if err != nil {
			return ChunkRecord{}, nil, ChunkInfoRecord{}, err
		}

		newChunk, idx := ComposeChunk(messages)
		newCI := recomputeChunkInfo(ci.Ver, messages, idx)
		return newChunk, idx, newCI, nil
	})
}

// composeCore runs the shared section-assembly algorithm; buildChunk
// supplies the (possibly transformed) contents of one chunk.
func (c *Composer) composeCore(ctx context.Context, opts ComposeOptions, buildChunk func(ctx context.Context, ci ChunkInfoRecord) (ChunkRecord, []IndexDataRecord, ChunkInfoRecord, error)) ([]byte, error) {
	const baseOffset = uint64(len(Magic)) + bagHeaderTotalSize

	var chunkSection bytes.Buffer
	newChunkInfos := make([]ChunkInfoRecord, len(c.Bag.ChunkInfos))

	for i, ci := range c.Bag.ChunkInfos {
		chunkRec, idxRecs, newCI, err := buildChunk(ctx, ci)
		if err != nil {
			return nil, fmt.Errorf("composing chunk %d/%d: %w", i, len(c.Bag.ChunkInfos), err)
		}

		outChunk, err := recompress(chunkRec, opts)
		if err != nil {
			return nil, err
		}

		newCI.ChunkPos = baseOffset + uint64(chunkSection.Len())
		chunkSection.Write(composeChunk(outChunk))
		for _, idx := range idxRecs {
			chunkSection.Write(composeIndexData(idx))
		}
		newChunkInfos[i] = newCI
	}

	connIDs := make([]uint32, 0, len(c.Bag.Connections.ByID))
	for id := range c.Bag.Connections.ByID {
		connIDs = append(connIDs, id)
	}
	sort.Slice(connIDs, func(i, j int) bool { return connIDs[i] < connIDs[j] })

	var connSection bytes.Buffer
	for _, id := range connIDs {
		connSection.Write(composeConnection(c.Bag.Connections.ByID[id]))
	}

	var chunkInfoSection bytes.Buffer
	for _, ci := range newChunkInfos {
		chunkInfoSection.Write(composeChunkInfo(ci))
	}

	indexPos := baseOffset + uint64(chunkSection.Len()) + uint64(connSection.Len())
	hdr := BagHeaderRecord{
		IndexPos:   indexPos,
		ConnCount:  uint32(len(connIDs)),
		ChunkCount: uint32(len(newChunkInfos)),
	}

	var out bytes.Buffer
	out.WriteString(Magic)
	out.Write(composeBagHeader(hdr))
	out.Write(chunkSection.Bytes())
	out.Write(connSection.Bytes())
	out.Write(chunkInfoSection.Bytes())
	return out.Bytes(), nil
}

// recompress applies opts' output compression policy to a decompressed
// ChunkRecord (chunkRec.Data is always uncompressed bytes at this point,
// per Reader.ReadChunk's contract).
func recompress(chunkRec ChunkRecord, opts ComposeOptions) (ChunkRecord, error) {
	uncompressed := chunkRec.Data
	out := ChunkRecord{Size: uint32(len(uncompressed))}

	if opts.Compression == "" || opts.Compression == CompressionNone {
		out.Compression = string(CompressionNone)
		out.Data = uncompressed
		return out, nil
	}

	compress, ok := opts.Compress[string(opts.Compression)]
	if !ok {
		return ChunkRecord{}, fmt.Errorf("%w: no compressor registered for %q", ErrUnsupportedCompression, opts.Compression)
	}
	compressed, err := compress(uncompressed)
	if err != nil {
		return ChunkRecord{}, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	out.Compression = string(opts.Compression)
	out.Data = compressed
	return out, nil
}

// ComposeChunk is the create-chunk helper of spec.md §4.6: given a list of
// MessageData records (in the order they should be written), it builds the
// Chunk and per-connection IndexData records that represent them,
// uncompressed ("none"), with one IndexData per distinct connection in
// first-appearance order.
func ComposeChunk(messages []MessageDataRecord) (ChunkRecord, []IndexDataRecord) {
	var buf bytes.Buffer
	entriesByConn := make(map[uint32][]IndexEntry)
	var order []uint32

	for _, m := range messages {
		offset := buf.Len()
		buf.Write(composeMessageData(m))
		if _, seen := entriesByConn[m.Conn]; !seen {
			order = append(order, m.Conn)
		}
		entriesByConn[m.Conn] = append(entriesByConn[m.Conn], IndexEntry{Time: m.Time, Offset: uint32(offset)})
	}

	chunk := ChunkRecord{
		Compression: string(CompressionNone),
		Size:        uint32(buf.Len()),
		Data:        buf.Bytes(),
	}

	indexRecords := make([]IndexDataRecord, 0, len(order))
	for _, conn := range order {
		entries := entriesByConn[conn]
		indexRecords = append(indexRecords, IndexDataRecord{
			Ver:     1,
			Conn:    conn,
			Count:   uint32(len(entries)),
			Entries: entries,
		})
	}
	return chunk, indexRecords
}

// recomputeChunkInfo derives a ChunkInfo's time range and per-connection
// counts from a (possibly transformed) message list, keeping ver as given.
func recomputeChunkInfo(ver uint32, messages []MessageDataRecord, idx []IndexDataRecord) ChunkInfoRecord {
	ci := ChunkInfoRecord{Ver: ver}
	counts := make([]ChunkInfoConnCount, 0, len(idx))
	for _, rec := range idx {
		counts = append(counts, ChunkInfoConnCount{Conn: rec.Conn, Count: rec.Count})
	}
	ci.Connections = counts

	total := uint32(0)
	for i, m := range messages {
		total++
		if i == 0 {
			ci.StartTime, ci.EndTime = m.Time, m.Time
			continue
		}
		if m.Time.Before(ci.StartTime) {
			ci.StartTime = m.Time
		}
		if m.Time.After(ci.EndTime) {
			ci.EndTime = m.Time
		}
	}
	ci.Count = total
	return ci
}

// decodeChunkMessages walks a chunk's decompressed data and returns every
// MessageData record it contains, in file order, skipping any interleaved
// Connection records (spec.md §3.2 permits Connection records inside a
// chunk's data section; this helper is only concerned with messages).
//
// An unrecognized opcode fails with ErrUnexpectedOpcode unless lenient is
// set, in which case the record is skipped and warnf (never nil; Reader
// always supplies at least a no-op) is called instead, per spec.md §4.5.
func decodeChunkMessages(data []byte, lenient bool, warnf func(string, ...any)) ([]MessageDataRecord, error) {
	var messages []MessageDataRecord
	for len(data) > 0 {
		fields, body, rest, err := splitRecord(data)
		if err != nil {
			return nil, err
		}

		op, ok := lastField(fields, "op")
		if !ok {
			return nil, ErrMissingOp
		}
		switch Op(op[0]) {
		case OpMessageData:
			m, err := decodeMessageData(fields, body)
			if err != nil {
				return nil, err
			}
			messages = append(messages, m)
		case OpConnection:
			// Connection records may recur inside chunk data; the bag's
			// top-level connection table is authoritative.
		default:
			if !lenient {
				return nil, fmt.Errorf("%w: 0x%02x inside chunk", ErrUnexpectedOpcode, op[0])
			}
			warnf("rosbag: skipping unexpected opcode 0x%02x inside chunk", op[0])
		}

		data = rest
	}
	return messages, nil
}
