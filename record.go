package rosbag

import "fmt"

// Op is the one-byte opcode discriminating record kinds (spec.md §3.2).
type Op uint8

const (
	OpMessageData Op = 0x02
	OpBagHeader   Op = 0x03
	OpIndexData   Op = 0x04
	OpChunk       Op = 0x05
	OpChunkInfo   Op = 0x06
	OpConnection  Op = 0x07
)

func (op Op) String() string {
	switch op {
	case OpMessageData:
		return "MessageData"
	case OpBagHeader:
		return "BagHeader"
	case OpIndexData:
		return "IndexData"
	case OpChunk:
		return "Chunk"
	case OpChunkInfo:
		return "ChunkInfo"
	case OpConnection:
		return "Connection"
	default:
		return fmt.Sprintf("Op(0x%02x)", uint8(op))
	}
}

// Record is satisfied by every one of the six record kinds.
type Record interface {
	Op() Op
}

// The BagHeader record has a fixed on-disk size: its header-field block and
// padded data section together occupy exactly 4096 bytes, and the two 4-byte
// length prefixes bring the full record to 4104 bytes, per spec.md §3.3/§8.4.
const (
	// bagHeaderFieldsPlusDataSize is the combined size of the header-field
	// block (excluding its own 4-byte length prefix) and the padded data
	// section: spec.md §3.2/§3.3 fix this sum at 4096 bytes so that the
	// full on-disk record (both 4-byte length prefixes included) is always
	// exactly bagHeaderTotalSize bytes, regardless of field widths.
	bagHeaderFieldsPlusDataSize = 4096
	bagHeaderTotalSize          = bagHeaderFieldsPlusDataSize + lenInBytes + lenInBytes
)

// --- BagHeader -------------------------------------------------------------

type BagHeaderRecord struct {
	IndexPos   uint64
	ConnCount  uint32
	ChunkCount uint32
}

func (BagHeaderRecord) Op() Op { return OpBagHeader }

func decodeBagHeader(fields []HeaderField, data []byte) (BagHeaderRecord, error) {
	if err := checkOp(fields, OpBagHeader); err != nil {
		return BagHeaderRecord{}, err
	}
	var rec BagHeaderRecord
	v, ok := lastField(fields, "index_pos")
	if ok {
		rec.IndexPos = readUint64LH(v)
	}
	if v, ok := lastField(fields, "conn_count"); ok {
		rec.ConnCount = endian.Uint32(v)
	}
	if v, ok := lastField(fields, "chunk_count"); ok {
		rec.ChunkCount = endian.Uint32(v)
	}
	return rec, nil
}

// composeBagHeader emits the complete record: the [header_len][header] block
// from ComposeHeader, then [data_len] and a data section of ASCII spaces
// sized so the record is always exactly bagHeaderTotalSize bytes, regardless
// of field widths.
func composeBagHeader(rec BagHeaderRecord) []byte {
	indexPos := make([]byte, 8)
	putUint64LH(indexPos, rec.IndexPos)
	connCount := make([]byte, 4)
	endian.PutUint32(connCount, rec.ConnCount)
	chunkCount := make([]byte, 4)
	endian.PutUint32(chunkCount, rec.ChunkCount)

	fields := []HeaderField{
		{Name: "index_pos", Value: indexPos},
		{Name: "conn_count", Value: connCount},
		{Name: "chunk_count", Value: chunkCount},
		{Name: "op", Value: []byte{byte(OpBagHeader)}},
	}
	header, err := ComposeHeader(fields)
	if err != nil {
		// fields is always non-empty above; unreachable.
		panic(err)
	}

	paddedDataLen := bagHeaderFieldsPlusDataSize + lenInBytes - len(header)
	out := make([]byte, 0, bagHeaderTotalSize)
	out = append(out, header...)
	dataLenBuf := make([]byte, lenInBytes)
	endian.PutUint32(dataLenBuf, uint32(paddedDataLen))
	out = append(out, dataLenBuf...)
	for i := 0; i < paddedDataLen; i++ {
		out = append(out, ' ')
	}
	return out
}

// --- MessageData ------------------------------------------------------------

type MessageDataRecord struct {
	Conn uint32
	Time Time
	Data []byte
}

func (MessageDataRecord) Op() Op { return OpMessageData }

func decodeMessageData(fields []HeaderField, data []byte) (MessageDataRecord, error) {
	if err := checkOp(fields, OpMessageData); err != nil {
		return MessageDataRecord{}, err
	}
	var rec MessageDataRecord
	if v, ok := lastField(fields, "conn"); ok {
		rec.Conn = endian.Uint32(v)
	}
	if v, ok := lastField(fields, "time"); ok {
		rec.Time = readTime(v)
	}
	rec.Data = data
	return rec, nil
}

func composeMessageData(rec MessageDataRecord) []byte {
	conn := make([]byte, 4)
	endian.PutUint32(conn, rec.Conn)
	t := make([]byte, 8)
	putTime(t, rec.Time)

	fields := []HeaderField{
		{Name: "conn", Value: conn},
		{Name: "time", Value: t},
		{Name: "op", Value: []byte{byte(OpMessageData)}},
	}
	return encodeRecord(fields, rec.Data)
}

// --- Chunk -------------------------------------------------------------------

// ChunkRecord holds a chunk record as read from disk: Data is the
// (possibly) compressed byte payload, unless the caller has asked the
// Reader to decompress it, in which case Data holds the decompressed bytes
// and Size is the uncompressed size per spec.md §3.2.
type ChunkRecord struct {
	Compression string
	Size        uint32
	Data        []byte
}

func (ChunkRecord) Op() Op { return OpChunk }

func decodeChunk(fields []HeaderField, data []byte) (ChunkRecord, error) {
	if err := checkOp(fields, OpChunk); err != nil {
		return ChunkRecord{}, err
	}
	var rec ChunkRecord
	if v, ok := lastField(fields, "compression"); ok {
		rec.Compression = string(v)
	}
	if v, ok := lastField(fields, "size"); ok {
		rec.Size = endian.Uint32(v)
	}
	rec.Data = data
	return rec, nil
}

func composeChunk(rec ChunkRecord) []byte {
	size := make([]byte, 4)
	endian.PutUint32(size, rec.Size)

	fields := []HeaderField{
		{Name: "compression", Value: []byte(rec.Compression)},
		{Name: "size", Value: size},
		{Name: "op", Value: []byte{byte(OpChunk)}},
	}
	return encodeRecord(fields, rec.Data)
}

// --- IndexData ---------------------------------------------------------------

const indexDataEntrySize = 12 // sec(4) + nsec(4) + offset(4)

type IndexEntry struct {
	Time   Time
	Offset uint32
}

type IndexDataRecord struct {
	Ver     uint32
	Conn    uint32
	Count   uint32
	Entries []IndexEntry
}

func (IndexDataRecord) Op() Op { return OpIndexData }

func decodeIndexData(fields []HeaderField, data []byte) (IndexDataRecord, error) {
	if err := checkOp(fields, OpIndexData); err != nil {
		return IndexDataRecord{}, err
	}
	var rec IndexDataRecord
	if v, ok := lastField(fields, "ver"); ok {
		rec.Ver = endian.Uint32(v)
	}
	if v, ok := lastField(fields, "conn"); ok {
		rec.Conn = endian.Uint32(v)
	}
	if v, ok := lastField(fields, "count"); ok {
		rec.Count = endian.Uint32(v)
	}

	want := int(rec.Count) * indexDataEntrySize
	if len(data) != want {
		return IndexDataRecord{}, fmt.Errorf("%w: count=%d implies %d bytes, got %d", ErrCorruptIndex, rec.Count, want, len(data))
	}

	rec.Entries = make([]IndexEntry, rec.Count)
	for i := range rec.Entries {
		off := i * indexDataEntrySize
		rec.Entries[i] = IndexEntry{
			Time:   readTime(data[off : off+8]),
			Offset: endian.Uint32(data[off+8 : off+12]),
		}
	}
	return rec, nil
}

func composeIndexData(rec IndexDataRecord) []byte {
	ver := make([]byte, 4)
	endian.PutUint32(ver, rec.Ver)
	conn := make([]byte, 4)
	endian.PutUint32(conn, rec.Conn)
	count := make([]byte, 4)
	endian.PutUint32(count, uint32(len(rec.Entries)))

	fields := []HeaderField{
		{Name: "ver", Value: ver},
		{Name: "conn", Value: conn},
		{Name: "count", Value: count},
		{Name: "op", Value: []byte{byte(OpIndexData)}},
	}

	data := make([]byte, len(rec.Entries)*indexDataEntrySize)
	for i, e := range rec.Entries {
		off := i * indexDataEntrySize
		putTime(data[off:off+8], e.Time)
		endian.PutUint32(data[off+8:off+12], e.Offset)
	}
	return encodeRecord(fields, data)
}

// --- Connection ----------------------------------------------------------

type ConnectionRecord struct {
	Conn    uint32
	Topic   string
	Type    string
	MD5Sum  string
	MessageDefinition string

	CallerID    string
	HasCallerID bool

	Latching    bool
	HasLatching bool
}

func (ConnectionRecord) Op() Op { return OpConnection }

func decodeConnection(fields []HeaderField, data []byte) (ConnectionRecord, error) {
	if err := checkOp(fields, OpConnection); err != nil {
		return ConnectionRecord{}, err
	}
	var rec ConnectionRecord
	if v, ok := lastField(fields, "conn"); ok {
		rec.Conn = endian.Uint32(v)
	}
	if v, ok := lastField(fields, "topic"); ok {
		rec.Topic = string(v)
	}

	sub, err := ExtractFields(data)
	if err != nil {
		return ConnectionRecord{}, err
	}
	if v, ok := lastField(sub, "type"); ok {
		rec.Type = string(v)
	}
	if v, ok := lastField(sub, "md5sum"); ok {
		rec.MD5Sum = string(v)
	}
	if v, ok := lastField(sub, "message_definition"); ok {
		rec.MessageDefinition = string(v)
	}
	if v, ok := lastField(sub, "callerid"); ok {
		rec.CallerID = string(v)
		rec.HasCallerID = true
	}
	if v, ok := lastField(sub, "latching"); ok {
		rec.Latching = len(v) == 1 && v[0] == '1'
		rec.HasLatching = true
	}
	return rec, nil
}

func composeConnection(rec ConnectionRecord) []byte {
	conn := make([]byte, 4)
	endian.PutUint32(conn, rec.Conn)

	fields := []HeaderField{
		{Name: "conn", Value: conn},
		{Name: "topic", Value: []byte(rec.Topic)},
		{Name: "op", Value: []byte{byte(OpConnection)}},
	}

	sub := []HeaderField{
		{Name: "topic", Value: []byte(rec.Topic)},
		{Name: "type", Value: []byte(rec.Type)},
		{Name: "md5sum", Value: []byte(rec.MD5Sum)},
		{Name: "message_definition", Value: []byte(rec.MessageDefinition)},
	}
	if rec.HasCallerID {
		sub = append(sub, HeaderField{Name: "callerid", Value: []byte(rec.CallerID)})
	}
	if rec.HasLatching {
		latch := []byte("0")
		if rec.Latching {
			latch = []byte("1")
		}
		sub = append(sub, HeaderField{Name: "latching", Value: latch})
	}
	data := ComposeFields(sub)
	return encodeRecord(fields, data)
}

// --- ChunkInfo -------------------------------------------------------------

const chunkInfoEntrySize = 8 // conn(4) + count(4)

type ChunkInfoConnCount struct {
	Conn  uint32
	Count uint32
}

type ChunkInfoRecord struct {
	Ver         uint32
	ChunkPos    uint64
	StartTime   Time
	EndTime     Time
	Count       uint32
	Connections []ChunkInfoConnCount
}

func (ChunkInfoRecord) Op() Op { return OpChunkInfo }

func decodeChunkInfo(fields []HeaderField, data []byte) (ChunkInfoRecord, error) {
	if err := checkOp(fields, OpChunkInfo); err != nil {
		return ChunkInfoRecord{}, err
	}
	var rec ChunkInfoRecord
	if v, ok := lastField(fields, "ver"); ok {
		rec.Ver = endian.Uint32(v)
	}
	if v, ok := lastField(fields, "chunk_pos"); ok {
		rec.ChunkPos = readUint64LH(v)
	}
	if v, ok := lastField(fields, "start_time"); ok {
		rec.StartTime = readTime(v)
	}
	if v, ok := lastField(fields, "end_time"); ok {
		rec.EndTime = readTime(v)
	}
	if v, ok := lastField(fields, "count"); ok {
		rec.Count = endian.Uint32(v)
	}

	if len(data)%chunkInfoEntrySize != 0 {
		return ChunkInfoRecord{}, fmt.Errorf("%w: data length %d is not a multiple of %d", ErrCorruptChunkInfo, len(data), chunkInfoEntrySize)
	}
	n := len(data) / chunkInfoEntrySize
	rec.Connections = make([]ChunkInfoConnCount, n)
	for i := range rec.Connections {
		off := i * chunkInfoEntrySize
		rec.Connections[i] = ChunkInfoConnCount{
			Conn:  endian.Uint32(data[off : off+4]),
			Count: endian.Uint32(data[off+4 : off+8]),
		}
	}
	return rec, nil
}

func composeChunkInfo(rec ChunkInfoRecord) []byte {
	ver := make([]byte, 4)
	endian.PutUint32(ver, rec.Ver)
	chunkPos := make([]byte, 8)
	putUint64LH(chunkPos, rec.ChunkPos)
	start := make([]byte, 8)
	putTime(start, rec.StartTime)
	end := make([]byte, 8)
	putTime(end, rec.EndTime)
	count := make([]byte, 4)
	endian.PutUint32(count, rec.Count)

	fields := []HeaderField{
		{Name: "ver", Value: ver},
		{Name: "chunk_pos", Value: chunkPos},
		{Name: "start_time", Value: start},
		{Name: "end_time", Value: end},
		{Name: "count", Value: count},
		{Name: "op", Value: []byte{byte(OpChunkInfo)}},
	}

	data := make([]byte, len(rec.Connections)*chunkInfoEntrySize)
	for i, c := range rec.Connections {
		off := i * chunkInfoEntrySize
		endian.PutUint32(data[off:off+4], c.Conn)
		endian.PutUint32(data[off+4:off+8], c.Count)
	}
	return encodeRecord(fields, data)
}

// --- shared helpers ----------------------------------------------------------

// checkOp reads the "op" header field and fails if it's absent or doesn't
// match want, per spec.md §4.3.
func checkOp(fields []HeaderField, want Op) error {
	v, ok := lastField(fields, "op")
	if !ok {
		return ErrMissingOp
	}
	if len(v) != 1 {
		return fmt.Errorf("%w: op field has length %d", ErrMissingOp, len(v))
	}
	if Op(v[0]) != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrOpcodeMismatch, want, Op(v[0]))
	}
	return nil
}

// encodeRecord composes a full on-disk record: [header_len][header]
// [data_len][data], per spec.md §4.2.
func encodeRecord(fields []HeaderField, data []byte) []byte {
	header, err := ComposeHeader(fields)
	if err != nil {
		// fields always carries at least "op"; unreachable.
		panic(err)
	}
	out := make([]byte, 0, len(header)+lenInBytes+len(data))
	out = append(out, header...)
	dataLenBuf := make([]byte, lenInBytes)
	endian.PutUint32(dataLenBuf, uint32(len(data)))
	out = append(out, dataLenBuf...)
	out = append(out, data...)
	return out
}

// splitRecord reads one [header_len][header][data_len][data] record off the
// front of buf and returns the decoded header fields, the data section, and
// the remainder of buf.
func splitRecord(buf []byte) (fields []HeaderField, data []byte, rest []byte, err error) {
	fields, rest, err = ExtractHeader(buf)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rest) < lenInBytes {
		return nil, nil, nil, fmt.Errorf("%w: need %d bytes for data length, have %d", ErrTruncated, lenInBytes, len(rest))
	}
	dataLen := endian.Uint32(rest)
	rest = rest[lenInBytes:]
	if uint64(dataLen) > uint64(len(rest)) {
		return nil, nil, nil, fmt.Errorf("%w: data length %d exceeds remaining %d bytes", ErrCorrupt, dataLen, len(rest))
	}
	data = rest[:dataLen]
	rest = rest[dataLen:]
	return fields, data, rest, nil
}

// recordSize returns how many bytes a [header_len][header][data_len][data]
// record occupies at the front of buf, without decoding its fields.
func recordSize(buf []byte) (int, error) {
	if len(buf) < lenInBytes {
		return 0, fmt.Errorf("%w: need %d bytes for header length, have %d", ErrTruncated, lenInBytes, len(buf))
	}
	headerLen := endian.Uint32(buf)
	off := lenInBytes + int(headerLen)
	if len(buf) < off+lenInBytes {
		return 0, fmt.Errorf("%w: need %d bytes for data length, have %d", ErrTruncated, off+lenInBytes, len(buf))
	}
	dataLen := endian.Uint32(buf[off:])
	off += lenInBytes + int(dataLen)
	if len(buf) < off {
		return 0, fmt.Errorf("%w: record claims %d bytes, have %d", ErrTruncated, off, len(buf))
	}
	return off, nil
}
