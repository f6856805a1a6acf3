package rosbag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestBagHeaderComposedSizeIsFixed(t *testing.T) {
	testCases := []BagHeaderRecord{
		{},
		{IndexPos: 4117, ConnCount: 0, ChunkCount: 0},
		{IndexPos: ^uint64(0), ConnCount: ^uint32(0), ChunkCount: ^uint32(0)},
	}

	for _, rec := range testCases {
		composed := composeBagHeader(rec)
		if len(composed) != bagHeaderTotalSize {
			t.Fatalf("expected composed BagHeader to be %d bytes, got %d for %+v", bagHeaderTotalSize, len(composed), rec)
		}
	}
}

func TestBagHeaderRoundTrip(t *testing.T) {
	rec := BagHeaderRecord{IndexPos: 4117, ConnCount: 2, ChunkCount: 1}
	composed := composeBagHeader(rec)

	fields, data, rest, err := splitRecord(composed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remainder, got %d bytes", len(rest))
	}

	decoded, err := decodeBagHeader(fields, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(rec, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOpcodeMismatchFails(t *testing.T) {
	composed := composeChunkInfo(ChunkInfoRecord{Ver: 1})
	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := decodeConnection(fields, data); !errors.Is(err, ErrOpcodeMismatch) {
		t.Fatalf("expected ErrOpcodeMismatch, got %v", err)
	}
}

func TestMissingOpFails(t *testing.T) {
	fields := []HeaderField{{Name: "index_pos", Value: make([]byte, 8)}}
	if _, err := decodeBagHeader(fields, nil); !errors.Is(err, ErrMissingOp) {
		t.Fatalf("expected ErrMissingOp, got %v", err)
	}
}

func TestMessageDataRoundTrip(t *testing.T) {
	rec := MessageDataRecord{Conn: 0, Time: Time{Sec: 1, Nsec: 0}, Data: []byte{0xDE, 0xAD}}
	composed := composeMessageData(rec)

	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeMessageData(fields, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectionRoundTrip(t *testing.T) {
	rec := ConnectionRecord{
		Conn:              0,
		Topic:             "/a",
		Type:              "T",
		MD5Sum:            "x",
		MessageDefinition: "T a 1",
		CallerID:          "node",
		HasCallerID:       true,
		Latching:          true,
		HasLatching:       true,
	}
	composed := composeConnection(rec)

	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeConnection(fields, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestConnectionWithoutOptionalFields(t *testing.T) {
	rec := ConnectionRecord{Conn: 1, Topic: "/b", Type: "U", MD5Sum: "y", MessageDefinition: "U b 1"}
	composed := composeConnection(rec)

	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeConnection(fields, data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.HasCallerID || decoded.HasLatching {
		t.Fatalf("expected optional fields absent, got %+v", decoded)
	}
	if diff := cmp.Diff(rec, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexDataRoundTrip(t *testing.T) {
	rec := IndexDataRecord{
		Ver:  1,
		Conn: 3,
		Entries: []IndexEntry{
			{Time: Time{Sec: 1, Nsec: 0}, Offset: 0},
			{Time: Time{Sec: 1, Nsec: 500}, Offset: 42},
		},
	}
	composed := composeIndexData(rec)

	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeIndexData(fields, data)
	if err != nil {
		t.Fatal(err)
	}
	rec.Count = uint32(len(rec.Entries))
	if diff := cmp.Diff(rec, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexDataCorruptScenarioS6(t *testing.T) {
	count := make([]byte, 4)
	endian.PutUint32(count, 3)
	fields := []HeaderField{
		{Name: "ver", Value: []byte{1, 0, 0, 0}},
		{Name: "conn", Value: []byte{0, 0, 0, 0}},
		{Name: "count", Value: count},
		{Name: "op", Value: []byte{byte(OpIndexData)}},
	}
	data := make([]byte, 20)

	_, err := decodeIndexData(fields, data)
	if !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestChunkInfoRoundTrip(t *testing.T) {
	rec := ChunkInfoRecord{
		Ver:       1,
		ChunkPos:  4117,
		StartTime: Time{Sec: 1, Nsec: 0},
		EndTime:   Time{Sec: 2, Nsec: 0},
		Connections: []ChunkInfoConnCount{
			{Conn: 0, Count: 5},
			{Conn: 1, Count: 3},
		},
	}
	composed := composeChunkInfo(rec)

	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeChunkInfo(fields, data)
	if err != nil {
		t.Fatal(err)
	}
	rec.Count = 0
	if diff := cmp.Diff(rec, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkInfoCorruptScenario(t *testing.T) {
	fields := []HeaderField{
		{Name: "ver", Value: []byte{1, 0, 0, 0}},
		{Name: "chunk_pos", Value: make([]byte, 8)},
		{Name: "start_time", Value: make([]byte, 8)},
		{Name: "end_time", Value: make([]byte, 8)},
		{Name: "count", Value: []byte{1, 0, 0, 0}},
		{Name: "op", Value: []byte{byte(OpChunkInfo)}},
	}
	data := make([]byte, 3) // not a multiple of 8
	_, err := decodeChunkInfo(fields, data)
	if !errors.Is(err, ErrCorruptChunkInfo) {
		t.Fatalf("expected ErrCorruptChunkInfo, got %v", err)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	rec := ChunkRecord{Compression: "none", Size: 4, Data: []byte{1, 2, 3, 4}}
	composed := composeChunk(rec)

	fields, data, _, err := splitRecord(composed)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeChunk(fields, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
