package rosbag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	fuzz "github.com/google/gofuzz"
)

func TestExtractFieldsScenarioS3(t *testing.T) {
	raw := []byte{0x07, 0x00, 0x00, 0x00, 'f', 'o', 'o', '=', 'b', 'a', 'r'}

	fields, err := ExtractFields(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Name != "foo" || string(fields[0].Value) != "bar" {
		t.Fatalf("expected foo=bar, got %s=%s", fields[0].Name, fields[0].Value)
	}
}

func TestFieldCodecRoundTrip(t *testing.T) {
	testCases := []struct {
		Name   string
		Fields []HeaderField
	}{
		{Name: "empty", Fields: nil},
		{Name: "single", Fields: []HeaderField{{Name: "op", Value: []byte{3}}}},
		{
			Name: "multiple",
			Fields: []HeaderField{
				{Name: "conn", Value: []byte{0, 0, 0, 0}},
				{Name: "topic", Value: []byte("/a")},
				{Name: "op", Value: []byte{7}},
			},
		},
		{Name: "empty value", Fields: []HeaderField{{Name: "latching", Value: []byte{}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			composed := ComposeFields(tc.Fields)
			extracted, err := ExtractFields(composed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.Fields, extracted, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFieldCodecFuzzRoundTrip(t *testing.T) {
	fuzzer := fuzz.New().NilChance(0).NumElements(0, 8)

	for i := 0; i < 50; i++ {
		var names []string
		var values [][]byte
		fuzzer.Fuzz(&names)
		fuzzer.Fuzz(&values)

		n := len(names)
		if len(values) < n {
			n = len(values)
		}

		var fields []HeaderField
		for j := 0; j < n; j++ {
			name := sanitizeFieldName(names[j])
			if name == "" {
				continue
			}
			fields = append(fields, HeaderField{Name: name, Value: values[j]})
		}

		composed := ComposeFields(fields)
		extracted, err := ExtractFields(composed)
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, err)
		}
		if diff := cmp.Diff(fields, extracted, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("round %d: mismatch (-want +got):\n%s", i, diff)
		}
	}
}

// sanitizeFieldName strips any '=' from a fuzzed name so the composed field
// remains unambiguous to re-extract, matching the format's requirement that
// names don't contain the delimiter.
func sanitizeFieldName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '=' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func TestExtractFieldsTruncation(t *testing.T) {
	fields := []HeaderField{{Name: "foo", Value: []byte("bar")}}
	composed := ComposeFields(fields)

	for i := 1; i < len(composed); i++ {
		_, err := ExtractFields(composed[:i])
		if err == nil {
			t.Fatalf("truncating to %d bytes should fail, got no error", i)
		}
		if !errors.Is(err, ErrTruncated) && !errors.Is(err, ErrCorrupt) && !errors.Is(err, ErrMalformed) {
			t.Fatalf("truncating to %d bytes: expected a codec error, got %v", i, err)
		}
	}
}

func TestExtractFieldsMalformedMissingDelimiter(t *testing.T) {
	raw := []byte{0x03, 0x00, 0x00, 0x00, 'f', 'o', 'o'}
	_, err := ExtractFields(raw)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExtractFieldsCorruptLength(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0x00, 0x00, 'a', '=', 'b'}
	_, err := ExtractFields(raw)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLastFieldWinsOnDuplicate(t *testing.T) {
	fields := []HeaderField{
		{Name: "conn", Value: []byte{1, 0, 0, 0}},
		{Name: "conn", Value: []byte{2, 0, 0, 0}},
	}
	v, ok := lastField(fields, "conn")
	if !ok {
		t.Fatal("expected field to be found")
	}
	if endian.Uint32(v) != 2 {
		t.Fatalf("expected last write to win (2), got %d", endian.Uint32(v))
	}
}
