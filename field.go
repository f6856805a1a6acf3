package rosbag

import (
	"bytes"
	"fmt"
)

// headerFieldDelimiter separates a header field's name from its value.
const headerFieldDelimiter = '='

// HeaderField is one name=value entry of a header-field dictionary. Values
// are kept as raw bytes: whether a field is binary (chunk_pos, a u64) or
// ASCII (topic) is record-kind-specific context the field codec doesn't
// have, per the design note in spec.md §9.
type HeaderField struct {
	Name  string
	Value []byte
}

// ExtractFields walks a header-field dictionary buffer and returns its
// entries in file order. Duplicate names are all retained (last write wins
// is the caller's concern, consistent with spec.md §4.1); ExtractFields
// itself is a straight decode.
//
// Grounded on the teacher's iterateHeaderFields callback walk
// (lherman-cs/go-rosbag rosbag.go), turned into a value-returning function.
func ExtractFields(buf []byte) ([]HeaderField, error) {
	var fields []HeaderField
	for len(buf) > 0 {
		if len(buf) < lenInBytes {
			return nil, fmt.Errorf("%w: need %d bytes for field length, have %d", ErrTruncated, lenInBytes, len(buf))
		}

		fieldLen := endian.Uint32(buf)
		buf = buf[lenInBytes:]
		if uint64(fieldLen) > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: field length %d exceeds remaining %d bytes", ErrCorrupt, fieldLen, len(buf))
		}

		field := buf[:fieldLen]
		i := bytes.IndexByte(field, headerFieldDelimiter)
		if i == -1 {
			return nil, fmt.Errorf("%w: no '%c' separator in field %q", ErrMalformed, headerFieldDelimiter, field)
		}

		value := make([]byte, len(field)-i-1)
		copy(value, field[i+1:])
		fields = append(fields, HeaderField{Name: string(field[:i]), Value: value})

		buf = buf[fieldLen:]
	}
	return fields, nil
}

// ComposeFields serializes an ordered sequence of header fields. Output byte
// length is sum(4 + len(name) + 1 + len(value)) over all fields.
func ComposeFields(fields []HeaderField) []byte {
	size := 0
	for _, f := range fields {
		size += lenInBytes + len(f.Name) + 1 + len(f.Value)
	}

	buf := make([]byte, size)
	off := 0
	for _, f := range fields {
		fieldLen := len(f.Name) + 1 + len(f.Value)
		endian.PutUint32(buf[off:], uint32(fieldLen))
		off += lenInBytes
		off += copy(buf[off:], f.Name)
		buf[off] = headerFieldDelimiter
		off++
		off += copy(buf[off:], f.Value)
	}
	return buf
}

// findField returns the value of the first field named name, in file order
// (matching the teacher's findField lookup semantics for a single read).
func findField(fields []HeaderField, name string) ([]byte, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// lastField returns the value of the last field named name, implementing the
// "last write wins" duplicate rule from spec.md §4.1.
func lastField(fields []HeaderField, name string) ([]byte, bool) {
	var value []byte
	found := false
	for _, f := range fields {
		if f.Name == name {
			value = f.Value
			found = true
		}
	}
	return value, found
}
