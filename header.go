package rosbag

import "fmt"

// ExtractHeader reads a 4-byte little-endian length prefix, slices off that
// many bytes as the header-field block, and decodes it with ExtractFields.
// It returns the decoded fields and the remainder of buf following the
// header block (which the caller then treats as [data_length][data]).
func ExtractHeader(buf []byte) (fields []HeaderField, rest []byte, err error) {
	if len(buf) < lenInBytes {
		return nil, nil, fmt.Errorf("%w: need %d bytes for header length, have %d", ErrTruncated, lenInBytes, len(buf))
	}
	headerLen := endian.Uint32(buf)
	buf = buf[lenInBytes:]
	if uint64(headerLen) > uint64(len(buf)) {
		return nil, nil, fmt.Errorf("%w: header length %d exceeds remaining %d bytes", ErrCorrupt, headerLen, len(buf))
	}

	fields, err = ExtractFields(buf[:headerLen])
	if err != nil {
		return nil, nil, err
	}
	return fields, buf[headerLen:], nil
}

// ComposeHeader serializes fields via ComposeFields and prepends the 4-byte
// length prefix. Fails with ErrEmptyHeader if fields is empty, per spec.md
// §4.2.
func ComposeHeader(fields []HeaderField) ([]byte, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyHeader
	}
	body := ComposeFields(fields)
	out := make([]byte, lenInBytes+len(body))
	endian.PutUint32(out, uint32(len(body)))
	copy(out[lenInBytes:], body)
	return out, nil
}
