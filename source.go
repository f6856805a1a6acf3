package rosbag

import (
	"context"
	"fmt"
	"io"
	"os"
)

// BytesSource is an in-memory Source, useful for tests and for bags small
// enough to hold fully in memory.
type BytesSource struct {
	Data []byte
}

func (s *BytesSource) Size(ctx context.Context) (uint64, error) {
	return uint64(len(s.Data)), nil
}

func (s *BytesSource) ReadAt(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	end := offset + uint64(length)
	if offset > uint64(len(s.Data)) || end > uint64(len(s.Data)) {
		return nil, fmt.Errorf("%w: requested [%d, %d), have %d bytes", ErrUnexpectedEOF, offset, end, len(s.Data))
	}
	return s.Data[offset:end], nil
}

// FileSource adapts an *os.File (or anything satisfying io.ReaderAt plus a
// known size) to Source.
type FileSource struct {
	R    io.ReaderAt
	size uint64
}

// NewFileSource wraps f, using os.File.Stat to learn its size up front.
func NewFileSource(f *os.File) (*FileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &FileSource{R: f, size: uint64(info.Size())}, nil
}

func (s *FileSource) Size(ctx context.Context) (uint64, error) {
	return s.size, nil
}

func (s *FileSource) ReadAt(ctx context.Context, offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.R.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if uint32(n) != length {
		return nil, fmt.Errorf("%w: wanted %d bytes at %d, got %d", ErrUnexpectedEOF, length, offset, n)
	}
	return buf, nil
}
