package ioutil

import "io"

// MemoryReader is a Reader backed by an in-memory byte slice.
type MemoryReader struct {
	data []byte
	pos  int64
	eof  bool
}

// NewMemoryReader wraps data for random-access reading. data is not copied;
// callers must not mutate it while the reader is in use.
func NewMemoryReader(data []byte) *MemoryReader {
	return &MemoryReader{data: data}
}

func (r *MemoryReader) Read(buf []byte) (int, error) {
	if r.pos >= int64(len(r.data)) {
		r.eof = true
		return 0, io.EOF
	}
	n := copy(buf, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *MemoryReader) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = int64(len(r.data)) + offset
	default:
		return 0, errInvalidWhence
	}
	if newPos < 0 {
		return 0, errNegativePosition
	}
	r.pos = newPos
	r.eof = false
	return r.pos, nil
}

func (r *MemoryReader) Tell() (int64, error) { return r.pos, nil }

func (r *MemoryReader) Size() (int64, error) { return int64(len(r.data)), nil }

func (r *MemoryReader) EOF() bool { return r.eof }

func (r *MemoryReader) Close() error { return nil }

var (
	errInvalidWhence    = ioErr("ioutil: invalid whence")
	errNegativePosition = ioErr("ioutil: negative seek position")
)

type ioErr string

func (e ioErr) Error() string { return string(e) }
