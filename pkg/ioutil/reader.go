// Package ioutil implements the random-access byte-stream abstraction (spec
// §4.1 / §6): file-backed, HTTP-backed, and in-memory variants behind one
// interface, exclusively owned by whichever demuxer opens it.
package ioutil

import (
	"errors"
	"io"
)

// Whence mirrors io.Seeker's whence constants; re-exported here so callers
// of this package don't need a direct io import for the common case.
const (
	SeekStart   = io.SeekStart
	SeekCurrent = io.SeekCurrent
	SeekEnd     = io.SeekEnd
)

// Reader is the byte-oriented random-access contract every concrete IO
// variant implements. Read may return fewer bytes than requested without
// being an error (spec §6); only an explicit IO error or a closed handle
// surfaces as failure.
type Reader interface {
	Read(buf []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	Size() (int64, error)
	EOF() bool
	Close() error
}

// IsTemporary classifies an error as retryable (e.g. a short read from a
// socket) versus permanent (I/O failure, EOF). The reader never performs
// format interpretation; classification is the caller's decision, exposed
// here as the shared policy every Reader variant agrees on.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return false
	}
	var te interface{ Temporary() bool }
	if errors.As(err, &te) {
		return te.Temporary()
	}
	var to interface{ Timeout() bool }
	if errors.As(err, &to) {
		return to.Timeout()
	}
	return false
}
