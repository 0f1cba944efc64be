package ogg

import (
	"github.com/pkg/errors"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// chunkSize is how much the sync manager pulls from the underlying reader at
// a time while hunting for a capture pattern or filling out a page (spec
// §4.4).
const chunkSize = 4096

// maxSyncScan bounds how many bytes SyncManager will skip looking for the
// next capture pattern before giving up, guarding against scanning an
// entire non-Ogg file byte by byte.
const maxSyncScan = 1 << 20

// SyncManager finds and validates Ogg pages in a byte stream, tracking how
// many bytes were skipped to resynchronize after a corrupt or truncated
// page (spec §4.4).
type SyncManager struct {
	r      ioutil.Reader
	buf    []byte // bytes read but not yet consumed
	offset int64  // stream offset of buf[0]
}

// NewSyncManager wraps r for page-level reading starting at its current
// position.
func NewSyncManager(r ioutil.Reader) (*SyncManager, error) {
	pos, err := r.Tell()
	if err != nil {
		return nil, errors.Wrap(err, "ogg: sync manager: reading initial position")
	}
	return &SyncManager{r: r, offset: pos}, nil
}

// fill pulls another chunk from the underlying reader into buf. It returns
// false at end of stream.
func (s *SyncManager) fill() (bool, error) {
	chunk := make([]byte, chunkSize)
	n, err := s.r.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err != nil {
		if ioutil.IsTemporary(err) {
			return n > 0, nil
		}
		return n > 0, err
	}
	return true, nil
}

// findCapture returns the index of the next "OggS" in buf, or -1 if none is
// present (the caller must fill more data and retry).
func findCapture(buf []byte) int {
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == 'O' && buf[i+1] == 'g' && buf[i+2] == 'g' && buf[i+3] == 'S' {
			return i
		}
	}
	return -1
}

// NextPage returns the next valid page in the stream along with the number
// of bytes that were skipped before it (non-zero only when resynchronizing
// past garbage or a corrupt page, spec §7 resync policy).
func (s *SyncManager) NextPage() (Page, int64, error) {
	var skipped int64

	for {
		idx := findCapture(s.buf)
		for idx == -1 {
			// Keep the trailing 3 bytes in case a capture pattern straddles
			// the chunk boundary.
			if len(s.buf) > 3 {
				drop := len(s.buf) - 3
				s.buf = s.buf[drop:]
				s.offset += int64(drop)
				skipped += int64(drop)
			}
			more, err := s.fill()
			if err != nil {
				return Page{}, skipped, err
			}
			if !more && len(s.buf) < 4 {
				return Page{}, skipped, coreerr.New(coreerr.InvalidSync, "ogg: end of stream without capture pattern")
			}
			idx = findCapture(s.buf)
			if skipped > maxSyncScan {
				return Page{}, skipped, coreerr.New(coreerr.InvalidSync, "ogg: capture pattern not found within scan limit")
			}
		}

		if idx > 0 {
			s.buf = s.buf[idx:]
			s.offset += int64(idx)
			skipped += int64(idx)
		}

		page, consumed, err := parsePage(s.buf)
		if err == nil {
			s.buf = s.buf[consumed:]
			s.offset += int64(consumed)
			return page, skipped, nil
		}

		var ce *coreerr.Error
		if errors.As(err, &ce) && ce.Code == coreerr.BufferUnderflow {
			more, ferr := s.fill()
			if ferr != nil {
				return Page{}, skipped, ferr
			}
			if !more {
				return Page{}, skipped, coreerr.New(coreerr.InvalidSync, "ogg: truncated page at end of stream")
			}
			continue
		}

		// CRC mismatch or other structural defect: treat this capture
		// pattern as a false positive, skip past it, and keep scanning
		// (spec §7: a corrupt page does not abort the whole stream).
		s.buf = s.buf[1:]
		s.offset++
		skipped++
	}
}

// Offset returns the stream offset of the next unconsumed byte.
func (s *SyncManager) Offset() int64 { return s.offset }

// Reset discards buffered bytes and repositions the underlying reader,
// used by the seeking engine after a bisection jump.
func (s *SyncManager) Reset(pos int64) error {
	if _, err := s.r.Seek(pos, ioutil.SeekStart); err != nil {
		return errors.Wrap(err, "ogg: sync manager: seeking")
	}
	s.buf = nil
	s.offset = pos
	return nil
}

// ScanBackward searches backward from byte offset `before` for the last
// complete page that ends at or before it, optionally restricted to a
// given stream serial (serialFilter >= 0 acts as a filter; pass -1 to match
// any serial). It is used to find the final page of a logical stream to
// read its granule position for duration computation (spec §4.8,
// grounded on the backward page scan in original_source's OggSyncManager).
func (s *SyncManager) ScanBackward(before int64, serialFilter int64) (Page, error) {
	size, err := s.r.Size()
	if err != nil {
		return Page{}, errors.Wrap(err, "ogg: sync manager: reading size")
	}
	if before > size {
		before = size
	}

	const window = 64 * 1024
	pos := before
	for pos > 0 {
		start := pos - window
		if start < 0 {
			start = 0
		}
		readLen := pos - start
		buf := make([]byte, readLen)
		if _, err := s.r.Seek(start, ioutil.SeekStart); err != nil {
			return Page{}, errors.Wrap(err, "ogg: sync manager: seeking backward window")
		}
		n, err := readFullAt(s.r, buf)
		if err != nil {
			return Page{}, err
		}
		buf = buf[:n]

		var best *Page
		var bestOffset int
		for i := 0; i+4 <= len(buf); i++ {
			if findCapture(buf[i:]) != 0 {
				continue
			}
			page, consumed, perr := parsePage(buf[i:])
			if perr != nil || consumed == 0 {
				continue
			}
			if int64(i)+int64(consumed)+start > before {
				continue
			}
			if serialFilter >= 0 && page.Serial != int32(serialFilter) {
				continue
			}
			p := page
			best = &p
			bestOffset = i
		}
		if best != nil {
			_ = bestOffset
			return *best, nil
		}
		if start == 0 {
			break
		}
		pos = start
	}
	return Page{}, coreerr.New(coreerr.InvalidSync, "ogg: no matching page found scanning backward")
}

func readFullAt(r ioutil.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if ioutil.IsTemporary(err) || total > 0 {
				break
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
