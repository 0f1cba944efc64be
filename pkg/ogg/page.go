// Package ogg implements the Ogg container demuxer (spec §4.4-§4.9): page
// sync, per-logical-stream packet reassembly, codec header recognition,
// seeking, and duration.
package ogg

import (
	"encoding/binary"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/internal/crcutil"
)

// CapturePattern is the 4-byte Ogg page signature.
var CapturePattern = [4]byte{'O', 'g', 'g', 'S'}

const (
	flagContinuation = 0x01
	flagBOS          = 0x02
	flagEOS          = 0x04

	headerFixedLen = 27 // up to and including the segment count byte
)

// Page is one Ogg container unit (spec §3).
type Page struct {
	Version      uint8
	Continuation bool
	BOS          bool
	EOS          bool
	Granule      int64 // -1 means "no granule"
	Serial       int32 // signed; negative values are preserved
	Sequence     uint32
	CRC          uint32
	SegmentTable []byte
	Data         []byte // concatenated segment bytes
}

// UnknownGranule is the sentinel spec §3 assigns to an absent granule
// position.
const UnknownGranule int64 = -1

// parsePage parses one page from buf, which must hold the full page
// (header + segment table + segment data). It returns the page and the
// number of bytes consumed.
func parsePage(buf []byte) (Page, int, error) {
	if len(buf) < headerFixedLen {
		return Page{}, 0, coreerr.Recoverable(coreerr.BufferUnderflow, "ogg: page header incomplete")
	}
	if string(buf[0:4]) != string(CapturePattern[:]) {
		return Page{}, 0, coreerr.New(coreerr.InvalidSync, "ogg: missing capture pattern")
	}

	var p Page
	p.Version = buf[4]
	if p.Version != 0 {
		return Page{}, 0, coreerr.New(coreerr.UnsupportedFeature, "ogg: unsupported page version")
	}

	flags := buf[5]
	p.Continuation = flags&flagContinuation != 0
	p.BOS = flags&flagBOS != 0
	p.EOS = flags&flagEOS != 0

	p.Granule = int64(binary.LittleEndian.Uint64(buf[6:14]))
	p.Serial = int32(binary.LittleEndian.Uint32(buf[14:18]))
	p.Sequence = binary.LittleEndian.Uint32(buf[18:22])
	p.CRC = binary.LittleEndian.Uint32(buf[22:26])

	segCount := int(buf[26])
	need := headerFixedLen + segCount
	if len(buf) < need {
		return Page{}, 0, coreerr.Recoverable(coreerr.BufferUnderflow, "ogg: segment table incomplete")
	}
	p.SegmentTable = append([]byte(nil), buf[headerFixedLen:need]...)

	dataLen := 0
	for _, s := range p.SegmentTable {
		dataLen += int(s)
	}
	total := need + dataLen
	if len(buf) < total {
		return Page{}, 0, coreerr.Recoverable(coreerr.BufferUnderflow, "ogg: page data incomplete")
	}
	p.Data = append([]byte(nil), buf[need:total]...)

	if !verifyPageCRC(buf[:total], p.CRC) {
		return Page{}, total, coreerr.New(coreerr.CRCMismatch, "ogg: page CRC-32 mismatch")
	}

	return p, total, nil
}

// verifyPageCRC computes the CRC-32 over the whole page with the CRC field
// temporarily zeroed, per spec §4.4 step 3.
func verifyPageCRC(pageBytes []byte, want uint32) bool {
	tmp := append([]byte(nil), pageBytes...)
	tmp[22], tmp[23], tmp[24], tmp[25] = 0, 0, 0, 0
	return crcutil.CRC32(tmp) == want
}

// packetSizes splits the page's segment table into whole-packet boundaries:
// a packet ends at the first segment shorter than 255, and the last
// segment's continuation (needsContinuation) signals whether the final
// packet is incomplete and continues on the next page.
func (p Page) packetSizes() (sizes []int, needsContinuation bool) {
	size := 0
	for _, s := range p.SegmentTable {
		size += int(s)
		if s < 0xFF {
			sizes = append(sizes, size)
			size = 0
		}
	}
	needsContinuation = len(p.SegmentTable) > 0 && p.SegmentTable[len(p.SegmentTable)-1] == 0xFF
	return sizes, needsContinuation
}
