package ogg

import (
	"encoding/binary"

	"github.com/segin/psymp3-sub003/internal/crcutil"
)

// buildPage assembles one complete, CRC-valid Ogg page given its granule,
// serial, sequence number, flags, and whole packets. Each packet is laced
// into 255-byte segments plus a final shorter segment, so every packet is
// terminated on this page; buildPage builds the segment table itself.
func buildPage(flags byte, granule int64, serial int32, sequence uint32, segments [][]byte) []byte {
	var segTable []byte
	var data []byte
	for _, seg := range segments {
		n := len(seg)
		for n >= 0xFF {
			segTable = append(segTable, 0xFF)
			n -= 0xFF
		}
		segTable = append(segTable, byte(n))
		data = append(data, seg...)
	}

	hdr := make([]byte, headerFixedLen)
	copy(hdr[0:4], CapturePattern[:])
	hdr[4] = 0 // version
	hdr[5] = flags
	binary.LittleEndian.PutUint64(hdr[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(serial))
	binary.LittleEndian.PutUint32(hdr[18:22], sequence)
	// hdr[22:26] CRC filled below
	hdr[26] = byte(len(segTable))

	page := append(hdr, segTable...)
	page = append(page, data...)

	crc := crcutil.CRC32(withZeroedCRC(page))
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}

func withZeroedCRC(page []byte) []byte {
	tmp := append([]byte(nil), page...)
	tmp[22], tmp[23], tmp[24], tmp[25] = 0, 0, 0, 0
	return tmp
}

// buildSimplePage builds a single-packet page that needs no continuation
// (the packet's last segment is shorter than 255 bytes).
func buildSimplePage(flags byte, granule int64, serial int32, sequence uint32, packet []byte) []byte {
	return buildPage(flags, granule, serial, sequence, [][]byte{packet})
}

// buildPageRaw assembles a page from an explicit, pre-built segment table
// and data payload, bypassing buildPage's per-packet auto-termination so
// tests can construct a page whose final segment is exactly 255 bytes and
// deliberately left unterminated (i.e. the packet continues on the next
// page).
func buildPageRaw(flags byte, granule int64, serial int32, sequence uint32, segTable, data []byte) []byte {
	hdr := make([]byte, headerFixedLen)
	copy(hdr[0:4], CapturePattern[:])
	hdr[4] = 0
	hdr[5] = flags
	binary.LittleEndian.PutUint64(hdr[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(serial))
	binary.LittleEndian.PutUint32(hdr[18:22], sequence)
	hdr[26] = byte(len(segTable))

	page := append(hdr, segTable...)
	page = append(page, data...)

	crc := crcutil.CRC32(withZeroedCRC(page))
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}
