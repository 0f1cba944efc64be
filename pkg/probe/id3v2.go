package probe

import (
	"github.com/pkg/errors"

	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// SkipID3v2 reads a leading ID3v2 tag header at the reader's current
// position and seeks past the whole tag, returning the number of bytes
// skipped. Identify calls it for ID3v2-prefixed input (spec §4.9 step 2;
// original_source inlines the equivalent logic in MediaFactory.cpp,
// promoted here to a reusable helper).
func SkipID3v2(r ioutil.Reader) (int64, error) {
	header := make([]byte, 10)
	n, err := readFull(r, header)
	if err != nil || n < 10 {
		return 0, errors.New("probe: short read for ID3v2 header")
	}
	if header[0] != 'I' || header[1] != 'D' || header[2] != '3' {
		return 0, errors.New("probe: not an ID3v2 tag")
	}

	size, err := decodeSynchsafe(header[6:10])
	if err != nil {
		return 0, err
	}

	total := int64(10) + size
	if _, err := r.Seek(size, ioutil.SeekCurrent); err != nil {
		return 0, errors.Wrap(err, "probe: seeking past ID3v2 tag")
	}
	return total, nil
}

// decodeSynchsafe decodes a 4-byte synchsafe integer (top bit of each byte
// is always 0), ID3v2's 28-bit-in-32-bit tag length encoding.
func decodeSynchsafe(b []byte) (int64, error) {
	if len(b) != 4 {
		return 0, errors.New("probe: synchsafe integer must be 4 bytes")
	}
	var v int64
	for _, x := range b {
		if x&0x80 != 0 {
			return 0, errors.New("probe: invalid synchsafe integer (high bit set)")
		}
		v = (v << 7) | int64(x)
	}
	return v, nil
}
