package frame

import (
	"github.com/segin/psymp3-sub003/internal/bitio"
	"github.com/segin/psymp3-sub003/internal/coreerr"
)

// FindSync advances br byte-by-byte from its current (byte-aligned)
// position until the next 16 bits match a frame sync pattern (0xFF
// followed by 0xF8 or 0xF9, spec §4.11), leaving the reader positioned at
// the start of the sync code. It returns BUFFER_UNDERFLOW if fewer than
// two bytes remain buffered before a match is found, so the caller can
// feed more data and retry from where it left off.
func FindSync(br *bitio.Reader) error {
	if !br.IsByteAligned() {
		br.AlignToByte()
	}
	for {
		if !br.CanRead(16) {
			return coreerr.Recoverable(coreerr.BufferUnderflow, "flac: insufficient buffered bytes to scan for sync")
		}
		v, err := br.PeekBits(16)
		if err != nil {
			return err
		}
		if v&0xFFFE == 0xFFF8 {
			return nil
		}
		if err := br.SkipBits(8); err != nil {
			return err
		}
	}
}
