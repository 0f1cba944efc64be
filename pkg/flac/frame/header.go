// Package frame implements FLAC frame sync, header parsing, subframe
// decoding, residual decoding, channel decorrelation, and sample
// reconstruction (spec §4.11-§4.15), grounded on the teacher's frame.go
// and subframe.go with the pull-based bits.Reader swapped for the
// push-based internal/bitio.Reader.
package frame

import (
	"github.com/segin/psymp3-sub003/internal/bitio"
	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/internal/crcutil"
)

// ChannelAssignment identifies how the frame's subframes map to output
// channels (spec §3).
type ChannelAssignment uint8

const (
	ChannelsIndependent0 ChannelAssignment = 0 // 0-7 are channel counts 1-8
	ChannelsLeftSide     ChannelAssignment = 8
	ChannelsRightSide    ChannelAssignment = 9
	ChannelsMidSide      ChannelAssignment = 10
)

// Count returns the number of subframes (== output channels) for this
// channel assignment.
func (c ChannelAssignment) Count() int {
	if c <= 7 {
		return int(c) + 1
	}
	return 2
}

// IsStereoDecorrelated reports whether this assignment uses inter-channel
// decorrelation, in which case the side subframe carries an extra bit of
// dynamic range.
func (c ChannelAssignment) IsStereoDecorrelated() bool {
	return c == ChannelsLeftSide || c == ChannelsRightSide || c == ChannelsMidSide
}

// Header is one FLAC frame header (spec §4.11).
type Header struct {
	VariableBlockSize bool
	BlockSize         uint16
	SampleRate        uint32 // 0 means "use STREAMINFO"
	Channels          ChannelAssignment
	BitsPerSample     uint8 // 0 means "use STREAMINFO"
	Num               uint64
}

var blockSizeTable = [16]uint16{
	0: 0, // reserved
	1: 192,
}

// ParseHeader reads and validates one frame header from br, including its
// trailing CRC-8, starting at a byte-aligned sync position (spec §4.11).
// Returns InvalidSync without consuming further bits if the sync code does
// not match, so the caller can advance one byte and retry.
func ParseHeader(br *bitio.Reader) (Header, error) {
	startBit := br.BitPosition()

	sync, err := br.ReadBits(14)
	if err != nil {
		return Header{}, err
	}
	if sync != 0x3FFE {
		return Header{}, coreerr.New(coreerr.InvalidSync, "flac: invalid frame sync code")
	}

	reserved1, err := br.ReadBits(1)
	if err != nil {
		return Header{}, err
	}
	if reserved1 != 0 {
		return Header{}, coreerr.New(coreerr.CorruptedData, "flac: non-zero reserved bit in frame header")
	}

	strategyBit, err := br.ReadBits(1)
	if err != nil {
		return Header{}, err
	}
	var hdr Header
	hdr.VariableBlockSize = strategyBit == 1

	blockSizeCode, err := br.ReadBits(4)
	if err != nil {
		return Header{}, err
	}
	if blockSizeCode == 0 {
		return Header{}, coreerr.New(coreerr.CorruptedData, "flac: reserved block size code 0000")
	}

	sampleRateCode, err := br.ReadBits(4)
	if err != nil {
		return Header{}, err
	}
	if sampleRateCode == 0xF {
		return Header{}, coreerr.New(coreerr.CorruptedData, "flac: forbidden sample rate code 1111")
	}

	chanBits, err := br.ReadBits(4)
	if err != nil {
		return Header{}, err
	}
	if chanBits >= 11 {
		return Header{}, coreerr.New(coreerr.UnsupportedFeature, "flac: reserved channel assignment")
	}
	hdr.Channels = ChannelAssignment(chanBits)

	bpsCode, err := br.ReadBits(3)
	if err != nil {
		return Header{}, err
	}
	switch bpsCode {
	case 0x0:
		hdr.BitsPerSample = 0
	case 0x1:
		hdr.BitsPerSample = 8
	case 0x2:
		hdr.BitsPerSample = 12
	case 0x4:
		hdr.BitsPerSample = 16
	case 0x5:
		hdr.BitsPerSample = 20
	case 0x6:
		hdr.BitsPerSample = 24
	default:
		return Header{}, coreerr.New(coreerr.CorruptedData, "flac: reserved bit depth code")
	}

	reserved2, err := br.ReadBits(1)
	if err != nil {
		return Header{}, err
	}
	if reserved2 != 0 {
		return Header{}, coreerr.New(coreerr.CorruptedData, "flac: non-zero reserved bit in frame header")
	}

	num, err := br.ReadUTF8Coded()
	if err != nil {
		return Header{}, err
	}
	hdr.Num = num

	switch {
	case blockSizeCode == 0x1:
		hdr.BlockSize = 192
	case blockSizeCode >= 0x2 && blockSizeCode <= 0x5:
		hdr.BlockSize = 576 * (1 << (blockSizeCode - 2))
	case blockSizeCode == 0x6:
		v, err := br.ReadBits(8)
		if err != nil {
			return Header{}, err
		}
		hdr.BlockSize = uint16(v) + 1
	case blockSizeCode == 0x7:
		v, err := br.ReadBits(16)
		if err != nil {
			return Header{}, err
		}
		hdr.BlockSize = uint16(v) + 1
	default: // 0x8-0xF
		hdr.BlockSize = 256 * (1 << (blockSizeCode - 8))
	}

	switch sampleRateCode {
	case 0x0:
		hdr.SampleRate = 0
	case 0x1:
		hdr.SampleRate = 88200
	case 0x2:
		hdr.SampleRate = 176400
	case 0x3:
		hdr.SampleRate = 192000
	case 0x4:
		hdr.SampleRate = 8000
	case 0x5:
		hdr.SampleRate = 16000
	case 0x6:
		hdr.SampleRate = 22050
	case 0x7:
		hdr.SampleRate = 24000
	case 0x8:
		hdr.SampleRate = 32000
	case 0x9:
		hdr.SampleRate = 44100
	case 0xA:
		hdr.SampleRate = 48000
	case 0xB:
		hdr.SampleRate = 96000
	case 0xC:
		v, err := br.ReadBits(8)
		if err != nil {
			return Header{}, err
		}
		hdr.SampleRate = v * 1000
	case 0xD:
		v, err := br.ReadBits(16)
		if err != nil {
			return Header{}, err
		}
		hdr.SampleRate = v
	case 0xE:
		v, err := br.ReadBits(16)
		if err != nil {
			return Header{}, err
		}
		hdr.SampleRate = v * 10
	}

	if !br.IsByteAligned() {
		return Header{}, coreerr.Newf(coreerr.Unrecoverable, "flac: frame header not byte-aligned before CRC-8")
	}
	headerBytes, err := headerBytesSince(br, startBit)
	if err != nil {
		return Header{}, err
	}
	wantCRC, err := br.ReadBits(8)
	if err != nil {
		return Header{}, err
	}
	gotCRC := crcutil.CRC8(headerBytes)
	if uint8(wantCRC) != gotCRC {
		return Header{}, coreerr.New(coreerr.CRCMismatch, "flac: frame header CRC-8 mismatch")
	}

	return hdr, nil
}

// headerBytesSince re-derives the raw header bytes covering [startBit,
// current position) so the CRC-8 can be computed without requiring the
// reader to expose a running hash (the reader is a plain buffer, not a
// hash.Hash-wrapped stream, unlike the teacher's io.TeeReader approach).
func headerBytesSince(br *bitio.Reader, startBit uint64) ([]byte, error) {
	return br.BytesSince(startBit)
}
