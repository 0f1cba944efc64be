package frame

import (
	"github.com/segin/psymp3-sub003/internal/bitio"
	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/internal/crcutil"
)

// Defaults carries the STREAMINFO-derived fallback values a frame header
// may omit (spec §4.11: "sample rate may inherit from STREAMINFO").
type Defaults struct {
	SampleRate    uint32
	BitsPerSample uint8
}

// Decoded is one fully decoded FLAC frame: its header and interleaved
// 16-bit PCM output.
type Decoded struct {
	Header  Header
	Samples []int16
}

// DecodeFrame parses one frame (header, subframes, decorrelation,
// reconstruction, footer CRC-16) starting at br's current byte-aligned
// position (spec §4.11-§4.15). On a footer CRC-16 mismatch it returns the
// decoded samples alongside a recoverable error, per spec §4.16's "on
// mismatch at frame CRC-16, surface a warning but still output the frame".
func DecodeFrame(br *bitio.Reader, def Defaults) (Decoded, error) {
	startBit := br.BitPosition()

	hdr, err := ParseHeader(br)
	if err != nil {
		return Decoded{}, err
	}
	if hdr.SampleRate == 0 {
		hdr.SampleRate = def.SampleRate
	}
	bps := hdr.BitsPerSample
	if bps == 0 {
		bps = def.BitsPerSample
	}
	if bps == 0 {
		return Decoded{}, coreerr.New(coreerr.InvalidHeader, "flac: no bits-per-sample available from frame or STREAMINFO")
	}

	numChannels := hdr.Channels.Count()
	subframes := make([]Subframe, numChannels)
	for ch := 0; ch < numChannels; ch++ {
		chBps := uint(bps)
		if hdr.Channels.IsStereoDecorrelated() {
			isSide := (hdr.Channels == ChannelsRightSide && ch == 0) ||
				(hdr.Channels != ChannelsRightSide && ch == 1)
			if isSide {
				chBps++
			}
		}
		sf, err := DecodeSubframe(br, int(hdr.BlockSize), chBps)
		if err != nil {
			return Decoded{}, err
		}
		subframes[ch] = sf
	}

	if hdr.Channels.IsStereoDecorrelated() {
		Decorrelate(hdr.Channels, subframes[0].Samples, subframes[1].Samples)
	}

	br.AlignToByte()
	frameBytes, err := br.BytesSince(startBit)
	if err != nil {
		return Decoded{}, err
	}
	footerCRC := crcutil.CRC16(frameBytes)

	wantCRC, err := br.ReadBits(16)
	if err != nil {
		return Decoded{}, err
	}

	channelBuffers := make([][]int32, numChannels)
	for i := range subframes {
		channelBuffers[i] = subframes[i].Samples
	}
	samples := Reconstruct(channelBuffers, bps)

	decoded := Decoded{Header: hdr, Samples: samples}
	if uint16(wantCRC) != footerCRC {
		return decoded, coreerr.Recoverable(coreerr.CRCMismatch, "flac: frame footer CRC-16 mismatch")
	}
	return decoded, nil
}
