package codec

import (
	"encoding/binary"
	"math"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
)

// pcmCodec converts raw little-endian integer PCM (8-bit unsigned,
// 16/24/32-bit signed) to interleaved 16-bit output (spec §4.17). It has no
// float mode: 32-bit input is always read as signed integer; IEEE-float
// data is converted by FloatDecode instead.
type pcmCodec struct {
	info      core.StreamInfo
	samplePos uint64
}

func (c *pcmCodec) Initialize(info core.StreamInfo) error {
	if info.BitsPerSample == 0 {
		return coreerr.New(coreerr.InvalidHeader, "pcm: bits_per_sample required")
	}
	c.info = info
	return nil
}

func (c *pcmCodec) Decode(chunk core.MediaChunk) (core.AudioFrame, error) {
	bytesPerSample := int(c.info.BitsPerSample) / 8
	if bytesPerSample == 0 || len(chunk.Data)%bytesPerSample != 0 {
		return core.AudioFrame{}, coreerr.New(coreerr.CorruptedData, "pcm: chunk not aligned to sample width")
	}
	n := len(chunk.Data) / bytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		b := chunk.Data[i*bytesPerSample : (i+1)*bytesPerSample]
		samples[i] = pcmSampleTo16(b, c.info.BitsPerSample)
	}
	ts := c.samplePos
	if c.info.Channels > 0 {
		c.samplePos += uint64(n / int(c.info.Channels))
	}
	return core.AudioFrame{
		Samples:       samples,
		SampleRate:    c.info.SampleRate,
		Channels:      c.info.Channels,
		TimestampSamp: ts,
		TimestampMs:   timestampMs(ts, c.info.SampleRate),
	}, nil
}

func (c *pcmCodec) Flush() (core.AudioFrame, error) { return core.AudioFrame{}, nil }
func (c *pcmCodec) Reset()                          { c.samplePos = 0 }

// timestampMs converts a sample-count position to milliseconds at the
// given rate (spec §3's AudioFrame.timestamp_ms).
func timestampMs(samplePos uint64, sampleRate uint32) int64 {
	if sampleRate == 0 {
		return 0
	}
	return int64(samplePos) * 1000 / int64(sampleRate)
}

func pcmSampleTo16(b []byte, bps uint8) int16 {
	switch bps {
	case 8:
		// 8-bit PCM is conventionally unsigned; center it before widening.
		return int16(int32(b[0])-128) << 8
	case 16:
		return int16(binary.LittleEndian.Uint16(b))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF)
		}
		return clamp16(v >> 8)
	case 32:
		v := int32(binary.LittleEndian.Uint32(b))
		return clamp16(v >> 16)
	default:
		return 0
	}
}

// FloatDecode converts a chunk of little-endian 32-bit float PCM samples
// (range [-1,1]) to 16-bit signed, clamping values outside that range. It
// is a standalone function, not a registered codec: callers use it
// directly for IEEE-float streams.
func FloatDecode(chunk core.MediaChunk, info core.StreamInfo) (core.AudioFrame, error) {
	if len(chunk.Data)%4 != 0 {
		return core.AudioFrame{}, coreerr.New(coreerr.CorruptedData, "pcm: float chunk not 4-byte aligned")
	}
	n := len(chunk.Data) / 4
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(chunk.Data[i*4 : i*4+4])
		f := math.Float32frombits(bits)
		samples[i] = clamp16(int32(f * 32767))
	}
	return core.AudioFrame{Samples: samples, SampleRate: info.SampleRate, Channels: info.Channels}, nil
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
