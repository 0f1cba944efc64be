package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/internal/crcutil"
)

// buildConstantMonoFrame encodes a complete mono frame (192-sample block,
// 8 bps, CONSTANT subframe carrying `value`), returning the frame bytes
// with a correct footer CRC-16.
func buildConstantMonoFrame(t *testing.T, value int8) []byte {
	t.Helper()
	var w bitWriter
	w.writeBits(0x3FFE, 14)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0x1, 4) // block size 192
	w.writeBits(0x9, 4) // 44100
	w.writeBits(0x0, 4) // mono
	w.writeBits(0x1, 3) // bps 8
	w.writeBits(0, 1)
	w.writeUTF8Coded(0)
	headerSoFar := w.finish()
	crc8 := crcutil.CRC8(headerSoFar)
	var wc bitWriter
	wc.writeBits(uint64(crc8), 8)
	header := append(headerSoFar, wc.finish()...)

	var ws bitWriter
	ws.writeBits(0, 1) // padding
	ws.writeBits(0, 6) // CONSTANT
	ws.writeBits(0, 1) // no wasted bits
	ws.writeBits(uint64(uint8(value)), 8)
	subframeBytes := ws.finish()

	frameSoFar := append(append([]byte{}, header...), subframeBytes...)
	crc16 := crcutil.CRC16(frameSoFar)
	var wf bitWriter
	wf.writeBits(uint64(crc16), 16)
	return append(frameSoFar, wf.finish()...)
}

func TestDecodeFrameConstantMono(t *testing.T) {
	data := buildConstantMonoFrame(t, -5)
	br := newFedReader(t, data)
	decoded, err := DecodeFrame(br, Defaults{SampleRate: 44100, BitsPerSample: 8})
	require.NoError(t, err)
	require.Equal(t, uint16(192), decoded.Header.BlockSize)
	require.Len(t, decoded.Samples, 192)
	for _, s := range decoded.Samples {
		require.Equal(t, int16(-5*256), s)
	}
}

func TestDecodeFrameFooterCRCMismatchStillYieldsSamples(t *testing.T) {
	data := buildConstantMonoFrame(t, 3)
	data[len(data)-1] ^= 0xFF // corrupt footer CRC-16
	br := newFedReader(t, data)
	decoded, err := DecodeFrame(br, Defaults{SampleRate: 44100, BitsPerSample: 8})
	require.Error(t, err)
	ferr, ok := err.(*coreerr.Error)
	require.True(t, ok)
	require.Equal(t, coreerr.CRCMismatch, ferr.Code)
	require.True(t, ferr.Recoverable)
	require.Len(t, decoded.Samples, 192)
}

func TestDecodeFrameInheritsStreamInfoDefaults(t *testing.T) {
	var w bitWriter
	w.writeBits(0x3FFE, 14)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0x1, 4)
	w.writeBits(0x0, 4) // sample rate code 0 -> inherit from STREAMINFO
	w.writeBits(0x0, 4)
	w.writeBits(0x0, 3) // bps code 0 -> inherit
	w.writeBits(0, 1)
	w.writeUTF8Coded(0)
	headerSoFar := w.finish()
	crc8 := crcutil.CRC8(headerSoFar)
	var wc bitWriter
	wc.writeBits(uint64(crc8), 8)
	header := append(headerSoFar, wc.finish()...)

	var ws bitWriter
	ws.writeBits(0, 1)
	ws.writeBits(0, 6)
	ws.writeBits(0, 1)
	ws.writeBits(uint64(uint8(1)), 24) // 24-bit CONSTANT sample, matches inherited bps
	subframeBytes := ws.finish()

	frameSoFar := append(append([]byte{}, header...), subframeBytes...)
	crc16 := crcutil.CRC16(frameSoFar)
	var wf bitWriter
	wf.writeBits(uint64(crc16), 16)
	data := append(frameSoFar, wf.finish()...)

	br := newFedReader(t, data)
	decoded, err := DecodeFrame(br, Defaults{SampleRate: 48000, BitsPerSample: 24})
	require.NoError(t, err)
	require.Equal(t, uint32(48000), decoded.Header.SampleRate) // inherited into the header on decode
	require.Equal(t, uint8(0), decoded.Header.BitsPerSample)   // bps inheritance stays local to DecodeFrame
	require.Len(t, decoded.Samples, 192)
}
