package ogg

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segin/psymp3-sub003/internal/coreerr"
)

func buildVorbisIDHeader(channels uint8, sampleRate uint32) []byte {
	b := make([]byte, 30)
	copy(b[0:7], "\x01vorbis")
	binary.LittleEndian.PutUint32(b[7:11], 0) // version
	b[11] = channels
	binary.LittleEndian.PutUint32(b[12:16], sampleRate)
	return b
}

func buildOpusIDHeader(channels uint8, preSkip uint16) []byte {
	b := make([]byte, 19)
	copy(b[0:8], "OpusHead")
	b[8] = 1 // version
	b[9] = channels
	binary.LittleEndian.PutUint16(b[10:12], preSkip)
	return b
}

func buildSpeexHeader(sampleRate, channels uint32) []byte {
	b := make([]byte, 68)
	copy(b[0:8], "Speex   ")
	binary.LittleEndian.PutUint32(b[36:40], sampleRate)
	binary.LittleEndian.PutUint32(b[48:52], channels)
	return b
}

func TestParseCodecHeaderVorbis(t *testing.T) {
	info, err := ParseCodecHeader(buildVorbisIDHeader(2, 44100))
	require.NoError(t, err)
	require.Equal(t, "vorbis", info.CodecName)
	require.Equal(t, uint8(2), info.Channels)
	require.Equal(t, uint32(44100), info.SampleRate)
}

func TestParseCodecHeaderOpusAlwaysReports48kHz(t *testing.T) {
	info, err := ParseCodecHeader(buildOpusIDHeader(2, 0))
	require.NoError(t, err)
	require.Equal(t, "opus", info.CodecName)
	require.Equal(t, uint32(48000), info.SampleRate)
	require.Equal(t, uint8(2), info.Channels)
	require.Equal(t, uint16(0), info.OpusPreSkip)
}

func TestParseCodecHeaderOpusParsesPreSkip(t *testing.T) {
	info, err := ParseCodecHeader(buildOpusIDHeader(2, 312))
	require.NoError(t, err)
	require.Equal(t, uint16(312), info.OpusPreSkip)
}

func TestParseCodecHeaderSpeex(t *testing.T) {
	info, err := ParseCodecHeader(buildSpeexHeader(16000, 1))
	require.NoError(t, err)
	require.Equal(t, "speex", info.CodecName)
	require.Equal(t, uint32(16000), info.SampleRate)
	require.Equal(t, uint8(1), info.Channels)
}

func TestParseCodecHeaderFlacInOgg(t *testing.T) {
	packet := make([]byte, 9+4+4+34)
	packet[0] = 0x7F
	copy(packet[1:5], "FLAC")
	packet[5], packet[6] = 1, 0     // major, minor
	packet[7], packet[8] = 0, 1     // header count
	copy(packet[9:13], "fLaC")
	si := packet[9+4+4:]
	// Pack sample_rate=44100, channels=2, bps=16 the same way STREAMINFO does.
	packed := (uint64(44100) & 0xFFFFF) << 44
	packed |= (uint64(1) & 0x7) << 41 // channels-1
	packed |= (uint64(15) & 0x1F) << 36 // bps-1
	buf8 := make([]byte, 8)
	binary.BigEndian.PutUint64(buf8, packed)
	copy(si[10:18], buf8)

	info, err := ParseCodecHeader(packet)
	require.NoError(t, err)
	require.Equal(t, "flac", info.CodecName)
	require.Equal(t, uint32(44100), info.SampleRate)
	require.Equal(t, uint8(2), info.Channels)
	require.Equal(t, uint8(16), info.BitsPerSample)
}

func TestParseCodecHeaderUnrecognized(t *testing.T) {
	_, err := ParseCodecHeader([]byte("not a known codec header"))
	require.Error(t, err)
	ferr, ok := err.(*coreerr.Error)
	require.True(t, ok)
	require.Equal(t, coreerr.UnsupportedFeature, ferr.Code)
}
