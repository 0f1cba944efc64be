package probe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// TestProbeID3v2PrefixedFLAC covers spec §8.8: probe returns "flac" given
// ID3 + synchsafe length 0x20 + 32 padding bytes + fLaC STREAMINFO header.
func TestProbeID3v2PrefixedFLAC(t *testing.T) {
	var data []byte
	data = append(data, []byte("ID3")...)
	data = append(data, 0x03, 0x00, 0x00) // version + flags
	data = append(data, 0x00, 0x00, 0x00, 0x20) // synchsafe length 32
	data = append(data, make([]byte, 32)...)
	data = append(data, []byte("fLaC")...)
	data = append(data, 0x00, 0x00, 0x00, 0x22)
	data = append(data, make([]byte, 34)...)

	r := ioutil.NewMemoryReader(data)
	res, err := Identify(r, "")
	require.NoError(t, err)
	require.Equal(t, "flac", res.FormatID)
}

// TestProbeExtensionFallback covers spec §8 scenario S6: a zero-byte file
// with path ending .wav resolves to "riff" via the extension map.
func TestProbeExtensionFallback(t *testing.T) {
	r := ioutil.NewMemoryReader(nil)
	res, err := Identify(r, "silence.wav")
	require.NoError(t, err)
	require.Equal(t, "riff", res.FormatID)
}

func TestProbeOggInnerCodecHint(t *testing.T) {
	var data []byte
	data = append(data, []byte("OggS")...)
	data = append(data, make([]byte, 23)...) // rest of a minimal page header
	data = append(data, []byte("OpusHead")...)

	r := ioutil.NewMemoryReader(data)
	res, err := Identify(r, "")
	require.NoError(t, err)
	require.Equal(t, "ogg", res.FormatID)
	require.Equal(t, "opus", res.OggCodecHint)
}

func TestProbeFlacMagic(t *testing.T) {
	data := append([]byte("fLaC"), make([]byte, 34)...)
	r := ioutil.NewMemoryReader(data)
	res, err := Identify(r, "")
	require.NoError(t, err)
	require.Equal(t, "flac", res.FormatID)
}

func TestDecodeSynchsafe(t *testing.T) {
	v, err := decodeSynchsafe([]byte{0x00, 0x00, 0x02, 0x01})
	require.NoError(t, err)
	require.Equal(t, int64(0x101), v)
}
