package meta

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// streamInfoBody builds the 34-byte STREAMINFO body per RFC 9639's packed
// bitfield layout (spec §4.10).
func streamInfoBody(t *testing.T, minBlk, maxBlk uint16, minFrame, maxFrame uint32, sampleRate uint32, channels, bps uint8, totalSamples uint64, md5 [16]byte) []byte {
	t.Helper()
	b := make([]byte, 34)
	binary.BigEndian.PutUint16(b[0:2], minBlk)
	binary.BigEndian.PutUint16(b[2:4], maxBlk)
	b[4] = byte(minFrame >> 16)
	b[5] = byte(minFrame >> 8)
	b[6] = byte(minFrame)
	b[7] = byte(maxFrame >> 16)
	b[8] = byte(maxFrame >> 8)
	b[9] = byte(maxFrame)

	packed := (uint64(sampleRate) & 0xFFFFF) << 44
	packed |= (uint64(channels-1) & 0x7) << 41
	packed |= (uint64(bps-1) & 0x1F) << 36
	packed |= uint64(totalSamples) & 0xFFFFFFFFF
	binary.BigEndian.PutUint64(b[10:18], packed)

	copy(b[18:34], md5[:])
	return b
}

func blockHeaderBytes(last bool, typ BlockType, length uint32) []byte {
	word := length & 0x00FFFFFF
	word |= uint32(typ) << 24
	if last {
		word |= 0x80000000
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, word)
	return b
}

func TestParseChainStreamInfoOnly(t *testing.T) {
	var md5 [16]byte
	for i := range md5 {
		md5[i] = byte(i)
	}
	body := streamInfoBody(t, 4096, 4096, 1000, 2000, 44100, 2, 16, 123456, md5)

	var data []byte
	data = append(data, []byte("fLaC")...)
	data = append(data, blockHeaderBytes(true, TypeStreamInfo, uint32(len(body)))...)
	data = append(data, body...)

	chain, err := ParseChain(ioutil.NewMemoryReader(data))
	require.NoError(t, err)
	require.Equal(t, uint16(4096), chain.StreamInfo.MinBlockSize)
	require.Equal(t, uint32(44100), chain.StreamInfo.SampleRate)
	require.Equal(t, uint8(2), chain.StreamInfo.Channels)
	require.Equal(t, uint8(16), chain.StreamInfo.BitsPerSample)
	require.Equal(t, uint64(123456), chain.StreamInfo.TotalSamples)
	require.Equal(t, md5, chain.StreamInfo.MD5)
}

func TestParseChainMissingMarker(t *testing.T) {
	_, err := ParseChain(ioutil.NewMemoryReader([]byte("NOPE1234")))
	require.Error(t, err)
	ferr, ok := err.(*coreerr.Error)
	require.True(t, ok)
	require.Equal(t, coreerr.InvalidHeader, ferr.Code)
}

func TestParseChainFirstBlockMustBeStreamInfo(t *testing.T) {
	var data []byte
	data = append(data, []byte("fLaC")...)
	data = append(data, blockHeaderBytes(true, TypePadding, 4)...)
	data = append(data, make([]byte, 4)...)

	_, err := ParseChain(ioutil.NewMemoryReader(data))
	require.Error(t, err)
}

func TestParseChainRejectsForbiddenType(t *testing.T) {
	var md5 [16]byte
	body := streamInfoBody(t, 4096, 4096, 0, 0, 44100, 2, 16, 0, md5)
	var data []byte
	data = append(data, []byte("fLaC")...)
	data = append(data, blockHeaderBytes(false, TypeStreamInfo, uint32(len(body)))...)
	data = append(data, body...)
	data = append(data, blockHeaderBytes(true, typeForbidden, 0)...)

	_, err := ParseChain(ioutil.NewMemoryReader(data))
	require.Error(t, err)
}

func TestParseChainWithPaddingVorbisCommentAndPicture(t *testing.T) {
	var md5 [16]byte
	siBody := streamInfoBody(t, 4096, 4096, 0, 0, 44100, 2, 16, 0, md5)

	vcBody := buildVorbisComment(t, "testvendor", []string{"TITLE=foo", "ARTIST=bar"})

	picBody := buildPicture(t, 3, "image/png", "cover", 100, 100, 24, 0, []byte{1, 2, 3, 4})

	var data []byte
	data = append(data, []byte("fLaC")...)
	data = append(data, blockHeaderBytes(false, TypeStreamInfo, uint32(len(siBody)))...)
	data = append(data, siBody...)
	data = append(data, blockHeaderBytes(false, TypePadding, 16)...)
	data = append(data, make([]byte, 16)...)
	data = append(data, blockHeaderBytes(false, TypeVorbisComment, uint32(len(vcBody)))...)
	data = append(data, vcBody...)
	data = append(data, blockHeaderBytes(true, TypePicture, uint32(len(picBody)))...)
	data = append(data, picBody...)

	chain, err := ParseChain(ioutil.NewMemoryReader(data))
	require.NoError(t, err)
	require.Equal(t, 16, chain.PaddingBytes)
	require.NotNil(t, chain.VorbisComment)
	require.Equal(t, "testvendor", chain.VorbisComment.Vendor)
	require.Equal(t, []string{"TITLE=foo", "ARTIST=bar"}, chain.VorbisComment.Fields)
	require.Len(t, chain.Pictures, 1)
	require.Equal(t, "image/png", chain.Pictures[0].MIME)
	require.Equal(t, []byte{1, 2, 3, 4}, chain.Pictures[0].Data)
}

func buildVorbisComment(t *testing.T, vendor string, fields []string) []byte {
	t.Helper()
	var b []byte
	putLen := func(n int) {
		lb := make([]byte, 4)
		binary.LittleEndian.PutUint32(lb, uint32(n))
		b = append(b, lb...)
	}
	putLen(len(vendor))
	b = append(b, vendor...)
	putLen(len(fields))
	for _, f := range fields {
		putLen(len(f))
		b = append(b, f...)
	}
	return b
}

func TestVorbisCommentRejectsFieldWithoutEquals(t *testing.T) {
	body := buildVorbisComment(t, "v", []string{"NOEQUALSIGN"})
	_, err := parseVorbisComment(body)
	require.Error(t, err)
}

func buildPicture(t *testing.T, typ uint32, mime, desc string, width, height, depth, colors uint32, data []byte) []byte {
	t.Helper()
	var b []byte
	putU32 := func(v uint32) {
		u := make([]byte, 4)
		binary.BigEndian.PutUint32(u, v)
		b = append(b, u...)
	}
	putStr := func(s string) {
		putU32(uint32(len(s)))
		b = append(b, s...)
	}
	putU32(typ)
	putStr(mime)
	putStr(desc)
	putU32(width)
	putU32(height)
	putU32(depth)
	putU32(colors)
	putU32(uint32(len(data)))
	b = append(b, data...)
	return b
}

func TestParseSeekTableRejectsNonAscending(t *testing.T) {
	b := make([]byte, 36)
	binary.BigEndian.PutUint64(b[0:8], 100)
	binary.BigEndian.PutUint64(b[18:26], 50) // not ascending
	_, err := parseSeekTable(b)
	require.Error(t, err)
}

func TestParseSeekTableAllowsPlaceholders(t *testing.T) {
	b := make([]byte, 18)
	binary.BigEndian.PutUint64(b[0:8], 0xFFFFFFFFFFFFFFFF)
	pts, err := parseSeekTable(b)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), pts[0].SampleNumber)
}

func TestStreamInfoValidation(t *testing.T) {
	var md5 [16]byte
	_, err := parseStreamInfo(streamInfoBody(t, 0, 0, 0, 0, 0, 2, 16, 0, md5))
	require.Error(t, err, "zero sample rate must be rejected")
}

func TestSkipOggFlacWrapperPresent(t *testing.T) {
	var md5 [16]byte
	siBody := streamInfoBody(t, 4096, 4096, 0, 0, 44100, 2, 16, 0, md5)
	var data []byte
	data = append(data, 0x7F)
	data = append(data, []byte("FLAC")...)
	data = append(data, 0x01, 0x00, 0x00, 0x01) // major, minor, header count
	data = append(data, []byte("fLaC")...)
	data = append(data, blockHeaderBytes(true, TypeStreamInfo, uint32(len(siBody)))...)
	data = append(data, siBody...)

	chain, err := ParseChain(ioutil.NewMemoryReader(data))
	require.NoError(t, err)
	require.Equal(t, uint32(44100), chain.StreamInfo.SampleRate)
}
