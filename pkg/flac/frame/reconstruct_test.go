package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconstructInterleavesChannels(t *testing.T) {
	ch0 := []int32{1, 2, 3}
	ch1 := []int32{-1, -2, -3}
	out := Reconstruct([][]int32{ch0, ch1}, 16)
	require.Equal(t, []int16{1, -1, 2, -2, 3, -3}, out)
}

func TestReconstructRescale8Bit(t *testing.T) {
	out := Reconstruct([][]int32{{1, -1, 0}}, 8)
	require.Equal(t, []int16{256, -256, 0}, out)
}

func TestReconstructRescale24BitRounds(t *testing.T) {
	// (in + 128) >> 8
	out := Reconstruct([][]int32{{256, -256, 1000000}}, 24)
	require.Equal(t, int16(1), out[0])
	require.Equal(t, int16(-1), out[1])
	require.Equal(t, int16(3906), out[2]) // (1000000+128)>>8 = 3906
}

func TestReconstructClampsOutOfRange(t *testing.T) {
	out := Reconstruct([][]int32{{1 << 30, -(1 << 30)}}, 24)
	require.Equal(t, int16(32767), out[0])
	require.Equal(t, int16(-32768), out[1])
}

func TestReconstructEmptyChannelsReturnsNil(t *testing.T) {
	require.Nil(t, Reconstruct(nil, 16))
}

func TestReconstructGenericBitDepth(t *testing.T) {
	// 12-bit -> 16-bit is in the generic path: shift left by 4.
	out := Reconstruct([][]int32{{1, -1}}, 12)
	require.Equal(t, int16(16), out[0])
	require.Equal(t, int16(-16), out[1])
}
