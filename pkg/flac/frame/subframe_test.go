package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSubframeConstant(t *testing.T) {
	var w bitWriter
	w.writeBits(0, 1)  // zero padding bit
	w.writeBits(0, 6)  // type: CONSTANT
	w.writeBits(0, 1)  // no wasted bits
	w.writeBits(uint64(uint8(int8(-5))), 8) // sample -5 at bps=8
	br := newFedReader(t, w.finish())

	sf, err := DecodeSubframe(br, 4, 8)
	require.NoError(t, err)
	require.Equal(t, KindConstant, sf.Kind)
	require.Equal(t, []int32{-5, -5, -5, -5}, sf.Samples)
}

func TestDecodeSubframeVerbatim(t *testing.T) {
	var w bitWriter
	w.writeBits(0, 1)
	w.writeBits(1, 6) // type: VERBATIM
	w.writeBits(0, 1)
	samples := []int32{1, -1, 2, -2}
	for _, s := range samples {
		w.writeBits(uint64(uint8(int8(s))), 8)
	}
	br := newFedReader(t, w.finish())

	sf, err := DecodeSubframe(br, 4, 8)
	require.NoError(t, err)
	require.Equal(t, KindVerbatim, sf.Kind)
	require.Equal(t, samples, sf.Samples)
}

func TestDecodeSubframeFixedOrder0(t *testing.T) {
	var w bitWriter
	w.writeBits(0, 1)
	w.writeBits(8, 6) // type: FIXED order 0 (8 + 0)
	w.writeBits(0, 1)
	// residual: method 0 (4-bit param), partition order 0, param 0
	w.writeBits(0, 2)
	w.writeBits(0, 4)
	w.writeBits(0, 4) // rice parameter 0
	residuals := []int32{1, -1, 2, -2}
	for _, r := range residuals {
		w.writeRice(r, 0)
	}
	br := newFedReader(t, w.finish())

	sf, err := DecodeSubframe(br, 4, 8)
	require.NoError(t, err)
	require.Equal(t, KindFixed, sf.Kind)
	require.Equal(t, 0, sf.Order)
	// order-0 fixed prediction is identity: residuals pass straight through
	require.Equal(t, residuals, sf.Samples)
}

func TestDecodeSubframeWithWastedBits(t *testing.T) {
	var w bitWriter
	w.writeBits(0, 1)
	w.writeBits(0, 6) // CONSTANT
	w.writeBits(1, 1) // wasted bits flag set
	w.writeUnary(2)   // unary 2 -> Wasted = 2+1 = 3
	w.writeBits(uint64(uint8(int8(3))), 8-3) // sample encoded at effective bps = 8-3
	br := newFedReader(t, w.finish())

	sf, err := DecodeSubframe(br, 4, 8)
	require.NoError(t, err)
	require.Equal(t, uint(3), sf.Wasted)
	// constant sample 3 shifted left by 3 wasted bits == 24
	require.Equal(t, int32(24), sf.Samples[0])
}

func TestDecodeSubframeReservedType(t *testing.T) {
	var w bitWriter
	w.writeBits(0, 1)
	w.writeBits(2, 6) // reserved (2..7)
	br := newFedReader(t, w.finish())
	_, err := DecodeSubframe(br, 4, 8)
	require.Error(t, err)
}
