package frame

// Reconstruct converts per-channel 32-bit decorrelated samples at the
// given bit depth into interleaved 16-bit PCM (spec §4.15), clamping to
// the int16 range after rescale.
func Reconstruct(channels [][]int32, bps uint8) []int16 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]int16, n*len(channels))
	for i := 0; i < n; i++ {
		for c, ch := range channels {
			out[i*len(channels)+c] = rescaleTo16(ch[i], bps)
		}
	}
	return out
}

// rescaleTo16 maps one sample at bps bits to a clamped 16-bit value (spec
// §4.15's per-depth table, generalized to arbitrary depths via the same
// round-to-nearest/ceiling rule).
func rescaleTo16(in int32, bps uint8) int16 {
	var out int64
	switch bps {
	case 16:
		out = int64(in)
	case 8:
		out = int64(in) << 8
	case 20:
		out = (int64(in) + 8) >> 4
	case 24:
		out = (int64(in) + 128) >> 8
	case 32:
		out = (int64(in) + 32768) >> 16
	default:
		out = rescaleGeneric(int64(in), bps)
	}
	return clampInt16(out)
}

// rescaleGeneric handles bit depths outside the common FLAC set (e.g. 4,
// 12) by shifting to or from 16 bits with the same rounding convention as
// the fixed-depth cases: round to nearest, ties toward positive infinity.
func rescaleGeneric(in int64, bps uint8) int64 {
	if bps == 16 {
		return in
	}
	if bps < 16 {
		return in << (16 - bps)
	}
	shift := bps - 16
	half := int64(1) << (shift - 1)
	return (in + half) >> shift
}

func clampInt16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
