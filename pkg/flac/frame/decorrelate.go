package frame

// Decorrelate applies the inverse of the encoder's inter-channel
// decorrelation to the two subframes of a stereo-decorrelated frame (spec
// §4.14). ch0 and ch1 are mutated in place and reinterpreted according to
// the channel assignment: for LEFT-SIDE, ch0 is left and ch1 is side (ch1
// becomes right on return); for RIGHT-SIDE, ch0 is side and ch1 is right
// (ch0 becomes left); for MID-SIDE, ch0 is mid and ch1 is side (both
// become left/right). All arithmetic runs in at least 33-bit signed range
// by using int64 throughout.
func Decorrelate(assignment ChannelAssignment, ch0, ch1 []int32) {
	switch assignment {
	case ChannelsLeftSide:
		for i := range ch0 {
			left := int64(ch0[i])
			side := int64(ch1[i])
			ch1[i] = int32(left - side)
		}
	case ChannelsRightSide:
		for i := range ch0 {
			side := int64(ch0[i])
			right := int64(ch1[i])
			ch0[i] = int32(side + right)
		}
	case ChannelsMidSide:
		for i := range ch0 {
			mid := int64(ch0[i])
			side := int64(ch1[i])
			m := (mid << 1) | (side & 1)
			ch0[i] = int32((m + side) >> 1)
			ch1[i] = int32((m - side) >> 1)
		}
	}
}
