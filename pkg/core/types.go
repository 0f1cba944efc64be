// Package core defines the data model shared by every component in the
// decoding pipeline (spec §3): StreamInfo, MediaChunk, and AudioFrame.
package core

// StreamInfo describes one logical stream discovered during container
// parse. It is created once and is immutable thereafter; callers may copy
// it freely by value.
type StreamInfo struct {
	StreamID      int32
	CodecType     string // always "audio" for streams this pipeline surfaces
	CodecName     string // lowercase token: "flac", "vorbis", "opus", "pcm", ...
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	DurationMs    int64
	// OpusPreSkip is the Opus ID header's pre-skip field (RFC 7845 §5.1):
	// the number of decoded samples, at the fixed 48kHz Opus rate, to
	// discard from the start of the stream. Zero for every other codec.
	OpusPreSkip uint16
	// SetupBytes carries optional codec-specific setup data (e.g. a Vorbis
	// setup header, FLAC STREAMINFO bytes) passed through to the codec at
	// Initialize time.
	SetupBytes []byte
}

// Clone returns a deep copy safe to mutate independently of the receiver.
func (s StreamInfo) Clone() StreamInfo {
	if s.SetupBytes != nil {
		cp := make([]byte, len(s.SetupBytes))
		copy(cp, s.SetupBytes)
		s.SetupBytes = cp
	}
	return s
}

// MediaChunk is one codec-layer packet handed from a demuxer to a codec.
type MediaChunk struct {
	StreamID int32
	Data     []byte
	// Position is the granule/timestamp position carried by the packet's
	// terminating container unit, if any.
	Position     int64
	HasPosition  bool
	IsKeyframe   bool
}

// AudioFrame is a decoded block of interleaved 16-bit PCM samples.
//
// Samples obey len(Samples) == Channels * frame_count. An empty AudioFrame
// (len(Samples) == 0) signals "no output this call" and is a valid,
// non-error result.
type AudioFrame struct {
	Samples       []int16
	SampleRate    uint32
	Channels      uint8
	TimestampSamp uint64
	TimestampMs   int64

	pooled   bool
	capacity int
}

// FrameCount returns the number of interleaved sample frames (not raw
// samples) held by the AudioFrame.
func (f AudioFrame) FrameCount() int {
	if f.Channels == 0 {
		return 0
	}
	return len(f.Samples) / int(f.Channels)
}

// Empty reports whether the frame carries no samples.
func (f AudioFrame) Empty() bool {
	return len(f.Samples) == 0
}

// Valid reports the per-frame invariant from spec §3: every non-empty
// AudioFrame has sample_rate > 0 and channels in [1,8].
func (f AudioFrame) Valid() bool {
	if f.Empty() {
		return true
	}
	return f.SampleRate > 0 && f.Channels >= 1 && f.Channels <= 8
}
