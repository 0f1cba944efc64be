// Package flac implements the native FLAC decoder (spec §4.16): a state
// machine gluing the bitstream reader, metadata parser, frame parser,
// subframe/residual decoders, channel decorrelator, and sample
// reconstructor together behind the generic codec interface.
package flac

import (
	"log/slog"

	"github.com/segin/psymp3-sub003/internal/bitio"
	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
	"github.com/segin/psymp3-sub003/pkg/flac/frame"
)

// State is the codec's lifecycle stage (spec §4.16).
type State int

const (
	StateUninit State = iota
	StateHeaders
	StateFrames
	StateEOF
)

// maxResyncAttempts bounds how many failed frame decodes (each followed by
// a one-byte skip past the rejected sync position) Decode tolerates within
// a single call, so a pathologically corrupt chunk cannot spin forever.
// Bytes skipped by FindSync while scanning for a sync code are not counted.
const maxResyncAttempts = 4096

// Codec is the native FLAC decoder (spec §4.16's FLACCodec). One Codec
// instance handles exactly one logical stream.
type Codec struct {
	state     State
	br        *bitio.Reader
	defaults  frame.Defaults
	channels  uint8
	logger    *slog.Logger
	samplePos uint64 // running sample position, for AudioFrame timestamps
}

// Option configures a Codec at construction.
type Option func(*Codec)

// WithLogger overrides the package-default logger (spec §2 ambient
// logging addendum).
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) { c.logger = l }
}

// New constructs an uninitialized Codec.
func New(opts ...Option) *Codec {
	c := &Codec{state: StateUninit, br: bitio.NewReader(), logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize configures the codec from container-supplied stream
// parameters (spec §4.16). The container is responsible for having
// already consumed any metadata blocks; MediaChunks fed to Decode contain
// only frame payloads.
func (c *Codec) Initialize(info core.StreamInfo) error {
	if info.SampleRate == 0 {
		return coreerr.New(coreerr.InvalidHeader, "flac: codec initialized without a sample rate")
	}
	if info.Channels < 1 || info.Channels > 8 {
		return coreerr.New(coreerr.InvalidHeader, "flac: codec initialized with invalid channel count")
	}
	c.defaults = frame.Defaults{SampleRate: info.SampleRate, BitsPerSample: info.BitsPerSample}
	c.channels = info.Channels
	c.br.Clear()
	c.samplePos = 0
	c.state = StateFrames
	return nil
}

// Decode feeds chunk into the bitstream and drives the pipeline until one
// frame's samples are available, returning an empty AudioFrame if more
// input is required (spec §4.16).
func (c *Codec) Decode(chunk core.MediaChunk) (core.AudioFrame, error) {
	if c.state == StateUninit {
		return core.AudioFrame{}, coreerr.New(coreerr.Unrecoverable, "flac: Decode called before Initialize")
	}
	if c.state == StateEOF {
		return core.AudioFrame{}, nil
	}
	c.br.Feed(chunk.Data)

	for attempt := 0; attempt < maxResyncAttempts; attempt++ {
		syncStart := c.br.BitPosition()

		if err := frame.FindSync(c.br); err != nil {
			if isUnderflow(err) {
				c.br.Rewind(syncStart)
				return core.AudioFrame{}, nil
			}
			return core.AudioFrame{}, err
		}

		decoded, err := frame.DecodeFrame(c.br, c.defaults)
		if err == nil {
			c.br.DiscardReadBytes()
			return c.toAudioFrame(decoded), nil
		}

		if isUnderflow(err) {
			c.br.Rewind(syncStart)
			return core.AudioFrame{}, nil
		}

		var ce *coreerr.Error
		if asCoreErr(err, &ce) && ce.Code == coreerr.CRCMismatch && ce.Recoverable {
			// Footer CRC-16 mismatch: RFC 9639 says to still output the
			// frame (spec §4.16).
			c.br.DiscardReadBytes()
			c.logger.Warn("flac: frame footer CRC-16 mismatch, emitting frame anyway",
				slog.Uint64("frame_num", decoded.Header.Num))
			return c.toAudioFrame(decoded), nil
		}

		// Any other structural defect (bad header CRC-8, reserved field,
		// impossible residual shape): advance one byte past the sync
		// position that failed and keep scanning within this call (spec
		// §7/§4.16 local-recovery policy).
		c.logger.Warn("flac: resyncing past corrupt frame", slog.String("error", err.Error()))
		c.br.Rewind(syncStart)
		if skipErr := c.br.SkipBits(8); skipErr != nil {
			c.br.Rewind(syncStart)
			return core.AudioFrame{}, nil
		}
	}

	return core.AudioFrame{}, coreerr.New(coreerr.CorruptedData, "flac: exceeded resync attempts without finding a valid frame")
}

// Flush emits any residual buffered samples. The native FLAC decoder
// never holds a partially decoded frame across calls (each Decode call
// either completes a frame or rewinds), so Flush always returns empty.
func (c *Codec) Flush() (core.AudioFrame, error) {
	return core.AudioFrame{}, nil
}

// Reset clears decoder state for a seek (spec §4.16). The running sample
// position restarts at 0: it is relative to wherever decoding resumes, not
// an absolute stream position, since the codec itself has no visibility
// into where the container repositioned the underlying reader.
func (c *Codec) Reset() {
	c.br.Clear()
	c.samplePos = 0
	if c.state != StateUninit {
		c.state = StateFrames
	}
}

func (c *Codec) toAudioFrame(d frame.Decoded) core.AudioFrame {
	sampleRate := resolveSampleRate(d.Header.SampleRate, c.defaults.SampleRate)
	ts := c.samplePos
	c.samplePos += uint64(d.Header.BlockSize)
	return core.AudioFrame{
		Samples:       d.Samples,
		SampleRate:    sampleRate,
		Channels:      c.channels,
		TimestampSamp: ts,
		TimestampMs:   sampTimestampMs(ts, sampleRate),
	}
}

// sampTimestampMs converts a sample-count position to milliseconds at the
// given rate (spec §3's AudioFrame.timestamp_ms).
func sampTimestampMs(samplePos uint64, sampleRate uint32) int64 {
	if sampleRate == 0 {
		return 0
	}
	return int64(samplePos) * 1000 / int64(sampleRate)
}

func resolveSampleRate(headerRate, fallback uint32) uint32 {
	if headerRate != 0 {
		return headerRate
	}
	return fallback
}

func isUnderflow(err error) bool {
	var ce *coreerr.Error
	return asCoreErr(err, &ce) && ce.Code == coreerr.BufferUnderflow
}

// asCoreErr is a tiny errors.As wrapper kept local to avoid importing the
// standard errors package just for this one call site.
func asCoreErr(err error, target **coreerr.Error) bool {
	for err != nil {
		if ce, ok := err.(*coreerr.Error); ok {
			*target = ce
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
