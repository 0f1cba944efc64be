package flac

import (
	"github.com/pkg/errors"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
	"github.com/segin/psymp3-sub003/pkg/flac/meta"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// readChunkSize is how many raw bytes NativeDemuxer hands the codec per
// ReadChunk call; the codec's internal bitio.Reader buffers across calls,
// so this is a throughput/latency tradeoff, not a correctness parameter.
const readChunkSize = 8192

// NativeDemuxer reads a standalone ".flac" file: it parses the metadata
// block chain itself (unlike the Ogg-in-container path, a raw FLAC file
// has no page framing at all) and then streams raw frame bytes to the
// codec in fixed-size chunks, since frame boundaries are discovered by
// the codec's own sync scan rather than by any container framing.
type NativeDemuxer struct {
	r     ioutil.Reader
	chain meta.Chain
	info  core.StreamInfo
	eof   bool
	pos   int64
}

// NewNativeDemuxer constructs a NativeDemuxer reading from r, positioned
// at the start of the file (the "fLaC" marker or its Ogg-FLAC wrapper).
func NewNativeDemuxer(r ioutil.Reader) *NativeDemuxer {
	return &NativeDemuxer{r: r}
}

// ParseContainer reads the metadata block chain, populating the single
// StreamInfo this demuxer exposes.
func (d *NativeDemuxer) ParseContainer() error {
	chain, err := meta.ParseChain(d.r)
	if err != nil {
		return err
	}
	d.chain = chain

	si := chain.StreamInfo
	durationMs := int64(0)
	if si.SampleRate > 0 && si.TotalSamples > 0 {
		durationMs = int64(si.TotalSamples) * 1000 / int64(si.SampleRate)
	}
	d.info = core.StreamInfo{
		StreamID:      0,
		CodecType:     "audio",
		CodecName:     "flac",
		SampleRate:    si.SampleRate,
		Channels:      si.Channels,
		BitsPerSample: si.BitsPerSample,
		DurationMs:    durationMs,
	}
	return nil
}

// Streams returns the single parsed StreamInfo.
func (d *NativeDemuxer) Streams() []core.StreamInfo {
	return []core.StreamInfo{d.info}
}

// ReadChunk returns the next raw block of frame bytes from the
// underlying reader.
func (d *NativeDemuxer) ReadChunk() (core.MediaChunk, error) {
	buf := make([]byte, readChunkSize)
	n, err := d.r.Read(buf)
	if n == 0 {
		d.eof = true
		if err != nil {
			return core.MediaChunk{}, err
		}
		return core.MediaChunk{}, coreerr.New(coreerr.BufferUnderflow, "flac: end of stream")
	}
	if ioutil.IsTemporary(err) {
		err = nil
	}
	d.pos += int64(n)
	return core.MediaChunk{StreamID: 0, Data: buf[:n]}, nil
}

// IsEOF reports whether the underlying reader has been exhausted.
func (d *NativeDemuxer) IsEOF() bool { return d.eof }

// DurationMs returns the STREAMINFO-derived duration (always immediately
// available for native FLAC, unlike Ogg's tail scan).
func (d *NativeDemuxer) DurationMs() int64 { return d.info.DurationMs }

// SeekTo seeks to the nearest SEEKTABLE entry at or before targetMs, or
// falls back to a byte-rate estimate when no SEEKTABLE is present. The
// caller must call Codec.Reset afterward, since SeekTo only repositions
// the IO reader.
func (d *NativeDemuxer) SeekTo(targetMs int64) error {
	if d.info.SampleRate == 0 {
		return coreerr.New(coreerr.InvalidHeader, "flac: seek before parse_container")
	}
	targetSample := uint64(targetMs) * uint64(d.info.SampleRate) / 1000

	if len(d.chain.SeekTable) > 0 {
		var best *meta.SeekPoint
		for i := range d.chain.SeekTable {
			sp := &d.chain.SeekTable[i]
			if sp.SampleNumber == 0xFFFFFFFFFFFFFFFF {
				continue
			}
			if sp.SampleNumber <= targetSample {
				best = sp
			}
		}
		if best != nil {
			if _, err := d.r.Seek(int64(best.ByteOffset), ioutil.SeekStart); err != nil {
				return errors.Wrap(err, "flac: seeking to seektable entry")
			}
			d.eof = false
			return nil
		}
	}

	if d.info.DurationMs > 0 {
		size, err := d.r.Size()
		if err != nil {
			return errors.Wrap(err, "flac: reading file size for seek estimate")
		}
		fraction := float64(targetMs) / float64(d.info.DurationMs)
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		offset := int64(fraction * float64(size))
		if _, err := d.r.Seek(offset, ioutil.SeekStart); err != nil {
			return errors.Wrap(err, "flac: seeking to estimated offset")
		}
		d.eof = false
	}
	return nil
}
