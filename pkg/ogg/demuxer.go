package ogg

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// streamState tracks one logical stream's public-facing identity plus
// everything the demuxer needs to drive reads against it (spec §4.7).
type streamState struct {
	info          core.StreamInfo
	codec         CodecInfo
	headersNeeded int
	headersSeen   int
	complete      bool
	interesting   bool
	eof           bool
}

// Demuxer implements the Ogg container's public contract: parse_container,
// streams, read_chunk[(stream_id)], seek_to, is_eof, duration_ms,
// position_ms (spec §4.7).
type Demuxer struct {
	r      ioutil.Reader
	sync   *SyncManager
	stream *StreamManager

	streams       map[int32]*streamState
	order         []int32
	primarySerial int32
	havePrimary   bool

	positionMs int64
	eof        bool

	durationMs   atomic.Int64
	durationDone atomic.Bool
	durationMu   sync.Mutex
	durationWait chan struct{}
}

// headerCountForCodec returns how many leading packets make up the
// identification+setup headers for a recognized codec (spec §4.6 table).
// FLAC-in-Ogg's count comes from the wrapper's own field and is handled
// separately in parse_container.
func headerCountForCodec(name string) int {
	switch name {
	case "vorbis":
		return 3
	case "opus":
		return 2
	case "speex":
		return 2
	default:
		return 1
	}
}

// NewDemuxer constructs a Demuxer reading from r, which must support Seek
// and Tell (used by both the sync manager and the seeking engine).
func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	sm, err := NewSyncManager(r)
	if err != nil {
		return nil, err
	}
	return &Demuxer{
		r:            r,
		sync:         sm,
		stream:       NewStreamManager(sm),
		streams:      make(map[int32]*streamState),
		durationWait: make(chan struct{}),
	}, nil
}

// ParseContainer pulls pages until every discovered logical stream's codec
// header parser reports headers_complete (spec §4.7). It blocks until the
// last header packet has been consumed.
func (d *Demuxer) ParseContainer() error {
	for {
		serial, pkt, err := d.stream.NextPacket()
		if err != nil {
			if _, ok := d.streams[d.primarySerial]; ok && d.havePrimary {
				break
			}
			return err
		}

		st, ok := d.streams[serial]
		if !ok {
			st = &streamState{info: core.StreamInfo{StreamID: serial, CodecType: "audio"}}
			d.streams[serial] = st
			d.order = append(d.order, serial)
		}

		if !st.complete {
			if st.headersSeen == 0 {
				info, perr := ParseCodecHeader(pkt.Data)
				if perr != nil {
					st.interesting = false
					st.complete = true
				} else {
					st.codec = info
					st.info.CodecName = info.CodecName
					st.info.SampleRate = info.SampleRate
					st.info.Channels = info.Channels
					st.info.BitsPerSample = info.BitsPerSample
					st.info.OpusPreSkip = info.OpusPreSkip
					st.info.SetupBytes = info.SetupBytes
					st.interesting = true
					st.headersNeeded = headerCountForCodec(info.CodecName)
					if info.CodecName == "flac" {
						st.headersNeeded = flacInOggHeaderCount(pkt.Data)
					}
				}
			}
			st.headersSeen++
			if st.headersSeen >= st.headersNeeded {
				st.complete = true
				if st.interesting && !d.havePrimary {
					d.primarySerial = serial
					d.havePrimary = true
				}
			}
		}

		if allHeadersComplete(d.streams) && d.havePrimary {
			break
		}
		if pkt.EOS {
			// A single-page stream (e.g. malformed or trivially short)
			// never gets past the first headers; stop waiting on it.
			st.complete = true
		}
	}

	if !d.havePrimary {
		return coreerr.New(coreerr.InvalidHeader, "ogg: no recognized primary stream found")
	}

	d.startDurationScan()
	return nil
}

func allHeadersComplete(streams map[int32]*streamState) bool {
	for _, st := range streams {
		if !st.complete {
			return false
		}
	}
	return true
}

// flacInOggHeaderCount reads the big-endian u16 header-count field from the
// 9-byte Ogg-FLAC wrapper (spec §4.6); a value of 0 is treated as "unknown,
// assume exactly the STREAMINFO packet".
func flacInOggHeaderCount(packet []byte) int {
	if len(packet) < 9 {
		return 1
	}
	n := int(packet[7])<<8 | int(packet[8])
	if n <= 0 {
		return 1
	}
	return n
}

// Streams returns the StreamInfo for every interesting logical stream, in
// first-seen order.
func (d *Demuxer) Streams() []core.StreamInfo {
	var out []core.StreamInfo
	for _, serial := range d.order {
		st := d.streams[serial]
		if st.interesting {
			out = append(out, st.info)
		}
	}
	return out
}

// ReadChunk reads the next packet belonging to the primary stream (spec
// §4.7's read_chunk with no argument).
func (d *Demuxer) ReadChunk() (core.MediaChunk, error) {
	return d.ReadChunkFrom(d.primarySerial)
}

// ReadChunkFrom reads the next packet belonging to the given stream serial.
func (d *Demuxer) ReadChunkFrom(serial int32) (core.MediaChunk, error) {
	for {
		gotSerial, pkt, err := d.stream.NextPacket()
		if err != nil {
			d.eof = true
			return core.MediaChunk{}, err
		}
		if gotSerial != serial {
			continue
		}
		if pkt.Granule != UnknownGranule {
			d.positionMs = granuleToMs(pkt.Granule, d.streams[serial].info)
		}
		if pkt.EOS && serial == d.primarySerial {
			d.eof = true
		}
		return core.MediaChunk{
			StreamID:    serial,
			Data:        pkt.Data,
			Position:    pkt.Granule,
			HasPosition: pkt.Granule != UnknownGranule,
		}, nil
	}
}

// IsEOF reports whether the primary stream has reached its EOS page.
func (d *Demuxer) IsEOF() bool { return d.eof }

// PositionMs returns the last observed granule position on the primary
// stream, converted to milliseconds.
func (d *Demuxer) PositionMs() int64 { return d.positionMs }

// DurationMs returns the cached duration computed by the background tail
// scan, blocking until it completes (spec §5 concession 1: either blocking
// or returning 0 is acceptable; this implementation blocks).
func (d *Demuxer) DurationMs() int64 {
	<-d.durationWait
	return d.durationMs.Load()
}

// startDurationScan launches the tail-granule scan in the background so
// ParseContainer returns without waiting for it; DurationMs blocks until
// the scan finishes (spec §5 concession 1).
func (d *Demuxer) startDurationScan() {
	go func() {
		defer close(d.durationWait)
		var g errgroup.Group
		var result int64
		g.Go(func() error {
			size, err := d.r.Size()
			if err != nil {
				return err
			}
			page, err := d.sync.ScanBackward(size, int64(d.primarySerial))
			if err != nil {
				return err
			}
			if page.Granule == UnknownGranule {
				return nil
			}
			result = granuleToMs(page.Granule, d.streams[d.primarySerial].info)
			return nil
		})
		if err := g.Wait(); err == nil {
			d.durationMs.Store(result)
		}
		d.durationDone.Store(true)
	}()
}

// granuleToMs converts a codec-specific granule position to milliseconds
// (spec §4.8 granule_to_time, scaled to ms).
func granuleToMs(granule int64, info core.StreamInfo) int64 {
	if granule == UnknownGranule || info.SampleRate == 0 {
		return 0
	}
	if info.CodecName == "opus" {
		adjusted := safeGranuleSub(granule, int64(info.OpusPreSkip))
		return (adjusted * 1000) / 48000
	}
	return (granule * 1000) / int64(info.SampleRate)
}

// safeGranuleSub subtracts b from a without wrapping, saturating at 0 and
// treating -1 (UnknownGranule) as non-arithmetic (spec §4.8).
func safeGranuleSub(a, b int64) int64 {
	if a == UnknownGranule {
		return UnknownGranule
	}
	r := a - b
	if r < 0 {
		return 0
	}
	return r
}
