// Package container implements the demuxer registration and routing layer
// supplementing spec.md's distillation (spec §6; grounded on
// original_source's DemuxerFactory/MediaFactory split): it maps a probed
// format id to the demuxer that understands it, the same way pkg/codec
// maps a codec name to a decoder constructor.
package container

import (
	"sync"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
	"github.com/segin/psymp3-sub003/pkg/flac"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
	"github.com/segin/psymp3-sub003/pkg/ogg"
	"github.com/segin/psymp3-sub003/pkg/probe"
)

// Demuxer is the contract every registered container implementation
// satisfies (spec §4.7's public contract, generalized beyond Ogg).
type Demuxer interface {
	ParseContainer() error
	Streams() []core.StreamInfo
	ReadChunk() (core.MediaChunk, error)
	IsEOF() bool
	DurationMs() int64
	SeekTo(targetMs int64) error
}

// Constructor builds a Demuxer over an already-positioned reader.
type Constructor func(r ioutil.Reader) Demuxer

var (
	mu           sync.Mutex
	constructors map[string]Constructor
	registerOne  sync.Once
)

// Register adds a demuxer constructor under a format id. Safe to call
// concurrently; intended for package init (spec §9).
func Register(formatID string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if constructors == nil {
		constructors = make(map[string]Constructor)
	}
	constructors[formatID] = ctor
}

func init() {
	registerOne.Do(func() {
		Register("flac", func(r ioutil.Reader) Demuxer { return flac.NewNativeDemuxer(r) })
		Register("ogg", func(r ioutil.Reader) Demuxer {
			d, err := ogg.NewDemuxer(r)
			if err != nil {
				return erroredDemuxer{err: err}
			}
			return d
		})
	})
}

// erroredDemuxer lets a constructor that failed before any demuxing began
// (e.g. NewDemuxer's initial Tell() failing) still satisfy Demuxer,
// surfacing the error from ParseContainer rather than from Register/Open
// itself.
type erroredDemuxer struct{ err error }

func (e erroredDemuxer) ParseContainer() error              { return e.err }
func (e erroredDemuxer) Streams() []core.StreamInfo          { return nil }
func (e erroredDemuxer) ReadChunk() (core.MediaChunk, error) { return core.MediaChunk{}, e.err }
func (e erroredDemuxer) IsEOF() bool                         { return true }
func (e erroredDemuxer) DurationMs() int64                   { return 0 }
func (e erroredDemuxer) SeekTo(int64) error                  { return e.err }

// Open probes r for its container format and returns the matching
// demuxer, already positioned past any leading ID3v2 tag the probe
// skipped (spec §4.9 step 2 / the original's MediaFactory.cpp behavior).
func Open(r ioutil.Reader, path string) (Demuxer, error) {
	result, err := probe.Identify(r, path)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	ctor, ok := constructors[result.FormatID]
	mu.Unlock()
	if !ok {
		return nil, coreerr.Newf(coreerr.UnsupportedFeature, "container: no demuxer registered for format %q", result.FormatID)
	}

	if _, err := r.Seek(result.ID3v2Skipped, ioutil.SeekStart); err != nil {
		return nil, err
	}
	return ctor(r), nil
}
