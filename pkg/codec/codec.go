// Package codec implements the codec factory and the built-in PCM-family
// converters and passthrough adaptors (spec §4.17).
package codec

import (
	"sync"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
)

// Decoder is the generic per-stream codec contract every built-in
// implements (spec §4.16's "public contract matches the generic codec
// interface").
type Decoder interface {
	Initialize(info core.StreamInfo) error
	Decode(chunk core.MediaChunk) (core.AudioFrame, error)
	Flush() (core.AudioFrame, error)
	Reset()
}

// Constructor builds a fresh Decoder instance for one stream.
type Constructor func() Decoder

var (
	mu           sync.Mutex
	constructors map[string]Constructor
	registerOne  sync.Once
)

// Register adds a codec constructor under a lowercase name. Safe to call
// concurrently; intended for package init (spec §9).
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if constructors == nil {
		constructors = make(map[string]Constructor)
	}
	constructors[name] = ctor
}

// Create instantiates the codec registered under name.
func Create(name string) (Decoder, error) {
	mu.Lock()
	ctor, ok := constructors[name]
	mu.Unlock()
	if !ok {
		return nil, coreerr.Newf(coreerr.UnsupportedFeature, "codec: no constructor registered for %q", name)
	}
	return ctor(), nil
}

func init() {
	registerOne.Do(registerBuiltins)
}

func registerBuiltins() {
	Register("flac", func() Decoder { return newFlacAdapter() })
	Register("pcm", func() Decoder { return &pcmCodec{} })
	Register("alaw", func() Decoder { return &companderCodec{table: &alawDecodeTable} })
	Register("mulaw", func() Decoder { return &companderCodec{table: &mulawDecodeTable} })
	Register("vorbis", func() Decoder { return &passthroughCodec{name: "vorbis"} })
	Register("opus", func() Decoder { return &passthroughCodec{name: "opus"} })
}
