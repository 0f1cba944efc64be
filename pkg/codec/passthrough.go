package codec

import (
	"github.com/segin/psymp3-sub003/pkg/core"
)

// passthroughCodec routes Vorbis/Opus packets without decoding them
// (spec §4.17: "the core merely routes such streams and trusts an
// external decoder"). Decode always returns an empty AudioFrame
// regardless of chunk contents; decoding the packet is out of scope
// here and left to an external decoder operating on chunk.Data.
type passthroughCodec struct {
	name string
	info core.StreamInfo
}

func (c *passthroughCodec) Initialize(info core.StreamInfo) error {
	c.info = info
	return nil
}

func (c *passthroughCodec) Decode(chunk core.MediaChunk) (core.AudioFrame, error) {
	// Always empty: no samples are ever produced here, so there is no
	// decoded sample position to stamp a timestamp against.
	return core.AudioFrame{}, nil
}

func (c *passthroughCodec) Flush() (core.AudioFrame, error) { return core.AudioFrame{}, nil }
func (c *passthroughCodec) Reset()                          {}
