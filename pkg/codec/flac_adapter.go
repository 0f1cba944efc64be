package codec

import (
	"github.com/segin/psymp3-sub003/pkg/flac"
)

// newFlacAdapter wraps the native FLAC decoder; its method set already
// satisfies Decoder exactly, so no shim logic is needed beyond
// construction.
func newFlacAdapter() Decoder {
	return flac.New()
}
