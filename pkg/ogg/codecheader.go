package ogg

import (
	"bytes"
	"encoding/binary"

	"github.com/segin/psymp3-sub003/internal/coreerr"
)

// CodecInfo is what the codec header parser extracts from a logical
// stream's first (BOS) packet (spec §4.6): enough to populate a
// core.StreamInfo without decoding audio.
type CodecInfo struct {
	CodecName     string
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	OpusPreSkip   uint16 // Opus ID header pre-skip (RFC 7845 §5.1); 0 for other codecs
	SetupBytes    []byte // the raw BOS packet, kept for the codec layer
}

// ParseCodecHeader inspects a BOS packet and identifies its codec (spec
// §4.6). It recognizes Vorbis, Opus, FLAC-in-Ogg, and Speex identification
// headers; anything else yields UNSUPPORTED_FEATURE, which is permanent
// for that logical stream (per coreerr's severity convention).
func ParseCodecHeader(packet []byte) (CodecInfo, error) {
	switch {
	case bytes.HasPrefix(packet, []byte("\x01vorbis")):
		return parseVorbisHeader(packet)
	case bytes.HasPrefix(packet, []byte("OpusHead")):
		return parseOpusHeader(packet)
	case bytes.HasPrefix(packet, []byte("\x7FFLAC")):
		return parseFlacInOggHeader(packet)
	case bytes.HasPrefix(packet, []byte("Speex   ")):
		return parseSpeexHeader(packet)
	default:
		return CodecInfo{}, coreerr.New(coreerr.UnsupportedFeature, "ogg: unrecognized codec identification header")
	}
}

// parseVorbisHeader decodes the Vorbis identification header fields needed
// for routing: version, channels, sample rate (grounded on jfreymuth/vorbis
// header.go's field layout).
func parseVorbisHeader(packet []byte) (CodecInfo, error) {
	if len(packet) < 30 {
		return CodecInfo{}, coreerr.New(coreerr.InvalidHeader, "ogg: vorbis identification header too short")
	}
	version := binary.LittleEndian.Uint32(packet[7:11])
	if version != 0 {
		return CodecInfo{}, coreerr.New(coreerr.UnsupportedFeature, "ogg: unsupported vorbis header version")
	}
	channels := packet[11]
	sampleRate := binary.LittleEndian.Uint32(packet[12:16])
	return CodecInfo{
		CodecName:     "vorbis",
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: 16,
		SetupBytes:    append([]byte(nil), packet...),
	}, nil
}

// parseOpusHeader decodes the Opus identification header (RFC 7845 §5.1).
// Opus always operates internally at 48kHz regardless of the "input sample
// rate" field, which is informational only. The pre-skip field (bytes
// 10-11, little-endian) is the number of samples of decoder startup delay
// to discard from the start of the stream and must be carried through to
// granule/time conversion.
func parseOpusHeader(packet []byte) (CodecInfo, error) {
	if len(packet) < 19 {
		return CodecInfo{}, coreerr.New(coreerr.InvalidHeader, "ogg: opus identification header too short")
	}
	channels := packet[9]
	preSkip := binary.LittleEndian.Uint16(packet[10:12])
	return CodecInfo{
		CodecName:     "opus",
		SampleRate:    48000,
		Channels:      channels,
		BitsPerSample: 16,
		OpusPreSkip:   preSkip,
		SetupBytes:    append([]byte(nil), packet...),
	}, nil
}

// parseFlacInOggHeader decodes the 9-byte Ogg-FLAC mapping wrapper and the
// embedded STREAMINFO block that follows it (grounded on the FLAC-in-Ogg
// mapping referenced by spec §4.6 and RFC 9639 appendix notes on Ogg
// encapsulation).
func parseFlacInOggHeader(packet []byte) (CodecInfo, error) {
	// Layout: 0x7F 'FLAC' major minor numHeaderPackets(2) 'fLaC' <STREAMINFO block>
	const wrapperLen = 9
	if len(packet) < wrapperLen+4+4+34 {
		return CodecInfo{}, coreerr.New(coreerr.InvalidHeader, "ogg: flac-in-ogg header too short")
	}
	if string(packet[wrapperLen:wrapperLen+4]) != "fLaC" {
		return CodecInfo{}, coreerr.New(coreerr.InvalidHeader, "ogg: missing embedded fLaC marker")
	}
	si := packet[wrapperLen+4+4:] // skip 'fLaC' + metadata block header
	if len(si) < 34 {
		return CodecInfo{}, coreerr.New(coreerr.InvalidHeader, "ogg: truncated embedded STREAMINFO")
	}
	sampleRate := uint32(si[10])<<12 | uint32(si[11])<<4 | uint32(si[12])>>4
	channels := uint8((si[12]>>1)&0x07) + 1
	bps := uint8((si[12]&0x01)<<4|(si[13]>>4)) + 1
	return CodecInfo{
		CodecName:     "flac",
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bps,
		SetupBytes:    append([]byte(nil), packet...),
	}, nil
}

func parseSpeexHeader(packet []byte) (CodecInfo, error) {
	if len(packet) < 68 {
		return CodecInfo{}, coreerr.New(coreerr.InvalidHeader, "ogg: speex header too short")
	}
	sampleRate := binary.LittleEndian.Uint32(packet[36:40])
	channels := binary.LittleEndian.Uint32(packet[48:52])
	return CodecInfo{
		CodecName:     "speex",
		SampleRate:    sampleRate,
		Channels:      uint8(channels),
		BitsPerSample: 16,
		SetupBytes:    append([]byte(nil), packet...),
	}, nil
}
