// Package meta parses the FLAC metadata-block stream that follows the
// fLaC marker (spec §4.10), grounded on the teacher's own meta.go with the
// block set widened to the full RFC 9639 catalog plus Ogg-FLAC wrapper
// detection.
package meta

import (
	"encoding/binary"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// BlockType identifies a metadata block's 7-bit type field.
type BlockType uint8

const (
	TypeStreamInfo   BlockType = 0
	TypePadding      BlockType = 1
	TypeApplication  BlockType = 2
	TypeSeekTable    BlockType = 3
	TypeVorbisComment BlockType = 4
	TypeCueSheet     BlockType = 5
	TypePicture      BlockType = 6
	typeForbidden    BlockType = 127
)

// Size caps guarding against adversarial inputs (spec §4.10 last
// paragraph).
const (
	maxFieldSize    = 1 << 20 // 1 MiB
	maxFieldCount   = 10000
	maxPictureBytes = 10 << 20 // 10 MiB
	maxBlockLength  = 1 << 24  // the field is 24 bits wide; this is its ceiling
)

// StreamInfo holds the fixed per-stream parameters from the mandatory
// first metadata block (spec §3).
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32
	MaxFrameSize  uint32
	SampleRate    uint32
	Channels      uint8
	BitsPerSample uint8
	TotalSamples  uint64
	MD5           [16]byte
}

// SeekPoint is one entry of a SEEKTABLE block.
type SeekPoint struct {
	SampleNumber uint64 // 0xFFFFFFFFFFFFFFFF is a placeholder
	ByteOffset   uint64
	FrameSamples uint16
}

// VorbisComment is FLAC's tag block; unlike every other multi-byte field
// in FLAC it is little-endian (spec §4.10).
type VorbisComment struct {
	Vendor string
	Fields []string // "KEY=VALUE" pairs, unparsed beyond structural validation
}

// CueSheetTrack is one track entry of a CUESHEET block.
type CueSheetTrack struct {
	Offset       uint64
	Number       uint8
	ISRC         string
	Audio        bool
	PreEmphasis  bool
	Indices      []CueSheetIndex
}

// CueSheetIndex is one index point within a CueSheetTrack.
type CueSheetIndex struct {
	Offset uint64
	Number uint8
}

// CueSheet is the CUESHEET metadata block.
type CueSheet struct {
	CatalogNumber string
	LeadInSamples uint64
	IsCD          bool
	Tracks        []CueSheetTrack
}

// Picture is the PICTURE metadata block, passed through structurally
// without decoding the image payload (spec §4.10).
type Picture struct {
	Type        uint32
	MIME        string
	Description string
	Width       uint32
	Height      uint32
	Depth       uint32
	Colors      uint32
	Data        []byte
}

// Application is the APPLICATION metadata block.
type Application struct {
	ID   [4]byte
	Data []byte
}

// Chain is the parsed metadata-block stream for one FLAC logical stream.
type Chain struct {
	StreamInfo     StreamInfo
	SeekTable      []SeekPoint
	VorbisComment  *VorbisComment
	CueSheet       *CueSheet
	Pictures       []Picture
	Applications   []Application
	PaddingBytes   int
}

// blockHeader is the 32-bit header preceding every metadata block.
type blockHeader struct {
	last   bool
	typ    BlockType
	length uint32
}

func parseBlockHeader(b [4]byte) blockHeader {
	word := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return blockHeader{
		last:   word&0x80000000 != 0,
		typ:    BlockType((word >> 24) & 0x7F),
		length: word & 0x00FFFFFF,
	}
}

// ParseChain reads the fLaC marker (or the 9-byte Ogg-FLAC wrapper
// preceding it) and the full metadata-block stream from r, which must be
// positioned at the start of the stream.
func ParseChain(r ioutil.Reader) (Chain, error) {
	if err := skipOggFlacWrapper(r); err != nil {
		return Chain{}, err
	}

	marker := make([]byte, 4)
	if err := readFull(r, marker); err != nil {
		return Chain{}, coreerr.Wrap(coreerr.InvalidHeader, err, "flac: reading marker")
	}
	if string(marker) != "fLaC" {
		return Chain{}, coreerr.New(coreerr.InvalidHeader, "flac: missing fLaC marker")
	}

	var chain Chain
	first := true
	for {
		var hb [4]byte
		if err := readFull(r, hb[:]); err != nil {
			return Chain{}, coreerr.Wrap(coreerr.InvalidHeader, err, "flac: reading block header")
		}
		hdr := parseBlockHeader(hb)

		if hdr.typ == typeForbidden {
			return Chain{}, coreerr.New(coreerr.CorruptedData, "flac: forbidden metadata block type 127")
		}
		if hdr.length > maxBlockLength {
			return Chain{}, coreerr.New(coreerr.CorruptedData, "flac: metadata block length exceeds field width")
		}

		if first && hdr.typ != TypeStreamInfo {
			return Chain{}, coreerr.New(coreerr.InvalidHeader, "flac: first metadata block must be STREAMINFO")
		}
		first = false

		body := make([]byte, hdr.length)
		if err := readFull(r, body); err != nil {
			return Chain{}, coreerr.Wrap(coreerr.InvalidHeader, err, "flac: reading metadata block body")
		}

		switch hdr.typ {
		case TypeStreamInfo:
			si, err := parseStreamInfo(body)
			if err != nil {
				return Chain{}, err
			}
			chain.StreamInfo = si
		case TypePadding:
			chain.PaddingBytes += len(body)
		case TypeApplication:
			app, err := parseApplication(body)
			if err != nil {
				return Chain{}, err
			}
			chain.Applications = append(chain.Applications, app)
		case TypeSeekTable:
			pts, err := parseSeekTable(body)
			if err != nil {
				return Chain{}, err
			}
			chain.SeekTable = pts
		case TypeVorbisComment:
			vc, err := parseVorbisComment(body)
			if err != nil {
				return Chain{}, err
			}
			chain.VorbisComment = &vc
		case TypeCueSheet:
			cs, err := parseCueSheet(body)
			if err != nil {
				return Chain{}, err
			}
			chain.CueSheet = &cs
		case TypePicture:
			pic, err := parsePicture(body)
			if err != nil {
				return Chain{}, err
			}
			chain.Pictures = append(chain.Pictures, pic)
		default:
			// Unknown-but-not-forbidden block type: pass through silently.
		}

		if hdr.last {
			break
		}
	}
	return chain, nil
}

func parseStreamInfo(b []byte) (StreamInfo, error) {
	if len(b) != 34 {
		return StreamInfo{}, coreerr.New(coreerr.InvalidHeader, "flac: STREAMINFO must be 34 bytes")
	}
	si := StreamInfo{
		MinBlockSize: binary.BigEndian.Uint16(b[0:2]),
		MaxBlockSize: binary.BigEndian.Uint16(b[2:4]),
		MinFrameSize: uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6]),
		MaxFrameSize: uint32(b[7])<<16 | uint32(b[8])<<8 | uint32(b[9]),
	}
	si.SampleRate = uint32(b[10])<<12 | uint32(b[11])<<4 | uint32(b[12])>>4
	si.Channels = uint8((b[12]>>1)&0x07) + 1
	si.BitsPerSample = uint8((b[12]&0x01)<<4|(b[13]>>4)) + 1
	si.TotalSamples = (uint64(b[13]&0x0F) << 32) | uint64(binary.BigEndian.Uint32(b[14:18]))
	copy(si.MD5[:], b[18:34])

	if si.MinBlockSize > si.MaxBlockSize {
		return StreamInfo{}, coreerr.New(coreerr.InvalidHeader, "flac: min_block_size > max_block_size")
	}
	if si.MaxBlockSize > 65535 {
		return StreamInfo{}, coreerr.New(coreerr.InvalidHeader, "flac: max_block_size exceeds 65535")
	}
	if si.SampleRate == 0 {
		return StreamInfo{}, coreerr.New(coreerr.InvalidHeader, "flac: sample_rate must be nonzero")
	}
	if si.Channels < 1 || si.Channels > 8 {
		return StreamInfo{}, coreerr.New(coreerr.InvalidHeader, "flac: channels out of [1,8]")
	}
	if si.BitsPerSample < 4 || si.BitsPerSample > 32 {
		return StreamInfo{}, coreerr.New(coreerr.InvalidHeader, "flac: bits_per_sample out of [4,32]")
	}
	return si, nil
}

func parseApplication(b []byte) (Application, error) {
	if len(b) < 4 {
		return Application{}, coreerr.New(coreerr.CorruptedData, "flac: APPLICATION block too short")
	}
	var app Application
	copy(app.ID[:], b[0:4])
	app.Data = append([]byte(nil), b[4:]...)
	return app, nil
}

func parseSeekTable(b []byte) ([]SeekPoint, error) {
	if len(b)%18 != 0 {
		return nil, coreerr.New(coreerr.CorruptedData, "flac: SEEKTABLE length not a multiple of 18")
	}
	n := len(b) / 18
	points := make([]SeekPoint, 0, n)
	var lastSample uint64
	haveLast := false
	for i := 0; i < n; i++ {
		off := i * 18
		sp := SeekPoint{
			SampleNumber: binary.BigEndian.Uint64(b[off : off+8]),
			ByteOffset:   binary.BigEndian.Uint64(b[off+8 : off+16]),
			FrameSamples: binary.BigEndian.Uint16(b[off+16 : off+18]),
		}
		const placeholder = 0xFFFFFFFFFFFFFFFF
		if sp.SampleNumber != placeholder {
			if haveLast && sp.SampleNumber <= lastSample {
				return nil, coreerr.New(coreerr.CorruptedData, "flac: SEEKTABLE entries not strictly ascending")
			}
			lastSample = sp.SampleNumber
			haveLast = true
		}
		points = append(points, sp)
	}
	return points, nil
}

func parseVorbisComment(b []byte) (VorbisComment, error) {
	if len(b) < 4 {
		return VorbisComment{}, coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT too short")
	}
	pos := 0
	readLen := func() (uint32, error) {
		if pos+4 > len(b) {
			return 0, coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT truncated length")
		}
		v := binary.LittleEndian.Uint32(b[pos : pos+4])
		pos += 4
		if v > maxFieldSize {
			return 0, coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT field exceeds size cap")
		}
		return v, nil
	}

	vendorLen, err := readLen()
	if err != nil {
		return VorbisComment{}, err
	}
	if pos+int(vendorLen) > len(b) {
		return VorbisComment{}, coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT vendor string truncated")
	}
	vendor := string(b[pos : pos+int(vendorLen)])
	pos += int(vendorLen)

	count, err := readLen()
	if err != nil {
		return VorbisComment{}, err
	}
	if count > maxFieldCount {
		return VorbisComment{}, coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT field count exceeds cap")
	}

	fields := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		flen, err := readLen()
		if err != nil {
			return VorbisComment{}, err
		}
		if pos+int(flen) > len(b) {
			return VorbisComment{}, coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT field truncated")
		}
		field := string(b[pos : pos+int(flen)])
		pos += int(flen)
		if err := validateCommentField(field); err != nil {
			return VorbisComment{}, err
		}
		fields = append(fields, field)
	}

	return VorbisComment{Vendor: vendor, Fields: fields}, nil
}

func validateCommentField(field string) error {
	eq := -1
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c == '=' {
			eq = i
			break
		}
		if c < 0x20 || c > 0x7E {
			return coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT field name has non-printable byte")
		}
	}
	if eq < 0 {
		return coreerr.New(coreerr.CorruptedData, "flac: VORBIS_COMMENT field missing '='")
	}
	return nil
}

func parseCueSheet(b []byte) (CueSheet, error) {
	const fixedLen = 128 + 8 + 1 + 258 + 1
	if len(b) < fixedLen {
		return CueSheet{}, coreerr.New(coreerr.CorruptedData, "flac: CUESHEET too short")
	}
	catalog := trimNulls(b[0:128])
	leadIn := binary.BigEndian.Uint64(b[128:136])
	isCD := b[136]&0x80 != 0
	numTracks := int(b[128+8+1+258])
	pos := fixedLen

	tracks := make([]CueSheetTrack, 0, numTracks)
	for t := 0; t < numTracks; t++ {
		if pos+36 > len(b) {
			return CueSheet{}, coreerr.New(coreerr.CorruptedData, "flac: CUESHEET track truncated")
		}
		offset := binary.BigEndian.Uint64(b[pos : pos+8])
		number := b[pos+8]
		isrc := trimNulls(b[pos+9 : pos+9+12])
		flags := b[pos+9+12]
		numIndices := int(b[pos+35])
		pos += 36

		track := CueSheetTrack{
			Offset:      offset,
			Number:      number,
			ISRC:        isrc,
			Audio:       flags&0x80 == 0,
			PreEmphasis: flags&0x40 != 0,
		}
		for idx := 0; idx < numIndices; idx++ {
			if pos+12 > len(b) {
				return CueSheet{}, coreerr.New(coreerr.CorruptedData, "flac: CUESHEET index truncated")
			}
			track.Indices = append(track.Indices, CueSheetIndex{
				Offset: binary.BigEndian.Uint64(b[pos : pos+8]),
				Number: b[pos+8],
			})
			pos += 12
		}
		tracks = append(tracks, track)
	}

	return CueSheet{CatalogNumber: catalog, LeadInSamples: leadIn, IsCD: isCD, Tracks: tracks}, nil
}

func parsePicture(b []byte) (Picture, error) {
	pos := 0
	readU32 := func() (uint32, error) {
		if pos+4 > len(b) {
			return 0, coreerr.New(coreerr.CorruptedData, "flac: PICTURE truncated")
		}
		v := binary.BigEndian.Uint32(b[pos : pos+4])
		pos += 4
		return v, nil
	}
	readStr := func(maxLen uint32) (string, error) {
		n, err := readU32()
		if err != nil {
			return "", err
		}
		if n > maxLen {
			return "", coreerr.New(coreerr.CorruptedData, "flac: PICTURE string exceeds size cap")
		}
		if pos+int(n) > len(b) {
			return "", coreerr.New(coreerr.CorruptedData, "flac: PICTURE string truncated")
		}
		s := string(b[pos : pos+int(n)])
		pos += int(n)
		return s, nil
	}

	picType, err := readU32()
	if err != nil {
		return Picture{}, err
	}
	mime, err := readStr(maxFieldSize)
	if err != nil {
		return Picture{}, err
	}
	desc, err := readStr(maxFieldSize)
	if err != nil {
		return Picture{}, err
	}
	width, err := readU32()
	if err != nil {
		return Picture{}, err
	}
	height, err := readU32()
	if err != nil {
		return Picture{}, err
	}
	depth, err := readU32()
	if err != nil {
		return Picture{}, err
	}
	colors, err := readU32()
	if err != nil {
		return Picture{}, err
	}
	dataLen, err := readU32()
	if err != nil {
		return Picture{}, err
	}
	if dataLen > maxPictureBytes {
		return Picture{}, coreerr.New(coreerr.CorruptedData, "flac: PICTURE data exceeds size cap")
	}
	if pos+int(dataLen) > len(b) {
		return Picture{}, coreerr.New(coreerr.CorruptedData, "flac: PICTURE data truncated")
	}
	data := append([]byte(nil), b[pos:pos+int(dataLen)]...)

	return Picture{
		Type: picType, MIME: mime, Description: desc,
		Width: width, Height: height, Depth: depth, Colors: colors,
		Data: data,
	}, nil
}

func trimNulls(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// skipOggFlacWrapper consumes the 9-byte "\x7FFLAC" mapping header if it is
// present at the reader's current position, leaving it positioned at the
// "fLaC" marker either way (spec §4.10).
func skipOggFlacWrapper(r ioutil.Reader) error {
	peek := make([]byte, 5)
	if err := readFull(r, peek); err != nil {
		return coreerr.Wrap(coreerr.InvalidHeader, err, "flac: reading stream prefix")
	}
	if peek[0] == 0x7F && string(peek[1:5]) == "FLAC" {
		rest := make([]byte, 4) // major, minor, header-count(2)
		if err := readFull(r, rest); err != nil {
			return coreerr.Wrap(coreerr.InvalidHeader, err, "flac: reading ogg-flac wrapper tail")
		}
		return nil
	}
	// Not the Ogg-FLAC wrapper: rewind so ParseChain can read "fLaC" itself.
	if _, err := r.Seek(-5, ioutil.SeekCurrent); err != nil {
		return coreerr.Wrap(coreerr.InvalidHeader, err, "flac: rewinding stream prefix")
	}
	return nil
}

func readFull(r ioutil.Reader, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total >= len(buf) {
				return nil
			}
			return err
		}
		if n == 0 && total < len(buf) {
			return coreerr.New(coreerr.BufferUnderflow, "flac: short read")
		}
	}
	return nil
}
