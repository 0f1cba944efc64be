package probe

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// headerProbeSize is how many bytes are read from offset 0 for the initial
// signature match (spec §4.9 step 1).
const headerProbeSize = 128

// oggInnerScanSize is how far past an Ogg page the probe looks for an inner
// codec signature (spec §4.9 step 4).
const oggInnerScanSize = 256

type candidate struct {
	formatID   string
	priority   Priority
	confidence int
}

// Result is the outcome of a successful probe: the resolved container
// format id, and — for Ogg containers — the inner codec hint discovered by
// the secondary scan.
type Result struct {
	FormatID      string
	OggCodecHint  string
	ID3v2Skipped  int64
}

// Identify runs the probe algorithm described in spec §4.9 against r
// (already positioned anywhere; Identify seeks to 0 itself) and the
// optional file path (used only for the extension fallback).
func Identify(r ioutil.Reader, path string) (Result, error) {
	if _, err := r.Seek(0, ioutil.SeekStart); err != nil {
		return Result{}, errors.Wrap(err, "probe: seeking to start")
	}

	header := make([]byte, headerProbeSize)
	n, err := readFull(r, header)
	if err != nil && err != io.EOF {
		return Result{}, errors.Wrap(err, "probe: reading header")
	}
	header = header[:n]

	var id3Skipped int64
	if bytes.HasPrefix(header, []byte("ID3")) {
		if _, serr := r.Seek(0, ioutil.SeekStart); serr != nil {
			return Result{}, errors.Wrap(serr, "probe: seeking back for ID3v2 skip")
		}
		skip, err := SkipID3v2(r)
		if err == nil {
			id3Skipped = skip
			post := make([]byte, 64)
			pn, _ := readFull(r, post)
			post = post[:pn]
			switch {
			case bytes.HasPrefix(post, []byte("fLaC")):
				return Result{FormatID: "flac", ID3v2Skipped: id3Skipped}, nil
			case bytes.HasPrefix(post, []byte("OggS")):
				hint := scanOggInnerCodec(r)
				return Result{FormatID: "ogg", OggCodecHint: hint, ID3v2Skipped: id3Skipped}, nil
			case isMPEGSync(post):
				return Result{FormatID: "mp3", ID3v2Skipped: id3Skipped}, nil
			}
			// Inconclusive post-ID3 header: fall through to normal matching
			// using the original header buffer (which still contains the ID3
			// tag bytes, matched by the "mp3"/ID3 signature below).
		}
	}

	var candidates []candidate
	for _, sig := range snapshotSignatures() {
		if matchSignature(header, sig) {
			candidates = append(candidates, candidate{formatID: sig.FormatID, priority: sig.Priority, confidence: 1})
		}
	}

	if containsOgg(candidates) {
		if _, serr := r.Seek(0, ioutil.SeekStart); serr == nil {
			hint := scanOggInnerCodec(r)
			if hint != "" {
				for i := range candidates {
					if candidates[i].formatID == "ogg" {
						candidates[i].confidence = 2
					}
				}
				return bestCandidate(candidates, path, hint)
			}
		}
	}

	return bestCandidate(candidates, path, "")
}

func containsOgg(cands []candidate) bool {
	for _, c := range cands {
		if c.formatID == "ogg" {
			return true
		}
	}
	return false
}

func bestCandidate(cands []candidate, path, oggHint string) (Result, error) {
	if len(cands) == 0 {
		if path != "" {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if id, ok := lookupExtension(ext); ok {
				return Result{FormatID: id}, nil
			}
		}
		return Result{}, errors.New("probe: no signature or extension match")
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.priority < best.priority || (c.priority == best.priority && c.confidence > best.confidence) {
			best = c
		}
	}
	return Result{FormatID: best.formatID, OggCodecHint: oggHint}, nil
}

func matchSignature(header []byte, sig Signature) bool {
	end := sig.Offset + len(sig.Pattern)
	if end > len(header) {
		return false
	}
	return bytes.Equal(header[sig.Offset:end], sig.Pattern)
}

// isMPEGSync reports whether data begins with a valid MPEG audio frame sync
// word (11 set bits, per spec §4.9 step 2).
func isMPEGSync(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// scanOggInnerCodec scans forward up to oggInnerScanSize bytes for a known
// BOS packet signature (spec §4.9 step 4). r must be positioned at or
// before the start of the Ogg page; this function restores no position
// itself — callers that need the original offset back must seek first.
func scanOggInnerCodec(r ioutil.Reader) string {
	buf := make([]byte, oggInnerScanSize)
	n, _ := readFull(r, buf)
	buf = buf[:n]

	switch {
	case bytes.Contains(buf, []byte("OpusHead")):
		return "opus"
	case bytes.Contains(buf, []byte("\x01vorbis")):
		return "vorbis"
	case bytes.Contains(buf, []byte("\x7FFLAC")):
		return "flac"
	case bytes.Contains(buf, []byte("Speex   ")):
		return "speex"
	default:
		return ""
	}
}

func readFull(r ioutil.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
