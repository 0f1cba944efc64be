package ogg

import (
	"math"

	"github.com/segin/psymp3-sub003/internal/coreerr"
	"github.com/segin/psymp3-sub003/pkg/core"
	"github.com/segin/psymp3-sub003/pkg/ioutil"
)

// minSeekWindow is the bisection termination threshold from spec §4.8:
// the search stops narrowing once the candidate byte range is smaller
// than this.
const minSeekWindow = 8 * 1024

// safeGranuleAdd adds b to a, saturating on int64 overflow and treating -1
// (UnknownGranule) as non-arithmetic (spec §4.8).
func safeGranuleAdd(a, b int64) int64 {
	if a == UnknownGranule || b == UnknownGranule {
		return UnknownGranule
	}
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// SeekTo implements spec §4.8's bisection seek: binary-search the byte
// range for a page on the primary stream whose granule is the greatest
// value <= the target. After positioning, every per-stream reassembly
// buffer is reset.
func (d *Demuxer) SeekTo(targetMs int64) error {
	if !d.havePrimary {
		return coreerr.New(coreerr.InvalidHeader, "ogg: seek before parse_container")
	}
	size, err := d.r.Size()
	if err != nil {
		return err
	}

	info := d.streams[d.primarySerial].info
	targetGranule := msToGranule(targetMs, info)

	lo, hi := int64(0), size
	var best Page
	haveBest := false

	for hi-lo > minSeekWindow {
		mid := lo + (hi-lo)/2
		if err := d.sync.Reset(mid); err != nil {
			return err
		}

		page, found, err := nextPrimaryPage(d.sync, d.primarySerial)
		if err != nil || !found {
			hi = mid
			continue
		}

		if page.Granule == UnknownGranule {
			lo = mid
			continue
		}

		if page.Granule <= targetGranule {
			best = page
			haveBest = true
			lo = mid
		} else {
			hi = mid
		}
	}

	start := int64(0)
	if haveBest {
		start = lo
	}
	if err := d.sync.Reset(start); err != nil {
		return err
	}
	// Scan forward from the bisection floor to just past the last primary
	// page whose granule does not exceed the target.
	resume := start
	for {
		page, _, err := d.sync.NextPage()
		if err != nil || (page.Serial == d.primarySerial && page.Granule > targetGranule) {
			break
		}
		if page.Serial == d.primarySerial && page.Granule != UnknownGranule {
			resume = d.sync.Offset()
		}
	}
	if err := d.sync.Reset(resume); err != nil {
		return err
	}
	_ = best

	d.stream = NewStreamManager(d.sync)
	d.positionMs = 0
	d.eof = false
	return nil
}

// nextPrimaryPage scans forward from the sync manager's current position
// for the next page belonging to serial, skipping any unrelated logical
// streams interleaved with it.
func nextPrimaryPage(sm *SyncManager, serial int32) (Page, bool, error) {
	const maxProbe = 64
	for i := 0; i < maxProbe; i++ {
		page, _, err := sm.NextPage()
		if err != nil {
			if ioutil.IsTemporary(err) {
				return Page{}, false, nil
			}
			return Page{}, false, nil
		}
		if page.Serial == serial {
			return page, true, nil
		}
	}
	return Page{}, false, nil
}

// msToGranule inverts granuleToMs for the primary stream's codec (spec
// §4.8).
func msToGranule(ms int64, info core.StreamInfo) int64 {
	if info.SampleRate == 0 {
		return 0
	}
	granule := (ms * int64(info.SampleRate)) / 1000
	if info.CodecName == "opus" {
		granule = safeGranuleAdd(granule, int64(info.OpusPreSkip))
	}
	return granule
}
