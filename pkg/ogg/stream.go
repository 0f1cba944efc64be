package ogg

// Packet is one reassembled Ogg packet, tagged with the granule position of
// the page it completed on (or UnknownGranule if that page carried none).
type Packet struct {
	Data        []byte
	Granule     int64
	BOS         bool
	EOS         bool
	PageOffset  int64
}

// logicalStream tracks in-progress packet reassembly for one serial number
// (spec §4.5).
type logicalStream struct {
	serial     int32
	partial    []byte
	lastSeq    uint32
	haveSeq    bool
	bos        bool
	eos        bool
	granule    int64
}

// pendingPacket is a fully reassembled packet that completed on a page
// alongside other packets not yet returned to the caller.
type pendingPacket struct {
	serial int32
	pkt    Packet
}

// StreamManager demultiplexes pages from a SyncManager into per-serial
// packet streams, handling continuation across page boundaries (spec
// §4.5). A single Ogg file may interleave several logical streams
// (chained or multiplexed); StreamManager keeps one reassembly buffer per
// serial number encountered.
type StreamManager struct {
	sync    *SyncManager
	streams map[int32]*logicalStream
	order   []int32 // serials in first-seen order, for deterministic iteration
	pending []pendingPacket // packets from the most recent page not yet drained
}

// NewStreamManager builds a StreamManager reading pages from sm.
func NewStreamManager(sm *SyncManager) *StreamManager {
	return &StreamManager{sync: sm, streams: make(map[int32]*logicalStream)}
}

// NextPacket reads pages until it can return a complete packet for some
// logical stream, or an error (including io.EOF-equivalent at end of
// stream). It returns the packet together with the serial number it
// belongs to.
func (m *StreamManager) NextPacket() (int32, Packet, error) {
	if len(m.pending) > 0 {
		p := m.pending[0]
		m.pending = m.pending[1:]
		return p.serial, p.pkt, nil
	}

	for {
		page, skipped, err := m.sync.NextPage()
		if err != nil {
			return 0, Packet{}, err
		}
		_ = skipped

		ls, ok := m.streams[page.Serial]
		if !ok {
			ls = &logicalStream{serial: page.Serial, granule: UnknownGranule}
			m.streams[page.Serial] = ls
			m.order = append(m.order, page.Serial)
		}

		if page.BOS {
			ls.bos = true
		}
		if page.EOS {
			ls.eos = true
		}

		if ls.haveSeq && page.Sequence != ls.lastSeq+1 {
			// A sequence gap: drop whatever partial packet we were
			// accumulating, since its continuation page was lost.
			ls.partial = nil
		}
		ls.lastSeq = page.Sequence
		ls.haveSeq = true

		if !page.Continuation {
			ls.partial = nil
		}
		// Continuation page with nothing to continue: the prior page
		// that should have started this packet was lost or never
		// arrived. Discard this page's first segment run silently.
		dropFirst := page.Continuation && ls.partial == nil

		sizes, needsContinuation := page.packetSizes()
		offset := 0
		var completed []Packet
		for i, sz := range sizes {
			end := offset + sz
			chunk := page.Data[offset:end]
			offset = end
			if i == 0 && dropFirst {
				continue
			}

			isFirstInPage := i == 0
			var full []byte
			if isFirstInPage && page.Continuation && ls.partial != nil {
				full = append(ls.partial, chunk...)
				ls.partial = nil
			} else {
				full = chunk
			}

			isLastPacketInPage := i == len(sizes)-1
			if isLastPacketInPage && needsContinuation {
				// This packet continues onto a later page; stash it and
				// keep reading pages.
				ls.partial = append(append([]byte(nil), full...))
				continue
			}

			completed = append(completed, Packet{
				Data:       full,
				Granule:    page.Granule,
				BOS:        page.BOS && isFirstInPage,
				EOS:        page.EOS && isLastPacketInPage,
				PageOffset: m.sync.Offset(),
			})
		}

		if len(completed) > 0 {
			// A single page can carry several complete packets (spec
			// §4.5); return the first now and queue the rest so later
			// calls drain them before any new page is read.
			for _, pkt := range completed[1:] {
				m.pending = append(m.pending, pendingPacket{serial: page.Serial, pkt: pkt})
			}
			return page.Serial, completed[0], nil
		}

		if len(sizes) == 0 && needsContinuation {
			// A page consisting solely of a continuation of an
			// in-progress packet: append all data and keep waiting.
			if !dropFirst {
				ls.partial = append(ls.partial, page.Data...)
			}
			continue
		}
		if len(sizes) == 0 && len(page.Data) == 0 {
			// Empty page (rare but legal): keep scanning.
			continue
		}
	}
}

// Serials returns the set of logical stream serials observed so far, in
// first-seen order.
func (m *StreamManager) Serials() []int32 {
	out := make([]int32, len(m.order))
	copy(out, m.order)
	return out
}

// IsEOS reports whether the named logical stream has seen its end-of-stream
// page.
func (m *StreamManager) IsEOS(serial int32) bool {
	ls, ok := m.streams[serial]
	return ok && ls.eos
}

// StreamCount returns the number of distinct logical streams discovered.
func (m *StreamManager) StreamCount() int { return len(m.streams) }
