// Package trace implements the control-flow trace buffer: a two-tier
// hot/cold ring that records taken branches with full bank and stack
// context, collapsing repeated loop iterations into a single record with
// an incrementing loop_count rather than growing without bound.
//
// Grounded on pkg/tas's hybrid recorder (snapshot/event buffer split,
// single-mutex producer/consumer discipline, a textual save format)
// generalized from TAS input recording to control-flow event recording.
package trace

import (
	"fmt"
	"strings"
	"sync"
)

// EventType enumerates the control-flow instruction classes the buffer
// records; only taken branches are ever inserted.
type EventType byte

const (
	JP EventType = iota
	JR
	CALL
	RET
	RETI
	RST
	DJNZ
)

func (t EventType) String() string {
	switch t {
	case JP:
		return "JP"
	case JR:
		return "JR"
	case CALL:
		return "CALL"
	case RET:
		return "RET"
	case RETI:
		return "RETI"
	case RST:
		return "RST"
	case DJNZ:
		return "DJNZ"
	default:
		return "?"
	}
}

// BankInfo captures one of the four 16 KiB banks' state at the moment a
// control-flow event was recorded.
type BankInfo struct {
	IsROM bool
	Page  int
}

// Event is one control-flow record: a taken branch plus enough context
// to identify it and to show the call/return stack around it.
type Event struct {
	M1PC        uint16
	TargetAddr  uint16
	OpcodeBytes []byte
	Flags       byte
	Type        EventType
	Banks       [4]BankInfo
	SP          uint16
	StackTop    [3]uint16
	LoopCount   int

	lastSeenFrame uint64
}

// equivalent reports whether a and b would collapse into the same
// record per the data-model's equivalence rule: m1_pc, target_addr,
// type, banks and opcode_bytes must all match.
func equivalent(a, b *Event) bool {
	if a.M1PC != b.M1PC || a.TargetAddr != b.TargetAddr || a.Type != b.Type {
		return false
	}
	if a.Banks != b.Banks {
		return false
	}
	if len(a.OpcodeBytes) != len(b.OpcodeBytes) {
		return false
	}
	for i := range a.OpcodeBytes {
		if a.OpcodeBytes[i] != b.OpcodeBytes[i] {
			return false
		}
	}
	return true
}

// Params configures the buffer's capacities and promotion/eviction
// thresholds. The zero value is replaced by DefaultParams.
type Params struct {
	ColdCapacity    int
	HotCapacity     int
	HotThreshold    int // an inserted event with loop_count above this goes straight to hot
	HotFrameTimeout uint64
}

// DefaultParams matches the sizes spec.md calls out as a reasonable,
// non-normative starting point.
var DefaultParams = Params{
	ColdCapacity:    1 << 20,
	HotCapacity:     64,
	HotThreshold:    8,
	HotFrameTimeout: 60,
}

func (p Params) normalized() Params {
	if p.ColdCapacity <= 0 {
		p.ColdCapacity = DefaultParams.ColdCapacity
	}
	if p.HotCapacity <= 0 {
		p.HotCapacity = DefaultParams.HotCapacity
	}
	if p.HotThreshold <= 0 {
		p.HotThreshold = DefaultParams.HotThreshold
	}
	if p.HotFrameTimeout == 0 {
		p.HotFrameTimeout = DefaultParams.HotFrameTimeout
	}
	return p
}

// Buffer is the two-tier control-flow trace ring. All operations hold
// mu: producers are normally the emulation thread, consumers are
// UI/debug threads (spec.md §5).
type Buffer struct {
	mu     sync.Mutex
	params Params

	cold     []Event
	coldHead int // index of the oldest entry once cold is full
	coldFull bool

	hot []Event

	frame uint64
}

// New creates a Buffer with the given parameters. Passing the zero
// Params uses DefaultParams.
func New(params Params) *Buffer {
	p := params.normalized()
	return &Buffer{
		params: p,
		cold:   make([]Event, 0, p.ColdCapacity),
		hot:    make([]Event, 0, p.HotCapacity),
	}
}

// SetFrame records the current frame number, used for hot-buffer
// eviction timeouts; callers update it once per FrameCycle.
func (b *Buffer) SetFrame(frame uint64) {
	b.mu.Lock()
	b.frame = frame
	b.mu.Unlock()
}

// Insert applies the four-step insertion algorithm from spec.md §4.7:
// hot-buffer match, hot promotion, cold-tail match, or cold append.
func (b *Buffer) Insert(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ev.lastSeenFrame = b.frame
	if ev.LoopCount == 0 {
		ev.LoopCount = 1
	}

	for i := range b.hot {
		if equivalent(&b.hot[i], &ev) {
			b.hot[i].LoopCount += ev.LoopCount
			b.hot[i].lastSeenFrame = b.frame
			return
		}
	}

	if ev.LoopCount > b.params.HotThreshold {
		b.promoteToHot(ev)
		return
	}

	if n := len(b.cold); n > 0 {
		last := &b.cold[coldLogicalIndex(b, n-1)]
		if equivalent(last, &ev) {
			last.LoopCount += ev.LoopCount
			return
		}
	}

	b.appendCold(ev)
}

// coldLogicalIndex maps a logical (insertion-order) index within the
// currently-held cold entries to its physical slot, accounting for
// wraparound once the ring is full.
func coldLogicalIndex(b *Buffer, logical int) int {
	if !b.coldFull {
		return logical
	}
	return (b.coldHead + logical) % len(b.cold)
}

func (b *Buffer) appendCold(ev Event) {
	limit := b.params.ColdCapacity
	if len(b.cold) < limit {
		b.cold = append(b.cold, ev)
		return
	}
	b.coldFull = true
	b.cold[b.coldHead] = ev
	b.coldHead = (b.coldHead + 1) % limit
}

// promoteToHot inserts ev into the hot buffer, evicting the oldest
// expired entry if present, else the least-recently-seen entry if full.
func (b *Buffer) promoteToHot(ev Event) {
	if len(b.hot) < b.params.HotCapacity {
		b.hot = append(b.hot, ev)
		return
	}

	evict := 0
	oldest := b.hot[0].lastSeenFrame
	expired := b.frame-b.hot[0].lastSeenFrame > b.params.HotFrameTimeout
	for i := 1; i < len(b.hot); i++ {
		isExpired := b.frame-b.hot[i].lastSeenFrame > b.params.HotFrameTimeout
		if isExpired && !expired {
			evict, oldest, expired = i, b.hot[i].lastSeenFrame, true
			continue
		}
		if isExpired == expired && b.hot[i].lastSeenFrame < oldest {
			evict, oldest = i, b.hot[i].lastSeenFrame
		}
	}
	b.hot[evict] = ev
}

// EvictExpiredHot scans the hot buffer for entries not seen within the
// configured timeout and removes them, per the frame-boundary step of
// §4.7. Call once per frame.
func (b *Buffer) EvictExpiredHot() {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.hot[:0]
	for _, ev := range b.hot {
		if b.frame-ev.lastSeenFrame <= b.params.HotFrameTimeout {
			kept = append(kept, ev)
		}
	}
	b.hot = kept
}

// LatestCold returns up to n of the most recently inserted cold events,
// newest last.
func (b *Buffer) LatestCold(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := len(b.cold)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = b.cold[coldLogicalIndex(b, total-n+i)]
	}
	return out
}

// LatestHot returns up to n hot-buffer events, the last n in slot order. A
// promotion into a full hot buffer reuses the evicted entry's slot, so
// slot order is not always insertion order.
func (b *Buffer) LatestHot(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.hot) {
		n = len(b.hot)
	}
	out := make([]Event, n)
	copy(out, b.hot[len(b.hot)-n:])
	return out
}

// AllCold returns every cold event currently retained, oldest first.
func (b *Buffer) AllCold() []Event {
	return b.LatestCold(-1)
}

// SaveText renders every cold event (oldest first) in the YAML-style
// record format spec.md §6 describes: two leading spaces, one record
// per event.
func (b *Buffer) SaveText() string {
	events := b.AllCold()
	var sb strings.Builder
	for idx, ev := range events {
		writeRecord(&sb, idx, ev)
	}
	return sb.String()
}

func writeRecord(sb *strings.Builder, idx int, ev Event) {
	fmt.Fprintf(sb, "  - idx: %d\n", idx)
	fmt.Fprintf(sb, "    m1_pc: %04X\n", ev.M1PC)
	fmt.Fprintf(sb, "    type: %d\n", int(ev.Type))
	fmt.Fprintf(sb, "    target: %04X\n", ev.TargetAddr)
	fmt.Fprintf(sb, "    flags: %02X\n", ev.Flags)
	if ev.LoopCount > 1 {
		fmt.Fprintf(sb, "    loop_count: %d\n", ev.LoopCount)
	}
	fmt.Fprintf(sb, "    sp: %04X\n", ev.SP)

	sb.WriteString("    opcodes: [")
	for i, ob := range ev.OpcodeBytes {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%02X", ob)
	}
	sb.WriteString("]\n")

	sb.WriteString("    banks:\n")
	for _, bk := range ev.Banks {
		fmt.Fprintf(sb, "      - {is_rom: %t, page: %d}\n", bk.IsROM, bk.Page)
	}

	sb.WriteString("    stack_top: [")
	for i, w := range ev.StackTop {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%04X", w)
	}
	sb.WriteString("]\n")
}
