package trace

import (
	"strings"
	"testing"
)

func sampleEvent(pc uint16) Event {
	return Event{
		M1PC:        pc,
		TargetAddr:  0x9000,
		OpcodeBytes: []byte{0xCD, 0x00, 0x90},
		Flags:       0x44,
		Type:        CALL,
		SP:          0xFFF0,
	}
}

func TestInsertCollapsesEquivalentColdEvents(t *testing.T) {
	b := New(Params{})
	b.Insert(sampleEvent(0x8000))
	b.Insert(sampleEvent(0x8000))
	b.Insert(sampleEvent(0x8000))

	cold := b.AllCold()
	if len(cold) != 1 {
		t.Fatalf("got %d cold events, want 1 (collapsed)", len(cold))
	}
	if cold[0].LoopCount != 3 {
		t.Fatalf("LoopCount = %d, want 3", cold[0].LoopCount)
	}
}

func TestInsertKeepsDistinctEvents(t *testing.T) {
	b := New(Params{})
	b.Insert(sampleEvent(0x8000))
	b.Insert(sampleEvent(0x8010))

	cold := b.AllCold()
	if len(cold) != 2 {
		t.Fatalf("got %d cold events, want 2", len(cold))
	}
}

func TestPromotionToHotBuffer(t *testing.T) {
	b := New(Params{HotThreshold: 2})
	ev := sampleEvent(0x8000)
	ev.LoopCount = 5
	b.Insert(ev)

	if len(b.AllCold()) != 0 {
		t.Fatalf("event should have promoted straight to hot, not cold")
	}
	hot := b.LatestHot(10)
	if len(hot) != 1 || hot[0].LoopCount != 5 {
		t.Fatalf("hot = %+v, want one event with LoopCount 5", hot)
	}

	// A further equivalent event should increment the hot entry in place.
	b.Insert(sampleEvent(0x8000))
	hot = b.LatestHot(10)
	if len(hot) != 1 || hot[0].LoopCount != 6 {
		t.Fatalf("hot after repeat = %+v, want LoopCount 6", hot)
	}
}

func TestColdRingDropsOldestWhenFull(t *testing.T) {
	b := New(Params{ColdCapacity: 3, HotThreshold: 1 << 30})
	for pc := uint16(0); pc < 5; pc++ {
		b.Insert(sampleEvent(pc))
	}
	cold := b.AllCold()
	if len(cold) != 3 {
		t.Fatalf("got %d cold events, want 3 (ring capacity)", len(cold))
	}
	// Oldest two (pc 0, 1) should have been dropped; survivors are 2,3,4.
	if cold[0].M1PC != 2 || cold[2].M1PC != 4 {
		t.Fatalf("cold = %+v, want pcs [2,3,4]", cold)
	}
}

func TestEvictExpiredHot(t *testing.T) {
	b := New(Params{HotThreshold: 1, HotFrameTimeout: 5})
	ev := sampleEvent(0x8000)
	ev.LoopCount = 2
	b.Insert(ev)
	if len(b.LatestHot(10)) != 1 {
		t.Fatal("expected one hot entry after promotion")
	}

	b.SetFrame(100)
	b.EvictExpiredHot()
	if len(b.LatestHot(10)) != 0 {
		t.Fatal("expected hot entry to be evicted after timeout")
	}
}

func TestSaveTextFormat(t *testing.T) {
	b := New(Params{})
	ev := sampleEvent(0x8000)
	ev.Banks = [4]BankInfo{{IsROM: true, Page: 0}, {IsROM: false, Page: 5}, {IsROM: false, Page: 2}, {IsROM: false, Page: 0}}
	b.Insert(ev)

	text := b.SaveText()
	for _, want := range []string{
		"  - idx: 0",
		"    m1_pc: 8000",
		"    target: 9000",
		"    opcodes: [CD, 00, 90]",
		"      - {is_rom: true, page: 0}",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("SaveText() missing %q\ngot:\n%s", want, text)
		}
	}
}
