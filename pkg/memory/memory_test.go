package memory

import "testing"

func TestDefault48K(t *testing.T) {
	m := New(8, 0, 0, 4)
	m.Default48K()

	if m.BankMode(0) != BankROM {
		t.Fatalf("bank 0 mode = %v, want ROM", m.BankMode(0))
	}
	for i := 1; i < BankCount; i++ {
		if m.BankMode(i) != BankRAM {
			t.Fatalf("bank %d mode = %v, want RAM", i, m.BankMode(i))
		}
	}

	want := []int{-1, 5, 2, 0}
	for i := 1; i < BankCount; i++ {
		if got := m.RAMPageOfBank(i); got != want[i] {
			t.Errorf("RAMPageOfBank(%d) = %d, want %d", i, got, want[i])
		}
	}
	if got := m.ROMPageOfBank(0); got != 0 {
		t.Errorf("ROMPageOfBank(0) = %d, want 0", got)
	}
}

func TestROMWritesAreAbsorbed(t *testing.T) {
	m := New(8, 0, 0, 4)
	m.Default48K()

	before := m.Read(0x0000, false)
	m.Write(0x0000, 0xAA)
	after := m.Read(0x0000, false)

	if before != after {
		t.Fatalf("ROM write was not absorbed: before=%#x after=%#x", before, after)
	}
}

func TestRAMRoundTrip(t *testing.T) {
	m := New(8, 0, 0, 4)
	m.Default48K()

	m.Write(0x8000, 0x42)
	if got := m.Read(0x8000, false); got != 0x42 {
		t.Fatalf("Read(0x8000) = %#x, want 0x42", got)
	}
}

// TestMapZ80ToPhysical exercises the universal property from spec.md §8:
// map_z80_to_physical(addr) == arena base + physical_offset_of_bank(addr>>14) + (addr & 0x3FFF).
func TestMapZ80ToPhysical(t *testing.T) {
	m := New(8, 0, 0, 4)
	m.Default48K()

	addrs := []uint16{0x0000, 0x3FFF, 0x4000, 0x7FFF, 0x8000, 0xBFFF, 0xC000, 0xFFFF}
	for _, addr := range addrs {
		bankIdx := int(addr >> 14)
		want := m.PhysicalOffsetOfBank(bankIdx) + int(addr&0x3FFF)
		got := m.MapZ80ToPhysical(addr)
		if got != want {
			t.Errorf("MapZ80ToPhysical(%#04x) = %d, want %d", addr, got, want)
		}
	}
}

func TestDebugDispatchFanOut(t *testing.T) {
	m := New(8, 0, 0, 4)
	m.Default48K()

	var reads, writes int
	m.SetOnRead(func(addr uint16, value byte, isExecution bool) { reads++ })
	m.SetOnWrite(func(addr uint16, value byte) { writes++ })

	m.ReadDebug(0x8000, false)
	m.WriteDebug(0x8000, 1)
	m.Read(0x8000, false)  // fast path: no dispatch
	m.Write(0x8000, 2)     // fast path: no dispatch

	if reads != 1 || writes != 1 {
		t.Fatalf("reads=%d writes=%d, want 1 and 1 (fast path must not dispatch)", reads, writes)
	}
}

func TestTRDOSOverlayTransitions(t *testing.T) {
	m := New(8, 0, 0, 4)
	m.Default48K()

	if m.TRDOSActive() {
		t.Fatal("TR-DOS overlay active before any transition")
	}

	if !m.UpdateTRDOSOverlay(0x3D00, 1, 0) {
		t.Fatal("expected overlay activation on entering 0x3Dxx")
	}
	if !m.TRDOSActive() {
		t.Fatal("overlay should be active after entering 0x3Dxx")
	}
	if got := m.ROMPageOfBank(0); got != 1 {
		t.Errorf("ROMPageOfBank(0) = %d, want 1 (TR-DOS page)", got)
	}

	// Staying within the window must not re-trigger (no-op update).
	if m.UpdateTRDOSOverlay(0x3D80, 1, 0) {
		t.Fatal("overlay should not re-trigger while still in the 0x3Dxx window")
	}

	if !m.UpdateTRDOSOverlay(0x4000, 1, 0) {
		t.Fatal("expected overlay deactivation on reaching 0x4000")
	}
	if m.TRDOSActive() {
		t.Fatal("overlay should be inactive after leaving to >= 0x4000")
	}
	if got := m.ROMPageOfBank(0); got != 0 {
		t.Errorf("ROMPageOfBank(0) = %d, want 0 (normal page)", got)
	}
}

func TestPageOutOfRangeIsUnmappable(t *testing.T) {
	m := New(2, 0, 0, 1)

	if got := m.physicalOffset(regionRAM, 99); got != Unmappable {
		t.Errorf("physicalOffset(RAM, 99) = %d, want Unmappable", got)
	}
	if got := m.ROMPageOfAddress(-1); got != Unmappable {
		t.Errorf("ROMPageOfAddress(-1) = %d, want Unmappable", got)
	}
}
