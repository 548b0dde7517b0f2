package analyzer

import (
	"testing"

	"github.com/unrealng/z80core/pkg/breakpoint"
)

type trdosFakeCPU struct {
	pc uint16
	bc uint16
	t  uint64
}

func (c trdosFakeCPU) PC() uint16     { return c.pc }
func (c trdosFakeCPU) BC() uint16     { return c.bc }
func (c trdosFakeCPU) TState() uint64 { return c.t }

func TestTRDOSAnalyzerEntryExit(t *testing.T) {
	m := newTestManager()
	a := NewTRDOSAnalyzer("trdos")
	m.Register("trdos", a)
	m.Activate("trdos")

	if a.State() != TRDOSIdle {
		t.Fatalf("expected idle state before any hit, got %v", a.State())
	}

	a.OnBreakpointHit(trdosBPEntry, trdosFakeCPU{pc: trdosBPEntry, t: 100})
	if a.State() != TRDOSInROM {
		t.Fatalf("expected InROM after entry gate, got %v", a.State())
	}

	a.OnBreakpointHit(trdosBPServiceEntry, trdosFakeCPU{pc: trdosBPServiceEntry, bc: 0x0342, t: 200})
	if a.State() != TRDOSInCommand {
		t.Fatalf("expected InCommand after service gate, got %v", a.State())
	}

	a.OnBreakpointHit(trdosBPExit, trdosFakeCPU{pc: trdosBPExit, t: 300})
	if a.State() != TRDOSIdle {
		t.Fatalf("expected Idle after exit gate, got %v", a.State())
	}

	events := a.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != TRDOSEntry || events[1].Type != TRDOSServiceCall || events[2].Type != TRDOSExit {
		t.Fatalf("unexpected event sequence: %+v", events)
	}
	if events[1].Arg != 0x42 {
		t.Fatalf("expected service call arg to carry register C (low byte of BC), got %#x", events[1].Arg)
	}
}

func TestTRDOSAnalyzerOwnsBreakpointsSilently(t *testing.T) {
	m := newTestManager()
	a := NewTRDOSAnalyzer("trdos")
	m.Register("trdos", a)
	m.Activate("trdos")

	id := m.breakpoints.HandlePCChange(trdosBPEntry)
	if id == breakpoint.Invalid {
		t.Fatal("TR-DOS entry breakpoint was not registered")
	}
	if _, owned := m.IsAnalyzerOwnedBreakpoint(id); !owned {
		t.Fatal("TR-DOS entry breakpoint is not analyzer-owned")
	}
}

func TestTRDOSAnalyzerNewEvents(t *testing.T) {
	a := NewTRDOSAnalyzer("trdos")
	a.OnBreakpointHit(trdosBPEntry, trdosFakeCPU{pc: trdosBPEntry})

	first := a.NewEvents()
	if len(first) != 1 {
		t.Fatalf("expected 1 new event, got %d", len(first))
	}
	if got := a.NewEvents(); got != nil {
		t.Fatalf("expected no new events on second call, got %v", got)
	}

	a.OnBreakpointHit(trdosBPExit, trdosFakeCPU{pc: trdosBPExit})
	second := a.NewEvents()
	if len(second) != 1 || second[0].Type != TRDOSExit {
		t.Fatalf("unexpected second batch: %+v", second)
	}
}

func TestTRDOSAnalyzerClear(t *testing.T) {
	a := NewTRDOSAnalyzer("trdos")
	a.OnBreakpointHit(trdosBPEntry, trdosFakeCPU{pc: trdosBPEntry})
	a.Clear()
	if len(a.Events()) != 0 {
		t.Fatal("Clear did not empty the event log")
	}
	if a.NewEvents() != nil {
		t.Fatal("Clear did not reset the new-events cursor")
	}
}
