package debugger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/unrealng/z80core/pkg/analyzer"
	"github.com/unrealng/z80core/pkg/breakpoint"
	"github.com/unrealng/z80core/pkg/eventbus"
	"github.com/unrealng/z80core/pkg/memory"
	"github.com/unrealng/z80core/pkg/trace"
	"github.com/unrealng/z80core/pkg/z80"
)

func newTestDebugger(t *testing.T, commands string) (*Debugger, *bytes.Buffer) {
	t.Helper()
	mem := memory.New(8, 0, 0, 4)
	mem.Default48K()
	mem.SetBank(0, 0, memory.BankRAM)

	// NOP; NOP; LD A,$42 ($3E 42); HALT
	mem.WriteDebug(0x8000, 0x00)
	mem.WriteDebug(0x8001, 0x00)
	mem.WriteDebug(0x8002, 0x3E)
	mem.WriteDebug(0x8003, 0x42)
	mem.WriteDebug(0x8004, 0x76)

	bp := breakpoint.New()
	bus := eventbus.New()
	an := analyzer.New(bp, bus)
	cpu := z80.New(mem, bp, an, bus)
	cpu.SetPC(0x8000)

	tb := trace.New(trace.DefaultParams)

	var out bytes.Buffer
	d := New(cpu, mem, bp, bus, tb, &Config{
		Input:  strings.NewReader(commands),
		Output: &out,
	})
	return d, &out
}

func TestDebuggerStepAdvancesPC(t *testing.T) {
	d, out := newTestDebugger(t, "s\n")
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.cpu.PC() != 0x8001 {
		t.Errorf("PC after one step = %04X, want 8001", d.cpu.PC())
	}
	if !strings.Contains(out.String(), "executed 1 instruction") {
		t.Errorf("output missing step confirmation: %q", out.String())
	}
}

func TestDebuggerBreakpointSetListDelete(t *testing.T) {
	d, out := newTestDebugger(t, "b 8002\nb\nd 8002\nb\n")
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "breakpoint 1 set at $8002") {
		t.Errorf("missing set confirmation: %q", text)
	}
	if !strings.Contains(text, "#1 $8002") {
		t.Errorf("missing breakpoint listing: %q", text)
	}
	if !strings.Contains(text, "no breakpoints set") {
		t.Errorf("breakpoint list should be empty after delete: %q", text)
	}
}

func TestDebuggerSetRegister(t *testing.T) {
	d, out := newTestDebugger(t, "set HL 1234\nr\n")
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.cpu.HL() != 0x1234 {
		t.Errorf("HL = %04X, want 1234", d.cpu.HL())
	}
	if !strings.Contains(out.String(), "HL:1234") {
		t.Errorf("register display missing new HL value: %q", out.String())
	}
}

func TestDebuggerRunUntilBreakpoint(t *testing.T) {
	// "continue" steps on a background goroutine; Run returns as soon as
	// input is exhausted, so wait for the CPU to actually reach the
	// breakpoint's paused state before asserting on it.
	d, _ := newTestDebugger(t, "b 8002\nc\n")
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !d.cpu.IsPaused() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !d.cpu.IsPaused() {
		t.Fatal("CPU never reached paused state after hitting breakpoint")
	}
	if d.cpu.PC() != 0x8002 {
		t.Errorf("PC while paused at breakpoint = %04X, want 8002", d.cpu.PC())
	}
	d.cpu.Resume()
}

func TestDebuggerHistoryAndStats(t *testing.T) {
	d, out := newTestDebugger(t, "s\ns\nhistory\nstats\n")
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "execution history:") {
		t.Errorf("missing history header: %q", text)
	}
	if !strings.Contains(text, "Instructions: 2") {
		t.Errorf("missing instruction count: %q", text)
	}
}

func TestDebuggerUnknownCommand(t *testing.T) {
	d, out := newTestDebugger(t, "bogus\n")
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "unknown command: bogus") {
		t.Errorf("missing unknown-command diagnostic: %q", out.String())
	}
}
