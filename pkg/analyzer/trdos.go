package analyzer

// TRDOSEventType classifies a TRDOSAnalyzer event. Only the system-level
// entry/exit/service events are modeled: sector-transfer and FDC command
// events from the original (FDC_CMD_READ, SECTOR_TRANSFER, ERROR_CRC, ...)
// require an IWD1793Observer feed from the floppy controller, which is an
// external peripheral per spec.md §1 (only the FDC *observer interface* is
// in scope, not the FDC itself) — see DESIGN.md.
type TRDOSEventType uint8

const (
	TRDOSEntry TRDOSEventType = iota
	TRDOSExit
	TRDOSServiceCall
	TRDOSUserCommand
)

func (t TRDOSEventType) String() string {
	switch t {
	case TRDOSEntry:
		return "TRDOS_ENTRY"
	case TRDOSExit:
		return "TRDOS_EXIT"
	case TRDOSServiceCall:
		return "SERVICE_CALL"
	case TRDOSUserCommand:
		return "USER_COMMAND"
	default:
		return "UNKNOWN"
	}
}

// TRDOSEvent records a single TR-DOS system transition, timestamped by
// T-state and carrying whichever register the entry point's calling
// convention uses to identify the operation (C for service calls).
type TRDOSEvent struct {
	Type TRDOSEventType
	PC   uint16
	Arg  byte
	T    uint64
}

// TRDOSState is the analyzer's state machine, a reduced form of the
// original's TRDOSAnalyzerState enum (IN_SECTOR_OP/IN_MULTI_OP/COMPLETING
// fold into InCommand here, since they only distinguish FDC-driven
// sub-phases this port does not track).
type TRDOSState uint8

const (
	TRDOSIdle TRDOSState = iota
	TRDOSInROM
	TRDOSInCommand
)

// Register breakpoint addresses for the external entry gates, grounded
// on trdosanalyzer.h's BP_TRDOS_ENTRY/BP_SERVICE_ENTRY/BP_COMMAND_ENTRY/
// BP_EXIT constants (the $3Dxx window spec.md §3/§4.1 calls out as the
// TR-DOS ROM overlay trigger).
const (
	trdosBPEntry        uint16 = 0x3D00
	trdosBPCommandProc  uint16 = 0x3D03
	trdosBPServiceEntry uint16 = 0x3D13
	trdosBPCommandEntry uint16 = 0x3D1A
	trdosBPExit         uint16 = 0x0077
)

// TRDOSAnalyzer detects transitions into and out of the TR-DOS ROM
// overlay and classifies the entry gate used, aggregating them into a
// bounded event log.
//
// Grounded on original_source's TRDOSAnalyzer (trdos/trdosanalyzer.h):
// same breakpoint set and state machine shape, with the FDC-command and
// filename-reading responsibilities dropped (peripheral-internal, out of
// scope) and RingBuffer<TRDOSEvent> replaced by a capped Go slice.
type TRDOSAnalyzer struct {
	id string

	state   TRDOSState
	events  []TRDOSEvent
	maxKept int

	lastQueryLen int
}

// NewTRDOSAnalyzer creates a detector with the given owner id and a
// bounded event log (default 4096 events, matching RAW_BUFFER_SIZE's
// order of magnitude in the original).
func NewTRDOSAnalyzer(id string) *TRDOSAnalyzer {
	return &TRDOSAnalyzer{id: id, maxKept: 4096}
}

func (a *TRDOSAnalyzer) Name() string { return "TRDOSAnalyzer" }
func (a *TRDOSAnalyzer) ID() string   { return a.id }

// OnActivate requests silent execution breakpoints at every TR-DOS gate;
// all are analyzer-owned so none ever pause the interactive debugger.
func (a *TRDOSAnalyzer) OnActivate(m *Manager) {
	m.RequestExecutionBreakpoint(trdosBPEntry, a.id)
	m.RequestExecutionBreakpoint(trdosBPCommandProc, a.id)
	m.RequestExecutionBreakpoint(trdosBPServiceEntry, a.id)
	m.RequestExecutionBreakpoint(trdosBPCommandEntry, a.id)
	m.RequestExecutionBreakpoint(trdosBPExit, a.id)
}

func (a *TRDOSAnalyzer) OnDeactivate() {
	a.state = TRDOSIdle
}

// cRegister is the narrow view of CPU state OnBreakpointHit needs beyond
// the PC it already receives: the service-call gate identifies its
// operation from register C (the BDOS-style calling convention).
type cRegister interface {
	BC() uint16
}

// tStater exposes the CPU's T-state counter for event timestamping.
type tStater interface {
	// T is exported directly on *z80.CPU as a field, not a method; the
	// analyzer framework's CPU interface is method-only (spec.md §4.5),
	// so events are timestamped 0 when the concrete CPU doesn't expose
	// one. zxdbg's wiring always passes *z80.CPU, which does via a
	// thin accessor registered alongside the other CPU hooks.
	TState() uint64
}

// OnBreakpointHit classifies which TR-DOS gate fired and appends an
// event, advancing the reduced state machine (Idle -> InROM on entry,
// InCommand on a service/user-command gate, back to Idle on exit).
func (a *TRDOSAnalyzer) OnBreakpointHit(address uint16, cpu CPU) {
	var tstate uint64
	if ts, ok := cpu.(tStater); ok {
		tstate = ts.TState()
	}

	ev := TRDOSEvent{PC: address, T: tstate}

	switch address {
	case trdosBPEntry, trdosBPCommandProc:
		ev.Type = TRDOSEntry
		a.state = TRDOSInROM
	case trdosBPServiceEntry:
		ev.Type = TRDOSServiceCall
		if reg, ok := cpu.(cRegister); ok {
			ev.Arg = byte(reg.BC())
		}
		a.state = TRDOSInCommand
	case trdosBPCommandEntry:
		ev.Type = TRDOSUserCommand
		a.state = TRDOSInCommand
	case trdosBPExit:
		ev.Type = TRDOSExit
		a.state = TRDOSIdle
	default:
		return
	}

	a.emit(ev)
}

func (a *TRDOSAnalyzer) emit(ev TRDOSEvent) {
	a.events = append(a.events, ev)
	if len(a.events) > a.maxKept {
		a.events = a.events[len(a.events)-a.maxKept:]
		if a.lastQueryLen > 0 {
			a.lastQueryLen = 0
		}
	}
}

// State reports the analyzer's current TR-DOS state-machine position.
func (a *TRDOSAnalyzer) State() TRDOSState { return a.state }

// Events returns every captured event since activation (or since the
// last Clear).
func (a *TRDOSAnalyzer) Events() []TRDOSEvent { return append([]TRDOSEvent(nil), a.events...) }

// NewEvents returns events captured since the last call to NewEvents.
func (a *TRDOSAnalyzer) NewEvents() []TRDOSEvent {
	if a.lastQueryLen >= len(a.events) {
		return nil
	}
	out := append([]TRDOSEvent(nil), a.events[a.lastQueryLen:]...)
	a.lastQueryLen = len(a.events)
	return out
}

// Clear discards all captured events and resets the query cursor.
func (a *TRDOSAnalyzer) Clear() {
	a.events = nil
	a.lastQueryLen = 0
}
