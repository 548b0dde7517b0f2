package z80

import (
	"github.com/unrealng/z80core/pkg/analyzer"
	"github.com/unrealng/z80core/pkg/trace"
)

// TraceAnalyzer is the trace-style analyzer spec.md §2 item 7 refers to:
// it subscribes to the hot CPU-step path and feeds every instruction
// boundary through the control-flow trace buffer's decision entry
// point, so taken branches accumulate there without the CPU itself
// knowing the trace buffer exists.
type TraceAnalyzer struct {
	buf   *trace.Buffer
	subID analyzer.SubscriptionID
	frame uint64
}

// NewTraceAnalyzer creates a trace analyzer writing into buf.
func NewTraceAnalyzer(buf *trace.Buffer) *TraceAnalyzer {
	return &TraceAnalyzer{buf: buf}
}

func (t *TraceAnalyzer) Name() string { return "trace" }
func (t *TraceAnalyzer) ID() string   { return "core.trace" }

func (t *TraceAnalyzer) OnActivate(m *analyzer.Manager) {
	t.subID = m.SubscribeCPUStep(traceCPUStep, t, t.ID())
}

func (t *TraceAnalyzer) OnDeactivate() {}

// OnFrameStart advances the trace buffer's frame counter and evicts
// hot entries that timed out, matching §4.7's frame-boundary step.
func (t *TraceAnalyzer) OnFrameStart() {
	t.frame++
	t.buf.SetFrame(t.frame)
	t.buf.EvictExpiredHot()
}

// traceCPUStep is the allocation-free hot-path callback: ctx is the
// *TraceAnalyzer itself (not closed over), cpu is the concrete *CPU
// DispatchCPUStep always passes, letting it reach full register and
// memory state beyond the narrow analyzer.CPU view.
func traceCPUStep(ctx any, cpu analyzer.CPU, pc uint16) {
	ta := ctx.(*TraceAnalyzer)
	c, ok := cpu.(*CPU)
	if !ok {
		return
	}
	ta.buf.LogIfControlFlow(c, directReader{c.mem}, pc, ta.frame)
}
