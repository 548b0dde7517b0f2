package z80

import "github.com/unrealng/z80core/pkg/platform"

// FrameLimit is the default number of T-states per video frame for a
// 48K-timing ZX Spectrum (69888 T-states at 50 Hz); callers targeting
// Pentagon/Scorpion timing override it via SetFrameParams.
const FrameLimit = 69888

type frameParams struct {
	limit           uint64
	intStart        uint64
	intEnd          uint64
	speedMultiplier int
}

// SetFrameParams configures frame_limit and the interrupt pulse window
// together, matching spec.md §4.6: both are scaled by a speed multiplier
// at frame boundaries, while Rate itself stays nominal.
func (c *CPU) SetFrameParams(frameLimit, intStartOffset, intLen uint64, speedMultiplier int) {
	if speedMultiplier < 1 {
		speedMultiplier = 1
	}
	c.frame = frameParams{
		limit:           frameLimit * uint64(speedMultiplier),
		intStart:        intStartOffset * uint64(speedMultiplier),
		intEnd:          (intStartOffset + intLen) * uint64(speedMultiplier),
		speedMultiplier: speedMultiplier,
	}
	c.intStart, c.intEnd = c.frame.intStart, c.frame.intEnd
}

// SetFrameParamsForPlatform configures frame_limit from a named clone's
// FrameTiming (spec.md §4.1's multi-clone banking extends naturally to
// per-clone frame/interrupt timing), applying speedMultiplier on top of
// the clone's own turbo rate reported by platform.GetTurboMultiplier.
func (c *CPU) SetFrameParamsForPlatform(name string, speedMultiplier int) {
	timing, ok := platform.PlatformTimings[name]
	if !ok {
		timing = platform.PlatformTimings["spectrum"]
	}
	if platform.IsTurboCapable(name) {
		speedMultiplier *= int(platform.GetTurboMultiplier(name))
	}
	c.SetFrameParams(uint64(timing.CyclesPerFrame), uint64(timing.CyclesPerFrame-32), 32, speedMultiplier)
}

// FrameCycle steps the CPU until T reaches frame_limit (relative to the
// start of this call), firing the end-of-frame interrupt according to
// the configured intstart/intlen window, and dispatching the analyzer
// manager's frame-start/frame-end cold-path hooks around the run.
func (c *CPU) FrameCycle() {
	if c.frame.limit == 0 {
		c.SetFrameParams(FrameLimit, FrameLimit-32, 32, 1)
	}

	origin := c.T
	limit := origin + c.frame.limit

	// The interrupt window is held relative to the frame origin; shift it
	// onto the cumulative T counter for this frame's run.
	relStart, relEnd := c.intStart, c.intEnd
	c.intStart, c.intEnd = origin+relStart, origin+relEnd

	c.an.DispatchFrameStart()

	c.RequestInt()
	for c.T < limit {
		c.Step(false)
	}
	c.intStart, c.intEnd = relStart, relEnd

	c.an.DispatchFrameEnd()
}
