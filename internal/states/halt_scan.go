package states

import (
	"wheelly/internal/agent"
	"wheelly/internal/clock"
)

// HaltScanConfig bundles the Halt/Scan state's tunables.
type HaltScanConfig struct {
	MinSensorDir    float64 // degrees
	MaxSensorDir    float64
	SensorDirNumber int
	ScanInterval    clock.Time // ms between sweep steps
	Timeout         clock.Time // ms before emitting timeout
}

// HaltScan parks the motors and sweeps the proximity sensor across its
// bearing range, emitting timeout once the configured duration elapses and
// *Blocked whenever a blocked predicate newly becomes true.
type HaltScan struct {
	cfg HaltScanConfig

	startTs    clock.Time
	lastStepTs clock.Time
	stepIndex  int
	wasFront   bool
	wasRear    bool
}

// NewHaltScan constructs the Halt/Scan state.
func NewHaltScan(cfg HaltScanConfig) *HaltScan {
	if cfg.SensorDirNumber < 1 {
		cfg.SensorDirNumber = 1
	}
	return &HaltScan{cfg: cfg}
}

func (s *HaltScan) Name() string { return "haltScan" }

func (s *HaltScan) Init(agent.Context) {}

func (s *HaltScan) Entry(ctx agent.Context) {
	s.startTs = ctx.Now
	s.lastStepTs = clock.Never
	s.stepIndex = 0
	s.wasFront = ctx.Model.Predicates.FrontBlocked
	s.wasRear = ctx.Model.Predicates.RearBlocked
}

func (s *HaltScan) Step(ctx agent.Context) agent.StepResult {
	cmds := []agent.Command{{Kind: "halt"}}

	if elapsedSince(s.lastStepTs, ctx.Now, int64(s.cfg.ScanInterval)) || !s.lastStepTs.Set() {
		dir := s.sweepBearing()
		cmds = append(cmds, agent.Command{Kind: "scan", Dir: dir})
		s.lastStepTs = ctx.Now
		s.stepIndex++
	}

	frontNow := ctx.Model.Predicates.FrontBlocked
	rearNow := ctx.Model.Predicates.RearBlocked
	event := ""
	if frontNow && !s.wasFront {
		event = EventFrontBlocked
	} else if rearNow && !s.wasRear {
		event = EventRearBlocked
	} else if elapsedSince(s.startTs, ctx.Now, int64(s.cfg.Timeout)) {
		event = EventTimeout
	}
	s.wasFront, s.wasRear = frontNow, rearNow

	return agent.StepResult{Commands: cmds, Event: event}
}

func (s *HaltScan) Exit(agent.Context) {}

// sweepBearing returns the next discrete bearing in the configured arc,
// cycling back and forth (a triangle wave) across sensorDirNumber stops.
func (s *HaltScan) sweepBearing() float64 {
	n := s.cfg.SensorDirNumber
	if n <= 1 {
		return s.cfg.MinSensorDir
	}
	period := 2 * (n - 1)
	phase := s.stepIndex % period
	if phase >= n {
		phase = period - phase
	}
	span := s.cfg.MaxSensorDir - s.cfg.MinSensorDir
	step := span / float64(n-1)
	return s.cfg.MinSensorDir + step*float64(phase)
}
