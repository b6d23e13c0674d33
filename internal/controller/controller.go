// Package controller implements the reactor (component C9): it couples the
// world modeller, the state machine agent and the robot link, running one
// reaction tick at a time — advance, then derive, then dispatch — and
// tracking link failures: a failed send degrades the link and enough
// consecutive failures fail it. A failed send is not retried within the
// tick.
package controller

import (
	"fmt"
	"strconv"
	"time"

	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/clock"
	"wheelly/internal/link"
	"wheelly/internal/logging"
	"wheelly/internal/world"
)

// Status is the controller's own health, independent of the agent's state.
type Status int

const (
	Nominal Status = iota
	Degraded
	Failed
)

func (s Status) String() string {
	switch s {
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "nominal"
	}
}

// Config bundles the controller's tunables.
type Config struct {
	Spec              world.Spec
	CommandInterval   time.Duration
	Slack             time.Duration
	ClockSyncInterval time.Duration   // 0 disables periodic resync
	MaxTimeouts       int             // consecutive send failures before Failed; 0 defaults to 3
	Logger            *logging.Logger // nil falls back to the package-level global logger
}

func (c Config) maxTimeouts() int {
	if c.MaxTimeouts <= 0 {
		return 3
	}
	return c.MaxTimeouts
}

// Controller runs one reaction tick at a time.
type Controller struct {
	link     link.Link
	modeller *world.Modeller
	interp   *agent.Interpreter
	board    *blackboard.Board
	cfg      Config

	status              Status
	consecutiveTimeouts int

	syncToken   string
	lastSyncTs  clock.Time
	clockOffset int64 // robot clock minus reactor clock, in ms; 0 until a sync completes
	offsetKnown bool
}

// New constructs a Controller over its collaborators. The interpreter and
// modeller are expected to share no state beyond what flows through
// agent.Context each tick.
func New(lnk link.Link, modeller *world.Modeller, interp *agent.Interpreter, board *blackboard.Board, cfg Config) *Controller {
	return &Controller{link: lnk, modeller: modeller, interp: interp, board: board, cfg: cfg, lastSyncTs: clock.Never}
}

// Status reports the controller's current health.
func (c *Controller) Status() Status { return c.status }

// Start runs the agent's one-time initialization.
func (c *Controller) Start(now clock.Time) error {
	return c.interp.Start(agent.Context{Now: now, Model: c.modeller.Snapshot(c.cfg.Spec, now), Board: c.board})
}

// SyncClock issues a clock sync request. The token round-trips through the
// robot unchanged, so the current tick time doubles as a fresh one; the
// matching reply is consumed by a later React and updates the stored
// robot→reactor offset. React calls this itself on ClockSyncInterval, so
// only callers wanting an immediate resync need to invoke it directly.
func (c *Controller) SyncClock(now clock.Time) error {
	token := strconv.FormatInt(int64(now), 10)
	if err := c.link.ClockSync(token); err != nil {
		return fmt.Errorf("clock sync: %w", err)
	}
	c.syncToken = token
	c.lastSyncTs = now
	return nil
}

// ClockOffset reports the last measured robot-minus-reactor clock offset in
// milliseconds, or 0 if no sync has completed yet.
func (c *Controller) ClockOffset() int64 { return c.clockOffset }

// Stop performs the shutdown handshake: one final zero-motor command with a
// short grace validity window so the robot stops even if the halt line is
// lost, then closes the link.
func (c *Controller) Stop(now clock.Time, grace time.Duration) error {
	_ = c.link.SendMotors(0, 0, now.Add(grace))
	return c.link.Close()
}

// React runs one reaction tick: drain queued telemetry, advance the
// modeller, step the agent, and flush emitted commands with a validity
// deadline of now + commandInterval + slack. It never panics; a link error
// degrades the controller's status and is also returned to the caller.
func (c *Controller) React(now clock.Time) (agent.StepResult, error) {
	if c.cfg.ClockSyncInterval > 0 &&
		(!c.lastSyncTs.Set() || now.Sub(c.lastSyncTs) >= c.cfg.ClockSyncInterval) {
		if err := c.SyncClock(now); err != nil {
			c.cfg.logger().WithTick(now).Warn("clock sync failed", logging.Error(err))
		}
	}
	messages := c.drainTelemetry(now)
	model := c.modeller.Step(c.cfg.Spec, messages, now)

	result, err := c.interp.Tick(agent.Context{Now: now, Model: model, Board: c.board})
	if err != nil {
		// A hook failure is StateLogic: fatal to the flow, but the
		// reactor itself keeps running so the caller can observe it and
		// decide whether to halt.
		c.sendHalt()
		return result, fmt.Errorf("agent tick: %w", err)
	}

	validTo := now.Add(c.cfg.CommandInterval + c.cfg.Slack)
	if sendErr := c.flush(result.Commands, validTo); sendErr != nil {
		c.recordTimeout(now, sendErr)
		return result, sendErr
	}
	c.consecutiveTimeouts = 0
	if c.status != Failed && c.status != Nominal {
		c.cfg.logger().WithTick(now).Info("link recovered", logging.String("status", Nominal.String()))
	}
	if c.status != Failed {
		c.status = Nominal
	}
	return result, nil
}

// drainTelemetry empties the link's queue, intercepting clock sync replies
// and rebasing every remaining message's robot timestamp into the reactor's
// clock domain.
func (c *Controller) drainTelemetry(now clock.Time) []world.Message {
	var out []world.Message
	ch := c.link.Messages()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			if ck, isSync := msg.(world.ClockMessage); isSync {
				c.applyClockReply(ck, now)
				continue
			}
			if c.offsetKnown {
				msg = world.Shifted(msg, -c.clockOffset)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

// applyClockReply computes the robot→reactor offset from a matching sync
// reply: the midpoint of the robot's receive/transmit pair against the local
// time the echo was observed.
func (c *Controller) applyClockReply(ck world.ClockMessage, localEcho clock.Time) {
	if c.syncToken == "" || ck.Token != c.syncToken {
		return
	}
	c.clockOffset = (int64(ck.T0)+int64(ck.T1))/2 - int64(localEcho)
	c.offsetKnown = true
	c.syncToken = ""
	c.cfg.logger().WithTick(localEcho).Info("clock synchronized", logging.Int("offset_ms", int(c.clockOffset)))
}

func (c *Controller) flush(commands []agent.Command, validTo clock.Time) error {
	for _, cmd := range commands {
		var err error
		switch cmd.Kind {
		case "halt":
			err = c.link.SendHalt()
		case "move":
			err = c.link.SendMotors(int(cmd.Left), int(cmd.Right), validTo)
		case "scan":
			err = c.link.SendScan(cmd.Dir)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("send %s: %w", cmd.Kind, err)
		}
	}
	return nil
}

func (c *Controller) sendHalt() {
	_ = c.link.SendHalt()
}

// recordTimeout applies the error-handling policy: transient link errors move the
// controller to Degraded; three consecutive failures move it to Failed and
// halt the motors.
func (c *Controller) recordTimeout(now clock.Time, sendErr error) {
	c.consecutiveTimeouts++
	log := c.cfg.logger().WithTick(now)
	if c.consecutiveTimeouts >= c.cfg.maxTimeouts() {
		c.status = Failed
		log.Error("link failed after consecutive timeouts", logging.Error(sendErr), logging.Int("consecutive", c.consecutiveTimeouts))
		c.sendHalt()
		return
	}
	c.status = Degraded
	log.Warn("link degraded", logging.Error(sendErr), logging.Int("consecutive", c.consecutiveTimeouts))
}

// logger returns the configured logger, falling back to the package-level
// global so a zero-value Config (as used by tests) never needs one wired.
func (c Config) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.L()
}
