// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"roastctl/internal/controller/override"
	"roastctl/internal/controller/pidctrl"
	"roastctl/internal/controller/stage"
	"roastctl/internal/profile"
	"roastctl/internal/roastlog"
	"roastctl/pkg/logger"
)

const preheatStageName = "Preheat"

// errStopped ends the tick loop on quit or after Shutdown.
var errStopped = errors.New("controller stopped")

type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

type Actuator interface {
	Drive(ctx context.Context, on, period time.Duration) error
	Off() error
	Cleanup() error
}

type Blower interface {
	SetSpeed(pct int) error
	Shutdown() error
}

type LogSink interface {
	WriteRow(r roastlog.Row) error
	Close() error
}

type Options struct {
	DefaultSetpointC  float64 // target for a profile without roast points
	PreheatToleranceC float64 // preheat is reached at target minus this
	HoldSpeedPct      int     // fan while waiting for the drop
}

// Controller runs one roast: an optional preheat, then the profile, one
// duty period per tick until quit, cancellation or a fatal sensor error.
type Controller struct {
	profile *profile.Profile
	opts    Options
	period  time.Duration

	sensor Sensor
	act    Actuator
	blower Blower
	sink   LogSink
	input  *override.Channel

	pid    *pidctrl.Controller
	stages *stage.Tracker
	log    *logger.Logger
	now    func() time.Time

	mu         sync.Mutex
	phase      Phase
	cancel     context.CancelFunc
	phaseStart time.Time

	fanPct  int
	fanSent bool

	// excludes Drive once shutdown has begun
	driveMu sync.Mutex
	closed  bool

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(p *profile.Profile, input *override.Channel, s Sensor, a Actuator, b Blower, sink LogSink, opts Options) (*Controller, error) {
	stages, err := stage.NewTracker(p.Stages)
	if err != nil {
		return nil, fmt.Errorf("stages: %w", err)
	}
	period := time.Duration(p.PWMPeriodS * float64(time.Second))
	if period <= 0 {
		return nil, fmt.Errorf("pwm period must be positive, got %v", period)
	}

	c := &Controller{
		profile: p,
		opts:    opts,
		period:  period,
		sensor:  s,
		act:     a,
		blower:  b,
		sink:    sink,
		input:   input,
		pid: pidctrl.New(p.Gains.Kp, p.Gains.Ki, p.Gains.Kd).
			WithOutputLimits(0, p.PWMPeriodS),
		stages: stages,
		log:    logger.New("Controller"),
		now:    time.Now,
	}
	stages.SetClock(func() time.Time { return c.now() })
	return c, nil
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// setPhase never moves back out of ShuttingDown or Stopped.
func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	prev := c.phase
	if prev >= ShuttingDown && p < prev {
		c.mu.Unlock()
		return
	}
	c.phase = p
	c.mu.Unlock()
	if prev != p {
		c.log.Info("Phase %s -> %s", prev, p)
	}
}

// Run drives the roast until quit, ctx cancellation or a fatal error, then
// shuts the hardware down. Quit and cancellation return nil.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.phase != Idle {
		c.mu.Unlock()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()
	defer c.log.Info("Stopped")
	defer c.Shutdown()

	go func() {
		select {
		case <-c.input.QuitCh():
			cancel()
		case <-ctx.Done():
		}
	}()

	c.log.Info("Running profile '%s'", c.profile.Name)

	err := c.run(ctx)
	if errors.Is(err, errStopped) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Controller) run(ctx context.Context) error {
	if ph := c.profile.Preheat; ph != nil {
		if err := c.preheat(ctx, ph.TempC); err != nil {
			return err
		}
	}

	c.startRoast()
	for {
		if err := c.tick(ctx); err != nil {
			return err
		}
		if c.input.Snapshot().QuitRequested {
			return nil
		}
	}
}

func (c *Controller) preheat(ctx context.Context, targetC float64) error {
	c.startPhase(Preheating)
	c.pid.SetTarget(targetC)
	c.log.Info("Preheating to %.1f°C", targetC)

	for {
		select {
		case <-c.input.Dropped():
			return nil
		default:
		}

		temp, err := c.readAndDrive(ctx)
		if err != nil {
			return err
		}
		if c.input.Snapshot().QuitRequested {
			return errStopped
		}

		if c.Phase() == Preheating && temp >= targetC-c.opts.PreheatToleranceC {
			c.setPhase(AwaitingDrop)
			c.applyFan()
			c.log.Info("Preheat reached at %.1f°C, press Enter to drop beans", temp)
		}
	}
}

func (c *Controller) startRoast() {
	c.stages.Reset()
	c.startPhase(Roasting)
	c.log.Info("Roast started")
}

func (c *Controller) startPhase(p Phase) {
	c.mu.Lock()
	c.phaseStart = c.now()
	c.mu.Unlock()
	c.setPhase(p)
	c.applyFan()
}

func (c *Controller) tick(ctx context.Context) error {
	_, err := c.readAndDrive(ctx)
	return err
}

// readAndDrive performs one tick and returns the measured temperature.
func (c *Controller) readAndDrive(ctx context.Context) (float64, error) {
	now := c.now()
	c.mu.Lock()
	elapsed := now.Sub(c.phaseStart)
	c.mu.Unlock()
	phase := c.Phase()
	ov := c.input.Snapshot()

	target := c.target(phase, elapsed, ov)

	temp, err := c.sensor.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}

	c.pid.SetTarget(target)
	onS := c.pid.Compute(temp, now)
	c.applyFan()

	// sensor retries and fan writes come out of this tick's period
	on, period := c.budget(time.Duration(onS*float64(time.Second)), c.now().Sub(now))
	onS = on.Seconds()

	stageName := preheatStageName
	var stageElapsed time.Duration
	if phase == Roasting {
		stageName = c.stages.Classify(temp)
		stageElapsed = c.stages.Since(now)
	} else {
		stageElapsed = elapsed
	}

	if phase == Roasting {
		c.log.Info("Elapsed: %s | Stage: %s | Temp: %.2f°C | Target: %.1f°C | SSR ON: %.2fs",
			roastlog.FormatMMSS(elapsed), stageName, temp, c.pid.Setpoint(), onS)
	} else {
		c.log.Info("Preheat | Temp: %.2f°C | Target: %.1f°C | SSR ON: %.2fs", temp, c.pid.Setpoint(), onS)
	}

	row := roastlog.Row{
		Time:         now,
		Elapsed:      elapsed,
		Phase:        phase.String(),
		Stage:        stageName,
		StageElapsed: stageElapsed,
		TargetC:      target,
		ActualC:      temp,
		OnTime:       on,
		FanPct:       c.currentFan(),
	}
	if err := c.sink.WriteRow(row); err != nil {
		c.log.Error("roast log: %v", err)
	}

	if err := c.drive(ctx, on, period); err != nil {
		return temp, err
	}

	c.applyRequests()
	return temp, nil
}

func (c *Controller) target(phase Phase, elapsed time.Duration, ov override.Snapshot) float64 {
	if phase != Roasting && c.profile.Preheat != nil {
		return c.profile.Preheat.TempC
	}
	return c.profile.Roast.Interpolate(elapsed.Seconds(), c.opts.DefaultSetpointC) + ov.TrimC
}

// budget shrinks the drive period by the time the tick has already spent,
// scaling on-time to keep the duty ratio, so a tick lasts one period.
func (c *Controller) budget(on, spent time.Duration) (time.Duration, time.Duration) {
	if spent <= 0 {
		return on, c.period
	}
	period := max(c.period-spent, 0)
	if spent > c.period/10 {
		c.log.Warn("Tick overran by %v, driving %v of the %v period", spent.Round(time.Millisecond), period, c.period)
	}
	return time.Duration(float64(on) * float64(period) / float64(c.period)), period
}

func (c *Controller) drive(ctx context.Context, on, period time.Duration) error {
	c.driveMu.Lock()
	defer c.driveMu.Unlock()
	if c.closed {
		return errStopped
	}
	if err := c.act.Drive(ctx, on, period); err != nil {
		return fmt.Errorf("drive heater: %w", err)
	}
	return nil
}

// autoFan is the fan speed without an operator override.
func (c *Controller) autoFan() int {
	switch c.Phase() {
	case AwaitingDrop:
		return c.opts.HoldSpeedPct
	case Roasting:
		if c.profile.Fan.Len() > 0 {
			c.mu.Lock()
			elapsed := c.now().Sub(c.phaseStart)
			c.mu.Unlock()
			return quantizeFan(c.profile.Fan.Interpolate(elapsed.Seconds(), 100))
		}
	}
	return 100
}

// fanStepPct is the resolution of scheduled fan speeds; each change costs a
// blower write inside the tick.
const fanStepPct = 5

func quantizeFan(pct float64) int {
	return int(math.Round(pct/fanStepPct)) * fanStepPct
}

func (c *Controller) currentFan() int {
	if ov := c.input.Snapshot(); ov.FanPct != nil {
		return *ov.FanPct
	}
	return c.autoFan()
}

// applyFan sends the fan speed only when it differs from the last one sent.
func (c *Controller) applyFan() {
	if c.Phase() >= ShuttingDown {
		return
	}
	pct := c.currentFan()
	if c.fanSent && pct == c.fanPct {
		return
	}
	if err := c.blower.SetSpeed(pct); err != nil {
		c.log.Warn("set fan %d%%: %v", pct, err)
		return
	}
	c.fanPct = pct
	c.fanSent = true
}

func (c *Controller) applyRequests() {
	ov := c.input.Snapshot()
	if ov.ResetRequested {
		c.input.AckReset()
		c.log.Info("Overrides reset")
		c.applyFan()
	}
	if ov.StageAdvance {
		c.input.AckStageAdvance()
		if c.Phase() == Roasting {
			c.log.Info("Stage advanced to %s", c.stages.Advance())
		}
	}
	if ov.StageReset {
		c.input.AckStageReset()
		c.stages.Reset()
		c.log.Info("Stage tracking reset to %s", c.stages.Current())
	}
}

// Shutdown turns the heater off and releases every output exactly once.
// It is safe to call concurrently and from any goroutine.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.shutdownOnce.Do(func() {
		c.setPhase(ShuttingDown)

		c.driveMu.Lock()
		c.closed = true
		c.driveMu.Unlock()

		var errs []error
		if err := c.act.Off(); err != nil {
			errs = append(errs, fmt.Errorf("heater off: %w", err))
		}
		if err := c.act.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("heater cleanup: %w", err))
		}
		if err := c.blower.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("fan shutdown: %w", err))
		}
		if err := c.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close roast log: %w", err))
		}
		c.shutdownErr = errors.Join(errs...)
		if c.shutdownErr != nil {
			c.log.Error("shutdown: %v", c.shutdownErr)
		}
		c.setPhase(Stopped)
	})
	return c.shutdownErr
}
