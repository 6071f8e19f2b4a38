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
package pidctrl

import (
	"math"
	"time"

	"roastctl/pkg/logger"
)

// Controller is a clamped PID whose output is the number of seconds the
// heater should be on within one duty period.
type Controller struct {
	Kp, Ki, Kd float64
	OutputMin  float64
	OutputMax  float64

	setpoint float64
	intErr   float64
	prevErr  float64
	lastTime time.Time

	log *logger.Logger
}

func New(kp, ki, kd float64) *Controller {
	return &Controller{
		Kp:        kp,
		Ki:        ki,
		Kd:        kd,
		OutputMin: math.Inf(-1),
		OutputMax: math.Inf(1),
		log:       logger.New("PID"),
	}
}

func (c *Controller) WithOutputLimits(min, max float64) *Controller {
	c.OutputMin = min
	c.OutputMax = max
	return c
}

// SetTarget changes the setpoint only; integral and derivative history are kept.
func (c *Controller) SetTarget(sp float64) {
	c.setpoint = sp
}

func (c *Controller) Setpoint() float64 {
	return c.setpoint
}

// Compute returns the clamped output for a measurement taken at now.
func (c *Controller) Compute(measured float64, now time.Time) float64 {
	dt := 0.0
	if !c.lastTime.IsZero() {
		dt = now.Sub(c.lastTime).Seconds()
	}
	if dt < 0 {
		dt = 0
	}
	c.lastTime = now

	err := c.setpoint - measured

	// --- Integral term ---
	prevInt := c.intErr
	if dt > 0 {
		c.intErr += err * dt
	}

	// --- Derivative term ---
	deriv := 0.0
	if dt > 0 {
		deriv = (err - c.prevErr) / dt
	}
	c.prevErr = err

	// --- Anti-windup ---
	raw := c.Kp*err + c.Ki*c.intErr + c.Kd*deriv
	if dt > 0 && ((raw > c.OutputMax && err > 0) || (raw < c.OutputMin && err < 0)) {
		// pushing further into saturation: roll back this step
		c.intErr = prevInt
	}
	iTerm := clamp(c.Ki*c.intErr, c.OutputMin, c.OutputMax)
	if c.Ki != 0 && iTerm != c.Ki*c.intErr {
		c.intErr = iTerm / c.Ki
	}

	output := clamp(c.Kp*err+iTerm+c.Kd*deriv, c.OutputMin, c.OutputMax)

	c.log.Debug("dt=%.2fs, sp=%.1f°C, err=%.2f°C, intErr=%.2f, out=%.3fs", dt, c.setpoint, err, c.intErr, output)
	return output
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
