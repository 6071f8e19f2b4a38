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
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestOutputStaysWithinLimits(t *testing.T) {
	c := New(2.3, 0.25, 2.5).WithOutputLimits(0, 0.5)
	c.SetTarget(220)

	now := t0
	for _, m := range []float64{20, 500, -40, 219, 221, 1000, 0, 220} {
		out := c.Compute(m, now)
		if out < 0 || out > 0.5 {
			t.Fatalf("measured %v: output %v outside [0, 0.5]", m, out)
		}
		now = now.Add(500 * time.Millisecond)
	}
}

func TestFirstCallIsProportionalOnly(t *testing.T) {
	c := New(0.01, 10, 100).WithOutputLimits(0, 10)
	c.SetTarget(100)

	got := c.Compute(90, t0)
	if math.Abs(got-0.1) > 1e-9 {
		t.Errorf("first output = %v, want 0.1 (P only)", got)
	}
}

func TestNonPositiveDtSkipsIntegralAndDerivative(t *testing.T) {
	c := New(0.01, 1, 1).WithOutputLimits(-10, 10)
	c.SetTarget(100)
	c.Compute(90, t0)

	got := c.Compute(95, t0)
	if math.Abs(got-0.05) > 1e-9 {
		t.Errorf("output at dt=0 = %v, want 0.05", got)
	}
	got = c.Compute(95, t0.Add(-time.Second))
	if math.Abs(got-0.05) > 1e-9 {
		t.Errorf("output at dt<0 = %v, want 0.05", got)
	}
}

func TestSetTargetKeepsIntegral(t *testing.T) {
	c := New(0, 0.01, 0).WithOutputLimits(0, 1)
	c.SetTarget(150)
	c.Compute(100, t0)
	c.Compute(100, t0.Add(time.Second)) // I = 50

	c.SetTarget(100)
	if c.Setpoint() != 100 {
		t.Fatalf("Setpoint = %v, want 100", c.Setpoint())
	}
	// zero error over the next second leaves the integral as it was
	got := c.Compute(100, t0.Add(2*time.Second))
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("output after retarget = %v, want 0.5 from carried integral", got)
	}
}

func TestIntegralWindupIsBounded(t *testing.T) {
	c := New(0.001, 0.01, 0).WithOutputLimits(0, 0.5)
	c.SetTarget(200)

	// long saturation far below target
	now := t0
	for i := 0; i < 600; i++ {
		c.Compute(20, now)
		now = now.Add(500 * time.Millisecond)
	}
	if term := c.Ki * c.intErr; term > 0.5+1e-9 {
		t.Fatalf("Ki*I = %v exceeds OutputMax", term)
	}

	// overshoot: output must leave saturation within a few ticks
	var out float64
	for i := 0; i < 10; i++ {
		out = c.Compute(260, now)
		now = now.Add(500 * time.Millisecond)
	}
	if out >= 0.5 {
		t.Errorf("output still saturated after overshoot: %v", out)
	}
}

func TestSteadyStateAtSetpoint(t *testing.T) {
	c := New(2.3, 0, 2.5).WithOutputLimits(0, 0.5)
	c.SetTarget(180)

	now := t0
	var out float64
	for i := 0; i < 5; i++ {
		out = c.Compute(180, now)
		now = now.Add(500 * time.Millisecond)
	}
	if out != 0 {
		t.Errorf("output at setpoint with no integral = %v, want 0", out)
	}
}

func TestConvergesOnSimplePlant(t *testing.T) {
	c := New(0.01, 0.002, 0).WithOutputLimits(0, 0.5)
	c.SetTarget(200)

	// first-order plant: heats 40 °C per on-second, loses 1% of the rise per tick
	temp := 20.0
	now := t0
	for i := 0; i < 4000; i++ {
		on := c.Compute(temp, now)
		temp += on*40 - (temp-20)*0.01
		now = now.Add(500 * time.Millisecond)
	}
	if math.Abs(temp-200) > 2 {
		t.Errorf("plant settled at %.2f°C, want 200±2", temp)
	}
}
