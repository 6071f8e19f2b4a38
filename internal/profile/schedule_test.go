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

package profile

import (
	"errors"
	"math"
	"testing"
)

func mustSchedule(t *testing.T, pts ...Point) Schedule {
	t.Helper()
	s, err := NewSchedule(pts)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

func TestInterpolateScenario(t *testing.T) {
	s := mustSchedule(t, Point{0, 60}, Point{60, 80}, Point{120, 80})

	cases := []struct {
		elapsed float64
		want    float64
	}{
		{30, 70},
		{90, 80},
		{150, 80},
	}
	for _, c := range cases {
		if got := s.Interpolate(c.elapsed, -1); got != c.want {
			t.Errorf("Interpolate(%v) = %v, want %v", c.elapsed, got, c.want)
		}
	}
}

func TestInterpolateEmptyReturnsDefault(t *testing.T) {
	var s Schedule
	if got := s.Interpolate(42, 0); got != 0 {
		t.Errorf("empty schedule: got %v, want 0", got)
	}
	if got := s.Interpolate(42, 60); got != 60 {
		t.Errorf("empty schedule: got %v, want 60", got)
	}
}

func TestInterpolateExactPointsAndFlatOutside(t *testing.T) {
	pts := []Point{{10, 100}, {70, 160}, {130, 150}, {200, 210}}
	s := mustSchedule(t, pts...)

	for _, p := range pts {
		if got := s.Interpolate(p.ElapsedS, 0); got != p.Value {
			t.Errorf("at %vs: got %v, want %v", p.ElapsedS, got, p.Value)
		}
	}
	for _, e := range []float64{-5, 0, 9.99} {
		if got := s.Interpolate(e, 0); got != 100 {
			t.Errorf("before first (%v): got %v, want 100", e, got)
		}
	}
	for _, e := range []float64{200.01, 500, 1e6} {
		if got := s.Interpolate(e, 0); got != 210 {
			t.Errorf("after last (%v): got %v, want 210", e, got)
		}
	}
}

func TestInterpolateMonotonicBetweenPoints(t *testing.T) {
	s := mustSchedule(t, Point{0, 20}, Point{100, 200}, Point{200, 150})

	prev := s.Interpolate(0, 0)
	for e := 0.5; e <= 100; e += 0.5 {
		v := s.Interpolate(e, 0)
		if v < prev {
			t.Fatalf("rising segment not monotonic at %v: %v < %v", e, v, prev)
		}
		prev = v
	}
	for e := 100.5; e <= 200; e += 0.5 {
		v := s.Interpolate(e, 0)
		if v > prev {
			t.Fatalf("falling segment not monotonic at %v: %v > %v", e, v, prev)
		}
		prev = v
	}

	// continuity across the middle point
	left := s.Interpolate(100-1e-9, 0)
	right := s.Interpolate(100+1e-9, 0)
	if math.Abs(left-right) > 1e-6 {
		t.Errorf("discontinuity at 100s: %v vs %v", left, right)
	}
}

func TestNewScheduleSortsInput(t *testing.T) {
	s := mustSchedule(t, Point{120, 200}, Point{0, 100}, Point{60, 150})
	pts := s.Points()
	for i := 1; i < len(pts); i++ {
		if pts[i-1].ElapsedS >= pts[i].ElapsedS {
			t.Fatalf("points not sorted: %+v", pts)
		}
	}
	if got := s.Interpolate(30, 0); got != 125 {
		t.Errorf("Interpolate(30) = %v, want 125", got)
	}
}

func TestNewScheduleRejectsDuplicates(t *testing.T) {
	_, err := NewSchedule([]Point{{0, 100}, {60, 150}, {60, 160}})
	if !errors.Is(err, ErrDuplicatePoint) {
		t.Fatalf("expected ErrDuplicatePoint, got %v", err)
	}
}

func TestNewScheduleRejectsNegativeTime(t *testing.T) {
	if _, err := NewSchedule([]Point{{-1, 100}}); err == nil {
		t.Fatal("expected error for negative elapsed time")
	}
}
