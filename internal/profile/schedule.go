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
	"fmt"
	"sort"
)

var ErrDuplicatePoint = errors.New("duplicate elapsed time in schedule")

// Point is one (elapsed, value) pair of a schedule. For temperature
// schedules Value is °C, for fan schedules it is a percentage.
type Point struct {
	ElapsedS float64
	Value    float64
}

// Schedule is a time-sorted list of points with unique elapsed times.
// It is built once by NewSchedule and never mutated.
type Schedule struct {
	points []Point
}

// NewSchedule sorts the points by elapsed time and rejects duplicates
// and negative times.
func NewSchedule(points []Point) (Schedule, error) {
	sorted := append([]Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ElapsedS < sorted[j].ElapsedS
	})
	for i, p := range sorted {
		if p.ElapsedS < 0 {
			return Schedule{}, fmt.Errorf("point %d: negative elapsed time %.1fs", i, p.ElapsedS)
		}
		if i > 0 && sorted[i-1].ElapsedS == p.ElapsedS {
			return Schedule{}, fmt.Errorf("%w: %.1fs", ErrDuplicatePoint, p.ElapsedS)
		}
	}
	return Schedule{points: sorted}, nil
}

func (s Schedule) Len() int {
	return len(s.points)
}

func (s Schedule) Points() []Point {
	return append([]Point(nil), s.points...)
}

// Interpolate returns the value at elapsed seconds. An empty schedule
// returns def. Before the first point and after the last point the
// value is held flat.
func (s Schedule) Interpolate(elapsed, def float64) float64 {
	n := len(s.points)
	if n == 0 {
		return def
	}
	if elapsed <= s.points[0].ElapsedS {
		return s.points[0].Value
	}
	if elapsed >= s.points[n-1].ElapsedS {
		return s.points[n-1].Value
	}

	// first point strictly after elapsed; 1 <= i <= n-1 here
	i := sort.Search(n, func(i int) bool { return s.points[i].ElapsedS > elapsed })
	p0, p1 := s.points[i-1], s.points[i]
	ratio := (elapsed - p0.ElapsedS) / (p1.ElapsedS - p0.ElapsedS)
	return p0.Value + ratio*(p1.Value-p0.Value)
}
