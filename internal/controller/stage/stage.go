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

package stage

import (
	"errors"
	"fmt"
	"time"
)

var ErrThresholdOrder = errors.New("stage thresholds must be strictly increasing")

type Stage struct {
	Name     string
	MinTempC float64
}

func DefaultStages() []Stage {
	return []Stage{
		{Name: "Drying", MinTempC: 0},
		{Name: "Maillard", MinTempC: 160},
		{Name: "First Crack", MinTempC: 200},
		{Name: "Development", MinTempC: 205},
		{Name: "Dark Roast", MinTempC: 215},
	}
}

// Tracker classifies temperatures into roast stages and never moves
// backwards until Reset is called. It is owned by a single run and is
// not safe for concurrent use.
type Tracker struct {
	stages    []Stage
	highest   int
	changedAt time.Time

	now func() time.Time
}

func NewTracker(stages []Stage) (*Tracker, error) {
	if len(stages) == 0 {
		return nil, errors.New("no stages configured")
	}
	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if i > 0 && s.MinTempC <= stages[i-1].MinTempC {
			return nil, fmt.Errorf("%w: %q (%.1f°C) after %q (%.1f°C)", ErrThresholdOrder,
				s.Name, s.MinTempC, stages[i-1].Name, stages[i-1].MinTempC)
		}
	}
	t := &Tracker{
		stages: append([]Stage(nil), stages...),
		now:    time.Now,
	}
	t.changedAt = t.now()
	return t, nil
}

// Classify returns the name of the highest stage reached so far,
// advancing it if tempC qualifies for a later stage.
func (t *Tracker) Classify(tempC float64) string {
	current := 0
	for i, s := range t.stages {
		if tempC >= s.MinTempC {
			current = i
		}
	}
	if current > t.highest {
		t.setIndex(current)
	}
	return t.stages[t.highest].Name
}

// Advance moves to the next stage regardless of temperature.
func (t *Tracker) Advance() string {
	if t.highest < len(t.stages)-1 {
		t.setIndex(t.highest + 1)
	}
	return t.stages[t.highest].Name
}

// SetClock replaces the time source used to stamp stage changes.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
	t.changedAt = now()
}

func (t *Tracker) Reset() {
	t.setIndex(0)
}

func (t *Tracker) Current() string {
	return t.stages[t.highest].Name
}

// Since returns how long the tracker has been in its current stage.
func (t *Tracker) Since(now time.Time) time.Duration {
	return now.Sub(t.changedAt)
}

func (t *Tracker) setIndex(i int) {
	t.highest = i
	t.changedAt = t.now()
}
