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
package sensor

import (
	"context"
	"sync"
)

// Fake replays a scripted series of readings and errors.
type Fake struct {
	mu    sync.Mutex
	steps []FakeStep
	last  float64
	Calls int
}

type FakeStep struct {
	TempC float64
	Err   error
}

func NewFake(steps ...FakeStep) *Fake {
	return &Fake{steps: steps}
}

// Read returns the next scripted step; once exhausted it repeats the last
// successful temperature.
func (f *Fake) Read(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if len(f.steps) == 0 {
		return f.last, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	if s.Err != nil {
		return 0, s.Err
	}
	f.last = s.TempC
	return s.TempC, nil
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
