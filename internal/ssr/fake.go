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
package ssr

import (
	"sync"
	"time"
)

// FakeOutput records every transition for tests.
type FakeOutput struct {
	mu      sync.Mutex
	On      bool
	Changes []Change
	Closed  int
	SetErr  error
}

type Change struct {
	On bool
	At time.Time
}

func (f *FakeOutput) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.On = on
	f.Changes = append(f.Changes, Change{On: on, At: time.Now()})
	return nil
}

func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.On = false
	f.Closed++
	return nil
}

func (f *FakeOutput) State() (on bool, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.On, f.Closed
}

func (f *FakeOutput) History() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Change(nil), f.Changes...)
}
