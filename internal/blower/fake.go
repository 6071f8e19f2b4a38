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
package blower

import "sync"

// Fake records requested speeds.
type Fake struct {
	mu        sync.Mutex
	Speeds    []int
	Shutdowns int
	Err       error
}

func (f *Fake) SetSpeed(pct int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Speeds = append(f.Speeds, pct)
	return nil
}

func (f *Fake) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Shutdowns++
	return nil
}

func (f *Fake) Snapshot() (speeds []int, shutdowns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.Speeds...), f.Shutdowns
}
