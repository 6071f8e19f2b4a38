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
package override

import (
	"sync"

	"roastctl/pkg/logger"
)

const TrimStepC = 5.0

// Snapshot is a consistent copy of the operator's overrides.
type Snapshot struct {
	FanPct         *int // nil means automatic
	TrimC          float64
	ResetRequested bool
	StageAdvance   bool
	StageReset     bool
	QuitRequested  bool
}

// Channel carries operator input from the keypad listener to the control
// loop. All fields are guarded by one mutex so a snapshot is never torn.
type Channel struct {
	mu    sync.Mutex
	state Snapshot

	dropOnce sync.Once
	dropped  chan struct{}
	quitOnce sync.Once
	quit     chan struct{}

	log *logger.Logger
}

func New() *Channel {
	return &Channel{
		dropped: make(chan struct{}),
		quit:    make(chan struct{}),
		log:     logger.New("Override"),
	}
}

// HandleKey applies a single keypress. Unknown keys are ignored.
func (c *Channel) HandleKey(k rune) {
	switch {
	case k >= '1' && k <= '9':
		c.setFan(int(k-'0') * 10)
	case k == '0':
		c.setFan(100)
	case k == '+' || k == '=':
		c.trim(TrimStepC)
	case k == '-' || k == '_':
		c.trim(-TrimStepC)
	case k == 'r':
		c.mu.Lock()
		c.state.ResetRequested = true
		c.state.FanPct = nil
		c.state.TrimC = 0
		c.mu.Unlock()
		c.log.Info("Reset: trim cleared, fan automatic")
	case k == 'n':
		c.mu.Lock()
		c.state.StageAdvance = true
		c.mu.Unlock()
		c.log.Info("Stage advance requested")
	case k == 'z':
		c.mu.Lock()
		c.state.StageReset = true
		c.mu.Unlock()
		c.log.Info("Stage reset requested")
	case k == '\n' || k == '\r':
		c.Drop()
	case k == 'q':
		c.Quit()
	}
}

func (c *Channel) setFan(pct int) {
	c.mu.Lock()
	c.state.FanPct = &pct
	c.mu.Unlock()
	c.log.Info("Fan override %d%%", pct)
}

func (c *Channel) trim(delta float64) {
	c.mu.Lock()
	c.state.TrimC += delta
	t := c.state.TrimC
	c.mu.Unlock()
	c.log.Info("Target trim %+.0f°C", t)
}

func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.FanPct != nil {
		pct := *s.FanPct
		s.FanPct = &pct
	}
	return s
}

func (c *Channel) AckReset() {
	c.mu.Lock()
	c.state.ResetRequested = false
	c.mu.Unlock()
}

func (c *Channel) AckStageAdvance() {
	c.mu.Lock()
	c.state.StageAdvance = false
	c.mu.Unlock()
}

func (c *Channel) AckStageReset() {
	c.mu.Lock()
	c.state.StageReset = false
	c.mu.Unlock()
}

// Drop signals that beans went into the drum. Only the first call counts.
func (c *Channel) Drop() {
	c.dropOnce.Do(func() {
		c.log.Info("Drop signalled")
		close(c.dropped)
	})
}

func (c *Channel) Dropped() <-chan struct{} {
	return c.dropped
}

func (c *Channel) Quit() {
	c.quitOnce.Do(func() {
		c.mu.Lock()
		c.state.QuitRequested = true
		c.mu.Unlock()
		c.log.Info("Quit requested")
		close(c.quit)
	})
}

func (c *Channel) QuitCh() <-chan struct{} {
	return c.quit
}
