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
// Package blower drives the roaster's fan through an optional output stage.
package blower

import (
	"errors"
	"sync"

	"roastctl/pkg/logger"
)

var errShutdown = errors.New("blower: already shut down")

type Blower interface {
	SetSpeed(pct int) error
	Shutdown() error
}

type currentMeter interface {
	MeasureCurrent() (float64, error)
}

// Optional wraps a Blower that may be missing or may fail mid-roast. A
// roast keeps going without fan control: failures are logged and the
// inner driver is dropped.
type Optional struct {
	mu    sync.Mutex
	inner Blower
	once  sync.Once
	log   *logger.Logger
}

func NewOptional(b Blower) *Optional {
	o := &Optional{inner: b, log: logger.New("Fan")}
	if b == nil {
		o.log.Warn("Fan controller not available")
	}
	return o
}

func (o *Optional) SetSpeed(pct int) error {
	pct = clampPct(pct)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inner == nil {
		o.log.Warn("Fan control unavailable - requested %d%%", pct)
		return nil
	}
	if err := o.inner.SetSpeed(pct); err != nil {
		o.log.Error("fan control failed, disabling: %v", err)
		if serr := o.inner.Shutdown(); serr != nil {
			o.log.Warn("fan shutdown after failure: %v", serr)
		}
		o.inner = nil
		return nil
	}
	o.log.Info("Fan speed set to %d%%", pct)
	if m, ok := o.inner.(currentMeter); ok && logger.IsDebug() {
		if amps, err := m.MeasureCurrent(); err != nil {
			o.log.Debug("fan current: %v", err)
		} else {
			o.log.Debug("Fan drawing %.3fA at %d%%", amps, pct)
		}
	}
	return nil
}

// Shutdown stops the fan once; later calls do nothing.
func (o *Optional) Shutdown() error {
	o.once.Do(func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.inner == nil {
			return
		}
		if err := o.inner.Shutdown(); err != nil {
			o.log.Warn("Fan shutdown failed: %v", err)
		} else {
			o.log.Info("Fan controller shut down")
		}
		o.inner = nil
	})
	return nil
}

func clampPct(pct int) int {
	return max(0, min(100, pct))
}
