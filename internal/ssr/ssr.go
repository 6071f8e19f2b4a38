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
// Package ssr drives a solid-state relay with time-proportioned power.
package ssr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"roastctl/pkg/logger"
)

var ErrClosed = errors.New("ssr: driver closed")

// Output is a single digital output line.
type Output interface {
	Set(on bool) error
	Close() error
}

// Driver turns the heater on for part of each period. One Drive call
// covers exactly one period and blocks until it has elapsed.
type Driver struct {
	out Output
	log *logger.Logger

	mu      sync.Mutex
	closed  bool
	cleanup sync.Once
	err     error
}

func NewDriver(out Output) *Driver {
	return &Driver{out: out, log: logger.New("SSR")}
}

// Drive holds the output on for `on` then off for the rest of period.
// Cancelling ctx forces the output off and returns ctx.Err().
func (d *Driver) Drive(ctx context.Context, on, period time.Duration) error {
	if on < 0 {
		on = 0
	}
	if on > period {
		on = period
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	if on > 0 {
		if err := d.out.Set(true); err != nil {
			return fmt.Errorf("ssr on: %w", err)
		}
		if err := sleepCtx(ctx, on); err != nil {
			d.forceOff()
			return err
		}
	}
	if err := d.out.Set(false); err != nil {
		return fmt.Errorf("ssr off: %w", err)
	}
	return sleepCtx(ctx, period-on)
}

func (d *Driver) Off() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.out.Set(false)
}

// Cleanup turns the output off and releases it. Later calls return the
// first call's result and every later Drive fails with ErrClosed.
func (d *Driver) Cleanup() error {
	d.cleanup.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.closed = true
		offErr := d.out.Set(false)
		closeErr := d.out.Close()
		d.err = errors.Join(offErr, closeErr)
		if d.err != nil {
			d.log.Error("cleanup: %v", d.err)
		} else {
			d.log.Info("Output released")
		}
	})
	return d.err
}

func (d *Driver) forceOff() {
	if err := d.out.Set(false); err != nil {
		d.log.Error("force off: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
