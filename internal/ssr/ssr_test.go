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
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDriveBlocksForFullPeriod(t *testing.T) {
	out := &FakeOutput{}
	d := NewDriver(out)

	start := time.Now()
	if err := d.Drive(context.Background(), 20*time.Millisecond, 60*time.Millisecond); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	if el := time.Since(start); el < 60*time.Millisecond {
		t.Errorf("Drive returned after %v, want >= 60ms", el)
	}

	h := out.History()
	if len(h) != 2 || !h[0].On || h[1].On {
		t.Fatalf("transitions = %+v, want on then off", h)
	}
	if onFor := h[1].At.Sub(h[0].At); onFor < 20*time.Millisecond {
		t.Errorf("on for %v, want >= 20ms", onFor)
	}
}

func TestDriveZeroNeverTurnsOn(t *testing.T) {
	out := &FakeOutput{}
	d := NewDriver(out)
	if err := d.Drive(context.Background(), -time.Second, 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	for _, c := range out.History() {
		if c.On {
			t.Fatal("output turned on for zero duty")
		}
	}
}

func TestDriveCancelForcesOff(t *testing.T) {
	out := &FakeOutput{}
	d := NewDriver(out)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := d.Drive(ctx, time.Hour, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if on, _ := out.State(); on {
		t.Error("output left on after cancel")
	}
}

func TestCleanupIsIdempotentAndBlocksDrive(t *testing.T) {
	out := &FakeOutput{}
	d := NewDriver(out)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.Cleanup(); err != nil {
				t.Errorf("Cleanup: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, closed := out.State(); closed != 1 {
		t.Errorf("Close called %d times, want 1", closed)
	}
	if err := d.Drive(context.Background(), time.Millisecond, time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Drive after cleanup: err = %v, want ErrClosed", err)
	}
	if err := d.Off(); err != nil {
		t.Errorf("Off after cleanup: %v", err)
	}
}

func TestDriveReportsOutputError(t *testing.T) {
	out := &FakeOutput{SetErr: errors.New("line busy")}
	d := NewDriver(out)
	if err := d.Drive(context.Background(), time.Millisecond, 2*time.Millisecond); err == nil {
		t.Error("expected error from failing output")
	}
}
