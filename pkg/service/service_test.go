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
package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func waitCode(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case code := <-ch:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("services did not stop")
		return -1
	}
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestFirstReturnCancelsOthers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	code := waitCode(t, Start(ctx, cancel, []Runnable{
		runFunc(func(context.Context) error { return nil }),
		runFunc(blockUntilDone),
	}))
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestErrorSetsExitCode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	code := waitCode(t, Start(ctx, cancel, []Runnable{
		runFunc(func(context.Context) error { return errors.New("sensor gone") }),
		runFunc(blockUntilDone),
	}))
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	code := waitCode(t, Start(ctx, cancel, []Runnable{
		runFunc(func(context.Context) error { panic("boom") }),
		runFunc(blockUntilDone),
	}))
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestExternalCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Start(ctx, cancel, []Runnable{runFunc(blockUntilDone), runFunc(blockUntilDone)})
	cancel()
	if code := waitCode(t, ch); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}
