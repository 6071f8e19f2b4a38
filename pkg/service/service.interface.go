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
	"runtime/debug"
	"sync"

	"roastctl/pkg/logger"
)

// Runnable is the common interface for all services. Run blocks until ctx
// is done or the service finishes on its own.
type Runnable interface {
	Run(ctx context.Context) error
}

// Start runs every service in its own goroutine. The first service to
// return cancels the rest. The returned channel yields the process exit
// code once all services have stopped: 0, or 1 if any service failed or
// panicked.
func Start(ctx context.Context, ctxCancel context.CancelFunc, services []Runnable) <-chan int {
	wg := &sync.WaitGroup{}

	var mu sync.Mutex
	var exitCode int
	var exitCh = make(chan int, 1)

	log := logger.New("Service")
	fail := func() {
		mu.Lock()
		exitCode = 1
		mu.Unlock()
	}

	for _, s := range services {
		service := s
		wg.Go(func() {
			defer ctxCancel()
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic: %v\n%s", r, debug.Stack())
					fail()
				}
			}()
			if err := service.Run(ctx); err != nil {
				log.Error("%v", err)
				fail()
			}
		})
	}

	go func() {
		// wait for all services to stop
		wg.Wait()
		mu.Lock()
		code := exitCode
		mu.Unlock()
		exitCh <- code
	}()

	return exitCh
}
