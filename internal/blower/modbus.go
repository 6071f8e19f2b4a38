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

import (
	"context"
	"fmt"
	"sync"

	"roastctl/pkg/logger"
	"roastctl/pkg/modbus"
)

// Register names expected in the Modbus register map.
const (
	RegSpeed = "speed" // percent of max frequency
	RegRun   = "run"
)

type registerWriter interface {
	WriteValue(name string, value any) error
	Close() error
}

// Modbus drives a VFD or fan controller over Modbus TCP.
type Modbus struct {
	mu      sync.Mutex
	regs    registerWriter
	running bool
	closed  bool
	log     *logger.Logger
}

// DialModbus loads the YAML register map at mapPath and connects.
func DialModbus(ctx context.Context, mapPath string) (*Modbus, error) {
	cfg, err := modbus.LoadConfig(mapPath)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{RegSpeed, RegRun} {
		if _, ok := cfg.Registers[name]; !ok {
			return nil, fmt.Errorf("modbus register map %s: missing %q register", mapPath, name)
		}
	}
	client, err := modbus.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if v, err := client.ReadValue(RegSpeed); err == nil {
		logger.New("Fan").Info("VFD speed reference at connect: %v", v)
	}
	return newModbus(client), nil
}

func newModbus(regs registerWriter) *Modbus {
	return &Modbus{regs: regs, log: logger.New("VFD")}
}

func (m *Modbus) SetSpeed(pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errShutdown
	}
	if err := m.regs.WriteValue(RegSpeed, clampPct(pct)); err != nil {
		return err
	}
	if !m.running && pct > 0 {
		if err := m.regs.WriteValue(RegRun, true); err != nil {
			return err
		}
		m.running = true
	}
	return nil
}

func (m *Modbus) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var firstErr error
	for _, w := range []struct {
		name string
		v    any
	}{{RegSpeed, 0}, {RegRun, false}} {
		if err := m.regs.WriteValue(w.name, w.v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.running = false
	if err := m.regs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
