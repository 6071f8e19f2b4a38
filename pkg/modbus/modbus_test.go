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
package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
)

const testMap = `
modbus:
  host: 192.168.1.40
  slave_id: 1
registers:
  speed:
    address: 8193
    type: holding
    data_type: uint16
    scale: 0.01
    description: frequency reference, % of max
    writable: true
  run:
    address: 8192
    type: holding
    data_type: bool
    writable: true
  output_freq:
    address: 12289
    type: holding
    data_type: int16
    scale: 0.1
  model:
    address: 100
    type: holding
    data_type: uint16
`

type fakeIO struct {
	mu     sync.Mutex
	regs   map[uint16][]byte
	writes int
	err    error
}

func (f *fakeIO) ReadHoldingRegisters(_ context.Context, addr, qty uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.regs[addr], nil
}

func (f *fakeIO) WriteMultipleRegisters(_ context.Context, addr, qty uint16, value []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.regs == nil {
		f.regs = map[uint16][]byte{}
	}
	f.regs[addr] = append([]byte(nil), value...)
	f.writes++
	return nil, nil
}

func newTestClient(t *testing.T) (*Client, *fakeIO) {
	t.Helper()
	cfg, err := ParseConfig([]byte(testMap))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	io := &fakeIO{}
	return newClientWithIO(context.Background(), cfg, io), io
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(testMap))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Modbus.Port != 502 || cfg.Modbus.Timeout != 2 {
		t.Errorf("defaults not applied: %+v", cfg.Modbus)
	}
	if len(cfg.Registers) != 4 {
		t.Errorf("registers = %d, want 4", len(cfg.Registers))
	}
}

func TestParseConfigRejectsBadInput(t *testing.T) {
	if _, err := ParseConfig([]byte("registers: {}\n")); err == nil {
		t.Error("expected error for missing host")
	}
	bad := "modbus: {host: x}\nregisters:\n  r: {address: 1, data_type: uint64}\n"
	if _, err := ParseConfig([]byte(bad)); err == nil {
		t.Error("expected error for unsupported data type")
	}
}

func TestWriteValueAppliesScale(t *testing.T) {
	c, io := newTestClient(t)

	if err := c.WriteValue("speed", 55); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if got := binary.BigEndian.Uint16(io.regs[8193]); got != 5500 {
		t.Errorf("raw speed = %d, want 5500", got)
	}

	if err := c.WriteValue("run", true); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if got := binary.BigEndian.Uint16(io.regs[8192]); got != 1 {
		t.Errorf("raw run = %d, want 1", got)
	}
}

func TestWriteValueRejects(t *testing.T) {
	c, io := newTestClient(t)

	if err := c.WriteValue("nope", 1); err == nil {
		t.Error("expected error for unknown register")
	}
	if err := c.WriteValue("model", 1); err == nil {
		t.Error("expected error for read-only register")
	}
	if err := c.WriteValue("speed", 1000); err == nil {
		t.Error("expected range error")
	}
	if err := c.WriteValue("speed", "fast"); err == nil {
		t.Error("expected type error")
	}
	if io.writes != 0 {
		t.Errorf("rejected writes reached the bus %d times", io.writes)
	}
}

func TestReadValueDecodes(t *testing.T) {
	c, io := newTestClient(t)
	io.regs = map[uint16][]byte{
		12289: {0xFF, 0x9C}, // -100
		100:   {0x01, 0x2C}, // 300
	}

	v, err := c.ReadValue("output_freq")
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := v.(float64); !ok || f < -10.0001 || f > -9.9999 {
		t.Errorf("output_freq = %v (%T), want -10.0", v, v)
	}

	v, err = c.ReadValue("model")
	if err != nil {
		t.Fatal(err)
	}
	if v != uint16(300) {
		t.Errorf("model = %v (%T), want 300", v, v)
	}
}

func TestNonConnErrorIsNotRetried(t *testing.T) {
	c, io := newTestClient(t)
	io.err = errors.New("modbus: exception '2' (illegal data address)")

	if err := c.WriteValue("speed", 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestEncodeFloat32(t *testing.T) {
	raw, n, err := encode(RegisterDef{DataType: "float32"}, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(raw) != 4 {
		t.Fatalf("n=%d len=%d, want 2 and 4", n, len(raw))
	}
	v, err := decode(RegisterDef{DataType: "float32"}, raw)
	if err != nil {
		t.Fatal(err)
	}
	if v != float32(1.5) {
		t.Errorf("decoded %v, want 1.5", v)
	}
}

func TestIsConnError(t *testing.T) {
	if isConnError(nil) {
		t.Error("nil is not a connection error")
	}
	if !isConnError(errors.New("write tcp: broken pipe")) {
		t.Error("broken pipe should be a connection error")
	}
	if isConnError(errors.New("illegal data value")) {
		t.Error("protocol exception should not be a connection error")
	}
}
