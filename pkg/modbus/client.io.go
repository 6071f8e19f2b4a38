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
	"encoding/binary"
	"fmt"
	"math"
)

// ReadValue reads a register by name. Scaled registers decode to float64;
// unscaled ones to int16, uint16, float32 or bool by data type.
func (c *Client) ReadValue(name string) (any, error) {
	regDef, ok := c.config.Registers[name]
	if !ok {
		return nil, fmt.Errorf("register %q not configured", name)
	}

	n := registerCount(regDef.DataType)
	raw, err := c.ReadRegisters(c.ctx, regDef.Address, n)
	if err != nil {
		return nil, fmt.Errorf("register read failed for %s: %w", name, err)
	}
	return decode(regDef, raw)
}

// WriteValue writes an engineering value (any numeric type or bool) into
// a named register, applying the register's scale and offset.
func (c *Client) WriteValue(name string, value any) error {
	regDef, ok := c.config.Registers[name]
	if !ok {
		return fmt.Errorf("register %q not configured", name)
	}
	if !regDef.Writable {
		return fmt.Errorf("register %q is read-only", name)
	}

	c.log.Debug("WriteRegister '%s' <- %v", name, value)

	raw, n, err := encode(regDef, value)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}
	if err := c.WriteRegisters(c.ctx, regDef.Address, n, raw); err != nil {
		return fmt.Errorf("failed to write register %q: %w", name, err)
	}
	return nil
}

func encode(regDef RegisterDef, value any) ([]byte, uint16, error) {
	// all 16 & 32 bit numeric values can be represented by a float64
	valf64, err := toFloat64(value)
	if err != nil {
		return nil, 0, err
	}
	if regDef.Scale != 0 {
		valf64 = (valf64 - regDef.Offset) / regDef.Scale
	}

	switch regDef.DataType {
	case "float32":
		if valf64 > math.MaxFloat32 || valf64 < -math.MaxFloat32 {
			return nil, 0, fmt.Errorf("value %v out of float32 range", valf64)
		}
		return float32ToBytes(float32(valf64)), 2, nil

	case "int16":
		ival := int64(math.Round(valf64))
		if ival < math.MinInt16 || ival > math.MaxInt16 {
			return nil, 0, fmt.Errorf("value %v out of int16 range", valf64)
		}
		return uint16ToBytes(uint16(int16(ival))), 1, nil

	case "uint16":
		r := math.Round(valf64)
		if r < 0 || r > math.MaxUint16 {
			return nil, 0, fmt.Errorf("value %v out of uint16 range", valf64)
		}
		return uint16ToBytes(uint16(r)), 1, nil

	case "bool":
		if valf64 != 0 {
			return uint16ToBytes(1), 1, nil
		}
		return uint16ToBytes(0), 1, nil

	default:
		return nil, 0, fmt.Errorf("unsupported data type %q", regDef.DataType)
	}
}

func decode(regDef RegisterDef, raw []byte) (any, error) {
	if len(raw) < int(registerCount(regDef.DataType))*2 {
		return nil, fmt.Errorf("insufficient data: %d bytes", len(raw))
	}

	var valf64 float64
	switch regDef.DataType {
	case "float32":
		f := math.Float32frombits(binary.BigEndian.Uint32(raw))
		if regDef.Scale == 0 {
			return f, nil
		}
		valf64 = float64(f)

	case "int16":
		v := int16(binary.BigEndian.Uint16(raw))
		if regDef.Scale == 0 {
			return v, nil
		}
		valf64 = float64(v)

	case "uint16":
		v := binary.BigEndian.Uint16(raw)
		if regDef.Scale == 0 {
			return v, nil
		}
		valf64 = float64(v)

	case "bool":
		return binary.BigEndian.Uint16(raw) != 0, nil

	default:
		return nil, fmt.Errorf("unsupported data type %q", regDef.DataType)
	}

	return valf64*regDef.Scale + regDef.Offset, nil
}

// registerCount returns 0 for unknown data types.
func registerCount(dt string) uint16 {
	switch dt {
	case "uint16", "int16", "bool":
		return 1
	case "float32":
		return 2
	default:
		return 0
	}
}

func uint16ToBytes(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

func float32ToBytes(f float32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(f))
	return buf
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value is not a numeric or bool type (got %T)", v)
	}
}
