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
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type SSRConfig struct {
	Chip string `json:"chip"`
	Pin  int    `json:"pin"` // BCM numbering
}

type SensorConfig struct {
	// "iio" (sysfs industrial-I/O device) or "hwmon" (gopsutil sensor key)
	Driver    string `json:"driver"`
	IIODevice string `json:"iio_device"`
	HwmonKey  string `json:"hwmon_key"`

	RetryAttempts int `json:"retry_attempts"`
	RetryDelayMS  int `json:"retry_delay_ms"`
}

func (s SensorConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMS) * time.Millisecond
}

type SCPIConfig struct {
	Addr       string  `json:"addr"` // host:port of the LXI socket
	Channel    int     `json:"channel"`
	Voltage    float64 `json:"voltage"`
	MaxCurrent float64 `json:"max_current"`
}

type ModbusConfig struct {
	RegisterMap string `json:"register_map"` // YAML file
}

type BlowerConfig struct {
	// "none", "scpi" or "modbus"
	Driver string       `json:"driver"`
	SCPI   SCPIConfig   `json:"scpi"`
	Modbus ModbusConfig `json:"modbus"`

	// fan speed while waiting for the drop
	HoldSpeedPct int `json:"hold_speed_pct"`
}

type ControllerConfig struct {
	// target used when a profile has no roast points
	DefaultSetpointC float64 `json:"default_setpoint_c"`
	// preheat counts as reached within this many °C of the target
	PreheatToleranceC float64 `json:"preheat_tolerance_c"`
}

type LoggingConfig struct {
	RoastDir string `json:"roast_dir"`
}

type KeypadConfig struct {
	// listen address for the websocket keypad, empty disables it
	RemoteAddr string `json:"remote_addr"`
}

type Config struct {
	SSR        SSRConfig        `json:"ssr"`
	Sensor     SensorConfig     `json:"sensor"`
	Blower     BlowerConfig     `json:"blower"`
	Controller ControllerConfig `json:"controller"`
	Logging    LoggingConfig    `json:"logging"`
	Keypad     KeypadConfig     `json:"keypad"`
}

// LoadFile reads the hardware config at path. A missing file yields the
// defaults.
func LoadFile(path string) (*Config, error) {
	// zero is meaningful for these, so their defaults are set before decoding
	c := Config{
		Blower:     BlowerConfig{HoldSpeedPct: 20},
		Controller: ControllerConfig{DefaultSetpointC: 60, PreheatToleranceC: 2},
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open config: %w", err)
	default:
		defer f.Close()
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", filepath.Base(path), err)
		}
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.SSR.Chip == "" {
		c.SSR.Chip = "gpiochip0"
	}
	if c.SSR.Pin == 0 {
		c.SSR.Pin = 26
	}
	if c.Sensor.Driver == "" {
		c.Sensor.Driver = "iio"
	}
	if c.Sensor.IIODevice == "" {
		c.Sensor.IIODevice = "/sys/bus/iio/devices/iio:device0"
	}
	if c.Sensor.HwmonKey == "" {
		c.Sensor.HwmonKey = "max31855"
	}
	if c.Sensor.RetryAttempts == 0 {
		c.Sensor.RetryAttempts = 5
	}
	if c.Sensor.RetryDelayMS == 0 {
		c.Sensor.RetryDelayMS = 100
	}
	if c.Blower.Driver == "" {
		c.Blower.Driver = "none"
	}
	if c.Blower.SCPI.Channel == 0 {
		c.Blower.SCPI.Channel = 1
	}
	if c.Blower.SCPI.Voltage == 0 {
		c.Blower.SCPI.Voltage = 16
	}
	if c.Blower.SCPI.MaxCurrent == 0 {
		c.Blower.SCPI.MaxCurrent = 1
	}
	if c.Logging.RoastDir == "" {
		c.Logging.RoastDir = "var/roasts"
	}
}

func (c *Config) validate() error {
	switch c.Sensor.Driver {
	case "iio", "hwmon":
	default:
		return fmt.Errorf("sensor.driver: unknown driver %q", c.Sensor.Driver)
	}
	switch c.Blower.Driver {
	case "none":
	case "scpi":
		if c.Blower.SCPI.Addr == "" {
			return errors.New("blower.scpi.addr is required for the scpi driver")
		}
	case "modbus":
		if c.Blower.Modbus.RegisterMap == "" {
			return errors.New("blower.modbus.register_map is required for the modbus driver")
		}
	default:
		return fmt.Errorf("blower.driver: unknown driver %q", c.Blower.Driver)
	}
	if c.Blower.HoldSpeedPct < 0 || c.Blower.HoldSpeedPct > 100 {
		return fmt.Errorf("blower.hold_speed_pct %d outside 0-100", c.Blower.HoldSpeedPct)
	}
	if c.Controller.PreheatToleranceC < 0 {
		return fmt.Errorf("controller.preheat_tolerance_c must not be negative")
	}
	if c.Sensor.RetryAttempts < 1 {
		return fmt.Errorf("sensor.retry_attempts must be at least 1")
	}
	return nil
}
