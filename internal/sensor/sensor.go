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
package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"roastctl/pkg/logger"
)

var ErrRetriesExhausted = errors.New("sensor read retries exhausted")

// Sensor returns the bean temperature in °C.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

// IIO reads an industrial-I/O thermocouple channel from sysfs, e.g. a
// MAX31856 exposed as in_temp_raw and in_temp_scale in millidegrees.
type IIO struct {
	RawPath   string
	ScalePath string
}

func NewIIO(device string) *IIO {
	return &IIO{
		RawPath:   filepath.Join(device, "in_temp_raw"),
		ScalePath: filepath.Join(device, "in_temp_scale"),
	}
}

func (s *IIO) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := readFloat(s.RawPath)
	if err != nil {
		return 0, err
	}
	scale, err := readFloat(s.ScalePath)
	if err != nil {
		return 0, err
	}
	return raw * scale / 1000, nil
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// Retrying wraps a Sensor with a bounded retry loop. Every failed attempt
// but the last is logged as a warning.
type Retrying struct {
	inner    Sensor
	attempts int
	delay    time.Duration
	log      *logger.Logger
}

func WithRetry(s Sensor, attempts int, delay time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{
		inner:    s,
		attempts: attempts,
		delay:    delay,
		log:      logger.New("Sensor"),
	}
}

func (r *Retrying) Read(ctx context.Context) (float64, error) {
	var lastErr error
	for i := range r.attempts {
		v, err := r.inner.Read(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if i == r.attempts-1 {
			break
		}
		r.log.Warn("read attempt %d/%d failed: %v", i+1, r.attempts, err)

		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, r.attempts, lastErr)
}
