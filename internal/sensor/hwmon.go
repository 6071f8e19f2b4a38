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
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Hwmon reads a thermocouple exposed through the kernel hwmon class,
// selected by its gopsutil sensor key (e.g. "max31855_temp1_input").
type Hwmon struct {
	Key string

	// replaced in tests
	list func(ctx context.Context) ([]host.TemperatureStat, error)
}

func NewHwmon(key string) *Hwmon {
	return &Hwmon{Key: key, list: host.SensorsTemperaturesWithContext}
}

func (s *Hwmon) Read(ctx context.Context) (float64, error) {
	stats, err := s.list(ctx)
	if err != nil && len(stats) == 0 {
		return 0, fmt.Errorf("hwmon: %w", err)
	}
	for _, st := range stats {
		if st.SensorKey == s.Key || strings.HasPrefix(st.SensorKey, s.Key+"_") {
			return st.Temperature, nil
		}
	}
	return 0, fmt.Errorf("hwmon: sensor %q not found", s.Key)
}
