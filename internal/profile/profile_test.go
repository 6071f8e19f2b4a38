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

package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "city.json", `{
		"name": "City Roast",
		"description": "medium",
		"pid_gains": [3.0, 0.5, 1.0],
		"pwm_period": 1.0,
		"preheat": {"temp_c": 180},
		"roast_profile": [[120, 200], [0, 150], [60, 170]],
		"fan_profile": [[0, 100], [300, 60]]
	}`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "City Roast" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Gains != (Gains{Kp: 3, Ki: 0.5, Kd: 1}) {
		t.Errorf("Gains = %+v", p.Gains)
	}
	if p.PWMPeriodS != 1.0 {
		t.Errorf("PWMPeriodS = %v", p.PWMPeriodS)
	}
	if p.Preheat == nil || p.Preheat.TempC != 180 {
		t.Errorf("Preheat = %+v", p.Preheat)
	}
	if p.Roast.Len() != 3 {
		t.Fatalf("Roast.Len() = %d", p.Roast.Len())
	}
	if first := p.Roast.Points()[0]; first.ElapsedS != 0 || first.Value != 150 {
		t.Errorf("roast points not sorted, first = %+v", first)
	}
	if got := p.Fan.Interpolate(150, 100); got != 80 {
		t.Errorf("fan at 150s = %v, want 80", got)
	}
	if len(p.Stages) != 5 || p.Stages[0].Name != "Drying" {
		t.Errorf("default stages not applied: %+v", p.Stages)
	}
}

func TestLoadYAMLWithStages(t *testing.T) {
	path := writeFile(t, "light.yaml", `
name: Light
roast_profile:
  - [0, 150]
  - [240, 205]
stages:
  - {name: Drying, min_temp_c: 0}
  - {name: Browning, min_temp_c: 150}
  - {name: Crack, min_temp_c: 196}
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Gains != defaultGains {
		t.Errorf("expected default gains, got %+v", p.Gains)
	}
	if p.PWMPeriodS != defaultPWMPeriod {
		t.Errorf("expected default period, got %v", p.PWMPeriodS)
	}
	if p.Preheat != nil {
		t.Errorf("expected no preheat, got %+v", p.Preheat)
	}
	if len(p.Stages) != 3 || p.Stages[2].Name != "Crack" {
		t.Errorf("Stages = %+v", p.Stages)
	}
}

func TestLoadEmptyProfileIsValid(t *testing.T) {
	p, err := Load(writeFile(t, "empty.json", `{"name": "hold"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Roast.Len() != 0 {
		t.Errorf("expected empty schedule, got %d points", p.Roast.Len())
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"dup.json":     `{"roast_profile": [[0, 100], [0, 120]]}`,
		"gains.json":   `{"pid_gains": [1, 2], "roast_profile": []}`,
		"period.json":  `{"pwm_period": 0}`,
		"point.json":   `{"roast_profile": [[0, 100, 3]]}`,
		"preheat.json": `{"preheat": {}}`,
		"fan.json":     `{"fan_profile": [[0, 120]]}`,
		"stages.json":  `{"stages": [{"name": "A", "min_temp_c": 100}, {"name": "B", "min_temp_c": 50}]}`,
		"garbage.json": `{not json`,
		"garbage.yaml":  "name: [unterminated",
	}
	for name, content := range cases {
		if _, err := Load(writeFile(t, name, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadDuplicateIsSentinel(t *testing.T) {
	_, err := Load(writeFile(t, "dup.json", `{"roast_profile": [[30, 100], [30, 120]]}`))
	if !errors.Is(err, ErrDuplicatePoint) {
		t.Errorf("expected ErrDuplicatePoint, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "read profile") {
		t.Errorf("expected read error, got %v", err)
	}
}
