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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"roastctl/internal/controller/stage"
	"roastctl/pkg/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultPWMPeriod = 0.5 // seconds
)

var defaultGains = Gains{Kp: 2.3, Ki: 0.25, Kd: 2.5}

type Gains struct {
	Kp, Ki, Kd float64
}

type Preheat struct {
	TempC float64
}

// Profile is a validated roast profile ready to hand to the controller.
type Profile struct {
	Name        string
	Description string
	Gains       Gains
	PWMPeriodS  float64
	Preheat     *Preheat
	Roast       Schedule // °C over roast-elapsed seconds
	Fan         Schedule // % over roast-elapsed seconds, may be empty
	Stages      []stage.Stage
}

// file mirrors the on-disk layout shared by the JSON and YAML formats.
type file struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	PIDGains    []float64   `json:"pid_gains" yaml:"pid_gains"`
	PWMPeriod   *float64    `json:"pwm_period" yaml:"pwm_period"`
	Preheat     *preheat    `json:"preheat" yaml:"preheat"`
	Roast       [][]float64 `json:"roast_profile" yaml:"roast_profile"`
	Fan         [][]float64 `json:"fan_profile" yaml:"fan_profile"`
	Stages      []stageDef  `json:"stages" yaml:"stages"`
}

type preheat struct {
	TempC *float64 `json:"temp_c" yaml:"temp_c"`
}

type stageDef struct {
	Name     string  `json:"name" yaml:"name"`
	MinTempC float64 `json:"min_temp_c" yaml:"min_temp_c"`
}

// Load reads a JSON or YAML (.yml/.yaml) profile and validates it.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", filepath.Base(path), err)
	}

	p, err := f.build()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", filepath.Base(path), err)
	}

	logger.New("Profile").Info("Loaded profile '%s': %d points", p.Name, p.Roast.Len())
	return p, nil
}

func (f *file) build() (*Profile, error) {
	p := &Profile{
		Name:        f.Name,
		Description: f.Description,
		Gains:       defaultGains,
		PWMPeriodS:  defaultPWMPeriod,
		Stages:      stage.DefaultStages(),
	}

	if f.PIDGains != nil {
		if len(f.PIDGains) != 3 {
			return nil, fmt.Errorf("pid_gains: want 3 values [kp, ki, kd], got %d", len(f.PIDGains))
		}
		p.Gains = Gains{Kp: f.PIDGains[0], Ki: f.PIDGains[1], Kd: f.PIDGains[2]}
	}

	if f.PWMPeriod != nil {
		if *f.PWMPeriod <= 0 {
			return nil, fmt.Errorf("pwm_period must be positive, got %v", *f.PWMPeriod)
		}
		p.PWMPeriodS = *f.PWMPeriod
	}

	if f.Preheat != nil {
		if f.Preheat.TempC == nil {
			return nil, fmt.Errorf("preheat: missing temp_c")
		}
		p.Preheat = &Preheat{TempC: *f.Preheat.TempC}
	}

	var err error
	if p.Roast, err = toSchedule(f.Roast); err != nil {
		return nil, fmt.Errorf("roast_profile: %w", err)
	}
	if p.Fan, err = toSchedule(f.Fan); err != nil {
		return nil, fmt.Errorf("fan_profile: %w", err)
	}
	for _, pt := range p.Fan.points {
		if pt.Value < 0 || pt.Value > 100 {
			return nil, fmt.Errorf("fan_profile: speed %v%% outside 0-100", pt.Value)
		}
	}

	if len(f.Stages) > 0 {
		p.Stages = make([]stage.Stage, len(f.Stages))
		for i, s := range f.Stages {
			p.Stages[i] = stage.Stage{Name: s.Name, MinTempC: s.MinTempC}
		}
		// validates ordering
		if _, err := stage.NewTracker(p.Stages); err != nil {
			return nil, fmt.Errorf("stages: %w", err)
		}
	}

	return p, nil
}

func toSchedule(raw [][]float64) (Schedule, error) {
	points := make([]Point, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return Schedule{}, fmt.Errorf("point %d: want [seconds, value], got %v", i, pair)
		}
		points[i] = Point{ElapsedS: pair[0], Value: pair[1]}
	}
	return NewSchedule(points)
}
