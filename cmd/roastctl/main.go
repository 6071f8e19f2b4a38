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
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"roastctl/internal/blower"
	"roastctl/internal/config"
	"roastctl/internal/controller"
	"roastctl/internal/controller/override"
	"roastctl/internal/keypad"
	"roastctl/internal/profile"
	"roastctl/internal/roastlog"
	"roastctl/internal/sensor"
	"roastctl/internal/ssr"
	"roastctl/pkg/appctx"
	"roastctl/pkg/logger"
	"roastctl/pkg/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <profile.json|profile.yaml>\n", filepath.Base(os.Args[0]))
		os.Exit(1)
	}
	os.Exit(run(os.Args[1]))
}

func run(profilePath string) int {
	rootdir := os.Getenv("PROJECT_ROOT")
	if rootdir == "" {
		rootdir = "."
	}

	if err := logger.Init(filepath.Join(rootdir, "var/logs/roastctl.log")); err != nil {
		fmt.Fprintf(os.Stderr, "log init: %v\n", err)
	}
	defer logger.Close()
	log := logger.New("Main")

	confPath := os.Getenv("ROASTCTL_CONFIG")
	if confPath == "" {
		confPath = filepath.Join(rootdir, "var/config/roastctl.json")
	}
	conf, err := config.LoadFile(confPath)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	prof, err := profile.Load(profilePath)
	if err != nil {
		log.Error("%v", err)
		return 1
	}

	ctx, ctxCancel := appctx.New()
	defer ctxCancel()

	// hardware: the heater is mandatory, the fan is best effort
	temp, err := newSensor(conf)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	line, err := ssr.NewGPIO(conf.SSR.Chip, conf.SSR.Pin)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	heater := ssr.NewDriver(line)
	fan := blower.NewOptional(newBlower(ctx, rootdir, conf, log))

	roastDir := conf.Logging.RoastDir
	if !filepath.IsAbs(roastDir) {
		roastDir = filepath.Join(rootdir, roastDir)
	}
	sink, err := roastlog.Create(roastDir, time.Now())
	if err != nil {
		log.Error("%v", err)
		heater.Cleanup()
		fan.Shutdown()
		return 1
	}

	input := override.New()
	ctrl, err := controller.New(prof, input, temp, heater, fan, sink, controller.Options{
		DefaultSetpointC:  conf.Controller.DefaultSetpointC,
		PreheatToleranceC: conf.Controller.PreheatToleranceC,
		HoldSpeedPct:      conf.Blower.HoldSpeedPct,
	})
	if err != nil {
		log.Error("%v", err)
		heater.Cleanup()
		fan.Shutdown()
		sink.Close()
		return 1
	}

	services := []service.Runnable{
		ctrl,
		keypad.NewTerminal(os.Stdin, input),
	}
	if conf.Keypad.RemoteAddr != "" {
		services = append(services, keypad.NewRemote(conf.Keypad.RemoteAddr, input))
	}

	// waits for all services to stop
	code := <-service.Start(ctx, ctxCancel, services)
	ctrl.Shutdown()
	return code
}

func newSensor(conf *config.Config) (controller.Sensor, error) {
	var s sensor.Sensor
	switch conf.Sensor.Driver {
	case "hwmon":
		s = sensor.NewHwmon(conf.Sensor.HwmonKey)
	case "iio":
		s = sensor.NewIIO(conf.Sensor.IIODevice)
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", conf.Sensor.Driver)
	}
	return sensor.WithRetry(s, conf.Sensor.RetryAttempts, conf.Sensor.RetryDelay()), nil
}

// newBlower returns nil when no fan driver is configured or reachable.
func newBlower(ctx context.Context, rootdir string, conf *config.Config, log *logger.Logger) blower.Blower {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch conf.Blower.Driver {
	case "scpi":
		b, err := blower.DialSCPI(dialCtx, blower.SCPIConfig{
			Addr:       conf.Blower.SCPI.Addr,
			Channel:    conf.Blower.SCPI.Channel,
			Voltage:    conf.Blower.SCPI.Voltage,
			MaxCurrent: conf.Blower.SCPI.MaxCurrent,
		})
		if err != nil {
			log.Warn("fan: %v", err)
			return nil
		}
		return b
	case "modbus":
		mapPath := conf.Blower.Modbus.RegisterMap
		if !filepath.IsAbs(mapPath) {
			mapPath = filepath.Join(rootdir, mapPath)
		}
		// the fan must still be stoppable after a signal cancels ctx
		b, err := blower.DialModbus(context.WithoutCancel(ctx), mapPath)
		if err != nil {
			log.Warn("fan: %v", err)
			return nil
		}
		return b
	}
	return nil
}
