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
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"roastctl/pkg/logger"
)

// SCPI drives a fan from a bench supply such as the Siglent SPD1168X over
// its LXI socket (port 5025). Voltage is fixed; speed sets the current
// limit as a share of MaxCurrent.
type SCPI struct {
	mu         sync.Mutex
	conn       net.Conn
	rd         *bufio.Reader
	channel    int
	voltage    float64
	maxCurrent float64
	outputOn   bool
	closed     bool

	// pause between commands; the supply drops writes sent back-to-back
	settle time.Duration
	log    *logger.Logger
}

type SCPIConfig struct {
	Addr       string
	Channel    int
	Voltage    float64
	MaxCurrent float64
}

func DialSCPI(ctx context.Context, cfg SCPIConfig) (*SCPI, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial power supply %s: %w", cfg.Addr, err)
	}
	s := &SCPI{
		conn:       conn,
		rd:         bufio.NewReader(conn),
		channel:    cfg.Channel,
		voltage:    cfg.Voltage,
		maxCurrent: cfg.MaxCurrent,
		settle:     100 * time.Millisecond,
		log:        logger.New("SCPI"),
	}

	idn, err := s.query("*IDN?")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("identify power supply: %w", err)
	}
	s.log.Info("Connected to: %s", idn)

	s.mu.Lock()
	err = s.setOutput(0)
	s.mu.Unlock()
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.log.Info("Fan controller initialized on channel %d", s.channel)
	return s, nil
}

func (s *SCPI) SetSpeed(pct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errShutdown
	}
	if err := s.setOutput(pct); err != nil {
		return err
	}
	if !s.outputOn {
		if err := s.write(fmt.Sprintf("OUTP CH%d,ON", s.channel)); err != nil {
			return err
		}
		s.outputOn = true
	}
	return nil
}

func (s *SCPI) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	werr := s.write(fmt.Sprintf("OUTP CH%d,OFF", s.channel))
	cerr := s.conn.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// MeasureCurrent returns the live output current in amps.
func (s *SCPI) MeasureCurrent() (float64, error) {
	resp, err := s.query(fmt.Sprintf("MEAS:CURR? CH%d", s.channel))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(resp, 64)
}

func (s *SCPI) setOutput(pct int) error {
	current := float64(clampPct(pct)) / 100 * s.maxCurrent
	s.log.Debug("Setting CH%d: %.1fV, %.3fA (%d%%)", s.channel, s.voltage, current, pct)
	if err := s.write(fmt.Sprintf("CH%d:VOLT %s", s.channel, strconv.FormatFloat(s.voltage, 'f', -1, 64))); err != nil {
		return err
	}
	return s.write(fmt.Sprintf("CH%d:CURR %.3f", s.channel, current))
}

func (s *SCPI) write(cmd string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("scpi %q: %w", cmd, err)
	}
	time.Sleep(s.settle)
	return nil
}

func (s *SCPI) query(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(cmd); err != nil {
		return "", err
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return "", err
	}
	line, err := s.rd.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("scpi %q: %w", cmd, err)
	}
	return strings.TrimSpace(line), nil
}
