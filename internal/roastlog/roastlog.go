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
// Package roastlog persists one CSV row per control tick.
package roastlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"roastctl/pkg/logger"
)

const minFreeBytes = 16 << 20

var ErrClosed = errors.New("roastlog: sink closed")

var header = []string{
	"timestamp_sec",
	"elapsed_sec",
	"elapsed_mmss",
	"phase",
	"stage",
	"stage_elapsed_sec",
	"target_temp_C",
	"actual_temp_C",
	"pid_on_time_s",
	"fan_pct",
}

type Row struct {
	Time         time.Time
	Elapsed      time.Duration
	Phase        string
	Stage        string
	StageElapsed time.Duration
	TargetC      float64
	ActualC      float64
	OnTime       time.Duration
	FanPct       int
}

// CSV writes rows to a file, flushing after every row so a crash loses at
// most the tick in flight.
type CSV struct {
	mu     sync.Mutex
	w      *csv.Writer
	c      io.Closer
	path   string
	closed bool
}

// Create opens a new timestamped roast log in dir.
func Create(dir string, now time.Time) (*CSV, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	checkFreeSpace(dir)

	path := filepath.Join(dir, now.Format("06-01-02-150405")+"-roast.csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create roast log: %w", err)
	}
	s, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.path = path
	logger.New("RoastLog").Info("Logging roast to %s", path)
	return s, nil
}

// NewWriter writes the header to w and returns a sink around it.
func NewWriter(w io.WriteCloser) (*CSV, error) {
	s := &CSV{w: csv.NewWriter(w), c: w}
	if err := s.write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

func (s *CSV) Path() string {
	return s.path
}

func (s *CSV) WriteRow(r Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.write([]string{
		formatFloat(float64(r.Time.UnixMilli())/1000, 3),
		formatFloat(r.Elapsed.Seconds(), 2),
		FormatMMSS(r.Elapsed),
		r.Phase,
		r.Stage,
		formatFloat(r.StageElapsed.Seconds(), 1),
		formatFloat(r.TargetC, 2),
		formatFloat(r.ActualC, 2),
		formatFloat(r.OnTime.Seconds(), 3),
		strconv.Itoa(r.FanPct),
	})
}

func (s *CSV) write(rec []string) error {
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the file. Safe to call more than once.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	return errors.Join(s.w.Error(), s.c.Close())
}

// FormatMMSS renders d as minutes:seconds. Minutes do not wrap at an hour.
func FormatMMSS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func checkFreeSpace(dir string) {
	free, err := freeBytes(dir)
	if err != nil {
		logger.New("RoastLog").Debug("free space check on %s: %v", dir, err)
		return
	}
	if free < minFreeBytes {
		logger.New("RoastLog").Warn("only %d KiB free in %s", free>>10, dir)
	}
}
