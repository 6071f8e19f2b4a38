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

package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Close()

	log := New("Test")
	log.Info("hello %d", 1)
	log.Warn("careful")
	log.Error("broken: %v", "x")

	out := buf.String()
	for _, want := range []string{"[Test] INFO: hello 1", "[Test] WARN: careful", "[Test] ERROR: (logger_test.go:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDebugToggle(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Close()
	defer EnableDebug(IsDebug())

	log := New("Dbg")
	EnableDebug(false)
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written while disabled: %q", buf.String())
	}

	EnableDebug(true)
	log.Debug("shown")
	if !strings.Contains(buf.String(), "[Dbg] DEBUG: shown") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}
