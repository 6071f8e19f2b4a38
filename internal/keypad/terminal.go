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
package keypad

import (
	"context"
	"os"

	"roastctl/pkg/logger"
)

// Terminal reads single keypresses from a local console.
type Terminal struct {
	in *os.File
	h  KeyHandler
}

func NewTerminal(in *os.File, h KeyHandler) *Terminal {
	return &Terminal{in: in, h: h}
}

// Run puts the console into cbreak mode when it is a TTY, restoring it on
// return, and falls back to buffered reads otherwise.
func (t *Terminal) Run(ctx context.Context) error {
	log := logger.New("Keypad")
	restore, err := makeCbreak(t.in)
	if err != nil {
		log.Info("No raw terminal (%v); keys apply after Enter, an empty line drops", err)
		return PumpLines(ctx, t.in, t.h)
	}
	defer restore()

	log.Info("Keys: 0-9 fan, +/- trim, Enter drop, n/z stage, r reset, q quit")
	return Pump(ctx, &pollReader{ctx: ctx, f: t.in}, t.h)
}
