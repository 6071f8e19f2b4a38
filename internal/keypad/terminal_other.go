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
//go:build !linux

package keypad

import (
	"context"
	"errors"
	"os"
)

func makeCbreak(f *os.File) (func(), error) {
	return nil, errors.New("cbreak mode not supported on this platform")
}

type pollReader struct {
	ctx context.Context
	f   *os.File
}

func (p *pollReader) Read(buf []byte) (int, error) {
	return p.f.Read(buf)
}
