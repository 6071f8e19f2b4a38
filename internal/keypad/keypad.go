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
// Package keypad feeds operator keypresses to the control loop.
package keypad

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"roastctl/pkg/logger"
)

type KeyHandler interface {
	HandleKey(k rune)
}

// Pump reads runes from r and hands each to h until ctx is done. When r
// reaches EOF the keypad goes quiet but Pump keeps blocking, so closing
// the input never ends a roast.
func Pump(ctx context.Context, r io.Reader, h KeyHandler) error {
	return pump(ctx, r, h, readRunes)
}

// PumpLines is Pump for a line-buffered console. Only an empty line is
// the drop; every other line is sent as keys with its newline discarded.
func PumpLines(ctx context.Context, r io.Reader, h KeyHandler) error {
	return pump(ctx, r, h, readLines)
}

type readFunc func(br *bufio.Reader) ([]rune, error)

func readRunes(br *bufio.Reader) ([]rune, error) {
	k, _, err := br.ReadRune()
	if err != nil {
		return nil, err
	}
	return []rune{k}, nil
}

func readLines(br *bufio.Reader) ([]rune, error) {
	line, err := br.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return nil, err
	}
	terminated := strings.HasSuffix(line, "\n")
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if terminated {
			return []rune{'\n'}, nil
		}
		return nil, err
	}
	return []rune(line), nil
}

func pump(ctx context.Context, r io.Reader, h KeyHandler, read readFunc) error {
	log := logger.New("Keypad")
	keys := make(chan rune)
	errc := make(chan error, 1)

	go func() {
		br := bufio.NewReader(r)
		for {
			ks, err := read(br)
			for _, k := range ks {
				select {
				case keys <- k:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case k := <-keys:
			log.Debug("key %q", k)
			h.HandleKey(k)
		case err := <-errc:
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				log.Info("Keypad input closed")
			} else {
				log.Warn("Keypad read failed: %v", err)
			}
			<-ctx.Done()
			return nil
		}
	}
}
