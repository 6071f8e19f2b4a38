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
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

type Logger struct {
	prefix string
}

var (
	mu           sync.RWMutex
	baseLogger   = log.New(os.Stdout, "", log.LstdFlags)
	logFile      *os.File
	debugEnabled = os.Getenv("DEBUG") != ""
)

// Init sends log output to stdout and the file at logPath.
// Loggers created before Init pick up the new destination.
func Init(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	baseLogger = log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags)
	return nil
}

// SetOutput replaces the log destination, closing any file opened by Init.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	baseLogger = log.New(w, "", log.LstdFlags)
}

// Close cleans up the log file (call on shutdown)
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	baseLogger = log.New(os.Stdout, "", log.LstdFlags)
}

// EnableDebug dynamically turns debug logging on/off
func EnableDebug(on bool) {
	mu.Lock()
	debugEnabled = on
	mu.Unlock()
}

func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugEnabled
}

func New(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

func (l *Logger) printf(level, msg string) {
	mu.RLock()
	base := baseLogger
	mu.RUnlock()
	base.Printf("[%s] %s: %s", l.prefix, level, msg)
}

func (l *Logger) Info(fmtstr string, v ...any) {
	l.printf("INFO", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Warn(fmtstr string, v ...any) {
	l.printf("WARN", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Error(fmtstr string, v ...any) {
	formatted := fmt.Sprintf(fmtstr, v...)
	_, file, line, ok := runtime.Caller(1)
	if ok {
		formatted = fmt.Sprintf("(%s:%d) %s", filepath.Base(file), line, formatted)
	}
	l.printf("ERROR", formatted)
}

func (l *Logger) Debug(fmtstr string, v ...any) {
	if !IsDebug() {
		return
	}
	l.printf("DEBUG", fmt.Sprintf(fmtstr, v...))
}
