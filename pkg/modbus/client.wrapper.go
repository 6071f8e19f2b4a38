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
package modbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"roastctl/pkg/logger"

	wrapper "github.com/grid-x/modbus"
)

const connectAttempts = 3

// registerIO is the subset of the grid-x client this package uses.
type registerIO interface {
	ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(ctx context.Context, address, quantity uint16, value []byte) ([]byte, error)
}

type Client struct {
	mu      sync.Mutex
	handler *wrapper.TCPClientHandler
	client  registerIO
	config  *Config
	log     *logger.Logger
	ctx     context.Context

	// nil for test clients built on a fake registerIO
	dial func() error
}

// NewClient creates and connects a Modbus TCP client, giving up after a
// few attempts.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	c := &Client{
		config: config,
		log:    logger.New("ModbusConn"),
		ctx:    ctx,
	}
	c.dial = c.connect
	if err := c.connectWithRetry(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClientWithIO(ctx context.Context, config *Config, io registerIO) *Client {
	return &Client{
		client: io,
		config: config,
		log:    logger.New("ModbusConn"),
		ctx:    ctx,
	}
}

func (c *Client) connectWithRetry() error {
	if c.dial == nil {
		return errors.New("modbus: client cannot reconnect")
	}
	backoff := 500 * time.Millisecond
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = c.dial(); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		c.log.Warn("Modbus connect failed: %v (retrying in %v)", err, backoff)
		select {
		case <-time.After(backoff):
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("modbus connect failed after %d attempts: %w", connectAttempts, err)
}

// connect safely (re)connects the Modbus client once.
func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler != nil {
		_ = c.handler.Close()
	}

	url := fmt.Sprintf("%s:%d", c.config.Modbus.Host, c.config.Modbus.Port)
	handler := wrapper.NewTCPClientHandler(url)
	handler.SlaveID = c.config.Modbus.SlaveID
	handler.Timeout = time.Second * time.Duration(c.config.Modbus.Timeout)
	handler.ProtocolRecoveryTimeout = 250 * time.Millisecond
	handler.LinkRecoveryTimeout = 5 * time.Second

	c.log.Info("Connecting to %s...", url)
	if err := handler.Connect(c.ctx); err != nil {
		return fmt.Errorf("modbus connect failed: %w", err)
	}

	c.handler = handler
	c.client = wrapper.NewClient(handler)
	c.log.Info("Connected to %s", url)
	return nil
}

// retry runs op once more after reconnecting on a connection error.
func (c *Client) retry(op func() error) error {
	err := op()
	if err == nil || !isConnError(err) {
		return err
	}
	c.log.Warn("connection error: %v, reconnecting", err)
	if rerr := c.connectWithRetry(); rerr != nil {
		return errors.Join(err, rerr)
	}
	return op()
}

// WriteRegisters writes raw holding registers, reconnecting once if needed.
func (c *Client) WriteRegisters(ctx context.Context, addr, quantity uint16, raw []byte) error {
	return c.retry(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, err := c.client.WriteMultipleRegisters(ctx, addr, quantity, raw)
		return err
	})
}

// ReadRegisters reads holding registers, reconnecting once if needed.
func (c *Client) ReadRegisters(ctx context.Context, addr, quantity uint16) ([]byte, error) {
	var data []byte
	err := c.retry(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		var rerr error
		data, rerr = c.client.ReadHoldingRegisters(ctx, addr, quantity)
		return rerr
	})
	return data, err
}

// Close closes the underlying handler.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler != nil {
		err := c.handler.Close()
		c.handler = nil
		return err
	}
	return nil
}

// --- helpers ---

func isConnError(err error) bool {
	if err == nil {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "closed by the remote host") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection refused")
}
