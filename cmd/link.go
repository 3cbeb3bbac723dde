// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
)

const (
	reconnectInitialBackoff = 1 * time.Second
	reconnectMaxBackoff     = 30 * time.Second
)

// linkHandler receives everything that happens on the host link
type linkHandler interface {
	// frame is called for every frame with a valid CRC
	frame(f *ndc.Frame)
	// event reports sync, decode errors and connection changes
	event(message string, isError bool)
}

// linkManager handles connection lifecycle and reconnection
type linkManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	writeMu  sync.Mutex
	handler  linkHandler
	done     chan struct{}
}

func newLinkManager(conn Connection, connInfo string, handler linkHandler) *linkManager {
	return &linkManager{
		conn:     conn,
		connInfo: connInfo,
		handler:  handler,
		done:     make(chan struct{}),
	}
}

func (lm *linkManager) getConn() Connection {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.conn
}

func (lm *linkManager) setConn(conn Connection, connInfo string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.conn = conn
	lm.connInfo = connInfo
}

// close stops the reader loop and closes the connection
func (lm *linkManager) close() {
	select {
	case <-lm.done:
	default:
		close(lm.done)
	}
	if conn := lm.getConn(); conn != nil {
		conn.Close()
	}
}

// send encodes and writes a message to the host
func (lm *linkManager) send(m *ndc.Message) error {
	wireBytes, err := ndc.EncodeMessage(m)
	if err != nil {
		return err
	}

	conn := lm.getConn()
	if conn == nil {
		return fmt.Errorf("connection lost")
	}

	lm.writeMu.Lock()
	defer lm.writeMu.Unlock()
	if _, err := conn.Write(wireBytes); err != nil {
		return fmt.Errorf("failed to send %s: %v", ndc.FormatMessageType(m), err)
	}
	slog.Debug("sent message", slog.String("type", ndc.FormatMessageType(m)), slog.Int("bytes", len(wireBytes)))
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (lm *linkManager) readerLoop() {
	for {
		select {
		case <-lm.done:
			return
		default:
		}

		if !lm.readFromConnection() {
			return
		}

		lm.handler.event("Connection lost - reconnecting...", true)
		if !lm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// readFromConnection decodes frames until the connection fails.
// Returns true if the connection was lost, false if shutdown was requested.
func (lm *linkManager) readFromConnection() bool {
	decoder := ndc.NewDecoder()
	synchronized := false
	invalidBytesBeforeSync := 0
	buf := make([]byte, 256)

	for {
		select {
		case <-lm.done:
			return false
		default:
		}

		conn := lm.getConn()
		if conn == nil {
			return true
		}

		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-lm.done:
				return false
			default:
			}
			if connectionClosed(err) {
				return true
			}
			// Brief pause before retry on transient errors (e.g., serial)
			slog.Debug("read error", slog.Any("error", err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				if synchronized {
					lm.handler.event(fmt.Sprintf("DECODE ERROR: %v", decodeErr), true)
				} else {
					invalidBytesBeforeSync++
				}
				continue
			}
			if frame == nil {
				continue
			}

			if !synchronized {
				synchronized = true
				if invalidBytesBeforeSync > 0 {
					lm.handler.event(fmt.Sprintf("Synchronized after skipping %d invalid bytes", invalidBytesBeforeSync), false)
				} else {
					lm.handler.event("Synchronized", false)
				}
			}
			lm.handler.frame(frame)
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (lm *linkManager) reconnect() bool {
	// Close old connection
	if conn := lm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := reconnectInitialBackoff
	for {
		select {
		case <-lm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			lm.setConn(conn, connInfo)
			lm.handler.event("Reconnected: "+connInfo, false)
			return true
		}
		slog.Debug("reconnect failed", slog.Any("error", err), slog.Duration("backoff", backoff))

		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles the delay up to the maximum
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectMaxBackoff {
		d = reconnectMaxBackoff
	}
	return d
}
