// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Host link timeouts
const (
	tcpDialTimeout      = 10 * time.Second
	wsHandshakeTimeout  = 10 * time.Second
	wsConnectTimeout    = 15 * time.Second
	passwordEnvVariable = "NDC_PASSWORD"
)

// Connection is the byte stream to the NDC host. Frames are delimited by
// the ndc framing, never by the transport.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// serialLink carries the host line on an async serial port, as on a
// leased-line controller or a null-modem test rig.
type serialLink struct {
	port serial.Port
}

func (s *serialLink) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *serialLink) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialLink) Close() error                { return s.port.Close() }

// ErrConnectionClosed is returned by reads after the host bridge dropped
// the WebSocket.
var ErrConnectionClosed = errors.New("host link closed")

// connectionClosed reports whether a read error means the host is gone
// and the link manager should reconnect.
func connectionClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// wsLink reads the host stream from a WebSocket bridge. The bridge may
// split or coalesce NDC frames across binary messages, so a message is
// buffered and handed out as a plain byte stream.
type wsLink struct {
	conn    *websocket.Conn
	pending []byte
	dead    bool
}

func (w *wsLink) Read(p []byte) (int, error) {
	if w.dead {
		return 0, ErrConnectionClosed
	}

	for len(w.pending) == 0 {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			w.dead = true
			return 0, err
		}
		// Text messages are bridge chatter, not host data
		if kind != websocket.BinaryMessage {
			continue
		}
		w.pending = data
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

// Write sends each encoded frame as one binary message.
func (w *wsLink) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsLink) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens the host line on a serial port at 8N1.
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open host line %s: %w", portName, err)
	}
	return &serialLink{port: port}, nil
}

// OpenTCPConnection dials the host directly over TCP.
func OpenTCPConnection(addr string) (Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, tcpDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial host %s: %w", addr, err)
	}
	return conn, nil
}

// OpenWebSocketConnection connects to a host bridge, with HTTP Basic auth
// when a username is given.
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported bridge scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("host bridge refused (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("host bridge unreachable: %w", err)
	}
	return &wsLink{conn: conn}, nil
}

// GetPassword returns the host bridge password from NDC_PASSWORD, or
// prompts for it without echo.
func GetPassword() (string, error) {
	if pw := os.Getenv(passwordEnvVariable); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Bridge password: ")
	defer fmt.Fprintln(os.Stderr)

	pw, err := term.ReadPassword(int(syscall.Stdin))
	if err == nil {
		return string(pw), nil
	}

	// stdin is not a terminal (piped in a script)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read bridge password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the host link selected by --url, --tcp or --port,
// in that order of preference, and describes it for the status line.
func OpenConnection() (Connection, string, error) {
	switch {
	case wsURL != "":
		password := ""
		if wsUsername != "" {
			var err error
			if password, err = GetPassword(); err != nil {
				return nil, "", err
			}
		}
		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + wsURL, nil

	case tcpAddr != "":
		conn, err := OpenTCPConnection(tcpAddr)
		if err != nil {
			return nil, "", err
		}
		return conn, "TCP: " + tcpAddr, nil

	case portName != "":
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", errors.New("no host link: one of --port, --url or --tcp must be specified")
}
