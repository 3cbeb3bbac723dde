// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package screens holds downloaded screens and renders them onto the
// 16 row by 32 column consumer display.
package screens

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Thermoquad/ndcterm/pkg/terminal"
)

// Display geometry
const (
	Rows    = 16
	Columns = 32
)

// Screen control characters
const (
	FF  = 0x0C // clear screen, cursor home
	SO  = 0x0E // insert screen, followed by a three-digit number
	SI  = 0x0F // set cursor, followed by row and column characters
	ESC = 0x1B
	GS  = 0x1D // separates screens in a display update
)

// Nested screen inserts deeper than this are ignored
const maxInsertDepth = 4

// ErrMalformedScreen is returned for screens without a valid number
var ErrMalformedScreen = errors.New("malformed screen")

// Table holds screens by number
type Table struct {
	screens map[string]string
	log     *slog.Logger
}

// NewTable creates an empty screen table
func NewTable(log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	return &Table{screens: make(map[string]string), log: log}
}

// parseScreen splits "NNN<data>" into number and data
func parseScreen(s string) (string, string, error) {
	if len(s) < 3 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedScreen, s)
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", "", fmt.Errorf("%w: number %q", ErrMalformedScreen, s[:3])
		}
	}
	return s[:3], s[3:], nil
}

// Add loads screens. Either all of them load or none do.
func (t *Table) Add(screens []string) bool {
	parsed := make(map[string]string, len(screens))
	for _, s := range screens {
		number, data, err := parseScreen(s)
		if err != nil {
			t.log.Warn("screen load rejected", slog.Any("error", err))
			return false
		}
		parsed[number] = data
	}
	for number, data := range parsed {
		t.screens[number] = data
	}
	t.log.Info("screens loaded", slog.Int("screens", len(parsed)), slog.Int("total", len(t.screens)))
	return true
}

// Get returns the screen with the given number
func (t *Table) Get(number string) (terminal.Screen, bool) {
	data, ok := t.screens[number]
	return terminal.Screen{Number: number, Data: data}, ok
}

// Len returns the number of loaded screens
func (t *Table) Len() int {
	return len(t.screens)
}

// ParseDynamicScreenData wraps screen data sent with an interactive
// transaction response
func (t *Table) ParseDynamicScreenData(data string) terminal.Screen {
	return terminal.Screen{Data: data}
}

// ParseScreenDisplayUpdate replaces the GS separated screens of a
// transaction reply. An update with a malformed screen changes nothing.
func (t *Table) ParseScreenDisplayUpdate(data string) bool {
	var screens []string
	for _, s := range strings.Split(data, string(rune(GS))) {
		if s != "" {
			screens = append(screens, s)
		}
	}
	if len(screens) == 0 {
		return false
	}
	return t.Add(screens)
}

// Grid is a rendered display
type Grid struct {
	cells [Rows][Columns]byte
	row   int
	col   int
}

// NewGrid returns a blank grid with the cursor home
func NewGrid() *Grid {
	g := &Grid{}
	g.Clear()
	return g
}

// Clear blanks the grid and homes the cursor
func (g *Grid) Clear() {
	for r := range g.cells {
		for c := range g.cells[r] {
			g.cells[r][c] = ' '
		}
	}
	g.row, g.col = 0, 0
}

// Cursor returns the cursor position
func (g *Grid) Cursor() (row, col int) {
	return g.row, g.col
}

// MoveTo positions the cursor, clamping to the grid
func (g *Grid) MoveTo(row, col int) {
	g.row = clamp(row, 0, Rows-1)
	g.col = clamp(col, 0, Columns-1)
}

// Put writes one character at the cursor and advances, wrapping to the
// next row. Writes past the last cell are dropped.
func (g *Grid) Put(c byte) {
	if g.row >= Rows {
		return
	}
	g.cells[g.row][g.col] = c
	g.col++
	if g.col >= Columns {
		g.col = 0
		g.row++
	}
}

// Lines returns the grid as Rows strings of Columns characters
func (g *Grid) Lines() []string {
	lines := make([]string, Rows)
	for r := range g.cells {
		lines[r] = string(g.cells[r][:])
	}
	return lines
}

func (g *Grid) String() string {
	return strings.Join(g.Lines(), "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// position decodes an SI cursor character: '@' is 0, 'A' is 1 and so on
func position(c byte) int {
	return int(c) - '@'
}

// Render draws screen data onto g starting at the current cursor
func (t *Table) Render(g *Grid, data string) {
	t.render(g, data, 0)
}

func (t *Table) render(g *Grid, data string, depth int) {
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch c {
		case FF:
			g.Clear()
		case SI:
			if i+2 >= len(data) {
				t.log.Debug("truncated cursor position", slog.String("data", data))
				return
			}
			g.MoveTo(position(data[i+1]), position(data[i+2]))
			i += 2
		case SO:
			if i+3 >= len(data) {
				t.log.Debug("truncated screen insert", slog.String("data", data))
				return
			}
			number := data[i+1 : i+4]
			i += 3
			if depth >= maxInsertDepth {
				t.log.Warn("screen insert too deep", slog.String("screen", number))
				continue
			}
			if inserted, ok := t.screens[number]; ok {
				t.render(g, inserted, depth+1)
			} else {
				t.log.Warn("inserted screen not found", slog.String("screen", number))
			}
		case ESC:
			i = skipEscape(data, i)
		default:
			if c >= 0x20 && c < 0x7F {
				g.Put(c)
			}
		}
	}
}

// skipEscape returns the index of the last byte of the escape sequence
// starting at i. Control sequences (ESC [) end at a letter, picture and
// device sequences (ESC P) end at ESC \, anything else is two bytes long.
func skipEscape(data string, i int) int {
	if i+1 >= len(data) {
		return i
	}
	switch data[i+1] {
	case '[':
		for j := i + 2; j < len(data); j++ {
			c := data[j]
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				return j
			}
		}
		return len(data) - 1
	case 'P':
		if end := strings.Index(data[i+2:], "\x1b\\"); end >= 0 {
			return i + 2 + end + 1
		}
		return len(data) - 1
	default:
		return i + 1
	}
}
