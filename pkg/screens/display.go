// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package screens

import (
	"log/slog"
	"strings"

	"github.com/Thermoquad/ndcterm/pkg/terminal"
)

// Display renders screens from a Table and echoes keyed input at the
// cursor left by the last screen.
type Display struct {
	table    *Table
	grid     *Grid
	current  string
	inputRow int
	inputCol int
	// inputLen is the length of the last echo, blanked before the next
	inputLen int
	onChange func()
	log      *slog.Logger
}

// NewDisplay creates a blank display over table
func NewDisplay(table *Table, log *slog.Logger) *Display {
	if log == nil {
		log = slog.Default()
	}
	return &Display{table: table, grid: NewGrid(), log: log}
}

// OnChange registers a callback run after every display change
func (d *Display) OnChange(fn func()) {
	d.onChange = fn
}

func (d *Display) changed() {
	if d.onChange != nil {
		d.onChange()
	}
}

// SetScreenByNumber shows a screen from the table
func (d *Display) SetScreenByNumber(number string) {
	screen, ok := d.table.Get(number)
	if !ok {
		d.log.Warn("screen not found", slog.String("screen", number))
		return
	}
	d.SetScreen(screen)
}

// SetScreen renders screen data over the current display
func (d *Display) SetScreen(screen terminal.Screen) {
	d.current = screen.Number
	d.table.Render(d.grid, screen.Data)
	d.inputRow, d.inputCol = d.grid.Cursor()
	d.inputLen = 0
	d.changed()
}

// InsertText echoes text at the input position, replacing each character
// with mask when mask is non-zero
func (d *Display) InsertText(text string, mask byte) {
	if mask != 0 {
		text = strings.Repeat(string(rune(mask)), len(text))
	}

	d.grid.MoveTo(d.inputRow, d.inputCol)
	for i := 0; i < d.inputLen; i++ {
		d.grid.Put(' ')
	}
	d.grid.MoveTo(d.inputRow, d.inputCol)
	for i := 0; i < len(text); i++ {
		d.grid.Put(text[i])
	}
	d.inputLen = len(text)
	d.changed()
}

// Current returns the number of the screen last shown by number
func (d *Display) Current() string {
	return d.current
}

// Lines returns the rendered display
func (d *Display) Lines() []string {
	return d.grid.Lines()
}
