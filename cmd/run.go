// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Thermoquad/ndcterm/pkg/fit"
	"github.com/Thermoquad/ndcterm/pkg/hsm"
	"github.com/Thermoquad/ndcterm/pkg/ndc"
	"github.com/Thermoquad/ndcterm/pkg/screens"
	"github.com/Thermoquad/ndcterm/pkg/settings"
	"github.com/Thermoquad/ndcterm/pkg/statetable"
	"github.com/Thermoquad/ndcterm/pkg/terminal"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	runMasterKey string
	runHeadless  bool
	runPCSC      bool
	runMaxKeys   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the terminal against a host",
	Long: `Run the NDC terminal state machine on a host link.

The terminal starts offline and waits for the host to download its state,
screen and FIT tables and send a Go in-service command. Card reads, function
keys and pinpad keys drive the loaded state table; transaction requests and
status replies are sent back to the host.

Features:
  - 16x32 screen display with FDK and keypad input
  - Card swipe entry, or chip card reads over PC/SC (--pcsc)
  - PIN encryption under the master or downloaded comms key
  - Persisted coordination number, configuration ID and supply counters
  - Automatic reconnection on connection loss

By default an interactive TUI is shown. With --headless, commands are read
from stdin, one per line:
  card <track2>   read a card
  fdk <A-I>       press a function key
  pin <key>       press a pinpad key (0-9, enter, backspace, esc)`,
	RunE: runTerminal,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runMasterKey, "master-key", "", "Terminal master key (hex, 16 or 24 bytes)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Read line commands from stdin instead of the TUI")
	runCmd.Flags().BoolVar(&runPCSC, "pcsc", false, "Accept chip card reads from a PC/SC reader")
	runCmd.Flags().IntVar(&runMaxKeys, "max-keys", terminal.DefaultKeyQueueCapacity, "Maximum queued function key presses")
}

// atm owns the terminal and its providers and serializes events into it
type atm struct {
	mu      sync.Mutex
	term    *terminal.Terminal
	display *screens.Display
	states  *statetable.Table
	screens *screens.Table
	fits    *fit.Table
	keys    *hsm.Keys
	store   *settings.Store

	link   *linkManager
	stats  *ndc.Statistics
	dirty  atomic.Bool
	notify func()
	events func(message string, isError bool)
}

// newATM builds the providers and an offline terminal
func newATM() (*atm, error) {
	store, err := settings.Open(settingsPath)
	if err != nil {
		return nil, err
	}

	var master []byte
	if runMasterKey != "" {
		master, err = hsm.ParseHexKey(runMasterKey)
		if err != nil {
			return nil, fmt.Errorf("--master-key: %w", err)
		}
	}
	keys, err := hsm.New(master, slog.Default())
	if err != nil {
		return nil, err
	}

	log := slog.Default()
	a := &atm{
		states:  statetable.New(log),
		screens: screens.NewTable(log),
		fits:    fit.New(log),
		keys:    keys,
		store:   store,
		stats:   ndc.NewStatistics(),
		notify:  func() {},
		events:  func(string, bool) {},
	}
	a.display = screens.NewDisplay(a.screens, log)
	a.display.OnChange(func() { a.dirty.Store(true) })

	a.term = terminal.New(terminal.Providers{
		States:   a.states,
		Screens:  a.screens,
		FITs:     a.fits,
		Crypto:   a.keys,
		Display:  a.display,
		Settings: a.store,
	}, terminal.WithLogger(log), terminal.WithKeyQueueCapacity(runMaxKeys))
	return a, nil
}

// frame handles one host frame and sends the replies
func (a *atm) frame(f *ndc.Frame) {
	m := f.Message()
	var validationErrors []ndc.ValidationError
	if m != nil {
		validationErrors = ndc.ValidateMessage(m)
	}
	a.mu.Lock()
	a.stats.Update(f, nil, validationErrors)
	a.mu.Unlock()

	if m == nil {
		a.events(fmt.Sprintf("Unparseable frame: %v", f.ParseError()), true)
		return
	}
	for _, v := range validationErrors {
		a.events(fmt.Sprintf("%s: %s", ndc.FormatMessageType(m), v.Message), true)
	}
	a.events(fmt.Sprintf("<- %s", describeMessage(m)), false)

	a.apply(func(t *terminal.Terminal) *ndc.Message {
		return t.HandleHostMessage(m)
	})
}

func (a *atm) event(message string, isError bool) {
	a.events(message, isError)
}

// apply runs fn against the terminal, then sends its reply and any
// transaction request it produced
func (a *atm) apply(fn func(t *terminal.Terminal) *ndc.Message) {
	a.mu.Lock()
	reply := fn(a.term)
	request := a.term.TakeTransactionRequest()
	a.mu.Unlock()

	for _, m := range []*ndc.Message{reply, request} {
		if m == nil {
			continue
		}
		if a.link == nil {
			continue
		}
		if err := a.link.send(m); err != nil {
			a.events(err.Error(), true)
			continue
		}
		a.events(fmt.Sprintf("-> %s", describeMessage(m)), false)
	}

	if a.dirty.Swap(false) {
		a.notify()
	}
}

func (a *atm) readCard(track2 string) {
	a.apply(func(t *terminal.Terminal) *ndc.Message {
		if err := t.ReadCard(track2); err != nil {
			a.events(fmt.Sprintf("Card read failed: %v", err), true)
		}
		return nil
	})
}

func (a *atm) pressFDK(key string) {
	a.apply(func(t *terminal.Terminal) *ndc.Message {
		t.PressFDK(key)
		return nil
	})
}

func (a *atm) pressPinpad(key string) {
	a.apply(func(t *terminal.Terminal) *ndc.Message {
		t.PressPinpad(key)
		return nil
	})
}

// start begins reading the host link and, with --pcsc, the card reader.
// Event callbacks must be set first.
func (a *atm) start() {
	go a.link.readerLoop()
	if runPCSC {
		go watchChipCards(a)
	}
}

// atmSnapshot is what the UI shows of the session
type atmSnapshot struct {
	lines    []string
	screen   string
	status   terminal.Status
	state    string
	keys     terminal.FDKSet
	card     string
	amount   string
	opcode   string
	pinLen   int
	bufferB  string
	bufferC  string
	configID string
	loaded   string
	stats    ndc.Statistics
}

func (a *atm) snapshot() atmSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.term.Session()
	snap := atmSnapshot{
		lines:    a.display.Lines(),
		screen:   a.display.Current(),
		status:   s.Status,
		keys:     s.Keys,
		amount:   s.Buffers.Amount.String(),
		opcode:   s.Buffers.Opcode.String(),
		pinLen:   len(s.Buffers.PIN),
		bufferB:  s.Buffers.B,
		bufferC:  s.Buffers.C,
		configID: s.ConfigID,
		loaded: fmt.Sprintf("%d states, %d screens, %d FITs",
			a.states.Len(), a.screens.Len(), len(a.fits.Entries())),
		stats: *a.stats,
	}
	if s.Current != nil {
		snap.state = fmt.Sprintf("%s (%s)", s.Current.StateNumber(), s.Current.StateType())
	}
	if s.Card != nil {
		snap.card = maskCardNumber(s.Card.Number)
	}
	return snap
}

// describeMessage is a one-line summary for the event log
func describeMessage(m *ndc.Message) string {
	desc := ndc.FormatMessageType(m)
	for _, detail := range []string{m.CommandCode, m.MessageIdentifier, m.NextState, m.StatusDescriptor, m.OpcodeBuffer} {
		if detail != "" {
			desc += " " + detail
		}
	}
	return desc
}

func maskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	masked := make([]byte, len(number))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(number)-4:], number[len(number)-4:])
	return string(masked)
}

func runTerminal(cmd *cobra.Command, args []string) error {
	a, err := newATM()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	a.link = newLinkManager(conn, connInfo, a)
	defer a.link.close()

	slog.Info("terminal started",
		slog.String("connection", connInfo),
		slog.String("settings", a.store.Path()),
		slog.Bool("comms_key", a.keys.HasCommsKey()))

	if runHeadless {
		return runHeadlessTerminal(a, connInfo)
	}

	m := initialTerminalModel(a, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Events may be raised while the terminal is locked, so they are
	// queued and forwarded to the TUI in order from one goroutine
	uiMsgs := make(chan tea.Msg, 256)
	post := func(msg tea.Msg) {
		select {
		case uiMsgs <- msg:
		default:
		}
	}
	a.notify = func() { post(screenChangedMsg{}) }
	a.events = func(message string, isError bool) {
		post(eventMsg{message: message, isError: isError})
	}
	go func() {
		for msg := range uiMsgs {
			p.Send(msg)
		}
	}()

	a.start()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
