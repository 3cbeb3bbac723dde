// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package terminal implements the table-driven state machine of an
// NDC-style self-service terminal.
//
// A Terminal interprets one state table entry at a time. Each entry either
// names the next state to process immediately or suspends the engine until
// the next host message or key press. Host messages and physical events
// enter through HandleHostMessage, PressFDK, PressPinpad and ReadCard.
//
// A Terminal is not safe for concurrent use; callers serialize events.
package terminal

import (
	"fmt"
	"log/slog"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
)

// Status is the service status of the terminal
type Status string

// Terminal statuses
const (
	StatusOffline      Status = "Offline"
	StatusInService    Status = "In-Service"
	StatusOutOfService Status = "Out-Of-Service"
)

// FirstState is processed on go in-service and after a card read
const FirstState = "000"

// Outcome is what a state handler decides: continue with another state or
// wait for input.
type Outcome struct {
	next Ref
}

// Continue processes next immediately. An absent ref waits for input.
func Continue(next Ref) Outcome {
	return Outcome{next: next}
}

// AwaitInput suspends the engine until the next event
func AwaitInput() Outcome {
	return Outcome{}
}

// Next returns the state to continue with, if any
func (o Outcome) Next() (Ref, bool) {
	return o.next, o.next.Valid()
}

// Session is the mutable state of one cardholder session
type Session struct {
	Status  Status
	Buffers Buffers
	Keys    FDKSet
	Card    *Card
	Current State

	// MaxPINLength is looked up from the FIT on PIN entry
	MaxPINLength int
	// Interactive is set by an interactive transaction response
	Interactive bool
	// Outstanding is the coordination number of the last request sent
	Outstanding string
	ConfigID    string

	request *ndc.Message
	queue   *keyQueue
}

// clearTransaction drops what one cardholder transaction leaves behind:
// queued keys, the interactive flag and any outstanding request
func (s *Session) clearTransaction() {
	s.Interactive = false
	s.Outstanding = ""
	s.request = nil
	s.queue.clear()
}

// Terminal is the state machine engine and its session
type Terminal struct {
	providers    Providers
	session      *Session
	coordination *CoordinationCounter
	counters     *SupplyCounters
	log          *slog.Logger

	keyCapacity   int
	defaultMaxPIN int
}

// New creates an offline terminal
func New(p Providers, opts ...Option) *Terminal {
	t := &Terminal{
		providers:     p,
		log:           slog.Default(),
		keyCapacity:   DefaultKeyQueueCapacity,
		defaultMaxPIN: MaxPINLength,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.coordination = NewCoordinationCounter(p.Settings, t.log)
	t.counters = LoadSupplyCounters(p.Settings, t.log)

	configID := p.Settings.Get(SettingConfigID)
	if configID == "" {
		configID = DefaultConfigID
	}

	t.session = &Session{
		Status:       StatusOffline,
		Buffers:      NewBuffers(),
		MaxPINLength: t.defaultMaxPIN,
		ConfigID:     configID,
		queue:        newKeyQueue(t.keyCapacity),
	}
	return t
}

// Session returns the live session. Callers must not mutate it while an
// event is being processed.
func (t *Terminal) Session() *Session {
	return t.session
}

// SupplyCounters returns the current supply counters
func (t *Terminal) SupplyCounters() ndc.SupplyCounters {
	return t.counters.Snapshot()
}

// ProcessState runs number and every state it chains to until a handler
// waits for input. An unresolved reference stops the pass, leaving the
// current state at the last one entered.
func (t *Terminal) ProcessState(number string) error {
	ref := Ref(number)
	for {
		state, ok := t.providers.States.Get(string(ref))
		if !ok {
			err := fmt.Errorf("%w: %s", ErrStateNotFound, ref)
			t.log.Error("error getting state", slog.String("state", string(ref)), slog.Any("error", err))
			return err
		}

		t.session.Current = state
		t.log.Info("processing state",
			slog.String("state", state.StateNumber()),
			slog.String("type", state.StateType().String()))

		next, more := t.dispatch(state).Next()
		if !more {
			return nil
		}
		ref = next
	}
}

// dispatch runs the handler for the state's type
func (t *Terminal) dispatch(state State) Outcome {
	switch s := state.(type) {
	case *CardReadState:
		return t.processCardRead(s)
	case *PINEntryState:
		return t.processPINEntry(s)
	case *PresetState:
		return t.processPreset(s)
	case *FourFDKSelectionState:
		return t.processFourFDKSelection(s)
	case *AmountEntryState:
		return t.processAmountEntry(s)
	case *InformationEntryState:
		return t.processInformationEntry(s)
	case *TransactionRequestState:
		return t.processTransactionRequest(s)
	case *CloseState:
		return t.processClose(s)
	case *InstitutionBranchState:
		return t.processInstitutionBranch(s)
	case *FDKBranchState:
		return t.processFDKBranch(s)
	case *FDKInformationState:
		return t.processFDKInformation(s)
	case *FDKOpcodeState:
		return t.processFDKOpcode(s)
	case *ICCInitState:
		return Continue(s.NotStartedNext)
	case *ICCAppInitState:
		return t.processICCAppInit(s)
	case *ICCReinitState:
		return Continue(s.ProcessingNotPerformedNext)
	case *ICCDataState:
		return Continue(s.Next)
	default:
		t.log.Error("unsupported state type",
			slog.String("state", state.StateNumber()),
			slog.String("type", state.StateType().String()))
		return AwaitInput()
	}
}
