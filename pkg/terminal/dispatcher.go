// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"log/slog"

	"github.com/Thermoquad/ndcterm/pkg/ndc"
)

// HandleHostMessage routes a host message into the terminal and returns
// the solicited status reply.
func (t *Terminal) HandleHostMessage(m *ndc.Message) *ndc.Message {
	switch m.Class {
	case ndc.ClassTerminalCommand:
		return t.processTerminalCommand(m)
	case ndc.ClassDataCommand:
		return t.processDataCommand(m)
	case ndc.ClassTransactionReply:
		return t.processTransactionReply(m)
	default:
		t.log.Warn("unknown message class", slog.String("message_class", m.Class))
		return t.reject()
	}
}

func (t *Terminal) ready() *ndc.Message {
	return ndc.NewSolicitedStatus(ndc.StatusReady)
}

func (t *Terminal) reject() *ndc.Message {
	return ndc.NewSolicitedStatus(ndc.StatusCommandReject)
}

func (t *Terminal) readyOrReject(ok bool) *ndc.Message {
	if ok {
		return t.ready()
	}
	return t.reject()
}

// terminalState builds the Terminal State reply for a query command
func (t *Terminal) terminalState(commandCode string) *ndc.Message {
	reply := ndc.NewSolicitedStatus(ndc.StatusTerminalState)
	switch commandCode {
	case ndc.CommandSendConfigurationID:
		reply.ConfigID = t.session.ConfigID
	case ndc.CommandSendSupplyCounters:
		reply.SupplyCounters = t.counters.Snapshot()
	}
	return reply
}

func (t *Terminal) processTerminalCommand(m *ndc.Message) *ndc.Message {
	s := t.session
	switch m.CommandCode {
	case ndc.CommandGoInService:
		s.Status = StatusInService
		s.Buffers.Reset()
		s.Keys.Clear()
		s.clearTransaction()
		t.ProcessState(FirstState)
	case ndc.CommandGoOutOfService:
		s.Status = StatusOutOfService
		t.providers.Display.SetScreenByNumber("001")
		s.Buffers.Reset()
		s.Keys.Clear()
		s.clearTransaction()
		s.Card = nil
	case ndc.CommandSendConfigurationID, ndc.CommandSendSupplyCounters:
		return t.terminalState(m.CommandCode)
	default:
		t.log.Warn("unknown command code", slog.String("command_code", m.CommandCode))
		return t.reject()
	}
	t.log.Info("terminal status changed", slog.String("status", string(s.Status)))
	return t.ready()
}

func (t *Terminal) processDataCommand(m *ndc.Message) *ndc.Message {
	switch m.Subclass {
	case ndc.SubclassCustomization:
		return t.processCustomization(m)
	case ndc.SubclassInteractiveResponse:
		return t.processInteractiveResponse(m)
	case ndc.SubclassExtendedEncKeyInfo:
		return t.processExtendedEncKeyInfo(m)
	default:
		t.log.Warn("unknown data command subclass", slog.String("message_subclass", m.Subclass))
		return t.reject()
	}
}

func (t *Terminal) processCustomization(m *ndc.Message) *ndc.Message {
	switch m.MessageIdentifier {
	case ndc.IdentifierScreenDataLoad:
		return t.readyOrReject(t.providers.Screens.Add(m.Screens))
	case ndc.IdentifierStateTableLoad:
		return t.readyOrReject(t.providers.States.Add(m.States))
	case ndc.IdentifierFITDataLoad:
		return t.readyOrReject(t.providers.FITs.Add(m.FITs))
	case ndc.IdentifierConfigIDLoad:
		if m.ConfigID == "" {
			t.log.Warn("no config ID provided")
			return t.reject()
		}
		t.setConfigID(m.ConfigID)
		return t.ready()
	default:
		t.log.Warn("unknown message identifier", slog.String("message_identifier", m.MessageIdentifier))
		return t.reject()
	}
}

func (t *Terminal) setConfigID(id string) {
	t.session.ConfigID = id
	if err := t.providers.Settings.Set(SettingConfigID, id); err != nil {
		t.log.Warn("failed to persist config ID", slog.Any("error", err))
	}
}

func (t *Terminal) processInteractiveResponse(m *ndc.Message) *ndc.Message {
	t.session.Interactive = true
	if m.ActiveKeys != "" {
		if err := t.session.Keys.SetMask(m.ActiveKeys); err != nil {
			t.log.Warn("invalid active keys", slog.Any("error", err))
		}
	}
	t.providers.Display.SetScreen(t.providers.Screens.ParseDynamicScreenData(m.ScreenDataField))
	return t.ready()
}

func (t *Terminal) processExtendedEncKeyInfo(m *ndc.Message) *ndc.Message {
	if m.Modifier != ndc.ModifierDecipherCommsKey {
		t.log.Warn("unsupported key modifier", slog.String("modifier", m.Modifier))
		return t.reject()
	}
	if err := t.providers.Crypto.SetCommsKey(m.NewKeyData, m.NewKeyLength); err != nil {
		t.log.Warn("comms key rejected", slog.Any("error", err))
		return t.reject()
	}
	return t.ready()
}

// checkCoordination accepts a reply whose coordination number matches the
// outstanding request, is the override '0', or is absent
func (t *Terminal) checkCoordination(number string) error {
	outstanding := t.session.Outstanding
	if number == "" || number == ndc.CoordinationOverride || outstanding == "" || number == outstanding {
		return nil
	}
	return invalid("coordination number", number, ErrCoordination)
}

func (t *Terminal) processTransactionReply(m *ndc.Message) *ndc.Message {
	if err := t.checkCoordination(m.MessageCoordinationNumber); err != nil {
		t.log.Warn("transaction reply rejected",
			slog.String("outstanding", t.session.Outstanding),
			slog.Any("error", err))
		return t.reject()
	}
	if !t.stateExists(m.NextState) {
		t.log.Warn("transaction reply names unknown state", slog.String("next_state", m.NextState))
		return t.reject()
	}
	t.session.Outstanding = ""

	// Failures further down the chain are logged; the reply itself was valid
	t.ProcessState(m.NextState)

	if m.ScreenDisplayUpdate != "" {
		if !t.providers.Screens.ParseScreenDisplayUpdate(m.ScreenDisplayUpdate) {
			t.log.Warn("screen display update rejected")
		}
	}
	return t.ready()
}

func (t *Terminal) stateExists(number string) bool {
	_, ok := t.providers.States.Get(number)
	return ok
}
