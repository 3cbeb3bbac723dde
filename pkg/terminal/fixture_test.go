// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"io"
	"log/slog"
)

type memSettings map[string]string

func (m memSettings) Get(key string) string { return m[key] }

func (m memSettings) Set(key, value string) error {
	m[key] = value
	return nil
}

type fakeStates struct {
	states map[string]State
	addOK  bool
	added  [][]string
}

func (f *fakeStates) Get(number string) (State, bool) {
	s, ok := f.states[number]
	return s, ok
}

func (f *fakeStates) Add(entries []string) bool {
	f.added = append(f.added, entries)
	return f.addOK
}

type fakeScreens struct {
	addOK   bool
	updates []string
}

func (f *fakeScreens) Add([]string) bool { return f.addOK }

func (f *fakeScreens) ParseDynamicScreenData(data string) Screen {
	return Screen{Data: data}
}

func (f *fakeScreens) ParseScreenDisplayUpdate(data string) bool {
	f.updates = append(f.updates, data)
	return true
}

type fakeDisplay struct {
	screens []string
	dynamic []Screen
	text    string
	mask    byte
}

func (f *fakeDisplay) SetScreenByNumber(number string) { f.screens = append(f.screens, number) }
func (f *fakeDisplay) SetScreen(screen Screen)         { f.dynamic = append(f.dynamic, screen) }

func (f *fakeDisplay) InsertText(text string, mask byte) {
	f.text = text
	f.mask = mask
}

func (f *fakeDisplay) lastScreen() string {
	if len(f.screens) == 0 {
		return ""
	}
	return f.screens[len(f.screens)-1]
}

type fakeFITs struct {
	maxPIN      int
	institution int
	found       bool
	addOK       bool
}

func (f *fakeFITs) Add([]string) bool          { return f.addOK }
func (f *fakeFITs) GetMaxPINLength(string) int { return f.maxPIN }
func (f *fakeFITs) GetInstitutionByCardNumber(string) (int, bool) {
	return f.institution, f.found
}

type fakeCrypto struct {
	commsErr  error
	commsData string
}

func (f *fakeCrypto) SetCommsKey(data, length string) error {
	if f.commsErr != nil {
		return f.commsErr
	}
	f.commsData = data
	return nil
}

func (f *fakeCrypto) GetEncryptedPIN(pin, cardNumber string) (string, error) {
	return "enc:" + pin, nil
}

type fixture struct {
	states   *fakeStates
	screens  *fakeScreens
	display  *fakeDisplay
	fits     *fakeFITs
	crypto   *fakeCrypto
	settings memSettings
}

const testTrack2 = ";4000001234562000=25121011234567890?"

func newTestTerminal(states []State, opts ...Option) (*Terminal, *fixture) {
	f := &fixture{
		states:   &fakeStates{states: make(map[string]State), addOK: true},
		screens:  &fakeScreens{addOK: true},
		display:  &fakeDisplay{},
		fits:     &fakeFITs{maxPIN: 4, addOK: true},
		crypto:   &fakeCrypto{},
		settings: memSettings{},
	}
	for _, s := range states {
		f.states.states[s.StateNumber()] = s
	}

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	t := New(Providers{
		States:   f.states,
		Screens:  f.screens,
		FITs:     f.fits,
		Crypto:   f.crypto,
		Display:  f.display,
		Settings: f.settings,
	}, opts...)
	return t, f
}

func hdr(number string) Header {
	return Header{Number: number}
}
