// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

// StateTable resolves state numbers to loaded states
type StateTable interface {
	Get(number string) (State, bool)
	// Add loads state entries; a malformed load leaves the table unchanged
	Add(entries []string) bool
}

// Screen is a renderable screen, either from the screen table or built
// from dynamic screen data
type Screen struct {
	Number string
	Data   string
}

// ScreenTable holds the downloaded screens
type ScreenTable interface {
	Add(screens []string) bool
	ParseDynamicScreenData(data string) Screen
	ParseScreenDisplayUpdate(data string) bool
}

// Display shows screens and echoes keyed input
type Display interface {
	SetScreenByNumber(number string)
	SetScreen(screen Screen)
	// InsertText echoes text; a non-zero mask replaces each character
	InsertText(text string, mask byte)
}

// FITTable is the financial institution table
type FITTable interface {
	Add(entries []string) bool
	GetMaxPINLength(cardNumber string) int
	GetInstitutionByCardNumber(cardNumber string) (int, bool)
}

// Crypto provides key management and PIN encryption
type Crypto interface {
	SetCommsKey(data, length string) error
	GetEncryptedPIN(pin, cardNumber string) (string, error)
}

// Providers are the collaborators the engine consumes
type Providers struct {
	States   StateTable
	Screens  ScreenTable
	FITs     FITTable
	Crypto   Crypto
	Display  Display
	Settings Settings
}
