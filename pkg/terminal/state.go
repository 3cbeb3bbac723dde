// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

// Type is the one-character state type tag
type Type byte

// State types
const (
	TypeCardRead           Type = 'A'
	TypePINEntry           Type = 'B'
	TypePreset             Type = 'D'
	TypeFourFDKSelection   Type = 'E'
	TypeAmountEntry        Type = 'F'
	TypeInformationEntry   Type = 'H'
	TypeTransactionRequest Type = 'I'
	TypeClose              Type = 'J'
	TypeInstitutionBranch  Type = 'K'
	TypeFDKBranch          Type = 'W'
	TypeFDKInformation     Type = 'X'
	TypeFDKOpcode          Type = 'Y'
	TypeExtension          Type = 'Z'
	TypeICCInit            Type = '+'
	TypeICCAppInit         Type = '/'
	TypeICCReinit          Type = ';'
	TypeICCData            Type = '?'
)

func (t Type) String() string {
	return string(rune(t))
}

// Ref refers to another state by number. The zero value means no state.
type Ref string

// NoRef is the absent reference
const NoRef Ref = ""

// Valid reports whether the reference names a state
func (r Ref) Valid() bool {
	return r != NoRef
}

// State is one entry of the state table. The concrete types below are the
// only implementations.
type State interface {
	StateNumber() string
	StateType() Type
	state()
}

// Header carries the fields common to every state
type Header struct {
	Number      string
	Description string
}

// StateNumber returns the three-digit state number
func (h Header) StateNumber() string { return h.Number }

func (Header) state() {}

// fdkOrder maps A-D to indexes of the four-key next-state arrays
var fdkOrder = [4]Key{'A', 'B', 'C', 'D'}

// FourKeys holds next states for FDKs A through D
type FourKeys [4]Ref

// For returns the next state for key, or NoRef when key is not A-D
func (f FourKeys) For(k Key) Ref {
	for i, fk := range fdkOrder {
		if fk == k {
			return f[i]
		}
	}
	return NoRef
}

// mask returns the keys whose next state is set
func (f FourKeys) mask() FDKSet {
	var s FDKSet
	for i, r := range f {
		if r.Valid() {
			s.Enable(fdkOrder[i])
		}
	}
	return s
}

// CardReadState (A) waits for a card and resets the session buffers
type CardReadState struct {
	Header
	ScreenNumber   string
	GoodReadNext   Ref
	ErrorScreen    string
	ReadCondition1 string
	ReadCondition2 string
	ReadCondition3 string
	CardReturnFlag string
	NoFITMatchNext Ref
}

func (*CardReadState) StateType() Type { return TypeCardRead }

// PINEntryState (B) collects the PIN
type PINEntryState struct {
	Header
	ScreenNumber         string
	TimeoutNext          Ref
	CancelNext           Ref
	LocalPINGoodNext     Ref
	LocalPINMaxBadNext   Ref
	ErrorScreen          string
	RemotePINCheckNext   Ref
	LocalPINCheckRetries string
}

func (*PINEntryState) StateType() Type { return TypePINEntry }

// PresetState (D) presets the operation code buffer
type PresetState struct {
	Header
	Next      Ref
	ClearMask uint8
	// Preset masks for A, B, C and D; F-I come from the extension state
	PresetMasks [4]uint8
	Extension   Ref
}

func (*PresetState) StateType() Type { return TypePreset }

// FourFDKSelectionState (E) writes the pressed key into the opcode buffer
type FourFDKSelectionState struct {
	Header
	ScreenNumber string
	TimeoutNext  Ref
	CancelNext   Ref
	FDKNext      FourKeys
	// BufferLocation addresses opcode position 7 - BufferLocation
	BufferLocation string
}

func (*FourFDKSelectionState) StateType() Type { return TypeFourFDKSelection }

// AmountEntryState (F) collects an amount on the pinpad
type AmountEntryState struct {
	Header
	ScreenNumber        string
	TimeoutNext         Ref
	CancelNext          Ref
	FDKNext             FourKeys
	AmountDisplayScreen string
}

func (*AmountEntryState) StateType() Type { return TypeAmountEntry }

// InformationEntryState (H) collects free data into buffer B or C
type InformationEntryState struct {
	Header
	ScreenNumber string
	TimeoutNext  Ref
	CancelNext   Ref
	FDKNext      FourKeys
	// BufferAndDisplayParams: the third character selects buffer and echo
	BufferAndDisplayParams string
}

func (*InformationEntryState) StateType() Type { return TypeInformationEntry }

// Display parameter of an information entry state
func (s *InformationEntryState) displayParam() byte {
	if len(s.BufferAndDisplayParams) < 3 {
		return 0
	}
	return s.BufferAndDisplayParams[2]
}

// Send flags of a transaction request state
const (
	SendNo             = "000"
	SendYes            = "001"
	SendBufferB        = "001"
	SendBufferC        = "002"
	SendBuffersBC      = "003"
	SendPINExtendedNo  = "128"
	SendPINExtendedYes = "129"
)

// TransactionRequestState (I) sends a transaction request to the host
type TransactionRequestState struct {
	Header
	ScreenNumber      string
	TimeoutNext       Ref
	SendTrack2        string
	SendTrack1Track3  string
	SendOperationCode string
	SendAmountData    string
	SendPINBuffer     string
	SendBufferBC      string
}

func (*TransactionRequestState) StateType() Type { return TypeTransactionRequest }

// CloseState (J) ends the session
type CloseState struct {
	Header
	ReceiptDeliveredScreen   string
	Next                     Ref
	NoReceiptDeliveredScreen string
	CardRetainedScreen       string
	StatementDeliveredScreen string
	BNANotesReturnedScreen   string
	Extension                Ref
}

func (*CloseState) StateType() Type { return TypeClose }

// InstitutionBranchState (K) branches on the FIT institution of the card
type InstitutionBranchState struct {
	Header
	// StatesTo is indexed by institution ID
	StatesTo [8]Ref
}

func (*InstitutionBranchState) StateType() Type { return TypeInstitutionBranch }

// FDKBranchState (W) branches on the key held in the FDK buffer
type FDKBranchState struct {
	Header
	States map[Key]Ref
}

func (*FDKBranchState) StateType() Type { return TypeFDKBranch }

// FDKInformationState (X) routes an extension state value into a buffer
type FDKInformationState struct {
	Header
	ScreenNumber  string
	TimeoutNext   Ref
	CancelNext    Ref
	FDKNext       Ref
	Extension     Ref
	BufferID      string
	FDKActiveMask string
}

func (*FDKInformationState) StateType() Type { return TypeFDKInformation }

// FDKOpcodeState (Y) writes the pressed key into the opcode buffer
type FDKOpcodeState struct {
	Header
	ScreenNumber    string
	TimeoutNext     Ref
	CancelNext      Ref
	FDKNext         Ref
	Extension       Ref
	BufferPositions string
	FDKActiveMask   string
}

func (*FDKOpcodeState) StateType() Type { return TypeFDKOpcode }

// ICCInitState (+) would start chip initialisation
type ICCInitState struct {
	Header
	StartedNext    Ref
	NotStartedNext Ref
	Requirement    string
}

func (*ICCInitState) StateType() Type { return TypeICCInit }

// ICCAppInitState (/) would complete chip application selection
type ICCAppInitState struct {
	Header
	PleaseWaitScreen      string
	AppNameTemplateScreen string
	AppNameScreen         string
	Extension             Ref
}

func (*ICCAppInitState) StateType() Type { return TypeICCAppInit }

// Extension entry of an ICC app init state holding the next state when
// processing was not performed
const iccProcessingNotPerformedEntry = 8

// ICCReinitState (;) would re-initialise the chip
type ICCReinitState struct {
	Header
	GoodReadNext               Ref
	ProcessingFailedNext       Ref
	ProcessingNotPerformedNext Ref
}

func (*ICCReinitState) StateType() Type { return TypeICCReinit }

// ICCDataState (?) would set chip data
type ICCDataState struct {
	Header
	Next Ref
}

func (*ICCDataState) StateType() Type { return TypeICCData }

// ExtensionState (Z) holds extra per-key values for another state.
// Entries is indexed by table entry number; entries 0 and 1 are unused.
type ExtensionState struct {
	Header
	Entries [10]string
}

func (*ExtensionState) StateType() Type { return TypeExtension }

// Table entries of an extension state keyed by FDK
var extensionKeyEntry = map[Key]int{
	'A': 2, 'B': 3, 'C': 4, 'D': 5, 'F': 6, 'G': 7, 'H': 8, 'I': 9,
}

// ValueFor returns the entry selected by key. E has no entry.
func (e *ExtensionState) ValueFor(k Key) (string, bool) {
	i, ok := extensionKeyEntry[k]
	if !ok {
		return "", false
	}
	return e.Entries[i], true
}

// UnknownState is a loaded entry with a type tag the engine cannot run
type UnknownState struct {
	Header
	Tag    byte
	Fields [8]string
}

func (s *UnknownState) StateType() Type { return Type(s.Tag) }
