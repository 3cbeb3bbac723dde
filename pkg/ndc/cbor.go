// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ndc

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrEmptyBody is returned when a frame carries no message body
var ErrEmptyBody = errors.New("empty CBOR body")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Sorted keys keep encoded bodies byte-stable for CRC comparisons in tests
	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("ndc: cbor encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 256,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("ndc: cbor decode mode: %v", err))
	}
}

// ParseMessage decodes a CBOR message body into a Message
func ParseMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}

	var msg Message
	if err := decMode.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	return &msg, nil
}

// MarshalMessage encodes a Message into its CBOR body
func MarshalMessage(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("nil message")
	}
	return encMode.Marshal(m)
}
