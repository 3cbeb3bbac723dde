// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "strings"

// Card is the card read for the current session
type Card struct {
	Number      string
	ServiceCode string
	Track2      string
}

// ParseTrack2 splits track 2 data of the form ;PAN=YYMMSSS...? into a card.
// Start and end sentinels are optional.
func ParseTrack2(track2 string) (*Card, error) {
	data := strings.TrimSuffix(strings.TrimPrefix(track2, ";"), "?")
	number, rest, found := strings.Cut(data, "=")
	if !found || number == "" {
		return nil, invalid("track 2", track2, ErrInvalidTrack2)
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return nil, invalid("track 2", track2, ErrInvalidTrack2)
		}
	}
	// Expiry date YYMM precedes the service code
	if len(rest) < 7 {
		return nil, invalid("track 2", track2, ErrInvalidTrack2)
	}
	return &Card{
		Number:      number,
		ServiceCode: rest[4:7],
		Track2:      track2,
	}, nil
}
