// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"strconv"
	"strings"
)

// Key names a function display key, 'A' through 'I'
type Key byte

// All function keys in mask order
var allKeys = []Key{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I'}

// Key order of the three-digit decimal mask form, E excluded
var decimalMaskKeys = []Key{'A', 'B', 'C', 'D', 'F', 'G', 'H', 'I'}

// ParseKey accepts a single letter A-I in either case
func ParseKey(s string) (Key, bool) {
	if len(s) != 1 {
		return 0, false
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'I' {
		return 0, false
	}
	return Key(c), true
}

func (k Key) String() string {
	return string(rune(k))
}

// FDKSet is the set of currently enabled function keys
type FDKSet uint16

func (s FDKSet) bit(k Key) FDKSet {
	return 1 << uint(k-'A')
}

// SetMask replaces the set from a host or state mask.
//
// Up to three characters is a decimal 0-255 over A,B,C,D,F,G,H,I. Longer
// strings are binary: the first character is the numeric keys activator
// and is ignored, the rest map '1' positions onto A through I. A rejected
// mask leaves the set unchanged.
func (s *FDKSet) SetMask(mask string) error {
	if mask == "" {
		return invalid("FDK mask", mask, ErrEmptyMask)
	}

	var next FDKSet
	if len(mask) <= 3 {
		n, err := strconv.Atoi(mask)
		if err != nil || n < 0 || n > 255 {
			return invalid("FDK mask", mask, ErrOutOfRange)
		}
		for i, k := range decimalMaskKeys {
			if n&(1<<uint(i)) != 0 {
				next |= next.bit(k)
			}
		}
	} else {
		for i, c := range mask[1:] {
			if i >= len(allKeys) {
				break
			}
			if c == '1' {
				next |= next.bit(allKeys[i])
			}
		}
	}

	*s = next
	return nil
}

// Enable adds keys to the set
func (s *FDKSet) Enable(keys ...Key) {
	for _, k := range keys {
		if k >= 'A' && k <= 'I' {
			*s |= s.bit(k)
		}
	}
}

// Clear disables every key
func (s *FDKSet) Clear() {
	*s = 0
}

// IsActive reports whether the named key is enabled. Case does not matter;
// an empty or unknown name is never active.
func (s FDKSet) IsActive(name string) bool {
	k, ok := ParseKey(name)
	if !ok {
		return false
	}
	return s&s.bit(k) != 0
}

// Keys returns the enabled keys in A-I order
func (s FDKSet) Keys() []Key {
	var keys []Key
	for _, k := range allKeys {
		if s&s.bit(k) != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s FDKSet) String() string {
	var sb strings.Builder
	for _, k := range s.Keys() {
		sb.WriteByte(byte(k))
	}
	return sb.String()
}
