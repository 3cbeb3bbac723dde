// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hsm holds the terminal's DES keys and builds encrypted PIN
// blocks for transaction requests.
package hsm

import (
	"crypto/cipher"
	"crypto/des"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Errors
var (
	ErrNoKey      = errors.New("no key loaded")
	ErrInvalidKey = errors.New("invalid key")
	ErrInvalidPIN = errors.New("invalid PIN")
	ErrInvalidPAN = errors.New("invalid card number")
)

// Keys is the terminal key store
type Keys struct {
	master cipher.Block
	comms  cipher.Block
	log    *slog.Logger
}

// New creates a key store with the given master key, which may be empty
func New(master []byte, log *slog.Logger) (*Keys, error) {
	if log == nil {
		log = slog.Default()
	}
	k := &Keys{log: log}
	if len(master) > 0 {
		block, err := newBlock(master)
		if err != nil {
			return nil, fmt.Errorf("master key: %w", err)
		}
		k.master = block
	}
	return k, nil
}

// ParseHexKey decodes a hex key of 8, 16 or 24 bytes
func ParseHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if _, err := newBlock(key); err != nil {
		return nil, err
	}
	return key, nil
}

// newBlock builds single DES for 8-byte keys and triple DES for double
// (K1 K2 K1) or triple length keys
func newBlock(key []byte) (cipher.Block, error) {
	switch len(key) {
	case 8:
		return des.NewCipher(key)
	case 16:
		full := make([]byte, 0, 24)
		full = append(full, key...)
		full = append(full, key[:8]...)
		return des.NewTripleDESCipher(full)
	case 24:
		return des.NewTripleDESCipher(key)
	default:
		return nil, fmt.Errorf("%w: length %d", ErrInvalidKey, len(key))
	}
}

// SetCommsKey deciphers a new communications key under the master key.
// data is a run of three-digit decimal bytes; length is the number of
// data characters in three hex digits.
func (k *Keys) SetCommsKey(data, length string) error {
	if k.master == nil {
		return fmt.Errorf("comms key: %w: master", ErrNoKey)
	}

	n := len(data)
	if length != "" {
		parsed, err := strconv.ParseUint(length, 16, 16)
		if err != nil {
			return fmt.Errorf("%w: key length %q", ErrInvalidKey, length)
		}
		n = int(parsed)
	}
	if n > len(data) || n%3 != 0 {
		return fmt.Errorf("%w: %d key characters, %d available", ErrInvalidKey, n, len(data))
	}

	encrypted := make([]byte, n/3)
	for i := range encrypted {
		b, err := strconv.ParseUint(data[i*3:i*3+3], 10, 8)
		if err != nil {
			return fmt.Errorf("%w: byte %q", ErrInvalidKey, data[i*3:i*3+3])
		}
		encrypted[i] = byte(b)
	}
	if len(encrypted)%des.BlockSize != 0 {
		return fmt.Errorf("%w: length %d", ErrInvalidKey, len(encrypted))
	}

	plain := make([]byte, len(encrypted))
	for i := 0; i < len(encrypted); i += des.BlockSize {
		k.master.Decrypt(plain[i:], encrypted[i:i+des.BlockSize])
	}

	block, err := newBlock(plain)
	if err != nil {
		return err
	}
	k.comms = block
	k.log.Info("comms key loaded", slog.Int("length", len(plain)))
	return nil
}

// HasCommsKey reports whether a comms key was loaded
func (k *Keys) HasCommsKey() bool {
	return k.comms != nil
}

// PINBlock builds a clear ISO 9564 format 0 PIN block
func PINBlock(pin, cardNumber string) ([]byte, error) {
	if len(pin) < 4 || len(pin) > 12 || !digits(pin) {
		return nil, fmt.Errorf("%w: %d digits", ErrInvalidPIN, len(pin))
	}
	if len(cardNumber) < 13 || !digits(cardNumber) {
		return nil, ErrInvalidPAN
	}

	pinField := fmt.Sprintf("0%X%s", len(pin), pin)
	pinField += strings.Repeat("F", 16-len(pinField))

	// Rightmost 12 digits excluding the check digit
	pan := cardNumber[len(cardNumber)-13 : len(cardNumber)-1]
	panField := "0000" + pan

	p, _ := hex.DecodeString(pinField)
	a, _ := hex.DecodeString(panField)
	block := make([]byte, 8)
	for i := range block {
		block[i] = p[i] ^ a[i]
	}
	return block, nil
}

// GetEncryptedPIN returns the format 0 PIN block encrypted under the comms
// key (or the master key before one is loaded) in host format
func (k *Keys) GetEncryptedPIN(pin, cardNumber string) (string, error) {
	key := k.comms
	if key == nil {
		key = k.master
	}
	if key == nil {
		return "", fmt.Errorf("PIN encryption: %w", ErrNoKey)
	}

	block, err := PINBlock(pin, cardNumber)
	if err != nil {
		return "", err
	}
	encrypted := make([]byte, des.BlockSize)
	key.Encrypt(encrypted, block)
	return HostFormat(encrypted), nil
}

// HostFormat writes bytes as hex with A-F sent as the characters : to ?
func HostFormat(b []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'F' {
			return r - 'A' + ':'
		}
		return r
	}, strings.ToUpper(hex.EncodeToString(b)))
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
