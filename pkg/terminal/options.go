// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "log/slog"

// Option is a functional option for configuring a Terminal
type Option func(*Terminal)

// WithLogger sets the logger used for diagnostics
func WithLogger(log *slog.Logger) Option {
	return func(t *Terminal) {
		if log != nil {
			t.log = log
		}
	}
}

// WithKeyQueueCapacity bounds the number of pending key presses
func WithKeyQueueCapacity(capacity int) Option {
	return func(t *Terminal) {
		t.keyCapacity = capacity
	}
}

// WithDefaultMaxPINLength sets the PIN length used when no card or FIT
// entry provides one
func WithDefaultMaxPINLength(n int) Option {
	return func(t *Terminal) {
		if n >= 4 && n <= MaxPINLength {
			t.defaultMaxPIN = n
		}
	}
}
