// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ndcterm - NDC Terminal Emulator
//
// A CLI tool that emulates the terminal side of an NDC host link and
// drives, monitors and decodes the link in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/ndcterm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
