// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

// Package cmd implements the firmware specific console commands.
package cmd

import (
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-sbi/monitor_sifive_u/internal"
	"github.com/usbarmory/GoTEE-sbi/shell"
)

func init() {
	shell.Add(shell.Cmd{
		Name: "gotee",
		Help: "run the Main OS with TEE world switch support",
		Fn:   goteeCmd,
	})
}

func goteeCmd(_ *term.Terminal, _ []string) (res string, err error) {
	return "", gotee.GoTEE()
}
