// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package gotee

import (
	"github.com/usbarmory/GoTEE/monitor"

	"github.com/usbarmory/GoTEE-sbi/sm"
)

// Monitor is the security monitor instance of the boot hart.
var Monitor *sm.Monitor

// bootHart is the only hart running the security monitor under TamaGo.
const bootHart = 0

// configurePMP applies the trust domain permissions of an execution context
// before it is scheduled, PMP entries are owned by the security monitor
// region table regardless of the argument index.
func configurePMP(ctx *monitor.ExecCtx, _ int) (err error) {
	if ctx.Secure() {
		return Monitor.EnterTrusted(bootHart)
	}

	return Monitor.EnterNormal(bootHart)
}
