// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package gotee

import (
	"fmt"
	"log"
	"sync"

	"github.com/usbarmory/GoTEE/monitor"
	"github.com/usbarmory/GoTEE/syscall"

	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/util"
)

// Console is the world aware console of the execution contexts.
var Console = &util.Log{}

// Dispatcher services the SBI calls of the execution contexts.
var Dispatcher *sbi.Dispatcher

// trapRegs returns the trap register file of an execution context which
// issued an ecall from supervisor mode.
func trapRegs(ctx *monitor.ExecCtx) *sbi.TrapRegs {
	return &sbi.TrapRegs{
		X: [32]uint64{
			0, ctx.X1, ctx.X2, ctx.X3, ctx.X4, ctx.X5, ctx.X6, ctx.X7,
			ctx.X8, ctx.X9, ctx.X10, ctx.X11, ctx.X12, ctx.X13, ctx.X14, ctx.X15,
			ctx.X16, ctx.X17, ctx.X18, ctx.X19, ctx.X20, ctx.X21, ctx.X22, ctx.X23,
			ctx.X24, ctx.X25, ctx.X26, ctx.X27, ctx.X28, ctx.X29, ctx.X30, ctx.X31,
		},
		MEPC:    ctx.PC,
		MStatus: sbi.PrivSupervisor << sbi.MSTATUS_MPP,
	}
}

// setRegs updates an execution context after a serviced ecall.
func setRegs(ctx *monitor.ExecCtx, regs *sbi.TrapRegs) {
	x := &regs.X

	ctx.X1, ctx.X2, ctx.X3, ctx.X4, ctx.X5, ctx.X6, ctx.X7 = x[1], x[2], x[3], x[4], x[5], x[6], x[7]
	ctx.X8, ctx.X9, ctx.X10, ctx.X11, ctx.X12, ctx.X13, ctx.X14, ctx.X15 = x[8], x[9], x[10], x[11], x[12], x[13], x[14], x[15]
	ctx.X16, ctx.X17, ctx.X18, ctx.X19, ctx.X20, ctx.X21, ctx.X22, ctx.X23 = x[16], x[17], x[18], x[19], x[20], x[21], x[22], x[23]
	ctx.X24, ctx.X25, ctx.X26, ctx.X27, ctx.X28, ctx.X29, ctx.X30, ctx.X31 = x[24], x[25], x[26], x[27], x[28], x[29], x[30], x[31]

	ctx.PC = regs.MEPC
}

// StopRedirect stops execution contexts on trap redirection requests, as
// supervisor trap CSRs are not emulated.
type StopRedirect struct {
	// in flight ecalls, by trap register file
	calls sync.Map
}

// Redirect implements sbi.Redirector.
func (r *StopRedirect) Redirect(regs *sbi.TrapRegs, trap *sbi.TrapInfo) error {
	v, ok := r.calls.Load(regs)

	if !ok {
		return sbi.ErrFailed
	}

	log.Printf("SM stopping context on trap cause:%#x epc:%#x tval:%#x", trap.Cause, trap.EPC, trap.Tval)
	v.(*monitor.ExecCtx).Stop()

	return nil
}

// Redirector is the trap redirector of the dispatcher.
var Redirector = &StopRedirect{}

func goHandler(ctx *monitor.ExecCtx) (err error) {
	defaultHandler := monitor.SecureHandler

	if !ctx.Secure() {
		defaultHandler = monitor.NonSecureHandler
	}

	switch {
	case ctx.A0() == syscall.SYS_WRITE:
		// Override write syscall to avoid interleaved logs
		Console.BufferedLog(byte(ctx.A1()), ctx.Secure())
	case !ctx.Secure() && ctx.A0() == syscall.SYS_EXIT:
		ctx.Stop()
	default:
		return defaultHandler(ctx)
	}

	return
}

func sbiHandler(ctx *monitor.ExecCtx) (err error) {
	// SBI v0.2 or higher calls are treated separately from GoTEE calls
	if ctx.X17 == 0 {
		return goHandler(ctx)
	}

	if Dispatcher == nil {
		return fmt.Errorf("SM dispatcher not initialized")
	}

	regs := trapRegs(ctx)

	Redirector.calls.Store(regs, ctx)
	defer Redirector.calls.Delete(regs)

	if err = Dispatcher.Handle(regs); err != nil {
		return
	}

	setRegs(ctx, regs)

	return
}
