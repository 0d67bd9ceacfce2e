// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"log"
	"sync/atomic"
)

// Gate routes a sub-range of function identifiers of one extension to a
// handler which owns the trap return state.
type Gate struct {
	// Ext is the extension identifier.
	Ext uint64
	// MinFunc is the lowest function identifier routed through the gate.
	MinFunc uint64
	// Handler services the gated calls.
	Handler ContextHandler
}

func (g *Gate) matches(ext uint64, fid uint64) bool {
	return g != nil && g.Handler != nil && ext == g.Ext && fid >= g.MinFunc
}

// Dispatcher services trapped ecalls.
type Dispatcher struct {
	// Registry holds the extensions to dispatch to.
	Registry *Registry
	// Redirector delivers traps requested by handlers.
	Redirector Redirector
	// Debug enables logging of each dispatched call.
	Debug bool

	gate atomic.Pointer[Gate]
}

// Bridge installs the gate for context owning calls, replacing any previous
// one.
func (d *Dispatcher) Bridge(g *Gate) {
	d.gate.Store(g)
}

// Handle services the ecall saved in the trapped register file, it always
// leaves the register file in a defined trap return state. The returned error
// reports a failed trap redirection, in which case the call completes with
// ErrFailed.
func (d *Dispatcher) Handle(regs *TrapRegs) (err error) {
	call := newCall(regs)

	if d.Debug {
		log.Printf("SM ecall %s", regs)
	}

	if g := d.gate.Load(); g.matches(call.Ext, call.Func) {
		// the handler owns pc and return registers from here on
		regs.MEPC += InstructionSize
		g.Handler.HandleContext(call, regs)
		return
	}

	res := Err(ErrNotSupported)

	if d.Registry != nil {
		if ext := d.Registry.Find(call.Ext); ext != nil {
			res = ext.Handler.Handle(call)
		}
	}

	if res.Redirect() {
		trap := res.TrapInfo()
		trap.EPC = regs.MEPC

		if d.Redirector == nil {
			err = ErrNotSupported
		} else {
			err = d.Redirector.Redirect(regs, &trap)
		}

		if err == nil {
			return
		}

		// complete the call as failed rather than re-entering the ecall
		log.Printf("SM could not redirect trap cause:%#x epc:%#x, %v", trap.Cause, trap.EPC, err)
		res = Err(ErrFailed)
	}

	regs.MEPC += InstructionSize
	regs.SetError(res.Code())

	if !IsLegacy(call.Ext) {
		regs.SetA(1, res.Val())
	}

	return
}
