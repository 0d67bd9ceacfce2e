// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"fmt"
)

// Privilege levels
const (
	PrivUser       = 0
	PrivSupervisor = 1
	PrivMachine    = 3
)

// mstatus fields
const (
	MSTATUS_SIE      = 1
	MSTATUS_SPIE     = 5
	MSTATUS_SPP      = 8
	MSTATUS_MPP      = 11
	MSTATUS_MPP_MASK = 0b11 << MSTATUS_MPP
)

// TrapRegs represents the register file saved on trap entry to Machine mode.
type TrapRegs struct {
	// X holds the general purpose registers, X[0] is never used.
	X [32]uint64
	// MEPC is the saved program counter.
	MEPC uint64
	// MStatus is the saved machine status register.
	MStatus uint64
	// Hart is the identifier of the trapping hart.
	Hart uint64
}

// A returns argument register a<n>.
func (r *TrapRegs) A(n int) uint64 {
	return r.X[10+n]
}

// SetA sets argument register a<n>.
func (r *TrapRegs) SetA(n int, val uint64) {
	r.X[10+n] = val
}

// SetError sets the a0 error code.
func (r *TrapRegs) SetError(e Error) {
	r.SetA(0, uint64(e))
}

// Ext returns the extension identifier of the trapped call.
func (r *TrapRegs) Ext() uint64 {
	return r.A(7)
}

// Func returns the function identifier of the trapped call.
func (r *TrapRegs) Func() uint64 {
	return r.A(6)
}

// PrevPriv returns the privilege level the trap was taken from.
func (r *TrapRegs) PrevPriv() int {
	return int((r.MStatus & MSTATUS_MPP_MASK) >> MSTATUS_MPP)
}

func (r *TrapRegs) String() string {
	return fmt.Sprintf("hart:%d mepc:%#.16x a0:%#x a1:%#x a6:%#x a7:%#x", r.Hart, r.MEPC, r.A(0), r.A(1), r.A(6), r.A(7))
}

// TrapInfo describes a synthetic exception to be delivered to the caller.
type TrapInfo struct {
	// EPC is the program counter of the faulting call.
	EPC uint64
	// Cause is the exception code.
	Cause uint64
	// Tval is the exception specific value.
	Tval uint64
}

// Call represents a trapped ecall as seen by an extension handler.
type Call struct {
	Ext  uint64
	Func uint64
	Args [6]uint64
	Hart uint64
}

func newCall(regs *TrapRegs) *Call {
	c := &Call{
		Ext:  regs.Ext(),
		Func: regs.Func(),
		Hart: regs.Hart,
	}

	for i := range c.Args {
		c.Args[i] = regs.A(i)
	}

	return c
}

type resultKind int

const (
	resultValue resultKind = iota
	resultTrap
)

// Result represents the outcome of an extension handler, either a value
// returned to the caller or a trap to be redirected to it.
type Result struct {
	kind  resultKind
	code  Error
	value uint64
	trap  TrapInfo
}

// Value returns a result carrying an error code (a0) and a value (a1).
func Value(code Error, val uint64) Result {
	return Result{kind: resultValue, code: code, value: val}
}

// Err returns a result carrying only an error code.
func Err(code Error) Result {
	return Value(code, 0)
}

// Trap returns a result requesting the delivery of a synthetic exception to
// the caller privilege level.
func Trap(cause uint64, tval uint64) Result {
	return Result{kind: resultTrap, trap: TrapInfo{Cause: cause, Tval: tval}}
}

// Redirect returns whether the result is a trap redirection.
func (r Result) Redirect() bool {
	return r.kind == resultTrap
}

// Code returns the result error code.
func (r Result) Code() Error {
	return r.code
}

// Val returns the result value.
func (r Result) Val() uint64 {
	return r.value
}

// TrapInfo returns the trap to redirect.
func (r Result) TrapInfo() TrapInfo {
	return r.trap
}

// Handler represents an extension call handler.
type Handler interface {
	Handle(call *Call) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(call *Call) Result

// Handle calls f(call).
func (f HandlerFunc) Handle(call *Call) Result {
	return f(call)
}

// ContextHandler represents a handler which takes full ownership of the trap
// return state (program counter and return registers).
type ContextHandler interface {
	HandleContext(call *Call, regs *TrapRegs)
}
