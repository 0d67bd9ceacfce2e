// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hart simulates the Machine mode view of RISC-V harts running
// supervisor code, for use of the security monitor on a host.
package hart

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
)

// Hart represents a simulated hart.
type Hart struct {
	sync.Mutex

	// ID is the hart identifier.
	ID uint64
	// PMP is the hart PMP CSR file.
	PMP *pmp.Bank
	// Regs is the supervisor register file.
	Regs sbi.TrapRegs

	stvec   uint64
	sepc    uint64
	scause  uint64
	stval   uint64
	sstatus uint64

	stimecmp uint64

	// cross hart state, updated without the hart lock
	ssip   atomic.Bool
	fences atomic.Uint64
}

// New returns a hart executing supervisor code at the argument address.
func New(id uint64, entries int, pc uint64) *Hart {
	return &Hart{
		ID:  id,
		PMP: pmp.NewBank(entries),
		Regs: sbi.TrapRegs{
			MEPC:    pc,
			MStatus: sbi.PrivSupervisor << sbi.MSTATUS_MPP,
			Hart:    id,
		},
	}
}

// The following methods implement sbi.SupervisorCSR, they are invoked by the
// trap redirection while the hart lock is held.

// Stvec returns the supervisor trap vector.
func (h *Hart) Stvec() uint64 { return h.stvec }

// SetSepc sets the supervisor exception program counter.
func (h *Hart) SetSepc(v uint64) { h.sepc = v }

// SetScause sets the supervisor trap cause.
func (h *Hart) SetScause(v uint64) { h.scause = v }

// SetStval sets the supervisor trap value.
func (h *Hart) SetStval(v uint64) { h.stval = v }

// Sstatus returns the supervisor status register.
func (h *Hart) Sstatus() uint64 { return h.sstatus }

// SetSstatus sets the supervisor status register.
func (h *Hart) SetSstatus(v uint64) { h.sstatus = v }

// SetStvec sets the supervisor trap vector.
func (h *Hart) SetStvec(v uint64) {
	h.Lock()
	defer h.Unlock()

	h.stvec = v
}

// Trap returns the last trap delivered to supervisor mode.
func (h *Hart) Trap() sbi.TrapInfo {
	h.Lock()
	defer h.Unlock()

	return sbi.TrapInfo{EPC: h.sepc, Cause: h.scause, Tval: h.stval}
}

// Timer returns the supervisor timer compare value.
func (h *Hart) Timer() uint64 {
	h.Lock()
	defer h.Unlock()

	return h.stimecmp
}

// Ecall executes an ecall instruction at the current program counter, the
// trap is serviced by the argument dispatcher. The a0 and a1 registers are
// returned.
func (h *Hart) Ecall(d *sbi.Dispatcher, ext uint64, fid uint64, args ...uint64) (a0 uint64, a1 uint64, err error) {
	if len(args) > 6 {
		return 0, 0, fmt.Errorf("too many arguments (%d)", len(args))
	}

	h.Lock()
	defer h.Unlock()

	for i := 0; i < 6; i++ {
		var arg uint64

		if i < len(args) {
			arg = args[i]
		}

		h.Regs.SetA(i, arg)
	}

	h.Regs.SetA(6, fid)
	h.Regs.SetA(7, ext)
	h.Regs.Hart = h.ID

	err = d.Handle(&h.Regs)

	return h.Regs.A(0), h.Regs.A(1), err
}

// Access returns whether a supervisor access is allowed by the hart PMP.
func (h *Hart) Access(addr uint64, perm pmp.Perm) bool {
	return h.PMP.Check(addr, perm)
}

func (h *Hart) String() string {
	h.Lock()
	defer h.Unlock()

	return h.Regs.String()
}

// PendingIPI returns and clears the supervisor software interrupt pending
// bit.
func (h *Hart) PendingIPI() bool {
	return h.ssip.Swap(false)
}

// Fences returns the number of remote fences executed on the hart.
func (h *Hart) Fences() uint64 {
	return h.fences.Load()
}
