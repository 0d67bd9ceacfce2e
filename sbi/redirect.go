// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

// Redirector delivers a synthetic exception to the privilege level of a
// trapped caller.
type Redirector interface {
	Redirect(regs *TrapRegs, trap *TrapInfo) error
}

// SupervisorCSR represents the supervisor trap CSRs of the trapping hart.
type SupervisorCSR interface {
	Stvec() uint64
	SetSepc(uint64)
	SetScause(uint64)
	SetStval(uint64)
	Sstatus() uint64
	SetSstatus(uint64)
}

// SupervisorRedirect redirects traps to the supervisor trap vector, as if the
// exception had been taken directly by supervisor mode.
type SupervisorRedirect struct {
	// CSR returns the supervisor CSRs of a hart.
	CSR func(hart uint64) SupervisorCSR
}

// Redirect implements Redirector.
func (s *SupervisorRedirect) Redirect(regs *TrapRegs, trap *TrapInfo) (err error) {
	prev := regs.PrevPriv()

	if prev != PrivSupervisor && prev != PrivUser {
		return ErrNotSupported
	}

	if s.CSR == nil {
		return ErrFailed
	}

	csr := s.CSR(regs.Hart)

	if csr == nil {
		return ErrFailed
	}

	csr.SetStval(trap.Tval)
	csr.SetSepc(trap.EPC)
	csr.SetScause(trap.Cause)

	sstatus := csr.Sstatus()

	// previous supervisor privilege
	if prev == PrivSupervisor {
		sstatus |= 1 << MSTATUS_SPP
	} else {
		sstatus &^= 1 << MSTATUS_SPP
	}

	// interrupt enable stack
	if sstatus&(1<<MSTATUS_SIE) != 0 {
		sstatus |= 1 << MSTATUS_SPIE
	} else {
		sstatus &^= 1 << MSTATUS_SPIE
	}

	sstatus &^= 1 << MSTATUS_SIE
	csr.SetSstatus(sstatus)

	// return to supervisor trap vector
	regs.MStatus = (regs.MStatus &^ MSTATUS_MPP_MASK) | (PrivSupervisor << MSTATUS_MPP)
	regs.MEPC = csr.Stvec()

	return
}
