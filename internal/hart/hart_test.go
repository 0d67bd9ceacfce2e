// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hart

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/GoTEE-sbi/mem"
	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

const (
	harts   = 2
	entryPC = mem.NonSecureStart
	stvec   = mem.NonSecureStart + 0x1000

	causeIllegalInstruction = 2
)

func boot(t *testing.T) (*Machine, *sbi.Dispatcher) {
	machine := NewMachine(harts, pmp.DefaultEntries, entryPC)
	alloc := pmp.NewAllocator(pmp.DefaultEntries)
	r := &sbi.Registry{}

	d := &sbi.Dispatcher{
		Registry:   r,
		Redirector: &sbi.SupervisorRedirect{CSR: machine.CSR},
	}

	trap := &sbi.Extension{
		Name:  "trap",
		Start: sbi.ExtVendorEnd + 1,
		End:   sbi.ExtVendorEnd + 1,
		Handler: sbi.HandlerFunc(func(call *sbi.Call) sbi.Result {
			return sbi.Trap(causeIllegalInstruction, call.Args[0])
		}),
	}

	if err := r.Register(trap); err != nil {
		t.Fatal(err)
	}

	m := sm.New(sm.Config{
		Layout:           mem.Layout(),
		Regions:          alloc,
		Registry:         r,
		Dispatcher:       d,
		TEEEntry:         mem.TEEStart,
		SecureInterrupts: mem.SecureInterrupts,
	})

	err := sbi.Init(r, &sbi.Platform{
		Timer:  machine,
		IPI:    machine,
		RFence: machine,
		HSM:    m,
	})

	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup

	for _, h := range machine.Harts {
		h.SetStvec(stvec)
		wg.Add(1)

		go func(h *Hart) {
			defer wg.Done()
			m.Init(h.ID, alloc.Hart(h.PMP), h.ID == 0)
		}(h)
	}

	wg.Wait()

	return machine, d
}

func TestEcall(t *testing.T) {
	machine, d := boot(t)
	h := machine.Harts[1]

	a0, a1, err := h.Ecall(d, sbi.ExtBase, sbi.BaseGetSpecVersion)

	if err != nil {
		t.Fatal(err)
	}

	if a0 != 0 || a1 != sbi.SpecVersion() {
		t.Fatalf("a0:%d a1:%#x", a0, a1)
	}

	if _, _, err = h.Ecall(d, sbi.ExtTime, 0, 0x1234); err != nil {
		t.Fatal(err)
	}

	if h.Timer() != 0x1234 || machine.Harts[0].Timer() != 0 {
		t.Fatalf("unexpected timer state %#x", h.Timer())
	}

	if h.Regs.MEPC != entryPC+2*sbi.InstructionSize {
		t.Fatalf("mepc %#x", h.Regs.MEPC)
	}

	if _, _, err = h.Ecall(d, 0, 0, 1, 2, 3, 4, 5, 6, 7); err == nil {
		t.Fatal("ecall with 7 arguments succeeded")
	}
}

func TestEcallRedirect(t *testing.T) {
	machine, d := boot(t)
	h := machine.Harts[0]

	if _, _, err := h.Ecall(d, sbi.ExtVendorEnd+1, 0, 0xbad); err != nil {
		t.Fatal(err)
	}

	want := sbi.TrapInfo{EPC: entryPC, Cause: causeIllegalInstruction, Tval: 0xbad}

	if diff := cmp.Diff(want, h.Trap()); diff != "" {
		t.Fatalf("unexpected trap (-want +got):\n%s", diff)
	}

	if h.Regs.MEPC != stvec {
		t.Fatalf("mepc %#x, want %#x", h.Regs.MEPC, stvec)
	}
}

func TestEcallWorldSwitch(t *testing.T) {
	machine, d := boot(t)
	h := machine.Harts[1]

	if !h.Access(mem.NonSecureStart, pmp.AllPerm) || h.Access(mem.TEEStart, pmp.R) || h.Access(mem.SecureStart, pmp.R) {
		t.Fatal("unexpected baseline access")
	}

	a0, a1, err := h.Ecall(d, sbi.ExtBase, sm.FuncEnterTEE, 5, 6)

	if err != nil {
		t.Fatal(err)
	}

	if a0 != 5 || a1 != 6 || h.Regs.MEPC != mem.TEEStart {
		t.Fatalf("unexpected TEE entry %s", h)
	}

	if !h.Access(mem.SharedStart, pmp.R|pmp.W) || !h.Access(mem.PLICStart, pmp.R|pmp.W) {
		t.Fatal("TEE denied shared resources")
	}

	if h.Access(mem.NonSecureStart, pmp.R) || !h.Access(mem.TEEStart, pmp.AllPerm) || h.Access(mem.SecureStart, pmp.R) {
		t.Fatal("unexpected trusted world access")
	}

	// other harts remain in the normal world
	if !machine.Harts[0].Access(mem.NonSecureStart, pmp.R) || machine.Harts[0].Access(mem.TEEStart, pmp.R) {
		t.Fatal("world switch leaked to another hart")
	}

	a0, a1, err = h.Ecall(d, sbi.ExtBase, sm.FuncReturnNormal, 9)

	if err != nil {
		t.Fatal(err)
	}

	if a0 != 0 || a1 != 9 || h.Regs.MEPC != entryPC+sbi.InstructionSize {
		t.Fatalf("unexpected normal world return %s", h)
	}

	if !h.Access(mem.NonSecureStart, pmp.AllPerm) || h.Access(mem.TEEStart, pmp.R) {
		t.Fatal("unexpected normal world access")
	}
}

func TestEcallHarts(t *testing.T) {
	machine, d := boot(t)
	h := machine.Harts[0]

	for _, tt := range []struct {
		ext  uint64
		fid  uint64
		args []uint64
		a0   sbi.Error
		a1   uint64
	}{
		{sbi.ExtIPI, sbi.IPISendIPI, []uint64{0b10, 0}, sbi.Success, 0},
		{sbi.ExtIPI, sbi.IPISendIPI, []uint64{0b1, harts}, sbi.ErrInvalidParam, 0},
		{sbi.ExtRFence, sbi.RFenceSFenceVMA, []uint64{0, sbi.AllHarts, 0, 0x1000}, sbi.Success, 0},
		{sbi.ExtHSM, sbi.HSMHartGetStatus, []uint64{1}, sbi.Success, uint64(sbi.HartStarted)},
		{sbi.ExtHSM, sbi.HSMHartGetStatus, []uint64{harts}, sbi.ErrInvalidParam, 0},
		{sbi.ExtHSM, sbi.HSMHartStart, []uint64{1, entryPC, 0}, sbi.ErrNotSupported, 0},
	} {
		a0, a1, err := h.Ecall(d, tt.ext, tt.fid, tt.args...)

		if err != nil {
			t.Fatal(err)
		}

		if sbi.Error(a0) != tt.a0 || a1 != tt.a1 {
			t.Fatalf("ext:%#x fid:%d got a0:%d a1:%#x", tt.ext, tt.fid, int64(a0), a1)
		}
	}

	if machine.Harts[0].PendingIPI() || !machine.Harts[1].PendingIPI() || machine.Harts[1].PendingIPI() {
		t.Fatal("unexpected IPI state")
	}

	for _, h := range machine.Harts {
		if h.Fences() != 1 {
			t.Fatalf("hart %d executed %d fences", h.ID, h.Fences())
		}
	}
}
