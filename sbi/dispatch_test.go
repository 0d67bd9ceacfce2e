// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	entryPC  = 0x80200000
	sentinel = 0xdeadbeefcafe
	stvec    = 0x80201000
)

type testCSR struct {
	stvec   uint64
	sepc    uint64
	scause  uint64
	stval   uint64
	sstatus uint64
}

func (c *testCSR) Stvec() uint64 { return c.stvec }
func (c *testCSR) SetSepc(v uint64) { c.sepc = v }
func (c *testCSR) SetScause(v uint64) { c.scause = v }
func (c *testCSR) SetStval(v uint64) { c.stval = v }
func (c *testCSR) Sstatus() uint64 { return c.sstatus }
func (c *testCSR) SetSstatus(v uint64) { c.sstatus = v }

func trapped(ext uint64, fid uint64, args ...uint64) *TrapRegs {
	regs := &TrapRegs{
		MEPC:    entryPC,
		MStatus: PrivSupervisor << MSTATUS_MPP,
	}

	for i, a := range args {
		regs.SetA(i, a)
	}

	regs.SetA(1, sentinel)
	regs.SetA(6, fid)
	regs.SetA(7, ext)

	return regs
}

func TestDispatchNotSupported(t *testing.T) {
	d := &Dispatcher{Registry: &Registry{}}
	regs := trapped(0x10, 5)

	if err := d.Handle(regs); err != nil {
		t.Fatal(err)
	}

	if regs.MEPC != entryPC+InstructionSize {
		t.Fatalf("mepc %#x, want %#x", regs.MEPC, entryPC+InstructionSize)
	}

	if Error(regs.A(0)) != ErrNotSupported {
		t.Fatalf("a0 %d, want %d", int64(regs.A(0)), ErrNotSupported)
	}
}

func TestDispatchValue(t *testing.T) {
	r := &Registry{}
	d := &Dispatcher{Registry: r}

	var got *Call

	err := r.Register(&Extension{
		Name:  "test",
		Start: 0x1000,
		End:   0x1fff,
		Handler: HandlerFunc(func(call *Call) Result {
			got = call
			return Value(ErrDenied, 0x1234)
		}),
	})

	if err != nil {
		t.Fatal(err)
	}

	regs := trapped(0x1234, 7, 1, 2, 3, 4, 5, 6)
	regs.Hart = 3

	if err = d.Handle(regs); err != nil {
		t.Fatal(err)
	}

	want := &Call{
		Ext:  0x1234,
		Func: 7,
		Args: [6]uint64{1, sentinel, 3, 4, 5, 6},
		Hart: 3,
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected call (-want +got):\n%s", diff)
	}

	if Error(regs.A(0)) != ErrDenied || regs.A(1) != 0x1234 {
		t.Fatalf("a0:%d a1:%#x, want a0:%d a1:%#x", int64(regs.A(0)), regs.A(1), ErrDenied, 0x1234)
	}

	if regs.MEPC != entryPC+InstructionSize {
		t.Fatalf("mepc %#x, want %#x", regs.MEPC, entryPC+InstructionSize)
	}
}

func TestDispatchLegacyKeepsA1(t *testing.T) {
	r := &Registry{}
	d := &Dispatcher{Registry: r}

	handler := HandlerFunc(func(call *Call) Result {
		return Value(Success, 0x5555)
	})

	if err := r.Register(&Extension{Name: "legacy", Start: 0x00, End: 0x08, Handler: handler}); err != nil {
		t.Fatal(err)
	}

	for ext := uint64(0); ext <= ExtLegacyShutdown; ext++ {
		regs := trapped(ext, 0)

		if err := d.Handle(regs); err != nil {
			t.Fatal(err)
		}

		if regs.A(1) != sentinel {
			t.Fatalf("ext %#x overwrote a1 (%#x)", ext, regs.A(1))
		}
	}

	// unregistered legacy calls keep a1 as well
	r.Unregister(r.Find(0))

	regs := trapped(ExtLegacyConsolePutchar, 0)

	if err := d.Handle(regs); err != nil {
		t.Fatal(err)
	}

	if regs.A(1) != sentinel || Error(regs.A(0)) != ErrNotSupported {
		t.Fatalf("a0:%d a1:%#x", int64(regs.A(0)), regs.A(1))
	}
}

type gateHandler struct {
	pc    uint64
	call  *Call
	after func(regs *TrapRegs)
}

func (g *gateHandler) HandleContext(call *Call, regs *TrapRegs) {
	g.pc = regs.MEPC
	g.call = call

	if g.after != nil {
		g.after(regs)
	}
}

func TestDispatchGate(t *testing.T) {
	r := &Registry{}
	d := &Dispatcher{Registry: r}

	base := 0
	r.Register(&Extension{
		Name:  "base",
		Start: ExtBase,
		End:   ExtBase,
		Handler: HandlerFunc(func(call *Call) Result {
			base++
			return Value(Success, 1)
		}),
	})

	g := &gateHandler{
		after: func(regs *TrapRegs) {
			regs.MEPC = 0x90000000
			regs.SetA(0, 0xaa)
		},
	}

	d.Bridge(&Gate{Ext: ExtBase, MinFunc: BridgeThreshold + 1, Handler: g})

	regs := trapped(ExtBase, BridgeThreshold+1, 0x42)

	if err := d.Handle(regs); err != nil {
		t.Fatal(err)
	}

	if g.pc != entryPC+InstructionSize {
		t.Fatalf("gate handler saw mepc %#x, want %#x", g.pc, entryPC+InstructionSize)
	}

	if g.call.Args[0] != 0x42 {
		t.Fatalf("gate handler saw a0 %#x", g.call.Args[0])
	}

	// no dispatcher writes after the handler returned
	if regs.MEPC != 0x90000000 || regs.A(0) != 0xaa || regs.A(1) != sentinel {
		t.Fatalf("register file modified after gate handler: %s", regs)
	}

	if base != 0 {
		t.Fatal("base extension invoked for gated call")
	}

	// function identifiers up to the threshold reach the base extension
	regs = trapped(ExtBase, BridgeThreshold)

	if err := d.Handle(regs); err != nil {
		t.Fatal(err)
	}

	if base != 1 || regs.A(1) != 1 {
		t.Fatalf("base extension not invoked, a1:%#x", regs.A(1))
	}
}

func TestDispatchRedirect(t *testing.T) {
	r := &Registry{}
	csr := &testCSR{stvec: stvec, sstatus: 1 << MSTATUS_SIE}

	d := &Dispatcher{
		Registry: r,
		Redirector: &SupervisorRedirect{
			CSR: func(uint64) SupervisorCSR { return csr },
		},
	}

	r.Register(&Extension{
		Name:  "fault",
		Start: 0x100,
		End:   0x100,
		Handler: HandlerFunc(func(call *Call) Result {
			return Trap(13, call.Args[0])
		}),
	})

	regs := trapped(0x100, 0, 0xbad)

	if err := d.Handle(regs); err != nil {
		t.Fatal(err)
	}

	if csr.sepc != entryPC {
		t.Fatalf("sepc %#x, want trap entry pc %#x", csr.sepc, entryPC)
	}

	if csr.scause != 13 || csr.stval != 0xbad {
		t.Fatalf("scause:%d stval:%#x", csr.scause, csr.stval)
	}

	if regs.MEPC != stvec {
		t.Fatalf("mepc %#x, want stvec %#x", regs.MEPC, stvec)
	}

	if csr.sstatus&(1<<MSTATUS_SIE) != 0 || csr.sstatus&(1<<MSTATUS_SPIE) == 0 || csr.sstatus&(1<<MSTATUS_SPP) == 0 {
		t.Fatalf("unexpected sstatus %#x", csr.sstatus)
	}

	if regs.PrevPriv() != PrivSupervisor {
		t.Fatalf("mstatus.MPP %d", regs.PrevPriv())
	}

	if regs.A(0) != 0xbad || regs.A(1) != sentinel {
		t.Fatal("return registers modified on redirect")
	}
}

func TestDispatchRedirectFailure(t *testing.T) {
	r := &Registry{}
	d := &Dispatcher{
		Registry:   r,
		Redirector: &SupervisorRedirect{},
	}

	r.Register(&Extension{
		Name:    "fault",
		Start:   0x100,
		End:     0x100,
		Handler: HandlerFunc(func(*Call) Result { return Trap(2, 0) }),
	})

	// calls from machine mode cannot be redirected
	regs := trapped(0x100, 0)
	regs.MStatus = PrivMachine << MSTATUS_MPP

	if err := d.Handle(regs); err != ErrNotSupported {
		t.Fatalf("got %v, want %v", err, ErrNotSupported)
	}

	if regs.MEPC != entryPC+InstructionSize || Error(regs.A(0)) != ErrFailed {
		t.Fatalf("unexpected trap return state %s", regs)
	}
}

func TestBuiltinExtensions(t *testing.T) {
	r := &Registry{}
	out := &bytes.Buffer{}
	d := &Dispatcher{Registry: r}

	p := &Platform{
		ImplVersion: 0x10002,
		Machine:     MachineID{VendorID: 0x489},
		Console: struct {
			io.Reader
			io.Writer
		}{&bytes.Buffer{}, out},
	}

	if err := Init(r, p); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		regs *TrapRegs
		a0   Error
		a1   uint64
	}{
		{trapped(ExtBase, BaseGetSpecVersion), Success, 2},
		{trapped(ExtBase, BaseGetImplID), Success, ImplOpenSBI},
		{trapped(ExtBase, BaseGetImplVersion), Success, 0x10002},
		{trapped(ExtBase, BaseProbeExtension, ExtTime), Success, 1},
		{trapped(ExtBase, BaseProbeExtension, ExtHSM), Success, 1},
		{trapped(ExtBase, BaseProbeExtension, ExtSRST), Success, 0},
		{trapped(ExtBase, BaseGetMvendorID), Success, 0x489},
		{trapped(ExtBase, 42), ErrNotSupported, 0},
		{trapped(ExtTime, 0, 1000), ErrNotSupported, 0},
		{trapped(ExtVendorStart+1, 0), ErrNotSupported, 0},
		{trapped(ExtLegacyConsolePutchar, 0, 'G'), Success, sentinel},
		{trapped(ExtLegacyConsoleGetchar, 0), -1, sentinel},
		{trapped(ExtLegacyShutdown, 0), ErrNotSupported, sentinel},
	} {
		if err := d.Handle(tt.regs); err != nil {
			t.Fatal(err)
		}

		if Error(tt.regs.A(0)) != tt.a0 || tt.regs.A(1) != tt.a1 {
			t.Fatalf("%s: got a0:%d a1:%#x, want a0:%d a1:%#x", tt.regs, int64(tt.regs.A(0)), tt.regs.A(1), tt.a0, tt.a1)
		}
	}

	if out.String() != "G" {
		t.Fatalf("console output %q", out.String())
	}
}
