// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package gotee

import (
	"log"
	"sync"

	"github.com/usbarmory/GoTEE/monitor"

	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

type request struct {
	args [6]uint64
	res  chan sbi.Result
}

// Switch services the world switch calls of the Main OS by running the TEE
// execution context until its return call.
type Switch struct {
	sync.Mutex

	// Monitor flips the trust domain regions.
	Monitor *sm.Monitor
	// TEE is the trusted execution context.
	TEE *monitor.ExecCtx
	// Hart is the hart running both worlds.
	Hart uint64

	trusted bool
	ret     uint64

	req chan *request
}

// Start runs the TEE servicing loop.
func (s *Switch) Start() {
	s.req = make(chan *request)

	go func() {
		for r := range s.req {
			r.res <- s.enter(r.args)
		}
	}()
}

func (s *Switch) enter(args [6]uint64) sbi.Result {
	ctx := s.TEE

	ctx.X10, ctx.X11, ctx.X12, ctx.X13, ctx.X14, ctx.X15 = args[0], args[1], args[2], args[3], args[4], args[5]

	if err := s.Monitor.EnterTrusted(s.Hart); err != nil {
		log.Fatalf("SM intolerable error - failed to enter TEE, %v", err)
	}

	err := ctx.Run()

	if err := s.Monitor.EnterNormal(s.Hart); err != nil {
		log.Fatalf("SM intolerable error - failed to leave TEE, %v", err)
	}

	s.Lock()
	defer s.Unlock()

	trusted := s.trusted
	s.trusted = false

	if err != nil || trusted {
		log.Printf("SM TEE stopped without return call pc:%#.8x err:%v", ctx.PC, err)
		return sbi.Err(sbi.ErrFailed)
	}

	return sbi.Value(sbi.Success, s.ret)
}

// HandleContext implements sbi.ContextHandler.
func (s *Switch) HandleContext(call *sbi.Call, regs *sbi.TrapRegs) {
	s.Lock()

	switch {
	case call.Func == sm.FuncEnterTEE && !s.trusted:
		s.trusted = true
		s.Unlock()

		r := &request{
			args: call.Args,
			res:  make(chan sbi.Result, 1),
		}

		s.req <- r
		res := <-r.res

		regs.SetError(res.Code())
		regs.SetA(1, res.Val())
	case call.Func == sm.FuncReturnNormal && s.trusted:
		s.trusted = false
		s.ret = call.Args[0]
		s.Unlock()

		s.TEE.Stop()
	case call.Func == sm.FuncEnterTEE || call.Func == sm.FuncReturnNormal:
		s.Unlock()
		regs.SetError(sbi.ErrDenied)
	default:
		s.Unlock()
		regs.SetError(sbi.ErrNotSupported)
	}
}
