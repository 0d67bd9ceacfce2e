// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sm

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/usbarmory/GoTEE-sbi/sbi"
)

// World switch function identifiers, serviced on the base extension above
// the bridging threshold.
const (
	// FuncEnterTEE transfers control from the normal world to the TEE, a0-a5
	// are forwarded to the TEE.
	FuncEnterTEE = sbi.BridgeThreshold + 1
	// FuncReturnNormal transfers control from the TEE back to the normal
	// world, the TEE a0 is returned in the normal world a1.
	FuncReturnNormal = sbi.BridgeThreshold + 2
)

// World represents the trust domain currently executing on a hart.
type World int

// Worlds
const (
	NormalWorld World = iota
	TrustedWorld
)

func (w World) String() string {
	if w == TrustedWorld {
		return "trusted"
	}

	return "normal"
}

// HartState represents the security monitor view of a hart.
type HartState struct {
	ID       uint64
	World    World
	Switches uint64
}

type hart struct {
	sync.Mutex

	id  uint64
	pmp Programmer

	trusted  bool
	started  bool
	switches uint64

	// saved register files of the suspended world
	normal sbi.TrapRegs
	tee    sbi.TrapRegs
}

func (m *Monitor) addHart(id uint64, p Programmer) *hart {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := &hart{
		id:  id,
		pmp: p,
	}

	m.harts[id] = h

	return h
}

func (m *Monitor) hart(id uint64) (*hart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.harts[id]

	if !ok {
		return nil, fmt.Errorf("hart %d not initialized", id)
	}

	return h, nil
}

func (m *Monitor) programmer(id uint64) (Programmer, error) {
	h, err := m.hart(id)

	if err != nil {
		return nil, err
	}

	return h.pmp, nil
}

// HartStatus implements sbi.HSM, harts which completed monitor
// initialization are reported as started.
func (m *Monitor) HartStatus(id uint64) (sbi.HartStatus, error) {
	if _, err := m.hart(id); err != nil {
		return sbi.HartStopped, sbi.ErrInvalidParam
	}

	return sbi.HartStarted, nil
}

// Harts returns the state of all initialized harts.
func (m *Monitor) Harts() (harts []HartState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.harts {
		h.Lock()

		s := HartState{
			ID:       h.id,
			Switches: h.switches,
		}

		if h.trusted {
			s.World = TrustedWorld
		}

		h.Unlock()

		harts = append(harts, s)
	}

	sort.Slice(harts, func(i, j int) bool {
		return harts[i].ID < harts[j].ID
	})

	return
}

// InTrusted returns whether a hart is executing the TEE.
func (m *Monitor) InTrusted(id uint64) bool {
	h, err := m.hart(id)

	if err != nil {
		return false
	}

	h.Lock()
	defer h.Unlock()

	return h.trusted
}

// HandleContext implements sbi.ContextHandler, it swaps the trapped register
// file between the normal world and the TEE along with the OS and TEE region
// permissions. The program counter has already been advanced past the ecall.
func (m *Monitor) HandleContext(call *sbi.Call, regs *sbi.TrapRegs) {
	if !m.Ready() {
		regs.SetError(sbi.ErrDenied)
		return
	}

	h, err := m.hart(call.Hart)

	if err != nil {
		log.Printf("SM world switch denied, %v", err)
		regs.SetError(sbi.ErrDenied)
		return
	}

	h.Lock()
	defer h.Unlock()

	switch call.Func {
	case FuncEnterTEE:
		if h.trusted {
			regs.SetError(sbi.ErrDenied)
			return
		}

		h.normal = *regs

		if err := m.switchWorld(h.pmp, true); err != nil {
			m.halt("failed to enter TEE on hart %d, %v", h.id, err)
		}

		if !h.started {
			h.tee = sbi.TrapRegs{
				MEPC:    m.TEEEntry,
				MStatus: sbi.PrivSupervisor << sbi.MSTATUS_MPP,
			}

			h.started = true
		}

		for i, arg := range call.Args {
			h.tee.SetA(i, arg)
		}

		h.tee.Hart = h.id
		*regs = h.tee

		h.trusted = true
		h.switches++
	case FuncReturnNormal:
		if !h.trusted {
			regs.SetError(sbi.ErrDenied)
			return
		}

		h.tee = *regs

		if err := m.switchWorld(h.pmp, false); err != nil {
			m.halt("failed to leave TEE on hart %d, %v", h.id, err)
		}

		*regs = h.normal
		regs.SetError(sbi.Success)
		regs.SetA(1, call.Args[0])

		h.trusted = false
		h.switches++
	default:
		regs.SetError(sbi.ErrNotSupported)
	}
}
