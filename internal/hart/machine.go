// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hart

import (
	"fmt"

	"github.com/usbarmory/GoTEE-sbi/sbi"
)

// Machine represents a set of simulated harts.
type Machine struct {
	Harts []*Hart
}

// NewMachine returns a machine with n harts, all starting supervisor
// execution at the argument address.
func NewMachine(n int, entries int, pc uint64) *Machine {
	m := &Machine{}

	for i := 0; i < n; i++ {
		m.Harts = append(m.Harts, New(uint64(i), entries, pc))
	}

	return m
}

// Hart returns a hart by identifier.
func (m *Machine) Hart(id uint64) (*Hart, error) {
	if id >= uint64(len(m.Harts)) {
		return nil, fmt.Errorf("invalid hart %d", id)
	}

	return m.Harts[id], nil
}

// CSR returns the supervisor CSRs of a hart, the caller must hold the hart
// lock as it does while servicing an ecall.
func (m *Machine) CSR(id uint64) sbi.SupervisorCSR {
	h, err := m.Hart(id)

	if err != nil {
		return nil
	}

	return h
}

// SetTimer implements sbi.Timer.
func (m *Machine) SetTimer(id uint64, stime uint64) error {
	h, err := m.Hart(id)

	if err != nil {
		return err
	}

	// invoked while servicing an ecall of the same hart
	h.stimecmp = stime

	return nil
}

// targets resolves an SBI hart mask.
func (m *Machine) targets(mask uint64, base uint64) (harts []*Hart, err error) {
	if base == sbi.AllHarts {
		return m.Harts, nil
	}

	for i := uint64(0); i < 64; i++ {
		if mask&(1<<i) == 0 {
			continue
		}

		h, err := m.Hart(base + i)

		if err != nil {
			return nil, sbi.ErrInvalidParam
		}

		harts = append(harts, h)
	}

	return
}

// SendIPI implements sbi.IPI.
func (m *Machine) SendIPI(mask uint64, base uint64) error {
	harts, err := m.targets(mask, base)

	if err != nil {
		return err
	}

	for _, h := range harts {
		h.ssip.Store(true)
	}

	return nil
}

// RemoteFence implements sbi.RemoteFence, simulated harts have no caches or
// TLBs so fences are only accounted.
func (m *Machine) RemoteFence(fid uint64, mask uint64, base uint64, args []uint64) error {
	harts, err := m.targets(mask, base)

	if err != nil {
		return err
	}

	for _, h := range harts {
		h.fences.Add(1)
	}

	return nil
}
