// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"errors"
	"math/bits"
	"sync"
)

const (
	cfgR = 1 << 0
	cfgW = 1 << 1
	cfgX = 1 << 2
	cfgA = 3
	cfgL = 1 << 7
)

// Bank represents an in-memory set of PMP CSRs, it implements CSR and the
// PMP access check performed on supervisor and user mode accesses.
type Bank struct {
	sync.Mutex

	addr []uint64
	cfg  []uint8
}

// NewBank returns a bank with the argument number of PMP entries, all
// disabled.
func NewBank(entries int) *Bank {
	if entries <= 0 {
		entries = DefaultEntries
	}

	return &Bank{
		addr: make([]uint64, entries),
		cfg:  make([]uint8, entries),
	}
}

// ReadPMP implements CSR.
func (b *Bank) ReadPMP(i int) (addr uint64, r bool, w bool, x bool, a int, l bool, err error) {
	b.Lock()
	defer b.Unlock()

	if i < 0 || i >= len(b.cfg) {
		err = errors.New("invalid PMP index")
		return
	}

	cfg := b.cfg[i]

	return b.addr[i] << 2, cfg&cfgR != 0, cfg&cfgW != 0, cfg&cfgX != 0, int(cfg>>cfgA) & 0b11, cfg&cfgL != 0, nil
}

// WritePMP implements CSR.
func (b *Bank) WritePMP(i int, addr uint64, r bool, w bool, x bool, a int, l bool) (err error) {
	b.Lock()
	defer b.Unlock()

	if i < 0 || i >= len(b.cfg) {
		return errors.New("invalid PMP index")
	}

	if b.cfg[i]&cfgL != 0 {
		return errors.New("PMP entry is locked")
	}

	var cfg uint8

	if r {
		cfg |= cfgR
	}

	if w {
		cfg |= cfgW
	}

	if x {
		cfg |= cfgX
	}

	if l {
		cfg |= cfgL
	}

	cfg |= uint8(a&0b11) << cfgA

	b.addr[i] = addr >> 2
	b.cfg[i] = cfg

	return
}

func (b *Bank) match(i int, addr uint64) bool {
	switch int(b.cfg[i]>>cfgA) & 0b11 {
	case A_TOR:
		var lo uint64

		if i > 0 {
			lo = b.addr[i-1] << 2
		}

		return addr >= lo && addr < b.addr[i]<<2
	case A_NA4:
		return addr>>2 == b.addr[i]
	case A_NAPOT:
		ones := bits.TrailingZeros64(^b.addr[i])

		// pmpaddr holds bits 55:2 of the address
		if ones >= 54 {
			return true
		}

		size := uint64(1) << (ones + 3)
		base := (b.addr[i] &^ (uint64(1)<<ones - 1)) << 2

		return addr >= base && addr-base < size
	}

	return false
}

// Check returns whether a supervisor or user mode access at the argument
// address with the argument permissions is allowed. The lowest numbered
// matching entry determines the outcome, accesses matching no entry fail.
func (b *Bank) Check(addr uint64, perm Perm) bool {
	b.Lock()
	defer b.Unlock()

	for i := range b.cfg {
		if !b.match(i, addr) {
			continue
		}

		granted := Perm(b.cfg[i] & (cfgR | cfgW | cfgX))

		return granted&perm == perm
	}

	return false
}
