// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pmp implements allocation of RISC-V Physical Memory Protection
// (PMP) regions.
//
// Region descriptors are shared by all harts, while the PMP CSRs are
// programmed individually on each hart through the CSR interface, which is
// satisfied by the TamaGo riscv.CPU type.
package pmp

import (
	"errors"
	"fmt"
)

// PMP address matching modes
const (
	A_OFF   = 0
	A_TOR   = 1
	A_NA4   = 2
	A_NAPOT = 3
)

// DefaultEntries is the number of PMP entries found on most implementations.
const DefaultEntries = 16

// CSR represents the PMP CSRs of a single hart. The address is expressed as a
// physical address, the shift to pmpaddr encoding is performed by the
// implementation.
type CSR interface {
	ReadPMP(i int) (addr uint64, r bool, w bool, x bool, a int, l bool, err error)
	WritePMP(i int, addr uint64, r bool, w bool, x bool, a int, l bool) (err error)
}

// Perm represents a set of region access permissions.
type Perm uint8

// Region access permissions
const (
	R Perm = 1 << iota
	W
	X

	NoPerm  Perm = 0
	AllPerm Perm = R | W | X
)

func (p Perm) String() string {
	b := []byte("---")

	if p&R != 0 {
		b[0] = 'r'
	}

	if p&W != 0 {
		b[1] = 'w'
	}

	if p&X != 0 {
		b[2] = 'x'
	}

	return string(b)
}

// Priority determines where a region is placed among PMP entries, lower
// entries take precedence over higher ones.
type Priority int

// Region priorities
const (
	// Top regions must own the first PMP entry.
	Top Priority = iota
	// Any regions take the first free entries.
	Any
	// Bottom regions take the last free entries.
	Bottom
)

func (p Priority) String() string {
	switch p {
	case Top:
		return "top"
	case Any:
		return "any"
	case Bottom:
		return "bottom"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Handle represents an allocated region, negative values are invalid.
type Handle int

// Invalid is the handle returned on allocation failure.
const Invalid Handle = -1

// Valid returns whether the handle can refer to a region.
func (h Handle) Valid() bool {
	return h >= 0
}

// Allocation errors
var (
	ErrInvalidRegion = errors.New("invalid region")
	ErrInvalidHandle = errors.New("invalid region handle")
	ErrOverlap       = errors.New("region overlaps exclusive region")
	ErrNoSlot        = errors.New("no PMP entry available")
)
