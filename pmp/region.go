// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pmp

import (
	"fmt"
	"math/bits"
	"sync"
)

// All is the size of a region covering the entire address space.
const All = ^uint64(0)

// Region represents a PMP backed physical address range.
type Region struct {
	// Base is the region start address.
	Base uint64
	// Size is the region size, All covers the entire address space.
	Size uint64
	// Priority is the region placement priority.
	Priority Priority
	// Exclusive regions cannot overlap other exclusive regions.
	Exclusive bool

	entry int
	mode  int
}

// Entry returns the index of the first PMP entry used by the region.
func (r *Region) Entry() int {
	return r.entry
}

// Entries returns the number of PMP entries used by the region.
func (r *Region) Entries() int {
	if r.mode == A_TOR {
		return 2
	}

	return 1
}

// Mode returns the PMP address matching mode of the region.
func (r *Region) Mode() int {
	return r.mode
}

// Contains returns whether an address falls within the region.
func (r *Region) Contains(addr uint64) bool {
	if r.Size == All {
		return true
	}

	return addr >= r.Base && addr-r.Base < r.Size
}

func (r *Region) overlaps(o *Region) bool {
	if r.Size == All || o.Size == All {
		return true
	}

	return r.Base < o.Base+o.Size && o.Base < r.Base+r.Size
}

func (r *Region) String() string {
	mode := "NAPOT"

	if r.mode == A_TOR {
		mode = "TOR"
	}

	if r.Size == All {
		return fmt.Sprintf("entry:%.2d %-5s all %s exclusive:%v", r.entry, mode, r.Priority, r.Exclusive)
	}

	return fmt.Sprintf("entry:%.2d %-5s %#.16x-%#.16x %s exclusive:%v", r.entry, mode, r.Base, r.Base+r.Size, r.Priority, r.Exclusive)
}

func isNAPOT(base uint64, size uint64) bool {
	if size == All {
		return true
	}

	return size >= 8 && bits.OnesCount64(size) == 1 && base%size == 0
}

// napotAddr returns the physical address form of a NAPOT pmpaddr value.
func napotAddr(base uint64, size uint64) uint64 {
	if size == All {
		return All
	}

	return base | (size/2 - 1)
}

// Allocator represents the PMP region table shared by all harts.
type Allocator struct {
	sync.RWMutex

	entries int
	used    []bool
	regions []*Region
}

// NewAllocator returns an allocator over the argument number of PMP entries.
func NewAllocator(entries int) *Allocator {
	if entries <= 0 {
		entries = DefaultEntries
	}

	return &Allocator{
		entries: entries,
		used:    make([]bool, entries),
	}
}

// Size returns the number of PMP entries managed by the allocator.
func (a *Allocator) Size() int {
	return a.entries
}

func (a *Allocator) free(i int, n int) bool {
	if i < 0 || i+n > a.entries {
		return false
	}

	for j := i; j < i+n; j++ {
		if a.used[j] {
			return false
		}
	}

	return true
}

func (a *Allocator) place(pri Priority, n int) (int, error) {
	switch pri {
	case Top:
		if a.free(0, n) {
			return 0, nil
		}
	case Any:
		for i := 0; i+n <= a.entries; i++ {
			if a.free(i, n) {
				return i, nil
			}
		}
	case Bottom:
		for i := a.entries - n; i >= 0; i-- {
			if a.free(i, n) {
				return i, nil
			}
		}
	default:
		return -1, fmt.Errorf("%w, %s", ErrInvalidRegion, pri)
	}

	return -1, fmt.Errorf("%w (%s)", ErrNoSlot, pri)
}

// CreateRegion allocates the PMP entries for a region and returns its
// handle, or Invalid on error. Exclusive regions are rejected when they
// overlap any other exclusive region.
func (a *Allocator) CreateRegion(base uint64, size uint64, pri Priority, exclusive bool) (Handle, error) {
	if size == 0 || base%4 != 0 || (size != All && (size%4 != 0 || base+size < base)) {
		return Invalid, fmt.Errorf("%w, base:%#x size:%#x", ErrInvalidRegion, base, size)
	}

	r := &Region{
		Base:      base,
		Size:      size,
		Priority:  pri,
		Exclusive: exclusive,
		mode:      A_TOR,
	}

	if isNAPOT(base, size) {
		r.mode = A_NAPOT
	}

	a.Lock()
	defer a.Unlock()

	if exclusive {
		for _, o := range a.regions {
			if o.Exclusive && r.overlaps(o) {
				return Invalid, fmt.Errorf("%w, base:%#x size:%#x", ErrOverlap, base, size)
			}
		}
	}

	i, err := a.place(pri, r.Entries())

	if err != nil {
		return Invalid, err
	}

	r.entry = i

	for j := i; j < i+r.Entries(); j++ {
		a.used[j] = true
	}

	a.regions = append(a.regions, r)

	return Handle(len(a.regions) - 1), nil
}

func (a *Allocator) region(h Handle) (*Region, error) {
	if !h.Valid() || int(h) >= len(a.regions) {
		return nil, fmt.Errorf("%w (%d)", ErrInvalidHandle, h)
	}

	return a.regions[h], nil
}

// Region returns a copy of the region descriptor referenced by a handle.
func (a *Allocator) Region(h Handle) (r Region, err error) {
	a.RLock()
	defer a.RUnlock()

	p, err := a.region(h)

	if err != nil {
		return
	}

	return *p, nil
}

// Regions returns a copy of all region descriptors, indexed by handle.
func (a *Allocator) Regions() (regions []Region) {
	a.RLock()
	defer a.RUnlock()

	for _, r := range a.regions {
		regions = append(regions, *r)
	}

	return
}

// Hart returns the view of the allocator on the hart owning the argument PMP
// CSRs.
func (a *Allocator) Hart(csr CSR) *Hart {
	return &Hart{
		alloc: a,
		csr:   csr,
	}
}

// Hart represents the PMP CSRs of one hart programmed after the shared region
// table.
type Hart struct {
	alloc *Allocator
	csr   CSR
}

// Init disables all PMP entries managed by the allocator.
func (h *Hart) Init() (err error) {
	for i := 0; i < h.alloc.entries; i++ {
		if err = h.csr.WritePMP(i, 0, false, false, false, A_OFF, false); err != nil {
			return
		}
	}

	return
}

// SetPermission programs the PMP entries of a region with the argument
// permissions.
func (h *Hart) SetPermission(handle Handle, perm Perm) (err error) {
	h.alloc.RLock()
	r, err := h.alloc.region(handle)
	h.alloc.RUnlock()

	if err != nil {
		return
	}

	rd, wr, ex := perm&R != 0, perm&W != 0, perm&X != 0

	if r.mode == A_NAPOT {
		return h.csr.WritePMP(r.entry, napotAddr(r.Base, r.Size), rd, wr, ex, A_NAPOT, false)
	}

	if err = h.csr.WritePMP(r.entry, r.Base, false, false, false, A_OFF, false); err != nil {
		return
	}

	return h.csr.WritePMP(r.entry+1, r.Base+r.Size, rd, wr, ex, A_TOR, false)
}
