// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

// faultyAllocator fails the creation of one trust domain region.
type faultyAllocator struct {
	sync.Mutex
	*pmp.Allocator

	fail  int
	count int
}

func failRegion(a *pmp.Allocator, name string) (*faultyAllocator, error) {
	for i, d := range sm.Domains {
		if strings.EqualFold(d.String(), name) {
			return &faultyAllocator{Allocator: a, fail: i}, nil
		}
	}

	return nil, fmt.Errorf("invalid region %s", name)
}

// CreateRegion implements sm.RegionAllocator.
func (a *faultyAllocator) CreateRegion(base uint64, size uint64, pri pmp.Priority, exclusive bool) (pmp.Handle, error) {
	a.Lock()
	defer a.Unlock()

	n := a.count
	a.count++

	if n == a.fail {
		return pmp.Invalid, fmt.Errorf("%w, injected failure", pmp.ErrNoSlot)
	}

	return a.Allocator.CreateRegion(base, size, pri, exclusive)
}
