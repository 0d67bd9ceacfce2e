// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sm

import (
	"fmt"
)

// MaxSecureInterrupts is the capacity of the secure interrupt table.
const MaxSecureInterrupts = 16

// InterruptTable represents the interrupt sources which must be delivered
// while in the Monitor or TEE domain. The first slot holds the number of
// entries.
type InterruptTable struct {
	slots [MaxSecureInterrupts + 1]uint32
}

// Add appends an interrupt source, exceeding the table capacity panics.
func (t *InterruptTable) Add(irq uint32) {
	n := t.slots[0]

	if n >= MaxSecureInterrupts {
		panic(fmt.Sprintf("secure interrupt table overflow (irq %d)", irq))
	}

	t.slots[n+1] = irq
	t.slots[0] = n + 1
}

// Len returns the number of secure interrupt sources.
func (t *InterruptTable) Len() int {
	return int(t.slots[0])
}

// Contains returns whether an interrupt source is secure.
func (t *InterruptTable) Contains(irq uint32) bool {
	for _, s := range t.slots[1 : t.slots[0]+1] {
		if s == irq {
			return true
		}
	}

	return false
}

// Sources returns the secure interrupt sources.
func (t *InterruptTable) Sources() []uint32 {
	return append([]uint32(nil), t.slots[1 : t.slots[0]+1]...)
}
