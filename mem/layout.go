// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mem describes the QEMU sifive_u memory map of the security monitor
// trust domains.
package mem

import (
	"github.com/usbarmory/GoTEE-sbi/sm"
)

const (
	// Security Monitor
	SecureStart = 0x90000000
	SecureSize  = 0x07f00000 // 127MB

	// Security Monitor DMA (relocated to avoid conflicts with Main OS)
	SecureDMAStart = 0x97f00000
	SecureDMASize  = 0x00100000 // 1MB

	// Trusted Execution Environment
	TEEStart = 0x98000000
	TEESize  = 0x04000000 // 64MB

	// TEE <-> Main OS shared memory
	SharedStart = 0x9c000000
	SharedSize  = 0x00100000 // 1MB

	// Main OS
	NonSecureStart = 0x80000000
	NonSecureSize  = 0x10000000 // 256MB
)

// Peripherals reserved to the security monitor
const (
	PLICStart = 0x0c000000
	PLICSize  = 0x04000000

	CLINTStart = 0x02000000
	CLINTSize  = 0x00010000
)

// SecureInterrupts lists the PLIC sources delivered to the secure world.
var SecureInterrupts = []uint32{38, 39}

// Layout returns the trust domain memory map.
func Layout() sm.Layout {
	return sm.Layout{
		Monitor:             sm.Span{Base: SecureStart, Size: SecureSize + SecureDMASize},
		TEE:                 sm.Span{Base: TEEStart, Size: TEESize},
		SharedMemory:        sm.Span{Base: SharedStart, Size: SharedSize},
		InterruptController: sm.Span{Base: PLICStart, Size: PLICSize},
		Timer:               sm.Span{Base: CLINTStart, Size: CLINTSize},
	}
}
