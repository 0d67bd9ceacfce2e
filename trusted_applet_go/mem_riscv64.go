// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package main

import (
	_ "unsafe"

	"github.com/usbarmory/GoTEE-sbi/mem"
)

//go:linkname ramStart runtime/goos.RamStart
var ramStart uint64 = mem.TEEStart

//go:linkname ramSize runtime/goos.RamSize
var ramSize uint64 = mem.TEESize

//go:linkname ramStackOffset runtime/goos.RamStackOffset
var ramStackOffset uint64 = 0x100
