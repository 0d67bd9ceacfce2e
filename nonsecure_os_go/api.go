// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package main

import (
	"github.com/usbarmory/GoTEE/syscall"
)

// defined in api_riscv64.s
func ecall(ext uint64, fid uint64, a0 uint64, a1 uint64) (r0 uint64, r1 uint64)

// call issues an SBI call with up to two arguments.
func call(ext uint64, fid uint64, args ...uint64) (uint64, uint64) {
	var a [2]uint64
	copy(a[:], args)

	return ecall(ext, fid, a[0], a[1])
}

// exit yields back to the security monitor with a GoTEE system call, which is
// issued with a zero a7.
func exit() {
	ecall(0, 0, syscall.SYS_EXIT, 0)
}
