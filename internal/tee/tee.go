// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package tee implements the requests serviced by the TEE on behalf of the
// Main OS.
//
// The Main OS issues a world switch call with the request in a0 and its
// argument in a1, the TEE answers with a return call carrying the result in
// a0, which the Main OS receives in a1. The first world switch boots the TEE
// and its arguments are not delivered, the TEE signals readiness with a
// Ready result.
package tee

import (
	"fmt"

	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

// Requests
const (
	// Version returns the security monitor TEE extension version.
	Version = iota
	// IsSecureInterrupt returns whether the argument interrupt source is
	// reserved to the secure world.
	IsSecureInterrupt
	// InTrusted returns whether the TEE observes itself in the trusted world.
	InTrusted
	// Echo returns its argument.
	Echo
)

const (
	// Ready is returned by the TEE on its first return call.
	Ready = 0x52454459 // REDY
	// Invalid is returned on failed requests.
	Invalid = ^uint64(0)
)

// Ecall issues an SBI call and returns a0 and a1.
type Ecall func(ext uint64, fid uint64, args ...uint64) (a0 uint64, a1 uint64)

func call(ecall Ecall, fid uint64, args ...uint64) (val uint64, err error) {
	a0, a1 := ecall(sm.ExtTEE, fid, args...)

	if code := sbi.Error(a0); code != sbi.Success {
		return Invalid, fmt.Errorf("TEE extension error, %v", code)
	}

	return a1, nil
}

// Serve executes a request.
func Serve(ecall Ecall, req uint64, arg uint64) (res uint64, err error) {
	switch req {
	case Version:
		return call(ecall, sm.FuncVersion)
	case IsSecureInterrupt:
		return call(ecall, sm.FuncIsSecureInterrupt, arg)
	case InTrusted:
		return call(ecall, sm.FuncInTrusted)
	case Echo:
		return arg, nil
	}

	return Invalid, fmt.Errorf("invalid request %d", req)
}

// Return issues the return call with the request result, it returns the
// next request once the Main OS switches back to the TEE.
func Return(ecall Ecall, res uint64) (req uint64, arg uint64) {
	return ecall(sbi.ExtBase, sm.FuncReturnNormal, res)
}

// Request issues the world switch call of a request from the Main OS.
func Request(ecall Ecall, req uint64, arg uint64) (res uint64, err error) {
	a0, a1 := ecall(sbi.ExtBase, sm.FuncEnterTEE, req, arg)

	if code := sbi.Error(a0); code != sbi.Success {
		return Invalid, fmt.Errorf("world switch error, %v", code)
	}

	if a1 == Invalid {
		return Invalid, fmt.Errorf("request %d failed", req)
	}

	return a1, nil
}
