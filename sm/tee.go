// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sm

import (
	"github.com/usbarmory/GoTEE-sbi/sbi"
)

// ExtTEE is the trusted execution extension identifier ("TEE").
const ExtTEE = 0x544545

// TEE extension function identifiers
const (
	FuncVersion = iota
	FuncIsSecureInterrupt
	FuncSecureInterrupts
	FuncInTrusted
)

// TEEVersion is the trusted execution extension version.
const TEEVersion = 1

// TEEExtension returns the trusted execution extension of a security
// monitor.
func TEEExtension(m *Monitor) *sbi.Extension {
	return &sbi.Extension{
		Name:    "TEE",
		Start:   ExtTEE,
		End:     ExtTEE,
		Handler: sbi.HandlerFunc(m.handleTEE),
	}
}

func (m *Monitor) handleTEE(call *sbi.Call) sbi.Result {
	switch call.Func {
	case FuncVersion:
		return sbi.Value(sbi.Success, TEEVersion)
	case FuncIsSecureInterrupt, FuncSecureInterrupts:
		t := m.SecureInterruptTable()

		if t == nil {
			return sbi.Err(sbi.ErrDenied)
		}

		if call.Func == FuncSecureInterrupts {
			return sbi.Value(sbi.Success, uint64(t.Len()))
		}

		if call.Args[0] > 0xffffffff {
			return sbi.Err(sbi.ErrInvalidParam)
		}

		var secure uint64

		if t.Contains(uint32(call.Args[0])) {
			secure = 1
		}

		return sbi.Value(sbi.Success, secure)
	case FuncInTrusted:
		var trusted uint64

		if m.InTrusted(call.Hart) {
			trusted = 1
		}

		return sbi.Value(sbi.Success, trusted)
	}

	return sbi.Err(sbi.ErrNotSupported)
}
