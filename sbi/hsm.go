// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"errors"
)

// AllHarts is the hart mask base value selecting all available harts.
const AllHarts = ^uint64(0)

// IPI extension function identifiers
const (
	IPISendIPI = 0
)

// RFENCE extension function identifiers
const (
	RFenceFenceI        = 0
	RFenceSFenceVMA     = 1
	RFenceSFenceVMAASID = 2
)

// HSM extension function identifiers
const (
	HSMHartStart     = 0
	HSMHartStop      = 1
	HSMHartGetStatus = 2
)

// HartStatus represents the HSM state of a hart.
type HartStatus uint64

// HSM hart states
const (
	HartStarted HartStatus = iota
	HartStopped
	HartStartPending
	HartStopPending
)

func (s HartStatus) String() string {
	switch s {
	case HartStarted:
		return "started"
	case HartStopped:
		return "stopped"
	case HartStartPending:
		return "start pending"
	case HartStopPending:
		return "stop pending"
	default:
		return "unknown"
	}
}

// IPI represents the platform inter-processor interrupt controller, the hart
// mask is relative to the mask base (AllHarts selects every hart).
type IPI interface {
	SendIPI(mask uint64, base uint64) error
}

// RemoteFence represents the platform remote fence implementation, args holds
// the address range (and ASID) arguments of the function.
type RemoteFence interface {
	RemoteFence(fid uint64, mask uint64, base uint64, args []uint64) error
}

// HSM represents the platform hart state management, implementations which
// can start or stop harts also implement HartStarter or HartStopper.
type HSM interface {
	HartStatus(hart uint64) (HartStatus, error)
}

// HartStarter is implemented by HSM collaborators which can start harts.
type HartStarter interface {
	HartStart(hart uint64, addr uint64, opaque uint64) error
}

// HartStopper is implemented by HSM collaborators which can stop the calling
// hart.
type HartStopper interface {
	HartStop(hart uint64) error
}

// status converts a collaborator error to a call result, SBI errors are
// returned verbatim.
func status(err error) Result {
	if err == nil {
		return Err(Success)
	}

	var code Error

	if errors.As(err, &code) {
		return Err(code)
	}

	return Err(ErrFailed)
}

// IPIExtension returns the IPI extension.
func IPIExtension(p *Platform) *Extension {
	handle := func(call *Call) Result {
		if call.Func != IPISendIPI || p.IPI == nil {
			return Err(ErrNotSupported)
		}

		return status(p.IPI.SendIPI(call.Args[0], call.Args[1]))
	}

	return &Extension{
		Name:    "ipi",
		Start:   ExtIPI,
		End:     ExtIPI,
		Handler: HandlerFunc(handle),
	}
}

// RFenceExtension returns the RFENCE extension, hypervisor fences are not
// supported.
func RFenceExtension(p *Platform) *Extension {
	handle := func(call *Call) Result {
		if call.Func > RFenceSFenceVMAASID || p.RFence == nil {
			return Err(ErrNotSupported)
		}

		return status(p.RFence.RemoteFence(call.Func, call.Args[0], call.Args[1], call.Args[2:5]))
	}

	return &Extension{
		Name:    "rfence",
		Start:   ExtRFence,
		End:     ExtRFence,
		Handler: HandlerFunc(handle),
	}
}

// HSMExtension returns the hart state management extension.
func HSMExtension(p *Platform) *Extension {
	handle := func(call *Call) Result {
		if p.HSM == nil {
			return Err(ErrNotSupported)
		}

		switch call.Func {
		case HSMHartStart:
			hs, ok := p.HSM.(HartStarter)

			if !ok {
				return Err(ErrNotSupported)
			}

			return status(hs.HartStart(call.Args[0], call.Args[1], call.Args[2]))
		case HSMHartStop:
			hs, ok := p.HSM.(HartStopper)

			if !ok {
				return Err(ErrNotSupported)
			}

			return status(hs.HartStop(call.Hart))
		case HSMHartGetStatus:
			s, err := p.HSM.HartStatus(call.Args[0])

			if err != nil {
				return status(err)
			}

			return Value(Success, uint64(s))
		default:
			return Err(ErrNotSupported)
		}
	}

	return &Extension{
		Name:    "hsm",
		Start:   ExtHSM,
		End:     ExtHSM,
		Handler: HandlerFunc(handle),
	}
}
