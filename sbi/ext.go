// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"io"
)

// MachineID holds the values reported by the base extension machine
// identification calls.
type MachineID struct {
	VendorID uint64
	ArchID   uint64
	ImpID    uint64
}

// Timer represents the platform timer used by timer extension calls.
type Timer interface {
	SetTimer(hart uint64, stime uint64) error
}

// HartConsole is implemented by consoles which distinguish output by the
// calling hart.
type HartConsole interface {
	PutChar(hart uint64, c byte) error
}

// Platform represents the platform collaborators of the built-in
// extensions, any nil member disables the calls which depend on it.
type Platform struct {
	// ImplID is the implementation identifier (defaults to ImplOpenSBI).
	ImplID uint64
	// ImplVersion is the implementation version.
	ImplVersion uint64
	// Machine holds the machine identification values.
	Machine MachineID

	// Console is the legacy console.
	Console io.ReadWriter
	// Timer is the supervisor timer.
	Timer Timer
	// IPI delivers supervisor software interrupts.
	IPI IPI
	// RFence executes remote fences.
	RFence RemoteFence
	// HSM reports and controls hart states.
	HSM HSM
	// Shutdown powers off the machine, it is not expected to return.
	Shutdown func()
	// Vendor services vendor specific extensions.
	Vendor Handler
}

// Init registers the built-in extensions in the registry. The order of
// registration follows the expected call frequency.
func Init(r *Registry, p *Platform) (err error) {
	exts := []*Extension{
		TimeExtension(p),
		RFenceExtension(p),
		IPIExtension(p),
		BaseExtension(r, p),
		HSMExtension(p),
		LegacyExtension(p),
		VendorExtension(p),
	}

	for _, ext := range exts {
		if err = r.Register(ext); err != nil {
			return
		}
	}

	return
}

// BaseExtension returns the base extension, probe calls are resolved against
// the argument registry.
func BaseExtension(r *Registry, p *Platform) *Extension {
	implID := p.ImplID

	if implID == 0 {
		implID = ImplOpenSBI
	}

	handle := func(call *Call) Result {
		switch call.Func {
		case BaseGetSpecVersion:
			return Value(Success, SpecVersion())
		case BaseGetImplID:
			return Value(Success, implID)
		case BaseGetImplVersion:
			return Value(Success, p.ImplVersion)
		case BaseProbeExtension:
			if r.Find(call.Args[0]) != nil {
				return Value(Success, 1)
			}

			return Value(Success, 0)
		case BaseGetMvendorID:
			return Value(Success, p.Machine.VendorID)
		case BaseGetMarchID:
			return Value(Success, p.Machine.ArchID)
		case BaseGetMimpID:
			return Value(Success, p.Machine.ImpID)
		default:
			return Err(ErrNotSupported)
		}
	}

	return &Extension{
		Name:    "base",
		Start:   ExtBase,
		End:     ExtBase,
		Handler: HandlerFunc(handle),
	}
}

// LegacyExtension returns the v0.1 extension, only timer, console and
// shutdown calls are supported.
func LegacyExtension(p *Platform) *Extension {
	handle := func(call *Call) Result {
		switch call.Ext {
		case ExtLegacySetTimer:
			if p.Timer == nil {
				return Err(ErrNotSupported)
			}

			if err := p.Timer.SetTimer(call.Hart, call.Args[0]); err != nil {
				return Err(ErrFailed)
			}

			return Err(Success)
		case ExtLegacyConsolePutchar:
			if p.Console == nil {
				return Err(ErrNotSupported)
			}

			var err error

			if hc, ok := p.Console.(HartConsole); ok {
				err = hc.PutChar(call.Hart, byte(call.Args[0]))
			} else {
				_, err = p.Console.Write([]byte{byte(call.Args[0])})
			}

			if err != nil {
				return Err(ErrFailed)
			}

			return Err(Success)
		case ExtLegacyConsoleGetchar:
			if p.Console == nil {
				return Err(ErrNotSupported)
			}

			buf := make([]byte, 1)

			// the character is returned in a0, -1 when none is available
			if n, err := p.Console.Read(buf); n != 1 || err != nil {
				return Err(-1)
			}

			return Err(Error(buf[0]))
		case ExtLegacyShutdown:
			if p.Shutdown == nil {
				return Err(ErrNotSupported)
			}

			p.Shutdown()

			return Err(Success)
		default:
			return Err(ErrNotSupported)
		}
	}

	return &Extension{
		Name:    "legacy",
		Start:   ExtLegacySetTimer,
		End:     ExtLegacyShutdown,
		Handler: HandlerFunc(handle),
	}
}

// TimeExtension returns the timer extension.
func TimeExtension(p *Platform) *Extension {
	handle := func(call *Call) Result {
		if call.Func != 0 || p.Timer == nil {
			return Err(ErrNotSupported)
		}

		if err := p.Timer.SetTimer(call.Hart, call.Args[0]); err != nil {
			return Err(ErrFailed)
		}

		return Err(Success)
	}

	return &Extension{
		Name:    "time",
		Start:   ExtTime,
		End:     ExtTime,
		Handler: HandlerFunc(handle),
	}
}

// VendorExtension returns the vendor extension range binding, calls are
// delegated to the platform vendor handler.
func VendorExtension(p *Platform) *Extension {
	handle := func(call *Call) Result {
		if p.Vendor == nil {
			return Err(ErrNotSupported)
		}

		return p.Vendor.Handle(call)
	}

	return &Extension{
		Name:    "vendor",
		Start:   ExtVendorStart,
		End:     ExtVendorEnd,
		Handler: HandlerFunc(handle),
	}
}
