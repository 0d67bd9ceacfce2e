// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sm

import (
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-sbi/pmp"
)

// Domain represents a trust domain, each domain owns exactly one PMP region.
type Domain int

// Trust domains, in region creation order.
const (
	SM Domain = iota
	OS
	TEE
	SharedMemory
	InterruptController
	Timer

	numDomains
)

// Domains lists all trust domains in region creation order.
var Domains = []Domain{SM, OS, TEE, SharedMemory, InterruptController, Timer}

// Access represents the access level requested by a caller on a domain.
type Access int

// Access levels
const (
	NoAccess Access = iota
	AllAccess
	// RoleAccess is the domain specific intermediate access level.
	RoleAccess
)

func (a Access) String() string {
	switch a {
	case NoAccess:
		return "none"
	case AllAccess:
		return "all"
	case RoleAccess:
		return "role"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// ErrInvalidAccess is returned when a domain does not define the requested
// access level.
var ErrInvalidAccess = errors.New("invalid access level")

type domain struct {
	name      string
	priority  pmp.Priority
	exclusive bool
	// role is the RoleAccess permission set, NoPerm when undefined
	role pmp.Perm
	span func(l *Layout) Span
}

var domains = [numDomains]domain{
	SM: {
		name:      "SM",
		priority:  pmp.Top,
		exclusive: true,
		span:      func(l *Layout) Span { return l.Monitor },
	},
	OS: {
		name:     "OS",
		priority: pmp.Bottom,
		// TEE access to normal world buffers
		role: pmp.R,
		span: func(*Layout) Span { return Span{Base: 0, Size: pmp.All} },
	},
	TEE: {
		name:      "TEE",
		priority:  pmp.Any,
		exclusive: true,
		span:      func(l *Layout) Span { return l.TEE },
	},
	SharedMemory: {
		name:      "SHM",
		priority:  pmp.Bottom,
		exclusive: true,
		role:      pmp.R | pmp.W,
		span:      func(l *Layout) Span { return l.SharedMemory },
	},
	InterruptController: {
		name:      "PLIC",
		priority:  pmp.Any,
		exclusive: true,
		role:      pmp.R | pmp.W,
		span:      func(l *Layout) Span { return l.InterruptController },
	},
	Timer: {
		name:      "TIMER",
		priority:  pmp.Any,
		exclusive: true,
		// mtime readable, mtimecmp reserved to the monitor
		role: pmp.R,
		span: func(l *Layout) Span { return l.Timer },
	},
}

func (d Domain) valid() bool {
	return d >= SM && d < numDomains
}

func (d Domain) String() string {
	if !d.valid() {
		return fmt.Sprintf("domain(%d)", int(d))
	}

	return domains[d].name
}

// Perm returns the PMP permissions encoding the access level on the domain
// region.
func (d Domain) Perm(a Access) (pmp.Perm, error) {
	if !d.valid() {
		return pmp.NoPerm, fmt.Errorf("invalid domain %d", int(d))
	}

	switch a {
	case NoAccess:
		return pmp.NoPerm, nil
	case AllAccess:
		return pmp.AllPerm, nil
	case RoleAccess:
		if p := domains[d].role; p != pmp.NoPerm {
			return p, nil
		}
	}

	return pmp.NoPerm, fmt.Errorf("%w, %s on %s", ErrInvalidAccess, a, d)
}

// Span represents a physical address range.
type Span struct {
	Base uint64
	Size uint64
}

// Layout represents the platform memory map of the trust domains, the OS
// domain always covers the entire address space.
type Layout struct {
	Monitor             Span
	TEE                 Span
	SharedMemory        Span
	InterruptController Span
	Timer               Span
}

// Contains returns whether an address falls within the span.
func (s Span) Contains(addr uint64) bool {
	return addr >= s.Base && addr-s.Base < s.Size
}

// Owner returns the trust domain owning an address, addresses outside
// exclusive regions belong to the OS.
func (l *Layout) Owner(addr uint64) Domain {
	for _, d := range Domains {
		if desc := domains[d]; desc.exclusive && desc.span(l).Contains(addr) {
			return d
		}
	}

	return OS
}
