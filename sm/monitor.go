// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sm implements a PMP based RISC-V security monitor, isolating a
// normal world OS, a Trusted Execution Environment (TEE) and the monitor
// itself.
//
// The physical address space is carved into one PMP region per trust domain
// by the cold boot hart, all harts then apply the same baseline permissions
// (normal world running) and switch the OS and TEE regions when control is
// transferred between worlds.
package sm

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
)

// RegionAllocator represents the shared PMP region table.
type RegionAllocator interface {
	CreateRegion(base uint64, size uint64, pri pmp.Priority, exclusive bool) (pmp.Handle, error)
}

// Programmer represents the PMP CSRs of a single hart.
type Programmer interface {
	// Init disables all PMP entries.
	Init() error
	// SetPermission programs a region with the argument permissions.
	SetPermission(h pmp.Handle, perm pmp.Perm) error
}

// Config represents the security monitor platform configuration.
type Config struct {
	// Layout is the memory map of the trust domains.
	Layout Layout
	// Regions allocates the trust domain regions.
	Regions RegionAllocator
	// Registry receives the TEE extension.
	Registry *sbi.Registry
	// Dispatcher, when set, receives the world switch gate.
	Dispatcher *sbi.Dispatcher

	// TEEEntry is the TEE entry point on first world switch.
	TEEEntry uint64
	// SecureInterrupts lists the interrupt sources reserved to the secure
	// world.
	SecureInterrupts []uint32

	// InitTEE performs the one time TEE initialization.
	InitTEE func() error
	// Halt stops the machine, it defaults to log.Fatal.
	Halt func(reason string)
}

// Monitor represents the security monitor instance.
type Monitor struct {
	Config

	// ready is published by the cold boot hart after all regions are
	// created
	ready   atomic.Bool
	handles [numDomains]pmp.Handle

	mu    sync.Mutex
	harts map[uint64]*hart

	irq atomic.Pointer[InterruptTable]
	ext *sbi.Extension
}

// New returns a security monitor instance, which must be initialized on each
// hart with Init.
func New(c Config) *Monitor {
	m := &Monitor{
		Config: c,
		harts:  make(map[uint64]*hart),
	}

	for i := range m.handles {
		m.handles[i] = pmp.Invalid
	}

	if m.Registry == nil {
		m.Registry = &sbi.Registry{}
	}

	return m
}

func (m *Monitor) halt(format string, args ...interface{}) {
	reason := fmt.Sprintf(format, args...)

	if m.Halt != nil {
		log.Printf("SM intolerable error - %s", reason)
		m.Halt(reason)
	} else {
		log.Fatalf("SM intolerable error - %s", reason)
	}

	// a halted machine never proceeds
	select {}
}

// Ready returns whether the cold boot hart completed region creation.
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// Poll checks readiness at most n times and returns whether the monitor
// became ready.
func (m *Monitor) Poll(n int) bool {
	for i := 0; i < n; i++ {
		if m.ready.Load() {
			return true
		}

		runtime.Gosched()
	}

	return false
}

// wait spins until the cold boot hart publishes readiness, there is no
// timeout as a broken cold boot path leaves nothing to fall back to.
func (m *Monitor) wait() {
	for !m.ready.Load() {
		runtime.Gosched()
	}
}

// Handle returns the region handle of a trust domain, Invalid before
// readiness.
func (m *Monitor) Handle(d Domain) pmp.Handle {
	if !d.valid() || !m.Ready() {
		return pmp.Invalid
	}

	return m.handles[d]
}

func (m *Monitor) createRegions() {
	for _, d := range Domains {
		desc := domains[d]
		span := desc.span(&m.Layout)

		h, err := m.Regions.CreateRegion(span.Base, span.Size, desc.priority, desc.exclusive)

		if err == nil && !h.Valid() {
			err = pmp.ErrInvalidHandle
		}

		if err != nil {
			m.halt("failed to initialize %s memory, %v", d, err)
		}

		m.handles[d] = h
	}
}

// Init initializes the security monitor on a hart, it must be invoked by all
// harts and exactly once with coldBoot set. Harts other than the cold boot
// one spin until the monitor regions are created, any initialization error
// halts the machine.
func (m *Monitor) Init(id uint64, p Programmer, coldBoot bool) {
	if coldBoot {
		log.Printf("SM initializing hart:%d", id)

		// the extension must be reachable before regions exist
		m.ext = TEEExtension(m)

		if err := m.Registry.Register(m.ext); err != nil {
			m.halt("failed to register TEE extension, %v", err)
		}

		if m.Dispatcher != nil {
			m.Dispatcher.Bridge(&sbi.Gate{
				Ext:     sbi.ExtBase,
				MinFunc: FuncEnterTEE,
				Handler: m,
			})
		}

		m.createRegions()

		m.ready.Store(true)
	}

	m.wait()

	m.addHart(id, p)

	if err := p.Init(); err != nil {
		m.halt("failed to reset PMP on hart %d, %v", id, err)
	}

	// normal world is the default running domain
	for _, b := range []struct {
		d    Domain
		perm pmp.Perm
	}{
		{SM, pmp.NoPerm},
		{OS, pmp.AllPerm},
		{TEE, pmp.NoPerm},
	} {
		if err := p.SetPermission(m.handles[b.d], b.perm); err != nil {
			m.halt("failed to set %s baseline on hart %d, %v", b.d, id, err)
		}
	}

	if coldBoot {
		if m.InitTEE != nil {
			if err := m.InitTEE(); err != nil {
				m.halt("failed to initialize TEE, %v", err)
			}
		}

		t := &InterruptTable{}

		for _, irq := range m.SecureInterrupts {
			t.Add(irq)
		}

		m.irq.Store(t)
	}

	log.Printf("SM security monitor has been initialized hart:%d", id)
}

// SecureInterruptTable returns the secure interrupt table, nil until the
// cold boot hart completes initialization.
func (m *Monitor) SecureInterruptTable() *InterruptTable {
	return m.irq.Load()
}

// Set programs the region of a trust domain on a hart with the PMP encoding
// of the requested access level. Errors are returned verbatim, callers must
// treat a failed switch as fatal to the boundary operation in progress.
func (m *Monitor) Set(id uint64, d Domain, a Access) (err error) {
	p, err := m.programmer(id)

	if err != nil {
		return
	}

	return m.set(p, d, a)
}

func (m *Monitor) set(p Programmer, d Domain, a Access) (err error) {
	perm, err := d.Perm(a)

	if err != nil {
		return
	}

	h := m.Handle(d)

	if !h.Valid() {
		return fmt.Errorf("%w, %s region not initialized", pmp.ErrInvalidHandle, d)
	}

	return p.SetPermission(h, perm)
}

type grant struct {
	d Domain
	a Access
}

// World switch permissions in programming order, the region of the world
// being left is always revoked first.
var (
	trustedGrants = []grant{
		{OS, NoAccess},
		{TEE, AllAccess},
		{SharedMemory, RoleAccess},
		{InterruptController, RoleAccess},
		{Timer, RoleAccess},
	}

	normalGrants = []grant{
		{TEE, NoAccess},
		{OS, AllAccess},
		{SharedMemory, AllAccess},
		{InterruptController, AllAccess},
		{Timer, AllAccess},
	}
)

// EnterTrusted denies the OS region and grants the TEE region on a hart, the
// shared memory, interrupt controller and timer regions are granted their
// role access. The hart is then accounted as executing the trusted world.
func (m *Monitor) EnterTrusted(id uint64) (err error) {
	return m.enter(id, true)
}

// EnterNormal denies the TEE region and grants the OS region on a hart, the
// shared memory, interrupt controller and timer regions are restored to the
// full access the normal world has under the baseline. The hart is then
// accounted as executing the normal world.
func (m *Monitor) EnterNormal(id uint64) (err error) {
	return m.enter(id, false)
}

func (m *Monitor) switchWorld(p Programmer, trusted bool) (err error) {
	grants := normalGrants

	if trusted {
		grants = trustedGrants
	}

	for _, w := range grants {
		if err = m.set(p, w.d, w.a); err != nil {
			return
		}
	}

	return
}

func (m *Monitor) enter(id uint64, trusted bool) (err error) {
	h, err := m.hart(id)

	if err != nil {
		return
	}

	h.Lock()
	defer h.Unlock()

	if err = m.switchWorld(h.pmp, trusted); err != nil {
		return
	}

	if h.trusted != trusted {
		h.trusted = trusted
		h.switches++
	}

	return
}
