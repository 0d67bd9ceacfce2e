// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-sbi/internal/hart"
	"github.com/usbarmory/GoTEE-sbi/mem"
	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/shell"
	"github.com/usbarmory/GoTEE-sbi/sm"
	"github.com/usbarmory/GoTEE-sbi/util"
)

const (
	// implementation version reported by the base extension
	implVersion = 0x10000
	// readiness checks between secondary hart cancellation checks
	readyPolls = 1000
)

// haltError carries the reason of a machine halt during hart bring-up.
type haltError string

// bootCmd implements subcommands.Command for the "boot" command.
type bootCmd struct {
	harts   int
	entries int
	fail    string
	ssh     string
	debug   bool
}

// Name implements subcommands.Command.
func (*bootCmd) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.
func (*bootCmd) Synopsis() string {
	return "boot the security monitor on simulated harts"
}

// Usage implements subcommands.Command.
func (*bootCmd) Usage() string {
	return `boot [-harts N] [-pmp N] [-fail region] [-ssh addr] [-debug]
`
}

// SetFlags implements subcommands.Command.
func (b *bootCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&b.harts, "harts", 4, "number of harts")
	f.IntVar(&b.entries, "pmp", pmp.DefaultEntries, "number of PMP entries per hart")
	f.StringVar(&b.fail, "fail", "", "trust domain region whose creation fails (e.g. SHM)")
	f.StringVar(&b.ssh, "ssh", "", "serve the console over SSH on this address")
	f.BoolVar(&b.debug, "debug", false, "log dispatched ecalls")
}

// machine represents the simulated platform served by the console.
type machine struct {
	*hart.Machine

	dispatcher *sbi.Dispatcher
	monitor    *sm.Monitor
	console    *util.Log
}

var sim *machine

func (b *bootCmd) boot(ctx context.Context) (m *machine, err error) {
	if b.harts <= 0 {
		return nil, fmt.Errorf("invalid number of harts (%d)", b.harts)
	}

	harts := hart.NewMachine(b.harts, b.entries, mem.NonSecureStart)
	alloc := pmp.NewAllocator(b.entries)
	r := &sbi.Registry{}

	m = &machine{
		Machine: harts,
		dispatcher: &sbi.Dispatcher{
			Registry:   r,
			Redirector: &sbi.SupervisorRedirect{CSR: harts.CSR},
			Debug:      b.debug,
		},
		console: &util.Log{},
	}

	var regions sm.RegionAllocator = alloc

	if b.fail != "" {
		if regions, err = failRegion(alloc, b.fail); err != nil {
			return
		}
	}

	m.monitor = sm.New(sm.Config{
		Layout:           mem.Layout(),
		Regions:          regions,
		Registry:         r,
		Dispatcher:       m.dispatcher,
		TEEEntry:         mem.TEEStart,
		SecureInterrupts: mem.SecureInterrupts,
		Halt: func(reason string) {
			panic(haltError(reason))
		},
	})

	m.console.Secure = m.monitor.InTrusted

	err = sbi.Init(r, &sbi.Platform{
		ImplVersion: implVersion,
		Console:     m.console,
		Timer:       harts,
		IPI:         harts,
		RFence:      harts,
		HSM:         m.monitor,
		Shutdown: func() {
			log.Fatalf("SM shutdown requested")
		},
	})

	if err != nil {
		return nil, fmt.Errorf("SM could not register extensions, %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, h := range harts.Harts {
		h := h
		h.SetStvec(mem.NonSecureStart)

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					reason, ok := r.(haltError)

					if !ok {
						panic(r)
					}

					err = fmt.Errorf("hart %d halted, %s", h.ID, reason)
				}
			}()

			coldBoot := h.ID == 0

			// secondary harts give up once another hart fails
			for !coldBoot && !m.monitor.Poll(readyPolls) {
				if err = ctx.Err(); err != nil {
					return
				}
			}

			m.monitor.Init(h.ID, alloc.Hart(h.PMP), coldBoot)

			return
		})
	}

	if err = g.Wait(); err != nil {
		return nil, err
	}

	// failures past boot stop the simulator
	m.monitor.Halt = nil

	shell.Monitor = m.monitor
	shell.Allocator = alloc
	shell.Registry = r
	shell.PMP = harts.Harts[0].PMP

	return
}

func (b *bootCmd) serve(ctx context.Context, m *machine) (err error) {
	if b.ssh == "" {
		return stdinConsole(m)
	}

	listener, err := net.Listen("tcp", b.ssh)

	if err != nil {
		return
	}

	c := &util.Console{
		Banner:  shell.Banner,
		Help:    shell.Help,
		Handler: shell.Handle,
		Log:     m.console,
	}

	if err = c.Start(listener); err != nil {
		return
	}

	log.Printf("SM console listening on %s", listener.Addr())

	<-ctx.Done()

	return listener.Close()
}

func stdinConsole(m *machine) (err error) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)

		if err != nil {
			return err
		}

		defer term.Restore(fd, state)
	}

	shell.SerialConsole(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout})

	return
}

// Execute implements subcommands.Command.
func (b *bootCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	shell.Banner = fmt.Sprintf("%s/%s (%s) • Security Monitor simulator (%d harts)", runtime.GOOS, runtime.GOARCH, runtime.Version(), b.harts)

	m, err := b.boot(ctx)

	if err != nil {
		log.Printf("SM boot error, %v", err)
		return subcommands.ExitFailure
	}

	sim = m

	if err = b.serve(ctx, m); err != nil {
		log.Printf("SM console error, %v", err)
		return subcommands.ExitFailure
	}

	log.Printf("SM says goodbye")

	return subcommands.ExitSuccess
}
