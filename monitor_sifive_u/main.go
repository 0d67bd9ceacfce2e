// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

// The monitor_sifive_u firmware runs the security monitor in Machine mode on
// the QEMU sifive_u machine, with the TEE and the Main OS as GoTEE execution
// contexts.
package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/tamago/board/qemu/sifive_u"
	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE-sbi/mem"
	_ "github.com/usbarmory/GoTEE-sbi/monitor_sifive_u/cmd"
	"github.com/usbarmory/GoTEE-sbi/monitor_sifive_u/internal"
	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/shell"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

// This firmware embeds the TEE and Main OS ELF binaries within the security
// monitor executable, using Go embed package.

//go:embed assets/trusted_applet.elf
var teeELF []byte

//go:embed assets/nonsecure_os_go.elf
var osELF []byte

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = mem.SecureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = mem.SecureSize

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	mem.Init()
	dma.Init(mem.SecureDMAStart, mem.SecureDMASize)

	shell.Banner = fmt.Sprintf("%s/%s (%s) • TEE Security Monitor (M-mode)", runtime.GOOS, runtime.GOARCH, runtime.Version())

	gotee.TEE = teeELF
	gotee.OS = osELF
}

func boot() {
	alloc := pmp.NewAllocator(pmp.DefaultEntries)
	r := &sbi.Registry{}

	d := &sbi.Dispatcher{
		Registry:   r,
		Redirector: gotee.Redirector,
	}

	m := sm.New(sm.Config{
		Layout:           mem.Layout(),
		Regions:          alloc,
		Registry:         r,
		TEEEntry:         mem.TEEStart,
		SecureInterrupts: mem.SecureInterrupts,
	})

	err := sbi.Init(r, &sbi.Platform{
		Console:  gotee.Console,
		HSM:      m,
		Shutdown: func() { runtime.Exit(0) },
	})

	if err != nil {
		log.Fatalf("SM could not register extensions, %v", err)
	}

	gotee.Console.Secure = m.InTrusted

	// TamaGo runs on the boot hart only
	m.Init(0, alloc.Hart(fu540.RV64), true)

	gotee.Monitor = m
	gotee.Dispatcher = d

	shell.Monitor = m
	shell.Allocator = alloc
	shell.Registry = r
	shell.PMP = fu540.RV64
}

func main() {
	boot()

	shell.SerialConsole(sifive_u.UART0)

	log.Printf("SM says goodbye")
}
