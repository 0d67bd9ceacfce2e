// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

// The nonsecure_os_go unikernel is the Main OS, it runs in Supervisor mode and
// requests TEE services through the security monitor world switch.
package main

import (
	"log"
	"os"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/sifive/fu540"

	"github.com/usbarmory/GoTEE-sbi/internal/tee"
	"github.com/usbarmory/GoTEE-sbi/mem"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = mem.NonSecureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = mem.NonSecureSize

//go:linkname hwinit runtime.hwinit
func hwinit() {
	fu540.RV64.InitSupervisor()
}

//go:linkname printk runtime.printk
func printk(c byte) {
	call(sbi.ExtLegacyConsolePutchar, 0, uint64(c))
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}

func probe() bool {
	_, spec := call(sbi.ExtBase, sbi.BaseGetSpecVersion)
	_, impl := call(sbi.ExtBase, sbi.BaseGetImplID)

	log.Printf("supervisor SBI v%d.%d impl:%d", spec>>24&0x7f, spec&0xffffff, impl)

	_, available := call(sbi.ExtBase, sbi.BaseProbeExtension, sm.ExtTEE)

	return available != 0
}

func main() {
	log.Printf("%s/%s (%s) • supervisor", runtime.GOOS, runtime.GOARCH, runtime.Version())

	defer exit()

	if !probe() {
		log.Printf("supervisor could not find TEE extension")
		return
	}

	// the first world switch boots the TEE
	if res, err := tee.Request(call, tee.Version, 0); err != nil || res != tee.Ready {
		log.Printf("supervisor could not start TEE (%#x, %v)", res, err)
		return
	}

	for _, r := range []struct {
		name string
		req  uint64
		arg  uint64
	}{
		{"version", tee.Version, 0},
		{"in trusted", tee.InTrusted, 0},
		{"irq 38 secure", tee.IsSecureInterrupt, 38},
		{"irq 10 secure", tee.IsSecureInterrupt, 10},
		{"echo", tee.Echo, 0xcafe},
	} {
		res, err := tee.Request(call, r.req, r.arg)

		if err != nil {
			log.Printf("supervisor TEE %s request failed (%v)", r.name, err)
			continue
		}

		log.Printf("supervisor TEE %s: %#x", r.name, res)
	}

	log.Printf("supervisor is about to yield back")
}
