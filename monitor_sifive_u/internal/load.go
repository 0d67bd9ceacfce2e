// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package gotee

import (
	"fmt"
	"log"
	"sync"

	"github.com/usbarmory/GoTEE/monitor"

	"github.com/usbarmory/GoTEE-sbi/mem"
	"github.com/usbarmory/GoTEE-sbi/util"

	"github.com/usbarmory/armory-boot/exec"
)

var (
	TEE []byte
	OS  []byte
)

// loadTEE loads a TamaGo unikernel as trusted execution environment.
func loadTEE() (tee *monitor.ExecCtx, err error) {
	image := &exec.ELFImage{
		Region: mem.TEERegion,
		ELF:    TEE,
	}

	if err = image.Load(); err != nil {
		return
	}

	if tee, err = monitor.Load(image.Entry(), image.Region, true); err != nil {
		return nil, fmt.Errorf("SM could not load TEE, %v", err)
	}

	log.Printf("SM loaded TEE addr:%#x entry:%#x size:%d", mem.TEEStart, tee.PC, len(TEE))

	// set memory protection function
	tee.PMP = configurePMP

	// set stack pointer to the end of available memory
	tee.X2 = mem.TEEStart + mem.TEESize

	// override default handler to support SBI and improve logging
	tee.Handler = sbiHandler

	// set TEE as ELF debugging target
	util.SetDebugTarget(TEE)

	return
}

// loadSupervisor loads a TamaGo unikernel as main OS.
func loadSupervisor() (os *monitor.ExecCtx, err error) {
	image := &exec.ELFImage{
		Region: mem.NonSecureRegion,
		ELF:    OS,
	}

	if err = image.Load(); err != nil {
		return
	}

	if os, err = monitor.Load(image.Entry(), image.Region, false); err != nil {
		return nil, fmt.Errorf("SM could not load kernel, %v", err)
	}

	log.Printf("SM loaded kernel addr:%#x entry:%#x size:%d", mem.NonSecureStart, os.PC, len(OS))

	// set memory protection function
	os.PMP = configurePMP

	// set stack pointer to the end of available memory
	os.X2 = mem.NonSecureStart + mem.NonSecureSize

	// override default handler to support SBI and improve logging
	os.Handler = sbiHandler

	return
}

func run(ctx *monitor.ExecCtx, wg *sync.WaitGroup) {
	log.Printf("SM starting sp:%#.8x pc:%#.8x secure:%v", ctx.X2, ctx.PC, ctx.Secure())

	err := ctx.Run()

	if wg != nil {
		wg.Done()
	}

	log.Printf("SM stopped sp:%#.8x ra:%#.8x pc:%#.8x err:%v", ctx.X2, ctx.X1, ctx.PC, err)

	if err != nil {
		pcLine, _ := util.PCToLine(ctx.PC)
		lrLine, _ := util.PCToLine(ctx.X1)

		if pcLine != "" || lrLine != "" {
			log.Printf("stack trace:\n  %s\n  %s", pcLine, lrLine)
		}
	}
}
