// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package gotee

import (
	"errors"
	"log"
	"sync"

	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

// GoTEE loads the TEE and the Main OS, the Main OS is then executed with
// world switch calls transferring control to the TEE.
func GoTEE() (err error) {
	var wg sync.WaitGroup

	if Monitor == nil || Dispatcher == nil {
		return errors.New("SM not initialized")
	}

	tee, err := loadTEE()

	if err != nil {
		return
	}

	os, err := loadSupervisor()

	if err != nil {
		return
	}

	s := &Switch{
		Monitor: Monitor,
		TEE:     tee,
		Hart:    bootHart,
	}

	s.Start()

	Dispatcher.Bridge(&sbi.Gate{
		Ext:     sbi.ExtBase,
		MinFunc: sm.FuncEnterTEE,
		Handler: s,
	})

	wg.Add(1)
	go run(os, &wg)

	log.Printf("SM waiting for kernel")
	wg.Wait()

	return
}
