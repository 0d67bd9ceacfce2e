// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

// The trusted_applet_go unikernel is the TEE, it services the Main OS
// requests delivered by the security monitor world switch.
package main

import (
	"log"
	"os"
	"runtime"
	"runtime/goos"

	"github.com/usbarmory/GoTEE/applet"

	"github.com/usbarmory/GoTEE-sbi/internal/tee"
)

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	// yield to monitor (w/ err != nil) on runtime panic
	goos.Exit = applet.Crash
}

func main() {
	log.Printf("%s/%s (%s) • TEE", runtime.GOOS, runtime.GOARCH, runtime.Version())

	// each return call resumes with the next request
	req, arg := tee.Return(call, tee.Ready)

	for {
		res, err := tee.Serve(call, req, arg)

		if err != nil {
			log.Printf("TEE request %d failed (%v)", req, err)
		}

		req, arg = tee.Return(call, res)
	}
}
