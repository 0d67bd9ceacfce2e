// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/term"

	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/GoTEE-sbi/mem"
	"github.com/usbarmory/GoTEE-sbi/shell"
)

const maxBufferSize = 102400

func init() {
	shell.Add(shell.Cmd{
		Name:    "peek",
		Args:    2,
		Pattern: regexp.MustCompile(`^peek ([[:xdigit:]]+) (\d+)$`),
		Syntax:  "<hex offset> <size>",
		Help:    "memory display (use with caution)",
		Fn:      memReadCmd,
	})
}

func memCopy(start uint64, size int) (b []byte) {
	r := &dma.Region{
		Start: uint(start),
		Size:  uint(size),
	}

	r.Init()

	addr, buf := r.Reserve(size, 0)
	defer r.Release(addr)

	b = make([]byte, size)
	copy(b, buf)

	return
}

func memReadCmd(_ *term.Terminal, arg []string) (res string, err error) {
	addr, err := strconv.ParseUint(arg[0], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	size, err := strconv.ParseUint(arg[1], 10, 32)

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if (addr%4) != 0 || (size%4) != 0 {
		return "", errors.New("only 32-bit aligned accesses are supported")
	}

	if size == 0 || size > maxBufferSize {
		return "", fmt.Errorf("size argument must be between 4 and %d", maxBufferSize)
	}

	layout := mem.Layout()
	d := layout.Owner(addr)

	return fmt.Sprintf("%s memory\n%s", d, hex.Dump(memCopy(addr, int(size)))), nil
}
