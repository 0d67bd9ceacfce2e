// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-sbi/internal/tee"
	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/shell"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

func init() {
	shell.Add(newCmd("ecall", 4, `^ecall (\d+) ([[:xdigit:]]+) ([[:xdigit:]]+)((?: [[:xdigit:]]+)*)$`,
		"<hart> <hex ext> <hex fid> (<hex arg>)*", "issue a supervisor ecall", ecallCmd))

	shell.Add(newCmd("tee", 3, `^tee (\d+) (\d+) ([[:xdigit:]]+)$`,
		"<hart> <request> <hex arg>", "run a TEE request through the world switch", teeCmd))

	shell.Add(newCmd("input", 1, `^input (.+)$`,
		"<text>", "queue legacy console input", inputCmd))

	shell.Add(newCmd("access", 3, `^access (\d+) ([[:xdigit:]]+) ([rwx]+)$`,
		"<hart> <hex addr> <rwx>", "check a supervisor memory access", accessCmd))
}

func newCmd(name string, args int, pattern string, syntax string, help string, fn shell.CmdFn) shell.Cmd {
	return shell.Cmd{
		Name:    name,
		Args:    args,
		Pattern: regexp.MustCompile(pattern),
		Syntax:  syntax,
		Help:    help,
		Fn:      fn,
	}
}

func parseHart(arg string) (id uint64, err error) {
	if sim == nil {
		return 0, errors.New("machine not booted")
	}

	if id, err = strconv.ParseUint(arg, 10, 64); err != nil {
		return 0, fmt.Errorf("invalid hart, %v", err)
	}

	return
}

func ecallCmd(_ *term.Terminal, arg []string) (res string, err error) {
	id, err := parseHart(arg[0])

	if err != nil {
		return
	}

	h, err := sim.Hart(id)

	if err != nil {
		return
	}

	var args []uint64

	fields := append([]string{arg[1], arg[2]}, strings.Fields(arg[3])...)

	for _, s := range fields {
		v, err := strconv.ParseUint(s, 16, 64)

		if err != nil {
			return "", fmt.Errorf("invalid argument, %v", err)
		}

		args = append(args, v)
	}

	a0, a1, err := h.Ecall(sim.dispatcher, args[0], args[1], args[2:]...)

	if err != nil {
		return
	}

	return fmt.Sprintf("a0:%d (%s) a1:%#x\n%s", int64(a0), sbi.Error(a0), a1, h), nil
}

// teeCmd performs a world switch and services the request on behalf of the
// TEE, whose ecalls are issued on the same hart.
func teeCmd(_ *term.Terminal, arg []string) (res string, err error) {
	id, err := parseHart(arg[0])

	if err != nil {
		return
	}

	h, err := sim.Hart(id)

	if err != nil {
		return
	}

	req, err := strconv.ParseUint(arg[1], 10, 64)

	if err != nil {
		return "", fmt.Errorf("invalid request, %v", err)
	}

	val, err := strconv.ParseUint(arg[2], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid argument, %v", err)
	}

	var ecallErr error

	ecall := func(ext uint64, fid uint64, args ...uint64) (a0 uint64, a1 uint64) {
		a0, a1, err := h.Ecall(sim.dispatcher, ext, fid, args...)

		if err != nil && ecallErr == nil {
			ecallErr = err
		}

		return
	}

	a0, a1 := ecall(sbi.ExtBase, sm.FuncEnterTEE, req, val)

	if ecallErr != nil {
		return "", ecallErr
	}

	if !sim.monitor.InTrusted(id) {
		return "", fmt.Errorf("world switch failed, %v", sbi.Error(a0))
	}

	v, err := tee.Serve(ecall, a0, a1)

	if err != nil {
		log.Printf("TEE request failed, %v", err)
	}

	_, v = tee.Return(ecall, v)

	if ecallErr != nil {
		return "", ecallErr
	}

	if v == tee.Invalid {
		return "", fmt.Errorf("request %d failed", req)
	}

	return fmt.Sprintf("hart:%d request:%d result:%#x", id, req, v), nil
}

func inputCmd(_ *term.Terminal, arg []string) (res string, err error) {
	if sim == nil {
		return "", errors.New("machine not booted")
	}

	sim.console.Feed([]byte(arg[0]))

	return fmt.Sprintf("%d bytes queued", len(arg[0])), nil
}

func accessCmd(_ *term.Terminal, arg []string) (res string, err error) {
	id, err := parseHart(arg[0])

	if err != nil {
		return
	}

	h, err := sim.Hart(id)

	if err != nil {
		return
	}

	addr, err := strconv.ParseUint(arg[1], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	var perm pmp.Perm

	for _, c := range arg[2] {
		switch c {
		case 'r':
			perm |= pmp.R
		case 'w':
			perm |= pmp.W
		case 'x':
			perm |= pmp.X
		}
	}

	res = "denied"

	if h.Access(addr, perm) {
		res = "allowed"
	}

	layout := sim.monitor.Layout

	return fmt.Sprintf("hart:%d %s %#.16x (%s) %s", id, perm, addr, layout.Owner(addr), res), nil
}
