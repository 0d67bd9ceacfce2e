// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-sbi/pmp"
)

// PMP is the inspected PMP CSR file.
var PMP pmp.CSR

var modes = []string{"OFF", "TOR", "NA4", "NAPOT"}

func init() {
	Add(Cmd{
		Name:    "pmp ",
		Args:    1,
		Pattern: regexp.MustCompile(`^pmp (\d+)$`),
		Syntax:  "<index>",
		Help:    "read PMP CSR",
		Fn:      pmpRead,
	})

	Add(Cmd{
		Name:    "pmp",
		Args:    7,
		Pattern: regexp.MustCompile(`^pmp (\d+) ([[:xdigit:]]+) (\d) (\S+) (\S+) (\S+) (\S+)$`),
		Syntax:  "<index> <hex addr> <a> <r> <w> <x> <l>",
		Help:    "write PMP CSR",
		Fn:      pmpWrite,
	})
}

func pmpRead(_ *term.Terminal, arg []string) (res string, err error) {
	if PMP == nil {
		return "", errUnavailable
	}

	i, err := strconv.ParseUint(arg[0], 10, 8)

	if err != nil {
		return "", fmt.Errorf("invalid index, %v", err)
	}

	addr, r, w, x, a, l, err := PMP.ReadPMP(int(i))

	if err != nil {
		return
	}

	return fmt.Sprintf("PMP:%.2d addr:%.16x A:%s R:%v W:%v X:%v l:%v", i, addr, modes[a&3], r, w, x, l), nil
}

func pmpWrite(_ *term.Terminal, arg []string) (res string, err error) {
	if PMP == nil {
		return "", errUnavailable
	}

	i, err := strconv.ParseUint(arg[0], 10, 8)

	if err != nil {
		return "", fmt.Errorf("invalid index, %v", err)
	}

	addr, err := strconv.ParseUint(arg[1], 16, 64)

	if err != nil {
		return "", fmt.Errorf("invalid address, %v", err)
	}

	a, err := strconv.ParseUint(arg[2], 10, 2)

	if err != nil {
		return "", fmt.Errorf("invalid A value, %v", err)
	}

	var perm [4]bool

	for j, name := range []string{"R", "W", "X", "l"} {
		if perm[j], err = strconv.ParseBool(arg[3+j]); err != nil {
			return "", fmt.Errorf("invalid %s boolean, %v", name, err)
		}
	}

	err = PMP.WritePMP(int(i), addr, perm[0], perm[1], perm[2], int(a), perm[3])

	return
}
