// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

var (
	// Monitor is the inspected security monitor.
	Monitor *sm.Monitor
	// Allocator is the region table of the security monitor.
	Allocator *pmp.Allocator
	// Registry holds the dispatched ecall extensions.
	Registry *sbi.Registry
)

var errUnavailable = errors.New("unavailable")

func init() {
	Add(Cmd{
		Name: "regions",
		Help: "trust domain PMP regions",
		Fn:   regionsCmd,
	})

	Add(Cmd{
		Name: "harts",
		Help: "hart trust domain state",
		Fn:   hartsCmd,
	})

	Add(Cmd{
		Name: "ecalls",
		Help: "registered ecall extensions",
		Fn:   ecallsCmd,
	})

	Add(Cmd{
		Name: "secirq",
		Help: "secure interrupt sources",
		Fn:   secirqCmd,
	})
}

func regionsCmd(_ *term.Terminal, _ []string) (string, error) {
	if Monitor == nil || Allocator == nil {
		return "", errUnavailable
	}

	if !Monitor.Ready() {
		return "", errors.New("security monitor not ready")
	}

	var res []string

	for _, d := range sm.Domains {
		r, err := Allocator.Region(Monitor.Handle(d))

		if err != nil {
			return "", fmt.Errorf("%s region, %v", d, err)
		}

		size := "all"

		if r.Size != pmp.All {
			size = humanize.IBytes(r.Size)
		}

		res = append(res, fmt.Sprintf("%-5s %s (%s)", d, r.String(), size))
	}

	return strings.Join(res, "\n"), nil
}

func hartsCmd(_ *term.Terminal, _ []string) (string, error) {
	if Monitor == nil {
		return "", errUnavailable
	}

	var res []string

	for _, h := range Monitor.Harts() {
		res = append(res, fmt.Sprintf("hart:%d world:%s switches:%d", h.ID, h.World, h.Switches))
	}

	return strings.Join(res, "\n"), nil
}

func ecallsCmd(_ *term.Terminal, _ []string) (string, error) {
	if Registry == nil {
		return "", errUnavailable
	}

	var res []string

	for _, ext := range Registry.Extensions() {
		res = append(res, ext.String())
	}

	return strings.Join(res, "\n"), nil
}

func secirqCmd(_ *term.Terminal, _ []string) (string, error) {
	if Monitor == nil {
		return "", errUnavailable
	}

	t := Monitor.SecureInterruptTable()

	if t == nil {
		return "", errors.New("secure interrupt table not initialized")
	}

	return fmt.Sprintf("%d secure interrupts: %v", t.Len(), t.Sources()), nil
}
