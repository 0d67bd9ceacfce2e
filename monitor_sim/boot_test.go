// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/usbarmory/GoTEE-sbi/mem"
	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/shell"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

func TestFailRegion(t *testing.T) {
	a, err := failRegion(pmp.NewAllocator(0), "shm")

	if err != nil {
		t.Fatal(err)
	}

	for i := range sm.Domains {
		_, err := a.CreateRegion(uint64(i)*0x1000, 0x1000, pmp.Any, true)

		if failed := errors.Is(err, pmp.ErrNoSlot); failed != (i == 3) {
			t.Fatalf("region %d: %v", i, err)
		}
	}

	if _, err := failRegion(pmp.NewAllocator(0), "bogus"); err == nil {
		t.Fatal("invalid region accepted")
	}
}

func TestBootCommands(t *testing.T) {
	b := &bootCmd{harts: 2, entries: pmp.DefaultEntries}

	m, err := b.boot(context.Background())

	if err != nil {
		t.Fatal(err)
	}

	sim = m
	defer func() { sim = nil }()

	if !m.monitor.Ready() {
		t.Fatal("monitor not ready")
	}

	for _, tt := range []struct {
		fn   shell.CmdFn
		arg  []string
		want string
	}{
		{accessCmd, []string{"1", fmt.Sprintf("%x", mem.NonSecureStart), "rwx"}, "allowed"},
		{accessCmd, []string{"1", fmt.Sprintf("%x", mem.TEEStart), "r"}, "(TEE) denied"},
		{ecallCmd, []string{"1", "10", "0", ""}, "a1:0x2"},
		{ecallCmd, []string{"1", "10", "51", " 7"}, fmt.Sprintf("mepc:%#.16x a0:0x7", mem.TEEStart)},
		{accessCmd, []string{"1", fmt.Sprintf("%x", mem.TEEStart), "r"}, "allowed"},
		{accessCmd, []string{"0", fmt.Sprintf("%x", mem.TEEStart), "r"}, "denied"},
		{ecallCmd, []string{"1", "544545", "3", ""}, "a1:0x1"},
		{ecallCmd, []string{"1", "10", "52", " 2a"}, "a1:0x2a"},
		{ecallCmd, []string{"0", "1", "0", " 41"}, "a0:0 (success)"},
		{ecallCmd, []string{"0", "2", "0", ""}, "a0:-1"},
		{inputCmd, []string{"hi"}, "2 bytes queued"},
		{ecallCmd, []string{"0", "2", "0", ""}, "a0:104"},
		{teeCmd, []string{"0", "0", "0"}, "result:0x1"},
		{teeCmd, []string{"0", "1", "26"}, "result:0x1"},
		{teeCmd, []string{"0", "1", "28"}, "result:0x0"},
		{teeCmd, []string{"0", "2", "0"}, "result:0x1"},
		{teeCmd, []string{"0", "3", "cafe"}, "result:0xcafe"},
		{teeCmd, []string{"0", "9", "0"}, ""},
		{teeCmd, []string{"3", "3", "0"}, ""},
		{ecallCmd, []string{"3", "10", "0", ""}, ""},
	} {
		res, err := tt.fn(nil, tt.arg)

		if tt.want == "" {
			if err == nil {
				t.Fatalf("%v: expected error, got %q", tt.arg, res)
			}

			continue
		}

		if err != nil {
			t.Fatalf("%v: %v", tt.arg, err)
		}

		if !strings.Contains(res, tt.want) {
			t.Fatalf("%v: %q does not contain %q", tt.arg, res, tt.want)
		}
	}

	if m.Harts[0].Timer() != 0 {
		t.Fatal("unexpected timer")
	}

	if n := len(m.dispatcher.Registry.Extensions()); n != 8 {
		t.Fatalf("%d extensions registered, want 8", n)
	}

	if ext := m.dispatcher.Registry.Find(sbi.ExtLegacyConsolePutchar); ext == nil || ext.Name != "legacy" {
		t.Fatal("legacy extension not registered")
	}
}

func TestBootRegionFailure(t *testing.T) {
	b := &bootCmd{harts: 4, entries: pmp.DefaultEntries, fail: "shm"}

	m, err := b.boot(context.Background())

	if err == nil || m != nil {
		t.Fatal("boot survived a region failure")
	}

	if !strings.Contains(err.Error(), "hart 0 halted, failed to initialize SHM memory") {
		t.Fatalf("unexpected error, %v", err)
	}
}
