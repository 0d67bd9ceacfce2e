// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"testing"

	"github.com/usbarmory/GoTEE-sbi/pmp"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

func TestLayout(t *testing.T) {
	a := pmp.NewAllocator(pmp.DefaultEntries)
	l := Layout()

	for _, s := range []sm.Span{l.Monitor, l.TEE, l.SharedMemory, l.InterruptController, l.Timer} {
		h, err := a.CreateRegion(s.Base, s.Size, pmp.Any, true)

		if err != nil {
			t.Fatalf("region %#x-%#x, %v", s.Base, s.Base+s.Size, err)
		}

		// single entry regions leave room for all trust domains
		if r, _ := a.Region(h); r.Mode() != pmp.A_NAPOT {
			t.Fatalf("region %#x-%#x is not naturally aligned", s.Base, s.Base+s.Size)
		}
	}

	if NonSecureStart+NonSecureSize > SecureStart {
		t.Fatal("Main OS overlaps the security monitor")
	}
}
