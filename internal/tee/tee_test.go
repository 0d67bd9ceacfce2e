// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tee

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/GoTEE-sbi/sbi"
	"github.com/usbarmory/GoTEE-sbi/sm"
)

var denied = sbi.ErrDenied

type ecallRecord struct {
	Ext  uint64
	Func uint64
	Args []uint64
}

// recorder answers every ecall with a fixed result.
type recorder struct {
	calls []ecallRecord
	a0    uint64
	a1    uint64
}

func (r *recorder) ecall(ext uint64, fid uint64, args ...uint64) (uint64, uint64) {
	r.calls = append(r.calls, ecallRecord{ext, fid, args})
	return r.a0, r.a1
}

func TestServe(t *testing.T) {
	for _, tt := range []struct {
		req   uint64
		arg   uint64
		a0    uint64
		res   uint64
		err   bool
		calls []ecallRecord
	}{
		{Version, 0, 0, 1, false, []ecallRecord{{sm.ExtTEE, sm.FuncVersion, nil}}},
		{IsSecureInterrupt, 38, 0, 1, false, []ecallRecord{{sm.ExtTEE, sm.FuncIsSecureInterrupt, []uint64{38}}}},
		{InTrusted, 0, uint64(denied), Invalid, true, []ecallRecord{{sm.ExtTEE, sm.FuncInTrusted, nil}}},
		{Echo, 0x1234, 0, 0x1234, false, nil},
		{42, 0, 0, Invalid, true, nil},
	} {
		r := &recorder{a0: tt.a0, a1: 1}

		res, err := Serve(r.ecall, tt.req, tt.arg)

		if (err != nil) != tt.err || res != tt.res {
			t.Fatalf("request %d: got %#x, %v", tt.req, res, err)
		}

		if diff := cmp.Diff(tt.calls, r.calls); diff != "" {
			t.Fatalf("request %d: unexpected calls (-want +got):\n%s", tt.req, diff)
		}
	}
}

func TestRequest(t *testing.T) {
	r := &recorder{a1: 0xcafe}

	res, err := Request(r.ecall, Echo, 0xcafe)

	if err != nil || res != 0xcafe {
		t.Fatalf("got %#x, %v", res, err)
	}

	want := []ecallRecord{{sbi.ExtBase, sm.FuncEnterTEE, []uint64{Echo, 0xcafe}}}

	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}

	r = &recorder{a0: uint64(denied)}

	if _, err := Request(r.ecall, Echo, 0); err == nil {
		t.Fatal("denied world switch succeeded")
	}

	r = &recorder{a1: Invalid}

	if _, err := Request(r.ecall, 42, 0); err == nil {
		t.Fatal("failed request succeeded")
	}
}

func TestReturn(t *testing.T) {
	r := &recorder{a0: Echo, a1: 7}

	if req, arg := Return(r.ecall, Ready); req != Echo || arg != 7 {
		t.Fatalf("got request %d arg %d", req, arg)
	}

	want := []ecallRecord{{sbi.ExtBase, sm.FuncReturnNormal, []uint64{Ready}}}

	if diff := cmp.Diff(want, r.calls); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
}
