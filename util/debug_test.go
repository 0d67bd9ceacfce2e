// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"testing"
)

func TestDebugTargetInvalid(t *testing.T) {
	if _, err := PCToLine(0x80000000); err == nil {
		t.Fatal("resolved pc without debug target")
	}

	SetDebugTarget([]byte("not an ELF"))

	if _, err := PCToLine(0x80000000); err == nil {
		t.Fatal("resolved pc with invalid debug target")
	}
}
