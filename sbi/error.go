// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"errors"
	"fmt"
)

// Error represents an SBI error code as returned to the caller in a0.
type Error int64

// SBI error codes
const (
	Success             Error = 0
	ErrFailed           Error = -1
	ErrNotSupported     Error = -2
	ErrInvalidParam     Error = -3
	ErrDenied           Error = -4
	ErrInvalidAddress   Error = -5
	ErrAlreadyAvailable Error = -6
)

var errorNames = map[Error]string{
	Success:             "success",
	ErrFailed:           "failed",
	ErrNotSupported:     "not supported",
	ErrInvalidParam:     "invalid parameter",
	ErrDenied:           "denied",
	ErrInvalidAddress:   "invalid address",
	ErrAlreadyAvailable: "already available",
}

func (e Error) Error() string {
	if s, ok := errorNames[e]; ok {
		return s
	}

	return fmt.Sprintf("sbi error %d", int64(e))
}

// ErrInvalidArgument is returned on extension registration with a malformed
// or overlapping identifier range.
var ErrInvalidArgument = errors.New("invalid extension")
