// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sbi implements the RISC-V Supervisor Binary Interface (SBI) ecall
// dispatch for a Machine mode security monitor.
//
// Supervisor and user mode software issues an ecall with the extension
// identifier in a7, the function identifier in a6 and up to six arguments in
// a0-a5. Extensions register non-overlapping identifier ranges in a Registry,
// the Dispatcher resolves each trapped call against it and encodes the result
// back into the trapped register file.
package sbi

// SBI extension identifiers
const (
	ExtLegacySetTimer            = 0x00
	ExtLegacyConsolePutchar      = 0x01
	ExtLegacyConsoleGetchar      = 0x02
	ExtLegacyClearIPI            = 0x03
	ExtLegacySendIPI             = 0x04
	ExtLegacyRemoteFenceI        = 0x05
	ExtLegacyRemoteSFenceVMA     = 0x06
	ExtLegacyRemoteSFenceVMAASID = 0x07
	ExtLegacyShutdown            = 0x08

	ExtBase   = 0x10
	ExtTime   = 0x54494D45 // TIME
	ExtIPI    = 0x735049   // sPI
	ExtRFence = 0x52464E43 // RFNC
	ExtHSM    = 0x48534D   // HSM
	ExtSRST   = 0x53525354 // SRST

	ExtVendorStart = 0x09000000
	ExtVendorEnd   = 0x09FFFFFF
)

// SBI base extension function identifiers
const (
	BaseGetSpecVersion = 0
	BaseGetImplID      = 1
	BaseGetImplVersion = 2
	BaseProbeExtension = 3
	BaseGetMvendorID   = 4
	BaseGetMarchID     = 5
	BaseGetMimpID      = 6
)

// BridgeThreshold is the highest base extension function identifier serviced
// by the base extension itself, identifiers above it are reserved for the
// trust domain switch.
const BridgeThreshold = 80

// Specification version implemented by the dispatcher.
const (
	VersionMajor = 0
	VersionMinor = 2
)

// ImplOpenSBI is the implementation identifier assigned to OpenSBI
// compatible firmware.
const ImplOpenSBI = 1

// InstructionSize is the width of the ecall instruction.
const InstructionSize = 4

// IsLegacy returns whether the extension identifier belongs to the legacy
// (v0.1) range, whose calls return a single value in a0.
func IsLegacy(ext uint64) bool {
	return ext <= ExtLegacyShutdown
}

// SpecVersion returns the encoded specification version as reported by the
// base extension.
func SpecVersion() uint64 {
	return VersionMajor<<24 | VersionMinor
}
