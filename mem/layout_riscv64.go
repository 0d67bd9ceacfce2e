// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && riscv64

package mem

import (
	"github.com/usbarmory/tamago/dma"
)

var (
	TEERegion       *dma.Region
	SharedRegion    *dma.Region
	NonSecureRegion *dma.Region
)

// Init reserves the memory of the TEE and Main OS images and of the shared
// memory buffer.
func Init() {
	TEERegion = &dma.Region{
		Start: TEEStart,
		Size:  TEESize,
	}

	TEERegion.Init()
	TEERegion.Reserve(TEESize, 0)

	SharedRegion = &dma.Region{
		Start: SharedStart,
		Size:  SharedSize,
	}

	SharedRegion.Init()

	NonSecureRegion = &dma.Region{
		Start: NonSecureStart,
		Size:  NonSecureSize,
	}

	NonSecureRegion.Init()
	NonSecureRegion.Reserve(NonSecureSize, 0)
}
