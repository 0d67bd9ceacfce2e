// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"
	"sync"
)

var debugTarget struct {
	sync.Mutex
	table *gosym.Table
	err   error
}

func goSymTable(buf []byte) (symTable *gosym.Table, err error) {
	exe, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return
	}

	text := exe.Section(".text")
	pclntab := exe.Section(".gopclntab")
	symtab := exe.Section(".gosymtab")

	if text == nil || pclntab == nil || symtab == nil {
		return nil, errors.New("missing Go symbol sections")
	}

	lineTableData, err := pclntab.Data()

	if err != nil {
		return
	}

	lineTable := gosym.NewLineTable(lineTableData, text.Addr)

	symTableData, err := symtab.Data()

	if err != nil {
		return
	}

	return gosym.NewTable(symTableData, lineTable)
}

// SetDebugTarget sets the ELF image used to resolve program counters of a
// crashed execution context.
func SetDebugTarget(buf []byte) {
	debugTarget.Lock()
	defer debugTarget.Unlock()

	debugTarget.table, debugTarget.err = goSymTable(buf)
}

// PCToLine resolves a program counter of the debug target to its source
// location.
func PCToLine(pc uint64) (s string, err error) {
	debugTarget.Lock()
	defer debugTarget.Unlock()

	if debugTarget.table == nil {
		if err = debugTarget.err; err == nil {
			err = errors.New("no debug target")
		}

		return
	}

	file, line, fn := debugTarget.table.PCToLine(pc)

	if fn == nil {
		return "", fmt.Errorf("pc %#x not found", pc)
	}

	return fmt.Sprintf("%s:%d %s", file, line, fn.Name), nil
}
