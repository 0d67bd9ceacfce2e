// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package shell implements a terminal console handler for the security
// monitor commands.
package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"sort"
	"sync"
	"text/tabwriter"

	"golang.org/x/term"
)

// Banner is the console welcome message.
var Banner string

// CmdFn represents a command handler.
type CmdFn func(term *term.Terminal, arg []string) (res string, err error)

// Cmd represents a console command.
type Cmd struct {
	// Name is the command name, matched verbatim when Pattern is nil.
	Name string
	// Args is the number of Pattern submatches passed to Fn.
	Args int
	// Pattern matches the command line.
	Pattern *regexp.Regexp
	// Syntax describes the command arguments.
	Syntax string
	// Help describes the command.
	Help string
	// Fn is the command handler.
	Fn CmdFn
}

var cmds = struct {
	sync.RWMutex
	m map[string]*Cmd
}{
	m: make(map[string]*Cmd),
}

// Add registers a command, replacing any previous one with the same name.
func Add(cmd Cmd) {
	cmds.Lock()
	defer cmds.Unlock()

	cmds.m[cmd.Name] = &cmd
}

func sorted() (list []*Cmd) {
	cmds.RLock()
	defer cmds.RUnlock()

	for _, cmd := range cmds.m {
		list = append(list, cmd)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})

	return
}

// Help returns the list of registered commands.
func Help(t *term.Terminal) string {
	var help bytes.Buffer

	w := tabwriter.NewWriter(&help, 16, 8, 0, '\t', tabwriter.TabIndent)

	for _, cmd := range sorted() {
		fmt.Fprintf(w, "%s\t%s\t # %s\n", cmd.Name, cmd.Syntax, cmd.Help)
	}

	w.Flush()

	if t == nil {
		return help.String()
	}

	return string(t.Escape.Cyan) + help.String() + string(t.Escape.Reset)
}

func match(line string) (*Cmd, []string) {
	for _, cmd := range sorted() {
		if cmd.Pattern == nil {
			if cmd.Name == line {
				return cmd, nil
			}
		} else if m := cmd.Pattern.FindStringSubmatch(line); len(m) > 0 && (len(m)-1 == cmd.Args) {
			return cmd, m[1:]
		}
	}

	return nil, nil
}

// Handle executes a command line, io.EOF is returned when the session must
// be closed.
func Handle(t *term.Terminal, line string) (err error) {
	if line == "" {
		return
	}

	cmd, arg := match(line)

	if cmd == nil {
		return errors.New("unknown command, type `help`")
	}

	res, err := cmd.Fn(t, arg)

	if res != "" {
		fmt.Fprintln(t, res)
	}

	return
}

// Console handles commands over a terminal until the session is closed.
func Console(t *term.Terminal) {
	fmt.Fprintf(t, "\n%s\n\n", Banner)
	fmt.Fprintf(t, "%s\n", Help(t))

	for {
		line, err := t.ReadLine()

		if err == io.EOF {
			return
		}

		if err != nil {
			log.Printf("readline error, %v", err)
			continue
		}

		if err = Handle(t, line); err == io.EOF {
			return
		} else if err != nil {
			fmt.Fprintf(t, "command error, %v\n", err)
		}
	}
}

// SerialConsole handles commands over a serial port.
func SerialConsole(port io.ReadWriter) {
	t := term.NewTerminal(port, "")
	t.SetPrompt(string(t.Escape.Red) + "> " + string(t.Escape.Reset))

	Console(t)
}
