// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

const outputLimit = 1024
const flushChr = 0x0a // \n

// Log represents a console shared by the normal and secure worlds, output
// is line buffered per world to avoid interleaved logs.
type Log struct {
	sync.Mutex

	// Output is the console output (defaults to os.Stdout)
	Output io.Writer
	// Secure returns whether a hart is executing the secure world
	Secure func(hart uint64) bool

	term *term.Terminal

	secureOutput    bytes.Buffer
	nonSecureOutput bytes.Buffer

	input bytes.Buffer
}

// SetTerminal redirects output to a terminal, world output is colored
// accordingly. A nil terminal restores the default output.
func (l *Log) SetTerminal(t *term.Terminal) {
	l.Lock()
	defer l.Unlock()

	l.term = t
}

func (l *Log) flush(buf *bytes.Buffer, secure bool) {
	switch {
	case l.term != nil:
		color := l.term.Escape.Red

		if secure {
			color = l.term.Escape.Green
		}

		l.term.Write(color)
		l.term.Write(buf.Bytes())
		l.term.Write(l.term.Escape.Reset)
	case l.Output != nil:
		l.Output.Write(buf.Bytes())
	default:
		os.Stdout.Write(buf.Bytes())
	}

	buf.Reset()
}

// BufferedLog buffers a character for the argument world, the buffer is
// flushed on newline or when full.
func (l *Log) BufferedLog(c byte, secure bool) {
	l.Lock()
	defer l.Unlock()

	buf := &l.nonSecureOutput

	if secure {
		buf = &l.secureOutput
	}

	buf.WriteByte(c)

	if c == flushChr || buf.Len() > outputLimit {
		l.flush(buf, secure)
	}
}

// PutChar implements sbi.HartConsole.
func (l *Log) PutChar(hart uint64, c byte) error {
	secure := false

	if l.Secure != nil {
		secure = l.Secure(hart)
	}

	l.BufferedLog(c, secure)

	return nil
}

// Write logs normal world output.
func (l *Log) Write(p []byte) (int, error) {
	for _, c := range p {
		l.BufferedLog(c, false)
	}

	return len(p), nil
}

// Feed queues console input.
func (l *Log) Feed(p []byte) {
	l.Lock()
	defer l.Unlock()

	l.input.Write(p)
}

// Read consumes queued console input, it never blocks and returns io.EOF
// when no input is available.
func (l *Log) Read(p []byte) (int, error) {
	l.Lock()
	defer l.Unlock()

	return l.input.Read(p)
}
