// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

func TestPtySize(t *testing.T) {
	req := func(name string, w uint32, h uint32) []byte {
		b := binary.BigEndian.AppendUint32(nil, uint32(len(name)))
		b = append(b, name...)
		b = binary.BigEndian.AppendUint32(b, w)
		b = binary.BigEndian.AppendUint32(b, h)

		// pixel dimensions and modes
		return append(b, make([]byte, 12)...)
	}

	for _, tt := range []struct {
		payload []byte
		w       uint32
		h       uint32
		ok      bool
	}{
		{req("xterm-256color", 120, 40), 120, 40, true},
		{req("", 80, 24), 80, 24, true},
		{req("vt100", 80, 24)[:10], 0, 0, false},
		{[]byte{0, 0}, 0, 0, false},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 80}, 0, 0, false},
	} {
		w, h, ok := ptySize(tt.payload)

		if w != tt.w || h != tt.h || ok != tt.ok {
			t.Errorf("ptySize(%x) = %d, %d, %v", tt.payload, w, h, ok)
		}
	}

	if _, _, ok := windowSize([]byte{0, 0, 0, 80}); ok {
		t.Error("short window-change accepted")
	}
}

// output accumulates session output for concurrent inspection.
type output struct {
	sync.Mutex
	buf bytes.Buffer
}

func (o *output) Write(p []byte) (int, error) {
	o.Lock()
	defer o.Unlock()

	return o.buf.Write(p)
}

func (o *output) waitFor(s string) bool {
	for i := 0; i < 500; i++ {
		o.Lock()
		found := strings.Contains(o.buf.String(), s)
		o.Unlock()

		if found {
			return true
		}

		time.Sleep(10 * time.Millisecond)
	}

	return false
}

func TestConsoleSession(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")

	if err != nil {
		t.Fatal(err)
	}

	defer listener.Close()

	world := &Log{Output: io.Discard}

	c := &Console{
		Banner: "SM test console",
		Log:    world,
		Handler: func(t *term.Terminal, line string) error {
			if line == "exit" {
				return io.EOF
			}

			fmt.Fprintf(t, "echo:%s\n", line)

			return nil
		},
	}

	if err = c.Start(listener); err != nil {
		t.Fatal(err)
	}

	client, err := ssh.Dial("tcp", listener.Addr().String(), &ssh.ClientConfig{
		User: "sm",
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			if fp := ssh.FingerprintSHA256(key); fp != c.Fingerprint {
				return fmt.Errorf("unexpected host key %s", fp)
			}

			return nil
		},
	})

	if err != nil {
		t.Fatal(err)
	}

	defer client.Close()

	s, err := client.NewSession()

	if err != nil {
		t.Fatal(err)
	}

	out := &output{}
	s.Stdout = out

	in, err := s.StdinPipe()

	if err != nil {
		t.Fatal(err)
	}

	if err = s.RequestPty("xterm", 40, 120, ssh.TerminalModes{}); err != nil {
		t.Fatal(err)
	}

	if err = s.Shell(); err != nil {
		t.Fatal(err)
	}

	if !out.waitFor("SM test console") {
		t.Fatal("banner not received")
	}

	fmt.Fprintf(in, "hello\r")

	if !out.waitFor("echo:hello") {
		t.Fatal("command output not received")
	}

	// world console output reaches the attached session
	for _, c := range []byte("trusted applet ready\n") {
		world.BufferedLog(c, true)
	}

	if !out.waitFor("trusted applet ready") {
		t.Fatal("world console output not received")
	}

	fmt.Fprintf(in, "exit\r")

	if err = s.Wait(); err != nil {
		if _, ok := err.(*ssh.ExitMissingError); !ok {
			t.Fatal(err)
		}
	}
}
