// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Console represents an SSH console serving the security monitor shell,
// only one session at a time receives the world console output.
type Console struct {
	// Banner is the login welcome banner
	Banner string
	// Help returns the `help` command output
	Help func(*term.Terminal) string
	// Handler is the terminal command handler
	Handler func(*term.Terminal, string) error
	// Log, when set, is redirected to the active session
	Log *Log

	// Fingerprint is the SHA256 fingerprint of the host key, set by Start.
	Fingerprint string

	mu     sync.Mutex
	active *term.Terminal
}

// ptySize parses the terminal dimensions of a "pty-req" request payload
// (RFC4254 6.2): string TERM, uint32 columns, uint32 rows, ...
func ptySize(payload []byte) (w uint32, h uint32, ok bool) {
	if len(payload) < 4 {
		return
	}

	n := int(binary.BigEndian.Uint32(payload))

	if n < 0 || len(payload) < 4+n+8 {
		return
	}

	return windowSize(payload[4+n:])
}

// windowSize parses the dimensions of a "window-change" request payload
// (RFC4254 6.7).
func windowSize(payload []byte) (w uint32, h uint32, ok bool) {
	if len(payload) < 8 {
		return
	}

	return binary.BigEndian.Uint32(payload), binary.BigEndian.Uint32(payload[4:]), true
}

// attach makes a terminal the destination of log and world console output,
// the returned function restores the previous destination.
func (c *Console) attach(t *term.Terminal) (detach func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		fmt.Fprintf(t, "console output attached to another session\n")
		return func() {}
	}

	c.active = t

	out := log.Writer()
	log.SetOutput(io.MultiWriter(out, t))

	if c.Log != nil {
		c.Log.SetTerminal(t)
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.Log != nil {
			c.Log.SetTerminal(nil)
		}

		log.SetOutput(out)
		c.active = nil
	}
}

func (c *Console) shell(t *term.Terminal) {
	fmt.Fprintf(t, "%s\n", c.Banner)

	if c.Help != nil {
		fmt.Fprintf(t, "%s\n", string(t.Escape.Cyan)+c.Help(t)+string(t.Escape.Reset))
	}

	for {
		line, err := t.ReadLine()

		if err == io.EOF {
			return
		}

		if err != nil {
			log.Printf("SM console read error, %v", err)
			continue
		}

		if err = c.Handler(t, line); err == io.EOF {
			return
		} else if err != nil {
			fmt.Fprintf(t, "error: %v\n", err)
		}
	}
}

func (c *Console) session(ch ssh.Channel, reqs <-chan *ssh.Request) {
	t := term.NewTerminal(ch, "")
	t.SetPrompt(string(t.Escape.Red) + "> " + string(t.Escape.Reset))

	// receives whether a shell was requested
	start := make(chan bool, 1)

	go func() {
		defer ch.Close()

		if !<-start {
			return
		}

		detach := c.attach(t)
		defer detach()

		c.shell(t)
	}()

	var once sync.Once

	for req := range reqs {
		ok := false

		switch req.Type {
		case "shell":
			// payload commands are not supported
			if ok = len(req.Payload) == 0; ok {
				once.Do(func() { start <- true })
			}
		case "pty-req":
			var w, h uint32

			if w, h, ok = ptySize(req.Payload); ok {
				_ = t.SetSize(int(w), int(h))
			}
		case "window-change":
			if w, h, valid := windowSize(req.Payload); valid {
				_ = t.SetSize(int(w), int(h))
			}
		}

		if req.WantReply {
			_ = req.Reply(ok, nil)
		}
	}

	once.Do(func() { start <- false })
}

func (c *Console) serve(conn net.Conn, srv *ssh.ServerConfig) {
	sc, chans, reqs, err := ssh.NewServerConn(conn, srv)

	if err != nil {
		log.Printf("SM console handshake error, %v", err)
		return
	}

	log.Printf("SM console connection from %s (%s)", sc.RemoteAddr(), sc.ClientVersion())

	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}

		ch, reqs, err := nc.Accept()

		if err != nil {
			log.Printf("SM console channel error, %v", err)
			continue
		}

		go c.session(ch, reqs)
	}
}

// Start serves the console on the argument listener until it is closed.
func (c *Console) Start(listener net.Listener) (err error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)

	if err != nil {
		return fmt.Errorf("host key generation error, %v", err)
	}

	signer, err := ssh.NewSignerFromKey(key)

	if err != nil {
		return fmt.Errorf("host key conversion error, %v", err)
	}

	srv := &ssh.ServerConfig{
		NoClientAuth: true,
	}

	srv.AddHostKey(signer)

	c.Fingerprint = ssh.FingerprintSHA256(signer.PublicKey())
	log.Printf("SM console host key %s", c.Fingerprint)

	go func() {
		for {
			conn, err := listener.Accept()

			if errors.Is(err, net.ErrClosed) {
				return
			}

			if err != nil {
				log.Printf("SM console accept error, %v", err)
				continue
			}

			go c.serve(conn, srv)
		}
	}()

	return
}
