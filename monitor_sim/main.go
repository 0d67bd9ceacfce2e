// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// The monitor_sim command boots the security monitor on simulated harts and
// serves its console, for inspection of the trust domain configuration and
// the ecall dispatch on a host.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/subcommands"
)

func main() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&bootCmd{}, "")

	flag.Parse()

	os.Exit(int(subcommands.Execute(context.Background())))
}
