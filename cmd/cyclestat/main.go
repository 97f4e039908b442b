// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Cyclestat extracts per-function CPU cycle counts from callgrind
// profiles of TLS client and server runs and summarizes them.
//
// Usage:
//
//	cyclestat collect [flags] ciphers.txt
//	cyclestat joint [flags] dir [function...]
//	cyclestat summary [--html] result.json
//	cyclestat ciphers [--alg token] ciphers.txt
//
// Profiles are located by file name. The current naming convention is
//
//	<client|server>.callgrind.out.<ciphersuite id>.<bytes sent>.<bytes received>
//
// and --naming selects the legacy conventions
// <role>.callgrind.out.<id> and callgrind.out.<role>.<id>.
//
// The collect command reads a ciphersuite list (one "id name [flags]"
// per line) and writes every sample as
//
//	{"client": {function: {"<id> <name>": {"(sent, recv)": cycles}}}, "server": ...}
//
// The joint command pools the samples found in a directory and writes
// the mean and sample standard deviation of each function, either
// overall or, with --by-suite, per role and ciphersuite.
//
// The summary command prints a result file written by joint as an
// aligned text table, or as HTML with --html.
//
// Settings may be read from a YAML file given with --config. Flags set
// on the command line override the file. With --db-driver and --db-dsn
// the raw samples are also archived in an SQL database, and with
// --benchfmt they are written in the Go benchmark format for use with
// benchstat. Output destinations may be local paths or
// gs://bucket/object names.
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
