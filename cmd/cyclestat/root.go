// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tlsbench/cyclestat/internal/config"
)

// options is the state shared by all subcommands of one invocation.
type options struct {
	configPath string
	verbose    bool

	// cfg is the merged configuration, set before any subcommand
	// runs.
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	o := new(options)
	root := &cobra.Command{
		Use:   "cyclestat",
		Short: "Cycle counts of TLS ciphersuites from callgrind profiles.",
		Long: "Cyclestat extracts the inclusive cycle cost of named functions from callgrind\n" +
			"profiles of TLS client and server runs and aggregates them per ciphersuite.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "read settings from YAML `file`")
	pf.String("grammar", "v1", "cost line grammar: v1 (line cost) or v2 (instr line cost)")
	pf.String("match", "first", "call sites to count: first or sum")
	pf.String("naming", "current", "file naming `conventions`: current, legacy-role, legacy-token or any")
	pf.Bool("demangle", false, "match demangled C++ names")
	pf.String("db-driver", "", "archive samples using SQL `driver` (sqlite3, sqlite or mysql)")
	pf.String("db-dsn", "", "data source `name` of the sample archive")
	pf.String("benchfmt", "", "also write samples in Go benchmark format to `file`")
	pf.String("gcs-credentials", "", "service account key `file` for gs:// destinations")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "log every extraction")

	root.AddCommand(
		newCollectCmd(o),
		newJointCmd(o),
		newSummaryCmd(),
		newCiphersCmd(o),
	)
	return root
}

// setup configures logging and merges the configuration file with the
// flags set on cmd's command line.
func (o *options) setup(cmd *cobra.Command) error {
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(log.InfoLevel)
	if o.verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
		log.WithField("config", o.configPath).Debug("loaded configuration")
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}
