// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tlsbench/cyclestat/locate"
)

func newCollectCmd(o *options) *cobra.Command {
	var dir, out string
	cmd := &cobra.Command{
		Use:   "collect [flags] ciphers-file",
		Short: "Collect the cycle count of every profile for the listed ciphersuites.",
		Long: "Collect extracts the client functions (--cf) from every client profile and the\n" +
			"server functions (--sf) from every server profile of each listed ciphersuite,\n" +
			"keyed by the payload sizes in the file names.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.collect(cmd, args[0], dir, out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&dir, "path", "p", ".", "`directory` holding the callgrind profiles")
	f.StringVarP(&out, "output", "o", "cycles.json", "write results to `file` or gs://bucket/object")
	f.StringSlice("cf", nil, "client `functions` to collect")
	f.StringSlice("sf", nil, "server `functions` to collect")
	f.String("alg", "", "only collect ciphersuites whose name contains `token`")
	return cmd
}

func (o *options) collect(cmd *cobra.Command, ciphersFile, dir, out string) error {
	ctx := cmd.Context()
	if len(o.cfg.ClientFunctions) == 0 && len(o.cfg.ServerFunctions) == 0 {
		return errors.New("no functions to collect: use --cf, --sf or a configuration file")
	}
	suites, err := o.suites(ciphersFile)
	if err != nil {
		return err
	}
	idx, err := o.locate(dir)
	if err != nil {
		return err
	}
	r, err := o.newRun()
	if err != nil {
		return err
	}

	for _, role := range locate.Roles {
		funcs := o.cfg.Functions(role)
		if len(funcs) == 0 {
			continue
		}
		log.WithFields(log.Fields{"role": role, "suites": len(suites), "functions": len(funcs)}).Info("collecting")
		r.CollectIndex(idx, role, suites.IDs(), funcs)
	}

	if err := o.writeJSON(ctx, out, r.PerSizeTable(suites)); err != nil {
		return err
	}
	if err := o.archive(ctx, r, suites, "collect "+ciphersFile); err != nil {
		return err
	}
	if err := printExtrema(cmd.OutOrStdout(), r); err != nil {
		return err
	}
	logSkips(r)
	return nil
}
