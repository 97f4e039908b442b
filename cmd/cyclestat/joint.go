// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tlsbench/cyclestat/ciphers"
	"github.com/tlsbench/cyclestat/internal/config"
	"github.com/tlsbench/cyclestat/locate"
	"github.com/tlsbench/cyclestat/portable"
)

type jointFlags struct {
	out         string
	ciphersFile string
	role        string
	bySuite     bool
}

func newJointCmd(o *options) *cobra.Command {
	var jf jointFlags
	cmd := &cobra.Command{
		Use:   "joint [flags] dir [function...]",
		Short: "Summarize the cycle counts of functions across a directory of profiles.",
		Long: "Joint extracts each function from every located profile and writes its mean\n" +
			"and sample standard deviation, pooled over roles and ciphersuites, or per role\n" +
			"and ciphersuite with --by-suite. Functions default to those of the\n" +
			"configuration file.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.joint(cmd, args[0], args[1:], &jf)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&jf.out, "output", "o", "joint.json", "write results to `file` or gs://bucket/object")
	f.BoolVar(&jf.bySuite, "by-suite", false, "summarize per role and ciphersuite")
	f.StringVar(&jf.ciphersFile, "ciphers", "", "only use, and name, the ciphersuites listed in `file`")
	f.StringVar(&jf.role, "role", "both", "profiles to read: client, server or both")
	f.String("alg", "", "with --ciphers, only use ciphersuites whose name contains `token`")
	return cmd
}

func (o *options) joint(cmd *cobra.Command, dir string, funcs []string, jf *jointFlags) error {
	ctx := cmd.Context()
	if err := config.CheckFunctions(funcs); err != nil {
		return err
	}
	roles := locate.Roles
	if jf.role != "both" {
		role, err := locate.ParseRole(jf.role)
		if err != nil {
			return err
		}
		roles = []locate.Role{role}
	}

	var suites ciphers.List
	var ids []int // nil selects every located suite
	if jf.ciphersFile != "" {
		var err error
		if suites, err = o.suites(jf.ciphersFile); err != nil {
			return err
		}
		ids = suites.IDs()
	}

	idx, err := o.locate(dir)
	if err != nil {
		return err
	}
	r, err := o.newRun()
	if err != nil {
		return err
	}

	collected := false
	for _, role := range roles {
		fns := funcs
		if len(fns) == 0 {
			fns = o.cfg.Functions(role)
		}
		if len(fns) == 0 {
			continue
		}
		collected = true
		log.WithFields(log.Fields{"role": role, "functions": len(fns)}).Info("collecting")
		r.CollectIndex(idx, role, ids, fns)
	}
	if !collected {
		return errors.New("no functions to summarize: name them as arguments or in a configuration file")
	}

	var table portable.Map
	var errs []error
	if jf.bySuite {
		table, errs = r.BySuiteTable(suites)
	} else {
		table, errs = r.JointTable()
	}
	for _, err := range errs {
		log.WithError(err).Error("cannot summarize")
	}

	if err := o.writeJSON(ctx, jf.out, table); err != nil {
		return err
	}
	if err := o.archive(ctx, r, suites, "joint "+dir); err != nil {
		return err
	}
	if err := printExtrema(cmd.OutOrStdout(), r); err != nil {
		return err
	}
	logSkips(r)
	if len(errs) > 0 {
		return fmt.Errorf("%d result(s) had too few samples to summarize", len(errs))
	}
	return nil
}
