// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tlsbench/cyclestat/report"
)

func newSummaryCmd() *cobra.Command {
	var html bool
	cmd := &cobra.Command{
		Use:   "summary [--html] result.json",
		Short: "Print a cyclestat result file as a table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := report.Load(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if html {
				return s.HTML(cmd.OutOrStdout())
			}
			return s.Text(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "print an HTML table")
	return cmd
}
