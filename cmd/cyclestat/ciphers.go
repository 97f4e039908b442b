// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCiphersCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ciphers [--alg token] ciphers-file",
		Short: "List the ciphersuites of a list file.",
		Long: "Ciphers prints the id, flags and name of every ciphersuite in a list file,\n" +
			"optionally restricted to names containing an algorithm token.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suites, err := o.suites(args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			for _, s := range suites {
				fmt.Fprintf(tw, "%s\t%s\n", s.Label(), s.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("alg", "", "only list ciphersuites whose name contains `token`")
	return cmd
}
