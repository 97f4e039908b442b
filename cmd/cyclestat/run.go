// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"

	"github.com/tlsbench/cyclestat/aggregate"
	"github.com/tlsbench/cyclestat/ciphers"
	"github.com/tlsbench/cyclestat/export"
	"github.com/tlsbench/cyclestat/internal/sink"
	"github.com/tlsbench/cyclestat/locate"
	"github.com/tlsbench/cyclestat/portable"
	"github.com/tlsbench/cyclestat/storage/db"
)

// suites reads the ciphersuite list at path and applies the configured
// algorithm filter.
func (o *options) suites(path string) (ciphers.List, error) {
	list, err := ciphers.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if o.cfg.Alg != "" {
		list = list.Filter(o.cfg.Alg)
		entry := log.WithFields(log.Fields{"alg": o.cfg.Alg, "suites": len(list)})
		if len(list) == 0 {
			entry.Warn("no ciphersuite matches algorithm")
		} else {
			entry.Info("matching ciphersuites found")
		}
	}
	return list, nil
}

// locate indexes the profiles in dir under the configured naming
// conventions. Files that match no convention are logged and skipped.
func (o *options) locate(dir string) (*locate.Index, error) {
	conv, err := o.cfg.Conventions()
	if err != nil {
		return nil, err
	}
	idx, err := locate.Locate(dir, conv...)
	if err != nil {
		return nil, err
	}
	for _, m := range idx.Mismatches {
		log.WithField("file", m.Path).Warn("no naming convention matches file")
	}
	log.WithFields(log.Fields{"dir": dir, "files": idx.Len()}).Info("located profiles")
	return idx, nil
}

// newRun returns an aggregation run that logs each extraction.
func (o *options) newRun() (*aggregate.Run, error) {
	e, err := o.cfg.Extractor()
	if err != nil {
		return nil, err
	}
	r := aggregate.NewRun(e)
	r.Observer = func(ev aggregate.Event) {
		fields := log.Fields{"role": ev.Role, "suite": ev.Suite}
		if ev.Func != "" {
			fields["function"] = ev.Func
		}
		if ev.File != "" {
			fields["file"] = ev.File
		}
		if ev.Err != nil {
			log.WithFields(fields).WithError(ev.Err).Warn("skipped")
			return
		}
		fields["cycles"] = ev.Cycles
		log.WithFields(fields).Debug("extracted")
	}
	return r, nil
}

func (o *options) sinkOptions() sink.Options {
	return sink.Options{CredentialsFile: o.cfg.GCSCredentials}
}

// writeJSON writes table to dest.
func (o *options) writeJSON(ctx context.Context, dest string, table portable.Map) error {
	err := sink.WriteFile(ctx, dest, o.sinkOptions(), func(w io.Writer) error {
		return portable.WriteJSON(w, table)
	})
	if err != nil {
		return err
	}
	log.WithField("output", dest).Info("wrote results")
	return nil
}

// archive stores the raw samples of r in the configured database and
// benchmark format file, if any.
func (o *options) archive(ctx context.Context, r *aggregate.Run, suites ciphers.List, label string) error {
	base := []export.Config{
		{Key: "grammar", Value: o.cfg.Grammar},
		{Key: "match", Value: o.cfg.Match},
	}

	if o.cfg.DB.Driver != "" {
		name, err := o.archiveDB(ctx, r, label)
		if err != nil {
			return fmt.Errorf("archiving samples: %w", err)
		}
		base = append(base, export.Config{Key: "run", Value: name})
	}

	if o.cfg.Benchfmt != "" {
		err := sink.WriteFile(ctx, o.cfg.Benchfmt, o.sinkOptions(), func(w io.Writer) error {
			return export.NewWriter(w).WriteRun(r, suites, base)
		})
		if err != nil {
			return err
		}
		log.WithField("output", o.cfg.Benchfmt).Info("wrote benchmark format samples")
	}
	return nil
}

func (o *options) archiveDB(ctx context.Context, r *aggregate.Run, label string) (string, error) {
	d, err := db.OpenSQL(o.cfg.DB.Driver, o.cfg.DB.DSN)
	if err != nil {
		return "", err
	}
	defer d.Close()

	run, err := d.NewRun(ctx, label)
	if err != nil {
		return "", err
	}
	for _, role := range locate.Roles {
		if set := r.Samples[role]; set != nil {
			if err := run.InsertSamples(ctx, role, set); err != nil {
				return "", err
			}
		}
	}
	log.WithFields(log.Fields{"driver": o.cfg.DB.Driver, "run": run.Name}).Info("archived samples")
	return run.Name, nil
}

// printExtrema writes the smallest and largest sample of every
// collected function and the file each came from.
func printExtrema(w io.Writer, r *aggregate.Run) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "role\tfunction\tmin\tmax\n")
	for _, role := range locate.Roles {
		for _, fn := range r.Samples[role].Funcs() {
			min, max := r.Summary(role, fn)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", role, fn, min, max)
		}
	}
	return tw.Flush()
}

// logSkips reports how many extractions were attempted and how many
// items each role skipped.
func logSkips(r *aggregate.Run) {
	counts := r.SkipCounts()
	entry := log.WithFields(log.Fields{
		"parsed":         r.Parsed,
		"skipped_client": counts[locate.Client],
		"skipped_server": counts[locate.Server],
	})
	if len(r.Skipped) > 0 {
		entry.Warn("some samples were skipped")
		return
	}
	entry.Info("done")
}
