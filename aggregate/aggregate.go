// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aggregate collects cycle counts from located callgrind
// profiles and reduces them to summary statistics.
//
// A Run holds all state for one aggregation pass. Extraction failures
// for a single file and function do not stop a Run: they are recorded
// in Run.Skipped and the pass continues with the next file.
package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tlsbench/cyclestat/callgrind"
	"github.com/tlsbench/cyclestat/cyclemath"
	"github.com/tlsbench/cyclestat/locate"
)

// A Sample is one cycle count read from one profile.
type Sample struct {
	Cycles int64
	Source string // profile path

	// Sent and Recv are the payload sizes of the profiled run, if
	// HasSizes is set.
	Sent, Recv int
	HasSizes   bool
}

// A SampleSet maps function name to ciphersuite id to the samples read
// for that function, in collection order.
type SampleSet map[string]map[int][]Sample

// Add appends x to the samples of fn for suite.
func (s SampleSet) Add(fn string, suite int, x Sample) {
	bySuite := s[fn]
	if bySuite == nil {
		bySuite = make(map[int][]Sample)
		s[fn] = bySuite
	}
	bySuite[suite] = append(bySuite[suite], x)
}

// Funcs returns the function names in s, sorted.
func (s SampleSet) Funcs() []string {
	fns := make([]string, 0, len(s))
	for fn := range s {
		fns = append(fns, fn)
	}
	sort.Strings(fns)
	return fns
}

// Suites returns the ciphersuite ids with samples for fn, sorted.
func (s SampleSet) Suites(fn string) []int {
	ids := make([]int, 0, len(s[fn]))
	for id := range s[fn] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Cycles returns every cycle count recorded for fn, ordered by
// ciphersuite id and then collection order.
func (s SampleSet) Cycles(fn string) []int64 {
	var out []int64
	for _, id := range s.Suites(fn) {
		for _, x := range s[fn][id] {
			out = append(out, x.Cycles)
		}
	}
	return out
}

// Len returns the total number of samples in s.
func (s SampleSet) Len() int {
	n := 0
	for _, bySuite := range s {
		for _, xs := range bySuite {
			n += len(xs)
		}
	}
	return n
}

// merge appends every sample of o to s.
func (s SampleSet) merge(o SampleSet) {
	for fn, bySuite := range o {
		if s[fn] == nil {
			s[fn] = make(map[int][]Sample)
		}
		for id, xs := range bySuite {
			for _, x := range xs {
				s.Add(fn, id, x)
			}
		}
	}
}

// ErrNoFiles reports a requested ciphersuite with no located files.
var ErrNoFiles = errors.New("no files found for ciphersuite")

// A SkipError records one item that was skipped during collection.
type SkipError struct {
	Role  locate.Role
	Func  string // "" if the whole suite was skipped
	Suite int
	File  string // "" if there was no file
	Err   error
}

func (e *SkipError) Error() string {
	msg := fmt.Sprintf("%s suite %d", e.Role, e.Suite)
	if e.Func != "" {
		msg += " " + e.Func
	}
	if e.File != "" {
		msg += " (" + e.File + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// An Event reports the outcome of one extraction.
type Event struct {
	Role   locate.Role
	Func   string
	Suite  int
	File   string
	Cycles int64
	Err    error // non-nil if the item was skipped

	// Parsed is the number of extractions attempted so far in the
	// Run, including this one.
	Parsed int
}

// A Run is the state of one aggregation pass.
type Run struct {
	Extractor *callgrind.Extractor

	Samples  map[locate.Role]SampleSet
	Min, Max map[locate.Role]map[string]cyclemath.Extremum

	// Skipped lists every skipped item in the order it was skipped.
	Skipped []*SkipError

	// Parsed counts attempted extractions.
	Parsed int

	// Observer, if non-nil, is called after every extraction.
	Observer func(Event)
}

// NewRun returns an empty Run that extracts with e. If e is nil, the
// zero Extractor is used.
func NewRun(e *callgrind.Extractor) *Run {
	if e == nil {
		e = new(callgrind.Extractor)
	}
	return &Run{
		Extractor: e,
		Samples:   make(map[locate.Role]SampleSet),
		Min:       make(map[locate.Role]map[string]cyclemath.Extremum),
		Max:       make(map[locate.Role]map[string]cyclemath.Extremum),
	}
}

// Set returns the samples collected for role, creating the set if
// needed.
func (r *Run) Set(role locate.Role) SampleSet {
	s := r.Samples[role]
	if s == nil {
		s = make(SampleSet)
		r.Samples[role] = s
	}
	return s
}

// Collect extracts every function in funcs from every file in files
// and records the samples under role.
func (r *Run) Collect(role locate.Role, files []locate.File, funcs []string) {
	set := r.Set(role)
	for _, fn := range funcs {
		// Record fn even if every extraction fails, so that
		// reductions report it.
		if set[fn] == nil {
			set[fn] = make(map[int][]Sample)
		}
		for _, f := range files {
			r.Parsed++
			ev := Event{Role: role, Func: fn, Suite: f.Suite, File: f.Path, Parsed: r.Parsed}
			cycles, err := r.Extractor.CyclesFile(f.Path, fn)
			if err != nil {
				ev.Err = r.skip(&SkipError{role, fn, f.Suite, f.Path, err})
			} else {
				ev.Cycles = cycles
				set.Add(fn, f.Suite, Sample{
					Cycles:   cycles,
					Source:   f.Path,
					Sent:     f.Sent,
					Recv:     f.Recv,
					HasSizes: f.HasSizes,
				})
				r.track(role, fn, cycles, f.Path)
			}
			if r.Observer != nil {
				r.Observer(ev)
			}
		}
	}
}

// CollectIndex is like Collect, over the files of idx for role. Only
// the listed suites are collected, in order; if suites is nil, every
// suite located for role is. A listed suite without files is recorded
// as skipped with ErrNoFiles.
func (r *Run) CollectIndex(idx *locate.Index, role locate.Role, suites []int, funcs []string) {
	if suites == nil {
		suites = idx.Suites(role)
	}
	for _, id := range suites {
		files := idx.Files(role, id)
		if len(files) == 0 {
			err := r.skip(&SkipError{Role: role, Suite: id, Err: ErrNoFiles})
			if r.Observer != nil {
				r.Observer(Event{Role: role, Suite: id, Err: err, Parsed: r.Parsed})
			}
			continue
		}
		r.Collect(role, files, funcs)
	}
}

func (r *Run) skip(e *SkipError) error {
	r.Skipped = append(r.Skipped, e)
	return e
}

func (r *Run) track(role locate.Role, fn string, v int64, source string) {
	if r.Min[role] == nil {
		r.Min[role] = make(map[string]cyclemath.Extremum)
		r.Max[role] = make(map[string]cyclemath.Extremum)
	}
	min, max := r.Min[role][fn], r.Max[role][fn]
	cyclemath.Track(&min, &max, v, source)
	r.Min[role][fn], r.Max[role][fn] = min, max
}

// Pooled returns the samples of every role merged into one set.
func (r *Run) Pooled() SampleSet {
	out := make(SampleSet)
	for _, role := range locate.Roles {
		out.merge(r.Samples[role])
	}
	return out
}

// Reduce summarizes the pooled samples of each function in set. A
// function with fewer than two samples is omitted from the result and
// reported as a *cyclemath.InsufficientSamplesError in errs.
func Reduce(set SampleSet) (stats map[string]cyclemath.Stat, errs []error) {
	stats = make(map[string]cyclemath.Stat)
	for _, fn := range set.Funcs() {
		st, err := cyclemath.SummarizeCycles(fn, set.Cycles(fn))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stats[fn] = st
	}
	return stats, errs
}

// ReduceBySuite is like Reduce, but summarizes each function
// separately per ciphersuite.
func ReduceBySuite(set SampleSet) (stats map[string]map[int]cyclemath.Stat, errs []error) {
	stats = make(map[string]map[int]cyclemath.Stat)
	for _, fn := range set.Funcs() {
		if len(set[fn]) == 0 {
			errs = append(errs, &cyclemath.InsufficientSamplesError{Name: fn})
			continue
		}
		for _, id := range set.Suites(fn) {
			xs := set[fn][id]
			cycles := make([]int64, len(xs))
			for i, x := range xs {
				cycles[i] = x.Cycles
			}
			st, err := cyclemath.SummarizeCycles(fmt.Sprintf("%s (suite %d)", fn, id), cycles)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if stats[fn] == nil {
				stats[fn] = make(map[int]cyclemath.Stat)
			}
			stats[fn][id] = st
		}
	}
	return stats, errs
}

// Summary returns the minimum and maximum of fn for role in
// human-readable form.
func (r *Run) Summary(role locate.Role, fn string) (min, max string) {
	return r.Min[role][fn].String(), r.Max[role][fn].String()
}

// SkipCounts returns the number of skipped items per role.
func (r *Run) SkipCounts() map[locate.Role]int {
	counts := make(map[locate.Role]int)
	for _, s := range r.Skipped {
		counts[s.Role]++
	}
	return counts
}
