// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aggregate

import (
	"github.com/tlsbench/cyclestat/ciphers"
	"github.com/tlsbench/cyclestat/cyclemath"
	"github.com/tlsbench/cyclestat/locate"
	"github.com/tlsbench/cyclestat/portable"
)

// SuiteKey returns the key under which a ciphersuite is written: its
// "<id> <name>" key if it is in suites, otherwise its bare id.
func SuiteKey(suites ciphers.List, id int) portable.Key {
	if s, ok := suites.Lookup(id); ok {
		return portable.Str(s.Key())
	}
	return portable.Int(id)
}

// PerSizeTable returns every raw sample of r as
//
//	role → function → suite key → (sent, recv) → cycles
//
// Every role appears, even with no samples. Samples from files without
// payload sizes are keyed by their ordinal within the suite.
func (r *Run) PerSizeTable(suites ciphers.List) portable.Map {
	out := make(portable.Map)
	for _, role := range locate.Roles {
		byFunc := make(portable.Map)
		set := r.Samples[role]
		for _, fn := range set.Funcs() {
			bySuite := make(portable.Map)
			for _, id := range set.Suites(fn) {
				bySize := make(portable.Map)
				for i, x := range set[fn][id] {
					var k portable.Key = portable.Int(i)
					if x.HasSizes {
						k = portable.Pair{int64(x.Sent), int64(x.Recv)}
					}
					bySize[k] = x.Cycles
				}
				bySuite[SuiteKey(suites, id)] = bySize
			}
			byFunc[portable.Str(fn)] = bySuite
		}
		out[portable.Str(role.String())] = byFunc
	}
	return out
}

// JointTable pools the samples of every role and returns
//
//	function → {avg, stdev}
//
// Functions that could not be summarized are reported in errs.
func (r *Run) JointTable() (portable.Map, []error) {
	stats, errs := Reduce(r.Pooled())
	out := make(portable.Map, len(stats))
	for fn, st := range stats {
		out[portable.Str(fn)] = st
	}
	return out, errs
}

// BySuiteTable returns
//
//	role → function → suite key → {avg, stdev}
//
// Every role appears, even with no samples. Entries that could not be
// summarized are reported in errs.
func (r *Run) BySuiteTable(suites ciphers.List) (portable.Map, []error) {
	out := make(portable.Map)
	var errs []error
	for _, role := range locate.Roles {
		stats, rerrs := ReduceBySuite(r.Samples[role])
		errs = append(errs, rerrs...)
		out[portable.Str(role.String())] = bySuiteMap(stats, suites)
	}
	return out, errs
}

func bySuiteMap(stats map[string]map[int]cyclemath.Stat, suites ciphers.List) portable.Map {
	byFunc := make(portable.Map, len(stats))
	for fn, byID := range stats {
		bySuite := make(portable.Map, len(byID))
		for id, st := range byID {
			bySuite[SuiteKey(suites, id)] = st
		}
		byFunc[portable.Str(fn)] = bySuite
	}
	return byFunc
}
