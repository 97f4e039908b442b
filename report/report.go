// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders cyclestat JSON output as text or HTML tables.
//
// Load recognizes the three layouts cyclestat writes:
//
//	joint:     {function: {avg, stdev}}
//	by suite:  {client|server: {function: {suite: {avg, stdev}}}}
//	per size:  {client|server: {function: {suite: {"(sent, recv)": cycles}}}}
//
// Entries keep the order in which they appear in the input.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tlsbench/cyclestat/cyclemath"
)

// A Layout identifies the shape of a summary.
type Layout int

const (
	Joint Layout = iota
	BySuite
	PerSize
)

func (l Layout) String() string {
	switch l {
	case Joint:
		return "joint"
	case BySuite:
		return "by-suite"
	case PerSize:
		return "per-size"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// A Row is one entry of a summary. Role and Suite are empty in the
// joint layout. Size and Cycles are set only in the per-size layout;
// Avg and Stdev only in the others.
type Row struct {
	Role  string
	Func  string
	Suite string

	Size   string
	Cycles int64

	Avg, Stdev float64
}

// A Summary is a loaded cyclestat result file.
type Summary struct {
	Layout Layout
	Rows   []Row
}

var roles = []string{"client", "server"}

// Load parses a cyclestat JSON result.
func Load(data []byte) (*Summary, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil, errors.New("result is not a JSON object")
	}

	perRole := false
	for _, role := range roles {
		if res.Get(role).Exists() {
			perRole = true
		}
	}
	s := new(Summary)
	if !perRole {
		s.Layout = Joint
		var err error
		res.ForEach(func(fn, v gjson.Result) bool {
			var row Row
			row.Func = fn.String()
			row.Avg, row.Stdev, err = stat(v, row.Func)
			s.Rows = append(s.Rows, row)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s.Layout = BySuite
	if isPerSize(res) {
		s.Layout = PerSize
	}
	for _, role := range roles {
		if err := s.loadRole(role, res.Get(role)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// isPerSize reports whether the first suite entry found in res maps
// sizes to cycle counts.
func isPerSize(res gjson.Result) bool {
	found, perSize := false, false
	for _, role := range roles {
		res.Get(role).ForEach(func(_, byFunc gjson.Result) bool {
			byFunc.ForEach(func(_, v gjson.Result) bool {
				found = true
				perSize = !v.Get("avg").Exists()
				return false
			})
			return !found
		})
		if found {
			break
		}
	}
	return perSize
}

func (s *Summary) loadRole(role string, byFunc gjson.Result) error {
	if !byFunc.Exists() {
		return nil
	}
	if !byFunc.IsObject() {
		return fmt.Errorf("%s: not an object", role)
	}
	var err error
	byFunc.ForEach(func(fn, bySuite gjson.Result) bool {
		if !bySuite.IsObject() {
			err = fmt.Errorf("%s.%s: not an object", role, fn)
			return false
		}
		bySuite.ForEach(func(suite, v gjson.Result) bool {
			row := Row{Role: role, Func: fn.String(), Suite: suite.String()}
			where := role + "." + row.Func + "." + row.Suite
			if s.Layout == BySuite {
				row.Avg, row.Stdev, err = stat(v, where)
				s.Rows = append(s.Rows, row)
				return err == nil
			}
			if !v.IsObject() {
				err = fmt.Errorf("%s: not an object", where)
				return false
			}
			v.ForEach(func(size, cycles gjson.Result) bool {
				if cycles.Type != gjson.Number {
					err = fmt.Errorf("%s.%s: cycle count is not a number", where, size)
					return false
				}
				r := row
				r.Size, r.Cycles = size.String(), cycles.Int()
				s.Rows = append(s.Rows, r)
				return true
			})
			return err == nil
		})
		return err == nil
	})
	return err
}

func stat(v gjson.Result, where string) (avg, stdev float64, err error) {
	a, d := v.Get("avg"), v.Get("stdev")
	if a.Type != gjson.Number || d.Type != gjson.Number {
		return 0, 0, fmt.Errorf("%s: want numeric avg and stdev", where)
	}
	return a.Float(), d.Float(), nil
}

var printer = message.NewPrinter(language.English)

// formatCycles rounds x and groups its digits.
func formatCycles(x float64) string {
	return printer.Sprintf("%d", cyclemath.Round(x))
}

func (s *Summary) header() []string {
	switch s.Layout {
	case BySuite:
		return []string{"role", "function", "ciphersuite", "avg", "stdev"}
	case PerSize:
		return []string{"role", "function", "ciphersuite", "size", "cycles"}
	}
	return []string{"function", "avg", "stdev"}
}

func (s *Summary) cells(r Row) []string {
	switch s.Layout {
	case BySuite:
		return []string{r.Role, r.Func, r.Suite, formatCycles(r.Avg), formatCycles(r.Stdev)}
	case PerSize:
		return []string{r.Role, r.Func, r.Suite, r.Size, printer.Sprintf("%d", r.Cycles)}
	}
	return []string{r.Func, formatCycles(r.Avg), formatCycles(r.Stdev)}
}

// numeric reports which columns of s hold numbers.
func (s *Summary) numeric() []bool {
	if s.Layout == Joint {
		return []bool{false, true, true}
	}
	return []bool{false, false, false, true, true}
}

// Text writes s to w as an aligned text table, with values rounded to
// whole cycles.
func (s *Summary) Text(w io.Writer) error {
	t := &table{right: s.numeric()}
	t.row(s.header()...)
	for _, r := range s.Rows {
		t.row(s.cells(r)...)
	}
	return t.format(w)
}
