// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package export writes collected cycle counts in the Go benchmark
// format, so they can be compared with tools such as benchstat.
//
// Each sample becomes one benchmark line,
//
//	BenchmarkClient/suite=5/fn=mbedtls_ssl_handshake/sent=100/recv=200 1 1523114 cycles
//
// preceded by file configuration lines that describe how the samples
// were collected and which ciphersuite they belong to.
package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tlsbench/cyclestat/aggregate"
	"github.com/tlsbench/cyclestat/ciphers"
	"github.com/tlsbench/cyclestat/locate"
)

// A Config is one file configuration line, "key: value".
type Config struct {
	Key, Value string
}

// A Result is one sample to be written.
type Result struct {
	// Config is the file configuration in effect for this result.
	Config []Config

	Role   locate.Role
	Suite  int
	Func   string
	Sample aggregate.Sample
}

var title = cases.Title(language.English)

// Name returns the benchmark name of r, without the "Benchmark"
// prefix.
func (r *Result) Name() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/suite=%d/fn=%s", title.String(r.Role.String()), r.Suite, nameField(r.Func))
	if r.Sample.HasSizes {
		fmt.Fprintf(&b, "/sent=%d/recv=%d", r.Sample.Sent, r.Sample.Recv)
	}
	return b.String()
}

// nameField makes s safe to use in a benchmark name, which ends at the
// first space.
func nameField(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}

// A Writer writes the Go benchmark format.
type Writer struct {
	w   io.Writer
	buf bytes.Buffer

	first      bool
	fileConfig map[string]string
	order      []string
}

// NewWriter returns a writer that writes benchmark results to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, first: true, fileConfig: make(map[string]string)}
}

// Write writes res to w. If res's configuration differs from the
// current file configuration in w, it first emits the changed
// configuration lines.
func (w *Writer) Write(res *Result) error {
	w.writeResult(res)
	return w.flush()
}

// WriteUnit writes a unit metadata line, such as
// "Unit cycles assume=exact".
func (w *Writer) WriteUnit(unit, key, value string) error {
	fmt.Fprintf(&w.buf, "Unit %s %s=%s\n", unit, key, value)
	return w.flush()
}

func (w *Writer) flush() error {
	// Write to the buffer can't fail, so we only have to check if
	// this fails.
	_, err := w.w.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *Writer) writeResult(res *Result) {
	if len(w.fileConfig) != len(res.Config) {
		w.writeFileConfig(res)
	} else {
		for _, cfg := range res.Config {
			if have, ok := w.fileConfig[cfg.Key]; !ok || have != cfg.Value {
				w.writeFileConfig(res)
				break
			}
		}
	}

	fmt.Fprintf(&w.buf, "Benchmark%s 1 %d cycles\n", res.Name(), res.Sample.Cycles)
	w.first = false
}

func configIndex(cfgs []Config, key string) (int, bool) {
	for i, cfg := range cfgs {
		if cfg.Key == key {
			return i, true
		}
	}
	return 0, false
}

func (w *Writer) writeFileConfig(res *Result) {
	if !w.first {
		// Configuration blocks after results get an extra blank.
		w.buf.WriteByte('\n')
		w.first = true
	}

	// Walk keys we know to find changes and deletions.
	for i := 0; i < len(w.order); i++ {
		key := w.order[i]
		idx, ok := configIndex(res.Config, key)
		if !ok {
			fmt.Fprintf(&w.buf, "%s:\n", key)
			delete(w.fileConfig, key)
			w.order = append(w.order[:i], w.order[i+1:]...)
			i--
			continue
		}
		if v := res.Config[idx].Value; v != w.fileConfig[key] {
			fmt.Fprintf(&w.buf, "%s: %s\n", key, v)
			w.fileConfig[key] = v
		}
	}

	// Find new keys.
	for _, cfg := range res.Config {
		if _, ok := w.fileConfig[cfg.Key]; ok {
			continue
		}
		fmt.Fprintf(&w.buf, "%s: %s\n", cfg.Key, cfg.Value)
		w.fileConfig[cfg.Key] = cfg.Value
		w.order = append(w.order, cfg.Key)
	}

	w.buf.WriteByte('\n')
}

// WriteRun writes every sample of r: roles in order, then ascending
// ciphersuite id, then function name, then collection order. Each
// result carries base plus a "ciphersuite" key naming its suite.
func (w *Writer) WriteRun(r *aggregate.Run, suites ciphers.List, base []Config) error {
	if err := w.WriteUnit("cycles", "assume", "exact"); err != nil {
		return err
	}
	for _, role := range locate.Roles {
		set := r.Samples[role]
		for _, id := range suiteIDs(set) {
			name := fmt.Sprint(id)
			if s, ok := suites.Lookup(id); ok {
				name = s.Name
			}
			cfg := append(base[:len(base):len(base)], Config{"ciphersuite", name})
			for _, fn := range set.Funcs() {
				for _, x := range set[fn][id] {
					res := &Result{Config: cfg, Role: role, Suite: id, Func: fn, Sample: x}
					if err := w.Write(res); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// suiteIDs returns every ciphersuite id in set, sorted.
func suiteIDs(set aggregate.SampleSet) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, fn := range set.Funcs() {
		for _, id := range set.Suites(fn) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids
}
