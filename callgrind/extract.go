// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package callgrind extracts per-function cycle counts from callgrind
// profile dumps.
//
// A callgrind dump names functions with compressed identifiers. The
// first record that mentions a function carries its name,
//
//	fn=(12) mbedtls_ssl_handshake
//
// and later records refer to it by id alone. A call site is recorded
// in the body of the calling function as a cfn line naming the callee,
// a calls line, and a cost line whose last field is the inclusive cost
// of the call:
//
//	cfn=(12)
//	calls=1 0
//	183 1523114
//
// Extraction is a two-stage lookup: the function name is resolved to
// its id, and then the cost of a call site whose callee is that id is
// read. A dump with several events has several cost columns; the
// last one is used. Only the first call site in file order is used unless the
// Extractor's Match mode says otherwise.
package callgrind

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// A Grammar selects the layout of cost lines. Callgrind's output
// format changed between tool versions and dump options, and the two
// layouts are not compatible.
type Grammar int

const (
	// GrammarLine cost lines are "<line> <cost>".
	GrammarLine Grammar = iota
	// GrammarInstrLine cost lines are "<instr> <line> <cost>", as
	// written with --dump-instr=yes.
	GrammarInstrLine
)

func (g Grammar) String() string {
	switch g {
	case GrammarLine:
		return "v1"
	case GrammarInstrLine:
		return "v2"
	}
	return fmt.Sprintf("Grammar(%d)", int(g))
}

// positions returns the number of position fields preceding the cost
// on a cost line.
func (g Grammar) positions() int {
	if g == GrammarInstrLine {
		return 2
	}
	return 1
}

// ParseGrammar parses a grammar name as accepted on the command line.
func ParseGrammar(s string) (Grammar, error) {
	switch strings.ToLower(s) {
	case "", "v1", "line":
		return GrammarLine, nil
	case "v2", "instr", "instr-line":
		return GrammarInstrLine, nil
	}
	return 0, fmt.Errorf("unknown cost line grammar %q (want v1 or v2)", s)
}

// A MatchMode says how to combine multiple call sites of the same
// function within one profile.
type MatchMode int

const (
	// FirstMatch uses only the first call site in file order.
	FirstMatch MatchMode = iota
	// SumMatches sums the cost of every call site.
	SumMatches
)

func (m MatchMode) String() string {
	switch m {
	case FirstMatch:
		return "first"
	case SumMatches:
		return "sum"
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// ParseMatchMode parses a match mode name.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return FirstMatch, nil
	case "sum", "all":
		return SumMatches, nil
	}
	return 0, fmt.Errorf("unknown match mode %q (want first or sum)", s)
}

// A Stage identifies which lookup stage failed.
type Stage int

const (
	// StageDeclaration: no record names the function.
	StageDeclaration Stage = iota
	// StageCall: the function is declared but never called.
	StageCall
	// StageCost: the function has call sites, but none is followed
	// by a cost line that fits the grammar.
	StageCost
)

func (s Stage) String() string {
	switch s {
	case StageCall:
		return "call"
	case StageCost:
		return "cost"
	}
	return "declaration"
}

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("function not found in call graph")

// A NotFoundError reports that a function could not be resolved in a
// profile: it is never declared, never called, or none of its call
// sites has a cost line that fits Grammar.
type NotFoundError struct {
	File    string // profile file name, or "" if not read from a file
	Func    string
	Stage   Stage
	Grammar Grammar
}

func (e *NotFoundError) Error() string {
	file := e.File
	if file == "" {
		file = "<unknown>"
	}
	switch e.Stage {
	case StageCall:
		return fmt.Sprintf("%s: %s is declared but has no call site", file, e.Func)
	case StageCost:
		return fmt.Sprintf("%s: %s has no call site with a cost line matching grammar %v", file, e.Func, e.Grammar)
	}
	return fmt.Sprintf("%s: no declaration of %s", file, e.Func)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// An Extractor reads cycle counts from callgrind dumps.
//
// The zero Extractor uses GrammarLine and FirstMatch.
type Extractor struct {
	Grammar Grammar
	Match   MatchMode

	// Demangle also matches declarations whose demangled name
	// equals the requested function, for dumps written with
	// --demangle=no.
	Demangle bool
}

// Cycles returns the cycles attributed to calls of fn in the callgrind
// dump data. fn must be the exact symbol name as it appears in the
// dump. If fn cannot be resolved, Cycles returns a *NotFoundError.
func (e *Extractor) Cycles(data []byte, fn string) (int64, error) {
	return e.cycles(data, fn, "")
}

// CyclesFile is like Cycles, but reads the dump from the named file.
// The file must be complete; it is read once and not retained.
func (e *Extractor) CyclesFile(path, fn string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return e.cycles(data, fn, path)
}

func (e *Extractor) cycles(data []byte, fn, file string) (int64, error) {
	lines := bytes.Split(data, []byte("\n"))
	id, ok := e.declaration(lines, fn)
	if !ok {
		return 0, &NotFoundError{file, fn, StageDeclaration, e.Grammar}
	}
	total, n, sites := e.callCost(lines, id)
	switch {
	case sites == 0:
		return 0, &NotFoundError{file, fn, StageCall, e.Grammar}
	case n == 0:
		return 0, &NotFoundError{file, fn, StageCost, e.Grammar}
	}
	return total, nil
}

var (
	fnPrefix    = []byte("fn=(")
	cfnPrefix   = []byte("cfn=(")
	callsPrefix = []byte("calls=")
)

// declaration returns the compressed id of the first record that names
// fn. Both fn= and cfn= records can carry the name, since callgrind
// names a function at its first mention.
func (e *Extractor) declaration(lines [][]byte, fn string) ([]byte, bool) {
	for _, line := range lines {
		var rest []byte
		switch {
		case bytes.HasPrefix(line, fnPrefix):
			rest = line[len(fnPrefix):]
		case bytes.HasPrefix(line, cfnPrefix):
			rest = line[len(cfnPrefix):]
		default:
			continue
		}
		id, name, ok := splitRef(rest)
		if !ok || len(name) == 0 {
			continue
		}
		if string(name) == fn {
			return id, true
		}
		if e.Demangle && demangle.Filter(string(name)) == fn {
			return id, true
		}
	}
	return nil, false
}

// callCost sums the cost of call sites of id, stopping after the
// first unless e.Match is SumMatches. It returns the number of call
// sites used and the number seen, including those whose cost line was
// rejected.
func (e *Extractor) callCost(lines [][]byte, id []byte) (total int64, n, sites int) {
	for i := 0; i+1 < len(lines); i++ {
		line := lines[i]
		if !bytes.HasPrefix(line, cfnPrefix) {
			continue
		}
		callee, _, ok := splitRef(line[len(cfnPrefix):])
		if !ok || !bytes.Equal(callee, id) {
			continue
		}
		if !bytes.HasPrefix(lines[i+1], callsPrefix) {
			continue
		}
		sites++
		if i+2 == len(lines) {
			break
		}
		cost, ok := e.parseCost(lines[i+2])
		if !ok {
			continue
		}
		total += cost
		n++
		if e.Match == FirstMatch {
			break
		}
		i += 2
	}
	return total, n, sites
}

// parseCost parses a cost line under e.Grammar and returns its
// trailing field. After the position fields the line has one cost
// column per event, each an unsigned decimal.
func (e *Extractor) parseCost(line []byte) (int64, bool) {
	f := bytes.Fields(line)
	pos := e.Grammar.positions()
	if len(f) < pos+1 {
		return 0, false
	}
	var v int64
	for _, c := range f[pos:] {
		if c[0] < '0' || c[0] > '9' {
			return 0, false
		}
		var err error
		if v, err = strconv.ParseInt(string(c), 10, 64); err != nil {
			return 0, false
		}
	}
	return v, true
}

// splitRef splits "<id>) <name>" into its id and name. The name is
// empty for a bare reference.
func splitRef(rest []byte) (id, name []byte, ok bool) {
	end := bytes.IndexByte(rest, ')')
	if end <= 0 {
		return nil, nil, false
	}
	id = rest[:end]
	for _, c := range id {
		if c < '0' || c > '9' {
			return nil, nil, false
		}
	}
	name = bytes.TrimSuffix(rest[end+1:], []byte("\r"))
	if len(name) > 0 {
		if name[0] != ' ' {
			return nil, nil, false
		}
		name = name[1:]
	}
	return id, name, true
}
