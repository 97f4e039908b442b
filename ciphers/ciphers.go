// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ciphers reads ciphersuite list files.
//
// A ciphersuite list file is line oriented. Each non-blank line has the
// form
//
//	<id> <name> [<flags>...]
//
// where id is a decimal integer. Lines with fewer than two fields are
// dropped. If a line has more than three fields, everything after the
// name is joined with single spaces to form the flags. The order of
// the file is significant and is preserved by List.
package ciphers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// A Suite describes one ciphersuite from a list file.
type Suite struct {
	ID    int
	Name  string
	Flags string
}

// Key returns the key used for this ciphersuite in per-suite results,
// "<id> <name>".
func (s Suite) Key() string {
	return fmt.Sprintf("%d %s", s.ID, s.Name)
}

// Label returns a short display label for s. Flags other than "none"
// are shown in brackets before the id.
func (s Suite) Label() string {
	if s.Flags == "" || strings.EqualFold(s.Flags, "none") {
		return strconv.Itoa(s.ID)
	}
	return fmt.Sprintf("[%s] %d", s.Flags, s.ID)
}

// A List is an ordered list of ciphersuites with unique ids.
type List []Suite

// Lookup returns the suite with the given id.
func (l List) Lookup(id int) (Suite, bool) {
	for _, s := range l {
		if s.ID == id {
			return s, true
		}
	}
	return Suite{}, false
}

// IDs returns the ids of l in list order.
func (l List) IDs() []int {
	ids := make([]int, len(l))
	for i, s := range l {
		ids[i] = s.ID
	}
	return ids
}

// Filter returns the suites whose name contains the algorithm token
// alg, upper-cased. Names are matched with a trailing space appended,
// so a token with a trailing space such as "SHA " selects names ending
// in SHA but not SHA256.
func (l List) Filter(alg string) List {
	alg = strings.ToUpper(alg)
	var out List
	for _, s := range l {
		if strings.Contains(s.Name+" ", alg) {
			out = append(out, s)
		}
	}
	return out
}

// A SyntaxError reports a malformed line of a ciphersuite list file.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}

// ParseLine parses a single line of a list file. ok is false if the
// line has fewer than two fields and should be dropped.
func ParseLine(line string) (s Suite, ok bool, err error) {
	f := strings.Fields(line)
	if len(f) < 2 {
		return Suite{}, false, nil
	}
	id, err := strconv.Atoi(f[0])
	if err != nil {
		return Suite{}, false, fmt.Errorf("bad ciphersuite id %q", f[0])
	}
	s = Suite{ID: id, Name: f[1]}
	if len(f) > 2 {
		s.Flags = strings.Join(f[2:], " ")
	}
	return s, true, nil
}

// Parse reads a ciphersuite list from r. fileName is used in error
// messages.
func Parse(r io.Reader, fileName string) (List, error) {
	if fileName == "" {
		fileName = "<unknown>"
	}
	var list List
	seen := make(map[int]int)
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		s, ok, err := ParseLine(sc.Text())
		if err != nil {
			return nil, &SyntaxError{fileName, n, err.Error()}
		}
		if !ok {
			continue
		}
		if prev, dup := seen[s.ID]; dup {
			return nil, &SyntaxError{fileName, n, fmt.Sprintf("duplicate ciphersuite id %d (first on line %d)", s.ID, prev)}
		}
		seen[s.ID] = n
		list = append(list, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return list, nil
}

// ParseFile reads the ciphersuite list file at path.
func ParseFile(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}
