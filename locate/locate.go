// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locate finds callgrind output files in a directory by their
// naming convention.
//
// The current convention is
//
//	<role>.callgrind.out.<ciphersuite_id>.<num_bytes_sent>.<num_bytes_received>
//
// where role is "client" or "server". Two older conventions carry no
// payload sizes; see Convention.
package locate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// A Role identifies which profiled program produced a file.
type Role int

const (
	Client Role = iota
	Server
)

// Roles lists every role in output order.
var Roles = []Role{Client, Server}

func (r Role) String() string {
	switch r {
	case Client:
		return "client"
	case Server:
		return "server"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole parses "client" or "server".
func ParseRole(s string) (Role, error) {
	switch s {
	case "client":
		return Client, nil
	case "server":
		return Server, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// A Convention is a file naming convention.
type Convention int

const (
	// Current names files
	// <role>.callgrind.out.<id>.<sent>.<received>.
	Current Convention = iota
	// LegacyRoleFirst names files <role>.callgrind.out.<id>,
	// optionally followed by further dot-separated fields that
	// are ignored.
	LegacyRoleFirst
	// LegacyTokenFirst names files callgrind.out.<role>.<id>.
	LegacyTokenFirst
)

var conventionNames = map[Convention]string{
	Current:          "current",
	LegacyRoleFirst:  "legacy-role",
	LegacyTokenFirst: "legacy-token",
}

func (c Convention) String() string {
	if s, ok := conventionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Convention(%d)", int(c))
}

// ParseConventions parses a naming mode. "any" tries every convention,
// current first.
func ParseConventions(s string) ([]Convention, error) {
	if s == "" {
		return []Convention{Current}, nil
	}
	if s == "any" {
		return []Convention{Current, LegacyRoleFirst, LegacyTokenFirst}, nil
	}
	var out []Convention
	for _, name := range strings.Split(s, ",") {
		found := false
		for c, cname := range conventionNames {
			if name == cname {
				out = append(out, c)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown naming convention %q", name)
		}
	}
	return out, nil
}

var patterns = map[Convention]*regexp.Regexp{
	Current:          regexp.MustCompile(`^(client|server)\.callgrind\.out\.(\d+)\.(\d+)\.(\d+)$`),
	LegacyRoleFirst:  regexp.MustCompile(`^(client|server)\.callgrind\.out\.(\d+)(?:\..*)?$`),
	LegacyTokenFirst: regexp.MustCompile(`^callgrind\.out\.(client|server)\.(\d+)$`),
}

// A File is one classified profile file.
type File struct {
	Path  string
	Role  Role
	Suite int

	// Sent and Recv are the payload sizes encoded in the name.
	// They are meaningful only if HasSizes is set.
	Sent, Recv int
	HasSizes   bool

	Convention Convention
}

// ErrNamingMismatch is matched by every *MismatchError.
var ErrNamingMismatch = errors.New("file name does not match naming convention")

// A MismatchError reports a file that matched no naming convention.
// It is a diagnostic: the file is excluded, the scan continues.
type MismatchError struct {
	Path string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("no pattern found for file name %s", e.Path)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrNamingMismatch
}

// Classify matches a base file name against the conventions in order
// and returns the first match. The returned File's Path is name.
func Classify(name string, conventions ...Convention) (File, bool) {
	if len(conventions) == 0 {
		conventions = []Convention{Current}
	}
	for _, c := range conventions {
		m := patterns[c].FindStringSubmatch(name)
		if m == nil {
			continue
		}
		var f File
		var err error
		f.Path, f.Convention = name, c
		switch c {
		case Current:
			f.Role, _ = ParseRole(m[1])
			f.HasSizes = true
			if f.Suite, err = strconv.Atoi(m[2]); err != nil {
				continue
			}
			if f.Sent, err = strconv.Atoi(m[3]); err != nil {
				continue
			}
			if f.Recv, err = strconv.Atoi(m[4]); err != nil {
				continue
			}
		case LegacyRoleFirst, LegacyTokenFirst:
			f.Role, _ = ParseRole(m[1])
			if f.Suite, err = strconv.Atoi(m[2]); err != nil {
				continue
			}
		}
		return f, true
	}
	return File{}, false
}

// An Index groups located files by role and ciphersuite id.
type Index struct {
	Dir string

	// Mismatches lists the files that matched no convention, in
	// directory order.
	Mismatches []*MismatchError

	files map[Role]map[int][]File
}

// Locate classifies every regular file in dir. If no conventions are
// given, only Current is used; otherwise each file is matched against
// the conventions in order.
//
// Files that match no convention are recorded in Index.Mismatches.
// Locate fails only if dir cannot be read or is not a directory.
func Locate(dir string, conventions ...Convention) (*Index, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	idx := &Index{Dir: dir, files: make(map[Role]map[int][]File)}
	for _, ent := range entries {
		path := filepath.Join(dir, ent.Name())
		if !isRegular(ent, path) {
			continue
		}
		f, ok := Classify(ent.Name(), conventions...)
		if !ok {
			idx.Mismatches = append(idx.Mismatches, &MismatchError{path})
			continue
		}
		f.Path = path
		idx.add(f)
	}
	for _, bySuite := range idx.files {
		for _, files := range bySuite {
			sortFiles(files)
		}
	}
	return idx, nil
}

// isRegular reports whether ent is a regular file, following symbolic
// links.
func isRegular(ent fs.DirEntry, path string) bool {
	if ent.Type()&fs.ModeSymlink != 0 {
		fi, err := os.Stat(path)
		return err == nil && fi.Mode().IsRegular()
	}
	return ent.Type().IsRegular()
}

func (idx *Index) add(f File) {
	bySuite := idx.files[f.Role]
	if bySuite == nil {
		bySuite = make(map[int][]File)
		idx.files[f.Role] = bySuite
	}
	bySuite[f.Suite] = append(bySuite[f.Suite], f)
}

func sortFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Sent != b.Sent {
			return a.Sent < b.Sent
		}
		if a.Recv != b.Recv {
			return a.Recv < b.Recv
		}
		return a.Path < b.Path
	})
}

// Files returns the files for role and ciphersuite id, ordered by sent
// size, received size, then path. The caller must not modify the
// result.
func (idx *Index) Files(role Role, suite int) []File {
	return idx.files[role][suite]
}

// Paths returns the paths of Files(role, suite).
func (idx *Index) Paths(role Role, suite int) []string {
	files := idx.Files(role, suite)
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}

// Lookup returns the file for role and suite with the given payload
// sizes.
func (idx *Index) Lookup(role Role, suite, sent, recv int) (File, bool) {
	for _, f := range idx.Files(role, suite) {
		if f.HasSizes && f.Sent == sent && f.Recv == recv {
			return f, true
		}
	}
	return File{}, false
}

// Suites returns the ciphersuite ids that have files for role, in
// ascending order.
func (idx *Index) Suites(role Role) []int {
	ids := make([]int, 0, len(idx.files[role]))
	for id := range idx.files[role] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// All returns every located file, grouped by role, then ascending
// ciphersuite id.
func (idx *Index) All() []File {
	var out []File
	for _, role := range Roles {
		for _, id := range idx.Suites(role) {
			out = append(out, idx.Files(role, id)...)
		}
	}
	return out
}

// Len returns the number of located files.
func (idx *Index) Len() int {
	n := 0
	for _, bySuite := range idx.files {
		for _, files := range bySuite {
			n += len(files)
		}
	}
	return n
}
