// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aggregate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tlsbench/cyclestat/callgrind"
	"github.com/tlsbench/cyclestat/ciphers"
	"github.com/tlsbench/cyclestat/cyclemath"
	"github.com/tlsbench/cyclestat/locate"
	"github.com/tlsbench/cyclestat/portable"
)

// profile returns a minimal callgrind dump in which main calls each
// function in costs once with the given inclusive cost.
func profile(costs map[string]int64) []byte {
	var buf bytes.Buffer
	buf.WriteString("events: Ir\nfn=(1) main\n")
	id := 2
	for _, fn := range sortedNames(costs) {
		fmt.Fprintf(&buf, "cfn=(%d) %s\ncalls=1 0\n%d %d\n", id, fn, 10+id, costs[fn])
		id++
	}
	return buf.Bytes()
}

func sortedNames(m map[string]int64) []string {
	var names []string
	for fn := range m {
		names = append(names, fn)
	}
	sort.Strings(names)
	return names
}

type testFile struct {
	name  string
	costs map[string]int64
}

func writeProfiles(t *testing.T, files ...testFile) *locate.Index {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), profile(f.costs), 0666); err != nil {
			t.Fatal(err)
		}
	}
	idx, err := locate.Locate(dir)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func hs(n int64) map[string]int64 {
	return map[string]int64{"handshake": n, "close_notify": 7}
}

func TestCollect(t *testing.T) {
	idx := writeProfiles(t,
		testFile{"client.callgrind.out.5.0.0", hs(30)},
		testFile{"client.callgrind.out.5.100.0", hs(10)},
		testFile{"client.callgrind.out.5.200.0", hs(20)},
		testFile{"client.callgrind.out.5.300.0", map[string]int64{"close_notify": 9}},
	)
	r := NewRun(nil)
	var events []Event
	r.Observer = func(ev Event) { events = append(events, ev) }
	r.Collect(locate.Client, idx.Files(locate.Client, 5), []string{"handshake"})

	if r.Parsed != 4 || len(events) != 4 {
		t.Errorf("Parsed = %d, events = %d, want 4, 4", r.Parsed, len(events))
	}
	set := r.Samples[locate.Client]
	var got []int64
	for _, x := range set["handshake"][5] {
		got = append(got, x.Cycles)
	}
	if want := []int64{30, 10, 20}; !cmp.Equal(got, want) {
		t.Errorf("cycles = %v, want %v", got, want)
	}
	if x := set["handshake"][5][1]; !x.HasSizes || x.Sent != 100 || x.Recv != 0 {
		t.Errorf("sample sizes = %+v", x)
	}

	if len(r.Skipped) != 1 {
		t.Fatalf("Skipped = %v, want 1 item", r.Skipped)
	}
	skip := r.Skipped[0]
	if !errors.Is(skip, callgrind.ErrNotFound) {
		t.Errorf("skip %v is not ErrNotFound", skip)
	}
	if skip.Func != "handshake" || skip.Suite != 5 || filepath.Base(skip.File) != "client.callgrind.out.5.300.0" {
		t.Errorf("skip = %+v", skip)
	}
	if events[3].Err == nil || events[3].Parsed != 4 {
		t.Errorf("last event = %+v, want skipped 4th extraction", events[3])
	}
	if got := r.SkipCounts()[locate.Client]; got != 1 {
		t.Errorf("SkipCounts()[client] = %d", got)
	}

	min, max := r.Min[locate.Client]["handshake"], r.Max[locate.Client]["handshake"]
	if min.Value != 10 || filepath.Base(min.Source) != "client.callgrind.out.5.100.0" {
		t.Errorf("min = %v", min)
	}
	if max.Value != 30 || filepath.Base(max.Source) != "client.callgrind.out.5.0.0" {
		t.Errorf("max = %v", max)
	}
}

func TestReduce(t *testing.T) {
	set := make(SampleSet)
	for _, c := range []int64{10, 20, 30} {
		set.Add("f", 1+int(c)%2, Sample{Cycles: c})
	}
	set.Add("g", 1, Sample{Cycles: 5})
	set["h"] = map[int][]Sample{}

	stats, errs := Reduce(set)
	if diff := cmp.Diff(map[string]cyclemath.Stat{"f": {Avg: 20, Stdev: 10, N: 3}}, stats); diff != "" {
		t.Errorf("Reduce mismatch (-want +got):\n%s", diff)
	}
	var names []string
	for _, err := range errs {
		var ie *cyclemath.InsufficientSamplesError
		if !errors.As(err, &ie) {
			t.Errorf("error %v is not *InsufficientSamplesError", err)
			continue
		}
		names = append(names, ie.Name)
	}
	if want := []string{"g", "h"}; !cmp.Equal(names, want) {
		t.Errorf("insufficient = %v, want %v", names, want)
	}
}

func TestReduceBySuite(t *testing.T) {
	set := make(SampleSet)
	set.Add("f", 1, Sample{Cycles: 4})
	set.Add("f", 1, Sample{Cycles: 6})
	set.Add("f", 2, Sample{Cycles: 100})
	stats, errs := ReduceBySuite(set)
	want := map[string]map[int]cyclemath.Stat{
		"f": {1: {Avg: 5, Stdev: 1.4142135623730951, N: 2}},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("ReduceBySuite mismatch (-want +got):\n%s", diff)
	}
	if len(errs) != 1 || !errors.Is(errs[0], cyclemath.ErrInsufficientSamples) {
		t.Errorf("errs = %v, want one insufficient samples error", errs)
	}
}

func TestCollectIndexNoFiles(t *testing.T) {
	idx := writeProfiles(t,
		testFile{"server.callgrind.out.5.0.0", hs(1)},
	)
	r := NewRun(nil)
	r.CollectIndex(idx, locate.Server, []int{5, 9}, []string{"handshake"})
	if len(r.Skipped) != 1 {
		t.Fatalf("Skipped = %v, want 1 item", r.Skipped)
	}
	if s := r.Skipped[0]; s.Suite != 9 || !errors.Is(s, ErrNoFiles) {
		t.Errorf("skip = %v, want suite 9 ErrNoFiles", s)
	}
	if n := r.Samples[locate.Server].Len(); n != 1 {
		t.Errorf("collected %d samples, want 1", n)
	}
}

// encodeJSON round-trips m through portable JSON into plain Go values.
func encodeJSON(t *testing.T, m portable.Map) any {
	t.Helper()
	var buf bytes.Buffer
	if err := portable.WriteJSON(&buf, m); err != nil {
		t.Fatal(err)
	}
	var v any
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestTables(t *testing.T) {
	idx := writeProfiles(t,
		testFile{"client.callgrind.out.5.100.200", hs(10)},
		testFile{"client.callgrind.out.5.300.400", hs(20)},
		testFile{"server.callgrind.out.5.100.200", hs(30)},
		testFile{"server.callgrind.out.5.300.400", hs(40)},
		testFile{"server.callgrind.out.7.0.0", hs(50)},
	)
	suites := ciphers.List{{ID: 5, Name: "TLS-ECDHE-RSA-WITH-AES-128-GCM-SHA256"}}
	r := NewRun(&callgrind.Extractor{})
	for _, role := range locate.Roles {
		r.CollectIndex(idx, role, nil, []string{"handshake"})
	}

	const key = "5 TLS-ECDHE-RSA-WITH-AES-128-GCM-SHA256"
	perSize := encodeJSON(t, r.PerSizeTable(suites))
	wantPerSize := map[string]any{
		"client": map[string]any{
			"handshake": map[string]any{
				key: map[string]any{"(100, 200)": 10.0, "(300, 400)": 20.0},
			},
		},
		"server": map[string]any{
			"handshake": map[string]any{
				key: map[string]any{"(100, 200)": 30.0, "(300, 400)": 40.0},
				"7": map[string]any{"(0, 0)": 50.0},
			},
		},
	}
	if diff := cmp.Diff(wantPerSize, perSize); diff != "" {
		t.Errorf("PerSizeTable mismatch (-want +got):\n%s", diff)
	}

	joint, errs := r.JointTable()
	if len(errs) != 0 {
		t.Errorf("JointTable errors: %v", errs)
	}
	st := joint[portable.Str("handshake")].(cyclemath.Stat)
	if st.Avg != 30 || st.N != 5 {
		t.Errorf("joint handshake = %+v, want avg 30 over 5 samples", st)
	}

	bySuite, errs := r.BySuiteTable(suites)
	if len(errs) != 1 || !errors.Is(errs[0], cyclemath.ErrInsufficientSamples) {
		t.Errorf("BySuiteTable errs = %v, want one for server suite 7", errs)
	}
	wantBySuite := map[string]any{
		"client": map[string]any{
			"handshake": map[string]any{key: map[string]any{"avg": 15.0, "stdev": 7.0710678118654755}},
		},
		"server": map[string]any{
			"handshake": map[string]any{key: map[string]any{"avg": 35.0, "stdev": 7.0710678118654755}},
		},
	}
	if diff := cmp.Diff(wantBySuite, encodeJSON(t, bySuite)); diff != "" {
		t.Errorf("BySuiteTable mismatch (-want +got):\n%s", diff)
	}
}
