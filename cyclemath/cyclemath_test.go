// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cyclemath

import (
	"errors"
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	check := func(xs []float64, avg, stdev float64) {
		t.Helper()
		st, err := Summarize(xs)
		if err != nil {
			t.Errorf("Summarize(%v): %v", xs, err)
			return
		}
		if math.Abs(st.Avg-avg) > 1e-9 || math.Abs(st.Stdev-stdev) > 1e-9 {
			t.Errorf("Summarize(%v) = %+v, want avg %v stdev %v", xs, st, avg, stdev)
		}
		if st.N != len(xs) {
			t.Errorf("Summarize(%v).N = %d", xs, st.N)
		}
	}
	check([]float64{10, 20, 30}, 20, 10)
	check([]float64{5, 5}, 5, 0)
	check([]float64{1, 2, 3, 4}, 2.5, math.Sqrt(5.0/3))
}

func TestSummarizeInsufficient(t *testing.T) {
	for _, xs := range [][]float64{nil, {42}} {
		st, err := Summarize(xs)
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Errorf("Summarize(%v) = %+v, %v, want ErrInsufficientSamples", xs, st, err)
		}
		if st != (Stat{}) {
			t.Errorf("Summarize(%v) returned %+v with error", xs, st)
		}
	}
}

func TestSummarizeCyclesNamesError(t *testing.T) {
	_, err := SummarizeCycles("mbedtls_ssl_handshake", []int64{7})
	var ie *InsufficientSamplesError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want *InsufficientSamplesError", err)
	}
	if ie.Name != "mbedtls_ssl_handshake" || ie.N != 1 {
		t.Errorf("got %+v", ie)
	}
	st, err := SummarizeCycles("f", []int64{10, 20, 30})
	if err != nil || st.Avg != 20 {
		t.Errorf("SummarizeCycles = %+v, %v", st, err)
	}
}

func TestTrack(t *testing.T) {
	var min, max Extremum
	if min.Valid() {
		t.Fatal("zero Extremum is valid")
	}
	Track(&min, &max, 30, "a")
	Track(&min, &max, 10, "b")
	Track(&min, &max, 40, "c")
	Track(&min, &max, 10, "d")
	if min != (Extremum{10, "b"}) {
		t.Errorf("min = %v", min)
	}
	if max != (Extremum{40, "c"}) {
		t.Errorf("max = %v", max)
	}
	if got := min.String(); got != "10 | b" {
		t.Errorf("String() = %q", got)
	}
}
