// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cyclemath computes summary statistics over cycle count
// samples.
//
// Standard deviations are sample standard deviations (divided by N-1),
// so a summary needs at least two samples. Summarize reports fewer as
// an *InsufficientSamplesError rather than returning a zero or NaN
// deviation.
package cyclemath

import (
	"errors"
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
)

// A Stat summarizes a sample of cycle counts.
type Stat struct {
	Avg   float64 `json:"avg"`
	Stdev float64 `json:"stdev"`

	// N is the number of samples.
	N int `json:"-"`
}

// ErrInsufficientSamples is matched by every *InsufficientSamplesError.
var ErrInsufficientSamples = errors.New("insufficient samples")

// An InsufficientSamplesError reports a sample too small to summarize.
type InsufficientSamplesError struct {
	Name string // what was being summarized, e.g. a function name
	N    int
}

func (e *InsufficientSamplesError) Error() string {
	name := e.Name
	if name == "" {
		name = "sample"
	}
	return fmt.Sprintf("%s: %d sample(s), need at least 2 for a standard deviation", name, e.N)
}

func (e *InsufficientSamplesError) Is(target error) bool {
	return target == ErrInsufficientSamples
}

// Summarize returns the mean and sample standard deviation of xs.
func Summarize(xs []float64) (Stat, error) {
	if len(xs) < 2 {
		return Stat{}, &InsufficientSamplesError{N: len(xs)}
	}
	s := stats.Sample{Xs: xs}
	return Stat{Avg: s.Mean(), Stdev: s.StdDev(), N: len(xs)}, nil
}

// SummarizeCycles is Summarize for integer cycle counts. name is used
// in the error.
func SummarizeCycles(name string, cycles []int64) (Stat, error) {
	xs := make([]float64, len(cycles))
	for i, c := range cycles {
		xs[i] = float64(c)
	}
	st, err := Summarize(xs)
	if e, ok := err.(*InsufficientSamplesError); ok {
		e.Name = name
	}
	return st, err
}

// An Extremum records an extreme sample and where it came from.
type Extremum struct {
	Value  int64
	Source string
}

// Valid reports whether x has recorded a sample.
func (x Extremum) Valid() bool {
	return x.Source != ""
}

func (x Extremum) String() string {
	if !x.Valid() {
		return "none"
	}
	return fmt.Sprintf("%d | %s", x.Value, x.Source)
}

// Track updates min and max with value v from source. The first value
// tracked initializes both. Ties keep the earlier source.
func Track(min, max *Extremum, v int64, source string) {
	if !min.Valid() || v < min.Value {
		*min = Extremum{v, source}
	}
	if !max.Valid() || v > max.Value {
		*max = Extremum{v, source}
	}
}

// Round rounds a statistic to the nearest integer for display.
func Round(x float64) int64 {
	return int64(math.Round(x))
}
