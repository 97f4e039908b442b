// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callgrind

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// synth builds a minimal dump in which caller calls fn once at the
// given cost.
func synth(fn string, cost int64) []byte {
	return []byte(fmt.Sprintf(`events: Ir
fn=(1) caller
10 5
cfn=(2) %s
calls=1 20
11 %d
fn=(2)
20 7
`, fn, cost))
}

func TestCyclesSynthetic(t *testing.T) {
	var e Extractor
	for _, test := range []struct {
		fn   string
		cost int64
	}{
		{"mbedtls_ssl_handshake", 17520443},
		{"f", 0},
		{"_ZN3foo3barEv", 42},
		{"operator new(unsigned long)", 1},
		{"x.y$z[1]", 999999999999},
	} {
		got, err := e.Cycles(synth(test.fn, test.cost), test.fn)
		if err != nil {
			t.Errorf("Cycles(%q): %v", test.fn, err)
			continue
		}
		if got != test.cost {
			t.Errorf("Cycles(%q) = %d, want %d", test.fn, got, test.cost)
		}
	}
}

func TestCyclesFile(t *testing.T) {
	server := filepath.Join("testdata", "server.callgrind.out")
	client := filepath.Join("testdata", "client-instr.callgrind.out")
	for _, test := range []struct {
		name string
		e    Extractor
		file string
		fn   string
		want int64
	}{
		{"handshake", Extractor{}, server, "mbedtls_ssl_handshake", 17520443},
		{"step", Extractor{}, server, "mbedtls_ssl_handshake_step", 17520101},
		{"nested", Extractor{}, server, "mbedtls_platform_zeroize", 290},
		{"first", Extractor{}, server, "mbedtls_ssl_write", 52113},
		{"sum", Extractor{Match: SumMatches}, server, "mbedtls_ssl_write", 52113 + 26040},
		{"v2", Extractor{Grammar: GrammarInstrLine}, client, "mbedtls_ssl_close_notify", 3184},
		{"v2 mangled", Extractor{Grammar: GrammarInstrLine}, client, "_ZN7mbedtls3ssl9handshakeEv", 8201117},
		{"v2 demangled", Extractor{Grammar: GrammarInstrLine, Demangle: true}, client, "mbedtls::ssl::handshake()", 8201117},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.e.CyclesFile(test.file, test.fn)
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Errorf("got %d, want %d", got, test.want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	server := filepath.Join("testdata", "server.callgrind.out")
	client := filepath.Join("testdata", "client-instr.callgrind.out")
	for _, test := range []struct {
		name  string
		e     Extractor
		file  string
		fn    string
		stage Stage
	}{
		{"absent", Extractor{}, server, "mbedtls_ssl_renegotiate", StageDeclaration},
		{"substring", Extractor{}, server, "mbedtls_ssl_hand", StageDeclaration},
		{"never called", Extractor{}, server, "mbedtls_ssl_read", StageCall},
		{"root", Extractor{}, server, "main", StageCall},
		{"wrong grammar v2", Extractor{Grammar: GrammarInstrLine}, server, "mbedtls_ssl_handshake", StageCost},
		{"wrong grammar v1", Extractor{}, client, "mbedtls_ssl_close_notify", StageCost},
		{"no demangle", Extractor{Grammar: GrammarInstrLine}, client, "mbedtls::ssl::handshake()", StageDeclaration},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.e.CyclesFile(test.file, test.fn)
			if err == nil {
				t.Fatalf("got %d, want error", got)
			}
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("error %v does not match ErrNotFound", err)
			}
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("error %T is not a *NotFoundError", err)
			}
			if nf.Stage != test.stage || nf.File != test.file || nf.Func != test.fn {
				t.Errorf("got %+v, want stage %v for %s in %s", nf, test.stage, test.fn, test.file)
			}
			if got != 0 {
				t.Errorf("value on error = %d, want 0", got)
			}
		})
	}
}

func TestMalformedCostLine(t *testing.T) {
	var e Extractor
	for _, test := range []struct {
		data  string
		stage Stage
	}{
		// Cost is not a number.
		{"fn=(1) a\ncfn=(2) f\ncalls=1 0\n11 lots\n", StageCost},
		// calls line missing.
		{"fn=(1) a\ncfn=(2) f\n11 30\n", StageCall},
		// Truncated after calls.
		{"fn=(1) a\ncfn=(2) f\ncalls=1 0\n", StageCost},
		{"fn=(1) a\ncfn=(2) f\ncalls=1 0", StageCost},
		// A v2 cost line read as v1: +30 is a position, not a cost.
		{"fn=(1) a\ncfn=(2) f\ncalls=1 0\n+11 +30 40\n", StageCost},
		// Position only.
		{"fn=(1) a\ncfn=(2) f\ncalls=1 0\n11\n", StageCost},
		// Negative cost.
		{"fn=(1) a\ncfn=(2) f\ncalls=1 0\n11 -4\n", StageCost},
	} {
		_, err := e.Cycles([]byte(test.data), "f")
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Stage != test.stage {
			t.Errorf("Cycles(%q): got %v, want %v-stage NotFoundError", test.data, err, test.stage)
		}
	}
}

// multiEvent is a dump recorded with three events. Cost lines carry
// one column per event after the positions, and the call to f costs
// 30 in the last column.
const multiEvent = `positions: %s
events: Ir Dr Dw
fn=(1) main
cfn=(2) f
calls=1 7
%s 100 20 30
cfn=(2)
calls=2 7
%s 5 6 12
`

func TestMultipleEvents(t *testing.T) {
	for _, test := range []struct {
		name string
		e    Extractor
		data string
		want int64
	}{
		{"v1 first", Extractor{}, fmt.Sprintf(multiEvent, "line", "10", "11"), 30},
		{"v1 sum", Extractor{Match: SumMatches}, fmt.Sprintf(multiEvent, "line", "10", "+1"), 42},
		{"v2 first", Extractor{Grammar: GrammarInstrLine}, fmt.Sprintf(multiEvent, "instr line", "0x10 10", "+4 +1"), 30},
		{"v2 sum", Extractor{Grammar: GrammarInstrLine, Match: SumMatches}, fmt.Sprintf(multiEvent, "instr line", "0x10 10", "* *"), 42},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.e.Cycles([]byte(test.data), "f")
			if err != nil {
				t.Fatal(err)
			}
			if got != test.want {
				t.Errorf("got %d, want %d", got, test.want)
			}
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	for _, test := range []struct {
		err  *NotFoundError
		want string
	}{
		{&NotFoundError{"a.out", "f", StageDeclaration, GrammarLine}, "a.out: no declaration of f"},
		{&NotFoundError{"a.out", "f", StageCall, GrammarLine}, "a.out: f is declared but has no call site"},
		{&NotFoundError{"", "f", StageCost, GrammarInstrLine}, "<unknown>: f has no call site with a cost line matching grammar v2"},
	} {
		if got := test.err.Error(); got != test.want {
			t.Errorf("Error() = %q, want %q", got, test.want)
		}
	}
}

func TestFirstMatchSkipsMalformedSites(t *testing.T) {
	data := []byte(strings.Join([]string{
		"fn=(1) a",
		"cfn=(2) f",
		"calls=1 0",
		"11 bogus",
		"cfn=(2)",
		"calls=1 0",
		"12 77",
		"cfn=(2)",
		"calls=1 0",
		"13 23",
	}, "\n"))
	first, err := (&Extractor{}).Cycles(data, "f")
	if err != nil || first != 77 {
		t.Errorf("first match = %d, %v, want 77", first, err)
	}
	sum, err := (&Extractor{Match: SumMatches}).Cycles(data, "f")
	if err != nil || sum != 100 {
		t.Errorf("sum = %d, %v, want 100", sum, err)
	}
}

func TestCRLF(t *testing.T) {
	data := []byte("fn=(1) a\r\ncfn=(2) f\r\ncalls=1 0\r\n11 30\r\n")
	got, err := (&Extractor{}).Cycles(data, "f")
	if err != nil || got != 30 {
		t.Errorf("Cycles = %d, %v, want 30", got, err)
	}
}

func TestParseGrammar(t *testing.T) {
	for in, want := range map[string]Grammar{"": GrammarLine, "v1": GrammarLine, "V2": GrammarInstrLine, "instr": GrammarInstrLine} {
		got, err := ParseGrammar(in)
		if err != nil || got != want {
			t.Errorf("ParseGrammar(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseGrammar("v3"); err == nil {
		t.Errorf("ParseGrammar(v3) succeeded")
	}
	if _, err := ParseMatchMode("most"); err == nil {
		t.Errorf("ParseMatchMode(most) succeeded")
	}
	if m, err := ParseMatchMode("sum"); err != nil || m != SumMatches {
		t.Errorf("ParseMatchMode(sum) = %v, %v", m, err)
	}
}
