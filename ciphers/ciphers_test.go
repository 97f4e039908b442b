// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ciphers

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLine(t *testing.T) {
	for _, test := range []struct {
		line string
		want Suite
		ok   bool
	}{
		{"51 TLS_RSA_WITH_AES_128_CBC_SHA RSA ECDSA", Suite{51, "TLS_RSA_WITH_AES_128_CBC_SHA", "RSA ECDSA"}, true},
		{"47 TLS_RSA_WITH_AES_128_CBC_SHA", Suite{47, "TLS_RSA_WITH_AES_128_CBC_SHA", ""}, true},
		{"49195 TLS-ECDHE-ECDSA-WITH-AES-128-GCM-SHA256 none", Suite{49195, "TLS-ECDHE-ECDSA-WITH-AES-128-GCM-SHA256", "none"}, true},
		{"  5   NAME\tA   B  C ", Suite{5, "NAME", "A B C"}, true},
		{"51", Suite{}, false},
		{"", Suite{}, false},
		{"   ", Suite{}, false},
	} {
		got, ok, err := ParseLine(test.line)
		if err != nil {
			t.Errorf("ParseLine(%q): unexpected error %v", test.line, err)
			continue
		}
		if ok != test.ok || got != test.want {
			t.Errorf("ParseLine(%q) = %+v, %v, want %+v, %v", test.line, got, ok, test.want, test.ok)
		}
	}
}

func TestParse(t *testing.T) {
	const data = `51 TLS_RSA_WITH_AES_128_CBC_SHA RSA ECDSA
47 TLS_RSA_WITH_AES_128_CBC_SHA256

lonely
60 TLS_RSA_WITH_NULL_SHA none
`
	got, err := Parse(strings.NewReader(data), "list.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := List{
		{51, "TLS_RSA_WITH_AES_128_CBC_SHA", "RSA ECDSA"},
		{47, "TLS_RSA_WITH_AES_128_CBC_SHA256", ""},
		{60, "TLS_RSA_WITH_NULL_SHA", "none"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		data string
		want string
	}{
		{"x NAME\n", "list.txt:1: bad ciphersuite id \"x\""},
		{"1 A\n2 B\n1 C\n", "list.txt:3: duplicate ciphersuite id 1 (first on line 1)"},
	} {
		_, err := Parse(strings.NewReader(test.data), "list.txt")
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q): want *SyntaxError, got %v", test.data, err)
			continue
		}
		if se.Error() != test.want {
			t.Errorf("Parse(%q): got %q, want %q", test.data, se.Error(), test.want)
		}
	}
}

func TestFilter(t *testing.T) {
	list := List{
		{1, "TLS-RSA-WITH-AES-128-CBC-SHA", ""},
		{2, "TLS-RSA-WITH-AES-128-CBC-SHA256", ""},
		{3, "TLS-ECDHE-ECDSA-WITH-CHACHA20-POLY1305-SHA256", ""},
	}
	if got, want := list.Filter("sha ").IDs(), []int{1}; !cmp.Equal(got, want) {
		t.Errorf("Filter(%q) = %v, want %v", "sha ", got, want)
	}
	if got, want := list.Filter("sha").IDs(), []int{1, 2, 3}; !cmp.Equal(got, want) {
		t.Errorf("Filter(sha) = %v, want %v", got, want)
	}
	if got, want := list.Filter("SHA256").IDs(), []int{2, 3}; !cmp.Equal(got, want) {
		t.Errorf("Filter(SHA256) = %v, want %v", got, want)
	}
	if got := list.Filter("ECDSA"); len(got) != 1 || got[0].ID != 3 {
		t.Errorf("Filter(ECDSA) = %v", got)
	}
}

func TestKeyAndLabel(t *testing.T) {
	s := Suite{51, "TLS_RSA_WITH_AES_128_CBC_SHA", "RSA"}
	if got := s.Key(); got != "51 TLS_RSA_WITH_AES_128_CBC_SHA" {
		t.Errorf("Key() = %q", got)
	}
	if got := s.Label(); got != "[RSA] 51" {
		t.Errorf("Label() = %q", got)
	}
	s.Flags = "None"
	if got := s.Label(); got != "51" {
		t.Errorf("Label() with none flags = %q", got)
	}
}
