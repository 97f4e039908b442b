// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package portable converts results keyed by integers and integer
// pairs to and from JSON, whose object keys are always strings.
//
// The key domain is closed: a Key is an Int, a Pair or a Str. Encode
// formats keys as "5", "(100, 200)" and the string itself, and Decode
// parses them back. Over this domain Decode(Encode(x)) == x, with one
// documented exception: a Str whose text is itself an Int or Pair
// literal, such as Str("5"), cannot be told apart from that literal
// after encoding. Encode rejects such keys with ErrAmbiguousKey, and
// rejects a mapping in which two keys encode to the same string with
// ErrKeyCollision, rather than guessing.
package portable

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
)

// A Key is a mapping key in the portable domain: Int, Pair or Str.
type Key interface {
	isKey()
}

// Int is an integer key, such as a ciphersuite id.
type Int int64

// Pair is a fixed-arity integer tuple key, such as
// (bytes sent, bytes received).
type Pair [2]int64

// Str is a plain string key.
type Str string

func (Int) isKey()  {}
func (Pair) isKey() {}
func (Str) isKey()  {}

// A Map is a mapping with portable keys. Values may be Maps,
// map[string]any, []any, or JSON scalars.
type Map map[Key]any

var (
	ErrAmbiguousKey   = errors.New("string key reads as a non-string literal")
	ErrKeyCollision   = errors.New("keys encode to the same string")
	ErrUnsupportedKey = errors.New("unsupported key type")
)

// A KeyError describes a key that cannot be encoded.
type KeyError struct {
	Path string // location of the mapping, e.g. "client.f"
	Key  string // encoded key
	Err  error  // one of the Err* values above
}

func (e *KeyError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("%s: key %q: %v", path, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// KeyString returns the JSON object key for k.
func KeyString(k Key) string {
	switch k := k.(type) {
	case Int:
		return strconv.FormatInt(int64(k), 10)
	case Pair:
		return fmt.Sprintf("(%d, %d)", k[0], k[1])
	case Str:
		return string(k)
	}
	panic(fmt.Sprintf("portable: unknown key type %T", k))
}

var pairRE = regexp.MustCompile(`^\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)$`)

// ParseKey parses an encoded key. Decimal integers become Int, "(a, b)"
// becomes Pair, and anything else is a Str.
func ParseKey(s string) Key {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return Int(i)
	}
	if m := pairRE.FindStringSubmatch(s); m != nil {
		a, errA := strconv.ParseInt(m[1], 10, 64)
		b, errB := strconv.ParseInt(m[2], 10, 64)
		if errA == nil && errB == nil {
			return Pair{a, b}
		}
	}
	return Str(s)
}

// CheckStr reports whether s can be used as a Str key. It returns
// ErrAmbiguousKey if s reads back as an Int or Pair.
func CheckStr(s string) error {
	if _, ok := ParseKey(s).(Str); !ok {
		return ErrAmbiguousKey
	}
	return nil
}

// Encode returns v with every mapping key converted to a string, so
// that the result can be marshaled as JSON. Values other than mappings
// and slices are returned unchanged.
func Encode(v any) (any, error) {
	return encode("", v)
}

func encode(path string, v any) (any, error) {
	switch v := v.(type) {
	case Map:
		out := make(map[string]any, len(v))
		// Check collisions before ambiguity so the reported error
		// does not depend on map order.
		keys := make(map[string]Key, len(v))
		for k := range v {
			if k == nil {
				return nil, &KeyError{path, "<nil>", ErrUnsupportedKey}
			}
			ks := KeyString(k)
			if _, dup := keys[ks]; dup {
				return nil, &KeyError{path, ks, ErrKeyCollision}
			}
			keys[ks] = k
		}
		for _, ks := range sortedKeys(keys) {
			k := keys[ks]
			if s, ok := k.(Str); ok {
				if err := CheckStr(string(s)); err != nil {
					return nil, &KeyError{path, ks, err}
				}
			}
			ev, err := encode(join(path, ks), v[k])
			if err != nil {
				return nil, err
			}
			out[ks] = ev
		}
		return out, nil
	case map[string]any:
		m := make(Map, len(v))
		for k, val := range v {
			m[Str(k)] = val
		}
		return encode(path, m)
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			ev, err := encode(fmt.Sprintf("%s[%d]", path, i), val)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	}
	return v, nil
}

func sortedKeys(m map[string]Key) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Decode is the inverse of Encode. It converts every map[string]any in
// v into a Map, parsing keys with ParseKey.
func Decode(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(Map, len(v))
		for k, val := range v {
			out[ParseKey(k)] = Decode(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Decode(val)
		}
		return out
	}
	return v
}

// WriteJSON encodes v and writes it to w as JSON.
func WriteJSON(w io.Writer, v any) error {
	ev, err := Encode(v)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ev)
}

// ReadJSON reads a JSON value from r and decodes it.
func ReadJSON(r io.Reader) (any, error) {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return Decode(v), nil
}
