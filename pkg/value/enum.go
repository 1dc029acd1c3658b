// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package value

import "strings"

// EnumSet is a finite, statically-listable (integer, name) set backing
// a C-like enum type. Constructing a Value from an
// integer with no name consults the owning EnumSet for a default name;
// if none is registered, the stringified integer is used instead.
type EnumSet struct {
	byValue map[int64]string
	byName  map[string]int64 // lower-cased name -> value, for case-insensitive lookup
}

// NewEnumSet builds an EnumSet from an ordered list of (value, name)
// pairs.
func NewEnumSet(pairs ...EnumPair) *EnumSet {
	es := &EnumSet{
		byValue: make(map[int64]string, len(pairs)),
		byName:  make(map[string]int64, len(pairs)),
	}
	for _, p := range pairs {
		es.byValue[p.Value] = p.Name
		es.byName[strings.ToLower(p.Name)] = p.Value
	}
	return es
}

// EnumPair is one (integer, name) member of an EnumSet.
type EnumPair struct {
	Value int64
	Name  string
}

// NameOf returns the registered name for i, or "" if i is not a member.
func (es *EnumSet) NameOf(i int64) string {
	if es == nil {
		return ""
	}
	return es.byValue[i]
}

// ValueOf performs a case-insensitive name lookup.
func (es *EnumSet) ValueOf(name string) (int64, bool) {
	if es == nil {
		return 0, false
	}
	v, ok := es.byName[strings.ToLower(name)]
	return v, ok
}

// New constructs an enum Value for i, resolving a default name from es
// if one isn't registered for i it falls back to the stringified
// integer on conversion (AsString).
func (es *EnumSet) New(i int64) *Value {
	return Enum(i, es.NameOf(i))
}

// NewByName constructs an enum Value by case-insensitive name lookup;
// ok is false if name is not a member of es.
func (es *EnumSet) NewByName(name string) (v *Value, ok bool) {
	i, found := es.ValueOf(name)
	if !found {
		return Enum(0, name), false
	}
	return Enum(i, es.NameOf(i)), true
}
