// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package value implements the polymorphic typed-value model that is the
// common currency for every message payload and configuration value in
// the TMX core.
//
// A Value is a tagged sum of null/bool/int/uint/float/string/bytes/
// array/map/enum. Conversions never fail: a bad conversion yields the
// zero of the target type. Path accessors on arrays and maps come in a
// read-only flavor (never mutates, absent path yields null) and a
// mutable flavor (auto-vivifies the branch).
package value

import (
	"math/big"
	"sort"
)

// Kind is the tag of a Value's active variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindEnum
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// ByteOrder is the declared byte order of a KindBytes value.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
	NativeEndian
	NetworkEndian // alias for BigEndian on the wire
)

// StringWidth is the declared codepoint width of a KindString value.
type StringWidth uint8

const (
	Width8 StringWidth = 8
	Width16 StringWidth = 16
	Width32 StringWidth = 32
)

// Value is the polymorphic payload container. The zero Value is
// KindNull.
type Value struct {
	kind Kind

	numBits int // declared bit width for KindInt/KindUint; 32/64/128 for KindFloat

	b bool
	i int64  // signed storage path, valid when numBits <= 64
	u uint64 // unsigned storage path, valid when numBits <= 64
	big *big.Int // used only when numBits > 64, holds the two's complement/magnitude value

	f float64

	s        string
	strWidth StringWidth

	by        []byte
	byteOrder ByteOrder

	enumName string

	arr []*Value

	mp *orderedMap
}

// orderedMap is a string-keyed map that preserves insertion order so
// that encoders produce deterministic output.
type orderedMap struct {
	keys []string
	m    map[string]*Value
}

func newOrderedMap() *orderedMap {
	return &orderedMap{m: make(map[string]*Value)}
}

func (o *orderedMap) get(key string) (*Value, bool) {
	v, ok := o.m[key]
	return v, ok
}

func (o *orderedMap) set(key string, v *Value) {
	if _, exists := o.m[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.m[key] = v
}

func (o *orderedMap) delete(key string) {
	if _, exists := o.m[key]; !exists {
		return
	}
	delete(o.m, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the map's keys in insertion order.
func (o *orderedMap) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// --- constructors ---

// Null returns a new KindNull Value.
func Null() *Value { return &Value{kind: KindNull} }

// Bool returns a new KindBool Value.
func Bool(b bool) *Value { return &Value{kind: KindBool, b: b} }

// Int returns a new KindInt Value truncated to the given bit width
// (1..128). Widths above 64 are stored as math/big.Int.
func Int(v int64, bits int) *Value {
	bits = clampBits(bits)
	val := &Value{kind: KindInt, numBits: bits}
	if bits <= 64 {
		val.i = truncateSigned(v, bits)
	} else {
		val.big = big.NewInt(v)
	}
	return val
}

// Uint returns a new KindUint Value truncated to the given bit width.
func Uint(v uint64, bits int) *Value {
	bits = clampBits(bits)
	val := &Value{kind: KindUint, numBits: bits}
	if bits <= 64 {
		val.u = truncateUnsigned(v, bits)
	} else {
		val.big = new(big.Int).SetUint64(v)
	}
	return val
}

// BigInt returns a new KindInt or KindUint Value (depending on signed)
// backed by an arbitrary-precision integer, for widths above 64 bits.
func BigInt(n *big.Int, bits int, signed bool) *Value {
	bits = clampBits(bits)
	k := KindUint
	if signed {
		k = KindInt
	}
	return &Value{kind: k, numBits: bits, big: new(big.Int).Set(n)}
}

// Float returns a new KindFloat Value of the given declared width
// (32/64/128; 128 is stored as a float64, only the declared width is
// tracked, not a true quad-precision backing store).
func Float(v float64, bits int) *Value {
	if bits != 32 && bits != 64 {
		bits = 128
	}
	if bits == 32 {
		v = float64(float32(v))
	}
	return &Value{kind: KindFloat, numBits: bits, f: v}
}

// String returns a new KindString Value of the given codepoint width.
// Width32 is the wide-string variant.
func String(s string, width StringWidth) *Value {
	if width != Width8 && width != Width16 {
		width = Width32
	}
	return &Value{kind: KindString, s: s, strWidth: width}
}

// Bytes returns a new KindBytes Value with the declared byte order.
func Bytes(b []byte, order ByteOrder) *Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Value{kind: KindBytes, by: cp, byteOrder: order}
}

// Enum returns a new KindEnum Value. If name is empty, the caller should
// resolve a default name via an EnumSet before storing it (see enum.go);
// an empty name falls back to the stringified integer on conversion.
func Enum(i int64, name string) *Value {
	return &Value{kind: KindEnum, i: i, enumName: name}
}

// Array returns a new KindArray Value containing clones of items.
func Array(items ...*Value) *Value {
	v := &Value{kind: KindArray}
	for _, it := range items {
		v.arr = append(v.arr, it.Clone())
	}
	return v
}

// Map returns a new, empty KindMap Value.
func Map() *Value {
	return &Value{kind: KindMap, mp: newOrderedMap()}
}

func clampBits(bits int) int {
	if bits < 1 {
		return 1
	}
	if bits > 128 {
		return 128
	}
	return bits
}

func truncateSigned(v int64, bits int) int64 {
	if bits >= 64 {
		return v
	}
	mask := int64(1)<<uint(bits) - 1
	v &= mask
	signBit := int64(1) << uint(bits-1)
	if v&signBit != 0 {
		v -= mask + 1
	}
	return v
}

func truncateUnsigned(v uint64, bits int) uint64 {
	if bits >= 64 {
		return v
	}
	mask := uint64(1)<<uint(bits) - 1
	return v & mask
}

// --- introspection ---

func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

func (v *Value) IsNull() bool  { return v.Kind() == KindNull }
func (v *Value) NumBits() int  { return v.numBits }
func (v *Value) ByteOrder() ByteOrder { return v.byteOrder }
func (v *Value) StringWidth() StringWidth {
	if v == nil {
		return Width8
	}
	return v.strWidth
}

// EnumName returns the enum's name component, empty if unnamed.
func (v *Value) EnumName() string {
	if v == nil || v.kind != KindEnum {
		return ""
	}
	return v.enumName
}

// Len returns the number of elements for arrays and maps, 0 otherwise.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.mp.keys)
	default:
		return 0
	}
}

// MapKeys returns the map's keys in insertion order, nil for non-maps.
func (v *Value) MapKeys() []string {
	if v == nil || v.kind != KindMap {
		return nil
	}
	return v.mp.Keys()
}

// SortedMapKeys is a convenience for deterministic iteration in tests
// and diagnostics; encoders use MapKeys (insertion order) instead.
func (v *Value) SortedMapKeys() []string {
	keys := v.MapKeys()
	sort.Strings(keys)
	return keys
}

// Clone performs a deep copy of scalars, strings and byte strings, and
// a deep copy of array/map structure, so Equal is safe to call
// concurrently with independent mutation of either side.
func (v *Value) Clone() *Value {
	if v == nil {
		return Null()
	}
	out := &Value{
		kind:      v.kind,
		numBits:   v.numBits,
		b:         v.b,
		i:         v.i,
		u:         v.u,
		f:         v.f,
		s:         v.s,
		strWidth:  v.strWidth,
		byteOrder: v.byteOrder,
		enumName:  v.enumName,
	}
	if v.big != nil {
		out.big = new(big.Int).Set(v.big)
	}
	if v.by != nil {
		out.by = append([]byte(nil), v.by...)
	}
	if v.kind == KindArray {
		out.arr = make([]*Value, len(v.arr))
		for i, e := range v.arr {
			out.arr[i] = e.Clone()
		}
	}
	if v.kind == KindMap {
		out.mp = newOrderedMap()
		for _, k := range v.mp.Keys() {
			child, _ := v.mp.get(k)
			out.mp.set(k, child.Clone())
		}
	}
	return out
}

// Equal is structural equality for scalars/strings/arrays/maps.
func (v *Value) Equal(other *Value) bool {
	vk, ok := v.Kind(), other.Kind()
	if vk != ok {
		return false
	}
	switch vk {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt, KindUint:
		if v.numBits > 64 || other.numBits > 64 {
			return bigOf(v).Cmp(bigOf(other)) == 0
		}
		if vk == KindInt {
			return v.i == other.i
		}
		return v.u == other.u
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindBytes:
		return string(v.by) == string(other.by)
	case KindEnum:
		return v.i == other.i
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if v.Len() != other.Len() {
			return false
		}
		for _, k := range v.MapKeys() {
			a, _ := v.mp.get(k)
			b, ok := other.mp.get(k)
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func bigOf(v *Value) *big.Int {
	if v.big != nil {
		return v.big
	}
	if v.kind == KindInt {
		return big.NewInt(v.i)
	}
	return new(big.Int).SetUint64(v.u)
}
