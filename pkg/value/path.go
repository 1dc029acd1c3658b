// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package value

// Get is the read-only path accessor. Each step is
// either an int (array index) or a string (map key). A missing path,
// or a step that doesn't match the current shape (e.g. an int step on
// a map), yields Null and never mutates the receiver.
func (v *Value) Get(path ...any) *Value {
	cur := v
	for _, step := range path {
		if cur == nil {
			return Null()
		}
		switch s := step.(type) {
		case int:
			if cur.kind != KindArray || s < 0 || s >= len(cur.arr) {
				return Null()
			}
			cur = cur.arr[s]
		case string:
			if cur.kind != KindMap {
				return Null()
			}
			child, ok := cur.mp.get(s)
			if !ok {
				return Null()
			}
			cur = child
		default:
			return Null()
		}
	}
	if cur == nil {
		return Null()
	}
	return cur
}

// Index is a single-step convenience over Get for arrays.
func (v *Value) Index(i int) *Value { return v.Get(i) }

// Field is a single-step convenience over Get for maps.
func (v *Value) Field(key string) *Value { return v.Get(key) }

// MutableIndex returns a pointer to v's i'th element, rewriting v into
// an array (discarding prior content) if it is not already one, and
// growing the array with Null entries so that i is in range.
func (v *Value) MutableIndex(i int) *Value {
	if i < 0 {
		return Null()
	}
	if v.kind != KindArray {
		v.reset(KindArray)
	}
	for len(v.arr) <= i {
		v.arr = append(v.arr, Null())
	}
	return v.arr[i]
}

// MutableField returns a pointer to v's value at key, rewriting v into
// a map (discarding prior content) if it is not already one, and
// auto-inserting key with a Null value if absent.
func (v *Value) MutableField(key string) *Value {
	if v.kind != KindMap {
		v.reset(KindMap)
	}
	child, ok := v.mp.get(key)
	if !ok {
		child = Null()
		v.mp.set(key, child)
	}
	return child
}

// SetIndex is MutableIndex followed by an overwrite of the slot.
func (v *Value) SetIndex(i int, val *Value) {
	slot := v.MutableIndex(i)
	*slot = *val.Clone()
}

// SetField is MutableField followed by an overwrite of the slot.
func (v *Value) SetField(key string, val *Value) {
	slot := v.MutableField(key)
	*slot = *val.Clone()
}

// DeleteField removes key from a map Value; a no-op on non-maps or
// missing keys.
func (v *Value) DeleteField(key string) {
	if v.kind != KindMap {
		return
	}
	v.mp.delete(key)
}

// reset discards v's current content and reinitializes it as an empty
// value of the given kind, in place (so existing pointers to v observe
// the new shape, which auto-vivification depends on).
func (v *Value) reset(k Kind) {
	*v = Value{kind: k}
	if k == KindArray {
		v.arr = nil
	}
	if k == KindMap {
		v.mp = newOrderedMap()
	}
}
