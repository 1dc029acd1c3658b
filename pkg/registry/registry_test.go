// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.Nil(t, r.RegisterType("tmx::codec", TypeID("json-codec"), "json", 42))

	d, ok := r.Get("tmx::codec", TypeID("json-codec"))
	require.True(t, ok)
	assert.Equal(t, 42, d.Instance)

	byName, ok := r.GetByName("tmx::codec", "json")
	require.True(t, ok)
	assert.Equal(t, 42, byName.Instance)
}

func TestRegisterIntoRootNamespaceFails(t *testing.T) {
	r := New()
	err := r.RegisterType("", TypeID("x"), "x", 1)
	require.Error(t, err)
}

func TestNamespaceSeparatorsAccepted(t *testing.T) {
	segs, err := SplitNamespace("a::b.c:d/e\\f")
	require.Nil(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, segs)
}

func TestGetAllCollectsSubtree(t *testing.T) {
	r := New()
	require.Nil(t, r.RegisterType("tmx::broker::kafka", TypeID("a"), "a", 1))
	require.Nil(t, r.RegisterType("tmx::broker::tcp", TypeID("b"), "b", 2))

	all := r.GetAll("tmx::broker", nil)
	assert.Len(t, all, 2)
}

func TestUnregisterRemovesDescriptor(t *testing.T) {
	r := New()
	require.Nil(t, r.RegisterType("ns", TypeID("a"), "alias", 1))
	r.Unregister("ns", TypeID("a"), "alias")
	_, ok := r.Get("ns", TypeID("a"))
	assert.False(t, ok)
	_, ok = r.GetByName("ns", "alias")
	assert.False(t, ok)
}

func TestDispatchTypeChecksSignature(t *testing.T) {
	d := Descriptor{Instance: func(a int, b string) string { return b }}
	out, err := Dispatch(d, 1, "hi")
	require.Nil(t, err)
	assert.Equal(t, "hi", out[0])

	_, err = Dispatch(d, "wrong", "args", "count")
	require.Error(t, err)
}
