// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package asn1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/value"
)

func sample() *value.Value {
	m := value.Map()
	m.SetField("id", value.Int(-7, 16))
	m.SetField("name", value.String("rsu-01", value.Width8))
	m.SetField("ok", value.Bool(true))
	m.SetField("items", value.Array(value.Int(1, 8), value.Int(2, 8), value.Int(3, 8)))
	m.SetField("raw", value.Bytes([]byte{0xDE, 0xAD, 0xBE, 0xEF}, value.BigEndian))
	return m
}

func TestBERRoundTrip(t *testing.T) {
	enc, err := EncodeBER(sample())
	require.Nil(t, err)

	dec, derr := DecodeBER(enc)
	require.Nil(t, derr)

	assert.Equal(t, int64(-7), dec.Field("id").AsInt64())
	assert.Equal(t, "rsu-01", dec.Field("name").AsString())
	assert.True(t, dec.Field("ok").AsBool())
	assert.Equal(t, 3, dec.Field("items").Len())
	assert.Equal(t, int64(2), dec.Field("items").Index(1).AsInt64())
}

func TestXERRoundTrip(t *testing.T) {
	enc, err := EncodeXER(sample())
	require.Nil(t, err)

	dec, derr := DecodeXER(enc)
	require.Nil(t, derr)

	assert.Equal(t, "rsu-01", dec.Field("name").AsString())
	assert.True(t, dec.Field("ok").AsBool())
	assert.Equal(t, 3, dec.Field("items").Len())
}

func TestOERRoundTrip(t *testing.T) {
	enc, err := EncodeOER(sample())
	require.Nil(t, err)

	dec, derr := DecodeOER(enc)
	require.Nil(t, derr)

	assert.Equal(t, "rsu-01", dec.Field("name").AsString())
	assert.Equal(t, int64(-7), dec.Field("id").AsInt64())
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, dec.Field("raw").AsBytes())
}

func TestUPERRoundTrip(t *testing.T) {
	enc, err := EncodeUPER(sample())
	require.Nil(t, err)

	dec, derr := DecodeUPER(enc)
	require.Nil(t, derr)

	assert.Equal(t, "rsu-01", dec.Field("name").AsString())
	assert.Equal(t, int64(-7), dec.Field("id").AsInt64())
	assert.True(t, dec.Field("ok").AsBool())
}

func TestUPERIsMoreCompactThanOER(t *testing.T) {
	oer, err := EncodeOER(sample())
	require.Nil(t, err)
	uper, err := EncodeUPER(sample())
	require.Nil(t, err)
	// OER pads to a byte boundary after every node; UPER never does,
	// so the same value must never take more raw bits under UPER.
	assert.LessOrEqual(t, len(uper), len(oer))
}

func TestEnumRoundTripPrefersName(t *testing.T) {
	es := value.NewEnumSet(value.EnumPair{Value: 2, Name: "ThreeD"})
	v := es.New(2)

	enc, err := EncodeBER(v)
	require.Nil(t, err)
	dec, derr := DecodeBER(enc)
	require.Nil(t, derr)
	assert.Equal(t, "ThreeD", dec.AsString())
}
