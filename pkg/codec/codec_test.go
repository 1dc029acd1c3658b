// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/value"
)

func sample() *value.Value {
	m := value.Map()
	m.SetField("mode", value.Int(3, 8))
	m.SetField("name", value.String("GPS", value.Width8))
	m.SetField("tags", value.Array(value.String("a", value.Width8), value.String("b", value.Width8)))
	m.SetField("raw", value.Bytes([]byte{0x01, 0x02}, value.BigEndian))
	return m
}

func TestRegistryDefaultsAreWired(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{JSON, XML, CBOR, Avro, ASN1BER, ASN1XER, ASN1OER, ASN1UPER} {
		_, ok := r.GetEncoder(name)
		assert.True(t, ok, "expected encoder for %s", name)
		_, ok = r.GetDecoder(name)
		assert.True(t, ok, "expected decoder for %s", name)
	}
}

func TestEmptyEncodingAliasesToRawPassthrough(t *testing.T) {
	r := NewRegistry()
	_, ok := r.GetEncoder(Raw)
	assert.True(t, ok, "expected empty encoding to resolve to the raw codec")
	_, ok = r.GetDecoder(Raw)
	assert.True(t, ok, "expected empty encoding to resolve to the raw codec")
	_, ok = r.GetEncoder("none")
	assert.True(t, ok, "expected \"none\" to resolve to the raw codec")

	v := value.String("hello", value.Width8)
	enc, err := r.Encode(Raw, v)
	require.Nil(t, err)
	assert.Equal(t, []byte("hello"), enc)

	dec, err := r.Decode(Raw, enc)
	require.Nil(t, err)
	assert.Equal(t, "hello", dec.AsString())
}

func TestJSONRoundTripPreservesKeyOrder(t *testing.T) {
	v := sample()
	enc, err := EncodeJSON(v)
	require.Nil(t, err)
	assert.Equal(t, `{"mode":3,"name":"GPS","tags":["a","b"],"raw":"0102"}`, string(enc))

	dec, derr := DecodeJSON(enc)
	require.Nil(t, derr)
	assert.Equal(t, int64(3), dec.Field("mode").AsInt64())
	assert.Equal(t, "GPS", dec.Field("name").AsString())
	assert.Equal(t, 2, dec.Field("tags").Len())
}

func TestXMLRoundTrip(t *testing.T) {
	v := sample()
	enc, err := EncodeXML(v)
	require.Nil(t, err)

	dec, derr := DecodeXML(enc)
	require.Nil(t, derr)
	assert.Equal(t, "GPS", dec.Field("name").AsString())
	assert.Equal(t, []byte{0x01, 0x02}, dec.Field("raw").AsBytes())
}

func TestCBORRoundTrip(t *testing.T) {
	v := sample()
	enc, err := EncodeCBOR(v)
	require.Nil(t, err)

	dec, derr := DecodeCBOR(enc)
	require.Nil(t, derr)
	assert.Equal(t, int64(3), dec.Field("mode").AsInt64())
	assert.Equal(t, "GPS", dec.Field("name").AsString())
	assert.Equal(t, []byte{0x01, 0x02}, dec.Field("raw").AsBytes())
}

func TestAvroRoundTrip(t *testing.T) {
	v := sample()
	enc, err := EncodeAvro(v)
	require.Nil(t, err)

	dec, derr := DecodeAvro(enc)
	require.Nil(t, derr)
	assert.Equal(t, "GPS", dec.Field("name").AsString())
}

func TestEncodeDecodeViaRegistry(t *testing.T) {
	r := NewRegistry()
	v := sample()
	enc, err := r.Encode(JSON, v)
	require.Nil(t, err)
	dec, err := r.Decode(JSON, enc)
	require.Nil(t, err)
	assert.Equal(t, "GPS", dec.Field("name").AsString())
}

func TestRTCMCodecsAreWired(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{RTCM10402, RTCM10403} {
		_, ok := r.GetEncoder(name)
		assert.True(t, ok, "expected encoder for %s", name)
		_, ok = r.GetDecoder(name)
		assert.True(t, ok, "expected decoder for %s", name)
	}
}
