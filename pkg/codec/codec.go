// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec implements the codec registry and built-in wire
// formats: a name → {encoder, decoder} lookup used by the plugin layer
// to turn envelope payloads into typed Values and back.
//
// The registry itself reuses pkg/registry's namespace tree; codecs
// live under the "tmx::codec::encoder"/"tmx::codec::decoder"
// namespaces.
package codec

import (
	"github.com/v2xhub/tmxcore/pkg/codec/asn1"
	"github.com/v2xhub/tmxcore/pkg/registry"
	"github.com/v2xhub/tmxcore/pkg/rtcm"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// Canonical codec names.
const (
	Raw       = ""
	JSON      = "json"
	XML       = "xml"
	CBOR      = "cbor"
	Avro      = "avro"
	ASN1BER   = "asn.1-ber"
	ASN1XER   = "asn.1-xer"
	ASN1OER   = "asn.1-oer"
	ASN1UPER  = "asn.1-uper"
	RTCM10402 = "RTCM-SC10402.3"
	RTCM10403 = "RTCM-SC10403.3"
)

const (
	encoderNamespace = "tmx::codec::encoder"
	decoderNamespace = "tmx::codec::decoder"
)

// Encoder renders a Value to its wire bytes.
type Encoder func(v *value.Value) ([]byte, *tmxerr.Error)

// Decoder parses wire bytes into a Value.
type Decoder func(b []byte) (*value.Value, *tmxerr.Error)

// Registry is the codec name → {encoder, decoder} lookup table.
type Registry struct {
	reg *registry.Registry
}

// NewRegistry returns a Registry with every built-in codec registered.
func NewRegistry() *Registry {
	r := &Registry{reg: registry.New()}
	r.registerBuiltins()
	return r
}

// RegisterEncoder binds enc under name, rejecting a blank name (the
// empty name is reserved for the raw passthrough codec wired in by
// registerBuiltins, not for caller registration).
func (r *Registry) RegisterEncoder(name string, enc Encoder) *tmxerr.Error {
	if name == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "codec: cannot register under the empty name")
	}
	return r.reg.RegisterType(encoderNamespace, registry.TypeID(name), name, enc)
}

// RegisterDecoder binds dec under name.
func (r *Registry) RegisterDecoder(name string, dec Decoder) *tmxerr.Error {
	if name == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "codec: cannot register under the empty name")
	}
	return r.reg.RegisterType(decoderNamespace, registry.TypeID(name), name, dec)
}

// GetEncoder is an O(1) lookup by canonical name. An empty name (or
// "none") means the payload already carries its intended
// representation, so it aliases to the raw passthrough codec.
func (r *Registry) GetEncoder(name string) (Encoder, bool) {
	d, ok := r.reg.GetByName(encoderNamespace, rawAlias(name))
	if !ok {
		return nil, false
	}
	enc, ok := d.Instance.(Encoder)
	return enc, ok
}

// GetDecoder is GetEncoder's decode-side counterpart.
func (r *Registry) GetDecoder(name string) (Decoder, bool) {
	d, ok := r.reg.GetByName(decoderNamespace, rawAlias(name))
	if !ok {
		return nil, false
	}
	dec, ok := d.Instance.(Decoder)
	return dec, ok
}

func rawAlias(name string) string {
	if name == Raw || name == "none" {
		return "raw"
	}
	return name
}

// Encode looks up name's encoder and applies it.
func (r *Registry) Encode(name string, v *value.Value) ([]byte, *tmxerr.Error) {
	enc, ok := r.GetEncoder(name)
	if !ok {
		return nil, tmxerr.New(tmxerr.NotSupported, "codec: no encoder registered for "+name)
	}
	return enc(v)
}

// Decode looks up name's decoder and applies it.
func (r *Registry) Decode(name string, b []byte) (*value.Value, *tmxerr.Error) {
	dec, ok := r.GetDecoder(name)
	if !ok {
		return nil, tmxerr.New(tmxerr.NotSupported, "codec: no decoder registered for "+name)
	}
	return dec(b)
}

func (r *Registry) registerBuiltins() {
	rawEnc := func(v *value.Value) ([]byte, *tmxerr.Error) { return v.AsBytes(), nil }
	rawDec := func(b []byte) (*value.Value, *tmxerr.Error) {
		return value.String(string(b), value.Width8), nil
	}
	r.reg.RegisterType(encoderNamespace, registry.TypeID("raw"), "raw", Encoder(rawEnc))
	r.reg.RegisterType(decoderNamespace, registry.TypeID("raw"), "raw", Decoder(rawDec))

	r.RegisterEncoder(JSON, EncodeJSON)
	r.RegisterDecoder(JSON, DecodeJSON)
	r.RegisterEncoder(XML, EncodeXML)
	r.RegisterDecoder(XML, DecodeXML)
	r.RegisterEncoder(CBOR, EncodeCBOR)
	r.RegisterDecoder(CBOR, DecodeCBOR)
	r.RegisterEncoder(Avro, EncodeAvro)
	r.RegisterDecoder(Avro, DecodeAvro)

	r.RegisterEncoder(ASN1BER, asn1.EncodeBER)
	r.RegisterDecoder(ASN1BER, asn1.DecodeBER)
	r.RegisterEncoder(ASN1XER, asn1.EncodeXER)
	r.RegisterDecoder(ASN1XER, asn1.DecodeXER)
	r.RegisterEncoder(ASN1OER, asn1.EncodeOER)
	r.RegisterDecoder(ASN1OER, asn1.DecodeOER)
	r.RegisterEncoder(ASN1UPER, asn1.EncodeUPER)
	r.RegisterDecoder(ASN1UPER, asn1.DecodeUPER)

	r.RegisterEncoder(RTCM10402, rtcm.EncodeV2Value)
	r.RegisterDecoder(RTCM10402, rtcm.DecodeV2Value)
	r.RegisterEncoder(RTCM10403, rtcm.EncodeV3Value)
	r.RegisterDecoder(RTCM10403, rtcm.DecodeV3Value)
}
