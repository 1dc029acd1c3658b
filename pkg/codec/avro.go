// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package codec

import (
	"github.com/linkedin/goavro/v2"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// avroEnvelopeSchema wraps an arbitrary Value as its JSON text inside a
// single fixed Avro record. Avro is not one of the canonical codec
// names; it is an additional registry entry for deployments that
// archive bus traffic through an Avro pipeline. A true per-Value Avro
// schema would need dynamic
// schema generation per shape, which goavro does not support; wrapping
// the already-ordered JSON text keeps Value's structural fidelity
// (including map key order) without inventing a schema compiler.
const avroEnvelopeSchema = `{
	"type": "record",
	"name": "TmxCodecEnvelope",
	"fields": [
		{"name": "json", "type": "string"}
	]
}`

var avroCodec, avroCodecErr = goavro.NewCodec(avroEnvelopeSchema)

// EncodeAvro renders v as JSON and wraps it in the fixed envelope
// record, then binary-encodes that record with goavro.
func EncodeAvro(v *value.Value) ([]byte, *tmxerr.Error) {
	if avroCodecErr != nil {
		return nil, tmxerr.Wrap(tmxerr.NotSupported, avroCodecErr, "avro: schema")
	}
	payload, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	native := map[string]any{"json": string(payload)}
	out, encErr := avroCodec.BinaryFromNative(nil, native)
	if encErr != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, encErr, "avro: encode")
	}
	return out, nil
}

// DecodeAvro is EncodeAvro's inverse.
func DecodeAvro(b []byte) (*value.Value, *tmxerr.Error) {
	if avroCodecErr != nil {
		return nil, tmxerr.Wrap(tmxerr.NotSupported, avroCodecErr, "avro: schema")
	}
	native, _, err := avroCodec.NativeFromBinary(b)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "avro: decode")
	}
	rec, ok := native.(map[string]any)
	if !ok {
		return nil, tmxerr.New(tmxerr.MalformedInput, "avro: decoded record has unexpected shape")
	}
	text, ok := rec["json"].(string)
	if !ok {
		return nil, tmxerr.New(tmxerr.MalformedInput, "avro: missing json field")
	}
	return DecodeJSON([]byte(text))
}
