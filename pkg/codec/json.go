// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// EncodeJSON is the default codec: maps become objects
// (in insertion order — Value's orderedMap is exactly this mechanism),
// arrays become arrays, integers/floats become numbers, enums become
// their name when known and a number otherwise, and byte strings
// become hex-encoded strings. Key order is preserved by writing JSON
// text directly rather than round-tripping through map[string]any,
// which encoding/json would reorder.
func EncodeJSON(v *value.Value) ([]byte, *tmxerr.Error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v *value.Value) *tmxerr.Error {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteString("null")
	case value.KindBool:
		if v.AsBool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case value.KindInt, value.KindUint:
		buf.WriteString(v.AsString())
	case value.KindFloat:
		buf.WriteString(strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64))
	case value.KindString:
		writeJSONString(buf, v.AsString())
	case value.KindBytes:
		writeJSONString(buf, v.AsString()) // AsString hex-encodes bytes
	case value.KindEnum:
		if v.EnumName() != "" {
			writeJSONString(buf, v.EnumName())
		} else {
			buf.WriteString(v.AsString())
		}
	case value.KindArray:
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, v.Index(i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case value.KindMap:
		buf.WriteByte('{')
		for i, k := range v.MapKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, k)
			buf.WriteByte(':')
			if err := writeJSON(buf, v.Field(k)); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return tmxerr.New(tmxerr.NotSupported, "json: unsupported value kind")
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal on a bare string gives us correct escaping/quoting
	// without reimplementing the RFC 8259 escape table by hand.
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// DecodeJSON is EncodeJSON's inverse. It never partially populates its
// result on error: a malformed document yields a nil Value and a
// MalformedInput error.
func DecodeJSON(b []byte) (*value.Value, *tmxerr.Error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "json: decode")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (*value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return tokenToValue(dec, tok)
}

func tokenToValue(dec *json.Decoder, tok json.Token) (*value.Value, error) {
	switch t := tok.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return value.Int(n, 64), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return value.Float(f, 64), nil
	case string:
		return value.String(t, value.Width8), nil
	case json.Delim:
		switch t {
		case '[':
			arr := value.Array()
			idx := 0
			for dec.More() {
				elem, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr.SetIndex(idx, elem)
				idx++
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		case '{':
			m := value.Map()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, io.ErrUnexpectedEOF
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				m.SetField(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return m, nil
		}
	}
	return value.Null(), nil
}
