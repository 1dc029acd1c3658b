// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package asn1 implements the ASN.1 transfer syntaxes BER, XER, OER
// and UPER as a schema registry mapping a TMX
// scalar kind to its ASN.1 TYPE_descriptor (BOOLEAN, INT8..INT64,
// UINT8..UINT64, FLOAT32..FLOAT128, STRING8, ARRAY, PROPERTIES).
// BER and XER
// delegate real encode/decode work to github.com/go-asn1-ber/asn1-ber
// and encoding/xml; OER and UPER are hand-rolled bit-packers
// (see bitio.go).
package asn1

import "github.com/v2xhub/tmxcore/pkg/value"

// TypeDescriptor names the ASN.1 scalar type a Value's kind maps to.
func TypeDescriptor(v *value.Value) string {
	switch v.Kind() {
	case value.KindBool:
		return "BOOLEAN"
	case value.KindInt:
		return intDescriptor(v.NumBits())
	case value.KindUint:
		return uintDescriptor(v.NumBits())
	case value.KindFloat:
		return floatDescriptor(v.NumBits())
	case value.KindString:
		return "STRING8"
	case value.KindBytes:
		return "STRING8"
	case value.KindEnum:
		return "INT64"
	case value.KindArray:
		return "ARRAY"
	case value.KindMap:
		return "PROPERTIES"
	default:
		return "NULL"
	}
}

func intDescriptor(bits int) string {
	switch {
	case bits <= 8:
		return "INT8"
	case bits <= 16:
		return "INT16"
	case bits <= 32:
		return "INT32"
	default:
		return "INT64"
	}
}

func uintDescriptor(bits int) string {
	switch {
	case bits <= 8:
		return "UINT8"
	case bits <= 16:
		return "UINT16"
	case bits <= 32:
		return "UINT32"
	default:
		return "UINT64"
	}
}

func floatDescriptor(bits int) string {
	switch {
	case bits <= 32:
		return "FLOAT32"
	case bits <= 64:
		return "FLOAT64"
	default:
		return "FLOAT128"
	}
}
