// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package envelope

import (
	"math/big"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// Metadata is the decomposed form of Envelope.Metadata:
// {QoS:2, priority:4, base:2, assignment-group:4, assignment-id:4,
// fragment:4, attempt:4, reserved:8, programmable:32}. Reserved stays
// byte-aligned for easy masking; programmable absorbs the rest for
// caller-defined use. The
// reserved sub-field is not user-settable: Pack always writes it as
// zero, and DecodeMetadata rejects a nonzero reserved field on receive.
type Metadata struct {
	QoS             uint8
	Priority        uint8
	Base            uint8
	AssignmentGroup uint8
	AssignmentID    uint8
	Fragment        uint8
	Attempt         uint8
	Programmable    uint32
}

// metadataWidths lists the bitfield widths MSB-first: QoS, priority,
// base, assignment-group, assignment-id, fragment, attempt, reserved,
// programmable.
var metadataWidths = []int{2, 4, 2, 4, 4, 4, 4, 8, 32}

// Pack composes m into the 64-bit packed form stored in
// Envelope.Metadata, via pkg/value's generic bit-packer. The reserved
// field is always written as zero.
func (m Metadata) Pack() uint64 {
	packed, err := value.PackBits(
		value.BitField{Value: uint64(m.QoS) & 0x3, Width: 2},
		value.BitField{Value: uint64(m.Priority) & 0xF, Width: 4},
		value.BitField{Value: uint64(m.Base) & 0x3, Width: 2},
		value.BitField{Value: uint64(m.AssignmentGroup) & 0xF, Width: 4},
		value.BitField{Value: uint64(m.AssignmentID) & 0xF, Width: 4},
		value.BitField{Value: uint64(m.Fragment) & 0xF, Width: 4},
		value.BitField{Value: uint64(m.Attempt) & 0xF, Width: 4},
		value.BitField{Value: 0, Width: 8},
		value.BitField{Value: uint64(m.Programmable), Width: 32},
	)
	if err != nil {
		// Every field above is masked to its declared width (the
		// uint32 Programmable field by its type), so PackBits cannot
		// observe an overflow; a non-nil err here would be a
		// programming error in the widths table, not bad input.
		return 0
	}
	return packed.Uint64()
}

// UnpackMetadata unpacks the raw bitfield without validating the
// reserved sub-field; callers that need strict receive-side validation
// should use DecodeMetadata instead.
func UnpackMetadata(packed uint64) Metadata {
	m, _ := decode(packed)
	return m
}

// DecodeMetadata is Pack's inverse, validating that the reserved
// sub-field is zero: unknown bits are rejected on receive.
func DecodeMetadata(packed uint64) (Metadata, *tmxerr.Error) {
	m, reserved := decode(packed)
	if reserved != 0 {
		return Metadata{}, tmxerr.New(tmxerr.InvalidArgument, "envelope: metadata reserved field is nonzero")
	}
	return m, nil
}

func decode(packed uint64) (Metadata, uint64) {
	vals, err := value.UnpackBits(new(big.Int).SetUint64(packed), metadataWidths...)
	if err != nil {
		return Metadata{}, 0
	}
	return Metadata{
		QoS:             uint8(vals[0]),
		Priority:        uint8(vals[1]),
		Base:            uint8(vals[2]),
		AssignmentGroup: uint8(vals[3]),
		AssignmentID:    uint8(vals[4]),
		Fragment:        uint8(vals[5]),
		Attempt:         uint8(vals[6]),
		Programmable:    uint32(vals[8]),
	}, vals[7]
}

// SetMetadata packs m and stores it on the envelope.
func (e *Envelope) SetMetadata(m Metadata) {
	e.Metadata = m.Pack()
}

// GetMetadata unpacks the envelope's raw metadata bitfield, ignoring
// an invalid reserved sub-field (use DecodeMetadata on the receive
// path to enforce that check).
func (e *Envelope) GetMetadata() Metadata {
	return UnpackMetadata(e.Metadata)
}
