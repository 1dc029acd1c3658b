// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package value

import (
	"fmt"
	"math/big"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

// BitField is one fixed-width unsigned integer field to be packed,
// MSB-first, into a single unsigned integer. This is
// the mechanism pkg/rtcm and pkg/envelope use to compose bitfields such as
// the RTCM v3 header word or the envelope's packed metadata.
type BitField struct {
	Value uint64
	Width int // 1..64
}

// PackBits concatenates fields MSB-first into a big.Int whose bit width
// is the sum of the field widths (must not exceed 128).
func PackBits(fields ...BitField) (*big.Int, error) {
	total := 0
	out := new(big.Int)
	for idx, f := range fields {
		if f.Width <= 0 || f.Width > 64 {
			return nil, tmxerr.New(tmxerr.InvalidArgument, fmt.Sprintf("pack: field %d width %d out of range", idx, f.Width))
		}
		if f.Width < 64 && f.Value >= uint64(1)<<uint(f.Width) {
			return nil, tmxerr.New(tmxerr.InvalidArgument, fmt.Sprintf("pack: field %d value %d overflows width %d", idx, f.Value, f.Width))
		}
		out.Lsh(out, uint(f.Width))
		out.Or(out, new(big.Int).SetUint64(f.Value))
		total += f.Width
	}
	if total > 128 {
		return nil, tmxerr.New(tmxerr.InvalidArgument, fmt.Sprintf("pack: total width %d exceeds 128", total))
	}
	return out, nil
}

// UnpackBits is PackBits's inverse: given the packed integer and the
// same field widths used to build it, it returns each field's value,
// MSB-first.
func UnpackBits(packed *big.Int, widths ...int) ([]uint64, error) {
	total := 0
	for _, w := range widths {
		if w <= 0 || w > 64 {
			return nil, tmxerr.New(tmxerr.InvalidArgument, fmt.Sprintf("unpack: width %d out of range", w))
		}
		total += w
	}
	if total > 128 {
		return nil, tmxerr.New(tmxerr.InvalidArgument, fmt.Sprintf("unpack: total width %d exceeds 128", total))
	}
	tmp := new(big.Int).Set(packed)
	vals := make([]uint64, len(widths))
	for i := len(widths) - 1; i >= 0; i-- {
		w := widths[i]
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1))
		v := new(big.Int).And(tmp, mask)
		vals[i] = v.Uint64()
		tmp.Rsh(tmp, uint(w))
	}
	return vals, nil
}

// BitsToBytes renders a packed big.Int as a fixed-width, big-endian
// byte string of totalBits (which must be a multiple of 8) — the
// framing step RTCM headers need after PackBits.
func BitsToBytes(n *big.Int, totalBits int) ([]byte, error) {
	if totalBits%8 != 0 {
		return nil, tmxerr.New(tmxerr.InvalidArgument, "BitsToBytes: totalBits must be a multiple of 8")
	}
	nbytes := totalBits / 8
	raw := n.Bytes()
	if len(raw) > nbytes {
		return nil, tmxerr.New(tmxerr.InvalidArgument, "BitsToBytes: value does not fit in totalBits")
	}
	out := make([]byte, nbytes)
	copy(out[nbytes-len(raw):], raw)
	return out, nil
}

// BytesToBits is BitsToBytes's inverse.
func BytesToBits(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
