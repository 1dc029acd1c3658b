// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package registry

import (
	"reflect"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

// Dispatch invokes the callable held by desc, type-checking its
// signature against args. The callable must be a Go function value; a
// signature mismatch fails with NotSupported rather than panicking.
func Dispatch(desc Descriptor, args ...any) ([]any, *tmxerr.Error) {
	fn := reflect.ValueOf(desc.Instance)
	if fn.Kind() != reflect.Func {
		return nil, tmxerr.New(tmxerr.NotSupported, "registry: descriptor does not hold a callable")
	}
	t := fn.Type()
	if t.IsVariadic() {
		if len(args) < t.NumIn()-1 {
			return nil, tmxerr.New(tmxerr.NotSupported, "registry: too few arguments for variadic handler")
		}
	} else if len(args) != t.NumIn() {
		return nil, tmxerr.New(tmxerr.NotSupported, "registry: argument count mismatch")
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		av := reflect.ValueOf(a)
		var want reflect.Type
		if t.IsVariadic() && i >= t.NumIn()-1 {
			want = t.In(t.NumIn() - 1).Elem()
		} else {
			want = t.In(i)
		}
		if a == nil {
			in[i] = reflect.Zero(want)
			continue
		}
		if !av.Type().AssignableTo(want) {
			if av.Type().ConvertibleTo(want) {
				av = av.Convert(want)
			} else {
				return nil, tmxerr.New(tmxerr.NotSupported, "registry: argument "+want.String()+" mismatch")
			}
		}
		in[i] = av
	}

	out := fn.Call(in)
	result := make([]any, len(out))
	for i, o := range out {
		result[i] = o.Interface()
	}
	return result, nil
}
