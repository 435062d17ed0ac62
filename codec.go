// SPDX-License-Identifier: GPL-3.0-or-later

package pvshare

import "fmt"

// Wire is the canonical exchange representation used between the shared PV
// core and the hosting transport. Subscribers receive [Wire] values and
// operations carry [Wire] values; the configured [Codec] translates between
// [Wire] and the application-level value type.
//
// This package never inspects a [Wire] value: it is opaque payload produced
// by Encode and consumed by Decode. The hosting transport defines the
// concrete representation (for a protocol binding, typically its structured
// value type; for in-process use, any Go value).
type Wire any

// Codec is a bidirectional transform between the application-level value
// type T and the [Wire] exchange representation.
//
// Implementations must be pure: no side effects, and no failure for values
// the application legitimately produces. When a codec does fail (e.g., a
// wire value of an unexpected shape), the error surfaces to the caller of
// the transforming method: [SharedPV.Open] and [SharedPV.Post] return
// encode errors, and the [ServerOperation] accessors return decode errors
// to the handler.
type Codec[T any] interface {
	Encode(value T) (Wire, error)
	Decode(wire Wire) (T, error)
}

// FuncCodec adapts a pair of functions to the [Codec] interface.
//
// Either slot may be nil, in which case the identity transform is used for
// that direction. This supports supplying only an encode override or only
// a decode override alongside a named codec.
type FuncCodec[T any] struct {
	// EncodeFunc transforms an application value into its wire form.
	EncodeFunc func(value T) (Wire, error)

	// DecodeFunc transforms a wire value into its application form.
	DecodeFunc func(wire Wire) (T, error)
}

var _ Codec[int] = FuncCodec[int]{}

// Encode implements [Codec].
func (c FuncCodec[T]) Encode(value T) (Wire, error) {
	if c.EncodeFunc == nil {
		return IdentityCodec[T]{}.Encode(value)
	}
	return c.EncodeFunc(value)
}

// Decode implements [Codec].
func (c FuncCodec[T]) Decode(wire Wire) (T, error) {
	if c.DecodeFunc == nil {
		return IdentityCodec[T]{}.Decode(wire)
	}
	return c.DecodeFunc(wire)
}

// IdentityCodec is the default [Codec]: Encode boxes the value unchanged
// and Decode asserts it back to T.
//
// Decode fails with an error wrapping [ErrWireType] when the wire value's
// dynamic type is not T.
type IdentityCodec[T any] struct{}

var _ Codec[int] = IdentityCodec[int]{}

// Encode implements [Codec].
func (IdentityCodec[T]) Encode(value T) (Wire, error) {
	return value, nil
}

// Decode implements [Codec].
func (IdentityCodec[T]) Decode(wire Wire) (T, error) {
	value, ok := wire.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T, want %T", ErrWireType, wire, zero)
	}
	return value, nil
}
