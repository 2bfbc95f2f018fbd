package bsatn

import "math"

// IntValue builds a signed integer Value of the given Kind from a raw
// int64, checking that it fits the declared width. Used when a typed
// helper (codegen or a table schema) hands the codec a Go int64 rather
// than a width-correct Go type, per spec.md §3's "integer range invariant".
func IntValue(kind Kind, raw int64) (Value, error) {
	switch kind {
	case KindI8:
		if raw < math.MinInt8 || raw > math.MaxInt8 {
			return Value{}, newErr(ErrOverflow, "%d does not fit i8", raw)
		}
		return VI8(int8(raw)), nil
	case KindI16:
		if raw < math.MinInt16 || raw > math.MaxInt16 {
			return Value{}, newErr(ErrOverflow, "%d does not fit i16", raw)
		}
		return VI16(int16(raw)), nil
	case KindI32:
		if raw < math.MinInt32 || raw > math.MaxInt32 {
			return Value{}, newErr(ErrOverflow, "%d does not fit i32", raw)
		}
		return VI32(int32(raw)), nil
	case KindI64:
		return VI64(raw), nil
	default:
		return Value{}, newErr(ErrInvalidTag, "kind %d is not a signed integer", kind)
	}
}

// UintValue builds an unsigned integer Value of the given Kind from a raw
// uint64, checking that it fits the declared width.
func UintValue(kind Kind, raw uint64) (Value, error) {
	switch kind {
	case KindU8:
		if raw > math.MaxUint8 {
			return Value{}, newErr(ErrOverflow, "%d does not fit u8", raw)
		}
		return VU8(uint8(raw)), nil
	case KindU16:
		if raw > math.MaxUint16 {
			return Value{}, newErr(ErrOverflow, "%d does not fit u16", raw)
		}
		return VU16(uint16(raw)), nil
	case KindU32:
		if raw > math.MaxUint32 {
			return Value{}, newErr(ErrOverflow, "%d does not fit u32", raw)
		}
		return VU32(uint32(raw)), nil
	case KindU64:
		return VU64(raw), nil
	default:
		return Value{}, newErr(ErrInvalidTag, "kind %d is not an unsigned integer", kind)
	}
}
