package bsatn

import (
	"github.com/riftdb/riftdb-go/ids"
)

// MapEntry is one key/value pair of a Map value, in encode/decode order.
type MapEntry struct {
	Key   Value
	Value Value
}

// Value is a self-describing AlgebraicValue: a tagged tree whose shape is
// fixed by an accompanying AlgebraicType. Only the field matching Kind is
// meaningful; the zero value of the others is ignored.
type Value struct {
	Kind Kind

	Bool bool
	I8   int8
	U8   uint8
	I16  int16
	U16  uint16
	I32  int32
	U32  uint32
	I64  int64
	U64  uint64
	F32  float32
	F64  float64
	Str  string
	Bin  []byte

	Product []Value
	SumTag  uint8
	SumVal  *Value
	Array   []Value
	List    []Value
	MapV    []MapEntry
	OptSome *Value

	IdentityV ids.Identity
	AddressV  ids.ConnectionID
	TimeV     ids.Timestamp
	DurV      ids.Duration
}

func VBool(b bool) Value  { return Value{Kind: KindBool, Bool: b} }
func VI8(v int8) Value    { return Value{Kind: KindI8, I8: v} }
func VU8(v uint8) Value   { return Value{Kind: KindU8, U8: v} }
func VI16(v int16) Value  { return Value{Kind: KindI16, I16: v} }
func VU16(v uint16) Value { return Value{Kind: KindU16, U16: v} }
func VI32(v int32) Value  { return Value{Kind: KindI32, I32: v} }
func VU32(v uint32) Value { return Value{Kind: KindU32, U32: v} }
func VI64(v int64) Value  { return Value{Kind: KindI64, I64: v} }
func VU64(v uint64) Value { return Value{Kind: KindU64, U64: v} }
func VF32(v float32) Value { return Value{Kind: KindF32, F32: v} }
func VF64(v float64) Value { return Value{Kind: KindF64, F64: v} }
func VString(s string) Value { return Value{Kind: KindString, Str: s} }
func VBytes(b []byte) Value  { return Value{Kind: KindBytes, Bin: b} }

func VProduct(fields ...Value) Value {
	return Value{Kind: KindProduct, Product: fields}
}

func VSum(tag uint8, v Value) Value {
	return Value{Kind: KindSum, SumTag: tag, SumVal: &v}
}

func VArray(elems ...Value) Value {
	return Value{Kind: KindArray, Array: elems}
}

func VList(elems ...Value) Value {
	return Value{Kind: KindList, List: elems}
}

func VMap(entries ...MapEntry) Value {
	return Value{Kind: KindMap, MapV: entries}
}

func VOptionNone() Value { return Value{Kind: KindOption} }

func VOptionSome(v Value) Value {
	return Value{Kind: KindOption, OptSome: &v}
}

func VIdentity(id ids.Identity) Value {
	return Value{Kind: KindIdentity, IdentityV: id}
}

func VAddress(a ids.ConnectionID) Value {
	return Value{Kind: KindAddress, AddressV: a}
}

func VTimestamp(t ids.Timestamp) Value {
	return Value{Kind: KindTimestamp, TimeV: t}
}

func VDuration(d ids.Duration) Value {
	return Value{Kind: KindDuration, DurV: d}
}

// Equal performs a structural comparison used by the codec round-trip
// property test (spec.md §8, invariant 1).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == other.Bool
	case KindI8:
		return v.I8 == other.I8
	case KindU8:
		return v.U8 == other.U8
	case KindI16:
		return v.I16 == other.I16
	case KindU16:
		return v.U16 == other.U16
	case KindI32:
		return v.I32 == other.I32
	case KindU32:
		return v.U32 == other.U32
	case KindI64:
		return v.I64 == other.I64
	case KindU64:
		return v.U64 == other.U64
	case KindF32:
		return v.F32 == other.F32
	case KindF64:
		return v.F64 == other.F64
	case KindString:
		return v.Str == other.Str
	case KindBytes:
		return bytesEqual(v.Bin, other.Bin)
	case KindProduct:
		return valuesEqual(v.Product, other.Product)
	case KindSum:
		if v.SumTag != other.SumTag {
			return false
		}
		return optValueEqual(v.SumVal, other.SumVal)
	case KindArray:
		return valuesEqual(v.Array, other.Array)
	case KindList:
		return valuesEqual(v.List, other.List)
	case KindMap:
		if len(v.MapV) != len(other.MapV) {
			return false
		}
		for i := range v.MapV {
			if !v.MapV[i].Key.Equal(other.MapV[i].Key) || !v.MapV[i].Value.Equal(other.MapV[i].Value) {
				return false
			}
		}
		return true
	case KindOption:
		return optValueEqual(v.OptSome, other.OptSome)
	case KindIdentity:
		return v.IdentityV == other.IdentityV
	case KindAddress:
		return v.AddressV == other.AddressV
	case KindTimestamp:
		return v.TimeV == other.TimeV
	case KindDuration:
		return v.DurV == other.DurV
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func optValueEqual(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
