// Package bsatn implements the tagged binary value codec described in
// spec.md §4.1: a self-describing AlgebraicValue tree serialized against
// an AlgebraicType descriptor, little-endian, with a one-byte tag in front
// of every value.
package bsatn

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	"github.com/riftdb/riftdb-go/ids"
)

// DefaultMaxPayload is the default ceiling on any single length-prefixed
// payload (string, bytes, list, map), per spec.md §4.1.
const DefaultMaxPayload = 1 << 30 // 1 GiB

// Codec encodes/decodes AlgebraicValues against AlgebraicTypes. The zero
// value is ready to use with DefaultMaxPayload and no named types.
type Codec struct {
	Registry   *Registry
	MaxPayload uint32
}

func NewCodec(reg *Registry) *Codec {
	return &Codec{Registry: reg, MaxPayload: DefaultMaxPayload}
}

func (c *Codec) maxPayload() uint32 {
	if c.MaxPayload == 0 {
		return DefaultMaxPayload
	}
	return c.MaxPayload
}

// Encode serializes v against type t into a fresh byte slice.
func (c *Codec) Encode(v Value, t AlgebraicType) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encode(&buf, v, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a value of type t from the front of b, returning the
// decoded value (decode(encode(v, T), T) == v is the law, spec.md §8).
func (c *Codec) Decode(b []byte, t AlgebraicType) (Value, error) {
	r := bytes.NewReader(b)
	return c.decode(r, t)
}

func (c *Codec) resolve(t AlgebraicType) (AlgebraicType, error) {
	if t.Kind != KindRef {
		return t, nil
	}
	if c.Registry == nil {
		return AlgebraicType{}, newErr(ErrUnknownTypeRef, "no registry to resolve %q", t.Ref)
	}
	resolved, ok := c.Registry.Resolve(t.Ref)
	if !ok {
		return AlgebraicType{}, newErr(ErrUnknownTypeRef, "unknown named type %q", t.Ref)
	}
	return resolved, nil
}

func (c *Codec) encode(w *bytes.Buffer, v Value, t AlgebraicType) error {
	t, err := c.resolve(t)
	if err != nil {
		return err
	}
	if v.Kind != t.Kind {
		return newErr(ErrInvalidTag, "value kind %d does not match type kind %d", v.Kind, t.Kind)
	}

	switch t.Kind {
	case KindBool:
		if v.Bool {
			w.WriteByte(byte(TagBoolTrue))
		} else {
			w.WriteByte(byte(TagBoolFalse))
		}
	case KindI8:
		w.WriteByte(byte(TagI8))
		w.WriteByte(byte(v.I8))
	case KindU8:
		w.WriteByte(byte(TagU8))
		w.WriteByte(v.U8)
	case KindI16:
		w.WriteByte(byte(TagI16))
		writeLE(w, uint16(v.I16))
	case KindU16:
		w.WriteByte(byte(TagU16))
		writeLE(w, v.U16)
	case KindI32:
		w.WriteByte(byte(TagI32))
		writeLE(w, uint32(v.I32))
	case KindU32:
		w.WriteByte(byte(TagU32))
		writeLE(w, v.U32)
	case KindI64:
		w.WriteByte(byte(TagI64))
		writeLE(w, uint64(v.I64))
	case KindU64:
		w.WriteByte(byte(TagU64))
		writeLE(w, v.U64)
	case KindF32:
		if math.IsNaN(float64(v.F32)) || math.IsInf(float64(v.F32), 0) {
			return newErr(ErrInvalidFloat, "f32 NaN/Inf rejected on write")
		}
		w.WriteByte(byte(TagF32))
		writeLE(w, math.Float32bits(v.F32))
	case KindF64:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return newErr(ErrInvalidFloat, "f64 NaN/Inf rejected on write")
		}
		w.WriteByte(byte(TagF64))
		writeLE(w, math.Float64bits(v.F64))
	case KindString:
		raw := []byte(v.Str)
		if uint32(len(raw)) > c.maxPayload() {
			return newErr(ErrTooLarge, "string of %d bytes exceeds max payload", len(raw))
		}
		w.WriteByte(byte(TagString))
		writeLE(w, uint32(len(raw)))
		w.Write(raw)
	case KindBytes:
		if uint32(len(v.Bin)) > c.maxPayload() {
			return newErr(ErrTooLarge, "bytes of %d bytes exceeds max payload", len(v.Bin))
		}
		w.WriteByte(byte(TagBytes))
		writeLE(w, uint32(len(v.Bin)))
		w.Write(v.Bin)
	case KindProduct:
		if len(v.Product) != len(t.Fields) {
			return newErr(ErrInvalidTag, "product has %d fields, type declares %d", len(v.Product), len(t.Fields))
		}
		w.WriteByte(byte(TagStruct))
		for i, f := range t.Fields {
			if err := c.encode(w, v.Product[i], f.Type); err != nil {
				return err
			}
		}
	case KindSum:
		if int(v.SumTag) >= len(t.Variants) {
			return newErr(ErrInvalidTag, "sum tag %d out of range (%d variants)", v.SumTag, len(t.Variants))
		}
		if v.SumVal == nil {
			return newErr(ErrInvalidTag, "sum value missing payload")
		}
		w.WriteByte(byte(TagEnum))
		w.WriteByte(v.SumTag)
		if err := c.encode(w, *v.SumVal, t.Variants[v.SumTag].Type); err != nil {
			return err
		}
	case KindArray:
		if len(v.Array) != t.ArrayLen {
			return newErr(ErrInvalidTag, "fixed array has %d elements, type declares %d", len(v.Array), t.ArrayLen)
		}
		w.WriteByte(byte(TagArray))
		for _, elem := range v.Array {
			if err := c.encode(w, elem, *t.Elem); err != nil {
				return err
			}
		}
	case KindList:
		if uint32(len(v.List)) > c.maxPayload() {
			return newErr(ErrTooLarge, "list of %d elements exceeds max payload", len(v.List))
		}
		w.WriteByte(byte(TagList))
		writeLE(w, uint32(len(v.List)))
		for _, elem := range v.List {
			if err := c.encode(w, elem, *t.Elem); err != nil {
				return err
			}
		}
	case KindMap:
		if uint32(len(v.MapV)) > c.maxPayload() {
			return newErr(ErrTooLarge, "map of %d entries exceeds max payload", len(v.MapV))
		}
		w.WriteByte(byte(TagMap))
		writeLE(w, uint32(len(v.MapV)))
		for _, entry := range v.MapV {
			if err := c.encode(w, entry.Key, *t.Key); err != nil {
				return err
			}
			if err := c.encode(w, entry.Value, *t.Elem); err != nil {
				return err
			}
		}
	case KindOption:
		if v.OptSome == nil {
			w.WriteByte(byte(TagOptNone))
		} else {
			w.WriteByte(byte(TagOptSome))
			if err := c.encode(w, *v.OptSome, *t.Elem); err != nil {
				return err
			}
		}
	case KindIdentity:
		w.WriteByte(byte(TagIdentity))
		w.Write(v.IdentityV.Bytes())
	case KindAddress:
		w.WriteByte(byte(TagAddress))
		w.Write(v.AddressV[:])
	case KindTimestamp:
		w.WriteByte(byte(TagTimestamp))
		writeLE(w, uint64(v.TimeV))
	case KindDuration:
		w.WriteByte(byte(TagDuration))
		writeLE(w, uint64(v.DurV))
	default:
		return newErr(ErrInvalidTag, "unsupported kind %d", t.Kind)
	}
	return nil
}

func (c *Codec) decode(r *bytes.Reader, t AlgebraicType) (Value, error) {
	t, err := c.resolve(t)
	if err != nil {
		return Value{}, err
	}

	tagByte, err := r.ReadByte()
	if err != nil {
		return Value{}, newErr(ErrBufferTooSmall, "missing tag byte: %v", err)
	}
	tag := Tag(tagByte)

	switch t.Kind {
	case KindBool:
		switch tag {
		case TagBoolFalse:
			return VBool(false), nil
		case TagBoolTrue:
			return VBool(true), nil
		}
		return Value{}, expectTag(tag, "bool")
	case KindI8:
		if tag != TagI8 {
			return Value{}, expectTag(tag, "i8")
		}
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, newErr(ErrBufferTooSmall, "i8: %v", err)
		}
		return VI8(int8(b)), nil
	case KindU8:
		if tag != TagU8 {
			return Value{}, expectTag(tag, "u8")
		}
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, newErr(ErrBufferTooSmall, "u8: %v", err)
		}
		return VU8(b), nil
	case KindI16:
		if tag != TagI16 {
			return Value{}, expectTag(tag, "i16")
		}
		v, err := readLE16(r)
		if err != nil {
			return Value{}, err
		}
		return VI16(int16(v)), nil
	case KindU16:
		if tag != TagU16 {
			return Value{}, expectTag(tag, "u16")
		}
		v, err := readLE16(r)
		if err != nil {
			return Value{}, err
		}
		return VU16(v), nil
	case KindI32:
		if tag != TagI32 {
			return Value{}, expectTag(tag, "i32")
		}
		v, err := readLE32(r)
		if err != nil {
			return Value{}, err
		}
		return VI32(int32(v)), nil
	case KindU32:
		if tag != TagU32 {
			return Value{}, expectTag(tag, "u32")
		}
		v, err := readLE32(r)
		if err != nil {
			return Value{}, err
		}
		return VU32(v), nil
	case KindI64:
		if tag != TagI64 {
			return Value{}, expectTag(tag, "i64")
		}
		v, err := readLE64(r)
		if err != nil {
			return Value{}, err
		}
		return VI64(int64(v)), nil
	case KindU64:
		if tag != TagU64 {
			return Value{}, expectTag(tag, "u64")
		}
		v, err := readLE64(r)
		if err != nil {
			return Value{}, err
		}
		return VU64(v), nil
	case KindF32:
		if tag != TagF32 {
			return Value{}, expectTag(tag, "f32")
		}
		bits, err := readLE32(r)
		if err != nil {
			return Value{}, err
		}
		f := math.Float32frombits(bits)
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return Value{}, newErr(ErrInvalidFloat, "f32 NaN/Inf on read")
		}
		return VF32(f), nil
	case KindF64:
		if tag != TagF64 {
			return Value{}, expectTag(tag, "f64")
		}
		bits, err := readLE64(r)
		if err != nil {
			return Value{}, err
		}
		f := math.Float64frombits(bits)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, newErr(ErrInvalidFloat, "f64 NaN/Inf on read")
		}
		return VF64(f), nil
	case KindString:
		if tag != TagString {
			return Value{}, expectTag(tag, "string")
		}
		raw, err := readLenPrefixed(r, c.maxPayload())
		if err != nil {
			return Value{}, err
		}
		if !utf8.Valid(raw) {
			return Value{}, newErr(ErrInvalidUTF8, "string payload is not valid UTF-8")
		}
		return VString(string(raw)), nil
	case KindBytes:
		if tag != TagBytes {
			return Value{}, expectTag(tag, "bytes")
		}
		raw, err := readLenPrefixed(r, c.maxPayload())
		if err != nil {
			return Value{}, err
		}
		return VBytes(raw), nil
	case KindProduct:
		if tag != TagStruct {
			return Value{}, expectTag(tag, "struct")
		}
		fields := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			fv, err := c.decode(r, f.Type)
			if err != nil {
				return Value{}, err
			}
			fields[i] = fv
		}
		return VProduct(fields...), nil
	case KindSum:
		if tag != TagEnum {
			return Value{}, expectTag(tag, "enum")
		}
		idx, err := r.ReadByte()
		if err != nil {
			return Value{}, newErr(ErrBufferTooSmall, "enum tag: %v", err)
		}
		if int(idx) >= len(t.Variants) {
			return Value{}, newErr(ErrInvalidTag, "enum variant %d out of range", idx)
		}
		inner, err := c.decode(r, t.Variants[idx].Type)
		if err != nil {
			return Value{}, err
		}
		return VSum(idx, inner), nil
	case KindArray:
		if tag != TagArray {
			return Value{}, expectTag(tag, "array")
		}
		elems := make([]Value, t.ArrayLen)
		for i := 0; i < t.ArrayLen; i++ {
			ev, err := c.decode(r, *t.Elem)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return VArray(elems...), nil
	case KindList:
		if tag != TagList {
			return Value{}, expectTag(tag, "list")
		}
		n, err := readLE32(r)
		if err != nil {
			return Value{}, err
		}
		if n > c.maxPayload() {
			return Value{}, newErr(ErrTooLarge, "list length %d exceeds max payload", n)
		}
		elems := make([]Value, n)
		for i := uint32(0); i < n; i++ {
			ev, err := c.decode(r, *t.Elem)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return VList(elems...), nil
	case KindMap:
		if tag != TagMap {
			return Value{}, expectTag(tag, "map")
		}
		n, err := readLE32(r)
		if err != nil {
			return Value{}, err
		}
		if n > c.maxPayload() {
			return Value{}, newErr(ErrTooLarge, "map length %d exceeds max payload", n)
		}
		entries := make([]MapEntry, n)
		for i := uint32(0); i < n; i++ {
			k, err := c.decode(r, *t.Key)
			if err != nil {
				return Value{}, err
			}
			val, err := c.decode(r, *t.Elem)
			if err != nil {
				return Value{}, err
			}
			entries[i] = MapEntry{Key: k, Value: val}
		}
		return VMap(entries...), nil
	case KindOption:
		switch tag {
		case TagOptNone:
			return VOptionNone(), nil
		case TagOptSome:
			inner, err := c.decode(r, *t.Elem)
			if err != nil {
				return Value{}, err
			}
			return VOptionSome(inner), nil
		}
		return Value{}, expectTag(tag, "option")
	case KindIdentity:
		if tag != TagIdentity {
			return Value{}, expectTag(tag, "identity")
		}
		raw := make([]byte, ids.IdentitySize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return Value{}, newErr(ErrBufferTooSmall, "identity: %v", err)
		}
		id, err := ids.IdentityFromBytes(raw)
		if err != nil {
			return Value{}, newErr(ErrInvalidTag, "identity: %v", err)
		}
		return VIdentity(id), nil
	case KindAddress:
		if tag != TagAddress {
			return Value{}, expectTag(tag, "address")
		}
		raw := make([]byte, ids.ConnectionIDSize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return Value{}, newErr(ErrBufferTooSmall, "address: %v", err)
		}
		cid, err := ids.ConnectionIDFromBytes(raw)
		if err != nil {
			return Value{}, newErr(ErrInvalidTag, "address: %v", err)
		}
		return VAddress(cid), nil
	case KindTimestamp:
		if tag != TagTimestamp {
			return Value{}, expectTag(tag, "timestamp")
		}
		v, err := readLE64(r)
		if err != nil {
			return Value{}, err
		}
		return VTimestamp(ids.Timestamp(int64(v))), nil
	case KindDuration:
		if tag != TagDuration {
			return Value{}, expectTag(tag, "duration")
		}
		v, err := readLE64(r)
		if err != nil {
			return Value{}, err
		}
		return VDuration(ids.Duration(int64(v))), nil
	default:
		return Value{}, newErr(ErrInvalidTag, "unsupported kind %d", t.Kind)
	}
}

func expectTag(got Tag, want string) error {
	return newErr(ErrInvalidTag, "got tag %d, expected a %s tag", got, want)
}

func writeLE(w *bytes.Buffer, v interface{}) {
	switch x := v.(type) {
	case uint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], x)
		w.Write(b[:])
	case uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], x)
		w.Write(b[:])
	case uint64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], x)
		w.Write(b[:])
	}
}

func readLE16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, newErr(ErrBufferTooSmall, "u16: %v", err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readLE32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, newErr(ErrBufferTooSmall, "u32: %v", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readLE64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, newErr(ErrBufferTooSmall, "u64: %v", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readLenPrefixed(r *bytes.Reader, max uint32) ([]byte, error) {
	n, err := readLE32(r)
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, newErr(ErrTooLarge, "length %d exceeds max payload %d", n, max)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, newErr(ErrBufferTooSmall, "payload of %d bytes: %v", n, err)
	}
	return buf, nil
}
