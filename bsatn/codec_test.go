package bsatn

import (
	"testing"

	"github.com/riftdb/riftdb-go/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value, typ AlgebraicType) Value {
	t.Helper()
	c := NewCodec(nil)
	encoded, err := c.Encode(v, typ)
	require.NoError(t, err)
	decoded, err := c.Decode(encoded, typ)
	require.NoError(t, err)
	return decoded
}

func TestRoundTripPrimitives(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		v    Value
		t    AlgebraicType
	}{
		{"bool-true", VBool(true), Bool()},
		{"bool-false", VBool(false), Bool()},
		{"i8", VI8(-12), I8()},
		{"u8", VU8(200), U8()},
		{"i16", VI16(-1000), I16()},
		{"u16", VU16(60000), U16()},
		{"i32", VI32(-123456), I32()},
		{"u32", VU32(4000000000), U32()},
		{"i64", VI64(-123456789012), I64()},
		{"u64", VU64(18000000000000000000), U64()},
		{"f32", VF32(3.14), F32()},
		{"f64", VF64(2.718281828), F64()},
		{"string", VString("hello, riftdb"), String()},
		{"bytes", VBytes([]byte{1, 2, 3, 4}), Bytes()},
		{"identity", VIdentity(ids.IdentityFromPublicKey([]byte("k"))), Identity()},
		{"address", VAddress(ids.NewConnectionID()), Address()},
		{"timestamp", VTimestamp(ids.Now()), TimestampType()},
		{"duration", VDuration(ids.Duration(500)), DurationType()},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := roundTrip(t, tc.v, tc.t)
			assert.True(t, tc.v.Equal(got), "round trip mismatch for %s", tc.name)
		})
	}
}

func TestRoundTripProduct(t *testing.T) {
	t.Parallel()

	msgType := Product(
		Field{Name: "id", Type: U32()},
		Field{Name: "text", Type: String()},
	)
	v := VProduct(VU32(1), VString("a"))

	got := roundTrip(t, v, msgType)
	assert.True(t, v.Equal(got))
}

func TestRoundTripSum(t *testing.T) {
	t.Parallel()

	sumType := Sum(
		Variant{Name: "Every", Type: DurationType()},
		Variant{Name: "At", Type: TimestampType()},
	)
	v := VSum(1, VTimestamp(ids.Timestamp(42)))

	got := roundTrip(t, v, sumType)
	assert.True(t, v.Equal(got))
}

func TestRoundTripArrayListMapOption(t *testing.T) {
	t.Parallel()

	arrType := Array(U8(), 3)
	arrVal := VArray(VU8(1), VU8(2), VU8(3))
	assert.True(t, arrVal.Equal(roundTrip(t, arrVal, arrType)))

	listType := List(String())
	listVal := VList(VString("a"), VString("b"))
	assert.True(t, listVal.Equal(roundTrip(t, listVal, listType)))

	mapType := Map(String(), U32())
	mapVal := VMap(MapEntry{Key: VString("x"), Value: VU32(1)})
	assert.True(t, mapVal.Equal(roundTrip(t, mapVal, mapType)))

	optType := Option(String())
	assert.True(t, VOptionNone().Equal(roundTrip(t, VOptionNone(), optType)))
	some := VOptionSome(VString("present"))
	assert.True(t, some.Equal(roundTrip(t, some, optType)))
}

func TestNamedTypeRefViaRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("Point", Product(
		Field{Name: "x", Type: I32()},
		Field{Name: "y", Type: I32()},
	))
	c := NewCodec(reg)

	v := VProduct(VI32(1), VI32(2))
	encoded, err := c.Encode(v, Ref("Point"))
	require.NoError(t, err)
	decoded, err := c.Decode(encoded, Ref("Point"))
	require.NoError(t, err)
	assert.True(t, v.Equal(decoded))
}

func TestUnknownTypeRefFails(t *testing.T) {
	t.Parallel()

	c := NewCodec(NewRegistry())
	_, err := c.Encode(VI32(1), Ref("Missing"))
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnknownTypeRef, ce.Kind)
}

func TestInvalidTagOnDecode(t *testing.T) {
	t.Parallel()

	c := NewCodec(nil)
	encoded, err := c.Encode(VU32(5), U32())
	require.NoError(t, err)

	_, err = c.Decode(encoded, I32())
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidTag, ce.Kind)
}

func TestInvalidUTF8OnDecode(t *testing.T) {
	t.Parallel()

	c := NewCodec(nil)
	encoded, err := c.Encode(VBytes([]byte{0xff, 0xfe}), Bytes())
	require.NoError(t, err)
	// Rewrite the Bytes tag byte to String's tag so Decode reads invalid UTF-8.
	encoded[0] = byte(TagString)

	_, err = c.Decode(encoded, String())
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidUTF8, ce.Kind)
}

func TestTooLargeRejected(t *testing.T) {
	t.Parallel()

	c := &Codec{MaxPayload: 4}
	_, err := c.Encode(VString("way too long for four bytes"), String())
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTooLarge, ce.Kind)
}

func TestBufferTooSmallOnTruncatedInput(t *testing.T) {
	t.Parallel()

	c := NewCodec(nil)
	encoded, err := c.Encode(VU32(100), U32())
	require.NoError(t, err)

	_, err = c.Decode(encoded[:2], U32())
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrBufferTooSmall, ce.Kind)
}

func TestFloatRejectsNaNAndInf(t *testing.T) {
	t.Parallel()

	c := NewCodec(nil)
	_, err := c.Encode(VF64(nanValue()), F64())
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrInvalidFloat, ce.Kind)
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestIntValueOverflow(t *testing.T) {
	t.Parallel()

	_, err := IntValue(KindI8, 1000)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrOverflow, ce.Kind)

	v, err := IntValue(KindI8, 100)
	require.NoError(t, err)
	assert.Equal(t, int8(100), v.I8)
}
