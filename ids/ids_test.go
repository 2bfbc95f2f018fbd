package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityAnonymous(t *testing.T) {
	t.Parallel()

	var zero Identity
	assert.True(t, zero.IsAnonymous())

	id := IdentityFromPublicKey([]byte("pubkey"))
	assert.False(t, id.IsAnonymous())
	assert.Len(t, id.Bytes(), IdentitySize)
}

func TestConnectionIDHalves(t *testing.T) {
	t.Parallel()

	c := ConnectionIDFromHalves(0x0102030405060708, 0x1112131415161718)
	hi, lo := c.Halves()
	assert.Equal(t, uint64(0x0102030405060708), hi)
	assert.Equal(t, uint64(0x1112131415161718), lo)

	fresh := NewConnectionID()
	assert.False(t, fresh.IsZero())
}

func TestConnectionIDFromBytesRejectsWrongLength(t *testing.T) {
	t.Parallel()

	_, err := ConnectionIDFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRequestIDAllocatorWraps(t *testing.T) {
	t.Parallel()

	var a RequestIDAllocator
	a.next = reservedWrap - 1
	first := a.Next()
	second := a.Next()
	assert.Equal(t, RequestID(1), first)
	// first wraps back to 1; second continues from there, never repeating the just-issued id
	assert.NotEqual(t, first, second)
	assert.Less(t, uint32(second), reservedWrap)
}

func TestQueryIDAllocatorMonotonic(t *testing.T) {
	t.Parallel()

	var a QueryIDAllocator
	assert.Equal(t, QueryID(1), a.Next())
	assert.Equal(t, QueryID(2), a.Next())
}

func TestTimestampSaturatingAdd(t *testing.T) {
	t.Parallel()

	huge := Timestamp(maxMicros - 10)
	result := huge.Add(Duration(1000))
	assert.Equal(t, Timestamp(maxMicros), result)

	small := Timestamp(-maxMicros + 10)
	result2 := small.Add(Duration(-1000))
	assert.Equal(t, Timestamp(-maxMicros), result2)
}

func TestDurationScaleSaturates(t *testing.T) {
	t.Parallel()

	d := Duration(maxMicros / 2)
	scaled := d.Scale(10)
	assert.Equal(t, Duration(maxMicros), scaled)
}

func TestDurationFromStdRoundTrip(t *testing.T) {
	t.Parallel()

	d := DurationFromStd(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, d.Std())
}

func TestScheduleAtValidate(t *testing.T) {
	t.Parallel()

	valid := ScheduleEveryInterval(Duration(time.Second.Microseconds()))
	require.NoError(t, valid.Validate())

	invalid := ScheduleEveryInterval(0)
	require.Error(t, invalid.Validate())

	atForm := ScheduleAtTime(Now())
	require.NoError(t, atForm.Validate())
}

func TestValidateTokenShape(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateTokenShape("tok_abcdefghijklmnop"))
	require.Error(t, ValidateTokenShape("short"))
	require.Error(t, ValidateTokenShape("bad\x01token_with_control_byte"))
}

func TestParseIdentityTokenFallsBackWithoutJWTClaims(t *testing.T) {
	t.Parallel()

	id := IdentityFromPublicKey([]byte("k"))
	conn := NewConnectionID()
	tok, err := ParseIdentityToken(id, "tok_abcdefghijklmnop", conn)
	require.NoError(t, err)
	assert.Equal(t, id, tok.Identity)
	assert.False(t, tok.Expired(time.Now()))
}
