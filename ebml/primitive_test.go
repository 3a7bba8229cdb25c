package ebml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 255, 256, 65535, 1 << 40}
	for _, v := range values {
		encoded := EncodeUint(v)
		assert.Equal(t, v, DecodeUint(encoded))
	}
}

func TestDecodeUintEmptyIsZero(t *testing.T) {
	assert.Equal(t, uint64(0), DecodeUint(nil))
}

func TestIntRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, -128, 32767, -32768, 1 << 30, -(1 << 30)}
	for _, v := range values {
		encoded := EncodeInt(v)
		assert.Equal(t, v, DecodeInt(encoded))
	}
}

func TestDecodeIntEmptyIsZero(t *testing.T) {
	assert.Equal(t, int64(0), DecodeInt(nil))
}

func TestFloatRoundTrip(t *testing.T) {
	got, err := DecodeFloat(EncodeFloat(3.5))
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got, 1e-9)
}

func TestDecodeFloatZeroSize(t *testing.T) {
	v, err := DecodeFloat(nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), v)
}

func TestDecodeFloatInvalidSize(t *testing.T) {
	_, err := DecodeFloat([]byte{0x01, 0x02, 0x03})
	require.ErrorIs(t, err, ErrInvalidFloatSize)
}

func TestDecodeASCIICutsAtFirstNUL(t *testing.T) {
	got := DecodeASCII([]byte("hello\x00world"), nil)
	assert.Equal(t, "hello", got)
}

func TestDecodeASCIIReplacesNonPrintable(t *testing.T) {
	var warned string
	got := DecodeASCII([]byte{'a', 0xFF, 'b'}, func(msg string) { warned = msg })
	assert.Equal(t, "a?b", got)
	assert.NotEmpty(t, warned)
}

func TestEncodeASCIIPadsAndTruncates(t *testing.T) {
	assert.Equal(t, []byte("ab\x00\x00"), EncodeASCII("ab", 4))
	assert.Equal(t, []byte("ab"), EncodeASCII("abcd", 2))
}

func TestDecodeUTF8CutsAtFirstNUL(t *testing.T) {
	got, err := DecodeUTF8([]byte("héllo\x00junk"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", got)
}

func TestDecodeUTF8Invalid(t *testing.T) {
	_, err := DecodeUTF8([]byte{0xFF, 0xFE})
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestDateRoundTrip(t *testing.T) {
	want := time.Date(2020, time.March, 15, 1, 2, 3, 0, time.UTC)
	got, err := DecodeDate(EncodeDate(want))
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestDecodeDateWrongSize(t *testing.T) {
	_, err := DecodeDate([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestDecodeVoidSynthesizesFF(t *testing.T) {
	v := DecodeVoid(3)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, v)
}

func TestEncodeVoidIsZeroFilled(t *testing.T) {
	v := EncodeVoid(3)
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, v)
}

func TestBinaryIsPassthrough(t *testing.T) {
	data := []byte{1, 2, 3}
	assert.Equal(t, data, DecodeBinary(data))
	assert.Equal(t, data, EncodeBinary(data))
}
