package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualRequiresSameKind(t *testing.T) {
	assert.True(t, Int64(1).Equal(Int64(1)))
	assert.False(t, Int64(1).Equal(Uint64(1)))
	assert.False(t, Int64(1).Equal(Float64(1)))
	assert.True(t, Null.Equal(Value{}))
}

func TestFromAnyScalars(t *testing.T) {
	cases := []struct {
		in   any
		want Value
	}{
		{nil, Null},
		{true, Bool(true)},
		{"hi", String("hi")},
		{42, Int64(42)},
		{int64(42), Int64(42)},
		{uint64(42), Uint64(42)},
		{3.5, Float64(3.5)},
	}
	for _, tc := range cases {
		got, err := FromAny(tc.in)
		require.NoError(t, err)
		assert.True(t, tc.want.Equal(got), "FromAny(%v) = %v, want %v", tc.in, got, tc.want)
	}
}

func TestFromAnyRejectsComposites(t *testing.T) {
	_, err := FromAny(map[string]any{"a": 1})
	assert.Error(t, err)
	_, err = FromAny([]any{1, 2})
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	cases := []Value{Null, Bool(true), Bool(false), Int64(-7), Float64(3.25), String("hello")}
	for _, v := range cases {
		data, err := v.MarshalJSON()
		require.NoError(t, err)

		var out Value
		require.NoError(t, out.UnmarshalJSON(data))
		assert.True(t, v.Equal(out), "round trip %v -> %s -> %v", v, data, out)
	}
}

func TestUnmarshalJSONIntegralFloatBecomesInt64(t *testing.T) {
	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("10")))
	assert.Equal(t, KindInt64, v.Kind)
	assert.Equal(t, int64(10), v.I)

	var f Value
	require.NoError(t, f.UnmarshalJSON([]byte("10.5")))
	assert.Equal(t, KindFloat64, f.Kind)
}

func TestByteSizeAccountsForStringLength(t *testing.T) {
	short := String("hi")
	long := String("a longer string value")
	assert.Less(t, short.ByteSize(), long.ByteSize())
	assert.Greater(t, Int64(1).ByteSize(), 0)
}
