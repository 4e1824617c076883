package chrometrace

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAny_Conversions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   interface{}
		kind Kind
	}{
		{"nil", nil, KindNull},
		{"string", "s", KindString},
		{"int", 3, KindInt64},
		{"int8", int8(-3), KindInt64},
		{"uint32", uint32(3), KindUint64},
		{"float32", float32(1.5), KindFloat64},
		{"bool", true, KindBool},
		{"duration", time.Second, KindString},
		{"error", errors.New("boom"), KindString},
		{"struct", struct{ A int }{1}, KindString},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.kind, Any(tc.in).Kind())
		})
	}
}

func TestValue_MarshalNonFinite(t *testing.T) {
	t.Parallel()
	args := Args{
		F("nan", math.NaN()),
		F("pos", math.Inf(1)),
		F("neg", math.Inf(-1)),
		F("ok", 1.25),
	}
	data, err := json.Marshal(args)
	require.NoError(t, err)
	assert.Equal(t, `{"nan":"NaN","pos":"+Inf","neg":"-Inf","ok":1.25}`, string(data))
}

func TestValue_MarshalNested(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal(Args{
		F("obj", Object(F("inner", "v"), F("n", nil))),
		F("big", uint64(math.MaxUint64)),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"obj":{"inner":"v","n":null},"big":18446744073709551615}`, string(data))
}

func TestValue_AsInt64(t *testing.T) {
	t.Parallel()
	i, ok := String("42").AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	i, ok = Float64(7.9).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = Float64(math.NaN()).AsInt64()
	assert.False(t, ok)
	_, ok = Uint64(math.MaxUint64).AsInt64()
	assert.False(t, ok)
	_, ok = String("seven").AsInt64()
	assert.False(t, ok)
}

func TestArgs_Get(t *testing.T) {
	t.Parallel()
	args := Args{F("a", 1), F("a", 2)}
	v, ok := args.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int())
	_, ok = args.Get("missing")
	assert.False(t, ok)
}
