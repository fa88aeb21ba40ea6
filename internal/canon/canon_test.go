package canon

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsObjectKeys(t *testing.T) {
	v := map[string]interface{}{
		"zebra": 1,
		"alpha": 2,
		"mike":  3,
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mike":3,"zebra":1}`, string(out))
}

func TestMarshal_PreservesArrayOrder(t *testing.T) {
	v := map[string]interface{}{
		"list": []interface{}{3, 1, 2},
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"list":[3,1,2]}`, string(out))
}

func TestMarshal_Literals(t *testing.T) {
	v := map[string]interface{}{
		"n": nil,
		"t": true,
		"f": false,
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"f":false,"n":null,"t":true}`, string(out))
}

func TestMarshal_RejectsNonFiniteNumbers(t *testing.T) {
	_, err := Marshal(map[string]interface{}{"x": math.Inf(1)})
	assert.Error(t, err)
}

func TestMarshal_NestedStructuresRoundTripStably(t *testing.T) {
	type inner struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	type outer struct {
		Z inner             `json:"z"`
		M map[string]string `json:"m"`
	}

	v := outer{
		Z: inner{B: 2, A: "x"},
		M: map[string]string{"k2": "v2", "k1": "v1"},
	}

	first, err := Marshal(v)
	require.NoError(t, err)
	second, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, `{"m":{"k1":"v1","k2":"v2"},"z":{"a":"x","b":2}}`, string(first))
}

func TestMarshal_StructurallyEqualValuesYieldByteEqualOutput(t *testing.T) {
	a := map[string]interface{}{"one": 1, "two": "hello"}
	b := map[string]interface{}{"two": "hello", "one": 1}

	outA, err := Marshal(a)
	require.NoError(t, err)
	outB, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, outA, outB)
}

func TestMarshal_StableUnderRoundTrip(t *testing.T) {
	v := map[string]interface{}{"a": []interface{}{1, 2, "x"}, "b": map[string]interface{}{"c": 1}}

	first, err := Marshal(v)
	require.NoError(t, err)

	var reparsed interface{}
	require.NoError(t, json.Unmarshal(first, &reparsed))

	second, err := Marshal(reparsed)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
