package maybe

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybe(t *testing.T) {
	s := Some(1.5)
	assert.True(t, s.IsValid())
	assert.Equal(t, 1.5, s.Value())
	assert.Equal(t, 1.5, s.ValueOrDefault(9))

	n := None[float64]()
	assert.False(t, n.IsValid())
	assert.Equal(t, 9.0, n.ValueOrDefault(9))
	assert.Nil(t, n.Ptr())

	v := 3
	assert.Equal(t, Some(3), FromPtr(&v))
	assert.Equal(t, None[int](), FromPtr[int](nil))
	assert.Equal(t, 3, *Some(3).Ptr())
}

func TestMaybeJSON(t *testing.T) {
	type doc struct {
		A Maybe[float64] `json:"a"`
		B Maybe[int]     `json:"b"`
	}

	b, err := json.Marshal(doc{A: Some(0.5), B: None[int]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":0.5,"b":null}`, string(b))

	var d doc
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":7}`), &d))
	assert.False(t, d.A.IsValid())
	assert.Equal(t, Some(7), d.B)
}
