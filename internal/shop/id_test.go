package shop

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshalNumberAndString(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`[101, "102", " 103 ", null]`), &ids))

	assert.Equal(t, []ID{"101", "102", "103", ""}, ids)
}

func TestIDUnmarshalRejectsObjects(t *testing.T) {
	var id ID
	err := json.Unmarshal([]byte(`{"id":1}`), &id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported JSON value")
}

func TestIDMarshalCanonicalIntegerAsNumber(t *testing.T) {
	data, err := json.Marshal([]ID{"42", "042", "sku-7", "-3"})
	require.NoError(t, err)

	assert.Equal(t, `[42,"042","sku-7",-3]`, string(data))
}

func TestIDNormalizesUnicode(t *testing.T) {
	composed := NewID("caf\u00e9")
	decomposed := NewID("cafe\u0301")

	assert.Equal(t, composed, decomposed)
	assert.True(t, ID("caf\u00e9").Equal(ID("cafe\u0301")))
}

func TestIDInt64(t *testing.T) {
	n, ok := ID("7").Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = ID("07").Int64()
	assert.False(t, ok)

	_, ok = ID("abc").Int64()
	assert.False(t, ok)
}

func TestContainsIDMixedForms(t *testing.T) {
	var selection []ID
	require.NoError(t, json.Unmarshal([]byte(`["1", 2]`), &selection))

	assert.True(t, ContainsID(selection, IDFromInt(1)))
	assert.True(t, ContainsID(selection, ID("2")))
	assert.False(t, ContainsID(selection, ID("3")))
}
