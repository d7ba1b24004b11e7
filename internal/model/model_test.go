package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	decomposed := "cafe\u0301"
	precomposed := "caf\u00e9"

	assert.Equal(t, NormalizeKey(precomposed), NormalizeKey("  "+decomposed+"\t"))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestCartKey_Normalized(t *testing.T) {
	a := CartLine{ProductID: " p1 ", Size: "M"}
	b := CartLine{ProductID: "p1", Size: "M "}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "p1/M", a.Key().String())
}

func TestCartLine_Validate(t *testing.T) {
	valid := CartLine{ProductID: "p1", Size: "M", Price: 10, Quantity: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		line CartLine
	}{
		{"empty id", CartLine{ProductID: " ", Quantity: 1}},
		{"negative price", CartLine{ProductID: "p", Price: -1, Quantity: 1}},
		{"zero quantity", CartLine{ProductID: "p", Quantity: 0}},
		{"negative quantity", CartLine{ProductID: "p", Quantity: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.line.Validate(), ErrInvalidCartLine)
		})
	}
}

func TestCartLine_Subtotal(t *testing.T) {
	l := CartLine{Price: 2.5, Quantity: 4}
	assert.Equal(t, 10.0, l.Subtotal())
}

func TestFavoriteEntry_JSONIsBareString(t *testing.T) {
	data, err := json.Marshal([]FavoriteEntry{{ProductID: "a"}, {ProductID: "b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var back []FavoriteEntry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"a", "b"}, FavoriteKeys(back))

	var bad FavoriteEntry
	assert.ErrorIs(t, json.Unmarshal([]byte(`42`), &bad), ErrInvalidFavorite)
}

func TestIdentity_Present(t *testing.T) {
	assert.False(t, NoIdentity.Present())
	assert.False(t, Identity("  ").Present())
	assert.True(t, Identity("user-1").Present())
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"zebra": "z", "apple": 1, "mango": true})
	require.NoError(t, err)
	assert.Equal(t, `{"apple":1,"mango":true,"zebra":"z"}`, string(got))
}

func TestMarshalCanonical_Struct(t *testing.T) {
	got, err := MarshalCanonical(CartLine{ProductID: "p<1>", Size: "M", Price: 19.5, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t,
		`{"color":"","id":"p<1>","image":"","name":"","price":19.5,"quantity":2,"size":"M"}`,
		string(got))
}

func TestMarshalCanonical_RejectsNull(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"a": nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_EscapesControlOnly(t *testing.T) {
	got, err := MarshalCanonical("a\"b\\c\n\u0001&")
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\n\u0001&"`, string(got))
}

func TestDigest_StableAndDomainSeparated(t *testing.T) {
	items := []FavoriteEntry{{ProductID: "a"}}

	d1, err := SnapshotDigest(items)
	require.NoError(t, err)
	d2, err := SnapshotDigest([]FavoriteEntry{{ProductID: "a"}})
	require.NoError(t, err)
	d3, err := Digest(DomainJournal, items)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
	assert.Len(t, d1, 64)
}
