package format

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueAccessorsTolerateAbsentData(t *testing.T) {
	var v Value

	assert.False(t, v.Present())
	assert.False(t, v.Get("a").Present())
	assert.Nil(t, v.List())
	assert.Equal(t, 7.0, v.Path("a", "b").NumberOr(7))
	assert.Equal(t, "x", v.Get("s").TextOr("x"))
	assert.False(t, v.Bool())
}

func TestValueAccessorsReadDecodedJSON(t *testing.T) {
	var decoded any
	err := json.Unmarshal([]byte(`{"n": 2.5, "s": "hi", "b": true, "l": [1, 2], "o": {"k": "v"}, "empty": ""}`), &decoded)
	assert.NoError(t, err)
	v := Of(decoded)

	assert.Equal(t, 2.5, v.Get("n").NumberOr(0))
	assert.Equal(t, "hi", v.Get("s").TextOr(""))
	assert.True(t, v.Get("b").Bool())
	assert.Len(t, v.Get("l").List(), 2)
	assert.Equal(t, "v", v.Path("o", "k").TextOr(""))
	assert.Equal(t, "fallback", v.Get("empty").TextOr("fallback"))
	assert.Equal(t, 0.0, v.Get("s").NumberOr(0))
}

func TestOfNormalizesStructs(t *testing.T) {
	v := Of(struct {
		Price float64 `json:"price"`
	}{Price: 12})

	assert.Equal(t, 12.0, v.Get("price").NumberOr(0))
}

func TestNumberRendering(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"grouped fraction", Grouped(3500.5), "3,500.5"},
		{"grouped integer", Grouped(1000000), "1,000,000"},
		{"grouped rounds to three digits", Grouped(1234.56789), "1,234.568"},
		{"grouped negative", Grouped(-98765.4), "-98,765.4"},
		{"grouped negative zero", Grouped(-0.0001), "0"},
		{"plain", Plain(18.4), "18.4"},
		{"signed negative", Signed(-2.13), "-2.13"},
		{"signed positive", Signed(2), "+2.00"},
		{"signed zero", Signed(0), "+0.00"},
		{"percent", Percent(0.92), "92.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
