package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"null", `null`},
		{"bool", `true`},
		{"posint", `42`},
		{"negint", `-7`},
		{"float", `3.5`},
		{"string", `"hello"`},
		{"array", `[1,"two",false,null]`},
		{"object", `{"a":1,"b":{"c":"d"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Document
			require.NoError(t, json.Unmarshal([]byte(tc.in), &d))

			out, err := json.Marshal(d)
			require.NoError(t, err)

			var want, got interface{}
			require.NoError(t, json.Unmarshal([]byte(tc.in), &want))
			require.NoError(t, json.Unmarshal(out, &got))
			assert.Equal(t, want, got)
		})
	}
}

func TestDocumentFromAnyPreservesIntVsFloat(t *testing.T) {
	d, err := DocumentFromAny(float64(10))
	require.NoError(t, err)
	assert.Equal(t, DocumentPosInt, d.Kind)

	d, err = DocumentFromAny(float64(-10))
	require.NoError(t, err)
	assert.Equal(t, DocumentNegInt, d.Kind)

	d, err = DocumentFromAny(10.5)
	require.NoError(t, err)
	assert.Equal(t, DocumentFloat, d.Kind)
}
