package helpers

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonFloat32(t *testing.T) {
	t.Parallel()

	v := struct {
		A JsonFloat32 `json:"a"`
		B JsonFloat32 `json:"b"`
		C JsonFloat32 `json:"c"`
		D JsonFloat32 `json:"d"`
	}{
		A: 23.25,
		B: JsonFloat32(math.NaN()),
		C: JsonFloat32(math.Inf(1)),
		D: JsonFloat32(math.Inf(-1)),
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":23.25,"b":null,"c":null,"d":null}`, string(b))
}
