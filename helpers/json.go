package helpers

import (
	"encoding/json"
	"math"
)

// JsonFloat32 encodes NaN and +-Inf as null, encoding/json refuses them.
type JsonFloat32 float32

func (f JsonFloat32) MarshalJSON() ([]byte, error) {
	if v := float64(f); math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float32(f))
}
