// Package atomic_float stores float32 in uint32 bits for lock-free
// single writer / many readers access.
package atomic_float

import (
	"math"
	"sync/atomic"
)

type F32 uint32

func (f *F32) Load() float32 {
	return math.Float32frombits(atomic.LoadUint32((*uint32)(f)))
}

func (f *F32) Store(new float32) {
	atomic.StoreUint32((*uint32)(f), math.Float32bits(new))
}

func (f *F32) Swap(new float32) (old float32) {
	return math.Float32frombits(atomic.SwapUint32((*uint32)(f), math.Float32bits(new)))
}
