package node

import (
	"time"

	"github.com/temoto/loragate/helpers/atomic_clock"
	"github.com/temoto/loragate/helpers/atomic_float"
)

type Reading struct {
	Hum     float32
	Temp    float32
	Soil    float32
	Updated time.Time // zero until first DATA
}

type cell struct {
	hum     atomic_float.F32
	temp    atomic_float.F32
	soil    atomic_float.F32
	updated atomic_clock.Clock
}

// Readings is per-slot arena of last values.
// Single writer (receive loop), any number of readers.
// Reader may observe fields from two adjacent updates, this staleness is accepted.
type Readings struct {
	a [MaxNodes]cell
}

// Store last-write-wins. soil == nil keeps previous soil value.
func (self *Readings) Store(s Slot, hum, temp float32, soil *float32) {
	c := &self.a[s]
	c.hum.Store(hum)
	c.temp.Store(temp)
	if soil != nil {
		c.soil.Store(*soil)
	}
	c.updated.SetNow()
}

func (self *Readings) Get(s Slot) Reading {
	c := &self.a[s]
	return Reading{
		Hum:     c.hum.Load(),
		Temp:    c.temp.Load(),
		Soil:    c.soil.Load(),
		Updated: c.updated.Time(),
	}
}
