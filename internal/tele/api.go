// Package tele delivers accepted node readings upstream.
//
// Contract:
//   - Init fails only with invalid config, network issues ignored
//   - Reading blocks at most for disk write,
//     network may be slow or absent, messages are delivered in background
//   - readings are delivered at least once, duplicates are possible
package tele

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/log2"
	"github.com/vmihailenco/msgpack/v5"
)

type Teler interface {
	Init(ctx context.Context, log *log2.Log, config Config) error
	Reading(r Reading) error
	Close()
	Stat() Stat
	Enabled() bool
}

type Reading struct {
	Node string  `json:"node" msgpack:"n"`
	Hum  float32 `json:"hum" msgpack:"h"`
	Temp float32 `json:"temp" msgpack:"t"`
	Soil float32 `json:"soil" msgpack:"s"`
	// unix nanoseconds when gateway accepted reading
	Time int64 `json:"time" msgpack:"ts"`
}

// readingWire has no methods, msgpack would call Reading.MarshalBinary again.
type readingWire Reading

func (r *Reading) MarshalBinary() ([]byte, error) { return msgpack.Marshal((*readingWire)(r)) }
func (r *Reading) UnmarshalBinary(b []byte) error {
	return errors.Annotate(msgpack.Unmarshal(b, (*readingWire)(r)), "tele reading decode")
}

func (r *Reading) At() time.Time { return time.Unix(0, r.Time) }

// MarshalJSON is uplink payload. Nodes may report nan or inf, those become null.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Node string              `json:"node"`
		Hum  helpers.JsonFloat32 `json:"hum"`
		Temp helpers.JsonFloat32 `json:"temp"`
		Soil helpers.JsonFloat32 `json:"soil"`
		Time int64               `json:"time"`
	}{r.Node, helpers.JsonFloat32(r.Hum), helpers.JsonFloat32(r.Temp), helpers.JsonFloat32(r.Soil), r.Time})
}

type Stat struct {
	Queued  uint64
	Sent    uint64
	Retried uint64
	Dropped uint64
}

type stat struct{ queued, sent, retried, dropped uint64 }

func (s *stat) get() Stat {
	return Stat{
		Queued:  atomic.LoadUint64(&s.queued),
		Sent:    atomic.LoadUint64(&s.sent),
		Retried: atomic.LoadUint64(&s.retried),
		Dropped: atomic.LoadUint64(&s.dropped),
	}
}

type Noop struct{}

var _ Teler = Noop{}

func (Noop) Init(context.Context, *log2.Log, Config) error { return nil }
func (Noop) Reading(Reading) error                         { return nil }
func (Noop) Close()                                        {}
func (Noop) Stat() Stat                                    { return Stat{} }
func (Noop) Enabled() bool                                 { return false }
