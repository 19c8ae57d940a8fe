// Package threshold keeps desired per-node alert configuration,
// persists it and decides when a node must receive it again.
package threshold

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/log2"
	"github.com/vmihailenco/msgpack/v5"
)

type Target struct {
	Temp      float32
	Hum       float32
	Soil      float32
	PeriodSec int32
}

var DefaultTarget = Target{Temp: 30, Hum: 50, Soil: 70, PeriodSec: 40}

// record is persistent form, keyed by node id so slot order may change between runs.
type record struct {
	Id        string  `msgpack:"id"`
	Temp      float32 `msgpack:"temp_th"`
	Hum       float32 `msgpack:"hum_th"`
	Soil      float32 `msgpack:"soil_th"`
	PeriodSec int32   `msgpack:"period_sec"`
}

type SaveFunc func() error

// Store is guarded cell over per-slot targets.
// Written by configuration layer, read by receive loop.
type Store struct {
	mu   sync.RWMutex
	log  *log2.Log
	reg  *node.Registry
	a    [node.MaxNodes]Target
	save SaveFunc
}

func NewStore(reg *node.Registry, def Target, log *log2.Log) *Store {
	self := &Store{reg: reg, log: log}
	for _, s := range reg.Slots() {
		self.a[s] = def
	}
	return self
}

// SetSaveHook installs function called after every Set, outside of lock.
func (self *Store) SetSaveHook(f SaveFunc) {
	helpers.WithLock(&self.mu, func() { self.save = f })
}

func (self *Store) Get(s node.Slot) (t Target) {
	helpers.WithRLock(&self.mu, func() { t = self.a[s] })
	return
}

// Set applies new target immediately. Returned error is only from save hook,
// new value stays in effect regardless.
func (self *Store) Set(s node.Slot, t Target) error {
	var save SaveFunc
	helpers.WithLock(&self.mu, func() {
		self.a[s] = t
		save = self.save
	})
	self.log.Infof("threshold set node=%s temp=%.1f hum=%.1f soil=%.1f period=%d",
		self.reg.Id(s), t.Temp, t.Hum, t.Soil, t.PeriodSec)
	if save == nil {
		return nil
	}
	return errors.Annotatef(save(), "threshold save node=%s", self.reg.Id(s))
}

type Entry struct {
	Id string
	Target
}

// Snapshot in registry order.
func (self *Store) Snapshot() []Entry {
	self.mu.RLock()
	defer self.mu.RUnlock()
	es := make([]Entry, 0, self.reg.Len())
	for _, s := range self.reg.Slots() {
		es = append(es, Entry{Id: self.reg.Id(s), Target: self.a[s]})
	}
	return es
}

func (self *Store) MarshalBinary() ([]byte, error) {
	es := self.Snapshot()
	rs := make([]record, len(es))
	for i, e := range es {
		rs[i] = record{Id: e.Id, Temp: e.Temp, Hum: e.Hum, Soil: e.Soil, PeriodSec: e.PeriodSec}
	}
	b, err := msgpack.Marshal(rs)
	return b, errors.Annotate(err, "threshold marshal")
}

// UnmarshalBinary replaces targets of known nodes, others keep current value.
func (self *Store) UnmarshalBinary(b []byte) error {
	var rs []record
	if err := msgpack.Unmarshal(b, &rs); err != nil {
		return errors.Annotate(err, "threshold unmarshal")
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, r := range rs {
		s, ok := self.reg.Resolve(r.Id)
		if !ok {
			self.log.Infof("threshold stored node=%s not configured, ignore", r.Id)
			continue
		}
		self.a[s] = Target{Temp: r.Temp, Hum: r.Hum, Soil: r.Soil, PeriodSec: r.PeriodSec}
	}
	return nil
}
