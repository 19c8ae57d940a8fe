package threshold

import (
	"sync"

	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/internal/protocol"
)

type sent struct {
	ok   bool
	temp float32
	hum  float32
	soil float32
}

// Syncer pushes target to node only when it differs from what was last put on wire.
type Syncer struct {
	reg   *node.Registry
	store *Store
	// only receive loop calls Sync, mutex is for Sent readers
	mu    sync.Mutex
	cache [node.MaxNodes]sent
}

func NewSyncer(reg *node.Registry, store *Store) *Syncer {
	return &Syncer{reg: reg, store: store}
}

// Decide compares target with sent cache, no side effects.
// Equality is exact: cache holds precisely the values which were transmitted.
func (self *Syncer) Decide(s node.Slot) protocol.Reply {
	id := self.reg.Id(s)
	t := self.store.Get(s)
	self.mu.Lock()
	c := self.cache[s]
	self.mu.Unlock()
	if c.ok && c.temp == t.Temp && c.hum == t.Hum && c.soil == t.Soil {
		return protocol.NoChange{Id: id}
	}
	return protocol.Cfg{Id: id, Temp: t.Temp, Hum: t.Hum, Soil: t.Soil}
}

// Sync decides and transmits reply. Cache is updated only after tx succeeded,
// so failed push is retried on next CONFIG request.
func (self *Syncer) Sync(s node.Slot, tx func(protocol.Reply) error) (protocol.Reply, error) {
	r := self.Decide(s)
	if err := tx(r); err != nil {
		return r, err
	}
	if cfg, ok := r.(protocol.Cfg); ok {
		self.mu.Lock()
		self.cache[s] = sent{ok: true, temp: cfg.Temp, hum: cfg.Hum, soil: cfg.Soil}
		self.mu.Unlock()
	}
	return r, nil
}

// Sent returns last transmitted thresholds, ok=false if never.
func (self *Syncer) Sent(s node.Slot) (Target, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	c := self.cache[s]
	return Target{Temp: c.temp, Hum: c.hum, Soil: c.soil}, c.ok
}
