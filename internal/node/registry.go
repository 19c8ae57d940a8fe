// Package node holds the fixed set of known sensor nodes and their last readings.
package node

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

const (
	// MaxNodes is capacity of every per-node arena.
	MaxNodes = 4
	MaxIdLen = 7
)

var DefaultIds = []string{"0001", "0002"}

// Slot is stable index of known node. Only Registry makes valid slots.
type Slot uint8

func (s Slot) Index() int { return int(s) }

type Registry struct {
	ids [MaxNodes]string
	n   int
}

// ValidId reports whether id may appear in wire protocol and registry.
func ValidId(id string) error {
	if id == "" {
		return errors.NotValidf("node id empty")
	}
	if len(id) > MaxIdLen {
		return errors.NotValidf("node id=%q longer than %d", id, MaxIdLen)
	}
	if i := strings.IndexFunc(id, func(r rune) bool { return r == '|' || r <= ' ' || r == 0x7f }); i != -1 {
		return errors.NotValidf("node id=%q char at %d", id, i)
	}
	return nil
}

func NewRegistry(ids []string) (*Registry, error) {
	if len(ids) == 0 {
		return nil, errors.NotValidf("node list empty")
	}
	if len(ids) > MaxNodes {
		return nil, errors.NotValidf("node list len=%d max=%d", len(ids), MaxNodes)
	}
	self := &Registry{n: len(ids)}
	for i, id := range ids {
		if err := ValidId(id); err != nil {
			return nil, errors.Annotatef(err, "nodes[%d]", i)
		}
		if _, ok := self.Resolve(id); ok {
			return nil, errors.NotValidf("node id=%s duplicate", id)
		}
		self.ids[i] = id
	}
	return self, nil
}

func MustRegistry(ids []string) *Registry {
	r, err := NewRegistry(ids)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve is linear scan with exact match; unknown id is normal outcome.
func (self *Registry) Resolve(id string) (Slot, bool) {
	for i := 0; i < self.n; i++ {
		if self.ids[i] == id {
			return Slot(i), true
		}
	}
	return 0, false
}

func (self *Registry) Len() int { return self.n }

func (self *Registry) Id(s Slot) string {
	if int(s) >= self.n {
		panic(fmt.Sprintf("code error node slot=%d registry len=%d", s, self.n))
	}
	return self.ids[s]
}

// Slots in configuration order.
func (self *Registry) Slots() []Slot {
	ss := make([]Slot, self.n)
	for i := range ss {
		ss[i] = Slot(i)
	}
	return ss
}

func (self *Registry) Ids() []string {
	return append([]string(nil), self.ids[:self.n]...)
}
