package threshold

import (
	"encoding"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/sony/gobreaker"
	"github.com/temoto/extremofile"
	"github.com/temoto/loragate/log2"
)

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Persist binds Stater{Load,Store} to crash safe file storage.
// Writes go through circuit breaker so broken disk does not stall every config change.
type Persist struct {
	sync.Mutex
	log     *log2.Log
	tag     string
	target  Stater
	storage storage
	cb      *gobreaker.CircuitBreaker
}

func (p *Persist) Init(tag string, target Stater, root string, enabled bool, log *log2.Log) error {
	p.tag = tag
	p.log = log
	if !enabled {
		p.log.Debugf("persist %s disabled", p.tag)
		return nil
	}
	if root == "" {
		return errors.NotValidf("persist %s enabled but root=empty", p.tag)
	}
	if target == nil {
		panic("code error persist target nil")
	}
	p.target = target
	p.storage = extremofile.New(extremofile.Config{
		Dir:      filepath.Join(root, tag),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "persist-" + tag,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Infof("persist %s breaker %s -> %s", name, from, to)
		},
	})
	return nil
}

func (p *Persist) Enabled() bool { return p.storage != nil }

// Load returns (false, nil) when storage is empty, target keeps defaults.
func (p *Persist) Load() (bool, error) {
	if p.tag == "" {
		panic("code error persist must call .Init() first")
	}
	if p.storage == nil {
		return false, nil
	}
	p.Lock()
	defer p.Unlock()
	tbegin := time.Now()
	b, err := p.storage.Read()
	p.log.Debugf("persist %s storage.read duration=%v", p.tag, time.Since(tbegin))
	if b == nil {
		if err == nil {
			p.log.Infof("persist %s not found, using defaults", p.tag)
		}
		return false, errors.Annotatef(err, "persist %s Load", p.tag)
	}
	if err != nil {
		p.log.Errorf("persist %s ignore non-critical storage err=%v", p.tag, err)
	}
	err = p.target.UnmarshalBinary(b)
	return err == nil, errors.Annotatef(err, "persist %s Load", p.tag)
}

func (p *Persist) Store() error {
	if p.tag == "" {
		panic("code error persist must call .Init() first")
	}
	if p.storage == nil {
		return nil
	}
	_, err := p.cb.Execute(func() (interface{}, error) {
		p.Lock()
		defer p.Unlock()
		b, err := p.target.MarshalBinary()
		if err != nil {
			return nil, err
		}
		tbegin := time.Now()
		_, err = p.storage.Write(b)
		p.log.Debugf("persist %s storage.write duration=%v", p.tag, time.Since(tbegin))
		return nil, err
	})
	return errors.Annotatef(err, "persist %s Store", p.tag)
}

// BreakerState is "closed" when storage is healthy or persist disabled.
func (p *Persist) BreakerState() string {
	if p.cb == nil {
		return gobreaker.StateClosed.String()
	}
	return p.cb.State().String()
}
