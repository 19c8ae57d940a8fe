package link

import (
	"io"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
)

const DefaultTxWait = 1 * time.Second

var ErrNoPort = errors.New("serial port is not open")

// Gate is the only path to the wire. At most one frame is written at a time,
// waiting for the channel is bounded.
type Gate struct {
	sem  chan struct{}
	wait time.Duration

	// w guarded by sem, wmu only orders SetWriter against Writer()
	wmu sync.Mutex
	w   io.Writer
}

func NewGate(w io.Writer, wait time.Duration) *Gate {
	if wait <= 0 {
		wait = DefaultTxWait
	}
	return &Gate{
		sem:  make(chan struct{}, 1),
		wait: wait,
		w:    w,
	}
}

func (self *Gate) acquire(wait time.Duration) bool {
	select {
	case self.sem <- struct{}{}:
		return true
	default:
	}
	tmr := time.NewTimer(wait)
	defer tmr.Stop()
	select {
	case self.sem <- struct{}{}:
		return true
	case <-tmr.C:
		return false
	}
}

func (self *Gate) release() { <-self.sem }

// Send writes b as one unit or returns error without writing anything.
// Timeout error satisfies errors.IsTimeout.
func (self *Gate) Send(b []byte) error {
	if !self.acquire(self.wait) {
		return errors.Timeoutf("tx gate wait=%v len=%d", self.wait, len(b))
	}
	defer self.release()

	w := self.Writer()
	if w == nil {
		return ErrNoPort
	}
	return errors.Annotate(helpers.WriteAll(w, b), "tx gate write")
}

// SetWriter swaps port after reopen. Waits for in-flight frame without limit.
func (self *Gate) SetWriter(w io.Writer) {
	self.sem <- struct{}{}
	defer self.release()
	helpers.WithLock(&self.wmu, func() { self.w = w })
}

func (self *Gate) Writer() io.Writer {
	self.wmu.Lock()
	defer self.wmu.Unlock()
	return self.w
}
