package tele

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/log2"
	"github.com/temoto/spq"
)

type tele struct { //nolint:maligned
	config     Config
	log        *log2.Log
	ctx        context.Context
	transports []Transporter
	q          *spq.Queue
	retry      backoff.BackOff
	stat       stat
	stopCh     chan struct{}
	stopOnce   sync.Once
	workerDone chan struct{}
}

func New() Teler {
	return &tele{}
}

// NewWithTransporter is test entry, config transport switches are ignored.
func NewWithTransporter(trans ...Transporter) Teler {
	return &tele{transports: trans}
}

func (self *tele) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.config = config
	self.log = log
	self.ctx = ctx
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.config.Enabled {
		return nil
	}
	if self.config.PersistPath == "" {
		return errors.NotValidf("tele enabled but persist_path=empty")
	}

	// test code sets .transports
	if self.transports == nil { // production path
		if config.Mqtt.Enabled {
			self.transports = append(self.transports, &transportMqtt{})
		}
		if config.Influx.Enabled {
			self.transports = append(self.transports, &transportInflux{})
		}
	}
	if len(self.transports) == 0 {
		return errors.NotValidf("tele enabled but no transport")
	}
	errs := make([]error, 0)
	for _, t := range self.transports {
		if err := t.Init(ctx, log, config); err != nil {
			errs = append(errs, errors.Annotatef(err, "tele transport=%s", t.Name()))
		}
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = helpers.IntSecondDefault(self.config.RetryMaxSec, 60*time.Second)
	bo.MaxElapsedTime = 0
	self.retry = bo

	var err error
	self.q, err = spq.Open(self.config.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}
	self.stopCh = make(chan struct{})
	self.workerDone = make(chan struct{})
	go self.qworker()
	return nil
}

func (self *tele) Enabled() bool { return self.q != nil }

func (self *tele) Stat() Stat { return self.stat.get() }

// Close stops delivery, undelivered readings stay in queue for next start.
func (self *tele) Close() {
	if self.q == nil {
		return
	}
	self.stopOnce.Do(func() {
		close(self.stopCh)
		if err := self.q.Close(); err != nil {
			self.log.Errorf("tele queue close err=%v", err)
		}
		<-self.workerDone
		for _, t := range self.transports {
			t.Close()
		}
	})
}

func (self *tele) Reading(r Reading) error {
	if self.q == nil {
		return nil
	}
	if r.Time == 0 {
		r.Time = time.Now().UnixNano()
	}
	if err := self.q.MarshalPush(&r); err != nil {
		return errors.Annotatef(err, "tele queue push node=%s", r.Node)
	}
	atomic.AddUint64(&self.stat.queued, 1)
	return nil
}

func (self *tele) qworker() {
	defer close(self.workerDone)
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			// success path
			b := box.Bytes()
			del, err := self.qhandle(b)
			if err != nil {
				self.log.Errorf("tele qhandle b=%x err=%v", b, err)
			}
			if del {
				self.retry.Reset()
				if err = self.q.Delete(box); err != nil {
					self.log.Errorf("tele qhandle Delete b=%x err=%v", b, err)
				}
				continue
			}
			atomic.AddUint64(&self.stat.retried, 1)
			if err = self.q.DeletePush(box); err != nil {
				self.log.Errorf("tele qhandle DeletePush b=%x err=%v", b, err)
			}
			if !self.sleep(self.retry.NextBackOff()) {
				return
			}

		case spq.ErrClosed:
			select {
			case <-self.stopCh: // success path
			default:
				self.log.Errorf("CRITICAL tele spq closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele spq err=%v", err)
			if !self.sleep(self.retry.NextBackOff()) {
				return
			}
		}
	}
}

func (self *tele) sleep(d time.Duration) bool {
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return true
	case <-self.stopCh:
		return false
	case <-self.ctx.Done():
		return false
	}
}

// qhandle returns true when message is done with, either delivered or hopeless.
func (self *tele) qhandle(b []byte) (bool, error) {
	if len(b) == 0 {
		atomic.AddUint64(&self.stat.dropped, 1)
		return true, errors.Errorf("tele spq peek=empty")
	}
	var r Reading
	if err := r.UnmarshalBinary(b); err != nil {
		atomic.AddUint64(&self.stat.dropped, 1)
		return true, err // retry will not help
	}

	errs := make([]error, 0)
	hopeless := 0
	for _, t := range self.transports {
		ctx, cancel := context.WithTimeout(self.ctx, helpers.IntSecondDefault(self.config.SendTimeoutSec, 10*time.Second))
		err := t.Send(ctx, &r)
		cancel()
		if err != nil {
			errs = append(errs, err)
			if errors.IsNotValid(errors.Cause(err)) {
				hopeless++
			}
		}
	}
	if err := helpers.FoldErrors(errs); err != nil {
		// NotValid from every failed transport means message is undeliverable
		if hopeless == len(errs) {
			atomic.AddUint64(&self.stat.dropped, 1)
			return true, err
		}
		return false, err
	}
	atomic.AddUint64(&self.stat.sent, 1)
	self.log.Debugf("tele sent node=%s", r.Node)
	return true, nil
}
