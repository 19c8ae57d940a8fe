// Package gateway runs receive loop: serial bytes to lines to commands to replies.
package gateway

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/internal/link"
	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/internal/protocol"
	"github.com/temoto/loragate/internal/tele"
	"github.com/temoto/loragate/internal/threshold"
	"github.com/temoto/loragate/log2"
)

type Config struct {
	LineMax  int
	LogDebug bool
}

type Gateway struct {
	log      *log2.Log
	reg      *node.Registry
	readings node.Readings
	store    *threshold.Store
	syncer   *threshold.Syncer
	gate     *link.Gate
	tele     tele.Teler
	metrics  *Metrics

	// owned by receive loop
	asm    *link.LineAssembler
	port   link.Port
	rx     io.Reader
	txbuf  [protocol.LongReplyCap]byte
	isOpen int32
}

func New(log *log2.Log, config Config, reg *node.Registry, store *threshold.Store, gate *link.Gate, t tele.Teler, m *Metrics) *Gateway {
	if t == nil {
		t = tele.Noop{}
	}
	if m == nil {
		m = NewMetrics()
	}
	if config.LogDebug {
		log = log.Clone(log2.LDebug)
	}
	return &Gateway{
		log:     log,
		reg:     reg,
		store:   store,
		syncer:  threshold.NewSyncer(reg, store),
		gate:    gate,
		tele:    t,
		metrics: m,
		asm:     link.NewLineAssembler(config.LineMax),
	}
}

func (self *Gateway) Nodes() *node.Registry               { return self.reg }
func (self *Gateway) Reading(s node.Slot) node.Reading    { return self.readings.Get(s) }
func (self *Gateway) Target(s node.Slot) threshold.Target { return self.store.Get(s) }
func (self *Gateway) Thresholds() *threshold.Store        { return self.store }
func (self *Gateway) Syncer() *threshold.Syncer           { return self.syncer }
func (self *Gateway) Metrics() *Metrics                   { return self.metrics }
func (self *Gateway) Tele() tele.Teler                    { return self.tele }
func (self *Gateway) PortOpen() bool                      { return atomic.LoadInt32(&self.isOpen) == 1 }

// Run owns serial port until ctx is done. Read errors close port and reopen
// it with backoff, no single bad input stops the loop.
func (self *Gateway) Run(ctx context.Context, open link.Opener) error {
	defer self.closePort()
	buf := make([]byte, link.ReadChunk)
	for ctx.Err() == nil {
		if self.port == nil {
			p, err := link.OpenRetry(ctx, self.log, open)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return errors.Trace(err)
			}
			self.setPort(p)
			self.log.Infof("gateway link open")
		}

		n, err := self.rx.Read(buf)
		if n > 0 {
			self.Feed(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			self.log.Errorf("gateway rx err=%v, reopen", err)
			self.closePort()
			self.metrics.reopens.Inc()
			continue
		}
		if n == 0 {
			self.log.Debugf("gateway rx idle")
		}
	}
	return nil
}

func (self *Gateway) setPort(p link.Port) {
	self.port = p
	self.rx = helpers.NewStatReader(p, self.metrics.rxBytes)
	self.gate.SetWriter(helpers.NewStatWriter(p, self.metrics.txBytes))
	self.asm.Reset()
	atomic.StoreInt32(&self.isOpen, 1)
}

func (self *Gateway) closePort() {
	if self.port == nil {
		return
	}
	atomic.StoreInt32(&self.isOpen, 0)
	self.gate.SetWriter(nil)
	if err := self.port.Close(); err != nil {
		self.log.Errorf("gateway link close err=%v", err)
	}
	self.port = nil
	self.rx = nil
}

// Feed pushes received bytes through line assembler and dispatches every complete line.
func (self *Gateway) Feed(b []byte) {
	self.asm.Feed(b, self.onLine)
}

func (self *Gateway) onLine(line []byte, err error) {
	if err != nil {
		self.metrics.drops.WithLabelValues(dropLineTooLong).Inc()
		self.log.Errorf("gateway rx %v, dropped %d bytes", err, len(line)+1)
		return
	}
	_ = self.Dispatch(line)
}

// Dispatch handles one line. Every drop is logged and counted here,
// returned error is for callers that need outcome.
func (self *Gateway) Dispatch(line []byte) error {
	cmd, err := protocol.Parse(line)
	if err != nil {
		if err == protocol.ErrUnknownCommand {
			self.metrics.drops.WithLabelValues(dropUnknownCommand).Inc()
			self.log.Infof("gateway rx unknown line=%q", line)
			return err
		}
		self.metrics.drops.WithLabelValues(dropMalformed).Inc()
		self.log.Infof("gateway rx malformed line=%q err=%v", line, err)
		return err
	}
	id := cmd.NodeId()
	s, ok := self.reg.Resolve(id)
	if !ok {
		self.metrics.drops.WithLabelValues(dropUnknownNode).Inc()
		self.log.Infof("gateway rx unknown node=%s", id)
		return errors.NotFoundf("node=%s", id)
	}

	switch c := cmd.(type) {
	case protocol.Send:
		self.metrics.commands.WithLabelValues("send").Inc()
		self.log.Debugf("gateway node=%s send request", id)
		return self.transmit(protocol.Ok{Id: id})

	case protocol.Data:
		self.metrics.commands.WithLabelValues("data").Inc()
		self.onData(s, c)
		return self.transmit(protocol.Ack{Id: id})

	case protocol.Config:
		self.metrics.commands.WithLabelValues("config").Inc()
		r, err := self.syncer.Sync(s, self.transmit)
		if err == nil {
			self.log.Infof("gateway node=%s config reply=%s", id, protocol.String(r))
		}
		return err
	}
	panic(fmt.Sprintf("code error gateway unhandled command %T", cmd))
}

func (self *Gateway) onData(s node.Slot, c protocol.Data) {
	var soil *float32
	if c.HasSoil {
		soil = &c.Soil
	}
	self.readings.Store(s, c.Hum, c.Temp, soil)
	r := self.readings.Get(s)
	self.metrics.reading.WithLabelValues(c.Id, "humidity").Set(float64(r.Hum))
	self.metrics.reading.WithLabelValues(c.Id, "temperature").Set(float64(r.Temp))
	self.metrics.reading.WithLabelValues(c.Id, "soil").Set(float64(r.Soil))
	self.log.Infof("gateway node=%s hum=%.1f temp=%.1f soil=%.1f", c.Id, r.Hum, r.Temp, r.Soil)

	err := self.tele.Reading(tele.Reading{
		Node: c.Id,
		Hum:  r.Hum,
		Temp: r.Temp,
		Soil: r.Soil,
		Time: r.Updated.UnixNano(),
	})
	if err != nil {
		self.log.Errorf("gateway node=%s tele err=%v", c.Id, err)
	}
}

// transmit encodes reply into fixed buffer and sends through gate.
func (self *Gateway) transmit(r protocol.Reply) error {
	b, err := protocol.Encode(self.txbuf[:0], r)
	if err != nil {
		self.metrics.drops.WithLabelValues(dropEncode).Inc()
		self.log.Errorf("gateway encode node=%s err=%v", r.NodeId(), err)
		return err
	}
	if err = self.gate.Send(b); err != nil {
		reason := dropTxError
		if errors.IsTimeout(errors.Cause(err)) {
			reason = dropTxTimeout
		}
		self.metrics.drops.WithLabelValues(reason).Inc()
		self.log.Errorf("gateway tx node=%s err=%v", r.NodeId(), err)
		return err
	}
	self.metrics.replies.WithLabelValues(replyKind(r)).Inc()
	return nil
}

func replyKind(r protocol.Reply) string {
	switch r.(type) {
	case protocol.Ok:
		return "ok"
	case protocol.Ack:
		return "ack"
	case protocol.Cfg:
		return "cfg"
	case protocol.NoChange:
		return "nochange"
	}
	return "unknown"
}
