package link

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/errors"
	"github.com/temoto/loragate/log2"
	"go.bug.st/serial"
)

const (
	DefaultBaud        = 9600
	DefaultReadTimeout = 100 * time.Millisecond
	// ReadChunk is max bytes taken from driver per receive loop iteration.
	ReadChunk = 64
)

// Port is half-duplex serial channel shared by all nodes.
// Read must return (0, nil) when read timeout expires without data.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

type Opener func() (Port, error)

type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// OpenSerial configures 8N1 at given baud with bounded read wait.
func OpenSerial(c SerialConfig) (Port, error) {
	if c.Device == "" {
		return nil, errors.NotValidf("serial device empty")
	}
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	mode := &serial.Mode{
		BaudRate: c.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(c.Device, mode)
	if err != nil {
		return nil, errors.Annotatef(err, "serial open device=%s baud=%d", c.Device, c.Baud)
	}
	if err = p.SetReadTimeout(c.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, errors.Annotatef(err, "serial set read timeout device=%s", c.Device)
	}
	return p, nil
}

// OpenRetry calls open with exponential backoff until success or ctx is done.
func OpenRetry(ctx context.Context, log *log2.Log, open Opener) (Port, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	var port Port
	op := func() error {
		p, err := open()
		if err != nil {
			return err
		}
		port = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Errorf("link open err=%v retry in %v", err, next)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, errors.Annotate(err, "link open")
	}
	return port, nil
}
