package protocol

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// buffer sizes nodes firmware expects
	ShortReplyCap = 32
	LongReplyCap  = 64
)

var ErrReplyTooLong = errors.New("reply too long")

// Reply is closed set: Ok, Ack, Cfg, NoChange.
type Reply interface {
	NodeId() string
	// Capacity is size of reply buffer, rendered frame must be shorter.
	Capacity() int
	appendTo(b []byte) []byte
}

type Ok struct{ Id string }
type Ack struct{ Id string }
type NoChange struct{ Id string }
type Cfg struct {
	Id   string
	Temp float32
	Hum  float32
	Soil float32
}

func (r Ok) NodeId() string       { return r.Id }
func (r Ack) NodeId() string      { return r.Id }
func (r NoChange) NodeId() string { return r.Id }
func (r Cfg) NodeId() string      { return r.Id }

func (Ok) Capacity() int       { return ShortReplyCap }
func (Ack) Capacity() int      { return ShortReplyCap }
func (NoChange) Capacity() int { return LongReplyCap }
func (Cfg) Capacity() int      { return LongReplyCap }

func (r Ok) appendTo(b []byte) []byte  { return fmt.Appendf(b, "OK|%s\r\n", r.Id) }
func (r Ack) appendTo(b []byte) []byte { return fmt.Appendf(b, "ACK|%s\r\n", r.Id) }
func (r NoChange) appendTo(b []byte) []byte {
	return fmt.Appendf(b, "NOCHANGEDATA|%s\r\n", r.Id)
}
func (r Cfg) appendTo(b []byte) []byte {
	return fmt.Appendf(b, "CFG|%s|TempTh:%.1f|HumTh:%.1f|SoilTh:%.1f\r\n", r.Id, r.Temp, r.Hum, r.Soil)
}

// Encode renders r into dst[:0]. When rendered frame would not fit reply capacity
// (including C string terminator) returns ErrReplyTooLong and frame must not be sent.
func Encode(dst []byte, r Reply) ([]byte, error) {
	b := r.appendTo(dst[:0])
	if len(b) >= r.Capacity() {
		return nil, errors.Annotatef(ErrReplyTooLong, "%T len=%d cap=%d", r, len(b), r.Capacity())
	}
	return b, nil
}

func String(r Reply) string {
	b, err := Encode(make([]byte, 0, LongReplyCap), r)
	if err != nil {
		return err.Error()
	}
	return string(b[:len(b)-2])
}
