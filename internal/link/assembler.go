package link

import (
	"github.com/juju/errors"
)

const DefaultLineMax = 256

var ErrLineTooLong = errors.New("line too long")

// LineAssembler splits unframed serial stream into '\n' terminated lines.
// Push style: Feed never blocks and keeps partial line between calls.
// Not safe for concurrent use, owned by receive loop.
type LineAssembler struct {
	buf []byte
	max int
}

// NewLineAssembler with capacity like C buffer: at most capacity-1 content bytes.
func NewLineAssembler(capacity int) *LineAssembler {
	if capacity <= 1 {
		capacity = DefaultLineMax
	}
	return &LineAssembler{
		buf: make([]byte, 0, capacity),
		max: capacity,
	}
}

func (self *LineAssembler) Cap() int { return self.max }
func (self *LineAssembler) Len() int { return len(self.buf) }
func (self *LineAssembler) Reset()   { self.buf = self.buf[:0] }

// Feed calls fn(line, nil) for every complete line, terminator excluded.
// On overflow calls fn(discarded, ErrLineTooLong); the byte which did not fit
// is dropped too and assembly restarts from empty buffer.
// line aliases internal buffer and is only valid until fn returns.
func (self *LineAssembler) Feed(p []byte, fn func(line []byte, err error)) {
	for _, b := range p {
		if b == '\n' {
			fn(self.buf, nil)
			self.buf = self.buf[:0]
			continue
		}
		if len(self.buf) >= self.max-1 {
			fn(self.buf, ErrLineTooLong)
			self.buf = self.buf[:0]
			continue
		}
		self.buf = append(self.buf, b)
	}
}
