package link

// Public API to easy create serial stubs to test your code.
import (
	"bytes"
	"io"
	"sync"
	"time"
)

// MockPort is in-memory Port. Push() feeds receive side, Written() shows wire.
// Read waits at most ReadTimeout and then returns (0, nil) like real driver.
type MockPort struct {
	ReadTimeout time.Duration

	rx        chan []byte
	pending   []byte
	closeOnce sync.Once
	closed    chan struct{}

	mu     sync.Mutex
	tx     bytes.Buffer
	writes int
	// WriteErr is returned by next Write calls when set
	WriteErr error
}

func NewMockPort() *MockPort {
	return &MockPort{
		ReadTimeout: 10 * time.Millisecond,
		rx:          make(chan []byte, 64),
		closed:      make(chan struct{}),
	}
}

func (self *MockPort) Push(b []byte) {
	c := make([]byte, len(b))
	copy(c, b)
	self.rx <- c
}

func (self *MockPort) Read(p []byte) (int, error) {
	if len(self.pending) == 0 {
		select {
		case b := <-self.rx:
			self.pending = b
		case <-self.closed:
			return 0, io.EOF
		case <-time.After(self.ReadTimeout):
			return 0, nil
		}
	}
	n := copy(p, self.pending)
	self.pending = self.pending[n:]
	return n, nil
}

func (self *MockPort) Write(p []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.WriteErr != nil {
		return 0, self.WriteErr
	}
	self.writes++
	return self.tx.Write(p)
}

func (self *MockPort) Close() error {
	self.closeOnce.Do(func() { close(self.closed) })
	return nil
}

func (self *MockPort) Written() string {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.tx.String()
}

func (self *MockPort) Writes() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.writes
}

func (self *MockPort) SetWriteErr(err error) {
	self.mu.Lock()
	self.WriteErr = err
	self.mu.Unlock()
}
