package helpers

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sum float64

func (s *sum) Add(x float64) { *s += sum(x) }

func TestStatReader(t *testing.T) {
	t.Parallel()

	var counter sum
	s := NewStatReader(strings.NewReader(strings.Repeat(".", 1024)), &counter)
	assert.Equal(t, sum(0), counter)
	buf := make([]byte, 17)
	_, _ = s.Read(buf[:0])
	assert.Equal(t, sum(0), counter)
	_, _ = s.Read(buf[:5])
	assert.Equal(t, sum(5), counter)
	_, _ = s.Read(buf)
	assert.Equal(t, sum(22), counter)
}

func TestStatWriter(t *testing.T) {
	t.Parallel()

	var counter sum
	s := NewStatWriter(bytes.NewBuffer(nil), &counter)
	assert.Equal(t, sum(0), counter)
	buf := make([]byte, 17)
	_, _ = s.Write(buf[:0])
	assert.Equal(t, sum(0), counter)
	_, _ = s.Write(buf[:5])
	assert.Equal(t, sum(5), counter)
	_, _ = s.Write(buf)
	assert.Equal(t, sum(22), counter)
}

func TestIntSecondDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7*time.Second, IntSecondDefault(0, 7*time.Second))
	assert.Equal(t, 7*time.Second, IntSecondDefault(-3, 7*time.Second))
	assert.Equal(t, 2*time.Second, IntSecondDefault(2, 7*time.Second))
}
