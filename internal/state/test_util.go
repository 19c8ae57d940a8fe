package state

import (
	"context"
	"os"
	"testing"

	"github.com/temoto/loragate/internal/link"
	"github.com/temoto/loragate/log2"
)

// NewTestContext builds Global from inline config with MockPort instead of serial device.
func NewTestContext(t testing.TB, confString string) (context.Context, *Global, *link.MockPort) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	var log *log2.Log
	if os.Getenv("loragate_test_log_stderr") == "1" {
		log = log2.NewStderr(log2.LDebug) // useful with panics
	} else {
		log = log2.NewTest(t, log2.LDebug)
	}
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log, nil)
	port := link.NewMockPort()
	g.Opener = func() (link.Port, error) { return port, nil }
	g.MustInit(ctx, MustReadConfig(log, fs, "test-inline"))
	return ctx, g, port
}
