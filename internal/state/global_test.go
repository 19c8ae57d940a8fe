package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/loragate/internal/threshold"
	"github.com/temoto/loragate/log2"
)

func TestGetGlobal(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	ctx, g := NewContext(log, nil)
	assert.Equal(t, g, GetGlobal(ctx))
	assert.Panics(t, func() { GetGlobal(context.Background()) })
	assert.Panics(t, func() { GetGlobal(context.WithValue(context.Background(), ContextKey, "str")) })
}

func TestPersistReload(t *testing.T) {
	t.Parallel()

	conf := fmt.Sprintf(`%s
persist { enable = true root = "%s" }`, testSerial, t.TempDir())
	want := threshold.Target{Temp: 21.5, Hum: 44, Soil: 12.25, PeriodSec: 60}

	_, g1, _ := NewTestContext(t, conf)
	require.True(t, g1.Persist.Enabled())
	s, ok := g1.Registry.Resolve("0002")
	require.True(t, ok)
	require.NoError(t, g1.Thresholds.Set(s, want))

	_, g2, _ := NewTestContext(t, conf)
	s, _ = g2.Registry.Resolve("0002")
	assert.Equal(t, want, g2.Thresholds.Get(s))
	s, _ = g2.Registry.Resolve("0001")
	assert.Equal(t, threshold.DefaultTarget, g2.Thresholds.Get(s))
}

func TestRun(t *testing.T) {
	t.Parallel()

	ctx, g, port := NewTestContext(t, testSerial+`http { listen = "127.0.0.1:0" }`)
	errch := make(chan error, 1)
	go func() { errch <- g.Run(ctx) }()

	port.Push([]byte("SEND|0001\nCONFIG|0002\n"))
	assert.Eventually(t, func() bool {
		return port.Written() == "OK|0001\r\nCFG|0002|TempTh:30.0|HumTh:50.0|SoilTh:70.0\r\n"
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, g.Gateway.PortOpen())

	g.Stop()
	select {
	case err := <-errch:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, g.StopWait(time.Second))
}
