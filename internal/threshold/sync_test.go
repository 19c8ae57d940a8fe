package threshold

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/internal/protocol"
	"github.com/temoto/loragate/log2"
)

func newTestSyncer(t testing.TB) (*node.Registry, *Store, *Syncer) {
	reg := node.MustRegistry(node.DefaultIds)
	store := NewStore(reg, DefaultTarget, log2.NewTest(t, log2.LDebug))
	return reg, store, NewSyncer(reg, store)
}

func TestSyncIdempotent(t *testing.T) {
	t.Parallel()

	reg, _, sy := newTestSyncer(t)
	s, _ := reg.Resolve("0001")
	var wire []string
	tx := func(r protocol.Reply) error { wire = append(wire, protocol.String(r)); return nil }

	_, ok := sy.Sent(s)
	assert.False(t, ok)

	r, err := sy.Sync(s, tx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Cfg{Id: "0001", Temp: 30, Hum: 50, Soil: 70}, r)
	sent, ok := sy.Sent(s)
	assert.True(t, ok)
	assert.Equal(t, Target{Temp: 30, Hum: 50, Soil: 70}, sent)

	r, err = sy.Sync(s, tx)
	require.NoError(t, err)
	assert.Equal(t, protocol.NoChange{Id: "0001"}, r)
	sent2, _ := sy.Sent(s)
	assert.Equal(t, sent, sent2)

	assert.Equal(t, []string{
		"CFG|0001|TempTh:30.0|HumTh:50.0|SoilTh:70.0",
		"NOCHANGEDATA|0001",
	}, wire)

	// other node has independent cache
	s2, _ := reg.Resolve("0002")
	assert.IsType(t, protocol.Cfg{}, sy.Decide(s2))
}

func TestSyncTemperatureChange(t *testing.T) {
	t.Parallel()

	reg, store, sy := newTestSyncer(t)
	s, _ := reg.Resolve("0002")
	tx := func(protocol.Reply) error { return nil }
	_, err := sy.Sync(s, tx)
	require.NoError(t, err)

	target := store.Get(s)
	target.Temp = 27.5
	require.NoError(t, store.Set(s, target))

	r, err := sy.Sync(s, tx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Cfg{Id: "0002", Temp: 27.5, Hum: 50, Soil: 70}, r)
	sent, _ := sy.Sent(s)
	assert.Equal(t, Target{Temp: 27.5, Hum: 50, Soil: 70}, sent)

	// period is not part of CFG frame
	target.PeriodSec = 99
	require.NoError(t, store.Set(s, target))
	assert.Equal(t, protocol.NoChange{Id: "0002"}, sy.Decide(s))
}

func TestSyncTxFailureRetries(t *testing.T) {
	t.Parallel()

	reg, _, sy := newTestSyncer(t)
	s, _ := reg.Resolve("0001")
	fail := func(protocol.Reply) error { return fmt.Errorf("tx gate wait=1s timeout") }

	r, err := sy.Sync(s, fail)
	require.Error(t, err)
	assert.IsType(t, protocol.Cfg{}, r)
	_, ok := sy.Sent(s)
	assert.False(t, ok, "cache must stay stale")

	r, err = sy.Sync(s, func(protocol.Reply) error { return nil })
	require.NoError(t, err)
	assert.IsType(t, protocol.Cfg{}, r, "push retried")
	_, ok = sy.Sent(s)
	assert.True(t, ok)
}
