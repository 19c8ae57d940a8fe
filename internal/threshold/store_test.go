package threshold

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/log2"
)

func TestStoreSetHook(t *testing.T) {
	t.Parallel()

	reg := node.MustRegistry([]string{"0001", "0002"})
	st := NewStore(reg, DefaultTarget, log2.NewTest(t, log2.LDebug))
	saved := 0
	st.SetSaveHook(func() error { saved++; return nil })

	s, _ := reg.Resolve("0002")
	want := Target{Temp: 1, Hum: 2, Soil: 3, PeriodSec: 4}
	require.NoError(t, st.Set(s, want))
	assert.Equal(t, want, st.Get(s))
	assert.Equal(t, 1, saved)

	st.SetSaveHook(func() error { return fmt.Errorf("disk full") })
	err := st.Set(s, DefaultTarget)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, DefaultTarget, st.Get(s), "value applied despite save error")

	assert.Equal(t, []Entry{
		{Id: "0001", Target: DefaultTarget},
		{Id: "0002", Target: DefaultTarget},
	}, st.Snapshot())
}

func TestStoreBinary(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	src := NewStore(node.MustRegistry([]string{"0001", "0002", "0003"}), DefaultTarget, log)
	require.NoError(t, src.Set(2, Target{Temp: 21.5, Hum: 40, Soil: 10, PeriodSec: 60}))
	b, err := src.MarshalBinary()
	require.NoError(t, err)

	// different slot order, one node removed, one added
	reg := node.MustRegistry([]string{"0003", "0009", "0001"})
	dst := NewStore(reg, Target{PeriodSec: 1}, log)
	require.NoError(t, dst.UnmarshalBinary(b))
	assert.Equal(t, Target{Temp: 21.5, Hum: 40, Soil: 10, PeriodSec: 60}, dst.Get(0))
	assert.Equal(t, Target{PeriodSec: 1}, dst.Get(1))
	assert.Equal(t, DefaultTarget, dst.Get(2))

	assert.Error(t, dst.UnmarshalBinary([]byte("garbage")))
}
