package state

import (
	"context"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/temoto/loragate/internal/threshold"
	"github.com/temoto/loragate/log2"
)

const testSerial = `serial { device = "/dev/null" }
`

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, context.Context)
		expectErr string
	}
	cases := []Case{
		{"empty", "", nil, "config serial.device empty not valid"},

		{"defaults", testSerial, func(t testing.TB, ctx context.Context) {
			g := GetGlobal(ctx)
			assert.Equal(t, []string{"0001", "0002"}, g.Registry.Ids())
			s, ok := g.Registry.Resolve("0002")
			assert.True(t, ok)
			assert.Equal(t, threshold.DefaultTarget, g.Thresholds.Get(s))
			assert.Equal(t, "/dev/null", g.Config.SerialConfig().Device)
			assert.False(t, g.Persist.Enabled())
			assert.False(t, g.Tele.Enabled())
		}, ""},

		{"serial", `serial {
	device = "/dev/ttyUSB1"
	baud = 115200
	read_timeout_ms = 250
	tx_timeout_ms = 300
	line_max = 128
}`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				sc := g.Config.SerialConfig()
				assert.Equal(t, "/dev/ttyUSB1", sc.Device)
				assert.Equal(t, 115200, sc.Baud)
				assert.Equal(t, "250ms", sc.ReadTimeout.String())
				assert.Equal(t, "300ms", g.Config.TxTimeout().String())
				assert.Equal(t, 128, g.Config.Serial.LineMax)
			}, ""},

		{"nodes", testSerial + `nodes = ["A1", "B2", "C3"]`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, 3, g.Registry.Len())
				_, ok := g.Registry.Resolve("0001")
				assert.False(t, ok)
				_, ok = g.Registry.Resolve("C3")
				assert.True(t, ok)
			}, ""},

		{"thresholds-partial", testSerial + `thresholds { temp = 25.5 period_sec = 90 }`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				s, _ := g.Registry.Resolve("0001")
				target := g.Thresholds.Get(s)
				assert.Equal(t, float32(25.5), target.Temp)
				assert.Equal(t, threshold.DefaultTarget.Hum, target.Hum)
				assert.Equal(t, threshold.DefaultTarget.Soil, target.Soil)
				assert.Equal(t, int32(90), target.PeriodSec)
			}, ""},

		{"log-level", testSerial + `log { level = "warning" }`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.True(t, g.Log.Enabled(log2.LWarning))
				assert.False(t, g.Log.Enabled(log2.LInfo))
			}, ""},

		{"include-normalize", testSerial + `include "./empty" {}`, nil, ""},

		{"include-optional", `
include "serial-usb0" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, "/dev/ttyUSB0", g.Config.Serial.Device)
			}, ""},

		{"include-overwrites", testSerial + `include "serial-usb0" {}`,
			func(t testing.TB, ctx context.Context) {
				g := GetGlobal(ctx)
				assert.Equal(t, "/dev/ttyUSB0", g.Config.Serial.Device)
			}, ""},

		{"include-required", testSerial + `include "non-exist" {}`, nil, "config required name=non-exist"},
		{"error-syntax", `hello`, nil, "key 'hello' expected start of object"},
		{"error-include-loop", `include "include-loop" {}`, nil, "config include loop: from=include-loop include=include-loop"},
		{"error-nodes-many", testSerial + `nodes = ["1", "2", "3", "4", "5"]`, nil, "config nodes"},
		{"error-node-id", testSerial + `nodes = ["12345678"]`, nil, "config nodes"},
		{"error-log-level", testSerial + `log { level = "loud" }`, nil, `config log.level="loud" not valid`},
		{"error-line-max", `serial { device = "/dev/null" line_max = 3 }`, nil, "config serial.line_max=3 not valid"},
		{"error-persist-root", testSerial + `persist { enable = true }`, nil, "config persist.enable but root empty"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)
			ctx, g := NewContext(log, nil)

			fs := NewMockFullReader(map[string]string{
				"test-inline":  c.input,
				"empty":        "",
				"serial-usb0":  `serial { device = "/dev/ttyUSB0" }`,
				"error-syntax": "hello",
				"include-loop": `include "include-loop" {}`,
			})
			cfg, err := ReadConfig(log, fs, "test-inline")
			if err == nil {
				err = g.Init(ctx, cfg)
			}
			if c.expectErr == "" {
				if err != nil {
					t.Fatalf("error expected=nil actual='%v'", errors.ErrorStack(err))
				}
				if c.check != nil {
					c.check(t, ctx)
				}
			} else {
				if err == nil || !strings.Contains(err.Error(), c.expectErr) {
					t.Fatalf("error expected='%s' actual='%v'", c.expectErr, err)
				}
			}
		}
	}
	for _, c := range cases {
		t.Run(c.name, mkCheck(c))
	}
}

func TestLogLevelEnv(t *testing.T) {
	// not Parallel, changes environment
	t.Setenv(EnvLogLevel, "debug")
	c := &Config{}
	c.Log.Level = "info"
	level, err := c.LogLevel()
	assert.NoError(t, err)
	assert.Equal(t, log2.LDebug, level)
}

func TestFunctionalBundled(t *testing.T) {
	// not Parallel
	t.Logf("this test needs OS open|read|stat access to file `../../loragate.hcl`")

	log := log2.NewTest(t, log2.LDebug)
	c := MustReadConfig(log, NewOsFullReader(), "../../loragate.hcl")
	assert.NoError(t, c.Validate())
}
