package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/internal/api"
	"github.com/temoto/loragate/internal/gateway"
	"github.com/temoto/loragate/internal/link"
	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/internal/tele"
	"github.com/temoto/loragate/internal/threshold"
	"github.com/temoto/loragate/log2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Log          *log2.Log

	Registry   *node.Registry
	Thresholds *threshold.Store
	Persist    threshold.Persist
	Gate       *link.Gate
	Gateway    *gateway.Gateway
	Metrics    *gateway.Metrics
	Tele       tele.Teler
	Api        *api.Server
	// nil means open Config.Serial device
	Opener link.Opener

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log, teler tele.Teler) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	if teler == nil {
		teler = tele.Noop{}
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  teler,
	}
	ctx := context.WithValue(context.Background(), ContextKey, g)
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	if err := cfg.Validate(); err != nil {
		return errors.Annotate(err, "config")
	}
	level, _ := cfg.LogLevel()
	g.Log.SetLevel(level)

	var err error
	g.Registry, err = node.NewRegistry(cfg.NodeIds())
	if err != nil {
		return errors.Annotate(err, "nodes")
	}
	g.Thresholds = threshold.NewStore(g.Registry, cfg.DefaultTarget(), g.Log)
	if err = g.initPersist(); err != nil {
		return err
	}

	if cfg.Tele.PersistPath == "" && cfg.Persist.Root != "" {
		cfg.Tele.PersistPath = filepath.Join(cfg.Persist.Root, "tele")
	}
	// Tele gets g.Log clone before SetErrorFunc, so tele log errors are not counted twice
	if err = g.Tele.Init(ctx, g.Log.Clone(level), cfg.Tele); err != nil {
		g.Tele = tele.Noop{}
		return errors.Annotate(err, "tele init")
	}
	g.Metrics = gateway.NewMetrics()
	g.Log.SetErrorFunc(g.Metrics.ErrorFunc)
	g.Metrics.WatchTele(g.Tele)

	if g.Opener == nil {
		sc := cfg.SerialConfig()
		g.Opener = func() (link.Port, error) { return link.OpenSerial(sc) }
	}
	// port is attached by Gateway.Run
	g.Gate = link.NewGate(nil, cfg.TxTimeout())
	g.Gateway = gateway.New(g.Log, gateway.Config{
		LineMax:  cfg.Serial.LineMax,
		LogDebug: cfg.Serial.LogDebug,
	}, g.Registry, g.Thresholds, g.Gate, g.Tele, g.Metrics)
	g.Api = api.New(g.Log, g.Gateway, &g.Persist)
	return nil
}

func (g *Global) initPersist() error {
	pc := &g.Config.Persist
	if err := g.Persist.Init("thresholds", g.Thresholds, pc.Root, pc.Enable, g.Log); err != nil {
		return errors.Annotate(err, "persist init")
	}
	if !g.Persist.Enabled() {
		return nil
	}
	found, err := g.Persist.Load()
	switch {
	case err != nil:
		// config defaults are good enough to keep nodes working
		g.Log.Errorf("thresholds load err=%v, using defaults", err)
	case !found:
		g.Log.Infof("thresholds not saved yet, using defaults")
	}
	g.Thresholds.SetSaveHook(g.Persist.Store)
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Fatal(err)
	}
}

// Run blocks until Stop or fatal error in gateway or api.
func (g *Global) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-g.Alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()

	const tasks = 2
	errch := make(chan error, tasks)
	wg := sync.WaitGroup{}
	wg.Add(tasks)
	run := func(name string, f func() error) {
		defer wg.Done()
		if !g.Alive.Add(1) {
			return
		}
		defer g.Alive.Done()
		err := f()
		if err != nil && errors.Cause(err) != context.Canceled {
			errch <- errors.Annotate(err, name)
			g.Stop()
		}
	}
	go run("gateway", func() error { return g.Gateway.Run(ctx, g.Opener) })
	go run("api", func() error { return g.Api.Run(ctx, g.Config.Http.Listen) })
	wg.Wait()
	close(errch)

	g.Tele.Close()
	errs := make([]error, 0, tasks)
	for err := range errch {
		errs = append(errs, err)
	}
	return helpers.FoldErrors(errs)
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(errors.ErrorStack(err))
		os.Exit(1)
	}
}

func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}
