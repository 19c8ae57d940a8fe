package state

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/loragate/helpers"
	"github.com/temoto/loragate/internal/link"
	"github.com/temoto/loragate/internal/node"
	"github.com/temoto/loragate/internal/tele"
	"github.com/temoto/loragate/internal/threshold"
	"github.com/temoto/loragate/log2"
)

const EnvLogLevel = "LORAGATE_LOG_LEVEL"

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Log struct {
		Level string `hcl:"level"`
	} `hcl:"log"`

	Serial struct { //nolint:maligned
		Device        string `hcl:"device"`
		Baud          int    `hcl:"baud"`
		ReadTimeoutMs int    `hcl:"read_timeout_ms"`
		LineMax       int    `hcl:"line_max"`
		TxTimeoutMs   int    `hcl:"tx_timeout_ms"`
		LogDebug      bool   `hcl:"log_debug"`
	} `hcl:"serial"`

	Nodes []string `hcl:"nodes"`

	// defaults for every node until changed through API
	Thresholds struct {
		Temp      *float32 `hcl:"temp"`
		Hum       *float32 `hcl:"hum"`
		Soil      *float32 `hcl:"soil"`
		PeriodSec *int32   `hcl:"period_sec"`
	} `hcl:"thresholds"`

	Persist struct {
		Root   string `hcl:"root"`
		Enable bool   `hcl:"enable"`
	} `hcl:"persist"`

	Http struct {
		Listen string `hcl:"listen"`
	} `hcl:"http"`

	Tele tele.Config `hcl:"tele"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// LogLevel from environment overrides config.
func (c *Config) LogLevel() (log2.Level, error) {
	s := c.Log.Level
	if env := os.Getenv(EnvLogLevel); env != "" {
		s = env
	}
	level, ok := log2.ParseLevel(s)
	if !ok {
		return level, errors.NotValidf("config log.level=%q", s)
	}
	return level, nil
}

func (c *Config) NodeIds() []string {
	if len(c.Nodes) == 0 {
		return node.DefaultIds
	}
	return c.Nodes
}

func (c *Config) DefaultTarget() threshold.Target {
	t := threshold.DefaultTarget
	th := &c.Thresholds
	if th.Temp != nil {
		t.Temp = *th.Temp
	}
	if th.Hum != nil {
		t.Hum = *th.Hum
	}
	if th.Soil != nil {
		t.Soil = *th.Soil
	}
	if th.PeriodSec != nil {
		t.PeriodSec = *th.PeriodSec
	}
	return t
}

func (c *Config) SerialConfig() link.SerialConfig {
	return link.SerialConfig{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond,
	}
}

func (c *Config) TxTimeout() time.Duration {
	if c.Serial.TxTimeoutMs <= 0 {
		return link.DefaultTxWait
	}
	return time.Duration(c.Serial.TxTimeoutMs) * time.Millisecond
}

// Validate catches errors which are cheaper to report before opening devices.
func (c *Config) Validate() error {
	errs := make([]error, 0)
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Serial.Device == "" {
		errs = append(errs, errors.NotValidf("config serial.device empty"))
	}
	if c.Serial.LineMax != 0 && c.Serial.LineMax < 16 {
		errs = append(errs, errors.NotValidf("config serial.line_max=%d", c.Serial.LineMax))
	}
	if _, err := node.NewRegistry(c.NodeIds()); err != nil {
		errs = append(errs, errors.Annotate(err, "config nodes"))
	}
	if c.Persist.Enable && c.Persist.Root == "" {
		errs = append(errs, errors.NotValidf("config persist.enable but root empty"))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
