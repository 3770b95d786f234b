package model

import (
	"io"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	StoreDriverMemory = "memory"
	StoreDriverSQLite = "sqlite"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version    int        `json:"version" yaml:"version"` // fixed 0 for now
	Serve      Serve      `json:"serve" yaml:"serve"`
	Plugin     Plugin     `json:"plugin" yaml:"plugin"`
	Store      Store      `json:"store" yaml:"store"`
	Callback   Callback   `json:"callback" yaml:"callback"`
	Retention  Retention  `json:"retention" yaml:"retention"`
	Events     *Events    `json:"events,omitempty" yaml:"events,omitempty"` // nil => lifecycle events disabled
	Transforms Transforms `json:"transforms" yaml:"transforms"`
}

// Serve holds the HTTP listener settings.
type Serve struct {
	Listen  string `json:"listen" yaml:"listen"`
	Verbose bool   `json:"verbose" yaml:"verbose"`
}

// Plugin identity reported by the manifest endpoint.
type Plugin struct {
	Name string `json:"name" yaml:"name"`
}

// Store selects the backing of the job and secret registries.
type Store struct {
	Driver string `json:"driver" yaml:"driver"`                 // "memory" | "sqlite"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"` // required when Driver == "sqlite"
}

// Callback settings for outbound webhook deliveries.
type Callback struct {
	Timeout string `json:"timeout" yaml:"timeout"` // duration, e.g. "10s"
}

// Retention of terminal job records.
type Retention struct {
	MaxAge   string   `json:"max_age" yaml:"max_age"` // duration, e.g. "24h"
	Schedule Schedule `json:"schedule" yaml:"schedule"`
}

// Schedule is a tagged union: exactly one of Cron or Every drives the
// retention sweeper.
type Schedule struct {
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`   // 5-field cron expression or @macro
	Every string `json:"every,omitempty" yaml:"every,omitempty"` // duration, e.g. "10m"
}

// Events enables the NATS lifecycle publisher when URL is set.
type Events struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// Transforms carries per-transform tuning.
type Transforms struct {
	Geoip     Geoip     `json:"geoip" yaml:"geoip"`
	DNSLookup DNSLookup `json:"dnslookup" yaml:"dnslookup"`
	Portscan  Portscan  `json:"portscan" yaml:"portscan"`
}

type Geoip struct {
	Synthetic bool `json:"synthetic" yaml:"synthetic"`
}

type DNSLookup struct {
	Mock bool `json:"mock" yaml:"mock"`
}

type Portscan struct {
	Ports         []int `json:"ports" yaml:"ports"`
	DialTimeoutMs int   `json:"dial_timeout_ms" yaml:"dial_timeout_ms"`
	Parallel      int   `json:"parallel" yaml:"parallel"`
	Mock          bool  `json:"mock" yaml:"mock"`
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DefaultConfig is a minimal config expanded with every schema default.
// The schema is embedded, so failure here is a programming error.
func DefaultConfig() Config {
	cfg, err := LoadConfig(strings.NewReader("version: 0\n"))
	if err != nil {
		panic(err)
	}
	return *cfg
}
