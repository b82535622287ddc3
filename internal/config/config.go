// Package config loads the olcbench demo's runtime parameters from the
// environment, the way the pack's e2b client-proxy and api services load
// their cfg.Config.
package config

import "github.com/caarlos0/env/v11"

// Config controls the olcbench demo binary: pool size, goroutine counts,
// iterations per writer, and whether retries use RepeatWithBackoff.
type Config struct {
	PoolCapacity     int  `env:"OLCBENCH_POOL_CAPACITY" envDefault:"64"`
	WriterCount      int  `env:"OLCBENCH_WRITERS"       envDefault:"4"`
	ReaderCount      int  `env:"OLCBENCH_READERS"       envDefault:"8"`
	IterationsPerRun int  `env:"OLCBENCH_ITERATIONS"    envDefault:"100000"`
	UseBackoff       bool `env:"OLCBENCH_USE_BACKOFF"   envDefault:"false"`
}

// Parse reads Config from the process environment, applying envDefault
// values for anything unset.
func Parse() (Config, error) {
	return env.ParseAsWithOptions[Config](env.Options{})
}
