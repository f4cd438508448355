package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// config holds the settings shared by all commands. Values are read from the
// YAML file given by --config, if any; explicitly set flags take precedence.
type config struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Namespace string `yaml:"namespace"`
	Snappy    bool   `yaml:"snappy"`
	Verbose   bool   `yaml:"verbose"`

	Concurrency   int           `yaml:"concurrency"`
	CacheSize     int64         `yaml:"cache_size"`
	SnapshotEvery uint32        `yaml:"snapshot_every"`
	MaxRetries    int           `yaml:"max_retries"`
	Interval      time.Duration `yaml:"interval"`
	MetricsAddr   string        `yaml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		Backend:     "dir",
		Path:        "chaindict-data",
		Interval:    5 * time.Second,
		MetricsAddr: ":9090",
	}
}

func (c *config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Backend, "backend", c.Backend, "storage backend: mem, dir, leveldb, badger or gcs")
	fs.StringVar(&c.Path, "path", c.Path, "data directory of the dir, leveldb and badger backends")
	fs.StringVar(&c.Bucket, "bucket", c.Bucket, "bucket of the gcs backend")
	fs.StringVarP(&c.Namespace, "namespace", "n", c.Namespace, "chain namespace")
	fs.BoolVar(&c.Snappy, "snappy", c.Snappy, "compress stored files with snappy")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "enable debug logging")
	fs.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "maximum parallel file fetches")
	fs.Int64Var(&c.CacheSize, "cache-size", c.CacheSize, "file cache size in bytes, negative to disable")
	fs.Uint32Var(&c.SnapshotEvery, "snapshot-every", c.SnapshotEvery, "write a snapshot every n links, 0 to disable")
	fs.IntVar(&c.MaxRetries, "max-retries", c.MaxRetries, "retries after conflicts or backend failures")
}

// load reads path into c, but keeps the values of flags set on the command line.
func (c *config) load(path string, fs *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	file := *c
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	fs.Visit(func(f *pflag.Flag) {
		overrideFlag(&file, c, f.Name)
	})
	*c = file
	return nil
}

// overrideFlag copies the value backing flag name from src to dst.
func overrideFlag(dst, src *config, name string) {
	switch name {
	case "backend":
		dst.Backend = src.Backend
	case "path":
		dst.Path = src.Path
	case "bucket":
		dst.Bucket = src.Bucket
	case "namespace":
		dst.Namespace = src.Namespace
	case "snappy":
		dst.Snappy = src.Snappy
	case "verbose":
		dst.Verbose = src.Verbose
	case "concurrency":
		dst.Concurrency = src.Concurrency
	case "cache-size":
		dst.CacheSize = src.CacheSize
	case "snapshot-every":
		dst.SnapshotEvery = src.SnapshotEvery
	case "max-retries":
		dst.MaxRetries = src.MaxRetries
	case "interval":
		dst.Interval = src.Interval
	case "metrics-addr":
		dst.MetricsAddr = src.MetricsAddr
	}
}
