// Package cacheconfig provides declarative topology loading for
// composite caches: a YAML (or TOML/JSON, via viper's format detection)
// document describing a tree of engines and combinators, loaded,
// defaulted, and validated the way the teacher's own pkg/config loads a
// server configuration, then built into a live
// blockcache.BuildingBlock[string, []byte] tree.
package cacheconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingKind       = errors.New("cacheconfig: node missing kind")
	ErrUnknownKind       = errors.New("cacheconfig: unknown node kind")
	ErrInvalidCapacity   = errors.New("cacheconfig: capacity must be positive")
	ErrInvalidBucketCap  = errors.New("cacheconfig: bucket count must be positive")
	ErrMissingChild      = errors.New("cacheconfig: node requires a child")
	ErrMissingFrontBack  = errors.New("cacheconfig: exclusive node requires front and back")
	ErrMissingChain      = errors.New("cacheconfig: batchchain node requires at least one chain entry")
	ErrInvalidCapacitySt = errors.New("cacheconfig: capacity string is not a valid size")
)

// Node kinds, matching the engines and combinators under pkg/blockcache.
const (
	KindArray       = "array"
	KindOrderedMap  = "ordermap"
	KindByteStream  = "bytestream"
	KindAssociative = "associative"
	KindExclusive   = "exclusive"
	KindSequential  = "sequential"
	KindBatchChain  = "batchchain"
)

// Default configuration values.
const (
	defaultBloomFalsePositiveRate = 0.01
	defaultBucketCount            = 1
)

// Config is the top-level document: a single root node describing the
// whole cache topology, plus telemetry wiring shared across every
// decorated node.
type Config struct {
	Root      Node            `mapstructure:"root"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TelemetryConfig controls whether Build wraps nodes in
// pkg/blockcache/decorator and what tier names it reports.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Node describes one element of the topology tree. Only the fields
// relevant to Kind are consulted by Build; the rest are ignored, mirroring
// the teacher's habit of keeping one flat mapstructure-tagged struct per
// concern instead of a sum type viper cannot represent directly.
type Node struct {
	Kind string `mapstructure:"kind"`

	// Capacity is a human-readable size string (e.g. "64MiB", "512KB"),
	// parsed with go-humanize. Used by array, ordermap, bytestream, and
	// as the total capacity for associative, split evenly across its
	// buckets.
	Capacity string `mapstructure:"capacity"`

	// Compress enables LZ4 compression; only meaningful for bytestream.
	Compress bool `mapstructure:"compress"`

	// Buckets is the bucket count for associative.
	Buckets int `mapstructure:"buckets"`

	// BloomFilter enables a Bloom prefilter on an associative node.
	BloomFilter bool `mapstructure:"bloom_filter"`

	// ExpectedEntries sizes the Bloom filter, if enabled.
	ExpectedEntries uint `mapstructure:"expected_entries"`

	// Child is the wrapped node for sequential.
	Child *Node `mapstructure:"child"`

	// Front and Back are the two tiers of an exclusive node.
	Front *Node `mapstructure:"front"`
	Back  *Node `mapstructure:"back"`

	// Chain is the ordered list of homogeneous nodes for batchchain.
	Chain []Node `mapstructure:"chain"`

	// Tier names this node in logs and metrics when telemetry is
	// enabled. Defaults to Kind when empty.
	Tier string `mapstructure:"tier"`
}

// LoadConfig loads a topology document from configPath, or from the
// default search locations (./cache.yaml, ./config/cache.yaml,
// /etc/blockcache/cache.yaml) when configPath is empty. Environment
// variables prefixed BLOCKCACHE_ override file values, following the
// teacher's CODEFANG_ convention.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("cache")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/blockcache")
	}

	viperCfg.SetEnvPrefix("BLOCKCACHE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viperCfg.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("cacheconfig: read config file: %w", err)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cacheconfig: unmarshal config: %w", err)
	}

	if err := validateNode(&cfg.Root); err != nil {
		return nil, fmt.Errorf("cacheconfig: invalid topology: %w", err)
	}

	return &cfg, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("telemetry.enabled", false)
	viperCfg.SetDefault("root.kind", KindArray)
	viperCfg.SetDefault("root.capacity", "64MiB")
}

// validateNode recursively checks that every node in the tree names a
// known kind and carries the fields that kind requires.
func validateNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w", ErrMissingChild)
	}

	if n.Kind == "" {
		return fmt.Errorf("%w", ErrMissingKind)
	}

	switch n.Kind {
	case KindArray, KindOrderedMap, KindByteStream:
		return validateLeafCapacity(n)
	case KindAssociative:
		return validateAssociative(n)
	case KindExclusive:
		return validateExclusive(n)
	case KindSequential:
		return validateSequential(n)
	case KindBatchChain:
		return validateBatchChain(n)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
}

func validateLeafCapacity(n *Node) error {
	capacity, err := parseCapacity(n.Capacity)
	if err != nil {
		return err
	}

	if capacity <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidCapacity, n.Capacity)
	}

	return nil
}

func validateAssociative(n *Node) error {
	if n.Buckets <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBucketCap, n.Buckets)
	}

	return validateLeafCapacity(n)
}

func validateExclusive(n *Node) error {
	if n.Front == nil || n.Back == nil {
		return fmt.Errorf("%w", ErrMissingFrontBack)
	}

	if err := validateNode(n.Front); err != nil {
		return err
	}

	return validateNode(n.Back)
}

func validateSequential(n *Node) error {
	if n.Child == nil {
		return fmt.Errorf("%w", ErrMissingChild)
	}

	return validateNode(n.Child)
}

func validateBatchChain(n *Node) error {
	if len(n.Chain) == 0 {
		return fmt.Errorf("%w", ErrMissingChain)
	}

	for i := range n.Chain {
		if err := validateNode(&n.Chain[i]); err != nil {
			return err
		}
	}

	return nil
}

// parseCapacity parses a human-readable size string such as "64MiB" using
// go-humanize, the same library the teacher's pack reaches for whenever a
// config surfaces a byte size to a human.
func parseCapacity(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidCapacitySt)
	}

	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidCapacitySt, s, err)
	}

	return int64(bytes), nil
}
