package scanner

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigDoc records one GetScannerConfig lookup so the full tuning surface
// can be listed.
type ConfigDoc struct {
	Key     string
	Default string
	Help    string
}

// Config is the flat scanner tuning namespace, populated from an optional
// YAML file plus command line overrides before the workers spawn and read
// only afterwards.
type Config struct {
	values map[string]string
	docs   []ConfigDoc
}

func NewConfig() *Config {
	return &Config{values: make(map[string]string)}
}

type configFile struct {
	Scanners map[string]interface{} `yaml:"scanners"`
}

func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read config %s", path)
	}
	var parsed configFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.Wrapf(err, "cannot parse config %s", path)
	}
	for key, value := range parsed.Scanners {
		c.values[key] = fmt.Sprint(value)
	}
	return nil
}

func (c *Config) Set(key string, value string) {
	c.values[key] = value
}

// GetScannerConfig reads a typed value into out, leaving the default in
// place when the key is unset, and records the lookup for help output.
func (c *Config) GetScannerConfig(key string, out interface{}, help string) {
	c.docs = append(c.docs, ConfigDoc{Key: key, Default: fmt.Sprint(deref(out)), Help: help})

	raw, ok := c.values[key]
	if !ok {
		return
	}
	switch v := out.(type) {
	case *uint32:
		if parsed, err := strconv.ParseUint(raw, 10, 32); err == nil {
			*v = uint32(parsed)
		}
	case *uint64:
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			*v = parsed
		}
	case *int:
		if parsed, err := strconv.Atoi(raw); err == nil {
			*v = parsed
		}
	case *bool:
		if parsed, err := strconv.ParseBool(raw); err == nil {
			*v = parsed
		}
	case *string:
		*v = raw
	}
}

func (c *Config) Docs() []ConfigDoc {
	return c.docs
}

func deref(out interface{}) interface{} {
	switch v := out.(type) {
	case *uint32:
		return *v
	case *uint64:
		return *v
	case *int:
		return *v
	case *bool:
		return *v
	case *string:
		return *v
	}
	return out
}
