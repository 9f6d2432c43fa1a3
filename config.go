package ctypes

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds settings for tools built on the core.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogJSON  bool   `yaml:"log_json"`
	LogLevel string `yaml:"log_level"`
	// Libraries maps short aliases to library paths or sonames.
	Libraries map[string]string `yaml:"libraries"`
	// Search lists extra library candidates tried by ResolveLibrary.
	Search []string `yaml:"search"`
}

// DefaultConfig logs warnings and worse as plain text.
func DefaultConfig() Config {
	return Config{LogLevel: "warn", Libraries: map[string]string{}}
}

// LoadConfig reads a YAML file, if path is not empty, then applies the
// environment overrides.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
		if c.Libraries == nil {
			c.Libraries = map[string]string{}
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, nil
}

// ApplyEnv overrides fields from CTYPES_DEBUG, CTYPES_LOG_JSON and
// CTYPES_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envDebug, err)
		}
		c.Debug = b
	}
	if v, ok := lookup(envLogJSON); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envLogJSON, err)
		}
		c.LogJSON = b
	}
	if v, ok := lookup(envLogLevel); ok {
		c.LogLevel = v
	}
	return nil
}

// Level resolves LogLevel, with Debug forcing LOG_DEBUG.
func (c Config) Level() (int, error) {
	if c.Debug {
		return LOG_DEBUG, nil
	}
	if c.LogLevel == "" {
		return LOG_WARNING, nil
	}
	return ParseLogLevel(c.LogLevel)
}

// Logger builds the logger described by c.
func (c Config) Logger(w io.Writer) (*Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	return NewLogger(w, lvl, c.LogJSON), nil
}

// ResolveLibrary opens name through the alias table, falling back to the
// name itself and then to the Search list.
func (c Config) ResolveLibrary(name string) (*Library, error) {
	cands := []string{}
	if p, ok := c.Libraries[name]; ok {
		cands = append(cands, p)
	}
	switch name {
	case "c", "libc":
		cands = append(cands, libcCandidates...)
	case "m", "libm":
		cands = append(cands, libmCandidates...)
	default:
		cands = append(cands, name)
	}
	cands = append(cands, c.Search...)
	return OpenFirst(cands...)
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
