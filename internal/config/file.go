package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML either as a Go
// duration string ("10s", "1m30s") or as a number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	switch value.Tag {
	case "!!int", "!!float":
		secs, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// File represents the structure of the .serialmirror.yaml configuration file.
// Every field is optional; unset fields keep the value already in Config.
type File struct {
	WorkDir     string            `yaml:"workDir,omitempty"`
	CacheDir    string            `yaml:"cacheDir,omitempty"`
	IndexFile   string            `yaml:"indexFile,omitempty"`
	OutDir      string            `yaml:"outDir,omitempty"`
	StartURL    string            `yaml:"startURL,omitempty"`
	MaxPages    *int              `yaml:"maxPages,omitempty"`
	DelayMin    *Duration         `yaml:"delayMin,omitempty"`
	DelayMax    *Duration         `yaml:"delayMax,omitempty"`
	Retries     *int              `yaml:"retries,omitempty"`
	Timeout     *Duration         `yaml:"timeout,omitempty"`
	MaxBodySize *int64            `yaml:"maxBodySize,omitempty"`
	Proxy       string            `yaml:"proxy,omitempty"`
	UserAgent   string            `yaml:"userAgent,omitempty"`
	Cookie      string            `yaml:"cookie,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Selectors   Selectors         `yaml:"selectors,omitempty"`
	Template    string            `yaml:"template,omitempty"`
	Stylesheet  string            `yaml:"stylesheet,omitempty"`
	Title       string            `yaml:"title,omitempty"`
	Concurrency *int              `yaml:"concurrency,omitempty"`
	HistoryDir  string            `yaml:"historyDir,omitempty"`
	NoHistory   *bool             `yaml:"noHistory,omitempty"`
}

// Apply copies every set field of f onto c.
func (f *File) Apply(c *Config) {
	setString(&c.WorkDir, f.WorkDir)
	setString(&c.CacheDir, f.CacheDir)
	setString(&c.IndexFile, f.IndexFile)
	setString(&c.OutDir, f.OutDir)
	setString(&c.StartURL, f.StartURL)
	setString(&c.Proxy, f.Proxy)
	setString(&c.UserAgent, f.UserAgent)
	setString(&c.Cookie, f.Cookie)
	setString(&c.Template, f.Template)
	setString(&c.Stylesheet, f.Stylesheet)
	setString(&c.Title, f.Title)
	setString(&c.HistoryDir, f.HistoryDir)
	setString(&c.Selectors.Title, f.Selectors.Title)
	setString(&c.Selectors.Date, f.Selectors.Date)
	setString(&c.Selectors.Content, f.Selectors.Content)

	if f.Selectors.TrimTrailing != nil {
		n := *f.Selectors.TrimTrailing
		c.Selectors.TrimTrailing = &n
	}
	if f.MaxPages != nil {
		c.MaxPages = *f.MaxPages
	}
	if f.DelayMin != nil {
		c.DelayMin = time.Duration(*f.DelayMin)
	}
	if f.DelayMax != nil {
		c.DelayMax = time.Duration(*f.DelayMax)
	}
	if f.Retries != nil {
		c.MaxAttempts = *f.Retries
	}
	if f.Timeout != nil {
		c.Timeout = time.Duration(*f.Timeout)
	}
	if f.MaxBodySize != nil {
		c.MaxBodySize = *f.MaxBodySize
	}
	if f.Concurrency != nil {
		c.Concurrency = *f.Concurrency
	}
	if f.NoHistory != nil {
		c.NoHistory = *f.NoHistory
	}
	if len(f.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Headers))
		}
		for k, v := range f.Headers {
			c.Headers[k] = v
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
