package docreef

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docreef/docreef/browser"
	"github.com/docreef/docreef/crawl"
	"github.com/docreef/docreef/fetch"
	"github.com/docreef/docreef/manager"
	"github.com/docreef/docreef/split"
)

// Config aggregates every component's configuration block, following a
// Config-struct-plus-defaults()-plus-LoadConfigFile pattern. Loading this
// from environment variables or flags, and wiring it into a running
// process, is left to cmd/docreefd; only the shape and its defaults live
// here.
type Config struct {
	Job     JobConfig     `yaml:"job"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Split   SplitConfig   `yaml:"split"`
	Store   StoreConfig   `yaml:"store"`
	Browser BrowserConfig `yaml:"browser"`
	Fetch   FetchConfig   `yaml:"fetch"`
}

// JobConfig controls the Pipeline Manager.
type JobConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// CrawlConfig controls per-job crawl defaults.
type CrawlConfig struct {
	MaxPages       int    `yaml:"max_pages"`
	MaxDepth       int    `yaml:"max_depth"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	Scope          string `yaml:"scope"`
	IgnoreErrors   bool   `yaml:"ignore_errors"`
}

// SplitConfig controls the semantic splitter's size bounds.
type SplitConfig struct {
	Preferred int `yaml:"preferred"`
	Hard      int `yaml:"hard"`
}

// StoreConfig controls the document store's persistence path.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BrowserConfig controls the headless-browser manager.
type BrowserConfig struct {
	RemoteURL       string        `yaml:"remote_url"`
	MemoryLimitMB   int64         `yaml:"memory_limit_mb"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
}

// FetchConfig controls the HTTP fetcher's retry/backoff policy.
type FetchConfig struct {
	BaseBackoff  time.Duration `yaml:"base_backoff"`
	MaxAttempts  int           `yaml:"max_attempts"`
	MaxRedirects int           `yaml:"max_redirects"`
}

// Defaults fills every zero-valued field with its documented default.
func (c *Config) Defaults() {
	if c.Job.MaxConcurrency <= 0 {
		c.Job.MaxConcurrency = 3
	}
	if c.Crawl.MaxPages <= 0 {
		c.Crawl.MaxPages = 1000
	}
	if c.Crawl.MaxDepth <= 0 {
		c.Crawl.MaxDepth = 3
	}
	if c.Crawl.MaxConcurrency <= 0 {
		c.Crawl.MaxConcurrency = 3
	}
	if c.Crawl.Scope == "" {
		c.Crawl.Scope = string(crawl.ScopeSubpages)
	}
	if c.Split.Preferred <= 0 {
		c.Split.Preferred = 1000
	}
	if c.Split.Hard <= 0 {
		c.Split.Hard = 2000
	}
	if c.Browser.MemoryLimitMB <= 0 {
		c.Browser.MemoryLimitMB = 1024
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Fetch.BaseBackoff <= 0 {
		c.Fetch.BaseBackoff = time.Second
	}
	if c.Fetch.MaxAttempts <= 0 {
		c.Fetch.MaxAttempts = 6
	}
	if c.Fetch.MaxRedirects <= 0 {
		c.Fetch.MaxRedirects = 5
	}
}

// LoadConfigFile reads and parses a YAML config file, applying defaults
// to unset fields.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docreef: read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("docreef: parse config %s: %w", path, err)
	}
	c.Defaults()
	return &c, nil
}

func (c CrawlConfig) toOptions() crawl.Options {
	return crawl.Options{
		MaxPages:       c.MaxPages,
		MaxDepth:       c.MaxDepth,
		MaxConcurrency: c.MaxConcurrency,
		Scope:          crawl.Scope(c.Scope),
		IgnoreErrors:   c.IgnoreErrors,
	}
}

func (c SplitConfig) toOptions() split.Options {
	return split.Options{Preferred: c.Preferred, Hard: c.Hard}
}

func (c BrowserConfig) toConfig() browser.Config {
	return browser.Config{
		RemoteURL:       c.RemoteURL,
		MemoryLimit:     c.MemoryLimitMB << 20,
		RecycleInterval: c.RecycleInterval,
	}
}

func (c FetchConfig) toHTTPConfig() fetch.HTTPConfig {
	return fetch.HTTPConfig{
		BaseBackoff:  c.BaseBackoff,
		MaxAttempts:  c.MaxAttempts,
		MaxRedirects: c.MaxRedirects,
	}
}

func (c JobConfig) toManagerConfig() manager.Config {
	return manager.Config{MaxConcurrency: c.MaxConcurrency}
}
