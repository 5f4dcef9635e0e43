package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	// DefaultAgent names the profile under agents used when --agent is not given
	DefaultAgent string                   `yaml:"default_agent"`
	Agents       map[string]*AgentProfile `yaml:"agents"`

	// Streaming tunables; zero values fall back to flag defaults
	MaxRuntime      time.Duration `yaml:"max_runtime"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ReadChunkSize   int           `yaml:"read_chunk_size"`
	FirstEmitWithin time.Duration `yaml:"first_emit_within"`
	MinEmitInterval time.Duration `yaml:"min_emit_interval"`
	TermGrace       time.Duration `yaml:"term_grace"`

	// Boilerplate prefixes suppressed from streamed updates
	DenyPrefixes []string `yaml:"deny_prefixes,omitempty"`

	// Question audit log
	History *HistoryConfig `yaml:"history,omitempty"`

	// Responses API → Chat Completions translation proxy
	Proxy *ProxyConfig `yaml:"proxy,omitempty"`

	// Pipeline tracing
	Trace *TraceConfig `yaml:"trace,omitempty"`

	// Drop-directory watch daemon
	Watch *WatchConfig `yaml:"watch,omitempty"`
}

// AgentProfile describes one agent CLI invocation. The question is appended
// as the final argument.
type AgentProfile struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"` // added on top of the sanitized environment
	Dir     string            `yaml:"dir,omitempty"`
}

// HistoryConfig controls the SQLite question/answer audit log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // default ~/.askforge/history.db
}

// ProxyConfig controls the built-in Responses API → Chat Completions proxy.
type ProxyConfig struct {
	Enabled bool                    `yaml:"enabled"`
	Listen  string                  `yaml:"listen,omitempty"` // default ":4000"
	Targets map[string]*ProxyTarget `yaml:"targets"`
}

// ProxyTarget describes an upstream Chat Completions endpoint.
type ProxyTarget struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"` // literal or "env:VAR_NAME"
}

// TraceConfig controls pipeline trace export.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // trace output file, default stderr
}

// WatchConfig controls the question drop-directory daemon.
type WatchConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce,omitempty"` // default 500ms
}

// DefaultDenyPrefixes suppress the agent's action announcements, which read
// as noise when relayed as answer updates.
var DefaultDenyPrefixes = []string{
	"I'll ",
	"I will ",
	"Let me ",
	"I'm going to ",
	"Now I'll ",
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &s, nil
}
