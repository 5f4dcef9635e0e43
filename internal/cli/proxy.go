package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/neurorouter"

	"github.com/ppiankov/askforge/internal/config"
)

// startProxy launches the Responses API → Chat Completions proxy so local
// agent CLIs can reach Chat Completions upstreams. Returns a stop function,
// or nil when another process already owns the port.
func startProxy(pc *config.ProxyConfig) (func(), error) {
	cfg, err := resolveProxyConfig(pc)
	if err != nil {
		return nil, err
	}
	srv := neurorouter.NewProxy(cfg)
	if _, err := srv.Start(); err != nil {
		// non-fatal: another askforge process may already own the port
		slog.Warn("proxy start failed (may already be running)", "error", err)
		return nil, nil
	}
	return func() {
		if err := srv.Stop(); err != nil {
			slog.Warn("proxy stop error", "error", err)
		}
	}, nil
}

// resolveProxyConfig maps the YAML proxy section onto neurorouter's config.
// API keys written as "env:VAR_NAME" are read from the environment so keys
// never live in the config file.
func resolveProxyConfig(pc *config.ProxyConfig) (neurorouter.ProxyConfig, error) {
	listen := pc.Listen
	if listen == "" {
		listen = ":4000"
	}
	targets := make(map[string]neurorouter.Target, len(pc.Targets))
	for name, t := range pc.Targets {
		key, err := resolveAPIKey(t.APIKey)
		if err != nil {
			return neurorouter.ProxyConfig{}, fmt.Errorf("target %q: %w", name, err)
		}
		targets[name] = neurorouter.Target{BaseURL: t.BaseURL, APIKey: key}
	}
	return neurorouter.ProxyConfig{Listen: listen, Targets: targets}, nil
}

func resolveAPIKey(key string) (string, error) {
	envKey, ok := strings.CutPrefix(key, "env:")
	if !ok {
		return key, nil
	}
	val := os.Getenv(envKey)
	if val == "" {
		return "", fmt.Errorf("env var %q is not set", envKey)
	}
	return val, nil
}
