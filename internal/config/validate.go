package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Site.Host == "" {
		return fmt.Errorf("site.host must be set")
	}
	if cfg.Site.SearchURLTemplate == "" {
		return fmt.Errorf("site.search_url_template must be set")
	}

	if cfg.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be >= 1, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.Concurrency > 100 {
		return fmt.Errorf("engine.concurrency must be <= 100, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.MaxItems < 1 || cfg.Engine.MaxItems > 1000 {
		return fmt.Errorf("engine.max_items must be in [1,1000], got %d", cfg.Engine.MaxItems)
	}
	if cfg.Engine.MaxAttempts < 1 {
		return fmt.Errorf("engine.max_attempts must be >= 1, got %d", cfg.Engine.MaxAttempts)
	}
	if cfg.Engine.HandlerTimeout <= 0 {
		return fmt.Errorf("engine.handler_timeout must be > 0")
	}
	if cfg.Engine.RequestFactor < 1 {
		return fmt.Errorf("engine.request_factor must be >= 1, got %d", cfg.Engine.RequestFactor)
	}
	if cfg.Engine.PolitenessDelay < 0 {
		return fmt.Errorf("engine.politeness_delay must be >= 0")
	}

	switch cfg.Fetcher.Mode {
	case "http", "browser", "auto":
	default:
		return fmt.Errorf("fetcher.mode must be 'http', 'browser', or 'auto', got %q", cfg.Fetcher.Mode)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Mitigation.ContentWait <= 0 {
		return fmt.Errorf("mitigation.content_wait must be > 0")
	}
	if cfg.Mitigation.MaxScrolls < 0 {
		return fmt.Errorf("mitigation.max_scrolls must be >= 0")
	}

	switch cfg.Proxy.DefaultTier {
	case "datacenter", "residential", "unblocker":
	default:
		return fmt.Errorf("proxy.default_tier must be 'datacenter', 'residential', or 'unblocker', got %q", cfg.Proxy.DefaultTier)
	}
	for tier, servers := range cfg.Proxy.Servers {
		for _, s := range servers {
			if _, err := url.Parse(s); err != nil {
				return fmt.Errorf("invalid proxy URL %q for tier %q: %w", s, tier, err)
			}
		}
	}

	switch cfg.Output.Type {
	case "jsonl", "json":
		if cfg.Output.Path == "" {
			return fmt.Errorf("output.path must be set for %s output", cfg.Output.Type)
		}
	case "mongodb":
		if cfg.Output.MongoURI == "" {
			return fmt.Errorf("output.mongo_uri must be set for mongodb output")
		}
	default:
		return fmt.Errorf("output.type %q is not supported (valid: jsonl, json, mongodb)", cfg.Output.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level %q is not valid (valid: debug, info, warn, error)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be in [1,65535], got %d", cfg.Metrics.Port)
		}
	}

	return nil
}
