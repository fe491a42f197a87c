package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied on top by the command layer.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("STACKHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("stackhound")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".stackhound"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Only an undiscovered config file is skippable; a named-but-missing
		// or malformed file is always an error.
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides bind.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.host", cfg.Site.Host)
	v.SetDefault("site.search_url_template", cfg.Site.SearchURLTemplate)
	v.SetDefault("site.search_path_prefix", cfg.Site.SearchPathPrefix)
	v.SetDefault("site.search_query_keys", cfg.Site.SearchQueryKeys)
	v.SetDefault("site.top_level_categories", cfg.Site.TopLevelCategories)
	v.SetDefault("site.subcategory_markers", cfg.Site.SubcategoryMarkers)
	v.SetDefault("site.skip_path_segments", cfg.Site.SkipPathSegments)
	v.SetDefault("site.default_search_term", cfg.Site.DefaultSearchTerm)

	v.SetDefault("engine.concurrency", cfg.Engine.Concurrency)
	v.SetDefault("engine.max_items", cfg.Engine.MaxItems)
	v.SetDefault("engine.max_attempts", cfg.Engine.MaxAttempts)
	v.SetDefault("engine.handler_timeout", cfg.Engine.HandlerTimeout)
	v.SetDefault("engine.request_factor", cfg.Engine.RequestFactor)
	v.SetDefault("engine.politeness_delay", cfg.Engine.PolitenessDelay)

	v.SetDefault("fetcher.mode", cfg.Fetcher.Mode)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)

	v.SetDefault("mitigation.dismiss_selectors", cfg.Mitigation.DismissSelectors)
	v.SetDefault("mitigation.content_wait", cfg.Mitigation.ContentWait)
	v.SetDefault("mitigation.settle_delay", cfg.Mitigation.SettleDelay)
	v.SetDefault("mitigation.max_scrolls", cfg.Mitigation.MaxScrolls)
	v.SetDefault("mitigation.scroll_step", cfg.Mitigation.ScrollStep)

	v.SetDefault("proxy.default_tier", cfg.Proxy.DefaultTier)
	v.SetDefault("proxy.country", cfg.Proxy.Country)

	v.SetDefault("output.type", cfg.Output.Type)
	v.SetDefault("output.path", cfg.Output.Path)
	v.SetDefault("output.mongo_uri", cfg.Output.MongoURI)
	v.SetDefault("output.mongo_database", cfg.Output.MongoDatabase)
	v.SetDefault("output.mongo_collection", cfg.Output.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
