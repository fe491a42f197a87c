package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for stackhound.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"       yaml:"site"`
	Engine     EngineConfig     `mapstructure:"engine"     yaml:"engine"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Browser    BrowserConfig    `mapstructure:"browser"    yaml:"browser"`
	Mitigation MitigationConfig `mapstructure:"mitigation" yaml:"mitigation"`
	Proxy      ProxyConfig      `mapstructure:"proxy"      yaml:"proxy"`
	Output     OutputConfig     `mapstructure:"output"     yaml:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// SiteConfig holds the target-site facts the classifier and seed builder
// depend on. These are data, not code: the slug sets and templates were
// collected by inspecting the live site's URL taxonomy and can be
// overridden from YAML without rebuilding.
type SiteConfig struct {
	// Host is the canonical host, without a www prefix.
	Host string `mapstructure:"host" yaml:"host"`

	// SearchURLTemplate builds a search URL from an escaped query term.
	// %s is replaced with the term.
	SearchURLTemplate string `mapstructure:"search_url_template" yaml:"search_url_template"`

	// SearchPathPrefix marks server-side search result paths.
	SearchPathPrefix string `mapstructure:"search_path_prefix" yaml:"search_path_prefix"`

	// SearchQueryKeys are query parameters that mark a search page.
	SearchQueryKeys []string `mapstructure:"search_query_keys" yaml:"search_query_keys"`

	// TopLevelCategories are single-segment listing paths (/silver, /gold).
	TopLevelCategories []string `mapstructure:"top_level_categories" yaml:"top_level_categories"`

	// SubcategoryMarkers are tokens whose presence in a second path
	// segment under a top-level category marks a listing (/silver/silver-coins).
	SubcategoryMarkers []string `mapstructure:"subcategory_markers" yaml:"subcategory_markers"`

	// SkipPathSegments are informational sections that are never products.
	SkipPathSegments []string `mapstructure:"skip_path_segments" yaml:"skip_path_segments"`

	// DefaultSearchTerm seeds the crawl when no input is given.
	DefaultSearchTerm string `mapstructure:"default_search_term" yaml:"default_search_term"`
}

// EngineConfig controls the crawl router.
type EngineConfig struct {
	// Concurrency is the page-processing worker count.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// MaxItems bounds emitted product records. Valid range [1,1000].
	MaxItems int `mapstructure:"max_items" yaml:"max_items"`

	// MaxAttempts bounds processing attempts per request.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`

	// HandlerTimeout is the overall per-request budget covering
	// navigation, mitigation, and extraction.
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" yaml:"handler_timeout"`

	// RequestFactor caps total requests at MaxItems * RequestFactor so a
	// sparse site cannot keep the crawl alive indefinitely.
	RequestFactor int `mapstructure:"request_factor" yaml:"request_factor"`

	// PolitenessDelay is the minimum spacing between fetches.
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
}

// FetcherConfig controls how pages are fetched.
type FetcherConfig struct {
	// Mode selects the fetch path: "http", "browser", or "auto".
	// Auto starts on HTTP and escalates a request to the browser after a
	// block or an unrendered page.
	Mode string `mapstructure:"mode" yaml:"mode"`

	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
}

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	Headless   bool   `mapstructure:"headless"    yaml:"headless"`
	Stealth    bool   `mapstructure:"stealth"     yaml:"stealth"`
	WindowSize string `mapstructure:"window_size" yaml:"window_size"`
}

// MitigationConfig controls best-effort anti-bot preparation.
type MitigationConfig struct {
	// DismissSelectors are tried in order; the first visible match is
	// clicked to clear consent banners and modal overlays.
	DismissSelectors []string `mapstructure:"dismiss_selectors" yaml:"dismiss_selectors"`

	// ContentWait bounds the wait for the primary content selector.
	ContentWait time.Duration `mapstructure:"content_wait" yaml:"content_wait"`

	// SettleDelay is the pause after dismissing an overlay or scrolling.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	// MaxScrolls bounds lazy-load scroll increments.
	MaxScrolls int `mapstructure:"max_scrolls" yaml:"max_scrolls"`

	// ScrollStep is the pixel distance of one scroll increment.
	ScrollStep int `mapstructure:"scroll_step" yaml:"scroll_step"`
}

// ProxyConfig controls egress tier selection.
type ProxyConfig struct {
	// DefaultTier is the starting tier: "datacenter", "residential", or
	// "unblocker". Residential by default; datacenter ranges are blocked
	// outright by this class of site.
	DefaultTier string `mapstructure:"default_tier" yaml:"default_tier"`

	// Country constrains exit nodes for geo-restricted storefronts.
	// Passed through to tier selection, never computed.
	Country string `mapstructure:"country" yaml:"country"`

	// Servers maps tier name to egress proxy URLs, rotated round-robin.
	Servers map[string][]string `mapstructure:"servers" yaml:"servers"`
}

// OutputConfig controls record emission.
type OutputConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // jsonl, json, mongodb
	Path string `mapstructure:"path" yaml:"path"`

	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config preloaded with the sdbullion.com site
// facts and conservative engine defaults.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Host:              "sdbullion.com",
			SearchURLTemplate: "https://sdbullion.com/catalogsearch/result/?q=%s",
			SearchPathPrefix:  "/catalogsearch/",
			SearchQueryKeys:   []string{"q", "search"},
			TopLevelCategories: []string{
				"gold", "silver", "platinum", "palladium", "copper",
				"on-sale", "new-arrivals", "specials",
			},
			SubcategoryMarkers: []string{
				"coin", "bar", "round", "bullion", "mint", "eagle", "maple", "all-",
			},
			SkipPathSegments: []string{
				"about", "shipping", "contact", "faq", "policies",
				"blog", "customer", "checkout", "cart",
			},
			DefaultSearchTerm: "Silver coin",
		},
		Engine: EngineConfig{
			Concurrency:     3,
			MaxItems:        5,
			MaxAttempts:     3,
			HandlerTimeout:  60 * time.Second,
			RequestFactor:   5,
			PolitenessDelay: 500 * time.Millisecond,
		},
		Fetcher: FetcherConfig{
			Mode:            "auto",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Browser: BrowserConfig{
			Headless:   true,
			Stealth:    true,
			WindowSize: "1920,1080",
		},
		Mitigation: MitigationConfig{
			DismissSelectors: []string{
				"#onetrust-accept-btn-handler",
				".onetrust-close-btn-handler",
				"[class*=\"cookie\"] button",
				"[class*=\"consent\"] button",
				"[id*=\"cookie\"] button",
				"[id*=\"consent\"] button",
				".modal-popup .action-close",
				"button.action-close",
			},
			ContentWait: 15 * time.Second,
			SettleDelay: 500 * time.Millisecond,
			MaxScrolls:  3,
			ScrollStep:  500,
		},
		Proxy: ProxyConfig{
			DefaultTier: "residential",
			Country:     "",
			Servers:     map[string][]string{},
		},
		Output: OutputConfig{
			Type:            "jsonl",
			Path:            "./output/products.jsonl",
			MongoDatabase:   "stackhound",
			MongoCollection: "products",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
