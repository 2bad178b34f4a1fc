package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Crawler() CrawlerConfig
	Fetcher() FetcherConfig
	LLM() LLMRouterConfig
	Browser() BrowserConfig
	Portal() PortalConfig
	Request() RequestConfig
	Tracker() TrackerConfig
	Artifacts() ArtifactsConfig

	// Crawler Setters
	SetCrawlerAgents(int)
	SetCrawlerMaxAttempts(int)
	SetCrawlerMaxDepth(int)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserDebug(bool)

	// Portal Setters
	SetPortalURL(string)
	SetPortalCredentials(email, password string)
}

// Config holds the entire application configuration. Access goes through
// the Interface getters so call sites depend on the contract, not the struct.
type Config struct {
	LoggerC    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseC  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	CrawlerC   CrawlerConfig   `mapstructure:"crawler" yaml:"crawler"`
	FetcherC   FetcherConfig   `mapstructure:"fetcher" yaml:"fetcher"`
	LLMC       LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
	BrowserC   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	PortalC    PortalConfig    `mapstructure:"portal" yaml:"portal"`
	RequestC   RequestConfig   `mapstructure:"request" yaml:"request"`
	TrackerC   TrackerConfig   `mapstructure:"tracker" yaml:"tracker"`
	ArtifactsC ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerC }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseC }
func (c *Config) Crawler() CrawlerConfig     { return c.CrawlerC }
func (c *Config) Fetcher() FetcherConfig     { return c.FetcherC }
func (c *Config) LLM() LLMRouterConfig       { return c.LLMC }
func (c *Config) Browser() BrowserConfig     { return c.BrowserC }
func (c *Config) Portal() PortalConfig       { return c.PortalC }
func (c *Config) Request() RequestConfig     { return c.RequestC }
func (c *Config) Tracker() TrackerConfig     { return c.TrackerC }
func (c *Config) Artifacts() ArtifactsConfig { return c.ArtifactsC }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetCrawlerAgents(n int)      { c.CrawlerC.Agents = n }
func (c *Config) SetCrawlerMaxAttempts(n int) { c.CrawlerC.MaxAttempts = n }
func (c *Config) SetCrawlerMaxDepth(n int)    { c.CrawlerC.MaxDepth = n }

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserC.Headless = b }
func (c *Config) SetBrowserDebug(b bool)    { c.BrowserC.Debug = b }

func (c *Config) SetPortalURL(u string) { c.PortalC.URL = u }
func (c *Config) SetPortalCredentials(email, password string) {
	c.PortalC.Email = email
	c.PortalC.Password = password
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the database connection details. An empty URL
// disables persistence; runs still write file artifacts.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// CrawlerConfig tunes the multi-agent portal discovery crawl.
type CrawlerConfig struct {
	Agents               int           `mapstructure:"agents" yaml:"agents"`
	MaxAttempts          int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	MaxDepth             int           `mapstructure:"max_depth" yaml:"max_depth"`
	MaxLinksPerPage      int           `mapstructure:"max_links_per_page" yaml:"max_links_per_page"`
	MinPromise           float64       `mapstructure:"min_promise" yaml:"min_promise"`
	TerminateConfidence  float64       `mapstructure:"terminate_confidence" yaml:"terminate_confidence"`
	TruncationBoostFloor float64       `mapstructure:"truncation_boost_floor" yaml:"truncation_boost_floor"`
	TruncationBoostCeil  float64       `mapstructure:"truncation_boost_ceil" yaml:"truncation_boost_ceil"`
	Timeout              time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// FetcherConfig tunes the reader-gateway page fetcher.
type FetcherConfig struct {
	GatewayURL     string        `mapstructure:"gateway_url" yaml:"gateway_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxTokens      int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	TokenEncoding  string        `mapstructure:"token_encoding" yaml:"token_encoding"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	Debug             bool           `mapstructure:"debug" yaml:"debug"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration  `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Humanize          HumanizeConfig `mapstructure:"humanize" yaml:"humanize"`
}

// PortalConfig identifies the target portal and the account used on it.
// Credentials come from environment variables, never the config file.
type PortalConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	Email         string        `mapstructure:"email" yaml:"-"`
	Password      string        `mapstructure:"password" yaml:"-"`
	CookieFile    string        `mapstructure:"cookie_file" yaml:"cookie_file"`
	LoginAttempts int           `mapstructure:"login_attempts" yaml:"login_attempts"`
	LoginSettle   time.Duration `mapstructure:"login_settle" yaml:"login_settle"`
}

// RequestConfig carries the requester identity filled into submission forms.
type RequestConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Email   string `mapstructure:"email" yaml:"email"`
	Phone   string `mapstructure:"phone" yaml:"phone"`
	Address string `mapstructure:"address" yaml:"address"`
	Options int    `mapstructure:"options" yaml:"options"`
}

// TrackerConfig tunes request-table scraping on the portal dashboard.
type TrackerConfig struct {
	ScrollMaxRounds int           `mapstructure:"scroll_max_rounds" yaml:"scroll_max_rounds"`
	ScrollPause     time.Duration `mapstructure:"scroll_pause" yaml:"scroll_pause"`
	DetailLimit     int           `mapstructure:"detail_limit" yaml:"detail_limit"`
	Statuses        []string      `mapstructure:"statuses" yaml:"statuses"`
}

// ArtifactsConfig controls where run outputs land on disk.
type ArtifactsConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "foiahound")
	v.SetDefault("logger.log_file", "foiahound.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Crawler --
	v.SetDefault("crawler.agents", 3)
	v.SetDefault("crawler.max_attempts", 15)
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.max_links_per_page", 10)
	v.SetDefault("crawler.min_promise", 0.3)
	v.SetDefault("crawler.terminate_confidence", 0.95)
	v.SetDefault("crawler.truncation_boost_floor", 0.8)
	v.SetDefault("crawler.truncation_boost_ceil", 0.85)
	v.SetDefault("crawler.timeout", "20m")

	// -- Fetcher --
	v.SetDefault("fetcher.gateway_url", "https://r.jina.ai")
	v.SetDefault("fetcher.request_timeout", "45s")
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.initial_backoff", "2s")
	v.SetDefault("fetcher.rate_limit", 1.0)
	v.SetDefault("fetcher.rate_burst", 2)
	v.SetDefault("fetcher.max_tokens", 15000)
	v.SetDefault("fetcher.token_encoding", "cl100k_base")

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport", map[string]int{"width": 1920, "height": 1080})
	setHumanizeDefaults(v)

	// -- Portal --
	v.SetDefault("portal.cookie_file", "portal_cookies.json")
	v.SetDefault("portal.login_attempts", 3)
	v.SetDefault("portal.login_settle", "3s")

	// -- Request --
	v.SetDefault("request.options", 3)

	// -- Tracker --
	v.SetDefault("tracker.scroll_max_rounds", 20)
	v.SetDefault("tracker.scroll_pause", "1500ms")
	v.SetDefault("tracker.detail_limit", 5)
	v.SetDefault("tracker.statuses", []string{"Open", "Closed"})

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "runs")
	v.SetDefault("artifacts.screenshot_dir", "runs/screenshots")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("portal.email", "FOIAHOUND_PORTAL_EMAIL")
	v.BindEnv("portal.password", "FOIAHOUND_PORTAL_PASSWORD")
	v.BindEnv("database.url", "FOIAHOUND_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.CrawlerC.Agents <= 0 {
		return fmt.Errorf("crawler.agents must be a positive integer")
	}
	if c.CrawlerC.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be a positive integer")
	}
	if c.CrawlerC.MaxDepth <= 0 {
		return fmt.Errorf("crawler.max_depth must be a positive integer")
	}
	if c.CrawlerC.TerminateConfidence <= 0 || c.CrawlerC.TerminateConfidence > 1 {
		return fmt.Errorf("crawler.terminate_confidence must be in (0, 1]")
	}
	if c.CrawlerC.MinPromise < 0 || c.CrawlerC.MinPromise >= 1 {
		return fmt.Errorf("crawler.min_promise must be in [0, 1)")
	}
	if c.FetcherC.GatewayURL == "" {
		return fmt.Errorf("fetcher.gateway_url is a required configuration field")
	}
	if c.FetcherC.MaxTokens <= 0 {
		return fmt.Errorf("fetcher.max_tokens must be a positive integer")
	}
	if err := c.BrowserC.Humanize.Validate(); err != nil {
		return fmt.Errorf("browser.humanize configuration invalid: %w", err)
	}
	return nil
}
