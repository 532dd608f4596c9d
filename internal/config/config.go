package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoggingAdapter configures one logging sink
type LoggingAdapter struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type" validate:"required,oneof=stdout console file"`
	Enabled bool                   `yaml:"enabled"`
	Options map[string]interface{} `yaml:"options"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" validate:"min=1,max=65535"`
		Host         string        `yaml:"host"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	YouTube struct {
		APIKey            string        `yaml:"api_key"`
		RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
		PageSize          int64         `yaml:"page_size" validate:"min=1,max=50"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"youtube"`

	LLM struct {
		Provider    string        `yaml:"provider" validate:"oneof=claude"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model" validate:"required"`
		MaxTokens   int           `yaml:"max_tokens" validate:"min=1"`
		Temperature float32       `yaml:"temperature" validate:"min=0,max=1"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Scraper struct {
		UserAgent       string        `yaml:"user_agent"`
		Engine          string        `yaml:"engine" validate:"oneof=headed firecrawl hybrid"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		HeadlessMode    bool          `yaml:"headless_mode"`
		DomainRateLimit int           `yaml:"domain_rate_limit" validate:"min=1"` // navigations per minute
		Captcha         struct {
			Provider        string        `yaml:"provider"`
			APIKey          string        `yaml:"api_key"`
			Timeout         time.Duration `yaml:"timeout"`
			EnableAutoSolve bool          `yaml:"enable_auto_solve"`
		} `yaml:"captcha"`
	} `yaml:"scraper"`

	BrowserPool struct {
		MaxSessions        int           `yaml:"max_sessions" validate:"min=1"`
		AcquisitionTimeout time.Duration `yaml:"acquisition_timeout"`
	} `yaml:"browser_pool"`

	Firecrawl struct {
		APIKey  string        `yaml:"api_key"`
		APIURL  string        `yaml:"api_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"firecrawl"`

	Discovery struct {
		DefaultLimit          int           `yaml:"default_limit" validate:"min=1"`
		MaxLimit              int           `yaml:"max_limit" validate:"min=1,gtefield=DefaultLimit"`
		PerKeywordLimit       int           `yaml:"per_keyword_limit" validate:"min=1"`
		RecentVideos          int64         `yaml:"recent_videos" validate:"min=1,max=50"`
		DefaultMinSubscribers int64         `yaml:"default_min_subscribers" validate:"min=0"`
		RunTimeout            time.Duration `yaml:"run_timeout"`
		ScrapeContacts        bool          `yaml:"scrape_contacts"`
	} `yaml:"discovery"`

	BackgroundTasks struct {
		MaxConcurrentTasks int           `yaml:"max_concurrent_tasks" validate:"min=1"`
		TaskTimeout        time.Duration `yaml:"task_timeout"`
		CleanupInterval    time.Duration `yaml:"cleanup_interval"`
		MaxTaskAge         time.Duration `yaml:"max_task_age"`
	} `yaml:"background_tasks"`

	Logging struct {
		Level    string           `yaml:"level"`
		Format   string           `yaml:"format"`
		Output   string           `yaml:"output"`
		Adapters []LoggingAdapter `yaml:"adapters" validate:"dive"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		URL      string        `yaml:"url"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`

	Mongo struct {
		Enabled    bool          `yaml:"enabled"`
		URI        string        `yaml:"uri"`
		Database   string        `yaml:"database"`
		Collection string        `yaml:"collection"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"mongo"`
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareEnvVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands ${VAR} and $VAR references, leaving unknown ones untouched
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})

	return bareEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})
}

// Defaults returns a configuration populated with built-in defaults only
func Defaults() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 10 * time.Minute
	config.Server.IdleTimeout = 60 * time.Second

	config.YouTube.RequestsPerSecond = 5
	config.YouTube.PageSize = 50
	config.YouTube.Timeout = 30 * time.Second

	config.LLM.Provider = "claude"
	config.LLM.Model = "claude-3-5-haiku-latest"
	config.LLM.MaxTokens = 1024
	config.LLM.Temperature = 0.2
	config.LLM.Timeout = 60 * time.Second

	config.Scraper.Engine = "headed"
	config.Scraper.RequestTimeout = 30 * time.Second
	config.Scraper.HeadlessMode = true
	config.Scraper.DomainRateLimit = 30
	config.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	config.Scraper.Captcha.Provider = "2captcha"
	config.Scraper.Captcha.Timeout = 120 * time.Second
	config.Scraper.Captcha.EnableAutoSolve = true

	config.BrowserPool.MaxSessions = 3
	config.BrowserPool.AcquisitionTimeout = 60 * time.Second

	config.Firecrawl.APIURL = "https://api.firecrawl.dev"
	config.Firecrawl.Timeout = 60 * time.Second

	config.Discovery.DefaultLimit = 20
	config.Discovery.MaxLimit = 200
	config.Discovery.PerKeywordLimit = 50
	config.Discovery.RecentVideos = 3
	config.Discovery.DefaultMinSubscribers = 100000
	config.Discovery.RunTimeout = 10 * time.Minute
	config.Discovery.ScrapeContacts = true

	config.BackgroundTasks.MaxConcurrentTasks = 10
	config.BackgroundTasks.TaskTimeout = 15 * time.Minute
	config.BackgroundTasks.CleanupInterval = time.Hour
	config.BackgroundTasks.MaxTaskAge = 24 * time.Hour

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.Timeout = 5 * time.Second
	config.Redis.CacheTTL = 7 * 24 * time.Hour

	config.Mongo.URI = "mongodb://localhost:27017"
	config.Mongo.Database = "channel_scout"
	config.Mongo.Collection = "runs"
	config.Mongo.Timeout = 10 * time.Second

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Defaults()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CaptchaEnabled reports whether CAPTCHA solving is configured and switched on
func (c *Config) CaptchaEnabled() bool {
	return c.Scraper.Captcha.APIKey != "" && c.Scraper.Captcha.EnableAutoSolve
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envInt64(key string, target *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		}
	}
}

func envDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		*target = v == "true" || v == "1"
	}
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	envInt("PORT", &c.Server.Port)
	envString("HOST", &c.Server.Host)

	envString("YOUTUBE_API_KEY", &c.YouTube.APIKey)
	if v := os.Getenv("YOUTUBE_REQUESTS_PER_SECOND"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.YouTube.RequestsPerSecond = rps
		}
	}

	envString("LLM_API_KEY", &c.LLM.APIKey)
	// ANTHROPIC_API_KEY is what the SDK itself reads
	if c.LLM.APIKey == "" {
		envString("ANTHROPIC_API_KEY", &c.LLM.APIKey)
	}
	envString("LLM_PROVIDER", &c.LLM.Provider)
	envString("LLM_MODEL", &c.LLM.Model)

	envString("SCRAPER_ENGINE", &c.Scraper.Engine)
	envBool("SCRAPER_HEADLESS", &c.Scraper.HeadlessMode)
	envString("CAPTCHA_API_KEY", &c.Scraper.Captcha.APIKey)
	// Also support 2CAPTCHA_API_KEY for compatibility
	envString("2CAPTCHA_API_KEY", &c.Scraper.Captcha.APIKey)

	envInt("BROWSER_POOL_MAX_SESSIONS", &c.BrowserPool.MaxSessions)
	envDuration("BROWSER_POOL_ACQUISITION_TIMEOUT", &c.BrowserPool.AcquisitionTimeout)

	envString("FIRECRAWL_API_KEY", &c.Firecrawl.APIKey)
	envString("FIRECRAWL_API_URL", &c.Firecrawl.APIURL)

	envInt("DISCOVERY_DEFAULT_LIMIT", &c.Discovery.DefaultLimit)
	envInt("DISCOVERY_MAX_LIMIT", &c.Discovery.MaxLimit)
	envInt64("DISCOVERY_MIN_SUBSCRIBERS", &c.Discovery.DefaultMinSubscribers)
	envDuration("DISCOVERY_RUN_TIMEOUT", &c.Discovery.RunTimeout)
	envBool("DISCOVERY_SCRAPE_CONTACTS", &c.Discovery.ScrapeContacts)

	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FORMAT", &c.Logging.Format)

	envBool("REDIS_ENABLED", &c.Redis.Enabled)
	envString("REDIS_URL", &c.Redis.URL)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envInt("REDIS_DB", &c.Redis.DB)
	envDuration("REDIS_TIMEOUT", &c.Redis.Timeout)
	envDuration("REDIS_CACHE_TTL", &c.Redis.CacheTTL)

	envBool("MONGO_ENABLED", &c.Mongo.Enabled)
	envString("MONGO_URI", &c.Mongo.URI)
	envString("MONGO_DATABASE", &c.Mongo.Database)

	c.loadLoggingAdapterEnvVars()
}

// loadLoggingAdapterEnvVars loads environment variables for logging adapters
func (c *Config) loadLoggingAdapterEnvVars() {
	for i := range c.Logging.Adapters {
		adapter := &c.Logging.Adapters[i]
		if strings.ToLower(adapter.Type) != "file" {
			continue
		}
		if path := os.Getenv("LOG_FILE_PATH"); path != "" {
			if adapter.Options == nil {
				adapter.Options = make(map[string]interface{})
			}
			adapter.Options["path"] = path
		}
	}
}
