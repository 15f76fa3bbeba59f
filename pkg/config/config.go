package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voomreport/pkg/credentials"
)

// Config holds all configuration for the VOOM report service
type Config struct {
	// LINE messaging channel credentials
	Line LineConfig `yaml:"line" json:"line"`

	// Gemini vision analysis settings
	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`

	// Notion publishing settings
	Notion NotionConfig `yaml:"notion" json:"notion"`

	// Carousel extraction settings
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`

	// Outbound message segmentation settings
	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch"`

	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LineConfig holds LINE Messaging API credentials
type LineConfig struct {
	ChannelToken  string `yaml:"channel_token" json:"channel_token"`
	ChannelSecret string `yaml:"channel_secret" json:"channel_secret"`
}

// GeminiConfig holds Gemini API settings
type GeminiConfig struct {
	APIKey string `yaml:"api_key" json:"api_key"`
	Model  string `yaml:"model" json:"model"`
}

// NotionConfig holds Notion API settings and the per-mode parent pages
type NotionConfig struct {
	Token           string        `yaml:"token" json:"token"`
	ParentMorning   string        `yaml:"parent_morning" json:"parent_morning"`
	ParentAfterHrs  string        `yaml:"parent_after_hours" json:"parent_after_hours"`
	APIVersion      string        `yaml:"api_version" json:"api_version"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	CreateChildren  int           `yaml:"create_children" json:"create_children"`
	AppendBatchSize int           `yaml:"append_batch_size" json:"append_batch_size"`
}

// ExtractionConfig holds carousel extraction settings
type ExtractionConfig struct {
	DownloadDir     string        `yaml:"download_dir" json:"download_dir"`
	ImageTimeout    time.Duration `yaml:"image_timeout" json:"image_timeout"`
	ViewerTimeout   time.Duration `yaml:"viewer_timeout" json:"viewer_timeout"`
	SettleDelay     time.Duration `yaml:"settle_delay" json:"settle_delay"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	Headless        bool          `yaml:"headless" json:"headless"`
	MaxImages       int           `yaml:"max_images" json:"max_images"` // 0 means no limit
}

// DispatchConfig holds message segmentation limits
type DispatchConfig struct {
	SegmentLimit int `yaml:"segment_limit" json:"segment_limit"`
	BatchSize    int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns a Config with sensible defaults. The limits mirror
// what the destination services enforce: Notion allows 100 children on page
// creation and the LINE API takes at most 5 messages of 5000 characters per
// call (4900 leaves headroom).
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Notion: NotionConfig{
			APIVersion:      "2022-06-28",
			RequestTimeout:  30 * time.Second,
			MaxRetries:      3,
			RetryBaseDelay:  time.Second,
			CreateChildren:  100,
			AppendBatchSize: 50,
		},
		Extraction: ExtractionConfig{
			DownloadDir:     "voom_images",
			ImageTimeout:    20 * time.Second,
			ViewerTimeout:   10 * time.Second,
			SettleDelay:     500 * time.Millisecond,
			DownloadTimeout: 30 * time.Second,
			Headless:        true,
			MaxImages:       0,
		},
		Dispatch: DispatchConfig{
			SegmentLimit: 4900,
			BatchSize:    5,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables. Secrets go
// through the credential chain so a system keychain can back missing env
// vars.
func (c *Config) LoadFromEnv(creds credentials.Store) error {
	if creds == nil {
		creds = credentials.DefaultChain()
	}

	secret := func(name string) string {
		value, err := creds.Retrieve(name)
		if err != nil {
			return ""
		}
		return value
	}

	if token := secret("LINE_CHANNEL_ACCESS_TOKEN"); token != "" {
		c.Line.ChannelToken = token
	}
	if s := secret("LINE_CHANNEL_SECRET"); s != "" {
		c.Line.ChannelSecret = s
	}
	if key := secret("GOOGLE_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if model := os.Getenv("GEMINI_VISION_MODEL"); model != "" {
		c.Gemini.Model = model
	}
	if token := secret("NOTION_TOKEN"); token != "" {
		c.Notion.Token = token
	}
	if page := os.Getenv("NOTION_PARENT_PAGE_MORNING_URL"); page != "" {
		c.Notion.ParentMorning = page
	}
	if page := os.Getenv("NOTION_PARENT_PAGE_AFTER_HOURS_URL"); page != "" {
		c.Notion.ParentAfterHrs = page
	}
	if dir := os.Getenv("VOOMREPORT_DOWNLOAD_DIR"); dir != "" {
		c.Extraction.DownloadDir = dir
	}
	if port := os.Getenv("PORT"); port != "" {
		var val int
		fmt.Sscanf(port, "%d", &val)
		if val > 0 {
			c.Server.Port = val
		}
	}
	if level := os.Getenv("VOOMREPORT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".voomreport.yaml",
		".voomreport.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "voomreport", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".voomreport.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks that the configuration can run the full service
func (c *Config) Validate() error {
	var errs []error

	if c.Line.ChannelToken == "" {
		errs = append(errs, errors.New("LINE channel access token is required"))
	}
	if c.Line.ChannelSecret == "" {
		errs = append(errs, errors.New("LINE channel secret is required"))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("Gemini API key is required"))
	}
	if c.Gemini.Model == "" {
		errs = append(errs, errors.New("Gemini model name is required"))
	}
	if c.Notion.Token == "" {
		errs = append(errs, errors.New("Notion token is required"))
	}
	if c.Notion.ParentMorning == "" && c.Notion.ParentAfterHrs == "" {
		errs = append(errs, errors.New("at least one Notion parent page is required"))
	}
	if err := c.ValidateExtraction(); err != nil {
		errs = append(errs, err)
	}
	if c.Dispatch.SegmentLimit <= 0 {
		errs = append(errs, errors.New("segment limit must be positive"))
	}
	if c.Dispatch.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Notion.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Notion.CreateChildren <= 0 || c.Notion.AppendBatchSize <= 0 {
		errs = append(errs, errors.New("Notion batch limits must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateExtraction checks only the extraction settings. The standalone
// grabber runs without messaging or publishing credentials.
func (c *Config) ValidateExtraction() error {
	var errs []error

	if c.Extraction.DownloadDir == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Extraction.SettleDelay <= 0 {
		errs = append(errs, errors.New("settle delay must be positive"))
	}
	if c.Extraction.ImageTimeout <= 0 || c.Extraction.ViewerTimeout <= 0 {
		errs = append(errs, errors.New("extraction timeouts must be positive"))
	}
	if c.Extraction.MaxImages < 0 {
		errs = append(errs, errors.New("max images cannot be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Load loads configuration from all sources.
// Precedence: environment variables (including .env) > config file > defaults.
func Load(configPath string) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".voomreport.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return cfg, nil
}
