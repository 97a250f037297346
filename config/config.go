package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scheduler   SchedulerConfig
	Scraper     ScraperConfig
	Output      OutputConfig
	S3          S3Config
	VPN         VPNConfig
	DBPath      string
	PostgresURL string
	ProxyURL    string
	LogPath     string
	LogLevel    string
	SitesDir    string
	Sites       map[string]*SiteConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	Workers           int
	MaxAttempts       int
	RetryDelay        time.Duration
	RetryJitter       time.Duration
	CheckpointEvery   int
	RequestsPerSecond float64
	Fetcher           string // "browser" or "http"
	Headless          bool
	WaitSeconds       int
	DebugDir          string
}

// OutputConfig names every CSV the pipeline reads or writes.
type OutputConfig struct {
	Dir         string
	Input       string
	Details     string
	Debug       string
	Checkpoint  string
	Interrupted string
	Expanded    string
	PerSale     string
	Clean       string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type VPNConfig struct {
	Enabled     bool
	AutoConnect bool
	Region      string
}

type SiteConfig struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name"`
	BaseURL          string            `yaml:"base_url"`
	IndexURL         string            `yaml:"index_url"`
	IndexPages       int               `yaml:"index_pages"`
	RateLimitMS      int               `yaml:"rate_limit_ms"`
	PropertyTypes    []string          `yaml:"property_types"`
	ExtraLabels      map[string]string `yaml:"extra_labels"`
	ExtraModalLabels map[string]string `yaml:"extra_modal_labels"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		Scraper: ScraperConfig{
			Workers:           getEnvInt("SCRAPE_WORKERS", 1),
			MaxAttempts:       getEnvInt("SCRAPE_MAX_ATTEMPTS", 3),
			RetryDelay:        getEnvDuration("SCRAPE_RETRY_DELAY", 5*time.Second),
			RetryJitter:       getEnvDuration("SCRAPE_RETRY_JITTER", 5*time.Second),
			CheckpointEvery:   getEnvInt("SCRAPE_CHECKPOINT_EVERY", 10),
			RequestsPerSecond: getEnvFloat("SCRAPE_RPS", 0.5),
			Fetcher:           getEnv("SCRAPE_FETCHER", "browser"),
			Headless:          getEnv("SCRAPE_HEADLESS", "true") == "true",
			WaitSeconds:       getEnvInt("SCRAPE_WAIT_SECONDS", 3),
			DebugDir:          getEnv("DEBUG_DIR", "debug_screenshots"),
		},
		Output: OutputConfig{
			Dir:         dataDir,
			Input:       filepath.Join(dataDir, "scraped_properties.csv"),
			Details:     filepath.Join(dataDir, "property_details.csv"),
			Debug:       filepath.Join(dataDir, "property_details_debug.csv"),
			Checkpoint:  filepath.Join(dataDir, "property_details_checkpoint.csv"),
			Interrupted: filepath.Join(dataDir, "property_details_interrupted.csv"),
			Expanded:    filepath.Join(dataDir, "scraped_properties_expanded.csv"),
			PerSale:     filepath.Join(dataDir, "property_details_per_sale.csv"),
			Clean:       filepath.Join(dataDir, "clean_property_data.csv"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-north-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "bolig_scrooper"),
		},
		VPN: VPNConfig{
			Enabled:     getEnv("VPN_ENABLED", "false") == "true",
			AutoConnect: getEnv("VPN_AUTO_CONNECT", "true") == "true",
			Region:      getEnv("VPN_REGION", "denmark"),
		},
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		PostgresURL: os.Getenv("DATABASE_URL"),
		ProxyURL:    os.Getenv("PROXY_URL"),
		LogPath:     getEnv("LOG_PATH", "scraper.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SitesDir:    getEnv("SITES_DIR", "config/sites"),
		Sites:       make(map[string]*SiteConfig),
	}

	if cfg.Scraper.Workers < 1 {
		cfg.Scraper.Workers = 1
	}
	if cfg.Scraper.MaxAttempts < 1 {
		cfg.Scraper.MaxAttempts = 1
	}

	if err := cfg.loadSiteConfigs(cfg.SitesDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Site returns the config for id, or the single configured site when id is empty.
func (c *Config) Site(id string) (*SiteConfig, error) {
	if id != "" {
		site, ok := c.Sites[id]
		if !ok {
			return nil, fmt.Errorf("unknown site: %s", id)
		}
		return site, nil
	}
	if site, ok := c.Sites["boligsiden"]; ok {
		return site, nil
	}
	for _, site := range c.Sites {
		return site, nil
	}
	return nil, fmt.Errorf("no site configs found in %s", c.SitesDir)
}

func (c *Config) loadSiteConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if site.ID == "" {
			return fmt.Errorf("site config %s has no id", path)
		}
		if site.IndexPages <= 0 {
			site.IndexPages = 1
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
