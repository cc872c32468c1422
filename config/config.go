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
	Registry  RegistryConfig
	Scheduler SchedulerConfig
	Crawl     CrawlConfig
	Notify    NotifyConfig
	S3        S3Config
	Site      *SiteProfile
	LogPath   string
	HealthPort int
}

type RegistryConfig struct {
	Backend     string // file, sqlite, postgres
	Path        string // watchdogs.json for the file backend
	DBPath      string // sqlite database (also holds runs and commands)
	DatabaseURL string // postgres connection string
}

type SchedulerConfig struct {
	SweepInterval time.Duration
	Cron          string
}

type CrawlConfig struct {
	DeepMaxPages    int
	RecheckMaxPages int
	FetchTimeout    time.Duration
	ArtifactDir     string
}

type NotifyConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // for DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// SiteProfile describes one target site: where searches live, how its
// pagination parameter is spelled, and how detail URLs are reconstructed
// when a result object carries no usable link.
type SiteProfile struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	BaseURL           string            `yaml:"base_url"`
	PageParam         string            `yaml:"page_param"`
	DetailRoute       string            `yaml:"detail_route"`
	ScriptKeywords    []string          `yaml:"script_keywords"`
	CategorySingulars map[string]string `yaml:"category_singulars"`
}

// DefaultSiteProfile is the built-in sreality.cz profile, used when no
// yaml profile is present under config/sites.
func DefaultSiteProfile() *SiteProfile {
	return &SiteProfile{
		ID:          "sreality",
		Name:        "Sreality.cz",
		BaseURL:     "https://www.sreality.cz",
		PageParam:   "strana",
		DetailRoute: "/detail",
		ScriptKeywords: []string{
			"results", "estates", "offers", "offersList",
			"seoUrl", "__INITIAL_STATE__", "props",
		},
		CategorySingulars: map[string]string{
			"domy":    "dum",
			"byty":    "byt",
			"pozemky": "pozemek",
			"garaze":  "garaz",
		},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Registry: RegistryConfig{
			Backend:     getEnv("REGISTRY_BACKEND", "file"),
			Path:        getEnv("WATCHDOGS_FILE", "watchdogs.json"),
			DBPath:      getEnv("DB_PATH", "watchdogs.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Scheduler: SchedulerConfig{
			SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
			Cron:          os.Getenv("SWEEP_CRON"),
		},
		Crawl: CrawlConfig{
			DeepMaxPages:    getEnvInt("DEEP_SCAN_MAX_PAGES", 999),
			RecheckMaxPages: getEnvInt("RECHECK_MAX_PAGES", 5),
			FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
			ArtifactDir:     getEnv("ARTIFACT_DIR", "data"),
		},
		Notify: NotifyConfig{
			BatchSize:  getEnvInt("NOTIFY_BATCH_SIZE", 10),
			BatchDelay: getEnvDuration("NOTIFY_BATCH_DELAY", time.Second),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "auto"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		LogPath:    getEnv("LOG_PATH", "daemon.log"),
		HealthPort: getEnvInt("PORT", 8080),
	}

	site, err := loadSiteProfile(getEnv("SITE_PROFILE", "sreality"))
	if err != nil {
		return nil, err
	}
	cfg.Site = site

	return cfg, nil
}

func loadSiteProfile(id string) (*SiteProfile, error) {
	path := filepath.Join("config", "sites", id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if id == "sreality" {
				return DefaultSiteProfile(), nil
			}
			return nil, fmt.Errorf("unknown site profile %q: %w", id, err)
		}
		return nil, err
	}

	site := DefaultSiteProfile()
	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("parse site profile %s: %w", path, err)
	}
	return site, nil
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

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
