package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Discover  DiscoverConfig  `yaml:"discover" mapstructure:"discover"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local run database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OverpassConfig configures the Overpass geo-tag source.
type OverpassConfig struct {
	Mirrors     []string `yaml:"mirrors" mapstructure:"mirrors"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NominatimConfig configures reverse geocoding.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RegistryConfig configures the business registry source. BaseURL, when
// set, pins the endpoint and skips discovery.
type RegistryConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DiscoverConfig holds the default discovery query parameters.
type DiscoverConfig struct {
	City              string   `yaml:"city" mapstructure:"city"`
	MonthsBack        int      `yaml:"months_back" mapstructure:"months_back"`
	Amenities         []string `yaml:"amenities" mapstructure:"amenities"`
	BusinessLineCodes []string `yaml:"business_line_codes" mapstructure:"business_line_codes"`
	PageSize          int      `yaml:"page_size" mapstructure:"page_size"`
	MaxResults        int      `yaml:"max_results" mapstructure:"max_results"`
}

// QualityConfig configures the post-run quality filter.
type QualityConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// ExportConfig configures result output.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPENINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "openings.db")
	v.SetDefault("overpass.timeout_secs", 180)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.rps", 1.0)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("discover.city", "Helsinki")
	v.SetDefault("discover.months_back", 6)
	v.SetDefault("discover.amenities", []string{"restaurant", "cafe", "fast_food"})
	v.SetDefault("discover.business_line_codes", []string{"56101", "56102", "56103"})
	v.SetDefault("discover.page_size", 100)
	v.SetDefault("export.format", "csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required for the given run mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "discover":
		if c.Discover.City == "" {
			problems = append(problems, "discover.city is required")
		}
		if c.Discover.MonthsBack <= 0 {
			problems = append(problems, "discover.months_back must be > 0")
		}
		if c.Discover.PageSize <= 0 || c.Discover.PageSize > 1000 {
			problems = append(problems, "discover.page_size must be between 1 and 1000")
		}
		if c.Nominatim.RPS <= 0 {
			problems = append(problems, "nominatim.rps must be > 0")
		}
		if c.Export.Format != "csv" && c.Export.Format != "jsonl" {
			problems = append(problems, "export.format must be csv or jsonl")
		}
	case "filter":
		// Rules path is optional; the built-in rule set applies when unset.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
