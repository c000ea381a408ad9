package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

const (
	EnvPrefix      = "PLACES_MONITOR"
	configFileName = "places-monitor"

	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

type Config struct {
	HTTPAddr string `mapstructure:"http-addr"`
	GRPCAddr string `mapstructure:"grpc-addr"`

	Env     string `mapstructure:"env"`     // "dev" | "prod"
	Storage string `mapstructure:"storage"` // "memory" | "sqlite"
	DBPath  string `mapstructure:"db-path"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	// POI catalog. An empty POIFile disables the refresher; POIs then only
	// arrive through the HTTP API.
	POIFile            string        `mapstructure:"poi-file"`
	POIRefreshInterval time.Duration `mapstructure:"poi-refresh-interval"`
	NearbyLimit        int           `mapstructure:"nearby-limit"`

	// Transition log retention
	TransitionRetentionDays int `mapstructure:"transition-retention-days"` // 0 = keep forever
	PruneIntervalHours      int `mapstructure:"prune-interval-hours"`

	// Simulated platform
	PermissionGranted            bool          `mapstructure:"permission-granted"`
	LocationInterval             time.Duration `mapstructure:"location-interval"`
	LocationFastestInterval      time.Duration `mapstructure:"location-fastest-interval"`
	LocationSmallestDisplacement float64       `mapstructure:"location-smallest-displacement"`
}

func Default() Config {
	return Config{
		HTTPAddr:                     ":8080",
		GRPCAddr:                     ":9090",
		Env:                          "dev",
		Storage:                      StorageMemory,
		DBPath:                       "./data/places-monitor.db",
		LogLevel:                     "info",
		LogFormat:                    "json",
		POIRefreshInterval:           15 * time.Minute,
		NearbyLimit:                  20,
		TransitionRetentionDays:      30,
		PruneIntervalHours:           6,
		PermissionGranted:            true,
		LocationInterval:             time.Hour,
		LocationFastestInterval:      30 * time.Minute,
		LocationSmallestDisplacement: 1000,
	}
}

// RegisterFlags adds one flag per config key, defaulted from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a config file (default ./places-monitor.yaml if present)")
	fs.String("http-addr", d.HTTPAddr, "HTTP listen address")
	fs.String("grpc-addr", d.GRPCAddr, "gRPC health listen address")
	fs.String("env", d.Env, "environment: dev or prod")
	fs.String("storage", d.Storage, "storage backend: memory or sqlite")
	fs.String("db-path", d.DBPath, "SQLite database path")
	fs.String("log-level", d.LogLevel, "log level")
	fs.String("log-format", d.LogFormat, "log format: json or console")
	fs.String("poi-file", d.POIFile, "YAML file with the POIs to monitor")
	fs.Duration("poi-refresh-interval", d.POIRefreshInterval, "how often the POI file is re-read")
	fs.Int("nearby-limit", d.NearbyLimit, "how many of the closest POIs are checked per location")
	fs.Int("transition-retention-days", d.TransitionRetentionDays, "days of transition log to keep (0 keeps everything)")
	fs.Int("prune-interval-hours", d.PruneIntervalHours, "hours between transition log prunes")
	fs.Bool("permission-granted", d.PermissionGranted, "whether the simulated platform grants fine location")
	fs.Duration("location-interval", d.LocationInterval, "requested location update interval")
	fs.Duration("location-fastest-interval", d.LocationFastestInterval, "fastest accepted location update interval")
	fs.Float64("location-smallest-displacement", d.LocationSmallestDisplacement, "minimum movement in meters between updates")
}

// Load resolves the configuration from flags, PLACES_MONITOR_* environment
// variables and an optional YAML file, in that order of precedence.
// Out-of-range values fall back to their defaults.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalize(), nil
}

// normalize fails soft: unknown values become defaults.
func (c Config) normalize() Config {
	d := Default()

	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		c.Env = d.Env
	}
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.Storage != StorageMemory && c.Storage != StorageSQLite {
		c.Storage = StorageMemory
	}
	if strings.TrimSpace(c.DBPath) == "" {
		c.DBPath = d.DBPath
	}
	if c.POIRefreshInterval <= 0 {
		c.POIRefreshInterval = d.POIRefreshInterval
	}
	if c.NearbyLimit < 0 {
		c.NearbyLimit = d.NearbyLimit
	}
	if c.TransitionRetentionDays < 0 {
		c.TransitionRetentionDays = d.TransitionRetentionDays
	}
	if c.PruneIntervalHours <= 0 {
		c.PruneIntervalHours = d.PruneIntervalHours
	}
	if c.LocationInterval <= 0 {
		c.LocationInterval = d.LocationInterval
	}
	if c.LocationFastestInterval <= 0 {
		c.LocationFastestInterval = d.LocationFastestInterval
	}
	if c.LocationSmallestDisplacement < 0 {
		c.LocationSmallestDisplacement = d.LocationSmallestDisplacement
	}
	return c
}

// LocationRequest is the request the location manager submits.
func (c Config) LocationRequest() types.LocationRequest {
	return types.LocationRequest{
		Interval:             c.LocationInterval,
		FastestInterval:      c.LocationFastestInterval,
		SmallestDisplacement: c.LocationSmallestDisplacement,
		Priority:             types.PriorityHighAccuracy,
	}
}
