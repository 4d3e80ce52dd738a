// Package config loads the siteatlas configuration from config.yaml and the
// environment, and initializes the global logger.
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
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// UpstreamConfig holds endpoints and limits for the external services.
type UpstreamConfig struct {
	GeodataBaseURL string `yaml:"geodata_base_url" mapstructure:"geodata_base_url"`
	OverpassURL    string `yaml:"overpass_url" mapstructure:"overpass_url"`
	BasemapURL     string `yaml:"basemap_url" mapstructure:"basemap_url"`
	BasemapFormat  string `yaml:"basemap_format" mapstructure:"basemap_format"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// DataConfig points at the static reference layers loaded once at startup.
type DataConfig struct {
	ZoningPath    string  `yaml:"zoning_path" mapstructure:"zoning_path"`
	BuildingsPath string  `yaml:"buildings_path" mapstructure:"buildings_path"`
	MinHeightM    float64 `yaml:"min_height_m" mapstructure:"min_height_m"`
}

// AnalysisConfig holds the tunable constants of the analysis pipelines.
type AnalysisConfig struct {
	WalkSpeedKMH     float64 `yaml:"walk_speed_kmh" mapstructure:"walk_speed_kmh"`
	DriveSpeedKMH    float64 `yaml:"drive_speed_kmh" mapstructure:"drive_speed_kmh"`
	GraphRadiusM     float64 `yaml:"graph_radius_m" mapstructure:"graph_radius_m"`
	StationRadiusM   float64 `yaml:"station_radius_m" mapstructure:"station_radius_m"`
	StationCount     int     `yaml:"station_count" mapstructure:"station_count"`
	FetchMaxRows     int     `yaml:"fetch_max_rows" mapstructure:"fetch_max_rows"`
	SectorWidthDeg   float64 `yaml:"sector_width_deg" mapstructure:"sector_width_deg"`
	ViewRadiusM      float64 `yaml:"view_radius_m" mapstructure:"view_radius_m"`
	ViewContextM     float64 `yaml:"view_context_m" mapstructure:"view_context_m"`
	ViewFetchM       float64 `yaml:"view_fetch_m" mapstructure:"view_fetch_m"`
	NoiseStudyM      float64 `yaml:"noise_study_m" mapstructure:"noise_study_m"`
	NoiseGridResM    float64 `yaml:"noise_grid_res_m" mapstructure:"noise_grid_res_m"`
	TrafficFlow      float64 `yaml:"traffic_flow" mapstructure:"traffic_flow"`
	HeavyPercent     float64 `yaml:"heavy_percent" mapstructure:"heavy_percent"`
	TrafficSpeedKMH  float64 `yaml:"traffic_speed_kmh" mapstructure:"traffic_speed_kmh"`
	GroundAbsorption float64 `yaml:"ground_absorption" mapstructure:"ground_absorption"`
}

// ReportConfig configures the composite report.
type ReportConfig struct {
	FailFast bool `yaml:"fail_fast" mapstructure:"fail_fast"`
}

// Load reads configuration from config.yaml (optional) and SITEATLAS_* env vars.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITEATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("upstream.geodata_base_url", "https://mapapi.geodata.gov.hk/gs/api/v1.0.0")
	v.SetDefault("upstream.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("upstream.basemap_url", "https://basemaps.cartocdn.com/light_nolabels")
	v.SetDefault("upstream.basemap_format", "png")
	v.SetDefault("upstream.timeout_secs", 15)
	v.SetDefault("upstream.max_retries", 0)
	v.SetDefault("upstream.user_agent", "siteatlas/1.0")
	v.SetDefault("data.zoning_path", "data/zone_reduced.shp")
	v.SetDefault("data.buildings_path", "data/buildings_final.shp")
	v.SetDefault("data.min_height_m", 5)
	v.SetDefault("analysis.walk_speed_kmh", 5)
	v.SetDefault("analysis.drive_speed_kmh", 35)
	v.SetDefault("analysis.graph_radius_m", 1200)
	v.SetDefault("analysis.station_radius_m", 1000)
	v.SetDefault("analysis.station_count", 3)
	v.SetDefault("analysis.fetch_max_rows", 800)
	v.SetDefault("analysis.sector_width_deg", 20)
	v.SetDefault("analysis.view_radius_m", 360)
	v.SetDefault("analysis.view_context_m", 800)
	v.SetDefault("analysis.view_fetch_m", 1500)
	v.SetDefault("analysis.noise_study_m", 140)
	v.SetDefault("analysis.noise_grid_res_m", 10)
	v.SetDefault("analysis.traffic_flow", 1200)
	v.SetDefault("analysis.heavy_percent", 0.12)
	v.SetDefault("analysis.traffic_speed_kmh", 40)
	v.SetDefault("analysis.ground_absorption", 0.6)
	v.SetDefault("report.fail_fast", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
