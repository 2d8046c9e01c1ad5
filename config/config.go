package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"

	"placementai/ml"
	"placementai/monitoring"
)

const (
	DefaultPath = "config.yaml"

	EnvConfigPath = "PLACEMENT_CONFIG"
	EnvPort       = "PLACEMENT_PORT"
	EnvModelPath  = "PLACEMENT_MODEL_PATH"
)

type Config struct {
	HTTP     HTTPConfig           `yaml:"http"`
	Log      monitoring.LogConfig `yaml:"log"`
	Database DatabaseConfig       `yaml:"database"`
	ML       MLConfig             `yaml:"ml"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	RateLimit      struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MLConfig struct {
	ModelType        string  `yaml:"model_type"`
	ModelPath        string  `yaml:"model_path"`
	DatasetPath      string  `yaml:"dataset_path"`
	LearningRate     float64 `yaml:"learning_rate"`
	Epochs           int     `yaml:"epochs"`
	Samples          int     `yaml:"samples"`
	Seed             int64   `yaml:"seed"`
	TestRatio        float64 `yaml:"test_ratio"`
	ProgressInterval int     `yaml:"progress_interval"`
	RetrainSchedule  string  `yaml:"retrain_schedule"`
	WatchModel       bool    `yaml:"watch_model"`
	CacheSize        int     `yaml:"cache_size"`
}

// TrainConfig maps the ml section onto trainer settings.
func (c MLConfig) TrainConfig() ml.TrainConfig {
	return ml.TrainConfig{
		LearningRate:     c.LearningRate,
		Epochs:           c.Epochs,
		TestRatio:        c.TestRatio,
		Seed:             c.Seed,
		ProgressInterval: c.ProgressInterval,
	}
}

func Default() *Config {
	cfg := &Config{
		Log:      monitoring.DefaultLogConfig(),
		Database: DatabaseConfig{Path: "data/placement.db"},
		ML: MLConfig{
			ModelType:        ml.ModelTypeLogisticRegression,
			ModelPath:        "model_state.json",
			DatasetPath:      "data.json",
			LearningRate:     ml.DefaultLearningRate,
			Epochs:           ml.ProductionEpochs,
			Samples:          ml.DefaultSampleCount,
			Seed:             -1,
			TestRatio:        0.2,
			ProgressInterval: 100,
			WatchModel:       true,
			CacheSize:        1024,
		},
	}
	cfg.HTTP.Port = 5001
	cfg.HTTP.Timeout = 30 * time.Second
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.HTTP.MaxBodyBytes = 1 << 20
	cfg.HTTP.RateLimit.RPS = 50
	cfg.HTTP.RateLimit.Burst = 100
	return cfg
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// GetConfigPath returns the config file path from the environment or the
// default.
func GetConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	return DefaultPath
}

func applyEnvironmentOverrides(cfg *Config) error {
	if port := os.Getenv(EnvPort); port != "" {
		value, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.HTTP.Port = value
	}
	if modelPath := os.Getenv(EnvModelPath); modelPath != "" {
		cfg.ML.ModelPath = modelPath
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.RateLimit.RPS < 0 || cfg.HTTP.RateLimit.Burst < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	if !ml.SupportedModelType(cfg.ML.ModelType) {
		return fmt.Errorf("unsupported ml.model_type %q", cfg.ML.ModelType)
	}
	if cfg.ML.ModelPath == "" {
		return fmt.Errorf("ml.model_path is required")
	}
	if cfg.ML.LearningRate <= 0 {
		return fmt.Errorf("ml.learning_rate must be positive, got %v", cfg.ML.LearningRate)
	}
	if cfg.ML.Epochs <= 0 {
		return fmt.Errorf("ml.epochs must be positive, got %d", cfg.ML.Epochs)
	}
	if cfg.ML.Samples <= 0 {
		return fmt.Errorf("ml.samples must be positive, got %d", cfg.ML.Samples)
	}
	if cfg.ML.TestRatio < 0 || cfg.ML.TestRatio >= 1 {
		return fmt.Errorf("ml.test_ratio must be in [0,1), got %v", cfg.ML.TestRatio)
	}
	if cfg.ML.CacheSize < 0 {
		return fmt.Errorf("ml.cache_size must not be negative")
	}
	if cfg.ML.RetrainSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ML.RetrainSchedule); err != nil {
			return fmt.Errorf("invalid ml.retrain_schedule %q: %w", cfg.ML.RetrainSchedule, err)
		}
	}
	return nil
}
