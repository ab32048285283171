package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DataConfig holds on-disk layout configuration
type DataConfig struct {
	Dir      string `mapstructure:"dir"`       // Database directory
	ThumbDir string `mapstructure:"thumb_dir"` // Thumbnail output directory
}

// JobsConfig holds job supervisor configuration
type JobsConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"` // Running jobs across all scopes
}

// PolicyConfig holds the validation decisions left open per deployment
type PolicyConfig struct {
	UniqueLibraryNames bool `mapstructure:"unique_library_names"`
	UniqueTagNames     bool `mapstructure:"unique_tag_names"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:      defaultDataPath(),
			ThumbDir: filepath.Join(defaultDataPath(), "thumbnails"),
		},
		Jobs: JobsConfig{
			MaxConcurrent: 4,
		},
		Policy: PolicyConfig{
			UniqueLibraryNames: true,
			UniqueTagNames:     true,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "arca")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "arca")
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	return filepath.Join(defaultDataPath(), "arca.log")
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "arca")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "arca")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("ARCA")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("data.dir", cfg.Data.Dir)
	viper.Set("data.thumb_dir", cfg.Data.ThumbDir)

	viper.Set("jobs.max_concurrent", cfg.Jobs.MaxConcurrent)

	viper.Set("policy.unique_library_names", cfg.Policy.UniqueLibraryNames)
	viper.Set("policy.unique_tag_names", cfg.Policy.UniqueTagNames)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
