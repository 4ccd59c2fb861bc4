// =============================================================================
// Freight PO Editor - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration: where the intake, output, log and temp folders live, the
// ledger file names, companion extensions and logging settings.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. The YAML config file, if one exists
//   3. EDITORPO_* environment variables (e.g. EDITORPO_BASE_DIR)
//
// FOLDER LAYOUT:
//   <base_dir>/<input_root>/<folder>   intake, one folder per category
//   <base_dir>/<output_root>/<folder>  fully-processed items
//   <base_dir>/<log_dir>               success and error ledgers
//   <base_dir>/<temp_dir>              archive extraction directories
//
//   Relative roots are resolved against base_dir; absolute roots are used
//   as they are.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EDITORPO"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// BaseDir is the root of the folder tree. "~" and $VARS are expanded.
	// Default: "~/Desktop/EDITOR_BO_BARRY"
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"`

	// InputRoot holds one intake folder per category.
	// Default: "PARA_EDICAO"
	InputRoot string `yaml:"input_root" mapstructure:"input_root"`

	// OutputRoot mirrors InputRoot and only receives fully-processed items.
	// Default: "SAIDA_FINAL"
	OutputRoot string `yaml:"output_root" mapstructure:"output_root"`

	// LogDir holds the success and error ledgers.
	// Default: "LOG"
	LogDir string `yaml:"log_dir" mapstructure:"log_dir"`

	// TempDir is where archives are extracted while being repackaged.
	// Default: "TEMP"
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`

	// Folders names the per-category folder under InputRoot and OutputRoot.
	Folders FolderNames `yaml:"folders" mapstructure:"folders"`

	// =========================================================================
	// LEDGER SETTINGS
	// =========================================================================

	// SuccessLog is the success ledger file name inside LogDir.
	// Default: "LOG_EDICAO_PO.txt"
	SuccessLog string `yaml:"success_log" mapstructure:"success_log"`

	// ErrorLog is the error ledger file name inside LogDir. The file is only
	// created when the first failure is recorded.
	// Default: "LOG_ERRO.txt"
	ErrorLog string `yaml:"error_log" mapstructure:"error_log"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// CompanionExtensions lists the extensions of files that travel with a
	// loose document of the same base name (e.g. its DACTE rendering).
	// Default: [".pdf"]
	CompanionExtensions []string `yaml:"companion_extensions" mapstructure:"companion_extensions"`

	// StaleTempAge is how old an extraction directory left by an
	// interrupted run must be before a new run removes it.
	// Default: 24h
	StaleTempAge time.Duration `yaml:"stale_temp_age" mapstructure:"stale_temp_age"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of operational logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// LogFormat selects "console" or "json" output.
	// Default: "console"
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`
}

// FolderNames maps each category to its folder name.
type FolderNames struct {
	Freight  string `yaml:"freight" mapstructure:"freight"`
	Transfer string `yaml:"transfer" mapstructure:"transfer"`
	Cost     string `yaml:"cost" mapstructure:"cost"`
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// Folder returns the folder name of a category.
func (c *MainConfig) Folder(category types.Category) (string, error) {
	switch category {
	case types.CategoryFreight:
		return c.Folders.Freight, nil
	case types.CategoryTransfer:
		return c.Folders.Transfer, nil
	case types.CategoryCost:
		return c.Folders.Cost, nil
	}
	return "", fmt.Errorf("no folder configured for category %s", category)
}

// InputDir returns the intake folder of a category.
func (c *MainConfig) InputDir(category types.Category) (string, error) {
	folder, err := c.Folder(category)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.resolve(c.InputRoot), folder), nil
}

// OutputDir returns the output folder of a category.
func (c *MainConfig) OutputDir(category types.Category) (string, error) {
	folder, err := c.Folder(category)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.resolve(c.OutputRoot), folder), nil
}

// LogPath returns the ledger directory.
func (c *MainConfig) LogPath() string { return c.resolve(c.LogDir) }

// TempPath returns the extraction root.
func (c *MainConfig) TempPath() string { return c.resolve(c.TempDir) }

// Directories lists every directory the application writes to or reads
// from, in creation order.
func (c *MainConfig) Directories() []string {
	dirs := []string{c.resolve(c.InputRoot), c.resolve(c.OutputRoot), c.LogPath(), c.TempPath()}
	for _, category := range types.AllCategories {
		in, _ := c.InputDir(category)
		out, _ := c.OutputDir(category)
		dirs = append(dirs, in, out)
	}
	return dirs
}

func (c *MainConfig) resolve(path string) string {
	path = ExpandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ExpandPath(c.BaseDir), path)
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration. configPath may be empty, in which case
// config.yaml is looked up in the working directory and in
// ~/.config/editor-po. A missing file is not an error; defaults and
// environment overrides still apply.
//
// RETURNS:
//   - A pointer to the MainConfig struct, validated and with every
//     directory created.
//   - An error if the file cannot be parsed or a directory cannot be
//     created.
func Load(configPath string) (*MainConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	setDefaults(v, defaults)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "editor-po"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case configPath != "" && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key with viper so that environment variables
// are honored even when the config file does not mention the key.
func setDefaults(v *viper.Viper, d MainConfig) {
	v.SetDefault("base_dir", d.BaseDir)
	v.SetDefault("input_root", d.InputRoot)
	v.SetDefault("output_root", d.OutputRoot)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("temp_dir", d.TempDir)
	v.SetDefault("folders.freight", d.Folders.Freight)
	v.SetDefault("folders.transfer", d.Folders.Transfer)
	v.SetDefault("folders.cost", d.Folders.Cost)
	v.SetDefault("success_log", d.SuccessLog)
	v.SetDefault("error_log", d.ErrorLog)
	v.SetDefault("companion_extensions", d.CompanionExtensions)
	v.SetDefault("stale_temp_age", d.StaleTempAge)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Default returns the built-in configuration.
func Default() MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.BaseDir == "" {
		config.BaseDir = "~/Desktop/EDITOR_BO_BARRY"
	}
	if config.InputRoot == "" {
		config.InputRoot = "PARA_EDICAO"
	}
	if config.OutputRoot == "" {
		config.OutputRoot = "SAIDA_FINAL"
	}
	if config.LogDir == "" {
		config.LogDir = "LOG"
	}
	if config.TempDir == "" {
		config.TempDir = "TEMP"
	}
	if config.Folders.Freight == "" {
		config.Folders.Freight = "FRETE"
	}
	if config.Folders.Transfer == "" {
		config.Folders.Transfer = "TRANSFERENCIA"
	}
	if config.Folders.Cost == "" {
		config.Folders.Cost = "CUSTO"
	}
	if config.SuccessLog == "" {
		config.SuccessLog = "LOG_EDICAO_PO.txt"
	}
	if config.ErrorLog == "" {
		config.ErrorLog = "LOG_ERRO.txt"
	}
	if config.CompanionExtensions == nil {
		config.CompanionExtensions = []string{".pdf"}
	}
	if config.StaleTempAge == 0 {
		config.StaleTempAge = 24 * time.Hour
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "console"
	}
}

// validateMainConfig validates the main configuration and creates any
// missing directory.
func validateMainConfig(config *MainConfig) error {
	folders := map[string]string{}
	for _, category := range types.AllCategories {
		folder, _ := config.Folder(category)
		if strings.ContainsAny(folder, `/\`) {
			return fmt.Errorf("folder for %s must be a plain name, got %q", category, folder)
		}
		if other, dup := folders[folder]; dup {
			return fmt.Errorf("categories %s and %s share folder %q", other, category, folder)
		}
		folders[folder] = string(category)
	}

	if config.resolve(config.InputRoot) == config.resolve(config.OutputRoot) {
		return errors.New("input_root and output_root must differ")
	}
	if config.SuccessLog == config.ErrorLog {
		return errors.New("success_log and error_log must differ")
	}

	for i, ext := range config.CompanionExtensions {
		if !strings.HasPrefix(ext, ".") {
			config.CompanionExtensions[i] = "." + ext
		}
	}

	switch strings.ToLower(config.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", config.LogFormat)
	}

	return utils.EnsureDirectories(config.Directories()...)
}

// =============================================================================
// CONFIG FILE GENERATION
// =============================================================================

// WriteDefault writes the built-in configuration as YAML to path. An
// existing file is never overwritten.
func WriteDefault(path string) error {
	if utils.FileExists(path) {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return utils.WriteFileAtomic(path, data, 0o644)
}
