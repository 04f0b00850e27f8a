// =============================================================================
// Order Report Generator - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the per-platform
// batch rules.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults
//   2. Main config (config.yaml)
//   3. A .env file next to the working directory, if any
//   4. ORDER_REPORT_* environment variables
//
// PLATFORM RULES (configs/*.yaml):
//   One file per platform, telling batch mode which input files belong to
//   the platform and how CSV exports of it are laid out. The column mapping
//   itself is fixed per platform and never configured here.
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

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "./config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ORDER_REPORT_"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by batch mode for order exports.
	// Default: "./input"
	InputDir string `yaml:"input_dir" env:"INPUT_DIR" validate:"required"`

	// OutputDir receives generated reports.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR" validate:"required"`

	// InputArchiveDir receives exports after they were processed successfully.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir" env:"INPUT_ARCHIVE_DIR" validate:"required"`

	// ConfigsDir holds the per-platform rule files.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir" env:"CONFIGS_DIR" validate:"required"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is the rotated log file. Empty disables file logging.
	// Default: "./logs/orderreport.log"
	LogFile string `yaml:"log_file" env:"LOG_FILE"`

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// LogMaxSizeMB is the size at which the log file is rotated.
	// Default: 10
	LogMaxSizeMB int `yaml:"log_max_size_mb" env:"LOG_MAX_SIZE_MB" validate:"min=1"`

	// LogMaxBackups is the number of rotated files kept.
	// Default: 5
	LogMaxBackups int `yaml:"log_max_backups" env:"LOG_MAX_BACKUPS" validate:"min=0"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// UUIDFormat names generated report files. Placeholders:
	//   {uuid}      - a random UUID
	//   {timestamp} - the generation time, 20060102_150405
	//   {platform}  - the platform identifier
	//   {date}      - the first selected date, 20060102
	// The extension of the report format is appended.
	// Default: "{platform}_{date}_{uuid}"
	UUIDFormat string `yaml:"uuid_format" env:"UUID_FORMAT" validate:"required,unique_name"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the number of exports processed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY" validate:"min=1,max=64"`

	// ContinueOnError keeps batch mode going after a failed file.
	ContinueOnError bool `yaml:"continue_on_error" env:"CONTINUE_ON_ERROR"`

	// ArchiveTimestampSubdirs archives exports under YYYY/MM/DD
	// subdirectories of InputArchiveDir.
	ArchiveTimestampSubdirs bool `yaml:"archive_timestamp_subdirs" env:"ARCHIVE_TIMESTAMP_SUBDIRS"`

	// =========================================================================
	// SERVICES
	// =========================================================================

	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Tracker TrackerConfig `yaml:"tracker" envPrefix:"TRACKER_"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Address is the listen address.
	// Default: ":8080"
	Address string `yaml:"address" env:"ADDRESS" validate:"required,hostname_port"`

	// MaxUploadMB caps the size of an uploaded workbook.
	// Default: 20
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB" validate:"min=1"`

	// DevMode switches gin to debug mode.
	DevMode bool `yaml:"dev_mode" env:"DEV_MODE"`
}

// SessionConfig configures the upload session store.
type SessionConfig struct {
	// Backend is "pebble" (on disk) or "memory".
	// Default: "pebble"
	Backend string `yaml:"backend" env:"BACKEND" validate:"oneof=pebble memory"`

	// Dir is the pebble data directory.
	// Default: "./data/sessions"
	Dir string `yaml:"dir" env:"DIR" validate:"required_if=Backend pebble"`

	// TTL is how long an upload session is kept.
	// Default: 24h
	TTL time.Duration `yaml:"ttl" env:"TTL" validate:"min=1m"`
}

// TrackerConfig configures the task tracker.
type TrackerConfig struct {
	// File is the JSON data file.
	// Default: "./data/tasks.json"
	File string `yaml:"file" env:"FILE" validate:"required"`

	// Owner is written into newly created data files.
	Owner string `yaml:"owner" env:"OWNER"`
}

// =============================================================================
// PLATFORM RULE STRUCTURE
// =============================================================================

// PlatformRule holds the batch settings of one platform.
// Loaded from configs/<platform>.yaml.
type PlatformRule struct {
	// Platform is the platform identifier (official, shopee, momo).
	Platform string `yaml:"platform" validate:"required"`

	// FileMatchingPatterns are glob patterns matched against input file
	// names, e.g. "*蝦皮*.xlsx".
	FileMatchingPatterns []string `yaml:"file_matching_patterns" validate:"min=1,dive,required"`

	// SheetName overrides the profile's source sheet name.
	SheetName string `yaml:"sheet_name"`

	// CSVSettings applies to .csv exports of the platform.
	CSVSettings CSVSettings `yaml:"csv_settings"`
}

// CSVSettings describes the layout of a CSV export.
type CSVSettings struct {
	// Delimiter is the field separator: ",", "tab", "|" or ";".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRow is the 1-based row holding the column names.
	// Default: 1
	HeaderRow int `yaml:"header_row" validate:"min=1"`

	// DataStartRow is the 1-based first data row.
	// Default: HeaderRow + 1
	DataStartRow int `yaml:"data_start_row" validate:"gtfield=HeaderRow"`
}

// Matches reports whether a file name matches one of the rule's patterns.
// Matching ignores case.
func (r *PlatformRule) Matches(fileName string) bool {
	name := strings.ToLower(filepath.Base(fileName))
	for _, pattern := range r.FileMatchingPatterns {
		if ok, err := filepath.Match(strings.ToLower(pattern), name); err == nil && ok {
			return true
		}
	}
	return false
}

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("unique_name", validateUniqueName)
	return v
}

// validateUniqueName requires a file name template that cannot collide.
func validateUniqueName(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return strings.Contains(value, "{uuid}") || strings.Contains(value, "{timestamp}")
}

// Default returns the configuration used when no file is present.
func Default() *MainConfig {
	config := &MainConfig{}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file
//     at DefaultPath yields the defaults; any other missing file is an error.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && filepath.Clean(configPath) == filepath.Clean(DefaultPath):
		// First run without a config file.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadDotEnv loads a .env file into the process environment when it exists.
// Variables already set are not overwritten.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.LogFile == "" {
		config.LogFile = "./logs/orderreport.log"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogMaxSizeMB == 0 {
		config.LogMaxSizeMB = 10
	}
	if config.LogMaxBackups == 0 {
		config.LogMaxBackups = 5
	}
	if config.UUIDFormat == "" {
		config.UUIDFormat = "{platform}_{date}_{uuid}"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 20
	}
	if config.Session.Backend == "" {
		config.Session.Backend = "pebble"
	}
	if config.Session.Dir == "" {
		config.Session.Dir = "./data/sessions"
	}
	if config.Session.TTL == 0 {
		config.Session.TTL = 24 * time.Hour
	}
	if config.Tracker.File == "" {
		config.Tracker.File = "./data/tasks.json"
	}
}

// validateMainConfig validates the main configuration.
// Directories are not created here; batch mode creates its own through
// utils.FileManager.EnsureDirectories.
func validateMainConfig(config *MainConfig) error {
	config.LogLevel = strings.ToLower(config.LogLevel)
	config.Session.Backend = strings.ToLower(config.Session.Backend)
	return validate.Struct(config)
}

// LoadPlatformRules loads all platform rules from a directory.
//
// PARAMETERS:
//   - configsDir: The directory holding the rule files. A missing directory
//     yields no rules.
//
// RETURNS:
//   - The rules keyed by platform identifier.
//   - An error if any file cannot be parsed or is invalid.
func LoadPlatformRules(configsDir string) (map[string]*PlatformRule, error) {
	rules := make(map[string]*PlatformRule)

	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		rule, err := loadPlatformRule(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		if _, dup := rules[rule.Platform]; dup {
			return nil, fmt.Errorf("failed to load %s: duplicate rule for platform %s", file, rule.Platform)
		}
		rules[rule.Platform] = rule
	}

	return rules, nil
}

// loadPlatformRule loads a single platform rule file.
func loadPlatformRule(filePath string) (*PlatformRule, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rule PlatformRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	rule.Platform = strings.ToLower(strings.TrimSpace(rule.Platform))
	applyCSVDefaults(&rule.CSVSettings)

	if err := validate.Struct(&rule); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	return &rule, nil
}

// DefaultPlatformRules returns the rules used for platforms without a rule
// file: a file belongs to a platform when its name mentions it.
func DefaultPlatformRules() map[string]*PlatformRule {
	patterns := map[string][]string{
		"official": {"*官網*"},
		"shopee":   {"*蝦皮*", "*shopee*"},
		"momo":     {"*momo*"},
	}
	rules := make(map[string]*PlatformRule, len(patterns))
	for id, p := range patterns {
		rules[id] = &PlatformRule{
			Platform:             id,
			FileMatchingPatterns: p,
			CSVSettings:          DefaultCSVSettings(),
		}
	}
	return rules
}

// applyCSVDefaults sets default values for CSV settings.
func applyCSVDefaults(s *CSVSettings) {
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.HeaderRow == 0 {
		s.HeaderRow = 1
	}
	if s.DataStartRow == 0 {
		s.DataStartRow = s.HeaderRow + 1
	}
}

// DefaultCSVSettings returns the settings of a plain comma separated export.
func DefaultCSVSettings() CSVSettings {
	var s CSVSettings
	applyCSVDefaults(&s)
	return s
}
