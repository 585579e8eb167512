package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPublicURL   = "http://localhost:8000/"
	DefaultListenAddr  = "127.0.0.1:8000"
	DefaultAPIURL      = "http://localhost:8000"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultServiceName = "floppy"

	DefaultGuardianIntervalMinutes = 60
	DefaultGuardianWorkers         = 4

	configFileName           = ".floppy.toml"
	configDirEnvKey          = "FLOPPY_CONFIG_DIR"
	trustProjectConfigEnvKey = "FLOPPY_TRUST_PROJECT_CONFIG"
)

// GuardianConfig controls retention sweeps.
type GuardianConfig struct {
	IntervalMinutes int `toml:"interval_minutes"`
	Workers         int `toml:"workers"`
}

// Interval returns the sweep interval as a duration.
func (g GuardianConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMinutes) * time.Minute
}

// ObservabilityConfig controls metrics and tracing.
type ObservabilityConfig struct {
	Metrics      bool   `toml:"metrics"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	OTLPProtocol string `toml:"otlp_protocol"`
	ServiceName  string `toml:"service_name"`
}

// Config defines runtime configuration for floppy.
type Config struct {
	StorageRoot              string              `toml:"storage_root"`
	PublicURL                string              `toml:"public_url"`
	ListenAddr               string              `toml:"listen_addr"`
	APIURL                   string              `toml:"api_url"`
	LedgerPath               string              `toml:"ledger_path"`
	LogLevel                 string              `toml:"log_level"`
	LogFormat                string              `toml:"log_format"`
	Guardian                 GuardianConfig      `toml:"guardian"`
	Observability            ObservabilityConfig `toml:"observability"`
	TrustedProjectConfigPath string              `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		StorageRoot: "",
		PublicURL:   DefaultPublicURL,
		ListenAddr:  DefaultListenAddr,
		APIURL:      DefaultAPIURL,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Guardian: GuardianConfig{
			IntervalMinutes: DefaultGuardianIntervalMinutes,
			Workers:         DefaultGuardianWorkers,
		},
		Observability: ObservabilityConfig{
			Metrics:      true,
			OTLPProtocol: "http",
			ServiceName:  DefaultServiceName,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"storage_root",
	"public_url",
	"listen_addr",
	"api_url",
	"ledger_path",
	"log_level",
	"log_format",
	"guardian.interval_minutes",
	"guardian.workers",
	"observability.metrics",
	"observability.otlp_endpoint",
	"observability.otlp_protocol",
	"observability.service_name",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "storage_root":
		return c.StorageRoot, nil
	case "public_url":
		return c.PublicURL, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "api_url":
		return c.APIURL, nil
	case "ledger_path":
		return c.LedgerPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "guardian.interval_minutes":
		return strconv.Itoa(c.Guardian.IntervalMinutes), nil
	case "guardian.workers":
		return strconv.Itoa(c.Guardian.Workers), nil
	case "observability.metrics":
		return strconv.FormatBool(c.Observability.Metrics), nil
	case "observability.otlp_endpoint":
		return c.Observability.OTLPEndpoint, nil
	case "observability.otlp_protocol":
		return c.Observability.OTLPProtocol, nil
	case "observability.service_name":
		return c.Observability.ServiceName, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	applyEnv(&cfg)
	cfg.normalize()

	return &cfg, nil
}

// applyEnv applies environment overrides. The unprefixed SAVE_DIR and URL
// variables are honoured for existing deployments.
func applyEnv(cfg *Config) {
	if v, ok := firstEnv("FLOPPY_SAVE_DIR", "SAVE_DIR"); ok {
		cfg.StorageRoot = v
	}
	if v, ok := firstEnv("FLOPPY_URL", "URL"); ok {
		cfg.PublicURL = v
	}
	if v, ok := firstEnv("FLOPPY_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := firstEnv("FLOPPY_API_URL"); ok {
		cfg.APIURL = v
	}
	if v, ok := firstEnv("FLOPPY_LEDGER"); ok {
		cfg.LedgerPath = v
	}
	if v, ok := firstEnv("FLOPPY_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := firstEnv("FLOPPY_OTLP_ENDPOINT"); ok {
		cfg.Observability.OTLPEndpoint = v
	}
}

func firstEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v, true
		}
	}
	return "", false
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "guardian.interval_minutes", "guardian.workers":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "observability.metrics":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "observability.otlp_protocol":
		if value != "http" && value != "grpc" {
			return nil, fmt.Errorf("%s must be http or grpc", key)
		}
		return value, nil
	case "log_format":
		if value != "text" && value != "json" {
			return nil, fmt.Errorf("%s must be text or json", key)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat != "json" {
		c.LogFormat = DefaultLogFormat
	}
	if strings.TrimSpace(c.PublicURL) == "" {
		c.PublicURL = DefaultPublicURL
	}
	if c.Guardian.IntervalMinutes <= 0 {
		c.Guardian.IntervalMinutes = DefaultGuardianIntervalMinutes
	}
	if c.Guardian.Workers <= 0 {
		c.Guardian.Workers = DefaultGuardianWorkers
	}
	if c.Observability.OTLPProtocol != "grpc" {
		c.Observability.OTLPProtocol = "http"
	}
	if strings.TrimSpace(c.Observability.ServiceName) == "" {
		c.Observability.ServiceName = DefaultServiceName
	}
}
