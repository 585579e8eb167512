package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateEnv clears every variable Load reads and points HOME at an empty
// directory.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"FLOPPY_CONFIG_DIR", "FLOPPY_TRUST_PROJECT_CONFIG",
		"FLOPPY_SAVE_DIR", "SAVE_DIR", "FLOPPY_URL", "URL",
		"FLOPPY_LISTEN_ADDR", "FLOPPY_API_URL", "FLOPPY_LEDGER",
		"FLOPPY_LOG_FORMAT", "FLOPPY_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
	return home
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.StorageRoot != "" {
		t.Fatalf("expected empty storage root, got %q", cfg.StorageRoot)
	}
	if cfg.PublicURL != "http://localhost:8000/" {
		t.Fatalf("expected default public URL, got %q", cfg.PublicURL)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Guardian.Interval() != time.Hour {
		t.Fatalf("expected hourly sweeps, got %s", cfg.Guardian.Interval())
	}
	if cfg.Guardian.Workers != DefaultGuardianWorkers {
		t.Fatalf("expected %d workers, got %d", DefaultGuardianWorkers, cfg.Guardian.Workers)
	}
	if !cfg.Observability.Metrics {
		t.Fatal("expected metrics enabled by default")
	}
	if cfg.Observability.OTLPEndpoint != "" {
		t.Fatalf("expected tracing disabled by default, got %q", cfg.Observability.OTLPEndpoint)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".floppy.toml")
	if err := os.WriteFile(path, []byte(`storage_root = "/srv/floppy"
public_url = "https://floppy.example/"
log_level = "warn"

[guardian]
interval_minutes = 15
workers = 2
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "/srv/floppy" {
		t.Fatalf("expected storage root, got %q", cfg.StorageRoot)
	}
	if cfg.PublicURL != "https://floppy.example/" {
		t.Fatalf("expected public url, got %q", cfg.PublicURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Guardian.IntervalMinutes != 15 || cfg.Guardian.Workers != 2 {
		t.Fatalf("unexpected guardian config %#v", cfg.Guardian)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("expected untouched defaults to survive, got %q", cfg.ListenAddr)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.floppy.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.PublicURL != DefaultPublicURL {
		t.Fatalf("defaults should be preserved")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range AllowedKeys() {
		cfg := Default()
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("allowed key %q has no getter: %v", key, err)
		}
	}
	if IsAllowedKey("invalid") {
		t.Fatal("expected 'invalid' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		StorageRoot: "/data",
		PublicURL:   "http://files/",
		LedgerPath:  "/tmp/ledger.db",
		Guardian:    GuardianConfig{IntervalMinutes: 5, Workers: 3},
		Observability: ObservabilityConfig{
			Metrics:      false,
			OTLPProtocol: "grpc",
		},
	}

	cases := map[string]string{
		"storage_root":                "/data",
		"public_url":                  "http://files/",
		"ledger_path":                 "/tmp/ledger.db",
		"guardian.interval_minutes":   "5",
		"guardian.workers":            "3",
		"observability.metrics":       "false",
		"observability.otlp_protocol": "grpc",
	}
	for key, want := range cases {
		got, err := cfg.Get(key)
		if err != nil || got != want {
			t.Fatalf("%s: expected %q, got %q (err: %v)", key, want, got, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.toml")
	if err := SetKey(path, "public_url", "https://files.example/"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PublicURL != "https://files.example/" {
		t.Fatalf("expected public url, got %q", cfg.PublicURL)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("storage_root = \"old\"\napi_url = \"http://keep\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "storage_root", "new"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "new" {
		t.Fatalf("expected 'new', got %q", cfg.StorageRoot)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.toml")
	if err := SetKey(path, "guardian.workers", "8"); err != nil {
		t.Fatalf("set guardian.workers: %v", err)
	}
	if err := SetKey(path, "observability.metrics", "false"); err != nil {
		t.Fatalf("set observability.metrics: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Guardian.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Guardian.Workers)
	}
	if cfg.Observability.Metrics {
		t.Fatal("expected metrics disabled")
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	for key, value := range map[string]string{
		"invalid_key":                 "value",
		"guardian.interval_minutes":   "0",
		"guardian.workers":            "many",
		"observability.otlp_protocol": "udp",
		"log_format":                  "xml",
	} {
		if err := SetKey(path, key, value); err == nil {
			t.Fatalf("expected error setting %s=%s", key, value)
		}
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FLOPPY_CONFIG_DIR", dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, ".floppy.toml") {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, ".floppy.toml") {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("FLOPPY_SAVE_DIR", "/var/floppy")
	t.Setenv("FLOPPY_URL", "https://up.example/")
	t.Setenv("FLOPPY_LEDGER", "/tmp/override.db")
	t.Setenv("FLOPPY_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "/var/floppy" {
		t.Fatalf("expected env storage root, got %q", cfg.StorageRoot)
	}
	if cfg.PublicURL != "https://up.example/" {
		t.Fatalf("expected env public url, got %q", cfg.PublicURL)
	}
	if cfg.LedgerPath != "/tmp/override.db" {
		t.Fatalf("expected env ledger path, got %q", cfg.LedgerPath)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected json log format, got %q", cfg.LogFormat)
	}
}

func TestLegacyEnvNames(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SAVE_DIR", "/legacy")
	t.Setenv("URL", "http://legacy/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "/legacy" || cfg.PublicURL != "http://legacy/" {
		t.Fatalf("expected legacy env to apply, got root=%q url=%q", cfg.StorageRoot, cfg.PublicURL)
	}

	t.Setenv("FLOPPY_SAVE_DIR", "/prefixed")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "/prefixed" {
		t.Fatalf("expected prefixed variable to win, got %q", cfg.StorageRoot)
	}
}

func TestLoadNormalizesEmptyValues(t *testing.T) {
	home := isolateEnv(t)
	chdir(t, t.TempDir())

	if err := os.WriteFile(filepath.Join(home, ".floppy.toml"), []byte("log_level = \"\"\npublic_url = \"\"\n\n[guardian]\nworkers = 0\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.PublicURL != DefaultPublicURL {
		t.Fatalf("expected default public url, got %q", cfg.PublicURL)
	}
	if cfg.Guardian.Workers != DefaultGuardianWorkers {
		t.Fatalf("expected default workers, got %d", cfg.Guardian.Workers)
	}
}

func TestLoadIgnoresProjectConfigByDefault(t *testing.T) {
	home := isolateEnv(t)
	workspace := t.TempDir()
	chdir(t, workspace)

	if err := os.WriteFile(filepath.Join(home, ".floppy.toml"), []byte("storage_root = \"global\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, ".floppy.toml"), []byte("storage_root = \"project\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "global" {
		t.Fatalf("expected global storage root, got %q", cfg.StorageRoot)
	}
	if cfg.TrustedProjectConfigPath != "" {
		t.Fatalf("expected no trusted project config path, got %q", cfg.TrustedProjectConfigPath)
	}
}

func TestLoadAppliesProjectConfigWhenTrusted(t *testing.T) {
	home := isolateEnv(t)
	workspace := t.TempDir()
	chdir(t, workspace)

	if err := os.WriteFile(filepath.Join(home, ".floppy.toml"), []byte("storage_root = \"global\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, ".floppy.toml"), []byte("storage_root = \"project\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	t.Setenv("FLOPPY_TRUST_PROJECT_CONFIG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageRoot != "project" {
		t.Fatalf("expected trusted project storage root, got %q", cfg.StorageRoot)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if cfg.TrustedProjectConfigPath != filepath.Join(wd, ".floppy.toml") {
		t.Fatalf("unexpected trusted path %q", cfg.TrustedProjectConfigPath)
	}
}
