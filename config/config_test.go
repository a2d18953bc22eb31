package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/dinogen/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  request_timeout: 20s

remote:
  url: "http://localhost:8000/"
  timeout: 15s
  api_key: "secret"
  headers:
    X-Tenant: "acme"

generator:
  default_samples: 5
  max_samples: 50
  max_sessions: 10

database:
  driver: "sqlite"
  dsn: ":memory:"

logging:
  level: debug
  format: console

metrics:
  enabled: true

openapi:
  enabled: true
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr = %s, want 127.0.0.1:9090", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v, want 20s", cfg.Server.RequestTimeout)
	}
	if cfg.Remote.URL != "http://localhost:8000" {
		t.Errorf("Remote.URL = %s, want trailing slash trimmed", cfg.Remote.URL)
	}
	if cfg.Remote.Timeout != 15*time.Second {
		t.Errorf("Remote.Timeout = %v, want 15s", cfg.Remote.Timeout)
	}
	if cfg.Remote.APIKey != "secret" || cfg.Remote.Headers["X-Tenant"] != "acme" {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	if cfg.Generator.DefaultSamples != 5 || cfg.Generator.MaxSamples != 50 || cfg.Generator.MaxSessions != 10 {
		t.Errorf("Generator = %+v", cfg.Generator)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("Database.DSN = %s", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if !cfg.OpenAPI.Enabled {
		t.Error("OpenAPI.Enabled = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
remote:
  url: "http://localhost:8000"
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("default WriteTimeout = %v, want 0", cfg.Server.WriteTimeout)
	}
	if cfg.Remote.DataTypesPath != "/api/data-types/" {
		t.Errorf("default DataTypesPath = %s", cfg.Remote.DataTypesPath)
	}
	if cfg.Remote.GeneratePath != "/api/generate-documents/" {
		t.Errorf("default GeneratePath = %s", cfg.Remote.GeneratePath)
	}
	if cfg.Remote.Timeout != 30*time.Second {
		t.Errorf("default Remote.Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Generator.Format != "json" || cfg.Generator.DefaultSamples != 3 || cfg.Generator.MaxSamples != 100 {
		t.Errorf("default Generator = %+v", cfg.Generator)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "dinogen.db" {
		t.Errorf("default Database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be off by default")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REMOTE_URL", "http://env-test:8000")

	content := `
remote:
  url: "${TEST_REMOTE_URL}"
`

	cfg := writeAndLoad(t, content)

	if cfg.Remote.URL != "http://env-test:8000" {
		t.Errorf("Remote.URL = %s, want http://env-test:8000", cfg.Remote.URL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing remote url",
			content: "server:\n  port: 8080\n",
			wantErr: "remote.url is required",
		},
		{
			name:    "relative remote url",
			content: "remote:\n  url: \"localhost\"\n",
			wantErr: "absolute URL",
		},
		{
			name:    "unsupported format",
			content: "remote:\n  url: \"http://x\"\ngenerator:\n  format: csv\n",
			wantErr: "generator.format",
		},
		{
			name:    "negative default samples",
			content: "remote:\n  url: \"http://x\"\ngenerator:\n  default_samples: -2\n",
			wantErr: "default_samples",
		},
		{
			name:    "max below default",
			content: "remote:\n  url: \"http://x\"\ngenerator:\n  default_samples: 10\n  max_samples: 5\n",
			wantErr: "max_samples",
		},
		{
			name:    "negative max sessions",
			content: "remote:\n  url: \"http://x\"\ngenerator:\n  max_sessions: -1\n",
			wantErr: "max_sessions",
		},
		{
			name:    "unknown driver",
			content: "remote:\n  url: \"http://x\"\ndatabase:\n  driver: postgres\n",
			wantErr: "database.driver",
		},
		{
			name:    "unknown log level",
			content: "remote:\n  url: \"http://x\"\nlogging:\n  level: loud\n",
			wantErr: "logging.level",
		},
		{
			name:    "unknown log format",
			content: "remote:\n  url: \"http://x\"\nlogging:\n  format: xml\n",
			wantErr: "logging.format",
		},
		{
			name:    "port out of range",
			content: "remote:\n  url: \"http://x\"\nserver:\n  port: 70000\n",
			wantErr: "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DINOGEN_REMOTE_URL", "http://gen:8000")
	t.Setenv("DINOGEN_SERVER_PORT", "9000")
	t.Setenv("DINOGEN_GENERATOR_MAX_SESSIONS", "4")
	t.Setenv("DINOGEN_DATABASE_DRIVER", "memory")
	t.Setenv("DINOGEN_LOG_LEVEL", "warn")
	t.Setenv("DINOGEN_METRICS_ENABLED", "yes")
	t.Setenv("DINOGEN_OPENAPI_ENABLED", "on")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Remote.URL != "http://gen:8000" {
		t.Errorf("Remote.URL = %s", cfg.Remote.URL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Generator.MaxSessions != 4 {
		t.Errorf("MaxSessions = %d, want 4", cfg.Generator.MaxSessions)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Driver = %s, want memory", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if !cfg.OpenAPI.Enabled {
		t.Error("OpenAPI.Enabled = false, want true")
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("DINOGEN_REMOTE_URL", "")

	if _, err := config.LoadFromEnv(); err == nil {
		t.Error("expected error without DINOGEN_REMOTE_URL")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("DINOGEN_REMOTE_URL", "http://override:8000")
	t.Setenv("DINOGEN_REMOTE_TIMEOUT", "3s")
	t.Setenv("DINOGEN_GENERATOR_DEFAULT_SAMPLES", "7")

	content := `
remote:
  url: "http://file:8000"
  timeout: 10s
`

	cfg := writeAndLoad(t, content)

	if cfg.Remote.URL != "http://override:8000" {
		t.Errorf("Remote.URL = %s, want override", cfg.Remote.URL)
	}
	if cfg.Remote.Timeout != 3*time.Second {
		t.Errorf("Remote.Timeout = %v, want 3s", cfg.Remote.Timeout)
	}
	if cfg.Generator.DefaultSamples != 7 {
		t.Errorf("DefaultSamples = %d, want 7", cfg.Generator.DefaultSamples)
	}
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("DINOGEN_SERVER_PORT", "not-a-port")
	t.Setenv("DINOGEN_REMOTE_TIMEOUT", "soon")
	t.Setenv("DINOGEN_GENERATOR_MAX_SAMPLES", "many")

	content := `
server:
  port: 9191
remote:
  url: "http://localhost:8000"
  timeout: 12s
generator:
  max_samples: 20
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Remote.Timeout != 12*time.Second {
		t.Errorf("Remote.Timeout = %v, want 12s", cfg.Remote.Timeout)
	}
	if cfg.Generator.MaxSamples != 20 {
		t.Errorf("MaxSamples = %d, want 20", cfg.Generator.MaxSamples)
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("file exists", func(t *testing.T) {
		t.Setenv("DINOGEN_REMOTE_URL", "")
		dir := t.TempDir()
		path := filepath.Join(dir, "dinogen.yaml")
		os.WriteFile(path, []byte("remote:\n  url: \"http://file:8000\"\n"), 0644)

		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Remote.URL != "http://file:8000" {
			t.Errorf("Remote.URL = %s", cfg.Remote.URL)
		}
	})

	t.Run("env only", func(t *testing.T) {
		t.Setenv("DINOGEN_REMOTE_URL", "http://env:8000")

		cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("LoadWithFallback error: %v", err)
		}
		if cfg.Remote.URL != "http://env:8000" {
			t.Errorf("Remote.URL = %s", cfg.Remote.URL)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		t.Setenv("DINOGEN_REMOTE_URL", "")

		if _, err := config.LoadWithFallback(""); err == nil {
			t.Error("expected error without file or env")
		}
	})
}

func TestHasEnvConfig(t *testing.T) {
	t.Setenv("DINOGEN_REMOTE_URL", "")
	if config.HasEnvConfig() {
		t.Error("HasEnvConfig = true without DINOGEN_REMOTE_URL")
	}

	t.Setenv("DINOGEN_REMOTE_URL", "http://gen:8000")
	if !config.HasEnvConfig() {
		t.Error("HasEnvConfig = false with DINOGEN_REMOTE_URL")
	}
}

func TestParseBoolValues(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DINOGEN_REMOTE_URL", "http://gen:8000")
			t.Setenv("DINOGEN_METRICS_ENABLED", tt.value)

			cfg, err := config.LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv error: %v", err)
			}
			if cfg.Metrics.Enabled != tt.want {
				t.Errorf("Metrics.Enabled = %v, want %v", cfg.Metrics.Enabled, tt.want)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := writeAndLoadErr(t, "remote: [unclosed"); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := config.Load("/nonexistent/dinogen.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
