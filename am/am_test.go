package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance, no user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabase, cfg.Database.Path)
	require.NotNil(t, cfg.Server.Port)
	assert.Equal(t, DefaultServerPort, *cfg.Server.Port)
	assert.Equal(t, DefaultRatePerSec, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, DefaultRateBurst, cfg.Server.RateLimit.Burst)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, TracingExporterNone, cfg.Tracing.Exporter)
	assert.Equal(t, DefaultSampleRate, cfg.Tracing.SampleRatio)
	assert.NoError(t, cfg.Validate())
}

func TestConfigGetters(t *testing.T) {
	var cfg Config
	assert.Equal(t, DefaultServerPort, cfg.GetServerPort())
	assert.Equal(t, DefaultDatabase, cfg.GetDatabasePath())
	assert.NotEmpty(t, cfg.GetServerAllowedOrigins())

	cfg.Server.Port = intPtr(9000)
	cfg.Database.Path = "/tmp/kb.db"
	cfg.Server.AllowedOrigins = []string{"https://kb.example"}
	assert.Equal(t, 9000, cfg.GetServerPort())
	assert.Equal(t, "/tmp/kb.db", cfg.GetDatabasePath())
	assert.Equal(t, []string{"https://kb.example"}, cfg.GetServerAllowedOrigins())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"empty config is valid", Config{}, false},
		{"zero port is invalid", Config{Server: ServerConfig{Port: intPtr(0)}}, true},
		{"negative port is invalid", Config{Server: ServerConfig{Port: intPtr(-1)}}, true},
		{"port above range is invalid", Config{Server: ServerConfig{Port: intPtr(70000)}}, true},
		{"zero rate is unlimited", Config{Server: ServerConfig{RateLimit: RateLimitConfig{}}}, false},
		{"negative rate is invalid", Config{Server: ServerConfig{RateLimit: RateLimitConfig{RequestsPerSecond: -1}}}, true},
		{"rate without burst is invalid", Config{Server: ServerConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 5}}}, true},
		{"rate with burst is valid", Config{Server: ServerConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 5}}}, false},
		{"empty origin is invalid", Config{Server: ServerConfig{AllowedOrigins: []string{""}}}, true},
		{"stdout exporter is valid", Config{Tracing: TracingConfig{Exporter: TracingExporterStdout, SampleRatio: 1}}, false},
		{"otlp without endpoint is invalid", Config{Tracing: TracingConfig{Exporter: TracingExporterOTLP}}, true},
		{"otlp with endpoint is valid", Config{Tracing: TracingConfig{Exporter: TracingExporterOTLP, Endpoint: "localhost:4318"}}, false},
		{"unknown exporter is invalid", Config{Tracing: TracingConfig{Exporter: "jaeger"}}, true},
		{"sample ratio above one is invalid", Config{Tracing: TracingConfig{SampleRatio: 1.5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "kb.db"

[server]
port = 9090
allowed_origins = ["https://kb.example"]

[server.rate_limit]
requests_per_second = 2.5
burst = 5
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kb.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.GetServerPort())
	assert.Equal(t, []string{"https://kb.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Server.RateLimit.Burst)
}

func TestMergeConfigFiles_LaterWins(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	dir := t.TempDir()
	user := filepath.Join(dir, "user.toml")
	project := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(user, []byte("[database]\npath = \"user.db\"\n[log]\njson = true\n"), 0644))
	require.NoError(t, os.WriteFile(project, []byte("[database]\npath = \"project.db\"\n"), 0644))

	v := viper.New()
	SetDefaults(v)
	mergeConfigFiles(v, []candidate{
		{SourceSystem, filepath.Join(dir, "missing.toml")},
		{SourceUser, user},
		{SourceProject, project},
	})

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "project.db", cfg.Database.Path)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, SourceProject, configSources["database.path"].source)
	assert.Equal(t, SourceUser, configSources["log.json"].source)
	assert.Equal(t, []string{user, project}, loadedFiles)
}

func TestFindProjectConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigName), []byte(""), 0644))

	assert.Equal(t, filepath.Join(root, ProjectConfigName), findProjectConfig(nested))
}

func TestEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("PHYLO_DATABASE_PATH", "/env/kb.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/env/kb.db", cfg.Database.Path)

	settings, err := Introspect()
	require.NoError(t, err)
	var found bool
	for _, s := range settings {
		if s.Key == "database.path" {
			found = true
			assert.Equal(t, SourceEnvironment, s.Source)
			assert.Equal(t, "PHYLO_DATABASE_PATH", s.SourcePath)
		}
	}
	assert.True(t, found)
}

func TestSetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, SetValue(path, "server.port", "9191"))
	require.NoError(t, SetValue(path, "server.allowed_origins", "https://a.example, https://b.example"))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.GetServerPort())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)

	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)

	// Invalid values are refused and the file is left alone
	assert.Error(t, SetValue(path, "server.port", "0"))
	cfg, err = LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.GetServerPort())
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/x/am.toml.back1"))
	assert.True(t, isBackupFile("am.toml.back3"))
	assert.False(t, isBackupFile("am.toml"))
	assert.False(t, isBackupFile("am.toml.backup"))
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer cw.Stop()
	cw.debouncePeriod = 10 * time.Millisecond
	cw.load = func() (*Config, error) { return LoadFromFile(path) }

	reloaded := make(chan int, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg.GetServerPort()
		return nil
	})
	cw.Start()

	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9001\n"), 0644))

	select {
	case port := <-reloaded:
		assert.Equal(t, 9001, port)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload callback not called")
	}
}

func TestConfigWatcher_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 0\n"), 0644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer cw.Stop()
	cw.load = func() (*Config, error) { return LoadFromFile(path) }

	called := false
	cw.OnReload(func(*Config) error { called = true; return nil })
	assert.Error(t, cw.reload())
	assert.False(t, called)
}
