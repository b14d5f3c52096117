package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabase)

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins())
	v.SetDefault("server.rate_limit.requests_per_second", DefaultRatePerSec)
	v.SetDefault("server.rate_limit.burst", DefaultRateBurst)

	v.SetDefault("log.json", false)

	v.SetDefault("tracing.exporter", TracingExporterNone)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", DefaultSampleRate)
}

// BindSensitiveEnvVars explicitly binds configuration that deployments
// commonly inject through the environment.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH")
	v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT")
	v.BindEnv("tracing.endpoint", EnvPrefix+"_TRACING_ENDPOINT")
}
