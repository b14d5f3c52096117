package am

import "github.com/teranos/phylo/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.Newf("server.port cannot be 0 (omit for default port %d)", DefaultServerPort)
	}
	if c.Server.Port != nil && (*c.Server.Port < 0 || *c.Server.Port > 65535) {
		return errors.Newf("server.port must be in 1-65535, got %d", *c.Server.Port)
	}

	// Rate limit: 0 = unlimited, negative = invalid
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return errors.Newf("server.rate_limit.requests_per_second must be >= 0, got %f", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst < 1 {
		return errors.WithHint(
			errors.Newf("server.rate_limit.burst must be >= 1 when rate limiting, got %d", c.Server.RateLimit.Burst),
			"set burst to at least requests_per_second")
	}

	for _, origin := range c.Server.AllowedOrigins {
		if origin == "" {
			return errors.New("server.allowed_origins cannot contain empty entries")
		}
	}

	switch c.Tracing.Exporter {
	case "", TracingExporterNone, TracingExporterStdout:
	case TracingExporterOTLP:
		if c.Tracing.Endpoint == "" {
			return errors.WithHint(
				errors.New("tracing.endpoint is required for the otlp exporter"),
				"set it to the collector host:port, e.g. localhost:4318")
		}
	default:
		return errors.Newf("tracing.exporter must be none, stdout or otlp, got %q", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.Newf("tracing.sample_ratio must be in 0-1, got %f", c.Tracing.SampleRatio)
	}

	return nil
}
