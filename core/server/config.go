package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// WebhookSecret is the shared secret used to sign inbound webhooks.
	WebhookSecret string `mapstructure:"webhook_secret" default:""`
	// BodyLimitMB caps request bodies (CSV imports), in megabytes.
	BodyLimitMB int `mapstructure:"body_limit_mb" default:"32"`
}

// WebhooksEnabled reports whether webhook routes should be mounted.
// Without a secret no inbound event could be verified.
func (c Config) WebhooksEnabled() bool {
	return c.WebhookSecret != ""
}

// BodyLimit returns the request body cap in bytes.
func (c Config) BodyLimit() int {
	if c.BodyLimitMB <= 0 {
		return 32 * 1024 * 1024
	}
	return c.BodyLimitMB * 1024 * 1024
}
