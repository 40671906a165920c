package remote

import (
	"strings"
	"time"
)

// Config holds the admin API connection settings.
type Config struct {
	// Endpoint is the store base URL, e.g. https://example.myshopify.com.
	Endpoint       string  `mapstructure:"endpoint" default:""`
	AccessToken    string  `mapstructure:"access_token" default:""`
	APIVersion     string  `mapstructure:"api_version" default:"2024-07"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" default:"30"`
	// TransferTimeoutSeconds bounds staged uploads and artifact downloads, body included.
	TransferTimeoutSeconds int     `mapstructure:"transfer_timeout_seconds" default:"600"`
	RateLimit              float64 `mapstructure:"rate_limit" default:"2"`
	RateBurst              int     `mapstructure:"rate_burst" default:"4"`
	MaxRetries             int     `mapstructure:"max_retries" default:"3"`
	PageSize               int     `mapstructure:"page_size" default:"100"`
}

// GraphQLURL returns the admin GraphQL endpoint.
func (c Config) GraphQLURL() string {
	if strings.HasSuffix(c.Endpoint, "/graphql.json") {
		return c.Endpoint
	}
	version := c.APIVersion
	if version == "" {
		version = "2024-07"
	}
	return strings.TrimSuffix(c.Endpoint, "/") + "/admin/api/" + version + "/graphql.json"
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) transferTimeout() time.Duration {
	if c.TransferTimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TransferTimeoutSeconds) * time.Second
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 || c.PageSize > 250 {
		return 100
	}
	return c.PageSize
}
