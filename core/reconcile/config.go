package reconcile

import "time"

// Config holds import planning settings.
type Config struct {
	// BatchUnitSize is the maximum number of diffs per mutation call.
	BatchUnitSize int `mapstructure:"batch_unit_size" default:"1"`
	// QuantityName is the quantity being set (e.g. "available", "on_hand").
	QuantityName string `mapstructure:"quantity_name" default:"available"`
	// Reason is the adjustment reason sent with every change.
	Reason string `mapstructure:"reason" default:"correction"`
	// LocationsTTLSeconds is how long the location catalog is cached.
	LocationsTTLSeconds int `mapstructure:"locations_ttl_seconds" default:"300"`
	// ArchivePrefix is the object prefix under which run artifacts are archived.
	ArchivePrefix string `mapstructure:"archive_prefix" default:"inventory"`
}

// UnitSize returns the batch unit cap, at least 1.
func (c Config) UnitSize() int {
	if c.BatchUnitSize < 1 {
		return 1
	}
	return c.BatchUnitSize
}

// LocationsTTL returns the location cache TTL.
func (c Config) LocationsTTL() time.Duration {
	return time.Duration(c.LocationsTTLSeconds) * time.Second
}

// PayloadOptions returns the mutation input settings.
func (c Config) PayloadOptions() PayloadOptions {
	opts := PayloadOptions{Name: c.QuantityName, Reason: c.Reason}
	if opts.Name == "" {
		opts.Name = "available"
	}
	if opts.Reason == "" {
		opts.Reason = "correction"
	}
	return opts
}
