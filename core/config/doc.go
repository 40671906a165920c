// Package config provides configuration management for the inventory sync service.
//
// It utilizes Viper for loading configuration from environment variables and an
// optional .env file. Defaults come from the `default` struct tags of each section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP port, API key and webhook secret
//   - Database: job ledger connection (mysql or sqlite)
//   - Storage: S3/MinIO bucket for archived run artifacts
//   - Log: Logging level and format
//   - Remote: admin API endpoint, token, rate limit and retries
//   - Bulk: poll interval, cancel settle delay and poll error budget
//   - Reconcile: batch unit size, quantity name, adjustment reason and cache TTLs
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Remote.GraphQLURL())
package config
