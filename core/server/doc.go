// Package server holds the HTTP server configuration.
//
// While cmd/start handles the server startup, this package defines the listen port,
// the API key protecting every route, the shared secret used to verify inbound
// webhooks, and the request body limit applied to CSV uploads.
package server
