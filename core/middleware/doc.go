// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key validation (X-API-Key header or Bearer token).
//   - rayid: generates a RayID per request, stores it in Locals and echoes it
//     in the X-Ray-ID response header for log correlation.
//   - webhook: verifies the HMAC-SHA256 signature of inbound job notifications.
//
// RayID is registered first so every later log line carries it.
package middleware
