// Package server provides the HTTP side of telecal.
//
// OAuthHandler serves the authorization flow:
//   - GET /                  liveness text "OK"
//   - GET /authorize         redirect to Google with the chat user id as state
//   - GET /oauth2callback    exchange the code and store the credential
//
// WebServer wraps the handler with request metrics, logging and security
// headers, and adds /healthz, /readyz and /healthz/detailed from
// HealthChecker. MetricsServer exposes Prometheus metrics on a separate
// port. Run drives either listener until its context is cancelled.
package server
