// Package instrumentation provides OpenTelemetry metrics and tracing for telecal.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds by method, path, status
//
// Google APIs:
//   - google_api_operations_total, google_api_operation_duration_seconds by
//     service (calendar, sheets), operation and status
//
// OAuth:
//   - oauth_exchange_total: authorization code exchanges by result
//   - oauth_token_refresh_total: token refreshes by result
//
// Chat:
//   - chat_updates_total, chat_update_duration_seconds by kind and action
//   - chat_active_sessions: in-progress booking conversations
//   - bookings_total: booking confirmations by result
//
// Label values taken from user input go through the helpers in
// cardinality.go first.
//
// # Tracing
//
// Spans are created per chat update (chat.<kind>) and per Google API call
// (google.<service>.<operation>).
//
// # Configuration
//
//   - METRICS_ENABLED: enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate (default: 0.1)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_USER_ID
//
// # Example
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordBooking(ctx, instrumentation.BookingCreated)
package instrumentation
