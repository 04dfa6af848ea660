// Package services defines shared utilities consumed by the session runtime
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, step slugs, stream ids and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and HTTPStatus which
//     translates those markers into API responses.
//
// The backend subpackage is the HTTP client for the external processing
// service.
package services
