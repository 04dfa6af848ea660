// Package backend is the HTTP client for the external processing service
// that uploads, encodes, decodes and compares videos. Every call takes a
// context, applies the configured request timeout and unwraps the service's
// {"result": ...} envelope. A {"result":"error"} reply is reported as
// ErrRemote carrying the service's message.
package backend
