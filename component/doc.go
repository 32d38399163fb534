// Package component defines lifecycle-managed services and the registry that
// starts them in order and stops them in reverse.
//
// The telemetry providers and the HTTP server are components; bootstrap.App
// drives their lifecycle.
package component
