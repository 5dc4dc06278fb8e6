// Package otel bridges goIdentity metrics into an OpenTelemetry meter.
//
// [NewOTelExporter] registers observable instruments for every goIdentity counter
// and histogram on the provided meter. Values are pulled from the engine's
// snapshot on each collection cycle; the exporter never pushes.
//
// # What this package must NOT do
//
//   - Own or configure the meter provider — callers supply the meter.
//   - Mutate engine state.
package otel
