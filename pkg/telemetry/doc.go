// Package telemetry wires OpenTelemetry tracing and metrics for the codec
// service.
//
// It centralises trace provider setup and offers helpers that attach codec and
// policy metadata to spans and meters. Message contents and key material never
// leave the process through telemetry; only lengths, operations and outcomes
// are recorded.
package telemetry
