// Package telemetry initializes the OpenTelemetry SDK for span export.
package telemetry
