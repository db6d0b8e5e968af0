// Package event turns pipeline notifications into Event values and fans
// them out to presentation layers.
//
// Sink implements pipeline.NotificationSink and forwards one Event per
// callback to any number of Emitters. Broker is an in-memory fan-out used
// by the HTTP server's Server-Sent Events stream. ValkeyPublisher publishes
// events as JSON on a Valkey channel for out-of-process dashboards.
//
// Emitters never block the pipeline: slow subscribers lose events instead
// of stalling the driver goroutine.
package event
