// Package server exposes a pipeline Controller over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/v1/pipeline
//	POST /api/v1/pipeline/start
//	POST /api/v1/pipeline/reset
//	GET  /api/v1/pipeline/results
//	GET  /api/v1/pipeline/results/{stage}
//	GET  /api/v1/pipeline/events
//
// The events route streams pipeline events as Server-Sent Events. Runs
// started through the API keep going after the request that started them
// returns and are archived once they finish when an Archiver is set.
package server
