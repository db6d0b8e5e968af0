// Package remote implements pipeline.Executor over HTTP/JSON against the
// collaborator backend that hosts the four stage agents.
//
// Each stage maps to one endpoint:
//
//	generate_requirements  POST /generate-pirs      {"session_id": "..."}
//	collect_threats        POST /collect-threats    {"keywords": [...]}
//	correlate_threats      POST /correlate-threats  threat landscape
//	build_threat_model     POST /threat-model       everything above plus a summary
//
// Endpoints can be overridden per stage with WithEndpoint.
//
// # Failure classification
//
// Every failure is returned as a *pipeline.RemoteError:
//   - transport errors, timeouts, HTTP 408 and 429 are network errors
//   - any other 4xx, and responses that do not match the stage schema, are
//     validation errors
//   - 5xx responses are server errors
//
// The message is taken from the backend's "detail", "message" or "error"
// field when the body carries one, so "ECONNRESET" reported by an agent
// reaches the operator unchanged.
//
// # Response validation
//
// Responses are checked against an embedded JSON Schema for their stage,
// decoded into the typed records of package model and then validated
// semantically. Nothing is defaulted: a missing field fails the stage.
//
// # Fallback
//
// FallbackExecutor replaces network and server failures with embedded
// demo fixtures when the operator opts in with the "demo" policy. Every
// substitution is logged at WARN. Validation failures are never masked.
//
// # Proxy
//
// Backend traffic can be routed through a SOCKS5 proxy (WithProxy).
// CheckProxy performs a protocol handshake so a misconfigured proxy is
// reported before the first stage runs.
package remote
