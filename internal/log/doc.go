// Package log builds the slog loggers used by caiber.
//
// Every logger returned by this package wraps its handler in a
// SecureHandler. The collaborator backend is reached with bearer tokens and
// the threat feeds behind it use API keys (OTX, NVD, GitHub), so attribute
// values that look like credentials are masked before they reach any
// output, in verbose mode too.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("stage completed", "stage", "collect_threats", "token", tok) // token is masked
//
// Use NewSecureJSONLogger when logs are shipped to an aggregator, which is
// what `caiber serve` does.
package log
