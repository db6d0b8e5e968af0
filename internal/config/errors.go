package config

import "errors"

// Validation errors returned by Config.Validate and Config.ValidateForRun.
var (
	// ErrNoSession is returned when a run is requested without a session id.
	ErrNoSession = errors.New("no session specified: provide the session id of an uploaded document")

	// ErrInvalidBaseURL is returned when the backend URL is empty, unparsable
	// or not http(s).
	ErrInvalidBaseURL = errors.New("invalid base url: must be an absolute http or https URL")

	// ErrInvalidStageTimeout is returned when the stage timeout is negative.
	// Zero disables the timeout.
	ErrInvalidStageTimeout = errors.New("invalid stage timeout: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidFallback is returned for an unknown fallback policy name.
	ErrInvalidFallback = errors.New("invalid fallback policy: must be \"none\" or \"demo\"")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidEndpoint is returned when an endpoint override has an
	// unsupported method or a relative path.
	ErrInvalidEndpoint = errors.New("invalid endpoint override")
)
