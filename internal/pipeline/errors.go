package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to these so callers can use
// errors.Is without caring about the details.
var (
	// ErrConfiguration marks a malformed stage graph.
	ErrConfiguration = errors.New("invalid stage configuration")

	// ErrMissingDependency marks a read of a result that does not exist in
	// the current run. It always indicates a bug in the caller.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrConcurrentRun is returned by Start while a run is in progress.
	ErrConcurrentRun = errors.New("pipeline is already running")

	// ErrResultNotWritable is returned when a result is stored twice or for
	// a stage that is not running.
	ErrResultNotWritable = errors.New("stage result is not writable")

	// ErrRunReset is returned by Wait when the awaited run was discarded.
	ErrRunReset = errors.New("pipeline run was reset")

	// ErrNotStarted is returned by Wait when no run was started.
	ErrNotStarted = errors.New("pipeline has not been started")
)

// ConfigurationError describes why a set of stage definitions was rejected.
type ConfigurationError struct {
	Reason string
	Stages []StageID
}

func (e *ConfigurationError) Error() string {
	if len(e.Stages) == 0 {
		return fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
	}
	names := make([]string, len(e.Stages))
	for i, s := range e.Stages {
		names[i] = string(s)
	}
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Reason, strings.Join(names, ", "))
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// MissingDependencyError is returned when a stage result is read before
// it was produced in the current run.
type MissingDependencyError struct {
	// Stage is the result that was requested.
	Stage StageID
	// Consumer is the stage that needed it, if any.
	Consumer StageID
}

func (e *MissingDependencyError) Error() string {
	if e.Consumer == "" {
		return fmt.Sprintf("%v: no result for stage %s", ErrMissingDependency, e.Stage)
	}
	return fmt.Sprintf("%v: stage %s requires %s which has not completed", ErrMissingDependency, e.Consumer, e.Stage)
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// ConcurrentRunError is returned by Start while another run is in progress.
type ConcurrentRunError struct {
	// RunID is the run that is still in progress.
	RunID string
}

func (e *ConcurrentRunError) Error() string {
	return fmt.Sprintf("%v: run %s has not finished", ErrConcurrentRun, e.RunID)
}

func (e *ConcurrentRunError) Unwrap() error { return ErrConcurrentRun }

// ErrorKind classifies a remote stage failure.
type ErrorKind string

// Remote failure kinds.
const (
	// KindNetwork covers transport failures and timeouts.
	KindNetwork ErrorKind = "network"
	// KindValidation covers rejected requests and malformed responses.
	KindValidation ErrorKind = "validation"
	// KindServer covers failures reported by the remote stage itself.
	KindServer ErrorKind = "server"
)

// RemoteError is the only failure a stage executor is expected to produce.
type RemoteError struct {
	Stage   StageID
	Kind    ErrorKind
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("stage %s: %s error: %s", e.Stage, e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemoteError builds a RemoteError with a formatted message.
func NewRemoteError(stage StageID, kind ErrorKind, format string, args ...any) *RemoteError {
	return &RemoteError{Stage: stage, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsRemoteError classifies err as a RemoteError for stage. Errors that
// already are RemoteErrors keep their kind; context errors become network
// errors; anything else is a server error.
func AsRemoteError(stage StageID, err error) *RemoteError {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Stage == "" {
			cp := *re
			cp.Stage = stage
			return &cp
		}
		return re
	}
	kind := KindServer
	if isContextError(err) {
		kind = KindNetwork
	}
	return &RemoteError{Stage: stage, Kind: kind, Message: err.Error(), Err: err}
}
