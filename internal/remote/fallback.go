package remote

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/caiber/internal/pipeline"
)

// FallbackPolicy decides what happens when a backend stage fails.
type FallbackPolicy string

const (
	// FallbackNone surfaces every failure.
	FallbackNone FallbackPolicy = "none"
	// FallbackDemo substitutes demo data for network and server failures.
	FallbackDemo FallbackPolicy = "demo"
)

// ParseFallbackPolicy parses a policy name. The empty string is none.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FallbackNone:
		return FallbackNone, nil
	case FallbackDemo:
		return FallbackDemo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFallback, s)
	}
}

//go:embed fixtures/demo.json
var demoFixtures []byte

// FallbackExecutor wraps an executor with the demo policy.
type FallbackExecutor struct {
	next     pipeline.Executor
	fixtures map[pipeline.StageID]json.RawMessage
	logger   *slog.Logger
}

// NewFallbackExecutor applies policy to next. FallbackNone returns next
// unchanged.
func NewFallbackExecutor(next pipeline.Executor, policy FallbackPolicy, logger *slog.Logger) (pipeline.Executor, error) {
	switch policy {
	case "", FallbackNone:
		return next, nil
	case FallbackDemo:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFallback, policy)
	}

	var fixtures map[pipeline.StageID]json.RawMessage
	if err := json.Unmarshal(demoFixtures, &fixtures); err != nil {
		return nil, fmt.Errorf("loading demo fixtures: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackExecutor{next: next, fixtures: fixtures, logger: logger}, nil
}

// Execute implements pipeline.Executor. Validation failures, missing
// inputs and cancellation by the caller are passed through unchanged.
func (f *FallbackExecutor) Execute(ctx context.Context, stage pipeline.StageID, in pipeline.Input) (any, error) {
	out, err := f.next.Execute(ctx, stage, in)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil || errors.Is(err, pipeline.ErrMissingDependency) {
		return nil, err
	}
	re := pipeline.AsRemoteError(stage, err)
	if re.Kind == pipeline.KindValidation {
		return nil, err
	}
	fixture, ok := f.fixtures[stage]
	if !ok {
		return nil, err
	}
	demo, decodeErr := decodeResponse(stage, fixture)
	if decodeErr != nil {
		return nil, err
	}

	f.logger.Warn("backend stage failed, using demo data",
		"stage", stage,
		"kind", re.Kind,
		"error", re.Message,
	)
	return demo, nil
}
