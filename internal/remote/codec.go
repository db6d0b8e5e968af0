package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

// requirementsRequest is the body of the requirements stage.
type requirementsRequest struct {
	SessionID string `json:"session_id"`
}

// collectionRequest is the body of the collection stage.
type collectionRequest struct {
	Keywords []string `json:"keywords"`
}

// correlationResponse is the body returned by the correlation stage.
type correlationResponse struct {
	Assessments []model.RiskAssessment `json:"assessments"`
}

// encodeRequest builds the request body for stage from its input.
func encodeRequest(stage pipeline.StageID, in pipeline.Input) ([]byte, error) {
	var payload any
	switch stage {
	case pipeline.StageRequirements:
		sessionID, err := sessionFrom(in.Initial)
		if err != nil {
			return nil, err
		}
		payload = requirementsRequest{SessionID: sessionID}

	case pipeline.StageCollection:
		req, err := dependency[*model.Requirements](in, stage, pipeline.StageRequirements)
		if err != nil {
			return nil, err
		}
		payload = collectionRequest{Keywords: req.ExtractionKeywords.All()}

	case pipeline.StageCorrelation:
		landscape, err := dependency[*model.ThreatLandscape](in, stage, pipeline.StageCollection)
		if err != nil {
			return nil, err
		}
		payload = landscape

	case pipeline.StageThreatModel:
		req, err := dependency[*model.Requirements](in, stage, pipeline.StageRequirements)
		if err != nil {
			return nil, err
		}
		landscape, err := dependency[*model.ThreatLandscape](in, stage, pipeline.StageCollection)
		if err != nil {
			return nil, err
		}
		assessments, err := dependency[[]model.RiskAssessment](in, stage, pipeline.StageCorrelation)
		if err != nil {
			return nil, err
		}
		payload = model.NewThreatModelRequest(req, landscape, assessments)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", stage, err)
	}
	return data, nil
}

// sessionFrom accepts the session id as the initial pipeline input.
func sessionFrom(initial any) (string, error) {
	var id string
	switch v := initial.(type) {
	case string:
		id = v
	case fmt.Stringer:
		id = v.String()
	default:
		return "", fmt.Errorf("initial input must be a session id, got %T", initial)
	}
	if strings.TrimSpace(id) == "" {
		return "", errors.New("session id must not be empty")
	}
	return id, nil
}

// dependency returns the output of dep with the type consumer expects.
func dependency[T any](in pipeline.Input, consumer, dep pipeline.StageID) (T, error) {
	var zero T
	raw, ok := in.Dependencies[dep]
	if !ok {
		return zero, &pipeline.MissingDependencyError{Stage: dep, Consumer: consumer}
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("output of %s has type %T, want %T", dep, raw, zero)
	}
	return v, nil
}

// decodeResponse validates body against the stage schema and decodes it
// into the stage's record.
func decodeResponse(stage pipeline.StageID, body []byte) (any, error) {
	if err := validateResponse(stage, body); err != nil {
		return nil, err
	}

	switch stage {
	case pipeline.StageRequirements:
		var out model.Requirements
		if err := decodeJSON(body, &out); err != nil {
			return nil, err
		}
		if err := out.Validate(); err != nil {
			return nil, err
		}
		return &out, nil

	case pipeline.StageCollection:
		var out model.ThreatLandscape
		if err := decodeJSON(body, &out); err != nil {
			return nil, err
		}
		if err := out.Validate(); err != nil {
			return nil, err
		}
		return &out, nil

	case pipeline.StageCorrelation:
		var out correlationResponse
		if err := decodeJSON(body, &out); err != nil {
			return nil, err
		}
		if err := model.ValidateAssessments(out.Assessments); err != nil {
			return nil, err
		}
		if out.Assessments == nil {
			out.Assessments = []model.RiskAssessment{}
		}
		return out.Assessments, nil

	case pipeline.StageThreatModel:
		var out model.ThreatModel
		if err := decodeJSON(body, &out); err != nil {
			return nil, err
		}
		if err := out.Validate(); err != nil {
			return nil, err
		}
		return &out, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
}

func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
