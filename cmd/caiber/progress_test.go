package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(250 * time.Millisecond)
	return c.now
}

func TestProgressSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := newProgressSink(&buf, &stepClock{now: time.Unix(0, 0)}, pipeline.DefaultDefinitions())

	sink.OnStageStart("r", pipeline.StageCollection)
	sink.OnStageComplete("r", pipeline.StageCollection, &model.ThreatLandscape{TotalCount: 142})
	sink.OnStageStart("r", pipeline.StageCorrelation)
	sink.OnStageError("r", pipeline.StageCorrelation, &pipeline.RemoteError{
		Stage: pipeline.StageCorrelation, Kind: pipeline.KindNetwork, Message: "ECONNRESET",
	})
	sink.OnPipelineError("r", errors.New("boom"))

	output := buf.String()
	for _, want := range []string{
		"[2/4] Collect Threats ...",
		"done in 250ms: 142 items collected",
		"[3/4] Correlate Threats ...",
		"failed after 250ms: network error: ECONNRESET",
		"Pipeline stopped",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestProgressSink_PlainError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := newProgressSink(&buf, pipeline.SystemClock{}, pipeline.DefaultDefinitions())
	sink.OnStageError("r", pipeline.StageRequirements, errors.New("missing dependency"))
	sink.OnPipelineComplete("r", 1500*time.Millisecond)

	output := buf.String()
	if !strings.Contains(output, "failed after -: missing dependency") {
		t.Errorf("unexpected output: %s", output)
	}
	if !strings.Contains(output, "Pipeline completed in 1.5s") {
		t.Errorf("unexpected output: %s", output)
	}
}
