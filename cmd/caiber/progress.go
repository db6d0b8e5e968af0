package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nao1215/caiber/internal/event"
	"github.com/nao1215/caiber/internal/pipeline"
	"github.com/nao1215/caiber/internal/report"
)

// progressSink prints one line per stage transition, for example:
//
//	[2/4] Collect Threats ...
//	      done in 1.2s: 142 items collected
type progressSink struct {
	mu      sync.Mutex
	out     io.Writer
	clock   pipeline.Clock
	index   map[pipeline.StageID]int
	total   int
	started map[pipeline.StageID]time.Time
}

var _ pipeline.NotificationSink = (*progressSink)(nil)

func newProgressSink(out io.Writer, clock pipeline.Clock, defs []pipeline.Definition) *progressSink {
	index := make(map[pipeline.StageID]int, len(defs))
	for i, def := range defs {
		index[def.ID] = i + 1
	}
	return &progressSink{
		out:     out,
		clock:   clock,
		index:   index,
		total:   len(defs),
		started: make(map[pipeline.StageID]time.Time),
	}
}

func (p *progressSink) OnStageStart(_ string, stage pipeline.StageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started[stage] = p.clock.Now()
	fmt.Fprintf(p.out, "[%d/%d] %s ...\n", p.index[stage], p.total, report.StageTitle(stage))
}

func (p *progressSink) OnStageComplete(_ string, stage pipeline.StageID, output any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := "      done in " + p.sinceStart(stage)
	if detail := event.Describe(output); detail != "" {
		line += ": " + detail
	}
	fmt.Fprintln(p.out, line)
}

func (p *progressSink) OnStageError(_ string, stage pipeline.StageID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var remoteErr *pipeline.RemoteError
	if errors.As(err, &remoteErr) {
		fmt.Fprintf(p.out, "      failed after %s: %s error: %s\n", p.sinceStart(stage), remoteErr.Kind, remoteErr.Message)
		return
	}
	fmt.Fprintf(p.out, "      failed after %s: %v\n", p.sinceStart(stage), err)
}

func (p *progressSink) OnPipelineComplete(_ string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "Pipeline completed in %s\n\n", elapsed.Round(time.Millisecond))
}

func (p *progressSink) OnPipelineError(string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "Pipeline stopped")
	fmt.Fprintln(p.out)
}

// sinceStart must be called with mu held.
func (p *progressSink) sinceStart(stage pipeline.StageID) string {
	start, ok := p.started[stage]
	if !ok {
		return "-"
	}
	return p.clock.Now().Sub(start).Round(time.Millisecond).String()
}
