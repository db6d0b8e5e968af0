package main

import (
	"strings"
	"testing"
)

func TestStagesCmd(t *testing.T) {
	t.Parallel()

	stdout, _, err := executeCmd(t, "stages")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := []string{"generate_requirements", "collect_threats", "correlate_threats", "build_threat_model"}
	last := -1
	for _, id := range order {
		i := strings.Index(stdout, id)
		if i < 0 {
			t.Fatalf("missing %s:\n%s", id, stdout)
		}
		if i < last {
			t.Errorf("%s listed out of order", id)
		}
		last = i
	}
	for _, want := range []string{"POST /collect-threats", "Build Threat Model"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

func TestStagesCmd_Count(t *testing.T) {
	t.Parallel()

	stdout, _, err := executeCmd(t, "stages")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "4 stages") {
		t.Errorf("expected stage count in output:\n%s", stdout)
	}
}

func TestStagesCmd_SingleStage(t *testing.T) {
	t.Parallel()

	stdout, _, err := executeCmd(t, "stages", "build_threat_model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Build Threat Model (build_threat_model)",
		"POST /threat-model",
		"generate_requirements, collect_threats, correlate_threats",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "collect_threats\n      Collect Threats") {
		t.Error("single stage output lists other stages")
	}
}

func TestStagesCmd_UnknownStage(t *testing.T) {
	t.Parallel()

	if _, _, err := executeCmd(t, "stages", "nope"); err == nil || !strings.Contains(err.Error(), `unknown stage "nope"`) {
		t.Errorf("error = %v, want unknown stage", err)
	}
}
