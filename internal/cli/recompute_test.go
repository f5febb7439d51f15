package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"survey-analytics-service/internal/domain"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRecomputeSurveyPrintsAggregate(t *testing.T) {
	var out bytes.Buffer
	err := runRecompute(context.Background(), writeConfig(t), recomputeTargets{survey: "survey-1"}, &out)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	var agg domain.SurveyAggregate
	if err := json.Unmarshal(out.Bytes(), &agg); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if agg.SurveyID != "survey-1" || agg.TotalResponses != 4 || agg.CompletedResponses != 3 {
		t.Fatalf("unexpected aggregate %+v", agg)
	}
}

func TestRecomputeDashboard(t *testing.T) {
	var out bytes.Buffer
	if err := runRecompute(context.Background(), writeConfig(t), recomputeTargets{user: "user-1"}, &out); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	var dash domain.DashboardAggregate
	if err := json.Unmarshal(out.Bytes(), &dash); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if dash.TotalSurveys != 2 || dash.ActiveSurveys != 1 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}
}

func TestRecomputeRequiresOneTarget(t *testing.T) {
	cmd := NewRecomputeCmd(new(string))
	cmd.SetArgs([]string{"--survey", "a", "--user", "b"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for two targets")
	}
}
