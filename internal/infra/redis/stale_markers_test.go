package redis

import (
	"context"
	"testing"
)

func TestStaleMarkersSetAndClearKeys(t *testing.T) {
	mr := runMiniredis(t)
	markers := NewStaleMarkers(newClient(mr), "survey")
	ctx := context.Background()

	if err := markers.MarkStale(ctx, "sv1"); err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if !mr.Exists("survey:stale:sv1") {
		t.Fatalf("expected redis key to be set")
	}
	stale, err := markers.IsStale(ctx, "sv1")
	if err != nil || !stale {
		t.Fatalf("expected stale, got %v (%v)", stale, err)
	}

	if err := markers.ClearStale(ctx, "sv1"); err != nil {
		t.Fatalf("clear stale: %v", err)
	}
	if mr.Exists("survey:stale:sv1") {
		t.Fatalf("expected redis key to be removed")
	}
	if stale, _ := markers.IsStale(ctx, "sv1"); stale {
		t.Fatalf("expected fresh after clear")
	}
}
