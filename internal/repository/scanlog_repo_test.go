package repository

import (
	"context"
	"testing"
	"time"

	"github.com/huecodes/hunter/internal/domain"
)

func TestScanLogOrderingStableOnTies(t *testing.T) {
	ctx := context.Background()
	repo := NewScanLogRepository(newTestDB(t))
	started := time.Now().Truncate(time.Second)

	// Three attempts sharing the same started_at: the later-created row wins,
	// and among full timestamp ties the ID decides.
	logs := []*domain.ScanLog{
		{ID: "z-oldest", CreatedAt: started},
		{ID: "a-tied", CreatedAt: started},
		{ID: "m-newest", CreatedAt: started.Add(time.Second)},
	}
	for _, scanLog := range logs {
		scanLog.IntegrationID = "integration-1"
		scanLog.ProjectID = "project-1"
		scanLog.Platform = domain.PlatformForum
		scanLog.Trigger = domain.TriggerScheduled
		scanLog.Success = true
		scanLog.StartedAt = started
		scanLog.EndedAt = started
		if err := repo.Create(ctx, scanLog); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	list, err := repo.ListByIntegration(ctx, "integration-1", 10, 0)
	if err != nil {
		t.Fatalf("ListByIntegration returned error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(list))
	}
	wantOrder := []string{"m-newest", "a-tied", "z-oldest"}
	for i, want := range wantOrder {
		if list[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].ID)
		}
	}

	latest, err := repo.Latest(ctx, "integration-1")
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if latest.ID != list[0].ID {
		t.Errorf("Latest (%s) disagrees with the first listed log (%s)", latest.ID, list[0].ID)
	}
}
