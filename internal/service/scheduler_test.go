package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huecodes/hunter/internal/domain"
	"github.com/huecodes/hunter/internal/hunter"
	"github.com/huecodes/hunter/internal/logger"
	"github.com/huecodes/hunter/internal/repository"
	"github.com/huecodes/hunter/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeHunter counts Scan invocations and delegates behavior to scanFunc.
type fakeHunter struct {
	*hunter.Recorder
	platform  domain.PlatformType
	scanCalls int64
	scanFunc  func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error)
}

func (f *fakeHunter) Platform() domain.PlatformType {
	return f.platform
}

func (f *fakeHunter) Scan(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
	atomic.AddInt64(&f.scanCalls, 1)
	return f.scanFunc(ctx, integration)
}

type fixture struct {
	db              *gorm.DB
	integrationRepo *repository.IntegrationRepository
	scanLogRepo     *repository.ScanLogRepository
	fake            *fakeHunter
	scheduler       *SchedulerService
}

func newFixture(t *testing.T, cfg SchedulerConfig, scanFunc func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error)) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	integrationRepo := repository.NewIntegrationRepository(db)
	scanLogRepo := repository.NewScanLogRepository(db)
	recorder := hunter.NewRecorder(scanLogRepo, storage.Noop{}, logger.GetDefault())

	fake := &fakeHunter{
		Recorder: recorder,
		platform: domain.PlatformForum,
		scanFunc: scanFunc,
	}

	scheduler := NewSchedulerService(
		integrationRepo,
		hunter.NewRegistry(fake),
		recorder,
		noopThrottle{},
		logger.GetDefault(),
		cfg,
	)

	return &fixture{
		db:              db,
		integrationRepo: integrationRepo,
		scanLogRepo:     scanLogRepo,
		fake:            fake,
		scheduler:       scheduler,
	}
}

func (f *fixture) seed(t *testing.T, mutate func(*domain.Integration)) *domain.Integration {
	t.Helper()
	integration := &domain.Integration{
		ID:                uuid.New().String(),
		ProjectID:         "project-1",
		Platform:          domain.PlatformForum,
		Name:              "community forum",
		Config:            domain.IntegrationConfig{"forum_url": "https://forum.example.com", "query": "acme"},
		ScanFrequencySecs: 900,
		NextScanAt:        time.Now().Add(-time.Minute),
		Status:            domain.IntegrationStatusActive,
	}
	if mutate != nil {
		mutate(integration)
	}
	if err := f.integrationRepo.Create(context.Background(), integration); err != nil {
		t.Fatalf("failed to seed integration: %v", err)
	}
	return integration
}

func successScan(found, stored int) func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
	return func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
		return &hunter.ScanResult{ItemsFound: found, ItemsStored: stored}, nil
	}
}

func TestScanCycleEndToEnd(t *testing.T) {
	f := newFixture(t, SchedulerConfig{}, successScan(10, 7))

	// Integration due one minute before T, cadence 15m
	now := time.Now().Truncate(time.Second)
	f.scheduler.now = func() time.Time { return now }
	integration := f.seed(t, func(i *domain.Integration) {
		i.ScanFrequencySecs = 900
		i.NextScanAt = now.Add(-time.Minute)
	})

	report, err := f.scheduler.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("RunScanCycle returned error: %v", err)
	}
	if report.Selected != 1 || report.Scanned != 1 || report.Succeeded != 1 {
		t.Fatalf("unexpected report: selected=%d scanned=%d succeeded=%d",
			report.Selected, report.Scanned, report.Succeeded)
	}
	if report.ItemsFound != 10 || report.ItemsStored != 7 {
		t.Errorf("unexpected item counts: found=%d stored=%d", report.ItemsFound, report.ItemsStored)
	}

	got, err := f.integrationRepo.GetByID(context.Background(), integration.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if want := now.Add(15 * time.Minute); !got.NextScanAt.Equal(want) {
		t.Errorf("expected next_scan_at %v, got %v", want, got.NextScanAt)
	}
	if got.ConsecutiveFailures != 0 {
		t.Errorf("expected failure counter 0, got %d", got.ConsecutiveFailures)
	}
	if got.LockedAt != nil || got.LockExpiresAt != nil {
		t.Error("expected lease cleared after successful scan")
	}

	scanLog, err := f.scanLogRepo.Latest(context.Background(), integration.ID)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if !scanLog.Success || scanLog.ItemsFound != 10 || scanLog.ItemsStored != 7 {
		t.Errorf("unexpected scan log: success=%v found=%d stored=%d",
			scanLog.Success, scanLog.ItemsFound, scanLog.ItemsStored)
	}
	if scanLog.Trigger != domain.TriggerScheduled {
		t.Errorf("expected scheduled trigger, got %s", scanLog.Trigger)
	}
}

func TestBackoffOnPermanentFailure(t *testing.T) {
	f := newFixture(t, SchedulerConfig{MaxBackoffMultiplier: 8},
		func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
			return nil, errors.New("platform unreachable")
		})

	current := time.Now().Truncate(time.Second)
	f.scheduler.now = func() time.Time { return current }
	integration := f.seed(t, func(i *domain.Integration) {
		i.ScanFrequencySecs = 60
		i.NextScanAt = current.Add(-time.Minute)
	})

	frequency := time.Minute
	wantMultipliers := []int{2, 4, 8, 8, 8}
	var previousNext time.Time

	for attempt, want := range wantMultipliers {
		report, err := f.scheduler.RunScanCycle(context.Background())
		if err != nil {
			t.Fatalf("attempt %d: RunScanCycle returned error: %v", attempt+1, err)
		}
		if report.Failed != 1 {
			t.Fatalf("attempt %d: expected one failure, got %d", attempt+1, report.Failed)
		}

		got, err := f.integrationRepo.GetByID(context.Background(), integration.ID)
		if err != nil {
			t.Fatalf("attempt %d: GetByID returned error: %v", attempt+1, err)
		}
		if got.ConsecutiveFailures != attempt+1 {
			t.Errorf("attempt %d: expected %d consecutive failures, got %d",
				attempt+1, attempt+1, got.ConsecutiveFailures)
		}
		wantNext := current.Add(frequency * time.Duration(want))
		if !got.NextScanAt.Equal(wantNext) {
			t.Errorf("attempt %d: expected next_scan_at %v (multiplier %d), got %v",
				attempt+1, wantNext, want, got.NextScanAt)
		}
		if !previousNext.IsZero() && !got.NextScanAt.After(previousNext) {
			t.Errorf("attempt %d: next_scan_at did not advance strictly", attempt+1)
		}
		if got.LockedAt != nil {
			t.Errorf("attempt %d: expected lease released after failure", attempt+1)
		}
		previousNext = got.NextScanAt

		// Jump the clock past the new due time for the next attempt
		current = got.NextScanAt.Add(time.Second)
	}
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	f := newFixture(t, SchedulerConfig{MaxBackoffMultiplier: 8},
		func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
			if fail.Load() {
				return nil, errors.New("platform unreachable")
			}
			return &hunter.ScanResult{ItemsFound: 1, ItemsStored: 1}, nil
		})

	current := time.Now().Truncate(time.Second)
	f.scheduler.now = func() time.Time { return current }
	integration := f.seed(t, func(i *domain.Integration) {
		i.ScanFrequencySecs = 60
		i.NextScanAt = current.Add(-time.Minute)
	})

	// Two failures build up backoff
	for i := 0; i < 2; i++ {
		if _, err := f.scheduler.RunScanCycle(context.Background()); err != nil {
			t.Fatalf("RunScanCycle returned error: %v", err)
		}
		got, _ := f.integrationRepo.GetByID(context.Background(), integration.ID)
		current = got.NextScanAt.Add(time.Second)
	}

	fail.Store(false)
	if _, err := f.scheduler.RunScanCycle(context.Background()); err != nil {
		t.Fatalf("RunScanCycle returned error: %v", err)
	}

	got, err := f.integrationRepo.GetByID(context.Background(), integration.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.ConsecutiveFailures != 0 {
		t.Errorf("expected failure counter reset to 0, got %d", got.ConsecutiveFailures)
	}
	// No residual backoff: the very next due time is plain cadence
	if want := current.Add(time.Minute); !got.NextScanAt.Equal(want) {
		t.Errorf("expected next_scan_at %v after success, got %v", want, got.NextScanAt)
	}
}

func TestConcurrentCyclesScanAtMostOnce(t *testing.T) {
	f := newFixture(t, SchedulerConfig{},
		func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
			time.Sleep(50 * time.Millisecond) // hold the lease while the rival cycle runs
			return &hunter.ScanResult{ItemsFound: 1, ItemsStored: 1}, nil
		})
	f.seed(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = f.scheduler.RunScanCycle(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("cycle %d returned error: %v", i, err)
		}
	}
	if calls := atomic.LoadInt64(&f.fake.scanCalls); calls != 1 {
		t.Fatalf("expected exactly one scan under concurrent cycles, got %d", calls)
	}
}

func TestRescheduledSelectionIsSkipped(t *testing.T) {
	f := newFixture(t, SchedulerConfig{}, successScan(1, 1))
	f.seed(t, nil)

	// Worker B selects the unit, then worker A runs a full cycle that scans it,
	// releases the lease, and pushes next_scan_at into the future. B's stale
	// selection must not produce a second scan in the same due period.
	selected, err := f.integrationRepo.ListDue(context.Background(), time.Now(), 50)
	if err != nil {
		t.Fatalf("ListDue returned error: %v", err)
	}
	if len(selected) != 1 {
		t.Fatalf("expected 1 due integration, got %d", len(selected))
	}

	report, err := f.scheduler.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("RunScanCycle returned error: %v", err)
	}
	if report.Scanned != 1 {
		t.Fatalf("expected rival cycle to scan once, got %d", report.Scanned)
	}

	outcome, err := f.scheduler.executeOne(context.Background(), &selected[0], domain.TriggerScheduled)
	if err != nil {
		t.Fatalf("executeOne returned error: %v", err)
	}
	if !outcome.Skipped {
		t.Fatal("expected stale selection to be skipped after the unit was rescheduled")
	}
	if calls := atomic.LoadInt64(&f.fake.scanCalls); calls != 1 {
		t.Fatalf("expected exactly one scan in the due period, got %d", calls)
	}
}

func TestUnknownPlatformIsContained(t *testing.T) {
	f := newFixture(t, SchedulerConfig{}, successScan(1, 1))

	now := time.Now().Truncate(time.Second)
	f.scheduler.now = func() time.Time { return now }

	broken := f.seed(t, func(i *domain.Integration) {
		i.Platform = domain.PlatformType("linkedin")
		i.NextScanAt = now.Add(-2 * time.Hour)
	})
	healthy := f.seed(t, func(i *domain.Integration) {
		i.NextScanAt = now.Add(-time.Hour)
	})

	report, err := f.scheduler.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("RunScanCycle returned error: %v", err)
	}
	if report.Failed != 1 || report.Succeeded != 1 {
		t.Fatalf("expected one failure and one success, got failed=%d succeeded=%d",
			report.Failed, report.Succeeded)
	}

	got, err := f.integrationRepo.GetByID(context.Background(), broken.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.ConsecutiveFailures != 1 {
		t.Errorf("expected one failure recorded for unknown platform, got %d", got.ConsecutiveFailures)
	}
	if got.LockedAt != nil {
		t.Error("expected lease released for unknown platform")
	}
	if !got.NextScanAt.After(now) {
		t.Error("expected unknown-platform integration to be rescheduled")
	}

	scanLog, err := f.scanLogRepo.Latest(context.Background(), broken.ID)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if scanLog.Success || scanLog.ErrorMessage == "" {
		t.Errorf("expected failed scan log with error, got success=%v message=%q",
			scanLog.Success, scanLog.ErrorMessage)
	}

	if gotHealthy, _ := f.integrationRepo.GetByID(context.Background(), healthy.ID); gotHealthy.ConsecutiveFailures != 0 {
		t.Error("expected healthy integration unaffected by the broken one")
	}
}

func TestScanTimeoutTreatedAsFailure(t *testing.T) {
	f := newFixture(t, SchedulerConfig{ScanTimeout: 20 * time.Millisecond},
		func(ctx context.Context, integration *domain.Integration) (*hunter.ScanResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	integration := f.seed(t, nil)

	report, err := f.scheduler.RunScanCycle(context.Background())
	if err != nil {
		t.Fatalf("RunScanCycle returned error: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected timeout to count as failure, got failed=%d", report.Failed)
	}

	got, err := f.integrationRepo.GetByID(context.Background(), integration.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got.LockedAt != nil {
		t.Error("expected lease released after timeout")
	}
	if got.ConsecutiveFailures != 1 {
		t.Errorf("expected one consecutive failure after timeout, got %d", got.ConsecutiveFailures)
	}
}

func TestRecoverySweepMakesStaleUnitSelectable(t *testing.T) {
	f := newFixture(t, SchedulerConfig{}, successScan(1, 1))
	now := time.Now()

	stale := f.seed(t, func(i *domain.Integration) {
		lockedAt := now.Add(-time.Hour)
		expires := now.Add(-30 * time.Minute)
		i.LockedAt = &lockedAt
		i.LockExpiresAt = &expires
	})

	report, err := f.scheduler.RunRecoverySweep(context.Background())
	if err != nil {
		t.Fatalf("RunRecoverySweep returned error: %v", err)
	}
	if report.Recovered != 1 {
		t.Fatalf("expected 1 recovered lease, got %d", report.Recovered)
	}

	due, err := f.integrationRepo.ListDue(context.Background(), time.Now(), 50)
	if err != nil {
		t.Fatalf("ListDue returned error: %v", err)
	}
	if len(due) != 1 || due[0].ID != stale.ID {
		t.Fatal("expected recovered integration to be immediately selectable")
	}

	second, err := f.scheduler.RunRecoverySweep(context.Background())
	if err != nil {
		t.Fatalf("second RunRecoverySweep returned error: %v", err)
	}
	if second.Recovered != 0 {
		t.Fatalf("expected idempotent second sweep, got %d recovered", second.Recovered)
	}
}

func TestManualTriggerRespectsLease(t *testing.T) {
	f := newFixture(t, SchedulerConfig{}, successScan(2, 2))
	now := time.Now()

	leased := f.seed(t, func(i *domain.Integration) {
		lockedAt := now
		expires := now.Add(10 * time.Minute)
		i.LockedAt = &lockedAt
		i.LockExpiresAt = &expires
	})

	outcome, err := f.scheduler.ExecuteIntegration(context.Background(), leased.ID)
	if err != nil {
		t.Fatalf("ExecuteIntegration returned error: %v", err)
	}
	if !outcome.Skipped {
		t.Fatal("expected manual trigger to skip a leased integration")
	}
	if calls := atomic.LoadInt64(&f.fake.scanCalls); calls != 0 {
		t.Fatalf("expected no scan while lease is held, got %d", calls)
	}

	free := f.seed(t, nil)
	outcome, err = f.scheduler.ExecuteIntegration(context.Background(), free.ID)
	if err != nil {
		t.Fatalf("ExecuteIntegration returned error: %v", err)
	}
	if outcome.Skipped || !outcome.Success {
		t.Fatalf("expected manual scan to run, got skipped=%v success=%v", outcome.Skipped, outcome.Success)
	}

	scanLog, err := f.scanLogRepo.Latest(context.Background(), free.ID)
	if err != nil {
		t.Fatalf("Latest returned error: %v", err)
	}
	if scanLog.Trigger != domain.TriggerManual {
		t.Errorf("expected manual trigger recorded, got %s", scanLog.Trigger)
	}
}

func TestManualTriggerDisabledIntegration(t *testing.T) {
	f := newFixture(t, SchedulerConfig{}, successScan(1, 1))
	disabled := f.seed(t, func(i *domain.Integration) {
		i.Status = domain.IntegrationStatusDisabled
	})

	_, err := f.scheduler.ExecuteIntegration(context.Background(), disabled.ID)
	if !errors.Is(err, ErrIntegrationDisabled) {
		t.Fatalf("expected ErrIntegrationDisabled, got %v", err)
	}
}

func TestNextDelayMultipliers(t *testing.T) {
	s := NewSchedulerService(nil, nil, nil, noopThrottle{}, logger.GetDefault(),
		SchedulerConfig{MaxBackoffMultiplier: 8})

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{4, 8 * time.Minute},  // capped
		{10, 8 * time.Minute}, // capped, no overflow
	}
	for _, tt := range tests {
		if got := s.nextDelay(time.Minute, tt.failures); got != tt.want {
			t.Errorf("nextDelay(1m, %d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}
