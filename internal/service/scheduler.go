package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huecodes/hunter/internal/domain"
	"github.com/huecodes/hunter/internal/hunter"
	"github.com/huecodes/hunter/internal/logger"
	"github.com/huecodes/hunter/internal/repository"
)

// ErrIntegrationDisabled is returned when a manual scan is requested for a
// disabled integration.
var ErrIntegrationDisabled = errors.New("integration is disabled")

// SchedulerConfig holds the executor and cycle knobs.
type SchedulerConfig struct {
	BatchCap             int
	LeaseTimeout         time.Duration
	ScanTimeout          time.Duration
	MaxBackoffMultiplier int
}

// SchedulerService drives the two scheduling cycles: selecting and executing
// due integrations, and sweeping stale leases left behind by crashed workers.
// It owns no timers; the caller supplies the trigger cadence.
type SchedulerService struct {
	integrationRepo *repository.IntegrationRepository
	registry        *hunter.Registry
	recorder        *hunter.Recorder
	throttle        Throttle
	logger          *logger.Logger
	cfg             SchedulerConfig

	// now is injectable for tests
	now func() time.Time
}

// NewSchedulerService creates a scheduler service.
// Parameters:
//   - integrationRepo: lease store repository.
//   - registry: hunter strategy registry.
//   - recorder: outcome recorder used when no strategy can log (unknown platform).
//   - throttle: inter-job rate limiter.
//   - log: logger instance.
//   - cfg: scheduler configuration; zero values fall back to defaults.
// Returns:
//   - *SchedulerService: initialized service.
func NewSchedulerService(
	integrationRepo *repository.IntegrationRepository,
	registry *hunter.Registry,
	recorder *hunter.Recorder,
	throttle Throttle,
	log *logger.Logger,
	cfg SchedulerConfig,
) *SchedulerService {
	if cfg.BatchCap <= 0 {
		cfg.BatchCap = 50
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 10 * time.Minute
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 5 * time.Minute
	}
	if cfg.MaxBackoffMultiplier <= 0 {
		cfg.MaxBackoffMultiplier = 32
	}
	if throttle == nil {
		throttle = NewSpacingThrottle(2 * time.Second)
	}
	return &SchedulerService{
		integrationRepo: integrationRepo,
		registry:        registry,
		recorder:        recorder,
		throttle:        throttle,
		logger:          log,
		cfg:             cfg,
		now:             time.Now,
	}
}

// log returns a logger from context if available, otherwise the service logger.
func (s *SchedulerService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// UnitOutcome summarizes one integration's fate within a cycle.
type UnitOutcome struct {
	IntegrationID string              `json:"integration_id"`
	ProjectID     string              `json:"project_id"`
	Platform      domain.PlatformType `json:"platform"`
	Skipped       bool                `json:"skipped"`
	Success       bool                `json:"success"`
	ItemsFound    int                 `json:"items_found"`
	ItemsStored   int                 `json:"items_stored"`
	Error         string              `json:"error,omitempty"`
	NextScanAt    time.Time           `json:"next_scan_at"`
}

// CycleReport summarizes one scan cycle.
type CycleReport struct {
	CycleID     string        `json:"cycle_id"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Selected    int           `json:"selected"`
	Scanned     int           `json:"scanned"`
	Skipped     int           `json:"skipped"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	ItemsFound  int           `json:"items_found"`
	ItemsStored int           `json:"items_stored"`
	Units       []UnitOutcome `json:"units"`
}

// SweepReport summarizes one stale-lease recovery sweep.
type SweepReport struct {
	CycleID   string    `json:"cycle_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Recovered int64     `json:"recovered"`
}

// RunScanCycle selects due integrations (bounded by the batch cap, oldest-due
// first) and executes them serially under the inter-job throttle. Per-unit
// failures are contained; only storage errors abort the cycle.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *CycleReport: per-unit and aggregate results.
//   - error: non-nil only for storage-level failures.
func (s *SchedulerService) RunScanCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		CycleID:   uuid.New().String(),
		StartedAt: s.now(),
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldCycleID:   report.CycleID,
		logger.FieldComponent: "scheduler",
	})

	due, err := s.integrationRepo.ListDue(ctx, report.StartedAt, s.cfg.BatchCap)
	if err != nil {
		return nil, fmt.Errorf("failed to select due integrations: %w", err)
	}
	report.Selected = len(due)

	logger.CtxInfo(ctx, "Scan cycle started: due=%d, batch_cap=%d", len(due), s.cfg.BatchCap)

	for i := range due {
		if err := s.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("scan cycle canceled while throttling: %w", err)
		}

		outcome, err := s.executeOne(ctx, &due[i], domain.TriggerScheduled)
		if err != nil {
			return nil, err
		}

		report.Units = append(report.Units, *outcome)
		if outcome.Skipped {
			report.Skipped++
			continue
		}
		report.Scanned++
		if outcome.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.ItemsFound += outcome.ItemsFound
		report.ItemsStored += outcome.ItemsStored
	}

	report.EndedAt = s.now()
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldDurationMs: report.EndedAt.Sub(report.StartedAt).Milliseconds(),
		logger.FieldCount:      report.Scanned,
	}).Infof("Scan cycle completed: selected=%d, scanned=%d, skipped=%d, succeeded=%d, failed=%d, items_found=%d, items_stored=%d",
		report.Selected, report.Scanned, report.Skipped, report.Succeeded, report.Failed,
		report.ItemsFound, report.ItemsStored)

	return report, nil
}

// RunRecoverySweep finds integrations whose lease expired without completion
// (crashed or hung worker) and returns them to the due pool. next_scan_at is
// left untouched so a recovered integration is immediately selectable.
// Safe to run concurrently with itself and with the scan cycle.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *SweepReport: recovered lease count.
//   - error: non-nil only for storage-level failures.
func (s *SchedulerService) RunRecoverySweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{
		CycleID:   uuid.New().String(),
		StartedAt: s.now(),
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldCycleID:   report.CycleID,
		logger.FieldComponent: "sweeper",
	})

	recovered, err := s.integrationRepo.ReleaseExpiredLeases(ctx, report.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to release expired leases: %w", err)
	}
	report.Recovered = recovered
	report.EndedAt = s.now()

	if recovered > 0 {
		logger.CtxWarn(ctx, "Recovered stale leases: count=%d", recovered)
	} else {
		logger.CtxDebug(ctx, "Recovery sweep found no stale leases")
	}

	return report, nil
}

// ExecuteIntegration runs one integration immediately with a manual trigger.
// The lease discipline still applies, so a manual run cannot overlap a
// scheduled one.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID.
// Returns:
//   - *UnitOutcome: execution result (Skipped when the lease is held elsewhere).
//   - error: non-nil for storage failures, unknown IDs, or disabled integrations.
func (s *SchedulerService) ExecuteIntegration(ctx context.Context, id string) (*UnitOutcome, error) {
	integration, err := s.integrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration %s: %w", id, err)
	}
	if integration.Status == domain.IntegrationStatusDisabled {
		return nil, ErrIntegrationDisabled
	}
	return s.executeOne(ctx, integration, domain.TriggerManual)
}

// executeOne drives a single integration through lease acquisition, strategy
// resolution, the bounded scan call, outcome persistence, and rescheduling.
// The lease is released and next_scan_at advanced on every path, including
// failures and timeouts, so a broken integration backs off instead of
// spinning hot inside the bounded selector.
func (s *SchedulerService) executeOne(ctx context.Context, integration *domain.Integration, trigger domain.TriggerSource) (*UnitOutcome, error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldIntegrationID: integration.ID,
		logger.FieldProjectID:     integration.ProjectID,
		logger.FieldPlatform:      string(integration.Platform),
	})

	outcome := &UnitOutcome{
		IntegrationID: integration.ID,
		ProjectID:     integration.ProjectID,
		Platform:      integration.Platform,
	}

	// Scheduled claims recheck the due invariant at claim time: a rival cycle
	// may have scanned and rescheduled the unit after we selected it. Manual
	// triggers claim regardless of due time.
	now := s.now()
	var won bool
	var err error
	if trigger == domain.TriggerScheduled {
		won, err = s.integrationRepo.AcquireDueLease(ctx, integration.ID, now, s.cfg.LeaseTimeout)
	} else {
		won, err = s.integrationRepo.AcquireLease(ctx, integration.ID, now, s.cfg.LeaseTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease for %s: %w", integration.ID, err)
	}
	if !won {
		// Another worker owns the lease or already handled this due period
		logger.CtxDebug(ctx, "Lease unavailable, skipping integration")
		outcome.Skipped = true
		return outcome, nil
	}

	startedAt := s.now()
	var result *hunter.ScanResult
	var scanErr error

	strategy, resolveErr := s.registry.Resolve(integration.Platform)
	if resolveErr != nil {
		// Configuration error: fatal to this unit's attempt only
		scanErr = resolveErr
	} else {
		scanCtx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
		result, scanErr = strategy.Scan(scanCtx, integration)
		cancel()
	}
	endedAt := s.now()

	failures := 0
	if scanErr != nil {
		failures = integration.ConsecutiveFailures + 1
	}
	nextScanAt := endedAt.Add(s.nextDelay(integration.ScanFrequency(), failures))

	if err := s.integrationRepo.FinishScan(ctx, integration.ID, nextScanAt, endedAt, scanErr == nil, failures); err != nil {
		return nil, fmt.Errorf("failed to record scan completion for %s: %w", integration.ID, err)
	}

	entry := &hunter.ScanEntry{
		IntegrationID: integration.ID,
		ProjectID:     integration.ProjectID,
		Platform:      integration.Platform,
		Trigger:       trigger,
		Result:        result,
		Err:           scanErr,
		StartedAt:     startedAt,
		EndedAt:       endedAt,
	}
	if strategy != nil {
		_, err = strategy.LogScan(ctx, entry)
	} else {
		_, err = s.recorder.LogScan(ctx, entry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to log scan outcome for %s: %w", integration.ID, err)
	}

	outcome.NextScanAt = nextScanAt
	if scanErr != nil {
		outcome.Error = scanErr.Error()
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldDurationMs: endedAt.Sub(startedAt).Milliseconds(),
			logger.FieldStatus:     "failed",
		}).WithError(scanErr).Warnf("Scan failed: platform=%s, project=%s, consecutive_failures=%d, next_scan_at=%s",
			integration.Platform, integration.ProjectID, failures, nextScanAt.Format(time.RFC3339))
		return outcome, nil
	}

	outcome.Success = true
	if result != nil {
		outcome.ItemsFound = result.ItemsFound
		outcome.ItemsStored = result.ItemsStored
	}
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldDurationMs: endedAt.Sub(startedAt).Milliseconds(),
		logger.FieldStatus:     "success",
		logger.FieldCount:      outcome.ItemsFound,
	}).Infof("Scan succeeded: platform=%s, project=%s, items_found=%d, items_stored=%d",
		integration.Platform, integration.ProjectID, outcome.ItemsFound, outcome.ItemsStored)

	return outcome, nil
}

// nextDelay computes the spacing before the next attempt. Zero failures means
// the plain cadence; otherwise the cadence is multiplied by
// min(2^failures, MaxBackoffMultiplier).
func (s *SchedulerService) nextDelay(frequency time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return frequency
	}
	multiplier := 1
	for i := 0; i < failures && multiplier < s.cfg.MaxBackoffMultiplier; i++ {
		multiplier <<= 1
	}
	if multiplier > s.cfg.MaxBackoffMultiplier {
		multiplier = s.cfg.MaxBackoffMultiplier
	}
	return frequency * time.Duration(multiplier)
}
