package repository

import (
	"context"
	"time"

	"github.com/huecodes/hunter/internal/domain"
	"gorm.io/gorm"
)

// IntegrationRepository handles platform integration data operations,
// including the lease discipline used by the scheduler.
type IntegrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a new IntegrationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *IntegrationRepository: repository instance bound to db.
func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Create inserts a new integration record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - integration: integration record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *IntegrationRepository) Create(ctx context.Context, integration *domain.Integration) error {
	return r.db.WithContext(ctx).Create(integration).Error
}

// GetByID retrieves an integration by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID.
// Returns:
//   - *domain.Integration: integration record if found.
//   - error: non-nil if lookup fails.
func (r *IntegrationRepository) GetByID(ctx context.Context, id string) (*domain.Integration, error) {
	var integration domain.Integration
	if err := r.db.WithContext(ctx).First(&integration, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &integration, nil
}

// ListByProject retrieves integrations for a project with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - projectID: owning project ID; empty means all projects.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Integration: matching records.
//   - error: non-nil if the query fails.
func (r *IntegrationRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.Integration, error) {
	var integrations []domain.Integration
	query := r.db.WithContext(ctx)
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if err := query.
		Limit(limit).
		Offset(offset).
		Order("created_at DESC").
		Find(&integrations).Error; err != nil {
		return nil, err
	}
	return integrations, nil
}

// ListDue retrieves integrations that are due for a scan, bounded by cap.
// Due means: active, next_scan_at has passed, and no live lease. Results are
// ordered oldest-due first with ID as the tiebreaker, so a backlog never
// starves the longest-waiting integrations. Read-only.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - now: reference time for the due comparison.
//   - cap: maximum number of records to return.
// Returns:
//   - []domain.Integration: due integrations, oldest first.
//   - error: non-nil if the query fails.
func (r *IntegrationRepository) ListDue(ctx context.Context, now time.Time, cap int) ([]domain.Integration, error) {
	var integrations []domain.Integration
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.IntegrationStatusActive).
		Where("next_scan_at <= ?", now).
		Where("locked_at IS NULL OR lock_expires_at <= ?", now).
		Order("next_scan_at ASC, id ASC").
		Limit(cap).
		Find(&integrations).Error; err != nil {
		return nil, err
	}
	return integrations, nil
}

// AcquireLease attempts to claim an integration for execution. The claim is a
// single conditional UPDATE, so two workers racing for the same integration
// cannot both win: exactly one sees RowsAffected == 1.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID to claim.
//   - now: lease acquisition time.
//   - leaseTimeout: how long the lease is valid before the sweeper may reclaim it.
// Returns:
//   - bool: true if this caller won the lease.
//   - error: non-nil if the update fails.
func (r *IntegrationRepository) AcquireLease(ctx context.Context, id string, now time.Time, leaseTimeout time.Duration) (bool, error) {
	expiresAt := now.Add(leaseTimeout)
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Where("locked_at IS NULL OR lock_expires_at <= ?", now).
		Updates(map[string]interface{}{
			"locked_at":       now,
			"lock_expires_at": expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AcquireDueLease claims an integration for a scheduled execution. On top of
// the lease condition it rechecks the full due invariant, so a unit that a
// faster worker already scanned and rescheduled (or that was paused) between
// selection and execution loses the claim instead of being scanned twice in
// the same due period.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID to claim.
//   - now: lease acquisition time, also the due reference.
//   - leaseTimeout: how long the lease is valid before the sweeper may reclaim it.
// Returns:
//   - bool: true if this caller won the lease and the unit is still due.
//   - error: non-nil if the update fails.
func (r *IntegrationRepository) AcquireDueLease(ctx context.Context, id string, now time.Time, leaseTimeout time.Duration) (bool, error) {
	expiresAt := now.Add(leaseTimeout)
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Where("status = ?", domain.IntegrationStatusActive).
		Where("next_scan_at <= ?", now).
		Where("locked_at IS NULL OR lock_expires_at <= ?", now).
		Updates(map[string]interface{}{
			"locked_at":       now,
			"lock_expires_at": expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FinishScan releases the lease and records the outcome of one attempt in a
// single update: next_scan_at advances, the outcome cache is refreshed, and
// the lock fields are cleared on success and failure alike.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID.
//   - nextScanAt: when the integration becomes due again.
//   - scannedAt: completion time of the attempt.
//   - success: whether the attempt succeeded.
//   - consecutiveFailures: new failure counter value.
// Returns:
//   - error: non-nil if the update fails.
func (r *IntegrationRepository) FinishScan(ctx context.Context, id string, nextScanAt, scannedAt time.Time, success bool, consecutiveFailures int) error {
	return r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked_at":            nil,
			"lock_expires_at":      nil,
			"next_scan_at":         nextScanAt,
			"last_scanned_at":      scannedAt,
			"last_scan_success":    success,
			"consecutive_failures": consecutiveFailures,
		}).Error
}

// ReleaseExpiredLeases clears every lease whose holder never finished. The
// update only touches lock fields, so a reclaimed integration keeps its
// next_scan_at and is immediately eligible for re-selection. Idempotent:
// clearing an already-clear lease matches no rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - now: reference time for lease expiry.
// Returns:
//   - int64: number of leases released.
//   - error: non-nil if the update fails.
func (r *IntegrationRepository) ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("locked_at IS NOT NULL").
		Where("lock_expires_at <= ?", now).
		Updates(map[string]interface{}{
			"locked_at":       nil,
			"lock_expires_at": nil,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// UpdateStatus changes an integration's lifecycle status (pause/resume/disable).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID.
//   - status: new status value.
// Returns:
//   - error: non-nil if the update fails.
func (r *IntegrationRepository) UpdateStatus(ctx context.Context, id string, status domain.IntegrationStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// CountByStatus counts integrations by status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: status to count.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *IntegrationRepository) CountByStatus(ctx context.Context, status domain.IntegrationStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountFailing counts active integrations with at least minFailures consecutive failures.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - minFailures: inclusive failure threshold.
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *IntegrationRepository) CountFailing(ctx context.Context, minFailures int) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Integration{}).
		Where("status = ?", domain.IntegrationStatusActive).
		Where("consecutive_failures >= ?", minFailures).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
