package repository

import (
	"context"

	"github.com/huecodes/hunter/internal/domain"
	"gorm.io/gorm"
)

// ScanLogRepository handles the append-only scan attempt log.
type ScanLogRepository struct {
	db *gorm.DB
}

// NewScanLogRepository creates a new ScanLogRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ScanLogRepository: repository instance bound to db.
func NewScanLogRepository(db *gorm.DB) *ScanLogRepository {
	return &ScanLogRepository{db: db}
}

// Create appends a scan log record. Records are never updated afterwards.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - scanLog: record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ScanLogRepository) Create(ctx context.Context, scanLog *domain.ScanLog) error {
	return r.db.WithContext(ctx).Create(scanLog).Error
}

// ListByIntegration retrieves scan logs for one integration, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - integrationID: integration to list logs for.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.ScanLog: matching records.
//   - error: non-nil if the query fails.
func (r *ScanLogRepository) ListByIntegration(ctx context.Context, integrationID string, limit, offset int) ([]domain.ScanLog, error) {
	var logs []domain.ScanLog
	if err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("started_at DESC, created_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Latest retrieves the most recent scan log for an integration.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - integrationID: integration to look up.
// Returns:
//   - *domain.ScanLog: newest record if any.
//   - error: non-nil if lookup fails (including gorm.ErrRecordNotFound).
func (r *ScanLogRepository) Latest(ctx context.Context, integrationID string) (*domain.ScanLog, error) {
	var scanLog domain.ScanLog
	if err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("started_at DESC, created_at DESC, id ASC").
		First(&scanLog).Error; err != nil {
		return nil, err
	}
	return &scanLog, nil
}

// CountSince counts scan attempts recorded for an integration, split by outcome.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - integrationID: integration to count for.
// Returns:
//   - total: number of attempts.
//   - failed: number of failed attempts.
//   - err: non-nil if the query fails.
func (r *ScanLogRepository) CountSince(ctx context.Context, integrationID string) (total, failed int64, err error) {
	base := r.db.WithContext(ctx).Model(&domain.ScanLog{}).Where("integration_id = ?", integrationID)
	if err = base.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).Model(&domain.ScanLog{}).
		Where("integration_id = ?", integrationID).
		Where("success = ?", false).
		Count(&failed).Error; err != nil {
		return 0, 0, err
	}
	return total, failed, nil
}
