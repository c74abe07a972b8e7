package hunter

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/huecodes/hunter/internal/domain"
	"github.com/huecodes/hunter/internal/logger"
	"github.com/huecodes/hunter/internal/repository"
	"github.com/huecodes/hunter/internal/storage"
)

// Recorder is the shared LogScan implementation embedded by every hunter.
// It appends the ScanLog row and, when the attempt produced a raw payload,
// archives it to object storage under scans/<integration>/<scan-id>.json.
type Recorder struct {
	scanLogRepo *repository.ScanLogRepository
	archive     storage.ObjectStorage
	logger      *logger.Logger
}

// NewRecorder creates a Recorder.
// Parameters:
//   - scanLogRepo: repository for scan log persistence.
//   - archive: object storage for raw payloads; may be a Noop store.
//   - log: logger instance.
// Returns:
//   - *Recorder: initialized recorder.
func NewRecorder(scanLogRepo *repository.ScanLogRepository, archive storage.ObjectStorage, log *logger.Logger) *Recorder {
	return &Recorder{
		scanLogRepo: scanLogRepo,
		archive:     archive,
		logger:      log,
	}
}

// LogScan persists the outcome record for one attempt.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: finished attempt description.
// Returns:
//   - *domain.ScanLog: the persisted record.
//   - error: non-nil if the log row cannot be written.
func (r *Recorder) LogScan(ctx context.Context, entry *ScanEntry) (*domain.ScanLog, error) {
	scanLog := &domain.ScanLog{
		ID:            uuid.New().String(),
		IntegrationID: entry.IntegrationID,
		ProjectID:     entry.ProjectID,
		Platform:      entry.Platform,
		Trigger:       entry.Trigger,
		StartedAt:     entry.StartedAt,
		EndedAt:       entry.EndedAt,
	}

	if entry.Err != nil {
		scanLog.Success = false
		scanLog.ErrorMessage = entry.Err.Error()
	} else if entry.Result != nil {
		scanLog.Success = true
		scanLog.ItemsFound = entry.Result.ItemsFound
		scanLog.ItemsStored = entry.Result.ItemsStored
	}

	if entry.Result != nil && len(entry.Result.RawPayload) > 0 {
		key := fmt.Sprintf("scans/%s/%s.json", entry.IntegrationID, scanLog.ID)
		payload := entry.Result.RawPayload
		if err := r.archive.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
			// Archival is best-effort; the outcome row is the source of truth
			r.log(ctx).WithError(err).WithField(logger.FieldIntegrationID, entry.IntegrationID).
				Warn("Failed to archive raw scan payload")
		} else {
			scanLog.ArchiveKey = key
		}
	}

	if err := r.scanLogRepo.Create(ctx, scanLog); err != nil {
		return nil, fmt.Errorf("failed to persist scan log: %w", err)
	}
	return scanLog, nil
}

func (r *Recorder) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}
