package hunter

import (
	"context"
	"errors"
	"time"

	"github.com/huecodes/hunter/internal/domain"
)

// ErrUnknownPlatform is returned by the registry when no hunter is registered
// for an integration's platform type.
var ErrUnknownPlatform = errors.New("unknown platform type")

// ScanResult holds what one scan attempt collected. RawPayload carries the
// unparsed platform response for archival; the scheduler never inspects it.
type ScanResult struct {
	ItemsFound  int
	ItemsStored int
	RawPayload  []byte
}

// ScanEntry describes one finished attempt for outcome logging. Result is nil
// when the attempt failed before producing anything.
type ScanEntry struct {
	IntegrationID string
	ProjectID     string
	Platform      domain.PlatformType
	Trigger       domain.TriggerSource
	Result        *ScanResult
	Err           error
	StartedAt     time.Time
	EndedAt       time.Time
}

// Hunter is the pluggable, platform-specific collection strategy. Scan runs
// one collection pass with the integration's opaque config; LogScan persists
// the attempt's outcome record (and archives the raw payload when present).
type Hunter interface {
	// Platform returns the platform type this hunter serves.
	// Parameters: none.
	// Returns:
	//   - domain.PlatformType: platform tag.
	Platform() domain.PlatformType

	// Scan runs one collection pass against the external platform.
	// Parameters:
	//   - ctx: context carrying the per-scan deadline.
	//   - integration: integration being scanned, including its config.
	// Returns:
	//   - *ScanResult: counts and raw payload on success.
	//   - error: non-nil if the pass failed.
	Scan(ctx context.Context, integration *domain.Integration) (*ScanResult, error)

	// LogScan persists the outcome record for one attempt.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - entry: finished attempt description.
	// Returns:
	//   - *domain.ScanLog: the persisted record.
	//   - error: non-nil if persistence fails.
	LogScan(ctx context.Context, entry *ScanEntry) (*domain.ScanLog, error)
}
