package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huecodes/hunter/internal/domain"
	"github.com/huecodes/hunter/internal/hunter"
	"github.com/huecodes/hunter/internal/repository"
)

// IntegrationService handles tenant-facing integration lifecycle operations.
// The scheduler itself never deletes integrations; lifecycle changes here are
// limited to create/pause/resume.
type IntegrationService struct {
	integrationRepo *repository.IntegrationRepository
	scanLogRepo     *repository.ScanLogRepository
	registry        *hunter.Registry
}

// NewIntegrationService creates an integration service.
// Parameters:
//   - integrationRepo: integration repository.
//   - scanLogRepo: scan log repository.
//   - registry: hunter registry, used to validate platform types on create.
// Returns:
//   - *IntegrationService: initialized service.
func NewIntegrationService(
	integrationRepo *repository.IntegrationRepository,
	scanLogRepo *repository.ScanLogRepository,
	registry *hunter.Registry,
) *IntegrationService {
	return &IntegrationService{
		integrationRepo: integrationRepo,
		scanLogRepo:     scanLogRepo,
		registry:        registry,
	}
}

// CreateParams holds the fields a tenant supplies when configuring an integration.
type CreateParams struct {
	ProjectID         string
	Platform          domain.PlatformType
	Name              string
	Config            domain.IntegrationConfig
	ScanFrequencySecs int
}

// Create configures a new integration. The first scan is due immediately.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - params: integration fields.
// Returns:
//   - *domain.Integration: the created record.
//   - error: non-nil on validation or storage failure.
func (s *IntegrationService) Create(ctx context.Context, params CreateParams) (*domain.Integration, error) {
	if params.ProjectID == "" || params.Name == "" {
		return nil, fmt.Errorf("project_id and name are required")
	}
	if _, err := s.registry.Resolve(params.Platform); err != nil {
		return nil, err
	}
	if params.ScanFrequencySecs < 60 {
		return nil, fmt.Errorf("scan frequency must be at least 60 seconds")
	}

	integration := &domain.Integration{
		ID:                uuid.New().String(),
		ProjectID:         params.ProjectID,
		Platform:          params.Platform,
		Name:              params.Name,
		Config:            params.Config,
		ScanFrequencySecs: params.ScanFrequencySecs,
		NextScanAt:        time.Now(),
		Status:            domain.IntegrationStatusActive,
	}
	if err := s.integrationRepo.Create(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}
	return integration, nil
}

// Get retrieves one integration.
func (s *IntegrationService) Get(ctx context.Context, id string) (*domain.Integration, error) {
	return s.integrationRepo.GetByID(ctx, id)
}

// List retrieves integrations, optionally filtered by project.
func (s *IntegrationService) List(ctx context.Context, projectID string, limit, offset int) ([]domain.Integration, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.integrationRepo.ListByProject(ctx, projectID, limit, offset)
}

// Pause suspends scheduling for an integration.
func (s *IntegrationService) Pause(ctx context.Context, id string) error {
	return s.integrationRepo.UpdateStatus(ctx, id, domain.IntegrationStatusPaused)
}

// Resume reactivates a paused integration.
func (s *IntegrationService) Resume(ctx context.Context, id string) error {
	return s.integrationRepo.UpdateStatus(ctx, id, domain.IntegrationStatusActive)
}

// Logs lists scan attempts for an integration, newest first.
func (s *IntegrationService) Logs(ctx context.Context, id string, limit, offset int) ([]domain.ScanLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.scanLogRepo.ListByIntegration(ctx, id, limit, offset)
}

// LogCounts returns total and failed attempt counts for an integration.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: integration ID.
// Returns:
//   - total: number of recorded attempts.
//   - failed: number of failed attempts.
//   - err: non-nil if a count query fails.
func (s *IntegrationService) LogCounts(ctx context.Context, id string) (total, failed int64, err error) {
	return s.scanLogRepo.CountSince(ctx, id)
}

// Stats summarizes the integration fleet for operators.
type Stats struct {
	Active   int64 `json:"active"`
	Paused   int64 `json:"paused"`
	Disabled int64 `json:"disabled"`
	Failing  int64 `json:"failing"`
}

// GetStats counts integrations by status plus those failing repeatedly.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *Stats: fleet summary.
//   - error: non-nil if a count query fails.
func (s *IntegrationService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var err error
	if stats.Active, err = s.integrationRepo.CountByStatus(ctx, domain.IntegrationStatusActive); err != nil {
		return nil, err
	}
	if stats.Paused, err = s.integrationRepo.CountByStatus(ctx, domain.IntegrationStatusPaused); err != nil {
		return nil, err
	}
	if stats.Disabled, err = s.integrationRepo.CountByStatus(ctx, domain.IntegrationStatusDisabled); err != nil {
		return nil, err
	}
	if stats.Failing, err = s.integrationRepo.CountFailing(ctx, 3); err != nil {
		return nil, err
	}
	return stats, nil
}
