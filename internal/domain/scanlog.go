package domain

import "time"

// TriggerSource records what initiated a scan attempt.
// Values include TriggerScheduled and TriggerManual.
type TriggerSource string

const (
	TriggerScheduled TriggerSource = "scheduled"
	TriggerManual    TriggerSource = "manual"
)

// ScanLog is the append-only record of one scan attempt against an
// integration. Rows are created exactly once per attempt and never updated;
// they feed operator audit and the consecutive-failure accounting.
type ScanLog struct {
	ID            string        `gorm:"type:text;primaryKey" json:"id"`
	IntegrationID string        `gorm:"type:text;not null;index" json:"integration_id"`
	ProjectID     string        `gorm:"type:text;not null;index" json:"project_id"`
	Platform      PlatformType  `gorm:"type:text;not null" json:"platform"`
	Trigger       TriggerSource `gorm:"type:text;not null;default:scheduled" json:"trigger"`

	Success      bool   `json:"success"`
	ItemsFound   int    `json:"items_found"`
	ItemsStored  int    `json:"items_stored"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	// ArchiveKey points at the raw payload uploaded to object storage, when
	// the hunter archived one.
	ArchiveKey string `gorm:"type:text" json:"archive_key,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ScanLog.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ScanLog) TableName() string {
	return "scan_logs"
}

// Duration returns how long the attempt ran.
func (l *ScanLog) Duration() time.Duration {
	return l.EndedAt.Sub(l.StartedAt)
}
