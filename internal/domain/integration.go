package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// PlatformType identifies the external platform an integration collects from.
// Values include PlatformForum, PlatformAppStore, PlatformPlayStore, and PlatformReviewSite.
type PlatformType string

const (
	PlatformForum      PlatformType = "forum"
	PlatformAppStore   PlatformType = "appstore"
	PlatformPlayStore  PlatformType = "playstore"
	PlatformReviewSite PlatformType = "reviewsite"
)

// IntegrationStatus represents the lifecycle state of an integration.
// Values include IntegrationStatusActive, IntegrationStatusPaused, and IntegrationStatusDisabled.
type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "active"
	IntegrationStatusPaused   IntegrationStatus = "paused"
	IntegrationStatusDisabled IntegrationStatus = "disabled"
)

// IntegrationConfig is a custom type for storing platform-specific JSON config in the database.
// The scheduler never interprets it; it is handed opaquely to the platform hunter.
type IntegrationConfig map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the config.
//   - error: non-nil if marshaling fails.
func (c IntegrationConfig) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (c *IntegrationConfig) Scan(value interface{}) error {
	if value == nil {
		*c = IntegrationConfig{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan IntegrationConfig")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, c)
}

// GetString returns a string config value or the empty string when absent.
func (c IntegrationConfig) GetString(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Integration represents one project's recurring collection job for one
// external platform. It is the unit the scheduler selects, leases, and runs.
//
// Lease invariant: at most one worker holds a non-expired lease (LockedAt set,
// LockExpiresAt in the future) at any time. An integration is due when it is
// active, NextScanAt has passed, and it carries no live lease.
type Integration struct {
	ID        string            `gorm:"type:text;primaryKey" json:"id"`
	ProjectID string            `gorm:"type:text;not null;index" json:"project_id"`
	Platform  PlatformType      `gorm:"type:text;not null;index" json:"platform"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Config    IntegrationConfig `gorm:"type:text" json:"config"`

	// Cadence
	ScanFrequencySecs int       `gorm:"not null;default:3600" json:"scan_frequency_secs"`
	NextScanAt        time.Time `gorm:"index:idx_integrations_due" json:"next_scan_at"`

	// Lease state
	Status        IntegrationStatus `gorm:"type:text;index:idx_integrations_due;default:active" json:"status"`
	LockedAt      *time.Time        `json:"locked_at,omitempty"`
	LockExpiresAt *time.Time        `gorm:"index" json:"lock_expires_at,omitempty"`

	// Outcome cache
	LastScannedAt       *time.Time `json:"last_scanned_at,omitempty"`
	LastScanSuccess     *bool      `json:"last_scan_success,omitempty"`
	ConsecutiveFailures int        `gorm:"default:0" json:"consecutive_failures"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Integration.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Integration) TableName() string {
	return "platform_integrations"
}

// ScanFrequency returns the configured cadence as a time.Duration.
func (i *Integration) ScanFrequency() time.Duration {
	return time.Duration(i.ScanFrequencySecs) * time.Second
}

// IsDue reports whether the integration satisfies the due invariant at now.
func (i *Integration) IsDue(now time.Time) bool {
	if i.Status != IntegrationStatusActive {
		return false
	}
	if i.NextScanAt.After(now) {
		return false
	}
	if i.LockedAt == nil {
		return true
	}
	return i.LockExpiresAt != nil && !i.LockExpiresAt.After(now)
}
