package domain

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name        string
		status      IntegrationStatus
		nextScanAt  time.Time
		lockedAt    *time.Time
		lockExpires *time.Time
		want        bool
	}{
		{"active and overdue", IntegrationStatusActive, past, nil, nil, true},
		{"due exactly now", IntegrationStatusActive, now, nil, nil, true},
		{"not yet due", IntegrationStatusActive, future, nil, nil, false},
		{"paused", IntegrationStatusPaused, past, nil, nil, false},
		{"disabled", IntegrationStatusDisabled, past, nil, nil, false},
		{"live lease", IntegrationStatusActive, past, &past, &future, false},
		{"expired lease", IntegrationStatusActive, past, &past, &past, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := &Integration{
				Status:        tt.status,
				NextScanAt:    tt.nextScanAt,
				LockedAt:      tt.lockedAt,
				LockExpiresAt: tt.lockExpires,
			}
			if got := i.IsDue(now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanFrequency(t *testing.T) {
	i := &Integration{ScanFrequencySecs: 900}
	if got := i.ScanFrequency(); got != 15*time.Minute {
		t.Errorf("ScanFrequency() = %v, want 15m", got)
	}
}

func TestIntegrationConfigScanRoundTrip(t *testing.T) {
	original := IntegrationConfig{"forum_url": "https://forum.example.com", "query": "acme"}

	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value() returned error: %v", err)
	}

	var decoded IntegrationConfig
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if decoded.GetString("forum_url") != "https://forum.example.com" {
		t.Errorf("unexpected forum_url: %q", decoded.GetString("forum_url"))
	}
	if decoded.GetString("missing") != "" {
		t.Error("expected empty string for missing key")
	}
}

func TestIntegrationConfigScanNil(t *testing.T) {
	var c IntegrationConfig
	if err := c.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if c == nil {
		t.Error("expected empty config after scanning nil")
	}
}
