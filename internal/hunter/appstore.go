package hunter

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/huecodes/hunter/internal/config"
	"github.com/huecodes/hunter/internal/domain"
)

// AppStoreHunter collects customer reviews from the Apple App Store RSS feed.
// The integration config carries "app_id" and optionally "country"
// (defaults to "us").
type AppStoreHunter struct {
	*Recorder
	client  *resty.Client
	baseURL string
}

type appStoreFeedResponse struct {
	Feed struct {
		Entry []struct {
			ID struct {
				Label string `json:"label"`
			} `json:"id"`
			Title struct {
				Label string `json:"label"`
			} `json:"title"`
			Content struct {
				Label string `json:"label"`
			} `json:"content"`
			Rating struct {
				Label string `json:"label"`
			} `json:"im:rating"`
		} `json:"entry"`
	} `json:"feed"`
}

// NewAppStoreHunter creates an App Store hunter.
// Parameters:
//   - cfg: platform-level hunter configuration (base_url).
//   - rec: shared outcome recorder.
// Returns:
//   - *AppStoreHunter: initialized hunter.
func NewAppStoreHunter(cfg config.HunterConfig, rec *Recorder) *AppStoreHunter {
	return &AppStoreHunter{
		Recorder: rec,
		client:   resty.New().SetHeader("Accept", "application/json"),
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// Platform returns the platform type this hunter serves.
func (h *AppStoreHunter) Platform() domain.PlatformType {
	return domain.PlatformAppStore
}

// Scan fetches the most recent customer reviews for the configured app.
func (h *AppStoreHunter) Scan(ctx context.Context, integration *domain.Integration) (*ScanResult, error) {
	appID := integration.Config.GetString("app_id")
	if appID == "" {
		return nil, fmt.Errorf("appstore integration %s: config requires app_id", integration.ID)
	}
	country := integration.Config.GetString("country")
	if country == "" {
		country = "us"
	}

	url := fmt.Sprintf("%s/%s/rss/customerreviews/id=%s/sortby=mostrecent/json", h.baseURL, country, appID)

	var feed appStoreFeedResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&feed).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("appstore feed request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("appstore feed returned status %d", resp.StatusCode())
	}

	// The first feed entry is app metadata, not a review; entries without a
	// rating are skipped the same way.
	found := 0
	stored := 0
	for _, entry := range feed.Feed.Entry {
		if entry.Rating.Label == "" {
			continue
		}
		found++
		if strings.TrimSpace(entry.Content.Label) != "" {
			stored++
		}
	}

	return &ScanResult{
		ItemsFound:  found,
		ItemsStored: stored,
		RawPayload:  resp.Body(),
	}, nil
}
