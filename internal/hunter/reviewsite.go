package hunter

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/huecodes/hunter/internal/config"
	"github.com/huecodes/hunter/internal/domain"
)

// ReviewSiteHunter collects reviews from third-party review aggregators that
// expose a keyed REST API. The integration config carries "site_domain", the
// business domain to pull reviews for.
type ReviewSiteHunter struct {
	*Recorder
	client  *resty.Client
	baseURL string
}

type reviewSiteResponse struct {
	Data []struct {
		ID     string  `json:"id"`
		Author string  `json:"author"`
		Body   string  `json:"body"`
		Rating float64 `json:"rating"`
	} `json:"data"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

// NewReviewSiteHunter creates a review-site hunter.
// Parameters:
//   - cfg: platform-level hunter configuration (base_url, api_key).
//   - rec: shared outcome recorder.
// Returns:
//   - *ReviewSiteHunter: initialized hunter.
func NewReviewSiteHunter(cfg config.HunterConfig, rec *Recorder) *ReviewSiteHunter {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &ReviewSiteHunter{
		Recorder: rec,
		client:   client,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// Platform returns the platform type this hunter serves.
func (h *ReviewSiteHunter) Platform() domain.PlatformType {
	return domain.PlatformReviewSite
}

// Scan pulls the latest reviews for the configured business domain.
func (h *ReviewSiteHunter) Scan(ctx context.Context, integration *domain.Integration) (*ScanResult, error) {
	siteDomain := integration.Config.GetString("site_domain")
	if siteDomain == "" {
		return nil, fmt.Errorf("reviewsite integration %s: config requires site_domain", integration.ID)
	}

	var result reviewSiteResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("domain", siteDomain).
		SetQueryParam("order", "recent").
		SetResult(&result).
		Get(h.baseURL + "/api/v1/reviews")
	if err != nil {
		return nil, fmt.Errorf("reviewsite request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("reviewsite returned status %d", resp.StatusCode())
	}

	stored := 0
	for _, review := range result.Data {
		if strings.TrimSpace(review.Body) != "" {
			stored++
		}
	}

	return &ScanResult{
		ItemsFound:  len(result.Data),
		ItemsStored: stored,
		RawPayload:  resp.Body(),
	}, nil
}
