package hunter

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/huecodes/hunter/internal/config"
	"github.com/huecodes/hunter/internal/domain"
)

// PlayStoreHunter collects Google Play reviews through the configured scraping
// gateway (Play has no public review feed). The integration config carries
// "package_name" and optionally "lang".
type PlayStoreHunter struct {
	*Recorder
	client  *resty.Client
	baseURL string
}

type playStoreResponse struct {
	Reviews []struct {
		ID    string `json:"id"`
		Text  string `json:"text"`
		Score int    `json:"score"`
		At    string `json:"at"`
	} `json:"reviews"`
	NextToken string `json:"next_token"`
}

// NewPlayStoreHunter creates a Play Store hunter.
// Parameters:
//   - cfg: platform-level hunter configuration (base_url, api_key).
//   - rec: shared outcome recorder.
// Returns:
//   - *PlayStoreHunter: initialized hunter.
func NewPlayStoreHunter(cfg config.HunterConfig, rec *Recorder) *PlayStoreHunter {
	client := resty.New().SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &PlayStoreHunter{
		Recorder: rec,
		client:   client,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// Platform returns the platform type this hunter serves.
func (h *PlayStoreHunter) Platform() domain.PlatformType {
	return domain.PlatformPlayStore
}

// Scan fetches the newest reviews for the configured package.
func (h *PlayStoreHunter) Scan(ctx context.Context, integration *domain.Integration) (*ScanResult, error) {
	packageName := integration.Config.GetString("package_name")
	if packageName == "" {
		return nil, fmt.Errorf("playstore integration %s: config requires package_name", integration.ID)
	}
	lang := integration.Config.GetString("lang")
	if lang == "" {
		lang = "en"
	}

	var result playStoreResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"package": packageName,
			"lang":    lang,
			"sort":    "newest",
		}).
		SetResult(&result).
		Get(h.baseURL + "/v1/reviews")
	if err != nil {
		return nil, fmt.Errorf("playstore reviews request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("playstore reviews returned status %d", resp.StatusCode())
	}

	stored := 0
	for _, review := range result.Reviews {
		if strings.TrimSpace(review.Text) != "" {
			stored++
		}
	}

	return &ScanResult{
		ItemsFound:  len(result.Reviews),
		ItemsStored: stored,
		RawPayload:  resp.Body(),
	}, nil
}
