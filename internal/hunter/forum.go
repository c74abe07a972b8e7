package hunter

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/huecodes/hunter/internal/config"
	"github.com/huecodes/hunter/internal/domain"
)

// ForumHunter collects brand mentions from Discourse-compatible forums via
// the public search endpoint. The forum base URL and search query come from
// the integration config ("forum_url", "query").
type ForumHunter struct {
	*Recorder
	client *resty.Client
}

type forumSearchResponse struct {
	Posts []struct {
		ID        int    `json:"id"`
		Username  string `json:"username"`
		Blurb     string `json:"blurb"`
		CreatedAt string `json:"created_at"`
		TopicID   int    `json:"topic_id"`
	} `json:"posts"`
	Topics []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	} `json:"topics"`
}

// NewForumHunter creates a forum hunter.
// Parameters:
//   - cfg: platform-level hunter configuration.
//   - rec: shared outcome recorder.
// Returns:
//   - *ForumHunter: initialized hunter.
func NewForumHunter(cfg config.HunterConfig, rec *Recorder) *ForumHunter {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Api-Key", cfg.APIKey)
	}
	client.SetHeader("Accept", "application/json")

	return &ForumHunter{
		Recorder: rec,
		client:   client,
	}
}

// Platform returns the platform type this hunter serves.
func (h *ForumHunter) Platform() domain.PlatformType {
	return domain.PlatformForum
}

// Scan searches the configured forum for the configured query and collects
// matching posts.
func (h *ForumHunter) Scan(ctx context.Context, integration *domain.Integration) (*ScanResult, error) {
	forumURL := strings.TrimSuffix(integration.Config.GetString("forum_url"), "/")
	query := integration.Config.GetString("query")
	if forumURL == "" || query == "" {
		return nil, fmt.Errorf("forum integration %s: config requires forum_url and query", integration.ID)
	}

	var result forumSearchResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetResult(&result).
		Get(forumURL + "/search.json")
	if err != nil {
		return nil, fmt.Errorf("forum search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("forum search returned status %d", resp.StatusCode())
	}

	stored := 0
	for _, post := range result.Posts {
		if strings.TrimSpace(post.Blurb) != "" {
			stored++
		}
	}

	return &ScanResult{
		ItemsFound:  len(result.Posts),
		ItemsStored: stored,
		RawPayload:  resp.Body(),
	}, nil
}
