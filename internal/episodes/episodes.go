package episodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anipipe/api/internal/config"
)

const watchBase = "https://9animetv.to/watch/"

// Episode is one entry from the show's episode listing.
type Episode struct {
	ID            string `json:"id"`
	EpisodeNo     int    `json:"episode_no"`
	Title         string `json:"title"`
	JapaneseTitle string `json:"japanese_title"`
	Filler        bool   `json:"filler"`
}

// WatchURL is the public watch page for this episode, which the
// pipeline accepts as a start URL.
func (e Episode) WatchURL() string {
	return watchBase + e.ID
}

// Client lists a show's episodes through the metadata API.
type Client struct {
	apiBase    string
	httpClient *http.Client
}

func NewClient(cfg *config.ExtractorConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	return &Client{
		apiBase:    strings.TrimSuffix(cfg.APIBase, "/"),
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

type episodesResponse struct {
	Results struct {
		TotalEpisodes int       `json:"totalEpisodes"`
		Episodes      []Episode `json:"episodes"`
	} `json:"results"`
}

// List fetches every episode of the given show.
func (c *Client) List(ctx context.Context, animeID string) ([]Episode, error) {
	apiURL := fmt.Sprintf("%s/episodes/%s", c.apiBase, animeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("episodes API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("episodes API returned status %d", resp.StatusCode)
	}

	var parsed episodesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid episodes API response: %w", err)
	}

	eps := parsed.Results.Episodes
	log.Printf("[Episodes] %s has %d episodes", animeID, len(eps))
	return eps, nil
}

// FilterRange keeps episodes whose number falls in [start, end]. A zero
// end means no upper bound; a zero start means no lower bound.
func FilterRange(eps []Episode, start, end int) []Episode {
	var out []Episode
	for _, e := range eps {
		if start > 0 && e.EpisodeNo < start {
			continue
		}
		if end > 0 && e.EpisodeNo > end {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RenderTitle expands {jp}, {en} and {ep_no} placeholders against the
// episode. An empty template falls back to "{en} Episode {ep_no}", or
// the Japanese title when no English one exists.
func RenderTitle(template string, e Episode) string {
	if template == "" {
		name := e.Title
		if name == "" {
			name = e.JapaneseTitle
		}
		return fmt.Sprintf("%s Episode %d", name, e.EpisodeNo)
	}
	r := strings.NewReplacer(
		"{jp}", e.JapaneseTitle,
		"{en}", e.Title,
		"{ep_no}", fmt.Sprintf("%d", e.EpisodeNo),
	)
	return r.Replace(template)
}
