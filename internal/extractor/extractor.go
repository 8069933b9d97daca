package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/model"
	"github.com/anipipe/api/internal/pipeline"
)

var (
	episodeIDRe = regexp.MustCompile(`[?&]ep=(\d+)`)
	animeSlugRe = regexp.MustCompile(`/watch/([^/?]+)`)
)

// Extractor resolves watch-page URLs into stream metadata through the
// public anime metadata API. It implements pipeline.StreamLocator.
type Extractor struct {
	apiBase    string
	httpClient *http.Client
}

func New(cfg *config.ExtractorConfig) *Extractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	return &Extractor{
		apiBase:    strings.TrimSuffix(cfg.APIBase, "/"),
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

type streamResponse struct {
	Results struct {
		StreamingLink struct {
			Iframe string `json:"iframe"`
			Link   struct {
				File string `json:"file"`
			} `json:"link"`
			Tracks []pipeline.SubtitleTrack `json:"tracks"`
		} `json:"streamingLink"`
	} `json:"results"`
}

// Resolve asks the metadata API for the episode's streaming link. The
// API echoes the watch page's own id=slug?ep=N compound parameter.
func (e *Extractor) Resolve(ctx context.Context, sourceURL string, pref model.TrackPreference) (*pipeline.ExtractResult, error) {
	slug := ParseAnimeSlug(sourceURL)
	if slug == "" {
		return nil, fmt.Errorf("cannot find anime slug in URL: %s", sourceURL)
	}
	episodeID := ParseEpisodeID(sourceURL)

	trackType := string(pref)
	if trackType == "" {
		trackType = string(model.TrackSub)
	}

	streamID := slug
	if episodeID != "" {
		streamID = fmt.Sprintf("%s?ep=%s", slug, episodeID)
	}
	apiURL := fmt.Sprintf("%s/stream?id=%s&server=hd-1&type=%s", e.apiBase, streamID, trackType)

	log.Printf("[Extractor] Resolving %s (episode %s, %s)", slug, episodeID, trackType)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream API returned status %d", resp.StatusCode)
	}

	var parsed streamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("invalid stream API response: %w", err)
	}

	link := parsed.Results.StreamingLink
	streamURL := link.Link.File
	if streamURL == "" {
		streamURL = link.Iframe
	}
	if streamURL == "" {
		return nil, fmt.Errorf("no stream found for %s", slug)
	}

	return &pipeline.ExtractResult{
		StreamURL:      streamURL,
		Title:          TitleFromSlug(slug),
		EpisodeID:      episodeID,
		SubtitleTracks: link.Tracks,
	}, nil
}

// ParseEpisodeID pulls the numeric ep parameter out of a watch URL.
func ParseEpisodeID(sourceURL string) string {
	m := episodeIDRe.FindStringSubmatch(sourceURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseAnimeSlug pulls the show slug out of a /watch/ URL path.
func ParseAnimeSlug(sourceURL string) string {
	m := animeSlugRe.FindStringSubmatch(sourceURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// TitleFromSlug turns "one-piece-100" into "One Piece". A trailing
// all-digit segment is the site's internal id, not part of the name.
func TitleFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		allDigits := last != ""
		for _, r := range last {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			parts = parts[:len(parts)-1]
		}
	}
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
