package downloader

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	playlistMarker = "#EXTM3U"
	variantMarker  = "#EXT-X-STREAM-INF"
)

var bandwidthRe = regexp.MustCompile(`BANDWIDTH=(\d+)`)

// IsPlaylist reports whether the body looks like an HLS playlist at all.
func IsPlaylist(content string) bool {
	return strings.Contains(content, playlistMarker)
}

// IsMasterPlaylist reports whether the playlist lists quality variants
// instead of media segments.
func IsMasterPlaylist(content string) bool {
	return strings.Contains(content, variantMarker)
}

// BestVariant returns the variant URI advertising the highest BANDWIDTH,
// resolved against baseURL. On equal bandwidths the first wins. Empty
// string when no variant line parses.
func BestVariant(content, baseURL string) string {
	lines := strings.Split(content, "\n")
	bestURI := ""
	maxBandwidth := 0

	for i, line := range lines {
		if !strings.Contains(line, "BANDWIDTH") {
			continue
		}
		m := bandwidthRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		bw, err := strconv.Atoi(m[1])
		if err != nil || bw <= maxBandwidth {
			continue
		}
		if i+1 < len(lines) {
			uri := strings.TrimSpace(lines[i+1])
			if uri != "" {
				maxBandwidth = bw
				bestURI = uri
			}
		}
	}

	if bestURI == "" {
		return ""
	}
	return resolveURL(bestURI, baseURL)
}

// ParseSegments extracts the ordered segment URLs, resolving relative
// references against the playlist's own base URL.
func ParseSegments(content, baseURL string) []string {
	var segments []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		segments = append(segments, resolveURL(trimmed, baseURL))
	}
	return segments
}

// BaseURL is everything up to and including the last slash of a
// playlist URL.
func BaseURL(playlistURL string) string {
	idx := strings.LastIndex(playlistURL, "/")
	if idx < 0 {
		return playlistURL
	}
	return playlistURL[:idx+1]
}

func resolveURL(ref, baseURL string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	abs, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return abs.String()
}
