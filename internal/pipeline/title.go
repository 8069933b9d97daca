package pipeline

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/anipipe/api/internal/model"
)

var directExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".mov":  true,
}

// ClassifyLink resolves an auto link kind from the URL shape. Explicit
// kinds pass through untouched.
func ClassifyLink(rawURL string, kind model.LinkKind) model.LinkKind {
	if kind != "" && kind != model.LinkKindAuto {
		return kind
	}
	if strings.Contains(rawURL, ".m3u8") {
		return model.LinkKindM3U8
	}
	if u, err := url.Parse(rawURL); err == nil {
		if directExtensions[strings.ToLower(path.Ext(u.Path))] {
			return model.LinkKindDirect
		}
	}
	return model.LinkKindAnime
}

// SanitizeTitle reduces a display title to a filesystem-safe token,
// capped at 50 characters like the canonical filenames expect.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// DeriveTitle combines the locator-provided base title with a numeric
// episode identifier. Non-numeric identifiers (direct downloads) leave
// the title alone.
func DeriveTitle(base, episodeID string) string {
	if base == "" {
		return episodeID
	}
	if isNumeric(episodeID) {
		return fmt.Sprintf("%s Episode %s", base, episodeID)
	}
	return base
}

// OutputFilename is the stable per-episode name in the downloads
// directory; re-running a job for the same episode finds the same file.
func OutputFilename(episodeID, title string) string {
	return fmt.Sprintf("ep_%s_%s.mp4", episodeID, SanitizeTitle(title))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatBytes renders a byte count for the UI.
func FormatBytes(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
