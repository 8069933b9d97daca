package uploader

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultThumbSelector is used whenever the thumbnail response cannot be
// understood. The platform treats it as "use the generated default".
const DefaultThumbSelector = "4"

var (
	thumbAttrRe   = regexp.MustCompile(`(?i)(?:data-thumb=["']?|thumbId["\s:]+|"id"\s*:\s*)(\d+)`)
	thumbNumRe    = regexp.MustCompile(`^(\d+)`)
	publishURLRe  = regexp.MustCompile(`url:\s*["']([^"']+)["']`)
	embedIframeRe = regexp.MustCompile(`src=["']([^"']+embed[^"']+)["']`)
	videoSlugRe   = regexp.MustCompile(`(?i)/([a-z0-9]+-[^.]+)\.html`)
)

// ParseThumbSelector extracts a thumbnail selector from the loosely
// structured thumbnails response. Strategies in priority order: a JSON
// body with a thumbs array, an id attribute in HTML/text, a bare leading
// number. Any failure falls back to the default selector.
func ParseThumbSelector(body string) string {
	var payload struct {
		Thumbs []json.RawMessage `json:"thumbs"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil && len(payload.Thumbs) > 0 {
		var obj struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(payload.Thumbs[0], &obj); err == nil && obj.ID != "" {
			return obj.ID.String()
		}
		var scalar json.Number
		if err := json.Unmarshal(payload.Thumbs[0], &scalar); err == nil && scalar != "" {
			return scalar.String()
		}
	}

	if m := thumbAttrRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := thumbNumRe.FindStringSubmatch(strings.TrimSpace(body)); m != nil {
		return m[1]
	}
	return DefaultThumbSelector
}

// ExtractPublishURL pulls the public video URL out of the publish form
// response. Two known shapes: a url field inside the success callback,
// and an embed iframe src. Empty string when neither matches.
func ExtractPublishURL(html string) string {
	if m := publishURLRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	if m := embedIframeRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

// ExtractSlug pulls the video slug out of a public video URL.
func ExtractSlug(videoURL string) string {
	if m := videoSlugRe.FindStringSubmatch(videoURL); m != nil {
		return m[1]
	}
	return ""
}

// ExtractMediaIDs finds the platform-internal site and media IDs for a
// published video by locating its info block on the account content
// page. The block's DOM id has the form siteID_mediaID_token_item.
func ExtractMediaIDs(html, slug string) (siteID, mediaID string, err error) {
	pattern, err := regexp.Compile(`(?s)<div class="info-video" id="([^"]+)">.*?href="/` + regexp.QuoteMeta(slug) + `\.html"`)
	if err != nil {
		return "", "", err
	}
	m := pattern.FindStringSubmatch(html)
	if m == nil {
		return "", "", fmt.Errorf("could not find media ID for video slug: %s", slug)
	}
	parts := strings.Split(m[1], "_")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("unexpected info-video id format: %s", m[1])
	}
	return parts[0], parts[1], nil
}

// ParseCaptionToken extracts the upload token from the caption upload
// response, which varies between a JSON envelope and a bare filename.
func ParseCaptionToken(body []byte) string {
	var envelope struct {
		Return *struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
		} `json:"return"`
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Filename string `json:"filename"`
		Data     *struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Return != nil && envelope.Return.Status {
			msg := envelope.Return.Message
			if msg == "" {
				msg = "uploaded"
			}
			return strings.SplitN(msg, ".", 2)[0]
		}
		if envelope.Success {
			if envelope.Message != "" {
				return envelope.Message
			}
			if envelope.Data != nil && envelope.Data.Token != "" {
				return envelope.Data.Token
			}
			return "uploaded"
		}
		if envelope.Filename != "" {
			return envelope.Filename
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && !strings.HasPrefix(text, "{") {
		return strings.SplitN(text, ".", 2)[0]
	}
	return ""
}
