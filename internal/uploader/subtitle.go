package uploader

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	captionUploadKey = "31ui4o8sos"
	contentEditKey   = "324vec0c3o"
)

// attachCaptions runs the caption sub-flow: resolve the published
// video's internal IDs from the account content page, upload the caption
// file for a token, then submit a metadata edit attaching the token as
// the English track. Entirely best-effort; returns whether it stuck.
func (c *Client) attachCaptions(ctx context.Context, videoURL, subtitlePath, title, cookies string) bool {
	slug := ExtractSlug(videoURL)
	if slug == "" {
		log.Printf("[Uploader] No video slug in %s, skipping captions", videoURL)
		return false
	}

	html, err := c.do(ctx, http.MethodGet, siteOrigin+"/account/content", nil, cookies, "")
	if err != nil {
		log.Printf("[Uploader] Content page fetch failed, skipping captions: %v", err)
		return false
	}

	siteID, mediaID, err := ExtractMediaIDs(string(html), slug)
	if err != nil {
		log.Printf("[Uploader] %v, skipping captions", err)
		return false
	}

	token, err := c.uploadCaptionFile(ctx, mediaID, siteID, subtitlePath, cookies)
	if err != nil {
		log.Printf("[Uploader] Caption upload failed: %v", err)
		return false
	}

	if err := c.saveCaptionMetadata(ctx, mediaID, siteID, token, title, cookies); err != nil {
		log.Printf("[Uploader] Caption metadata save failed: %v", err)
		return false
	}

	log.Printf("[Uploader] Caption track attached (media %s)", mediaID)
	return true
}

func (c *Client) uploadCaptionFile(ctx context.Context, mediaID, siteID, subtitlePath, cookies string) (string, error) {
	data, err := os.ReadFile(subtitlePath)
	if err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("cc-%d-%d", time.Now().UnixMilli(), 10000+rand.Intn(90000))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("filename", fileName)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	_ = w.WriteField("language", "en")
	if err := w.Close(); err != nil {
		return "", err
	}

	uploadURL := fmt.Sprintf("%s/api/Media/UploadClosedCaptions?mid=%s&sid=%s&filename=%s&apiKey=%s",
		siteOrigin, url.QueryEscape(mediaID), url.QueryEscape(siteID), url.QueryEscape(fileName), captionUploadKey)

	body, err := c.do(ctx, http.MethodPost, uploadURL, &buf, cookies, w.FormDataContentType())
	if err != nil {
		return "", err
	}

	token := ParseCaptionToken(body)
	if token == "" {
		return "", fmt.Errorf("no upload token in response: %s", truncate(string(body), 200))
	}
	return token, nil
}

func (c *Client) saveCaptionMetadata(ctx context.Context, mediaID, siteID, token, title, cookies string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("title", title)
	_ = w.WriteField("closed_captions", fmt.Sprintf(`{"uploads":{"en":%q},"removals":{}}`, token))
	_ = w.WriteField("mediaChannelId", "0")
	_ = w.WriteField("siteChannelId", c.siteChannelID)
	_ = w.WriteField("channelId", "0")
	_ = w.WriteField("closed_captions_file", "")
	_ = w.WriteField("visibility", "unlisted")
	_ = w.WriteField("is_featured_for_user", "0")
	_ = w.WriteField("is_featured_for_channel", "0")
	_ = w.WriteField("youtubeUrl", "")
	_ = w.WriteField("tags", "")
	_ = w.WriteField("description", "")
	_ = w.WriteField("editThumb", "")
	if err := w.Close(); err != nil {
		return err
	}

	saveURL := fmt.Sprintf("%s/account/content?a=edit&sid=%s&id=%s&apiKey=%s",
		siteOrigin, url.QueryEscape(siteID), url.QueryEscape(mediaID), contentEditKey)

	_, err := c.do(ctx, http.MethodPost, saveURL, &buf, cookies, w.FormDataContentType())
	return err
}
