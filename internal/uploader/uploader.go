package uploader

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/model"
	"github.com/anipipe/api/internal/pipeline"
)

const (
	// ChunkSize matches the platform's own uploader; the merge endpoint
	// expects chunks of exactly this size except the last.
	ChunkSize = int64(50_000_000)

	apiVersion = "1.3"
	siteOrigin = "https://rumble.com"
	userAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"
)

// Client drives the platform's chunked-upload protocol: split, transfer,
// merge, probe duration, pick a thumbnail, publish, optionally attach a
// caption track. It implements pipeline.Uploader.
type Client struct {
	httpClient    *http.Client
	host          string
	siteChannelID string
	chunkSize     int64
}

func NewClient(cfg *config.UploadConfig) *Client {
	host := cfg.Host
	if host == "" {
		host = "https://web17.rumble.com"
	}
	siteChannelID := cfg.SiteChannelID
	if siteChannelID == "" {
		siteChannelID = "15"
	}
	return &Client{
		// Chunk transfers can take minutes each; liveness comes from
		// per-chunk progress, not a wall-clock cap.
		httpClient:    &http.Client{},
		host:          host,
		siteChannelID: siteChannelID,
		chunkSize:     ChunkSize,
	}
}

// Upload runs the full publish flow. Every step's failure aborts the
// remaining steps except the explicitly best-effort ones: duration,
// thumbnail selection, and the caption sub-flow.
func (c *Client) Upload(ctx context.Context, filePath, title string, opts pipeline.UploadOptions, onProgress func(pipeline.UploadProgress)) (*pipeline.UploadResult, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}
	fileSize := info.Size()
	fileModified := info.ModTime().UnixMilli()
	originalName := filepath.Base(filePath)

	timeStart := time.Now().UnixMilli()
	uploadFileName := fmt.Sprintf("%d-%d.mp4", timeStart, 100000+rand.Intn(900000))

	chunkQty := int((fileSize + c.chunkSize - 1) / c.chunkSize)
	log.Printf("[Uploader] Uploading %s (%d bytes) in %d chunks", originalName, fileSize, chunkQty)

	if err := c.uploadChunks(ctx, filePath, uploadFileName, fileSize, chunkQty, opts.Cookies, onProgress); err != nil {
		return nil, err
	}

	videoFileID, err := c.mergeChunks(ctx, uploadFileName, chunkQty, opts.Cookies)
	if err != nil {
		return nil, err
	}
	log.Printf("[Uploader] Merge complete, video file ID: %s", videoFileID)

	duration := c.probeDuration(ctx, videoFileID, opts.Cookies)
	thumbID := c.pickThumbnail(ctx, videoFileID, opts.Cookies)

	videoURL, err := c.submitForm(ctx, formParams{
		title:        title,
		description:  opts.Description,
		visibility:   opts.Visibility,
		tags:         opts.Tags,
		videoFileID:  videoFileID,
		thumbID:      thumbID,
		originalName: originalName,
		fileSize:     fileSize,
		fileModified: fileModified,
		timeStart:    timeStart,
		chunkQty:     chunkQty,
		duration:     duration,
		cookies:      opts.Cookies,
	})
	if err != nil {
		return nil, err
	}

	subtitleUploaded := false
	if opts.SubtitlePath != "" && videoURL != "" {
		if _, statErr := os.Stat(opts.SubtitlePath); statErr == nil {
			subtitleUploaded = c.attachCaptions(ctx, videoURL, opts.SubtitlePath, title, opts.Cookies)
		}
	}

	if videoURL == "" {
		videoURL = siteOrigin + "/video/" + videoFileID
	}

	return &pipeline.UploadResult{
		VideoID:          videoFileID,
		VideoURL:         videoURL,
		SubtitleUploaded: subtitleUploaded,
	}, nil
}

// uploadChunks transfers the file in strict index order; the merge step
// requires contiguous, ordered chunks.
func (c *Client) uploadChunks(ctx context.Context, filePath, uploadFileName string, fileSize int64, chunkQty int, cookies string, onProgress func(pipeline.UploadProgress)) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	for i := 0; i < chunkQty; i++ {
		start := int64(i) * c.chunkSize
		end := start + c.chunkSize
		if end > fileSize {
			end = fileSize
		}

		chunkURL := fmt.Sprintf("%s/upload.php?chunk=%d_%s&chunkSz=%d&chunkQty=%d&api=%s",
			c.host, i, uploadFileName, c.chunkSize, chunkQty, apiVersion)

		log.Printf("[Uploader] Uploading chunk %d/%d", i+1, chunkQty)
		reader := io.NewSectionReader(f, start, end-start)
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, chunkURL, reader)
		if err != nil {
			return err
		}
		req.ContentLength = end - start
		c.applyHeaders(req, cookies)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("chunk %d upload failed: %w", i, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("chunk %d upload failed with status %d", i, resp.StatusCode)
		}

		if onProgress != nil {
			onProgress(pipeline.UploadProgress{
				Chunk:       i + 1,
				TotalChunks: chunkQty,
				Percent:     (i + 1) * 100 / chunkQty,
			})
		}
	}
	return nil
}

// mergeChunks asks the platform to assemble the chunks, referencing the
// final chunk index. The response body is the remote file identifier.
func (c *Client) mergeChunks(ctx context.Context, uploadFileName string, chunkQty int, cookies string) (string, error) {
	mergeURL := fmt.Sprintf("%s/upload.php?merge=%d&chunk=%s&chunkSz=%d&chunkQty=%d&api=%s",
		c.host, chunkQty-1, uploadFileName, c.chunkSize, chunkQty, apiVersion)

	body, err := c.do(ctx, http.MethodPost, mergeURL, nil, cookies, "")
	if err != nil {
		return "", fmt.Errorf("merge failed: %w", err)
	}

	videoFileID := strings.TrimSpace(string(body))
	if videoFileID == "" || !strings.Contains(videoFileID, ".mp4") {
		return "", fmt.Errorf("invalid merge response: %s", videoFileID)
	}
	return videoFileID, nil
}

// probeDuration asks the platform for the merged file's media duration.
// Best-effort: zero on any failure.
func (c *Client) probeDuration(ctx context.Context, videoFileID, cookies string) float64 {
	durationURL := fmt.Sprintf("%s/upload.php?duration=%s&api=%s", c.host, videoFileID, apiVersion)
	body, err := c.do(ctx, http.MethodGet, durationURL, nil, cookies, "")
	if err != nil {
		log.Printf("[Uploader] Duration probe failed (non-critical): %v", err)
		return 0
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
	if err != nil {
		return 0
	}
	return duration
}

// pickThumbnail requests thumbnail generation and parses a selector out
// of the loosely structured response. Never fatal.
func (c *Client) pickThumbnail(ctx context.Context, videoFileID, cookies string) string {
	thumbURL := fmt.Sprintf("%s/upload.php?thumbnails=%s&api=%s", c.host, videoFileID, apiVersion)
	body, err := c.do(ctx, http.MethodGet, thumbURL, nil, cookies, "")
	if err != nil {
		log.Printf("[Uploader] Thumbnail fetch failed (non-critical), using default")
		return DefaultThumbSelector
	}
	return ParseThumbSelector(string(body))
}

type formParams struct {
	title        string
	description  string
	visibility   model.Visibility
	tags         string
	videoFileID  string
	thumbID      string
	originalName string
	fileSize     int64
	fileModified int64
	timeStart    int64
	chunkQty     int
	duration     float64
	cookies      string
}

// submitForm registers the video. The field set is the platform's fixed
// external contract, empty strings included.
func (c *Client) submitForm(ctx context.Context, p formParams) (string, error) {
	visibility := p.visibility
	if visibility == "" {
		visibility = model.VisibilityUnlisted
	}

	timeEnd := time.Now().UnixMilli()
	elapsed := float64(timeEnd-p.timeStart) / 1000
	if elapsed <= 0 {
		elapsed = 1
	}
	speed := int64(float64(p.fileSize) / elapsed)

	fileMeta := fmt.Sprintf(`{"name":%q,"modified":%d,"size":%d,"type":"video/mp4","time_start":%d,"speed":%d,"num_chunks":%d,"time_end":%d}`,
		p.originalName, p.fileModified, p.fileSize, p.timeStart, speed, p.chunkQty, timeEnd)

	form := url.Values{}
	form.Set("title", p.title)
	form.Set("description", p.description)
	form.Set("video[]", p.videoFileID)
	form.Set("featured", "0")
	form.Set("rights", "1")
	form.Set("terms", "1")
	form.Set("facebookUpload", "")
	form.Set("vimeoUpload", "")
	form.Set("infoWho", "")
	form.Set("infoWhen", "")
	form.Set("infoWhere", "")
	form.Set("infoExtUser", "")
	form.Set("tags", p.tags)
	form.Set("channelId", "0")
	form.Set("siteChannelId", c.siteChannelID)
	form.Set("mediaChannelId", "0")
	form.Set("isGamblingRelated", "false")
	form.Set("set_default_channel_id", "1")
	form.Set("sendPush", "0")
	form.Set("setFeaturedForUser", "0")
	form.Set("setFeaturedForChannel", "0")
	form.Set("visibility", string(visibility))
	form.Set("availability", "free")
	form.Set("file_meta", fileMeta)
	form.Set("thumb", p.thumbID)

	formURL := fmt.Sprintf("%s/upload.php?form=1&api=%s", c.host, apiVersion)
	body, err := c.do(ctx, http.MethodPost, formURL, strings.NewReader(form.Encode()), p.cookies,
		"application/x-www-form-urlencoded; charset=UTF-8")
	if err != nil {
		return "", fmt.Errorf("publish form failed: %w", err)
	}

	html := string(body)
	videoURL := ExtractPublishURL(html)
	if videoURL != "" {
		log.Printf("[Uploader] Published: %s", videoURL)
		return videoURL, nil
	}

	if strings.Contains(html, "error") || strings.Contains(html, "Error") {
		return "", fmt.Errorf("publish form returned error")
	}
	// No URL but no error marker either; the caller synthesizes one.
	return "", nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, cookies, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req, cookies)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	return respBody, nil
}

func (c *Client) applyHeaders(req *http.Request, cookies string) {
	req.Header.Set("Cookie", cookies)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Origin", siteOrigin)
	req.Header.Set("Referer", siteOrigin+"/")
	req.Header.Set("User-Agent", userAgent)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
