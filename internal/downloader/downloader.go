package downloader

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/pipeline"
)

// PageSniffer resolves a player page URL into the playlist URL it loads.
// The headless-browser extractor implements this.
type PageSniffer interface {
	SniffPlaylist(ctx context.Context, pageURL string) (string, error)
}

// Downloader fetches HLS streams segment by segment and converts them to
// MP4. It implements pipeline.SegmentFetcher.
type Downloader struct {
	httpClient  *http.Client
	maxParallel int
	minFileSize int64
	headers     map[string]string
	sniffer     PageSniffer
	convert     ConvertFunc
}

// Headers sent on every CDN request. The segment hosts reject requests
// without a plausible player origin.
func defaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://rapid-cloud.co/",
		"Origin":          "https://rapid-cloud.co",
	}
}

func New(cfg *config.DownloadConfig, sniffer PageSniffer) *Downloader {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 20
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	minFileSize := cfg.MinFileSize
	if minFileSize <= 0 {
		minFileSize = 1000
	}
	return &Downloader{
		httpClient:  &http.Client{Timeout: timeout},
		maxParallel: maxParallel,
		minFileSize: minFileSize,
		headers:     defaultHeaders(),
		sniffer:     sniffer,
		convert:     FFmpegConvert,
	}
}

// SetConvert overrides the container conversion step.
func (d *Downloader) SetConvert(fn ConvertFunc) {
	d.convert = fn
}

// Download fetches every segment of playlistURL into destPath. Failed
// segments are skipped; only zero successful segments is fatal. The
// scratch directory is removed on every exit path.
func (d *Downloader) Download(ctx context.Context, playlistURL, destPath string, onProgress func(pipeline.DownloadProgress)) (result *pipeline.DownloadResult, err error) {
	tempDir := filepath.Join(filepath.Dir(destPath), fmt.Sprintf("dl_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	log.Printf("[Downloader] Starting download: %s", playlistURL)

	// A player page instead of a playlist: hand it to the sniffer.
	if !isPlaylistURL(playlistURL) {
		if d.sniffer == nil {
			return nil, fmt.Errorf("not a playlist URL and no page sniffer configured")
		}
		sniffed, err := d.sniffer.SniffPlaylist(ctx, playlistURL)
		if err != nil {
			return nil, fmt.Errorf("failed to extract playlist from page: %w", err)
		}
		log.Printf("[Downloader] Sniffed playlist URL: %s", sniffed)
		playlistURL = sniffed
	}

	content, baseURL, err := d.fetchPlaylist(ctx, playlistURL)
	if err != nil {
		return nil, err
	}

	segments := ParseSegments(content, baseURL)
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments found in playlist")
	}
	log.Printf("[Downloader] Found %d segments", len(segments))

	segmentFiles, err := d.downloadSegments(ctx, segments, tempDir, onProgress)
	if err != nil {
		return nil, err
	}

	combined := filepath.Join(tempDir, "combined.ts")
	if err := concatenate(segmentFiles, combined); err != nil {
		return nil, fmt.Errorf("failed to merge segments: %w", err)
	}

	if onProgress != nil {
		onProgress(pipeline.DownloadProgress{Converting: true, Percent: 100,
			Downloaded: len(segmentFiles), Total: len(segments)})
	}
	if err := d.convert(ctx, combined, destPath, d.minFileSize); err != nil {
		return nil, err
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("converted file missing: %w", err)
	}

	return &pipeline.DownloadResult{
		Path:     destPath,
		Size:     info.Size(),
		Segments: len(segments),
	}, nil
}

// DownloadDirect fetches a single remote file straight to destPath.
func (d *Downloader) DownloadDirect(ctx context.Context, fileURL, destPath string, onProgress func(pipeline.DownloadProgress)) (*pipeline.DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	d.applyHeaders(req)

	// No fixed timeout: large files take as long as they take.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 256*1024)
	lastPercent := -1
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return nil, writeErr
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				percent := int(written * 100 / total)
				if percent != lastPercent {
					lastPercent = percent
					onProgress(pipeline.DownloadProgress{Percent: percent})
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("download interrupted: %w", readErr)
		}
	}

	return &pipeline.DownloadResult{Path: destPath, Size: written, Segments: 1}, nil
}

// FetchSubtitle downloads a caption file to destPath.
func (d *Downloader) FetchSubtitle(ctx context.Context, subtitleURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subtitleURL, nil)
	if err != nil {
		return err
	}
	d.applyHeaders(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subtitle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subtitle fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

// fetchPlaylist retrieves the playlist body, following a master playlist
// to its highest-bandwidth variant.
func (d *Downloader) fetchPlaylist(ctx context.Context, playlistURL string) (content, baseURL string, err error) {
	content, err = d.fetchText(ctx, playlistURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch playlist: %w", err)
	}
	if !IsPlaylist(content) {
		return "", "", fmt.Errorf("invalid playlist: response does not contain %s", playlistMarker)
	}
	baseURL = BaseURL(playlistURL)

	if IsMasterPlaylist(content) {
		variantURL := BestVariant(content, baseURL)
		if variantURL != "" {
			variant, err := d.fetchText(ctx, variantURL)
			if err != nil {
				return "", "", fmt.Errorf("failed to fetch variant playlist: %w", err)
			}
			content = variant
			baseURL = BaseURL(variantURL)
		}
	}
	return content, baseURL, nil
}

// downloadSegments fetches segments in fixed-size parallel batches,
// dispatching in list order. Within a batch completion order is
// unconstrained; the batch is awaited before the next one starts.
func (d *Downloader) downloadSegments(ctx context.Context, segments []string, tempDir string, onProgress func(pipeline.DownloadProgress)) ([]string, error) {
	total := len(segments)
	files := make([]string, total)

	for start := 0; start < total; start += d.maxParallel {
		end := start + d.maxParallel
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int, segURL string) {
				defer wg.Done()
				segPath := filepath.Join(tempDir, fmt.Sprintf("seg_%06d.ts", idx))
				if err := d.fetchSegment(ctx, segURL, segPath); err != nil {
					log.Printf("[Downloader] Failed segment %d: %v", idx, err)
					return
				}
				files[idx] = segPath
			}(i, segments[i])
		}
		wg.Wait()

		if onProgress != nil {
			downloaded := end
			onProgress(pipeline.DownloadProgress{
				Downloaded: downloaded,
				Total:      total,
				Percent:    downloaded * 100 / total,
			})
		}
	}

	var ok []string
	for _, f := range files {
		if f != "" {
			ok = append(ok, f)
		}
	}
	if len(ok) == 0 {
		return nil, fmt.Errorf("all %d segments failed to download", total)
	}
	log.Printf("[Downloader] Downloaded %d/%d segments", len(ok), total)
	return ok, nil
}

func (d *Downloader) fetchSegment(ctx context.Context, segURL, segPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL, nil)
	if err != nil {
		return err
	}
	d.applyHeaders(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	out, err := os.Create(segPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func (d *Downloader) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	d.applyHeaders(req)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (d *Downloader) applyHeaders(req *http.Request) {
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}
}

// concatenate appends segment files in order into outputPath, deleting
// each one as soon as it has been merged to bound scratch disk usage.
func concatenate(segmentFiles []string, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for _, f := range segmentFiles {
		in, err := os.Open(f)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
		os.Remove(f)
	}
	return nil
}

func isPlaylistURL(rawURL string) bool {
	return strings.Contains(rawURL, ".m3u8")
}
