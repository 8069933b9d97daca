package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anipipe/api/internal/model"
)

var (
	// ErrMissingURL rejects a start request synchronously, before any
	// job record exists.
	ErrMissingURL = errors.New("missing url")

	// ErrInvalidOption rejects a start request carrying an unknown link
	// type or track preference.
	ErrInvalidOption = errors.New("invalid option")

	// ErrJobNotFound is returned for status queries on unknown IDs.
	ErrJobNotFound = errors.New("job not found")
)

// Config holds the orchestrator's filesystem layout and thresholds.
type Config struct {
	TempDir     string
	DownloadDir string
	// MinFileSize is the smallest byte count a media file can have and
	// still be considered playable; used by the idempotent-skip check.
	MinFileSize int64
}

// Orchestrator owns the job registry and drives each job through
// extract, download, subtitle and upload. It is the sole mutator of job
// records; stage executors only return result values.
type Orchestrator struct {
	registry *Registry
	locator  StreamLocator
	fetcher  SegmentFetcher
	uploader Uploader
	cfg      Config

	mu       sync.Mutex
	controls map[string]*jobControl
}

func NewOrchestrator(registry *Registry, locator StreamLocator, fetcher SegmentFetcher, uploader Uploader, cfg Config) *Orchestrator {
	if cfg.MinFileSize <= 0 {
		cfg.MinFileSize = 1000
	}
	return &Orchestrator{
		registry: registry,
		locator:  locator,
		fetcher:  fetcher,
		uploader: uploader,
		cfg:      cfg,
		controls: make(map[string]*jobControl),
	}
}

// Start validates the request, allocates a job and launches the stage
// sequence in the background. It returns the job ID immediately and
// never waits on stage completion.
func (o *Orchestrator) Start(req *model.StartRequest) (string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", ErrMissingURL
	}

	kind := req.LinkKind
	if kind == "" {
		kind = model.LinkKindAuto
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: link type %q", ErrInvalidOption, kind)
	}
	pref := req.TrackPreference
	if pref == "" {
		pref = model.TrackSub
	}
	if !pref.Valid() {
		return "", fmt.Errorf("%w: track preference %q", ErrInvalidOption, pref)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = model.VisibilityUnlisted
	}

	jobID := uuid.New().String()
	job := &model.Job{
		ID:              jobID,
		URL:             req.URL,
		Title:           req.Title,
		LinkKind:        kind,
		TrackPreference: pref,
		Status:          model.JobStatusRunning,
		Step:            model.StepExtract,
		Message:         "Initializing...",
		CreatedAt:       time.Now(),
	}
	o.registry.Add(job)

	ctrl := newJobControl()
	o.mu.Lock()
	o.controls[jobID] = ctrl
	o.mu.Unlock()

	run := *req
	run.LinkKind = kind
	run.TrackPreference = pref
	run.Visibility = visibility
	go o.runJob(jobID, &run, ctrl)

	return jobID, nil
}

// GetStatus returns a snapshot of one job.
func (o *Orchestrator) GetStatus(jobID string) (model.Job, error) {
	job, ok := o.registry.Get(jobID)
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return job, nil
}

// GetAll returns snapshots of every job, oldest first.
func (o *Orchestrator) GetAll() []model.Job {
	return o.registry.All()
}

// Cancel marks a job cancelled. In-flight network calls are not aborted;
// the background task stops at its next checkpoint.
func (o *Orchestrator) Cancel(jobID string) error {
	job, ok := o.registry.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil
	}

	o.registry.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusCancelled
		j.Completed = true
		j.Paused = false
		j.Error = "Cancelled by user"
	})
	if ctrl := o.control(jobID); ctrl != nil {
		ctrl.Cancel()
	}
	return nil
}

// Pause moves a running job to paused. The background task blocks at its
// next checkpoint until resumed or cancelled. No-op in any other state.
func (o *Orchestrator) Pause(jobID string) error {
	job, ok := o.registry.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != model.JobStatusRunning {
		return nil
	}
	o.registry.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusPaused
		j.Paused = true
	})
	if ctrl := o.control(jobID); ctrl != nil {
		ctrl.Pause()
	}
	return nil
}

// Resume moves a paused job back to running. No-op in any other state.
func (o *Orchestrator) Resume(jobID string) error {
	job, ok := o.registry.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != model.JobStatusPaused {
		return nil
	}
	o.registry.Update(jobID, func(j *model.Job) {
		j.Status = model.JobStatusRunning
		j.Paused = false
	})
	if ctrl := o.control(jobID); ctrl != nil {
		ctrl.Resume()
	}
	return nil
}

// ClearFailed removes every errored job and returns the count.
func (o *Orchestrator) ClearFailed() int {
	return o.clearWhere(func(j *model.Job) bool {
		return j.Status == model.JobStatusError
	})
}

// ClearCompleted removes every successfully completed job.
func (o *Orchestrator) ClearCompleted() int {
	return o.clearWhere(func(j *model.Job) bool {
		return j.Status == model.JobStatusCompleted
	})
}

// DeleteSelected removes the given jobs, cancelling any that still run.
func (o *Orchestrator) DeleteSelected(jobIDs []string) int {
	deleted := 0
	for _, id := range jobIDs {
		if err := o.DeleteJob(id); err == nil {
			deleted++
		}
	}
	return deleted
}

// DeleteJob removes one job from the registry. A job that is still
// running or paused is cancelled first; network I/O already in flight is
// not interrupted.
func (o *Orchestrator) DeleteJob(jobID string) error {
	job, ok := o.registry.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}
	if !job.Status.Terminal() {
		_ = o.Cancel(jobID)
	}
	o.registry.Delete(jobID)
	o.dropControl(jobID)
	return nil
}

func (o *Orchestrator) clearWhere(pred func(*model.Job) bool) int {
	removed := o.registry.DeleteWhere(pred)
	for _, id := range removed {
		o.dropControl(id)
	}
	return len(removed)
}

func (o *Orchestrator) control(jobID string) *jobControl {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.controls[jobID]
}

func (o *Orchestrator) dropControl(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.controls, jobID)
}

// runJob is the background stage sequence. Every failure path lands the
// job in a terminal state; nothing propagates out of this goroutine.
func (o *Orchestrator) runJob(jobID string, req *model.StartRequest, ctrl *jobControl) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Pipeline] Job %s panicked: %v", jobID, r)
			o.failJob(jobID, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	ctx := context.Background()

	if err := os.MkdirAll(o.cfg.TempDir, 0o755); err != nil {
		o.failJob(jobID, fmt.Sprintf("failed to create temp dir: %v", err))
		return
	}
	if err := os.MkdirAll(o.cfg.DownloadDir, 0o755); err != nil {
		o.failJob(jobID, fmt.Sprintf("failed to create download dir: %v", err))
		return
	}

	// Checkpoint before extraction.
	if err := ctrl.Checkpoint(); err != nil {
		return
	}

	o.registry.Update(jobID, func(j *model.Job) {
		j.Step = model.StepExtract
		j.Message = "Extracting video info..."
	})

	extract, err := o.extract(ctx, req)
	if err != nil {
		o.failJob(jobID, fmt.Sprintf("Extraction failed: %v", err))
		return
	}

	title := req.Title
	if title == "" {
		title = DeriveTitle(extract.Title, extract.EpisodeID)
	}
	outputFile := filepath.Join(o.cfg.DownloadDir, OutputFilename(extract.EpisodeID, title))

	log.Printf("[Pipeline] Job %s: episode=%s title=%q", jobID, extract.EpisodeID, title)

	// Checkpoint before download.
	if err := ctrl.Checkpoint(); err != nil {
		return
	}

	if info, statErr := os.Stat(outputFile); statErr == nil && info.Size() > o.cfg.MinFileSize {
		// Already downloaded: skip straight to upload-ready state.
		log.Printf("[Pipeline] Job %s: file already exists: %s", jobID, outputFile)
		o.registry.Update(jobID, func(j *model.Job) {
			j.Step = model.StepDownload
			j.Title = title
			j.Message = "File already downloaded, skipping to upload..."
			j.Progress = model.Progress{
				Percent:       100,
				Size:          info.Size(),
				SizeFormatted: FormatBytes(info.Size()),
			}
		})
	} else {
		o.registry.Update(jobID, func(j *model.Job) {
			j.Step = model.StepDownload
			j.Title = title
			j.Message = "Starting download..."
			j.Progress = model.Progress{}
		})

		if err := o.download(ctx, jobID, req.LinkKind, extract.StreamURL, outputFile); err != nil {
			o.failJob(jobID, fmt.Sprintf("Download failed: %v", err))
			return
		}
	}

	subtitlePath := o.fetchSubtitle(ctx, jobID, extract, outputFile)

	// Checkpoint before upload.
	if err := ctrl.Checkpoint(); err != nil {
		return
	}

	o.registry.Update(jobID, func(j *model.Job) {
		j.Step = model.StepUpload
		j.Message = "Uploading video..."
		j.Progress = model.Progress{}
	})

	result, err := o.uploader.Upload(ctx, outputFile, title, UploadOptions{
		Cookies:      req.Cookies,
		Description:  req.Description,
		Visibility:   req.Visibility,
		Tags:         req.Tags,
		SubtitlePath: subtitlePath,
	}, func(p UploadProgress) {
		o.registry.Update(jobID, func(j *model.Job) {
			j.Message = fmt.Sprintf("Uploading: %d%%", p.Percent)
			j.Progress.Chunk = p.Chunk
			j.Progress.TotalChunks = p.TotalChunks
			j.Progress.Percent = p.Percent
		})
	})
	if err != nil {
		// Keep the file so a retried job can skip the download stage.
		log.Printf("[Pipeline] Job %s: upload failed, keeping file: %s", jobID, outputFile)
		o.failJob(jobID, fmt.Sprintf("Upload failed: %v", err))
		return
	}

	log.Printf("[Pipeline] Job %s: upload success, deleting file: %s", jobID, outputFile)
	if err := os.Remove(outputFile); err != nil && !os.IsNotExist(err) {
		log.Printf("[Pipeline] Job %s: failed to delete %s: %v", jobID, outputFile, err)
	}
	if subtitlePath != "" {
		if err := os.Remove(subtitlePath); err != nil && !os.IsNotExist(err) {
			log.Printf("[Pipeline] Job %s: failed to delete %s: %v", jobID, subtitlePath, err)
		}
	}

	o.registry.Update(jobID, func(j *model.Job) {
		j.Step = model.StepComplete
		j.Status = model.JobStatusCompleted
		j.Completed = true
		j.Message = "Upload complete"
		j.VideoID = result.VideoID
		j.VideoURL = result.VideoURL
	})
}

// extract classifies the source URL and resolves it into a stream.
// Playlist and direct-file URLs bypass the locator entirely.
func (o *Orchestrator) extract(ctx context.Context, req *model.StartRequest) (*ExtractResult, error) {
	switch ClassifyLink(req.URL, req.LinkKind) {
	case model.LinkKindM3U8:
		return &ExtractResult{
			StreamURL: req.URL,
			Title:     "Direct M3U8",
			EpisodeID: fmt.Sprintf("direct_%d", time.Now().Unix()),
		}, nil
	case model.LinkKindDirect:
		return &ExtractResult{
			StreamURL: req.URL,
			Title:     directTitle(req.URL),
			EpisodeID: fmt.Sprintf("direct_%d", time.Now().Unix()),
		}, nil
	default:
		return o.locator.Resolve(ctx, req.URL, req.TrackPreference)
	}
}

// download fetches the stream into a job-private temp file and renames
// it into the downloads directory only after the fetch fully succeeds,
// so a crash never leaves a corrupt file at the canonical path.
func (o *Orchestrator) download(ctx context.Context, jobID string, kind model.LinkKind, streamURL, outputFile string) error {
	tempFile := filepath.Join(o.cfg.TempDir, fmt.Sprintf("video_%s.mp4", jobID))

	onProgress := func(p DownloadProgress) {
		o.registry.Update(jobID, func(j *model.Job) {
			if p.Converting {
				j.Message = "Converting to MP4..."
				return
			}
			j.Message = fmt.Sprintf("Downloading: %d%%", p.Percent)
			j.Progress.Downloaded = p.Downloaded
			j.Progress.Total = p.Total
			j.Progress.Percent = p.Percent
		})
	}

	var result *DownloadResult
	var err error
	if ClassifyLink(streamURL, kind) == model.LinkKindDirect {
		result, err = o.fetcher.DownloadDirect(ctx, streamURL, tempFile, onProgress)
	} else {
		result, err = o.fetcher.Download(ctx, streamURL, tempFile, onProgress)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(result.Path, outputFile); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	o.registry.Update(jobID, func(j *model.Job) {
		j.Message = "Download complete, ready for upload..."
		j.Progress = model.Progress{
			Percent:       100,
			Size:          result.Size,
			SizeFormatted: FormatBytes(result.Size),
		}
	})
	return nil
}

// fetchSubtitle downloads the English caption track next to the media
// file. Best-effort: any failure logs and the job proceeds without it.
func (o *Orchestrator) fetchSubtitle(ctx context.Context, jobID string, extract *ExtractResult, outputFile string) string {
	track := pickEnglishTrack(extract.SubtitleTracks)
	if track == nil {
		return ""
	}

	o.registry.Update(jobID, func(j *model.Job) {
		j.Step = model.StepSubtitle
		j.Message = "Fetching subtitle..."
		j.Progress = model.Progress{}
	})

	subtitlePath := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".vtt"
	if err := o.fetcher.FetchSubtitle(ctx, track.URL, subtitlePath); err != nil {
		log.Printf("[Pipeline] Job %s: subtitle fetch failed: %v", jobID, err)
		o.registry.Update(jobID, func(j *model.Job) {
			j.Message = "Subtitle unavailable, continuing without subtitle"
		})
		return ""
	}
	return subtitlePath
}

func (o *Orchestrator) failJob(jobID, message string) {
	o.registry.Update(jobID, func(j *model.Job) {
		// Cancellation observed mid-stage wins over the stage error.
		if j.Status.Terminal() {
			return
		}
		j.Status = model.JobStatusError
		j.Error = message
		j.Completed = true
		j.Paused = false
	})
}

func pickEnglishTrack(tracks []SubtitleTrack) *SubtitleTrack {
	for i, t := range tracks {
		label := strings.ToLower(t.Label)
		if strings.Contains(label, "english") || label == "en" {
			return &tracks[i]
		}
	}
	return nil
}

func directTitle(rawURL string) string {
	base := filepath.Base(rawURL)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "Direct Download"
	}
	return base
}
