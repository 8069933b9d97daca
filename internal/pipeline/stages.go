package pipeline

import (
	"context"

	"github.com/anipipe/api/internal/model"
)

// ExtractResult is what the stream locator resolves a watch URL into.
type ExtractResult struct {
	StreamURL      string // media playlist or direct file URL
	Title          string
	EpisodeID      string
	SubtitleTracks []SubtitleTrack
}

// SubtitleTrack is one caption track advertised by the source.
type SubtitleTrack struct {
	URL   string `json:"file"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// StreamLocator resolves a source-specific watch URL into a playable
// stream. Implementations live outside the orchestrator and hold no
// reference to the registry.
type StreamLocator interface {
	Resolve(ctx context.Context, sourceURL string, pref model.TrackPreference) (*ExtractResult, error)
}

// DownloadProgress is reported after each segment batch, and once more
// when conversion begins.
type DownloadProgress struct {
	Downloaded int
	Total      int
	Percent    int
	Converting bool
}

// DownloadResult describes the finished local file.
type DownloadResult struct {
	Path     string
	Size     int64
	Segments int
}

// SegmentFetcher downloads a playlist's segments (or a direct file) into
// destPath and converts them to a playable container.
type SegmentFetcher interface {
	Download(ctx context.Context, playlistURL, destPath string, onProgress func(DownloadProgress)) (*DownloadResult, error)
	DownloadDirect(ctx context.Context, fileURL, destPath string, onProgress func(DownloadProgress)) (*DownloadResult, error)
	FetchSubtitle(ctx context.Context, subtitleURL, destPath string) error
}

// UploadProgress is reported after each chunk transfer completes.
type UploadProgress struct {
	Chunk       int
	TotalChunks int
	Percent     int
}

// UploadOptions carries everything the publish form needs besides the
// file and title.
type UploadOptions struct {
	Cookies      string
	Description  string
	Visibility   model.Visibility
	Tags         string
	SubtitlePath string
}

// UploadResult is the durable outcome of a successful publish.
type UploadResult struct {
	VideoID          string
	VideoURL         string
	SubtitleUploaded bool
}

// Uploader performs the chunked upload protocol against the hosting
// platform and returns the public video URL.
type Uploader interface {
	Upload(ctx context.Context, filePath, title string, opts UploadOptions, onProgress func(UploadProgress)) (*UploadResult, error)
}
