package model

import "time"

// Job represents one end-to-end pipeline run: resolve a source URL,
// download the episode, and publish it to the hosting platform.
type Job struct {
	ID              string          `json:"id"`
	URL             string          `json:"url"`
	Title           string          `json:"title,omitempty"`
	LinkKind        LinkKind        `json:"linkType"`
	TrackPreference TrackPreference `json:"videoType"`
	Status          JobStatus       `json:"status"`
	Step            JobStep         `json:"step"`
	Message         string          `json:"message,omitempty"`
	Error           string          `json:"error,omitempty"`
	Progress        Progress        `json:"progress"`
	VideoURL        string          `json:"videoUrl,omitempty"`
	VideoID         string          `json:"videoId,omitempty"`
	Completed       bool            `json:"completed"`
	Paused          bool            `json:"paused"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Progress carries the per-stage counters the UI renders. Percent resets
// to 0 when a new stage begins and never decreases within a stage.
type Progress struct {
	Percent       int    `json:"percent"`
	Downloaded    int    `json:"downloaded,omitempty"`
	Total         int    `json:"total,omitempty"`
	Chunk         int    `json:"chunk,omitempty"`
	TotalChunks   int    `json:"totalChunks,omitempty"`
	Size          int64  `json:"size,omitempty"`
	SizeFormatted string `json:"sizeFormatted,omitempty"`
}
