package model

// Job status
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is one of the three end states.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError || s == JobStatusCancelled
}

// Pipeline step
type JobStep string

const (
	StepInit     JobStep = "init"
	StepExtract  JobStep = "extract"
	StepDownload JobStep = "download"
	StepSubtitle JobStep = "subtitle"
	StepUpload   JobStep = "upload"
	StepComplete JobStep = "complete"
)

// Link kind classifies what the source URL points at. Auto lets the
// orchestrator decide from the URL shape.
type LinkKind string

const (
	LinkKindAuto   LinkKind = "auto"
	LinkKindAnime  LinkKind = "anime"
	LinkKindM3U8   LinkKind = "m3u8"
	LinkKindDirect LinkKind = "direct"
)

var ValidLinkKinds = []LinkKind{
	LinkKindAuto, LinkKindAnime, LinkKindM3U8, LinkKindDirect,
}

func (k LinkKind) Valid() bool {
	for _, v := range ValidLinkKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Audio/subtitle track preference passed to the stream locator.
type TrackPreference string

const (
	TrackSub TrackPreference = "sub"
	TrackDub TrackPreference = "dub"
	TrackRaw TrackPreference = "raw"
)

var ValidTrackPreferences = []TrackPreference{TrackSub, TrackDub, TrackRaw}

func (p TrackPreference) Valid() bool {
	for _, v := range ValidTrackPreferences {
		if v == p {
			return true
		}
	}
	return false
}

// Upload visibility values accepted by the hosting platform.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)
