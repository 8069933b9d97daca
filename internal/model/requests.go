package model

// StartRequest starts a single pipeline job.
type StartRequest struct {
	URL             string          `json:"url" validate:"required,url"`
	Cookies         string          `json:"cookies"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Visibility      Visibility      `json:"visibility" validate:"omitempty,oneof=public unlisted private"`
	Tags            string          `json:"tags"`
	LinkKind        LinkKind        `json:"linkType" validate:"omitempty,oneof=auto anime m3u8 direct"`
	TrackPreference TrackPreference `json:"videoType" validate:"omitempty,oneof=sub dub raw"`
}

// StartResponse acknowledges an accepted job.
type StartResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}

// BulkStartRequest starts one job per URL.
type BulkStartRequest struct {
	URLs            []string        `json:"urls" validate:"required,min=1,dive,url"`
	Cookies         string          `json:"cookies"`
	Title           string          `json:"title"`
	LinkKind        LinkKind        `json:"linkType" validate:"omitempty,oneof=auto anime m3u8 direct"`
	TrackPreference TrackPreference `json:"videoType" validate:"omitempty,oneof=sub dub raw"`
}

// BulkStartResponse reports how many jobs were accepted.
type BulkStartResponse struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Results []StartResponse `json:"results"`
}

// BulkEpisodesRequest starts jobs for a range of episodes of one anime.
type BulkEpisodesRequest struct {
	AnimeID         string          `json:"animeId" validate:"required"`
	Cookies         string          `json:"cookies"`
	Title           string          `json:"title"`
	TrackPreference TrackPreference `json:"videoType" validate:"omitempty,oneof=sub dub raw"`
	EpisodeRange    *EpisodeRange   `json:"episodeRange"`
}

// EpisodeRange bounds episode numbers, inclusive on both ends.
type EpisodeRange struct {
	Start int `json:"start" validate:"min=1"`
	End   int `json:"end" validate:"min=1"`
}

// BulkEpisodesResponse reports accepted episode jobs.
type BulkEpisodesResponse struct {
	Success       bool            `json:"success"`
	Count         int             `json:"count"`
	TotalEpisodes int             `json:"totalEpisodes"`
	Results       []StartResponse `json:"results"`
}

// DeleteSelectedRequest removes a set of jobs from the registry.
type DeleteSelectedRequest struct {
	JobIDs []string `json:"jobIds" validate:"required,min=1"`
}

// ClearResponse reports a bulk registry mutation.
type ClearResponse struct {
	Success      bool `json:"success"`
	ClearedCount int  `json:"clearedCount"`
}

// OutcomeResponse is the generic acknowledgment for job mutations.
type OutcomeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginRequest authenticates the single configured user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}
