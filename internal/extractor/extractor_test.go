package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/model"
)

func TestParseEpisodeID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://9animetv.to/watch/one-piece-100?ep=2142", "2142"},
		{"https://9animetv.to/watch/one-piece-100?foo=1&ep=7", "7"},
		{"https://9animetv.to/watch/one-piece-100", ""},
		{"https://9animetv.to/watch/one-piece-100?ep=abc", ""},
	}
	for _, tt := range tests {
		if got := ParseEpisodeID(tt.url); got != tt.want {
			t.Errorf("ParseEpisodeID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestParseAnimeSlug(t *testing.T) {
	if got := ParseAnimeSlug("https://9animetv.to/watch/one-piece-100?ep=2142"); got != "one-piece-100" {
		t.Errorf("got %q", got)
	}
	if got := ParseAnimeSlug("https://9animetv.to/home"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestTitleFromSlug(t *testing.T) {
	tests := []struct {
		slug string
		want string
	}{
		{"one-piece-100", "One Piece"},
		{"naruto", "Naruto"},
		{"86-eighty-six-2nd-season-17212", "86 Eighty Six 2nd Season"},
	}
	for _, tt := range tests {
		if got := TitleFromSlug(tt.slug); got != tt.want {
			t.Errorf("TitleFromSlug(%q) = %q, want %q", tt.slug, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{
			"results": {
				"streamingLink": {
					"iframe": "https://player.example.com/embed?id=xyz",
					"link": {"file": "https://cdn.example.com/master.m3u8"},
					"tracks": [
						{"file": "https://cdn.example.com/en.vtt", "label": "English", "kind": "captions"}
					]
				}
			}
		}`)
	}))
	defer srv.Close()

	e := New(&config.ExtractorConfig{APIBase: srv.URL, Timeout: 5})
	result, err := e.Resolve(context.Background(), "https://9animetv.to/watch/one-piece-100?ep=2142", model.TrackSub)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if gotPath != "/stream" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "id=one-piece-100?ep=2142&server=hd-1&type=sub" {
		t.Errorf("query = %q", gotQuery)
	}

	if result.StreamURL != "https://cdn.example.com/master.m3u8" {
		t.Errorf("stream URL = %q", result.StreamURL)
	}
	if result.Title != "One Piece" {
		t.Errorf("title = %q", result.Title)
	}
	if result.EpisodeID != "2142" {
		t.Errorf("episode = %q", result.EpisodeID)
	}
	if len(result.SubtitleTracks) != 1 || result.SubtitleTracks[0].Label != "English" {
		t.Errorf("tracks = %+v", result.SubtitleTracks)
	}
}

func TestResolveFallsBackToIframe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":{"streamingLink":{"iframe":"https://player.example.com/embed?id=xyz","link":{"file":""}}}}`)
	}))
	defer srv.Close()

	e := New(&config.ExtractorConfig{APIBase: srv.URL, Timeout: 5})
	result, err := e.Resolve(context.Background(), "https://9animetv.to/watch/one-piece-100?ep=2142", model.TrackSub)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.StreamURL != "https://player.example.com/embed?id=xyz" {
		t.Errorf("stream URL = %q", result.StreamURL)
	}
}

func TestResolveNoStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":{"streamingLink":{}}}`)
	}))
	defer srv.Close()

	e := New(&config.ExtractorConfig{APIBase: srv.URL, Timeout: 5})
	if _, err := e.Resolve(context.Background(), "https://9animetv.to/watch/one-piece-100?ep=2142", model.TrackSub); err == nil {
		t.Fatal("expected error when the API returns no stream")
	}
}

func TestResolveRejectsNonWatchURL(t *testing.T) {
	e := New(&config.ExtractorConfig{APIBase: "http://unused", Timeout: 5})
	if _, err := e.Resolve(context.Background(), "https://example.com/something", model.TrackSub); err == nil {
		t.Fatal("expected error for URL without a watch slug")
	}
}
