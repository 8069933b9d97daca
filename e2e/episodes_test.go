package e2e

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestEpisodesList(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/episodes/show-123", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := readBody(t, resp)
	if body == "" || body[0] != '[' {
		t.Fatalf("expected JSON array, got %q", body)
	}
}

func TestEpisodesBulk_Range(t *testing.T) {
	ta := setupApp(t)

	body := `{"animeId": "show-123", "episodeRange": {"start": 2, "end": 3}}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/episodes/bulk", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", result["count"])
	}
	if result["totalEpisodes"] != float64(3) {
		t.Errorf("expected totalEpisodes 3, got %v", result["totalEpisodes"])
	}
}

func TestEpisodesBulk_EmptyRange(t *testing.T) {
	ta := setupApp(t)

	body := `{"animeId": "show-123", "episodeRange": {"start": 7, "end": 9}}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/episodes/bulk", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestEpisodesBulk_MissingAnimeID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/episodes/bulk", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestCleanupRemovesStrayFiles(t *testing.T) {
	ta := setupApp(t)

	if err := os.MkdirAll(ta.downloadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stray := filepath.Join(ta.downloadDir, "ep_1_Old_Show.mp4")
	if err := os.WriteFile(stray, []byte("leftover"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/cleanup", "")
	if err != nil {
		t.Fatalf("cleanup request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Errorf("expected success true, got %v", result["success"])
	}
	if result["removedCount"] != float64(1) {
		t.Errorf("expected removedCount 1, got %v", result["removedCount"])
	}

	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Error("expected stray file to be removed")
	}
}
