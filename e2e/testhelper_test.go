package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/anipipe/api/internal/auth"
	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/episodes"
	"github.com/anipipe/api/internal/handler"
	"github.com/anipipe/api/internal/middleware"
	"github.com/anipipe/api/internal/model"
	"github.com/anipipe/api/internal/pipeline"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUsername  = "admin"
	testPassword  = "correct-horse"
)

// Stage fakes: the pipeline runs instantly and always succeeds, so
// handler tests never touch the network.

type stubLocator struct{}

func (stubLocator) Resolve(ctx context.Context, sourceURL string, pref model.TrackPreference) (*pipeline.ExtractResult, error) {
	return &pipeline.ExtractResult{
		StreamURL: "https://cdn.example.com/master.m3u8",
		Title:     "Show",
		EpisodeID: "1",
	}, nil
}

type stubFetcher struct{}

func (stubFetcher) Download(ctx context.Context, playlistURL, destPath string, onProgress func(pipeline.DownloadProgress)) (*pipeline.DownloadResult, error) {
	if err := os.WriteFile(destPath, make([]byte, 2000), 0o644); err != nil {
		return nil, err
	}
	return &pipeline.DownloadResult{Path: destPath, Size: 2000, Segments: 1}, nil
}

func (f stubFetcher) DownloadDirect(ctx context.Context, fileURL, destPath string, onProgress func(pipeline.DownloadProgress)) (*pipeline.DownloadResult, error) {
	return f.Download(ctx, fileURL, destPath, onProgress)
}

func (stubFetcher) FetchSubtitle(ctx context.Context, subtitleURL, destPath string) error {
	return os.WriteFile(destPath, []byte("WEBVTT\n"), 0o644)
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, filePath, title string, opts pipeline.UploadOptions, onProgress func(pipeline.UploadProgress)) (*pipeline.UploadResult, error) {
	return &pipeline.UploadResult{
		VideoID:  "1700000000-123456.mp4",
		VideoURL: "https://rumble.com/vtest1-show.html",
	}, nil
}

type testApp struct {
	app          *fiber.App
	orchestrator *pipeline.Orchestrator
	downloadDir  string
}

// setupApp builds the app the way main.go does, with fake pipeline
// stages and a local metadata API server.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Local metadata API for episode listings.
	metaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/episodes/") {
			fmt.Fprint(w, `{
				"results": {
					"totalEpisodes": 3,
					"episodes": [
						{"id": "show-123?ep=1", "episode_no": 1, "title": "First"},
						{"id": "show-123?ep=2", "episode_no": 2, "title": "Second"},
						{"id": "show-123?ep=3", "episode_no": 3, "title": "Third"}
					]
				}
			}`)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(metaSrv.Close)

	dir := t.TempDir()
	downloadCfg := &config.DownloadConfig{
		TempDir:     dir + "/temp",
		DownloadDir: dir + "/downloaded",
		MinFileSize: 1000,
	}

	validate := validator.New()

	registry := pipeline.NewRegistry()
	orchestrator := pipeline.NewOrchestrator(registry, stubLocator{}, stubFetcher{}, stubUploader{}, pipeline.Config{
		TempDir:     downloadCfg.TempDir,
		DownloadDir: downloadCfg.DownloadDir,
		MinFileSize: downloadCfg.MinFileSize,
	})

	episodesClient := episodes.NewClient(&config.ExtractorConfig{APIBase: metaSrv.URL, Timeout: 5})

	authCfg := &config.AuthConfig{
		Username:      testUsername,
		Password:      testPassword,
		JWTSecret:     testJWTSecret,
		JWTExpiration: 1,
	}

	authHandler := handler.NewAuthHandler(authCfg, validate)
	pipelineHandler := handler.NewPipelineHandler(orchestrator, validate)
	episodesHandler := handler.NewEpisodesHandler(episodesClient, orchestrator, validate)
	cleanupHandler := handler.NewCleanupHandler(downloadCfg)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(nil) // nil redis disables limiting

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "jobs": len(orchestrator.GetAll())})
	})

	app.Post("/api/auth/login", authHandler.Login)

	api := app.Group("/api", authMiddleware.Authenticate())
	api.Post("/pipeline", rateLimiter.StartLimit(10000), pipelineHandler.Start)
	api.Post("/start-download", rateLimiter.StartLimit(10000), pipelineHandler.Start)
	api.Post("/bulk", rateLimiter.BulkLimit(10000), pipelineHandler.Bulk)
	api.Get("/pipelines", pipelineHandler.List)
	api.Get("/job/:jobId", pipelineHandler.Status)
	api.Get("/status/:jobId", pipelineHandler.Status)
	api.Post("/cancel/:jobId", pipelineHandler.Cancel)
	api.Post("/pause/:jobId", pipelineHandler.Pause)
	api.Post("/resume/:jobId", pipelineHandler.Resume)
	api.Delete("/job/:jobId", pipelineHandler.Delete)
	api.Post("/clear-failed", pipelineHandler.ClearFailed)
	api.Post("/clear-completed", pipelineHandler.ClearCompleted)
	api.Post("/delete-selected", pipelineHandler.DeleteSelected)
	api.Get("/episodes/:animeId", episodesHandler.List)
	api.Post("/episodes/bulk", rateLimiter.BulkLimit(10000), episodesHandler.Bulk)
	api.Post("/cleanup", cleanupHandler.Cleanup)

	return &testApp{app: app, orchestrator: orchestrator, downloadDir: downloadCfg.DownloadDir}
}

// waitJobTerminal polls the orchestrator until the job finishes.
func waitJobTerminal(t *testing.T, ta *testApp, jobID string) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := ta.orchestrator.GetStatus(jobID)
		if err != nil {
			t.Fatalf("job disappeared: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return model.Job{}
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testUsername, testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
