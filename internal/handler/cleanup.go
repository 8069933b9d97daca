package handler

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/pkg/response"
)

// CleanupHandler wipes the working directories of leftover media files.
type CleanupHandler struct {
	cfg *config.DownloadConfig
}

func NewCleanupHandler(cfg *config.DownloadConfig) *CleanupHandler {
	return &CleanupHandler{cfg: cfg}
}

type cleanupResponse struct {
	Success      bool `json:"success"`
	RemovedCount int  `json:"removedCount"`
}

// Cleanup handles POST /api/cleanup. Files belonging to a job that is
// still downloading will be re-created by that job; callers are expected
// to clean up between batches, not during one.
func (h *CleanupHandler) Cleanup(c *fiber.Ctx) error {
	removed := 0
	for _, dir := range []string{h.cfg.TempDir, h.cfg.DownloadDir} {
		if dir == "" {
			continue
		}
		removed += wipeDir(dir)
	}

	log.Printf("[Cleanup] Removed %d entries", removed)
	return response.OK(c, cleanupResponse{Success: true, RemovedCount: removed})
}

func wipeDir(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("[Cleanup] Failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
