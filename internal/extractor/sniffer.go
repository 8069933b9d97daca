package extractor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/anipipe/api/internal/config"
)

// Sniffer opens a player page in a headless browser and captures the
// HLS playlist URL the player requests. It implements the downloader's
// PageSniffer interface.
type Sniffer struct {
	browserPath string
	sniffWait   time.Duration
}

func NewSniffer(cfg *config.ExtractorConfig) *Sniffer {
	wait := cfg.SniffWait
	if wait <= 0 {
		wait = 5
	}
	return &Sniffer{
		browserPath: cfg.BrowserPath,
		sniffWait:   time.Duration(wait) * time.Second,
	}
}

// SniffPlaylist loads pageURL and watches network traffic until a
// playlist request appears, or sniffWait elapses after navigation.
func (s *Sniffer) SniffPlaylist(ctx context.Context, pageURL string) (string, error) {
	l := launcher.New().Headless(true).NoSandbox(true)
	if s.browserPath != "" {
		l = l.Bin(s.browserPath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("cannot launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("cannot connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("cannot open page: %w", err)
	}
	sniffCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	page = page.Context(sniffCtx)

	var mu sync.Mutex
	var candidates []string
	wait := page.EachEvent(func(e *proto.NetworkRequestWillBeSent) {
		u := e.Request.URL
		if !isPlaylistRequest(u) {
			return
		}
		mu.Lock()
		candidates = append(candidates, u)
		mu.Unlock()
	})
	go wait()

	target := pageURL
	if !strings.Contains(target, "_debug=") {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "_debug=ok"
	}

	log.Printf("[Extractor] Sniffing player page %s", target)
	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	// Let the player boot and issue its requests.
	select {
	case <-time.After(s.sniffWait):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	if len(candidates) == 0 {
		return "", fmt.Errorf("no playlist request observed on %s", pageURL)
	}
	for _, u := range candidates {
		if strings.Contains(u, "master") {
			return u, nil
		}
	}
	return candidates[0], nil
}

// isPlaylistRequest filters player traffic down to real media playlists,
// ignoring the preview strip the player fetches alongside them.
func isPlaylistRequest(u string) bool {
	if !strings.Contains(u, ".m3u8") {
		return false
	}
	lower := strings.ToLower(u)
	for _, skip := range []string{"thumbnail", "preview", "sprite"} {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	return true
}
