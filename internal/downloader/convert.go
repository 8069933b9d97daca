package downloader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ConvertFunc turns an intermediate transport-stream file into the
// target container. Implementations must leave a file of at least
// minSize bytes at dst or return an error.
type ConvertFunc func(ctx context.Context, src, dst string, minSize int64) error

// FFmpegConvert remuxes with a stream copy first, then falls back to a
// full re-encode when the remux output is implausibly small.
func FFmpegConvert(ctx context.Context, src, dst string, minSize int64) error {
	remux := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", src,
		"-c", "copy", "-bsf:a", "aac_adtstoasc", dst)
	if err := remux.Run(); err == nil && fileAtLeast(dst, minSize) {
		return nil
	}

	reencode := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", src,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k", dst)
	if err := reencode.Run(); err != nil {
		return fmt.Errorf("ffmpeg re-encode failed: %w", err)
	}
	if !fileAtLeast(dst, minSize) {
		return fmt.Errorf("ffmpeg conversion produced no usable output")
	}
	return nil
}

func fileAtLeast(path string, minSize int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() >= minSize
}
