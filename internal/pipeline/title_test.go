package pipeline

import (
	"testing"

	"github.com/anipipe/api/internal/model"
)

func TestClassifyLink(t *testing.T) {
	tests := []struct {
		name string
		url  string
		kind model.LinkKind
		want model.LinkKind
	}{
		{"explicit kind wins", "https://example.com/video.m3u8", model.LinkKindDirect, model.LinkKindDirect},
		{"m3u8 by extension", "https://cdn.example.com/stream/index.m3u8", model.LinkKindAuto, model.LinkKindM3U8},
		{"m3u8 with query", "https://cdn.example.com/index.m3u8?token=abc", "", model.LinkKindM3U8},
		{"direct mp4", "https://example.com/files/movie.mp4", model.LinkKindAuto, model.LinkKindDirect},
		{"direct mkv uppercase", "https://example.com/files/movie.MKV", "", model.LinkKindDirect},
		{"watch page", "https://9animetv.to/watch/one-piece-100?ep=2142", "", model.LinkKindAnime},
		{"query extension ignored", "https://example.com/watch?file=x.mp4", "", model.LinkKindAnime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyLink(tt.url, tt.kind); got != tt.want {
				t.Errorf("ClassifyLink(%q, %q) = %q, want %q", tt.url, tt.kind, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	if got := SanitizeTitle("One Piece: Episode 5!"); got != "One_Piece__Episode_5_" {
		t.Errorf("got %q", got)
	}

	long := ""
	for i := 0; i < 60; i++ {
		long += "a"
	}
	if got := SanitizeTitle(long); len(got) != 50 {
		t.Errorf("expected 50-char cap, got %d chars", len(got))
	}
}

func TestDeriveTitle(t *testing.T) {
	if got := DeriveTitle("One Piece", "2142"); got != "One Piece Episode 2142" {
		t.Errorf("got %q", got)
	}
	if got := DeriveTitle("Direct M3U8", "direct_1700000000"); got != "Direct M3U8" {
		t.Errorf("non-numeric episode should leave title alone, got %q", got)
	}
	if got := DeriveTitle("", "2142"); got != "2142" {
		t.Errorf("got %q", got)
	}
}

func TestOutputFilename(t *testing.T) {
	got := OutputFilename("2142", "One Piece Episode 2142")
	want := "ep_2142_One_Piece_Episode_2142.mp4"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.00 KB"},
		{5 << 20, "5.00 MB"},
		{3 << 30, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
