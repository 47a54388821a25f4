package match

import "testing"

func TestParseFileNameMovie(t *testing.T) {
	parsed := ParseFileName("Blood.River.2023.1080p.BluRay.x264.mkv")
	if parsed.Title != "Blood River" {
		t.Errorf("expected title %q, got %q", "Blood River", parsed.Title)
	}
	if !parsed.IsMovie || parsed.Season != 0 || parsed.Episode != 0 {
		t.Errorf("expected movie with no season/episode, got %+v", parsed)
	}
}

func TestParseFileNameSeries(t *testing.T) {
	parsed := ParseFileName("亲爱的X.S02E07.2160p.WEB-DL.mkv")
	if parsed.Title != "亲爱的X" {
		t.Errorf("expected title %q, got %q", "亲爱的X", parsed.Title)
	}
	if parsed.IsMovie {
		t.Error("expected series, not movie")
	}
	if parsed.Season != 2 || parsed.Episode != 7 {
		t.Errorf("expected season 2 episode 7, got season %d episode %d", parsed.Season, parsed.Episode)
	}
}

func TestExtractPlatformTag(t *testing.T) {
	platform, rest := ExtractPlatformTag("[tencent]Arcane.S01E01.mkv")
	if platform != "tencent" {
		t.Errorf("expected platform tencent, got %q", platform)
	}
	if rest != "Arcane.S01E01.mkv" {
		t.Errorf("expected tag stripped, got %q", rest)
	}
}

func TestExtractPlatformTagAbsent(t *testing.T) {
	platform, rest := ExtractPlatformTag("Arcane.S01E01.mkv")
	if platform != "" {
		t.Errorf("expected no platform tag, got %q", platform)
	}
	if rest != "Arcane.S01E01.mkv" {
		t.Errorf("expected filename unchanged, got %q", rest)
	}
}
