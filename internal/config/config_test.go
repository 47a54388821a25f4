package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	originalToken := os.Getenv("TOKEN")
	os.Unsetenv("TOKEN")
	defer func() {
		if originalToken != "" {
			os.Setenv("TOKEN", originalToken)
		}
	}()

	r := NewRegistry()
	cfg := r.Load()

	if cfg.Token != DefaultToken {
		t.Errorf("expected default token %s, got %s", DefaultToken, cfg.Token)
	}
	if len(cfg.SourceOrder) != 4 || cfg.SourceOrder[0] != "360" {
		t.Errorf("expected default source order [360 vod renren hanjutv], got %v", cfg.SourceOrder)
	}
	if cfg.SearchCacheMinutes != DefaultSearchCacheMinutes {
		t.Errorf("expected default search cache minutes %d, got %d", DefaultSearchCacheMinutes, cfg.SearchCacheMinutes)
	}
	if cfg.DanmuLimit != -1 {
		t.Errorf("expected default danmu limit -1, got %d", cfg.DanmuLimit)
	}
	if len(cfg.CompiledBlockedRe) != 1 {
		t.Errorf("expected one default blocked-word rule, got %d", len(cfg.CompiledBlockedRe))
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	os.Setenv("TOKEN", "mytoken")
	os.Setenv("SOURCE_ORDER", "tencent,bogus,bilibili")
	os.Setenv("DANMU_LIMIT", "500")
	os.Setenv("WHITE_RATIO", "30")
	defer func() {
		os.Unsetenv("TOKEN")
		os.Unsetenv("SOURCE_ORDER")
		os.Unsetenv("DANMU_LIMIT")
		os.Unsetenv("WHITE_RATIO")
	}()

	r := NewRegistry()
	cfg := r.Load()

	if cfg.Token != "mytoken" {
		t.Errorf("expected token mytoken, got %s", cfg.Token)
	}
	// "bogus" is not a known source and must be dropped.
	if len(cfg.SourceOrder) != 2 || cfg.SourceOrder[0] != "tencent" || cfg.SourceOrder[1] != "bilibili" {
		t.Errorf("expected [tencent bilibili] after dropping unknowns, got %v", cfg.SourceOrder)
	}
	if cfg.DanmuLimit != 500 {
		t.Errorf("expected danmu limit 500, got %d", cfg.DanmuLimit)
	}
	if cfg.WhiteRatio != 30 {
		t.Errorf("expected white ratio 30, got %v", cfg.WhiteRatio)
	}
}

func TestVODServersParsing(t *testing.T) {
	os.Setenv("VOD_SERVERS", "alpha@http://a.example,@http://b.example")
	defer os.Unsetenv("VOD_SERVERS")

	r := NewRegistry()
	cfg := r.Load()

	if cfg.VODServers["alpha"] != "http://a.example" {
		t.Errorf("expected alpha server url, got %v", cfg.VODServers)
	}
	if cfg.VODServers["vod-1"] != "http://b.example" {
		t.Errorf("expected synthesized name vod-1 for unnamed server, got %v", cfg.VODServers)
	}
}

func TestUpdateRebuildsDerivedState(t *testing.T) {
	r := NewRegistry()
	r.Load()

	cfg := r.Update(map[string]string{"BLOCKED_WORDS": "/spam/,/scam/"})
	if len(cfg.CompiledBlockedRe) != 2 {
		t.Errorf("expected 2 compiled blocked-word rules after update, got %d", len(cfg.CompiledBlockedRe))
	}
	if r.Current() != cfg {
		t.Error("expected Current() to reflect the latest snapshot after Update")
	}
}

func TestInvalidBlockedWordIsDroppedNotFatal(t *testing.T) {
	r := NewRegistry()
	cfg := r.Update(map[string]string{"BLOCKED_WORDS": "/spam/,/[unterminated/"})
	if len(cfg.CompiledBlockedRe) != 1 {
		t.Errorf("expected the invalid entry to be dropped and the valid one kept, got %d rules", len(cfg.CompiledBlockedRe))
	}
}
