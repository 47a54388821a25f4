package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"danmakuproxy/internal/catalog"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/match"
	"danmakuproxy/internal/orchestrator"
	"danmakuproxy/internal/persistence"
	"danmakuproxy/internal/router"
	"danmakuproxy/internal/source"
	"danmakuproxy/pkg/logger"
)

// sourceRequestTimeout is the per-call timeout for every adapter that
// doesn't have its own tunable (VOD is the exception, via
// cfg.VODRequestTimeout); 10s matches the teacher's own internal client
// default.
const sourceRequestTimeout = 10 * time.Second

// baseURLEnv returns an env override for a source's upstream base url,
// falling back to a placeholder host under the proxy's own domain: the
// private per-platform APIs these adapters speak are out of scope (spec/1),
// so there is no real upstream to hardcode.
func baseURLEnv(key, platform string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return "https://" + platform + ".danmaku-upstream.internal/api"
}

func buildSources(cfg *config.Config) map[string]source.Source {
	return map[string]source.Source{
		"tencent":  source.NewTencent(baseURLEnv("TENCENT_BASE_URL", "tencent"), sourceRequestTimeout),
		"iqiyi":    source.NewIQiyi(baseURLEnv("IQIYI_BASE_URL", "iqiyi"), sourceRequestTimeout),
		"imgo":     source.NewImgo(baseURLEnv("IMGO_BASE_URL", "imgo"), sourceRequestTimeout),
		"bahamut":  source.NewBahamut(baseURLEnv("BAHAMUT_BASE_URL", "bahamut"), sourceRequestTimeout),
		"renren":   source.NewRenren(baseURLEnv("RENREN_BASE_URL", "renren"), sourceRequestTimeout),
		"hanjutv":  source.NewHanjutv(baseURLEnv("HANJUTV_BASE_URL", "hanjutv"), sourceRequestTimeout),
		"360":      source.NewThreeSixty(baseURLEnv("THREESIXTY_BASE_URL", "so"), sourceRequestTimeout),
		"bilibili": source.NewBilibili(baseURLEnv("BILIBILI_BASE_URL", "bilibili"), cfg.BilibiliCookie, sourceRequestTimeout),
		"youku":    source.NewYouku(baseURLEnv("YOUKU_BASE_URL", "youku"), cfg.YoukuConcurrency, sourceRequestTimeout),
		"vod":      source.NewVOD(cfg.VODServers, cfg.VODReturnMode, cfg.VODRequestTimeout),
	}
}

func main() {
	logger.Init()

	registry := config.NewRegistry()
	// First pass is env/YAML only (no overlay store wired yet); its
	// DatabaseURL/RedisAddr are enough to stand up the persistence tier,
	// which the registry then needs to read the persisted overlay back.
	bootstrapCfg := registry.Load()
	persist := persistence.New(bootstrapCfg)
	defer persist.Close()
	registry.SetOverlayStore(persist)
	cfg := registry.Load()

	cat := catalog.New(catalog.Options{
		MaxAnimes:           100,
		MaxLastSelectMap:    cfg.MaxLastSelectMap,
		SearchCacheMinutes:  cfg.SearchCacheMinutes,
		CommentCacheMinutes: cfg.CommentCacheMinutes,
	})
	cat.SetPersister(persist)
	cat.Rehydrate()

	sources := buildSources(cfg)
	orch := orchestrator.New(cat, sources)
	stats := router.NewStats()
	orch.SetStatsRecorder(stats)

	tmdb := source.NewTMDB(cfg.TMDBAPIKey, sourceRequestTimeout)
	douban := source.NewDouban(sourceRequestTimeout)
	matchEngine := match.New(orch, cat, tmdb, douban)

	engine := router.New(router.Deps{
		Registry: registry,
		Catalog:  cat,
		Orch:     orch,
		Match:    matchEngine,
		Stats:    stats,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		logger.Info("Starting server on port " + cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("forced shutdown: %v", err)
	}
}
