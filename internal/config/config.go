// Package config implements the Config Registry: a process-wide
// configuration snapshot loaded from environment variables, an optional
// YAML file, and a persisted overlay, with hot-reload via atomic snapshot
// swap. The loading shape (typed getEnv* helpers feeding a single struct)
// follows the teacher's pkg/config/config.go; the persisted-overlay tier
// and derived-state recomputation are new for this domain.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"danmakuproxy/pkg/logger"
)

const (
	DefaultToken               = "87654321"
	DefaultSearchCacheMinutes  = 1
	DefaultCommentCacheMinutes = 1
	DefaultMaxLastSelectMap    = 1000
	DefaultYoukuConcurrency    = 8
	MaxYoukuConcurrency        = 16
	DefaultVODRequestTimeoutMs = 10000
	DefaultXMLSize             = 25
)

var defaultBlockedWords = []string{`/^.{25,}$/`}

// defaultPalette is the soft-tone fallback used when DANMU_COLORS is unset.
var defaultPalette = []int{16777215, 16729344, 65416, 65484, 42495, 11240703, 16755370}

// Config is an immutable snapshot. A new one is built whenever raw source
// strings change; callers hold a *Config for the lifetime of one request.
type Config struct {
	Port string

	Token         string
	SourceOrder   []string
	PlatformOrder []string

	VODServers         map[string]string // name -> url, in declaration order via VODServerNames
	VODServerNames     []string
	VODReturnMode      string
	VODRequestTimeout  time.Duration

	BilibiliCookie string
	TMDBAPIKey     string

	TitleToChinese           bool
	StrictTitleMatch         bool
	EnableEpisodeFilter      bool
	ConvertTopBottomToScroll bool
	DanmuSimplified          bool
	RememberLastSelect       bool

	DanmuOutputFormat string
	DanmuLimit        int

	BlockedWordsRaw    []string
	CompiledBlockedRe  []*regexp.Regexp
	EpisodeTitleFilter string
	CompiledEpisodeRe  *regexp.Regexp

	GroupMinute int
	WhiteRatio  float64
	DanmuColors []int // parsed palette, falls back to defaultPalette
	XMLSize     int

	YoukuConcurrency int

	SearchCacheMinutes  int
	CommentCacheMinutes int
	MaxLastSelectMap    int

	RateLimitMaxRequests int

	DatabaseURL           string
	DatabaseAuthToken     string
	UpstashRedisRestURL   string
	UpstashRedisRestToken string
	RedisAddr             string
	RedisDB               int
}

// OverlayStore is implemented by the persistence tier. It holds the
// admin-written config patch across restarts; the Registry consults it at
// Load() and writes through it on Update().
type OverlayStore interface {
	LoadOverlay() (map[string]string, error)
	SaveOverlay(map[string]string) error
}

// Registry is the process-wide Config Registry: Init once, reused by
// every subsequent request; Update swaps in a new atomic snapshot.
type Registry struct {
	mu      sync.RWMutex
	current *Config
	raw     map[string]string // last-applied merged source strings
	overlay OverlayStore
}

func NewRegistry() *Registry {
	return &Registry{}
}

// SetOverlayStore wires the persisted-overlay tier. Must be called before
// Load for the overlay to be consulted on first init.
func (r *Registry) SetOverlayStore(store OverlayStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlay = store
}

// Load performs the Init lifecycle: env + optional YAML file + persisted
// overlay, in that precedence order (overlay wins). Safe to call more than
// once; subsequent requests should use Current instead.
func (r *Registry) Load() *Config {
	raw := envDefaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if fileVals, err := loadYAMLFile(path); err != nil {
			logger.Warnf("config: failed to read CONFIG_FILE %s: %v", path, err)
		} else {
			for k, v := range fileVals {
				raw[k] = v
			}
		}
	}

	r.mu.RLock()
	overlay := r.overlay
	r.mu.RUnlock()

	if overlay != nil {
		if persisted, err := overlay.LoadOverlay(); err != nil {
			logger.Warnf("config: failed to load persisted overlay: %v", err)
		} else {
			for k, v := range persisted {
				raw[k] = v
			}
		}
	}

	cfg := build(raw)

	r.mu.Lock()
	r.current = cfg
	r.raw = raw
	r.mu.Unlock()

	return cfg
}

// Current returns the active snapshot, loading it on first use.
func (r *Registry) Current() *Config {
	r.mu.RLock()
	cfg := r.current
	r.mu.RUnlock()
	if cfg != nil {
		return cfg
	}
	return r.Load()
}

// Update applies a config patch: merges it into the raw source map,
// rebuilds derived state (applyConfigPatch), persists it through the
// overlay store if one is wired, and atomically swaps the snapshot.
func (r *Registry) Update(patch map[string]string) *Config {
	r.mu.Lock()
	raw := make(map[string]string, len(r.raw)+len(patch))
	for k, v := range r.raw {
		raw[k] = v
	}
	for k, v := range patch {
		raw[k] = v
	}
	cfg := build(raw)
	r.current = cfg
	r.raw = raw
	overlay := r.overlay
	r.mu.Unlock()

	if overlay != nil {
		if err := overlay.SaveOverlay(patch); err != nil {
			logger.Warnf("config: failed to persist overlay: %v", err)
		}
	}
	return cfg
}

func loadYAMLFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func envDefaults() map[string]string {
	keys := []string{
		"PORT", "TOKEN", "SOURCE_ORDER", "PLATFORM_ORDER", "VOD_SERVERS",
		"VOD_RETURN_MODE", "VOD_REQUEST_TIMEOUT", "BILIBILI_COOKIE", "TMDB_API_KEY",
		"TITLE_TO_CHINESE", "STRICT_TITLE_MATCH", "ENABLE_EPISODE_FILTER",
		"CONVERT_TOP_BOTTOM_TO_SCROLL", "DANMU_SIMPLIFIED", "REMEMBER_LAST_SELECT",
		"DANMU_OUTPUT_FORMAT", "DANMU_LIMIT", "BLOCKED_WORDS", "EPISODE_TITLE_FILTER",
		"GROUP_MINUTE", "WHITE_RATIO", "DANMU_COLORS", "XML_SIZE", "YOUKU_CONCURRENCY",
		"SEARCH_CACHE_MINUTES", "COMMENT_CACHE_MINUTES", "MAX_LAST_SELECT_MAP",
		"RATE_LIMIT_MAX_REQUESTS", "DATABASE_URL", "DATABASE_AUTH_TOKEN",
		"UPSTASH_REDIS_REST_URL", "UPSTASH_REDIS_REST_TOKEN", "REDIS_ADDR", "REDIS_DB",
	}
	raw := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			raw[k] = v
		}
	}
	return raw
}

// build is applyConfigPatch: it turns the merged raw string map into a
// typed snapshot, recomputing every piece of derived state.
func build(raw map[string]string) *Config {
	cfg := &Config{
		Port:                     getStr(raw, "PORT", "8080"),
		Token:                    getStr(raw, "TOKEN", DefaultToken),
		SourceOrder:              parseOrDefaultOrder(raw["SOURCE_ORDER"], []string{"360", "vod", "renren", "hanjutv"}),
		PlatformOrder:            splitCSV(raw["PLATFORM_ORDER"]),
		VODReturnMode:            getStr(raw, "VOD_RETURN_MODE", "all"),
		VODRequestTimeout:        time.Duration(getInt(raw, "VOD_REQUEST_TIMEOUT", DefaultVODRequestTimeoutMs)) * time.Millisecond,
		BilibiliCookie:           raw["BILIBILI_COOKIE"],
		TMDBAPIKey:               raw["TMDB_API_KEY"],
		TitleToChinese:           getBool(raw, "TITLE_TO_CHINESE", false),
		StrictTitleMatch:         getBool(raw, "STRICT_TITLE_MATCH", false),
		EnableEpisodeFilter:      getBool(raw, "ENABLE_EPISODE_FILTER", false),
		ConvertTopBottomToScroll: getBool(raw, "CONVERT_TOP_BOTTOM_TO_SCROLL", false),
		DanmuSimplified:          getBool(raw, "DANMU_SIMPLIFIED", false),
		RememberLastSelect:       getBool(raw, "REMEMBER_LAST_SELECT", true),
		DanmuOutputFormat:        getStr(raw, "DANMU_OUTPUT_FORMAT", "json"),
		DanmuLimit:               getInt(raw, "DANMU_LIMIT", -1),
		BlockedWordsRaw:          splitCSVOrDefault(raw["BLOCKED_WORDS"], defaultBlockedWords),
		EpisodeTitleFilter:       raw["EPISODE_TITLE_FILTER"],
		GroupMinute:              getInt(raw, "GROUP_MINUTE", 0),
		WhiteRatio:               getFloat(raw, "WHITE_RATIO", -1),
		XMLSize:                  getInt(raw, "XML_SIZE", DefaultXMLSize),
		YoukuConcurrency:         clampInt(getInt(raw, "YOUKU_CONCURRENCY", DefaultYoukuConcurrency), 1, MaxYoukuConcurrency),
		SearchCacheMinutes:       getInt(raw, "SEARCH_CACHE_MINUTES", DefaultSearchCacheMinutes),
		CommentCacheMinutes:      getInt(raw, "COMMENT_CACHE_MINUTES", DefaultCommentCacheMinutes),
		MaxLastSelectMap:         getInt(raw, "MAX_LAST_SELECT_MAP", DefaultMaxLastSelectMap),
		RateLimitMaxRequests:     getInt(raw, "RATE_LIMIT_MAX_REQUESTS", 0),
		DatabaseURL:              raw["DATABASE_URL"],
		DatabaseAuthToken:        raw["DATABASE_AUTH_TOKEN"],
		UpstashRedisRestURL:      raw["UPSTASH_REDIS_REST_URL"],
		UpstashRedisRestToken:    raw["UPSTASH_REDIS_REST_TOKEN"],
		RedisAddr:                getStr(raw, "REDIS_ADDR", ""),
		RedisDB:                  getInt(raw, "REDIS_DB", 0),
	}

	cfg.VODServers, cfg.VODServerNames = parseVODServers(raw["VOD_SERVERS"])

	cfg.CompiledBlockedRe = compileBlockedWords(cfg.BlockedWordsRaw)
	if cfg.EpisodeTitleFilter != "" {
		if re, err := regexp.Compile(cfg.EpisodeTitleFilter); err != nil {
			logger.Warnf("config: invalid EPISODE_TITLE_FILTER %q: %v", cfg.EpisodeTitleFilter, err)
		} else {
			cfg.CompiledEpisodeRe = re
		}
	}

	cfg.DanmuColors = parsePalette(raw["DANMU_COLORS"])

	return cfg
}

func compileBlockedWords(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		pattern := strings.TrimSpace(w)
		pattern = strings.TrimPrefix(pattern, "/")
		pattern = strings.TrimSuffix(pattern, "/")
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Configuration errors: logged once at load, entry dropped, others kept.
			logger.Warnf("config: invalid BLOCKED_WORDS entry %q: %v", w, err)
			continue
		}
		out = append(out, re)
	}
	return out
}

func parsePalette(s string) []int {
	if s == "" {
		return defaultPalette
	}
	parts := splitCSV(s)
	colors := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimPrefix(strings.TrimSpace(p), "#")
		if v, err := strconv.ParseInt(p, 16, 64); err == nil {
			colors = append(colors, int(v))
		}
	}
	if len(colors) == 0 {
		return defaultPalette
	}
	return colors
}

func parseVODServers(s string) (map[string]string, []string) {
	servers := make(map[string]string)
	var names []string
	if s == "" {
		return servers, names
	}
	for i, pair := range splitCSV(s) {
		name, url, found := strings.Cut(pair, "@")
		if !found {
			name, url = "", pair
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = "vod-" + strconv.Itoa(i)
		}
		servers[name] = strings.TrimSpace(url)
		names = append(names, name)
	}
	return servers, names
}

func parseOrDefaultOrder(s string, def []string) []string {
	known := map[string]bool{
		"360": true, "vod": true, "tmdb": true, "douban": true, "tencent": true,
		"youku": true, "iqiyi": true, "imgo": true, "bilibili": true,
		"renren": true, "hanjutv": true, "bahamut": true,
	}
	if s == "" {
		return def
	}
	var out []string
	for _, name := range splitCSV(s) {
		name = strings.ToLower(strings.TrimSpace(name))
		if known[name] {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCSVOrDefault(s string, def []string) []string {
	if v := splitCSV(s); len(v) > 0 {
		return v
	}
	return def
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getStr(raw map[string]string, key, def string) string {
	if v, ok := raw[key]; ok && v != "" {
		return v
	}
	return def
}

func getInt(raw map[string]string, key string, def int) int {
	if v, ok := raw[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(raw map[string]string, key string, def float64) float64 {
	if v, ok := raw[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(raw map[string]string, key string, def bool) bool {
	if v, ok := raw[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
