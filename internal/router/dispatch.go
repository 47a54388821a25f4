package router

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"danmakuproxy/internal/comments"
	"danmakuproxy/internal/config"
	"danmakuproxy/internal/domain"
)

// adminStaticPaths bypass the token gate and path normalizer entirely
// (spec/4.7 step 1). They are matched as exact gin routes in router.go and
// never reach dispatch, except /api/config and /api/logs which are
// registered as wildcard/exact routes too; this list exists for the path
// normalizer's own exemption check on anything NoRoute still sees for
// these prefixes (e.g. a trailing-slash variant).
var adminStaticPrefixes = []string{
	"/favicon.ico", "/robots.txt", "/api/login", "/api/logout", "/api/config", "/api/logs",
}

func isAdminStatic(path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range adminStaticPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

var repeatedV2Re = regexp.MustCompile(`(?:/api/v2)+`)

// normalizePath implements spec/4.7 step 3: collapse repeated /api/v2/
// prefixes and ensure the result starts with /api/v2/. tokenStripped is
// the path after the token-gate has already removed a leading /TOKEN
// segment.
func normalizePath(tokenStripped string) string {
	p := repeatedV2Re.ReplaceAllString(tokenStripped, "/api/v2")
	if !strings.HasPrefix(p, "/api/v2") {
		p = "/api/v2" + p
	}
	return p
}

// stripToken implements spec/4.7 step 2: when TOKEN is the default
// ("87654321"), the prefix is optional and any leading segment equal to
// the default is stripped if present; otherwise the first path segment
// must equal TOKEN, and is rejected (ok=false) if it doesn't.
func stripToken(path, token string) (rest string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/")
	segments := strings.SplitN(trimmed, "/", 2)
	first := segments[0]

	if token == config.DefaultToken {
		if first == token {
			if len(segments) > 1 {
				return "/" + segments[1], true
			}
			return "/", true
		}
		return path, true
	}

	if first != token {
		return "", false
	}
	if len(segments) > 1 {
		return "/" + segments[1], true
	}
	return "/", true
}

// clientIP implements spec/4.7 step 4's precedence: X-Forwarded-For
// (first entry), then X-Real-IP, then the direct peer, stripping any
// "::ffff:" IPv4-mapped prefix.
func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return strings.TrimPrefix(first, "::ffff:")
		}
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimPrefix(xri, "::ffff:")
	}
	return strings.TrimPrefix(c.ClientIP(), "::ffff:")
}

// dispatch implements spec/4.7 end to end for every request that didn't
// match an explicit gin route: token gate, path normalize, rate limit
// (comment endpoints only), then route to the matching handler.
func dispatch(c *gin.Context, deps Deps) {
	path := c.Request.URL.Path
	cfg := deps.Registry.Current()

	if isAdminStatic(path) {
		c.Status(http.StatusNotFound)
		return
	}

	rest, ok := stripToken(path, cfg.Token)
	if !ok {
		writeError(c, http.StatusUnauthorized, http.StatusUnauthorized, "invalid token")
		return
	}
	normalized := normalizePath(rest)

	isComment := strings.HasPrefix(normalized, "/api/v2/comment")
	if isComment && cfg.RateLimitMaxRequests > 0 {
		if !deps.Catalog.CheckRateLimit(clientIP(c), cfg.RateLimitMaxRequests) {
			c.Status(http.StatusTooManyRequests)
			return
		}
	}

	switch {
	case normalized == "/api/v2/search/anime" && c.Request.Method == http.MethodGet:
		handleSearchAnime(c, deps, cfg)
	case normalized == "/api/v2/search/episodes" && c.Request.Method == http.MethodGet:
		handleSearchEpisodes(c, deps, cfg)
	case normalized == "/api/v2/match" && c.Request.Method == http.MethodPost:
		handleMatch(c, deps, cfg)
	case strings.HasPrefix(normalized, "/api/v2/bangumi/") && c.Request.Method == http.MethodGet:
		handleBangumi(c, deps, strings.TrimPrefix(normalized, "/api/v2/bangumi/"))
	case normalized == "/api/v2/comment" && c.Request.Method == http.MethodGet:
		handleCommentByURL(c, deps, cfg)
	case strings.HasPrefix(normalized, "/api/v2/comment/") && c.Request.Method == http.MethodGet:
		handleCommentByID(c, deps, cfg, strings.TrimPrefix(normalized, "/api/v2/comment/"))
	case normalized == "/api/v2/internal/health" && c.Request.Method == http.MethodGet:
		healthHandler(c, deps)
	default:
		writeError(c, http.StatusNotFound, http.StatusNotFound, "unknown route")
	}
}

func handleSearchAnime(c *gin.Context, deps Deps, cfg *config.Config) {
	keyword := c.Query("keyword")
	if keyword == "" {
		writeError(c, http.StatusBadRequest, http.StatusBadRequest, "keyword is required")
		return
	}
	animes := deps.Orch.Search(c.Request.Context(), keyword, cfg, 0, "")
	c.JSON(http.StatusOK, gin.H{"errorCode": 0, "success": true, "animes": animes})
}

func handleSearchEpisodes(c *gin.Context, deps Deps, cfg *config.Config) {
	animeQuery := c.Query("anime")
	episodeParam := c.Query("episode")
	if animeQuery == "" {
		writeError(c, http.StatusBadRequest, http.StatusBadRequest, "anime is required")
		return
	}

	results := deps.Orch.Search(c.Request.Context(), animeQuery, cfg, 0, "")

	type episodesOut struct {
		AnimeID  int32            `json:"animeId"`
		Episodes []domain.Episode `json:"episodes"`
	}
	var out []episodesOut

	wantMovie := episodeParam == "movie"
	wantN, isN := -1, false
	if !wantMovie {
		if n, err := strconv.Atoi(episodeParam); err == nil {
			wantN, isN = n, true
		}
	}

	for _, a := range results {
		var eps []domain.Episode
		switch {
		case wantMovie:
			if strings.EqualFold(a.Type, "movie") && len(a.Links) > 0 {
				eps = a.Links[:1]
			}
		case isN:
			if wantN >= 1 && wantN <= len(a.Links) {
				eps = a.Links[wantN-1 : wantN]
			}
		default:
			eps = a.Links
		}
		if len(eps) == 0 {
			continue
		}
		out = append(out, episodesOut{AnimeID: a.AnimeID, Episodes: eps})
	}
	c.JSON(http.StatusOK, gin.H{"animes": out})
}

func handleMatch(c *gin.Context, deps Deps, cfg *config.Config) {
	var body struct {
		FileName string `json:"fileName"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.FileName == "" {
		writeError(c, http.StatusBadRequest, http.StatusBadRequest, "fileName is required")
		return
	}
	result := deps.Match.Match(c.Request.Context(), cfg, body.FileName)
	c.JSON(http.StatusOK, result)
}

func handleBangumi(c *gin.Context, deps Deps, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 32)
	if err != nil {
		writeError(c, http.StatusBadRequest, http.StatusBadRequest, "invalid anime id")
		return
	}
	anime, ok := deps.Catalog.AnimeByID(int32(id))
	if !ok {
		writeError(c, http.StatusNotFound, http.StatusNotFound, "unknown anime")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bangumi": gin.H{
		"animeId":         anime.AnimeID,
		"bangumiId":       anime.BangumiID,
		"animeTitle":      anime.AnimeTitle,
		"type":            anime.Type,
		"typeDescription": anime.TypeDescription,
		"seasons":         []gin.H{{"id": anime.AnimeID, "name": anime.AnimeTitle}},
		"episodes":        anime.Links,
		"imageUrl":        anime.ImageURL,
		"episodeCount":    anime.EpisodeCount,
		"rating":          anime.Rating,
		"isFavorited":     anime.IsFavorited,
	}})
}

func handleCommentByID(c *gin.Context, deps Deps, cfg *config.Config, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 32)
	if err != nil {
		writeError(c, http.StatusBadRequest, http.StatusBadRequest, "invalid episode id")
		return
	}
	url, ok := deps.Catalog.FindURLByID(int32(id))
	if !ok {
		writeError(c, http.StatusNotFound, http.StatusNotFound, "unknown episode")
		return
	}
	serveComments(c, deps, cfg, url)
}

func handleCommentByURL(c *gin.Context, deps Deps, cfg *config.Config) {
	url := c.Query("url")
	if url == "" {
		writeError(c, http.StatusBadRequest, http.StatusBadRequest, "url is required")
		return
	}
	serveComments(c, deps, cfg, url)
}

func serveComments(c *gin.Context, deps Deps, cfg *config.Config, url string) {
	list, err := deps.Orch.GetComments(c.Request.Context(), url)
	if err != nil {
		writeError(c, http.StatusNotFound, http.StatusNotFound, "unknown source for url")
		return
	}

	processed := comments.Run(list, comments.Options{
		BlockedWords:             cfg.CompiledBlockedRe,
		GroupMinute:              cfg.GroupMinute,
		DanmuLimit:               cfg.DanmuLimit,
		WhiteRatio:               cfg.WhiteRatio,
		Palette:                  cfg.DanmuColors,
		ConvertTopBottomToScroll: cfg.ConvertTopBottomToScroll,
	})

	format := c.Query("format")
	if format == "" {
		format = cfg.DanmuOutputFormat
	}

	if format == "xml" {
		xmlBytes, err := comments.SerializeXML(processed, cfg.XMLSize)
		if err != nil {
			writeError(c, http.StatusInternalServerError, http.StatusInternalServerError, "serialize failed")
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", xmlBytes)
		return
	}

	platform := ""
	if src := deps.Orch.SourceForURL(url); src != nil {
		platform = src.Name()
	}
	c.JSON(http.StatusOK, comments.SerializeJSON(processed, platform))
}
