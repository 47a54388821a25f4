// Package catalog implements the bounded in-memory identity cache described
// in spec section 3 / 4.4: the anime/episode maps, the search and comment
// result caches, and the per-query "last selected source" memory. A single
// Catalog is owned by one process and is safe for concurrent use.
package catalog

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"danmakuproxy/internal/domain"
	"danmakuproxy/pkg/logger"
)

const episodeCounterStart int32 = 10001

// Persister is the narrow interface the Catalog needs from the persistence
// tier: fire-and-forget writes, and a cold-start read. Defined here (not
// imported from the persistence package) so catalog has no dependency on
// SQL/KV details — the persistence.Adapter type satisfies it structurally.
type Persister interface {
	Save(name string, value []byte)
	Load(name string) ([]byte, bool, error)
}

type searchEntry struct {
	Results   []domain.Anime `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
}

type commentEntry struct {
	Comments  []domain.Danmaku `json:"comments"`
	Timestamp time.Time        `json:"timestamp"`
}

type lastSelectEntry struct {
	AnimeIDs  []int32   `json:"animeIds"`
	Prefer    *int32    `json:"prefer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Catalog holds all process-wide catalog state under one mutex; at the
// bounded sizes this component operates at (MAX_ANIMES=100,
// MAX_LAST_SELECT_MAP=1000) a single lock is simpler than sharding and
// costs nothing measurable.
type Catalog struct {
	mu sync.Mutex

	animes []domain.Anime // insertion order = recency, capacity MaxAnimes

	episodeIndex map[int32]domain.Episode
	urlToEpID    map[string]int32
	episodeNum   int32 // next id to assign; incremented atomically

	searchCache  map[string]searchEntry
	commentCache map[string]commentEntry

	lastSelectMap   map[string]lastSelectEntry
	lastSelectOrder []string // FIFO eviction order

	requestHistory map[string][]time.Time

	persister Persister

	maxAnimes         int
	maxLastSelectMap  int
	searchCacheTTL    time.Duration
	commentCacheTTL   time.Duration
}

// Options configures the bounds and TTLs that spec/4.2 makes tunable.
type Options struct {
	MaxAnimes           int
	MaxLastSelectMap    int
	SearchCacheMinutes  int
	CommentCacheMinutes int
}

func New(opts Options) *Catalog {
	if opts.MaxAnimes <= 0 {
		opts.MaxAnimes = 100
	}
	if opts.MaxLastSelectMap <= 0 {
		opts.MaxLastSelectMap = 1000
	}
	if opts.SearchCacheMinutes <= 0 {
		opts.SearchCacheMinutes = 1
	}
	if opts.CommentCacheMinutes <= 0 {
		opts.CommentCacheMinutes = 1
	}
	return &Catalog{
		episodeIndex:     make(map[int32]domain.Episode),
		urlToEpID:        make(map[string]int32),
		episodeNum:       episodeCounterStart,
		searchCache:      make(map[string]searchEntry),
		commentCache:     make(map[string]commentEntry),
		lastSelectMap:    make(map[string]lastSelectEntry),
		requestHistory:   make(map[string][]time.Time),
		maxAnimes:        opts.MaxAnimes,
		maxLastSelectMap: opts.MaxLastSelectMap,
		searchCacheTTL:   time.Duration(opts.SearchCacheMinutes) * time.Minute,
		commentCacheTTL:  time.Duration(opts.CommentCacheMinutes) * time.Minute,
	}
}

// SetPersister wires the persistence tier after construction (main.go
// builds Catalog before it knows whether SQL/KV is reachable).
func (c *Catalog) SetPersister(p Persister) {
	c.mu.Lock()
	c.persister = p
	c.mu.Unlock()
}

// AddEpisode returns the existing Episode if url was already indexed
// (id-stability guarantee), otherwise assigns the next counter value.
func (c *Catalog) AddEpisode(url, title string) domain.Episode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addEpisodeLocked(url, title)
}

func (c *Catalog) addEpisodeLocked(url, title string) domain.Episode {
	if id, ok := c.urlToEpID[url]; ok {
		return c.episodeIndex[id]
	}
	id := atomic.AddInt32(&c.episodeNum, 1) - 1
	ep := domain.Episode{ID: id, URL: url, Title: title}
	c.episodeIndex[id] = ep
	c.urlToEpID[url] = id
	return ep
}

// AddAnime inserts a new Anime, or moves an existing one (same AnimeID) to
// the tail without re-adding its episodes. Evicts the head on overflow.
func (c *Catalog) AddAnime(anime domain.Anime) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, a := range c.animes {
		if a.AnimeID == anime.AnimeID {
			c.animes = append(c.animes[:i], c.animes[i+1:]...)
			c.animes = append(c.animes, a)
			c.persistAnimesLocked()
			return
		}
	}

	for i, link := range anime.Links {
		anime.Links[i] = c.addEpisodeLocked(link.URL, link.Title)
	}
	c.animes = append(c.animes, anime)

	if len(c.animes) > c.maxAnimes {
		evicted := c.animes[0]
		c.animes = c.animes[1:]
		for _, link := range evicted.Links {
			if id, ok := c.urlToEpID[link.URL]; ok {
				delete(c.urlToEpID, link.URL)
				delete(c.episodeIndex, id)
			}
		}
	}
	c.persistAnimesLocked()
}

func (c *Catalog) persistAnimesLocked() {
	if c.persister == nil {
		return
	}
	if data, err := json.Marshal(c.animes); err == nil {
		c.persister.Save("animes", data)
	}
	c.persister.Save("episodeNum", []byte(jsonInt32(atomic.LoadInt32(&c.episodeNum))))
}

func jsonInt32(v int32) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// FindURLByID resolves an episode id to its upstream url.
func (c *Catalog) FindURLByID(id int32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.episodeIndex[id]
	if !ok {
		return "", false
	}
	return ep.URL, true
}

// FindTitleByID resolves an episode id to its display title.
func (c *Catalog) FindTitleByID(id int32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep, ok := c.episodeIndex[id]
	if !ok {
		return "", false
	}
	return ep.Title, true
}

// FindAnimeIDByCommentID walks the anime list for the one owning episode id.
func (c *Catalog) FindAnimeIDByCommentID(id int32) (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.animes {
		for _, link := range a.Links {
			if link.ID == id {
				return a.AnimeID, true
			}
		}
	}
	return 0, false
}

// AnimeByID returns the Anime record with the given AnimeID, for the
// bangumi endpoint (spec/6).
func (c *Catalog) AnimeByID(animeID int32) (domain.Anime, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.animes {
		if a.AnimeID == animeID {
			return a, true
		}
	}
	return domain.Anime{}, false
}

// StoreAnimeIDsToMap records which AnimeIds were produced for a query,
// preserving any existing prefer value, evicting the oldest key on
// overflow (FIFO).
func (c *Catalog) StoreAnimeIDsToMap(animeIDs []int32, queryKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, existed := c.lastSelectMap[queryKey]
	entry.AnimeIDs = animeIDs
	entry.Timestamp = time.Now()
	c.lastSelectMap[queryKey] = entry

	if !existed {
		c.lastSelectOrder = append(c.lastSelectOrder, queryKey)
		if len(c.lastSelectOrder) > c.maxLastSelectMap {
			oldest := c.lastSelectOrder[0]
			c.lastSelectOrder = c.lastSelectOrder[1:]
			delete(c.lastSelectMap, oldest)
		}
	}
}

// GetPreferAnimeID returns the user's (or matcher's) last choice for query.
func (c *Catalog) GetPreferAnimeID(query string) (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lastSelectMap[query]
	if !ok || entry.Prefer == nil {
		return 0, false
	}
	return *entry.Prefer, true
}

// SetPreferByAnimeID finds the query whose result set contains animeID and
// records it as the preferred choice, returning the matched query.
func (c *Catalog) SetPreferByAnimeID(animeID int32) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for query, entry := range c.lastSelectMap {
		for _, id := range entry.AnimeIDs {
			if id == animeID {
				pref := animeID
				entry.Prefer = &pref
				c.lastSelectMap[query] = entry
				return query, true
			}
		}
	}
	return "", false
}

// IsSearchCacheValid reports whether keyword has a live (non-expired)
// entry, without mutating state.
func (c *Catalog) IsSearchCacheValid(keyword string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.searchCache[keyword]
	if !ok {
		return false
	}
	return time.Since(entry.Timestamp) < c.searchCacheTTL
}

// GetSearchCache returns the cached result for keyword, deleting it in
// place if stale.
func (c *Catalog) GetSearchCache(keyword string) ([]domain.Anime, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.searchCache[keyword]
	if !ok {
		return nil, false
	}
	if time.Since(entry.Timestamp) >= c.searchCacheTTL {
		delete(c.searchCache, keyword)
		return nil, false
	}
	return entry.Results, true
}

func (c *Catalog) SetSearchCache(keyword string, results []domain.Anime) {
	c.mu.Lock()
	c.searchCache[keyword] = searchEntry{Results: results, Timestamp: time.Now()}
	p := c.persister
	var data []byte
	var err error
	if p != nil {
		data, err = json.Marshal(c.searchCache)
	}
	c.mu.Unlock()
	if p != nil && err == nil {
		p.Save("searchCache", data)
	}
}

// IsCommentCacheValid mirrors IsSearchCacheValid for the comment cache.
func (c *Catalog) IsCommentCacheValid(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.commentCache[url]
	if !ok {
		return false
	}
	return time.Since(entry.Timestamp) < c.commentCacheTTL
}

func (c *Catalog) GetCommentCache(url string) ([]domain.Danmaku, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.commentCache[url]
	if !ok {
		return nil, false
	}
	if time.Since(entry.Timestamp) >= c.commentCacheTTL {
		delete(c.commentCache, url)
		return nil, false
	}
	return entry.Comments, true
}

func (c *Catalog) SetCommentCache(url string, comments []domain.Danmaku) {
	c.mu.Lock()
	c.commentCache[url] = commentEntry{Comments: comments, Timestamp: time.Now()}
	p := c.persister
	var data []byte
	var err error
	if p != nil {
		data, err = json.Marshal(c.commentCache)
	}
	c.mu.Unlock()
	if p != nil && err == nil {
		p.Save("commentCache", data)
	}
}

// CheckRateLimit implements the per-IP sliding 60s window from spec/4.7.
// It prunes expired timestamps lazily and reports whether this call is
// allowed: false once limit requests from ip already fall inside the
// window. limit <= 0 disables the check (always true).
func (c *Catalog) CheckRateLimit(ip string, limit int) bool {
	if limit <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-60 * time.Second)
	kept := c.requestHistory[ip][:0]
	for _, t := range c.requestHistory[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		c.requestHistory[ip] = kept
		return false
	}
	c.requestHistory[ip] = append(kept, now)
	return true
}

// Rehydrate loads persisted state at process start, filtering TTL'd caches
// by their stored timestamp before admitting them into memory.
func (c *Catalog) Rehydrate() {
	if c.persister == nil {
		return
	}
	if data, ok, err := c.persister.Load("animes"); err == nil && ok {
		var animes []domain.Anime
		if err := json.Unmarshal(data, &animes); err == nil {
			c.mu.Lock()
			c.animes = animes
			for _, a := range animes {
				for _, link := range a.Links {
					c.episodeIndex[link.ID] = link
					c.urlToEpID[link.URL] = link.ID
				}
			}
			c.mu.Unlock()
		}
	}
	if data, ok, err := c.persister.Load("episodeNum"); err == nil && ok {
		var n int32
		if err := json.Unmarshal(data, &n); err == nil && n >= episodeCounterStart {
			atomic.StoreInt32(&c.episodeNum, n)
		}
	}
	if data, ok, err := c.persister.Load("searchCache"); err == nil && ok {
		var entries map[string]searchEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			c.mu.Lock()
			for k, v := range entries {
				if time.Since(v.Timestamp) < c.searchCacheTTL {
					c.searchCache[k] = v
				}
			}
			c.mu.Unlock()
		}
	}
	if data, ok, err := c.persister.Load("commentCache"); err == nil && ok {
		var entries map[string]commentEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			c.mu.Lock()
			for k, v := range entries {
				if time.Since(v.Timestamp) < c.commentCacheTTL {
					c.commentCache[k] = v
				}
			}
			c.mu.Unlock()
		}
	}
	logger.Infof("catalog: rehydrated %d animes, episode counter at %d", len(c.animes), atomic.LoadInt32(&c.episodeNum))
}

// Snapshot returns a shallow copy of the current anime list, in recency
// order, for read-only iteration by the orchestrator/router.
func (c *Catalog) Snapshot() []domain.Anime {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Anime, len(c.animes))
	copy(out, c.animes)
	return out
}
