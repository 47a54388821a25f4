// Package domain holds the wire-independent data model shared by every
// other package: the Anime/Episode catalog records, the raw shapes a
// Source adapter hands back before normalization, and the sentinel errors
// used across the request pipeline.
package domain

import "errors"

// Sentinel errors. Handlers map these to the error-code envelope; they are
// never wrapped with source-specific transport detail by the time they
// reach the router.
var (
	ErrUnknownAnime    = errors.New("unknown anime")
	ErrUnknownEpisode  = errors.New("unknown episode")
	ErrBadToken        = errors.New("invalid token")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrAllSourcesEmpty = errors.New("no source returned a result")
)

// RawAnime is what a Source's Search returns before normalization: just
// enough to build an Anime once title-matching and episode-fetching have
// run.
type RawAnime struct {
	BangumiID    string // source-native id, opaque
	Title        string
	Year         string
	Type         string // drama, movie, variety, anime, other
	ImageURL     string
	StartDate    string // ISO-8601
	Rating       float64
	EpisodeCount int
}

// RawEp is one upstream episode entry before it is turned into an Episode
// record via Catalog.AddEpisode.
type RawEp struct {
	Title string
	URL   string // upstream URL or opaque provider id
}

// Episode is one playable video, identified to the player by a
// process-unique monotonic integer id.
type Episode struct {
	ID    int32
	URL   string
	Title string
}

// Anime is one title from one source.
type Anime struct {
	AnimeID         int32
	BangumiID       string
	AnimeTitle      string
	Type            string
	TypeDescription string
	ImageURL        string
	StartDate       string
	EpisodeCount    int
	Rating          float64
	IsFavorited     bool
	Source          string
	Links           []Episode
}

// Danmaku is one comment after parsing/normalization, independent of the
// wire shape it arrived in.
type Danmaku struct {
	T     float64 // time offset, seconds
	Mode  int     // 1 scroll, 4 bottom, 5 top
	Color int     // 24-bit RGB, default 16777215 (white)
	Text  string
}

const DefaultDanmakuColor = 16777215
