package router

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// sourceStat mirrors the teacher's domain.SourceStats shape (total/failed
// calls, average latency, last-used timestamp), scoped here to one source
// adapter instead of one upstream API source.
type sourceStat struct {
	TotalRequests       int64
	SuccessRequests     int64
	FailedRequests      int64
	totalLatencyMillis  int64
	LastUsed            time.Time
	LastStatus          string // ok, error
}

// Stats is the diagnostics counter set the internal/health endpoint
// reports (spec's supplemented health-check feature, grounded in the
// teacher's domain.Statistics/SourceStats pair). One Stats is shared by
// the whole process and updated from the orchestrator's fan-out.
type Stats struct {
	mu      sync.Mutex
	started time.Time
	bySrc   map[string]*sourceStat
}

// NewStats creates an empty counter set; call RecordCall from the
// orchestrator's fan-out on every upstream source call.
func NewStats() *Stats {
	return &Stats{started: time.Now(), bySrc: make(map[string]*sourceStat)}
}

// RecordCall records the outcome of one call to a source adapter.
func (s *Stats) RecordCall(source string, success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.bySrc[source]
	if !ok {
		st = &sourceStat{}
		s.bySrc[source] = st
	}
	st.TotalRequests++
	st.totalLatencyMillis += latency.Milliseconds()
	st.LastUsed = time.Now()
	if success {
		st.SuccessRequests++
		st.LastStatus = "ok"
	} else {
		st.FailedRequests++
		st.LastStatus = "error"
	}
}

type sourceStatOut struct {
	TotalRequests       int64     `json:"totalRequests"`
	SuccessRequests     int64     `json:"successRequests"`
	FailedRequests      int64     `json:"failedRequests"`
	AverageResponseTime float64   `json:"averageResponseTimeMs"`
	LastStatus          string    `json:"lastStatus"`
	LastUsed            time.Time `json:"lastUsed"`
}

// healthHandler serves GET /api/v2/internal/health: process uptime plus
// per-source call counters, grounded in the teacher's GetHealthStatus /
// Statistics dashboard data but reduced to what this proxy tracks (no
// periodic background prober, just counters updated inline with traffic).
func healthHandler(c *gin.Context, deps Deps) {
	if deps.Stats == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sources": gin.H{}})
		return
	}

	deps.Stats.mu.Lock()
	defer deps.Stats.mu.Unlock()

	out := make(map[string]sourceStatOut, len(deps.Stats.bySrc))
	for name, st := range deps.Stats.bySrc {
		avg := 0.0
		if st.TotalRequests > 0 {
			avg = float64(st.totalLatencyMillis) / float64(st.TotalRequests)
		}
		out[name] = sourceStatOut{
			TotalRequests:       st.TotalRequests,
			SuccessRequests:     st.SuccessRequests,
			FailedRequests:      st.FailedRequests,
			AverageResponseTime: avg,
			LastStatus:          st.LastStatus,
			LastUsed:            st.LastUsed,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptimeSec": int(time.Since(deps.Stats.started).Seconds()),
		"sources":   out,
	})
}
