package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/visits/internal/domain"
	"github.com/MrSnakeDoc/visits/internal/logger"
	"github.com/MrSnakeDoc/visits/internal/metrics"
)

// VisitCounter is what the handlers need from the service.
type VisitCounter interface {
	RecordVisit(ctx context.Context, clientAddress string) error
	GetVisitCount(ctx context.Context) (int64, error)
	ResetCache(ctx context.Context) (int64, error)
	CachedCount(ctx context.Context) (domain.Snapshot, bool)
	RecentVisits(ctx context.Context, limit int) ([]domain.Visit, error)
	Ping(ctx context.Context) error
	DevMode() bool
}

type Deps struct {
	Logger          logger.Logger
	Service         VisitCounter
	Metrics         *metrics.Metrics                // nil disables /metrics and request metrics
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time                // for testing, defaults to time.Now
	CacheBackend    string                          // "redis" | "memory" | "none"
	CacheProbe      func(ctx context.Context) error // nil when no cache is configured
	WarmTrigger     func()                          // asks the cache warmer for an immediate refresh (nil if none)
	ReadyTimeout    time.Duration                   // bound on the /readyz probes
	AllowedHosts    []string                        // Host headers allowed to reach admin endpoints
	AllowedCIDRS    []string                        // IPs allowed to reach admin endpoints
	TrustProxy      bool                            // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimitBurst  int                             // /ping burst per client IP, 0 disables
	RateLimitPerMin int                             // /ping refill per client IP per minute
}

// Now returns the current time from TimeNow, or time.Now when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
