package display

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

// DefaultSegmentPause is the silence before each segment.
const DefaultSegmentPause = 50 * time.Millisecond

// SegmentPlayer plays one segment and returns when it has finished.
type SegmentPlayer interface {
	Play(ctx context.Context, segment string) error
}

// TickOutcome describes what a scheduler tick did.
type TickOutcome int

const (
	// TickSkipped means another tick was still running.
	TickSkipped TickOutcome = iota
	// TickIdle means there was nothing new to announce.
	TickIdle
	// TickPlayed means a full announcement was played.
	TickPlayed
	// TickSilent means the version advanced without playback because
	// audio is not enabled.
	TickSilent
	// TickFailed means the snapshot could not be fetched.
	TickFailed
	// TickCancelled means the context ended mid-announcement.
	TickCancelled
)

func (o TickOutcome) String() string {
	switch o {
	case TickSkipped:
		return "skipped"
	case TickIdle:
		return "idle"
	case TickPlayed:
		return "played"
	case TickSilent:
		return "silent"
	case TickFailed:
		return "failed"
	case TickCancelled:
		return "cancelled"
	}
	return "unknown"
}

// AnnouncementScheduler decides when the display announces a call. It
// remembers the last announcement version it finished playing and plays
// again whenever the server's version moves past it.
type AnnouncementScheduler struct {
	fetcher SnapshotFetcher
	player  SegmentPlayer
	gate    AudioGate
	logger  *slog.Logger
	pause   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error

	inFlight atomic.Bool

	mu         sync.Mutex
	epoch      string
	lastPlayed uint64
}

// SchedulerOption configures an AnnouncementScheduler.
type SchedulerOption func(*AnnouncementScheduler)

// WithSegmentPause sets the silence before each segment.
func WithSegmentPause(d time.Duration) SchedulerOption {
	return func(s *AnnouncementScheduler) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// NewAnnouncementScheduler creates a scheduler starting at version 0.
func NewAnnouncementScheduler(
	fetcher SnapshotFetcher,
	player SegmentPlayer,
	gate AudioGate,
	logger *slog.Logger,
	opts ...SchedulerOption,
) *AnnouncementScheduler {
	s := &AnnouncementScheduler{
		fetcher: fetcher,
		player:  player,
		gate:    gate,
		logger:  logger.With("component", "announcement_scheduler"),
		pause:   DefaultSegmentPause,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LastPlayed returns the epoch and version of the last finished
// announcement.
func (s *AnnouncementScheduler) LastPlayed() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch, s.lastPlayed
}

// Tick fetches the snapshot and plays the current call if its version is
// new. Only one tick runs at a time; overlapping calls return TickSkipped.
func (s *AnnouncementScheduler) Tick(ctx context.Context) TickOutcome {
	if !s.inFlight.CompareAndSwap(false, true) {
		return TickSkipped
	}
	defer s.inFlight.Store(false)

	snapshot, err := s.fetcher.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return TickCancelled
		}
		s.logger.Warn("failed to fetch snapshot", "error", err)
		return TickFailed
	}

	last := s.syncEpoch(snapshot.Epoch)
	version := snapshot.AnnouncementVersion

	switch {
	case version == last:
		return TickIdle
	case version < last:
		// Same epoch but behind us: the server lost state without a
		// reset. Follow it down without replaying.
		s.logger.Info("announcement version moved backwards, resyncing",
			"from", last,
			"to", version,
		)
		s.advance(snapshot.Epoch, version)
		return TickIdle
	}

	if snapshot.Current == nil {
		s.advance(snapshot.Epoch, version)
		return TickIdle
	}

	if !s.gate.AudioEnabled() {
		s.logger.Debug("audio not enabled, skipping announcement",
			"display_code", snapshot.Current.DisplayCode,
			"version", version,
		)
		s.advance(snapshot.Epoch, version)
		return TickSilent
	}

	segments, err := domain.AnnouncementSegments(snapshot.Current.DisplayCode, domain.Category(snapshot.Current.Category))
	if err != nil {
		s.logger.Error("cannot announce current call",
			"display_code", snapshot.Current.DisplayCode,
			"category", snapshot.Current.Category,
			"error", err,
		)
		s.advance(snapshot.Epoch, version)
		return TickIdle
	}

	if !s.play(ctx, segments) {
		s.logger.Info("announcement interrupted", "display_code", snapshot.Current.DisplayCode, "version", version)
		return TickCancelled
	}

	s.advance(snapshot.Epoch, version)
	s.logger.Info("announcement played",
		"display_code", snapshot.Current.DisplayCode,
		"screening_label", snapshot.Current.ScreeningLabel,
		"version", version,
	)
	return TickPlayed
}

// play runs the segments in order. A failing segment is logged and skipped.
// It returns false if ctx ended first.
func (s *AnnouncementScheduler) play(ctx context.Context, segments []string) bool {
	for _, segment := range segments {
		if err := s.sleep(ctx, s.pause); err != nil {
			return false
		}
		if err := s.player.Play(ctx, segment); err != nil {
			if ctx.Err() != nil {
				return false
			}
			s.logger.Warn("segment playback failed", "segment", segment, "error", err)
		}
	}
	return ctx.Err() == nil
}

// syncEpoch adopts a new server epoch, forgetting the last played version.
func (s *AnnouncementScheduler) syncEpoch(epoch string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		if s.epoch != "" {
			s.logger.Info("server epoch changed, announcements restart", "epoch", epoch)
		}
		s.epoch = epoch
		s.lastPlayed = 0
	}
	return s.lastPlayed
}

func (s *AnnouncementScheduler) advance(epoch string, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch == epoch {
		s.lastPlayed = version
	}
}

// Run ticks immediately, then on every interval and every trigger until ctx
// is done. Ticks run in their own goroutines so a trigger arriving during a
// long announcement is dropped by the in-flight guard instead of queueing.
func (s *AnnouncementScheduler) Run(ctx context.Context, interval time.Duration, triggers <-chan struct{}) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func(reason string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if outcome := s.Tick(ctx); outcome != TickIdle {
				s.logger.Debug("tick", "reason", reason, "outcome", outcome.String())
			}
		}()
	}

	tick("startup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick("interval")
		case <-triggers:
			tick("push")
		}
	}
}
