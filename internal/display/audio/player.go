package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

// pollInterval is how often Play checks whether oto finished a segment.
const pollInterval = 10 * time.Millisecond

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BufferSize time.Duration
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
	}
}

func validateConfig(config PlayerConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size cannot be negative")
	}
	return nil
}

// Player plays segments through the system audio device. Segments are
// played one at a time; Play blocks until the segment ends.
type Player struct {
	context *oto.Context
	library *Library
	logger  *slog.Logger

	// playing serializes access to the device
	playing sync.Mutex
}

var (
	contextOnce sync.Once
	sharedCtx   *oto.Context
	contextErr  error
)

// NewPlayer opens the audio device. oto allows one context per process, so
// every Player shares it and later configs must match the first.
func NewPlayer(config PlayerConfig, source Source, logger *slog.Logger) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	contextOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: config.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   config.BufferSize,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			contextErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		// Wait for the device to be ready
		<-readyChan
		sharedCtx = ctx
	})
	if contextErr != nil {
		return nil, contextErr
	}

	return &Player{
		context: sharedCtx,
		library: NewLibrary(source, config.SampleRate, config.Channels),
		logger:  logger.With("component", "audio_player"),
	}, nil
}

// Play plays one segment and returns when it has finished. Cancelling ctx
// stops the segment immediately.
func (p *Player) Play(ctx context.Context, segment string) error {
	pcm, err := p.library.Load(ctx, segment)
	if err != nil {
		return err
	}

	p.playing.Lock()
	defer p.playing.Unlock()

	player := p.context.NewPlayer(bytes.NewReader(pcm.Data))
	defer func() {
		if err := player.Close(); err != nil {
			p.logger.Debug("failed to close oto player", "error", err)
		}
	}()

	started := time.Now()
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("%w: segment %q: %w", apperrors.ErrPlayback, segment, err)
	}

	p.logger.Debug("segment played",
		"segment", segment,
		"duration", pcm.Duration(),
		"elapsed", time.Since(started),
	)
	return nil
}

// Preload decodes segments ahead of the first announcement. Failures are
// returned joined; successfully loaded segments stay cached.
func (p *Player) Preload(ctx context.Context, segments []string) error {
	var errs []error
	for _, segment := range segments {
		if _, err := p.library.Load(ctx, segment); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
