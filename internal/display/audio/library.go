package audio

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/lorrc/clinic-queue/internal/core/errors"
)

// Library decodes segments from a Source and keeps them in memory. Every
// segment must match the output format; oto does not resample.
type Library struct {
	source     Source
	sampleRate int
	channels   int

	mu      sync.Mutex
	decoded map[string]PCM
}

// NewLibrary creates a library producing PCM for the given output format.
func NewLibrary(source Source, sampleRate, channels int) *Library {
	return &Library{
		source:     source,
		sampleRate: sampleRate,
		channels:   channels,
		decoded:    make(map[string]PCM),
	}
}

// Load returns the decoded samples of a segment, fetching them on first
// use. Failed loads are not cached, so the next call retries.
func (l *Library) Load(ctx context.Context, segment string) (PCM, error) {
	l.mu.Lock()
	pcm, ok := l.decoded[segment]
	l.mu.Unlock()
	if ok {
		return pcm, nil
	}

	raw, err := l.source.Fetch(ctx, segment)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: %w", apperrors.ErrPlayback, err)
	}

	pcm, err = DecodeWAV(raw)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: segment %q: %w", apperrors.ErrPlayback, segment, err)
	}
	if pcm.SampleRate != l.sampleRate || pcm.Channels != l.channels {
		return PCM{}, fmt.Errorf("%w: segment %q is %d Hz/%d ch, output is %d Hz/%d ch",
			apperrors.ErrPlayback, segment, pcm.SampleRate, pcm.Channels, l.sampleRate, l.channels)
	}

	l.mu.Lock()
	l.decoded[segment] = pcm
	l.mu.Unlock()
	return pcm, nil
}

// Cached reports how many segments are decoded in memory.
func (l *Library) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.decoded)
}
