package display

import (
	"context"
	"fmt"
	"time"
)

// ProbeSegment is played to confirm the audio device works before
// announcements are enabled.
const ProbeSegment = "1"

// EnableAudio plays the probe segment and, if it played, persists the
// audio flag.
func EnableAudio(ctx context.Context, player SegmentPlayer, state *StateFile, now time.Time) error {
	if err := player.Play(ctx, ProbeSegment); err != nil {
		return fmt.Errorf("probe segment: %w", err)
	}
	if err := state.SetAudioEnabled(true, now); err != nil {
		return fmt.Errorf("persist audio flag: %w", err)
	}
	return nil
}

// DisableAudio clears the audio flag.
func DisableAudio(state *StateFile, now time.Time) error {
	if err := state.SetAudioEnabled(false, now); err != nil {
		return fmt.Errorf("persist audio flag: %w", err)
	}
	return nil
}
