package display

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/clinic-queue/internal/core/domain"
)

var enabledAt = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

func TestStateFileMissingIsDisabled(t *testing.T) {
	state, err := OpenStateFile(filepath.Join(t.TempDir(), "display.yaml"))

	require.NoError(t, err)
	assert.False(t, state.AudioEnabled())
}

func TestStateFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "display.yaml")

	state, err := OpenStateFile(path)
	require.NoError(t, err)
	require.NoError(t, state.SetAudioEnabled(true, enabledAt))
	assert.True(t, state.AudioEnabled())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "audio_enabled: true")

	reopened, err := OpenStateFile(path)
	require.NoError(t, err)
	assert.True(t, reopened.AudioEnabled())
	require.NotNil(t, reopened.State().EnabledAt)
	assert.True(t, reopened.State().EnabledAt.Equal(enabledAt))

	require.NoError(t, reopened.SetAudioEnabled(false, enabledAt))
	again, err := OpenStateFile(path)
	require.NoError(t, err)
	assert.False(t, again.AudioEnabled())
	assert.Nil(t, again.State().EnabledAt)
}

func TestStateFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audio_enabled: [not, a, bool"), 0o644))

	_, err := OpenStateFile(path)

	assert.Error(t, err)
}

func TestEnableAudio(t *testing.T) {
	t.Run("probe plays", func(t *testing.T) {
		state, err := OpenStateFile(filepath.Join(t.TempDir(), "display.yaml"))
		require.NoError(t, err)
		player := &fakePlayer{}

		require.NoError(t, EnableAudio(context.Background(), player, state, enabledAt))

		assert.Equal(t, []string{ProbeSegment}, player.take())
		assert.True(t, state.AudioEnabled())
	})

	t.Run("probe fails", func(t *testing.T) {
		state, err := OpenStateFile(filepath.Join(t.TempDir(), "display.yaml"))
		require.NoError(t, err)
		player := &fakePlayer{failOn: map[string]error{ProbeSegment: errors.New("no device")}}

		err = EnableAudio(context.Background(), player, state, enabledAt)

		assert.Error(t, err)
		assert.False(t, state.AudioEnabled())
		assert.NoFileExists(t, state.Path())
	})

	t.Run("disable", func(t *testing.T) {
		state, err := OpenStateFile(filepath.Join(t.TempDir(), "display.yaml"))
		require.NoError(t, err)
		require.NoError(t, state.SetAudioEnabled(true, enabledAt))

		require.NoError(t, DisableAudio(state, enabledAt))

		assert.False(t, state.AudioEnabled())
	})
}

func TestStateFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")
	running, err := OpenStateFile(path)
	require.NoError(t, err)
	other, err := OpenStateFile(path)
	require.NoError(t, err)

	require.NoError(t, other.SetAudioEnabled(true, enabledAt))
	assert.False(t, running.AudioEnabled())

	require.NoError(t, running.Reload())
	assert.True(t, running.AudioEnabled())

	require.NoError(t, os.Remove(path))
	require.NoError(t, running.Reload())
	assert.False(t, running.AudioEnabled())
}

func TestRunningDisplayFollowsEnableFromAnotherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.yaml")

	running, err := OpenStateFile(path)
	require.NoError(t, err)
	stop, err := running.Watch(discardLogger())
	require.NoError(t, err)
	defer func() { assert.NoError(t, stop()) }()

	fetcher := &fakeFetcher{}
	player := &fakePlayer{}
	scheduler := newTestScheduler(fetcher, player, running)
	ctx := context.Background()

	// The command line opens its own handle on the same file.
	cli, err := OpenStateFile(path)
	require.NoError(t, err)
	require.NoError(t, EnableAudio(ctx, player, cli, enabledAt))
	assert.Equal(t, []string{ProbeSegment}, player.take())

	assert.Eventually(t, running.AudioEnabled, 2*time.Second, 10*time.Millisecond)

	fetcher.set("e1", 1, "N001", domain.CategoryNormal)
	assert.Equal(t, TickPlayed, scheduler.Tick(ctx))
	assert.Equal(t, n001Segments, player.take())

	require.NoError(t, DisableAudio(cli, enabledAt))
	assert.Eventually(t, func() bool { return !running.AudioEnabled() }, 2*time.Second, 10*time.Millisecond)

	fetcher.set("e1", 2, "N001", domain.CategoryNormal)
	assert.Equal(t, TickSilent, scheduler.Tick(ctx))
	assert.Empty(t, player.take())
}
