// Command display runs the waiting-room announcer. It follows the queue
// server and speaks every new call through the local audio device.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lorrc/clinic-queue/internal/config"
	"github.com/lorrc/clinic-queue/internal/core/domain"
	"github.com/lorrc/clinic-queue/internal/display"
	"github.com/lorrc/clinic-queue/internal/display/audio"
	"github.com/lorrc/clinic-queue/internal/infrastructure/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	cfg *config.DisplayConfig

	rootCmd = &cobra.Command{
		Use:           "display",
		Short:         "Announce clinic queue calls in the waiting room",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.Validate()
		},
		RunE: runDisplay,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Follow the server and play announcements",
		Args:  cobra.NoArgs,
		RunE:  runDisplay,
	}

	enableAudioCmd = &cobra.Command{
		Use:   "enable-audio",
		Short: "Play a test segment and turn announcements on",
		Args:  cobra.NoArgs,
		RunE:  runEnableAudio,
	}

	disableAudioCmd = &cobra.Command{
		Use:   "disable-audio",
		Short: "Turn announcements off",
		Args:  cobra.NoArgs,
		RunE:  runDisableAudio,
	}
)

func init() {
	var err error
	cfg, err = config.LoadDisplay()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "queue server base URL")
	flags.StringVar(&cfg.SegmentsDir, "segments-dir", cfg.SegmentsDir, "play recordings from this directory instead of the server")
	flags.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "where downloaded recordings are kept")
	flags.StringVar(&cfg.StateFile, "state-file", cfg.StateFile, "display state file")
	flags.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "output sample rate (44100 or 48000)")
	flags.IntVar(&cfg.Channels, "channels", cfg.Channels, "output channels (1 or 2)")
	flags.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, text, pretty)")

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().DurationVarP(&cfg.PollInterval, "interval", "i", cfg.PollInterval, "snapshot poll interval")
		cmd.Flags().DurationVar(&cfg.SegmentPause, "pause", cfg.SegmentPause, "silence between segments")
		cmd.Flags().BoolVar(&cfg.UseWebSocket, "websocket", cfg.UseWebSocket, "wake up on server push events")
	}

	rootCmd.AddCommand(runCmd, enableAudioCmd, disableAudioCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return logging.NewLogger(logging.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Output:      os.Stderr,
		ServiceName: "clinic-queue-display",
		Environment: "display",
	})
}

func openState() (*display.StateFile, error) {
	path := cfg.StateFile
	if path == "" {
		var err error
		if path, err = display.DefaultStatePath(); err != nil {
			return nil, fmt.Errorf("resolve state file: %w", err)
		}
	}
	return display.OpenStateFile(path)
}

// openSource prefers a local directory. Otherwise segments come from the
// server and are kept in the disk cache for when it is unreachable.
func openSource(logger *slog.Logger) (audio.Source, func(), error) {
	if cfg.SegmentsDir != "" {
		return audio.NewDirSource(os.DirFS(cfg.SegmentsDir)), func() {}, nil
	}

	dir := cfg.CacheDir
	if dir == "" {
		var err error
		if dir, err = display.DefaultCacheDir(); err != nil {
			return nil, nil, fmt.Errorf("resolve cache directory: %w", err)
		}
	}
	cache, err := audio.NewDiskCache(dir)
	if err != nil {
		return nil, nil, err
	}

	upstream := audio.NewHTTPSource(cfg.ServerURL, &http.Client{Timeout: 10 * time.Second})
	return audio.NewCachingSource(upstream, cache, logger), cache.Close, nil
}

func openPlayer(logger *slog.Logger) (*audio.Player, func(), error) {
	source, closeSource, err := openSource(logger)
	if err != nil {
		return nil, nil, err
	}

	playerConfig := audio.DefaultPlayerConfig()
	playerConfig.SampleRate = cfg.SampleRate
	playerConfig.Channels = cfg.Channels

	player, err := audio.NewPlayer(playerConfig, source, logger)
	if err != nil {
		closeSource()
		return nil, nil, err
	}
	return player, closeSource, nil
}

func runDisplay(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := openState()
	if err != nil {
		return err
	}
	stopWatch, err := state.Watch(logger)
	if err != nil {
		logger.Warn("audio setting changes will need a restart", "error", err)
	} else {
		defer func() {
			if err := stopWatch(); err != nil {
				logger.Warn("failed to stop state watcher", "error", err)
			}
		}()
	}

	if !state.AudioEnabled() {
		logger.Warn("audio is disabled, calls will be tracked silently; run enable-audio to turn it on",
			"state_file", state.Path(),
		)
	}

	player, closeSource, err := openPlayer(logger)
	if err != nil {
		return err
	}
	defer closeSource()

	if err := player.Preload(ctx, domain.AnnouncementSegmentIDs()); err != nil {
		logger.Warn("some segments could not be preloaded", "error", err)
	}

	scheduler := display.NewAnnouncementScheduler(
		display.NewSnapshotClient(cfg.ServerURL, nil),
		player,
		state,
		logger,
		display.WithSegmentPause(cfg.SegmentPause),
	)

	triggers := make(chan struct{}, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(ctx, cfg.PollInterval, triggers)
	})

	if cfg.UseWebSocket {
		watcher, err := display.NewStateWatcher(cfg.ServerURL, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watcher.Run(ctx, triggers)
		})
	}

	logger.Info("display started",
		"server", cfg.ServerURL,
		"interval", cfg.PollInterval,
		"websocket", cfg.UseWebSocket,
		"audio_enabled", state.AudioEnabled(),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("display stopped")
	return nil
}

func runEnableAudio(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	state, err := openState()
	if err != nil {
		return err
	}

	player, closeSource, err := openPlayer(logger)
	if err != nil {
		return err
	}
	defer closeSource()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := display.EnableAudio(ctx, player, state, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Audio enabled (%s)\n", state.Path())
	return nil
}

func runDisableAudio(cmd *cobra.Command, _ []string) error {
	state, err := openState()
	if err != nil {
		return err
	}
	if err := display.DisableAudio(state, time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Audio disabled (%s)\n", state.Path())
	return nil
}
