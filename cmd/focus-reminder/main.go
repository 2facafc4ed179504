// Command focus-reminder shows full-screen reminder overlays in the
// terminal on an interval or at fixed times of day.
//
// Usage:
//
//	focus-reminder                      # Overlay host, MCP control on 127.0.0.1:8765/mcp
//	focus-reminder --headless           # Log overlays instead of drawing them
//	focus-reminder --headless --stdio   # Serve the MCP tools on stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/notexe/focus-reminder/internal/app"
	"github.com/notexe/focus-reminder/internal/config"
	"github.com/notexe/focus-reminder/internal/control"
	"github.com/notexe/focus-reminder/internal/dispatch"
	"github.com/notexe/focus-reminder/internal/logging"
	"github.com/notexe/focus-reminder/internal/notify"
	"github.com/notexe/focus-reminder/internal/overlay"
	"github.com/notexe/focus-reminder/internal/reminder"
	"github.com/notexe/focus-reminder/internal/scheduler"
	"github.com/notexe/focus-reminder/internal/sound"
	"github.com/notexe/focus-reminder/internal/ui"
)

type options struct {
	configPath string
	envPath    string
	headless   bool
	stdio      bool
	logLevel   string
	noColor    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.GetDefaultConfigPath(), "Path to configuration file")
	flag.StringVar(&opts.envPath, "env-file", config.GetDefaultEnvPath(), "Path to .env file")
	flag.BoolVar(&opts.headless, "headless", false, "Log overlays instead of drawing them")
	flag.BoolVar(&opts.stdio, "stdio", false, "Serve the MCP control tools on stdio (requires --headless)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (overrides config)")
	flag.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath, opts.envPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Apply CLI flag overrides
	if opts.headless {
		cfg.UI.Headless = true
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.noColor {
		cfg.UI.ColoredOutput = false
	}
	fallback := false
	if !cfg.UI.Headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		cfg.UI.Headless = true
		fallback = true
	}
	if opts.stdio && !cfg.UI.Headless {
		return errors.New("--stdio needs --headless: the overlay host owns the terminal")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, logCloser, err := logging.New(cfg.Log, cfg.UI.Headless)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if fallback {
		log.Warn().Msg("stdout is not a terminal, running headless")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	store, err := reminder.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	seed := reminder.SoundSettings{Enabled: cfg.Sound.Enabled, Volume: cfg.Sound.Volume}
	if err := store.SeedSoundSettings(ctx, seed); err != nil {
		log.Warn().Err(err).Msg("failed to seed sound settings")
	}

	clock := clockwork.NewRealClock()

	var host *ui.Host
	var surface overlay.Surface
	if cfg.UI.Headless {
		surface = ui.NewLogSurface(logging.Component(log, "surface"))
	} else {
		addr := ""
		if cfg.Control.Enabled {
			addr = "http://" + cfg.Control.Addr + control.EndpointPath
		}
		host = ui.NewHost(ui.NewFormatter(cfg.UI.ColoredOutput), addr)
		surface = host
	}

	player := newPlayer(cfg.Sound, log)
	repeat := time.Duration(cfg.Sound.RepeatSeconds) * time.Second
	loopLog := logging.Component(log, "sound")

	overlays := overlay.NewManager(surface,
		overlay.WithClock(clock),
		overlay.WithLogger(logging.Component(log, "overlay")),
		overlay.WithSoundLoops(func() overlay.SoundLoop {
			return sound.NewLoop(player, sound.WithClock(clock), sound.WithRepeat(repeat), sound.WithLogger(loopLog))
		}),
	)

	dispatcher := dispatch.New(overlays,
		dispatch.WithSettings(store),
		dispatch.WithNotifier(newNotifier(cfg.Notify)),
		dispatch.WithTitle(cfg.Notify.Title),
		dispatch.WithLogger(logging.Component(log, "dispatch")),
	)

	registry := scheduler.New(dispatcher,
		scheduler.WithClock(clock),
		scheduler.WithLogger(logging.Component(log, "scheduler")),
	)

	svc := app.NewService(store, registry, overlays, dispatcher, logging.Component(log, "app"), app.WithPlayer(player))
	if host != nil {
		svc.Subscribe(host.SetReminders)
	}
	// Timers and overlays go before the store closes.
	defer svc.Shutdown()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	var ctl *control.Server
	if cfg.Control.Enabled {
		ctl = control.NewServer(svc, logging.Component(log, "control"))
	}

	switch {
	case ctl != nil && opts.stdio:
		return ctl.ServeStdio()

	case ctl != nil:
		go func() {
			if err := ctl.ServeHTTP(cfg.Control.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("control server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ctl.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("control server shutdown")
			}
		}()
	}

	if host == nil {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		return nil
	}

	go func() {
		<-ctx.Done()
		host.Quit()
	}()
	return host.Run()
}

// newPlayer falls back to the system beep when the configured player is
// unavailable.
func newPlayer(cfg config.SoundConfig, log zerolog.Logger) sound.Player {
	player, err := sound.NewPlayer(cfg.Player, cfg.File)
	if err != nil {
		log.Warn().Err(err).Msg("sound player unavailable, using system beep")
		return sound.BeepPlayer{}
	}
	return player
}

func newNotifier(cfg config.NotifyConfig) notify.Notifier {
	var channels notify.Multi
	if cfg.Enabled {
		channels = append(channels, notify.NewDesktop(cfg.Icon))
	}
	if cfg.Telegram.Enabled() {
		channels = append(channels, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.BaseURL))
	}
	return channels
}
