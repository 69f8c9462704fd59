// Command sketchmentor is a voice-driven drawing tutor. It streams microphone
// audio and drawing-board snapshots to a realtime speech model, plays the
// mentor's replies, and can grade the finished sketch on exit.
//
// Raw s16le mono microphone audio is read from stdin and synthesized speech
// is written to stdout, so the command composes with external recorders and
// players:
//
//	arecord -f S16_LE -r 16000 -c 1 | sketchmentor | aplay -f S16_LE -r 24000 -c 1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/sketchmentor/internal/canvas"
	"github.com/MrWong99/sketchmentor/internal/capture"
	"github.com/MrWong99/sketchmentor/internal/config"
	"github.com/MrWong99/sketchmentor/internal/grading"
	"github.com/MrWong99/sketchmentor/internal/health"
	"github.com/MrWong99/sketchmentor/internal/observe"
	"github.com/MrWong99/sketchmentor/internal/tutor"
	"github.com/MrWong99/sketchmentor/pkg/audio"
	"github.com/MrWong99/sketchmentor/pkg/live"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	debugAddr := flag.String("debug-addr", "", "optional listen address for /healthz, /statusz and /metrics")
	gradeOnExit := flag.Bool("grade", true, "grade the sketch when the session ends")
	flag.Parse()

	// ── Environment + configuration ────────────────────────────────────────────
	// A .env file is optional; GEMINI_API_KEY from it overrides the config file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "sketchmentor: load .env: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sketchmentor: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sketchmentor: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Audio goes to stdout, so logs must stay on stderr.
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sketchmentor starting",
		"config", *configPath,
		"live_model", cfg.Gemini.LiveModel,
		"grading_model", cfg.Gemini.GradingModel,
		"log_level", cfg.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "sketchmentor",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Component wiring ──────────────────────────────────────────────────────
	board := canvas.NewBoard()
	if err := board.Resize(cfg.Board.Width, cfg.Board.Height); err != nil {
		slog.Error("failed to size drawing board", "err", err)
		return 1
	}

	clientOpts := []live.Option{live.WithModel(cfg.Gemini.LiveModel)}
	if cfg.Gemini.BaseURL != "" {
		clientOpts = append(clientOpts, live.WithBaseURL(cfg.Gemini.BaseURL))
	}
	client := live.New(cfg.Gemini.APIKey, clientOpts...)
	grader := grading.New(cfg.Gemini.APIKey, grading.WithModel(cfg.Gemini.GradingModel))

	ctrl := tutor.New(tutor.Options{
		Dialer:         client,
		Source:         capture.NewReaderSource(os.Stdin),
		Output:         audio.NewTimerOutput(writeStdout, cfg.Audio.PlaybackRate, 1),
		Board:          board,
		Grader:         grader,
		Voice:          cfg.Gemini.Voice,
		Rubric:         cfg.Rubric,
		PlaybackRate:   cfg.Audio.PlaybackRate,
		FrameSize:      cfg.Audio.FrameSize,
		SampleInterval: time.Duration(cfg.Board.SampleIntervalMS) * time.Millisecond,
		JPEGQuality:    cfg.Board.JPEGQuality,
		Logger:         logger,
	})

	// ── Debug server (optional) ───────────────────────────────────────────────
	if *debugAddr != "" {
		go serveDebug(*debugAddr, ctrl)
	}

	// ── Session ───────────────────────────────────────────────────────────────
	if err := ctrl.Start(ctx); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}
	slog.Info("session running — press Ctrl+C to finish")

	// Wait for a shutdown signal or a session failure.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if ctrl.Status() == tutor.StatusError {
				slog.Error("session failed", "err", ctrl.LastErr())
				return 1
			}
		}
	}

	// ── Grading + shutdown ────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	if *gradeOnExit {
		gradeCtx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		report, err := ctrl.Grade(gradeCtx)
		cancel()
		if err != nil {
			slog.Error("grading failed", "err", err)
		} else {
			fmt.Fprintf(os.Stderr, "\nGrade: %s\n%s\n\n", report.Grade, report.Feedback)
		}
	}

	if err := ctrl.Stop(); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// writeStdout is the playback sink: decoded PCM chunks go to stdout in
// schedule order for an external player.
func writeStdout(pcm []byte) {
	if _, err := os.Stdout.Write(pcm); err != nil {
		slog.Warn("writing playback audio", "err", err)
	}
}

// serveDebug exposes health probes, the session status and Prometheus
// metrics. Failures are logged, not fatal; the tutoring session does not
// depend on the debug surface.
func serveDebug(addr string, ctrl *tutor.Controller) {
	mux := http.NewServeMux()
	h := health.New(func() map[string]any {
		state := map[string]any{
			"status":     string(ctrl.Status()),
			"session_id": ctrl.SessionID(),
		}
		if err := ctrl.LastErr(); err != nil {
			state["error"] = err.Error()
		}
		return state
	})
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	slog.Info("debug server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("debug server error", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
