// Command carecoach runs the interview practice coach in the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/carecoach/internal/app"
	"github.com/MrWong99/carecoach/internal/config"
	"github.com/MrWong99/carecoach/internal/feedback"
	"github.com/MrWong99/carecoach/internal/health"
	"github.com/MrWong99/carecoach/pkg/device/portaudio"
	"github.com/MrWong99/carecoach/pkg/device/videodev"
	"github.com/MrWong99/carecoach/pkg/gateway"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "carecoach.yaml", "path to the YAML configuration file")
	noCamera := flag.Bool("no-camera", false, "disable the camera self-view")
	check := flag.Bool("check", false, "check configuration and devices, then exit")
	history := flag.Bool("history", false, "summarise the practice log, then exit")
	envFile := flag.String("env", ".env", "optional dotenv file providing API key variables")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	// Variables already set in the environment win over the dotenv file.
	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "carecoach: %v\n", err)
		return 1
	}
	cfg, watch, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carecoach: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The terminal belongs to the UI, so logs go to a file.
	logLevel := new(slog.LevelVar)
	logLevel.Set(app.SlogLevel(cfg.LogLevel))
	logOut, closeLog, err := openLog(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "carecoach: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("carecoach starting",
		"config", *configPath,
		"gateway", cfg.Gateway.Provider,
		"model", cfg.Gateway.Model,
		"log_level", cfg.LogLevel,
	)

	// ── Audio devices ─────────────────────────────────────────────────────────
	if err := portaudio.Initialize(); err != nil {
		slog.Warn("audio devices unavailable", "err", err)
	}
	defer func() {
		if err := portaudio.Terminate(); err != nil {
			slog.Warn("portaudio terminate", "err", err)
		}
	}()

	devices := app.Devices{
		Microphone: portaudio.NewMicrophone(cfg.Audio.CaptureSampleRate, cfg.Audio.UploadSampleRate, slog.Default()),
		Output:     portaudio.NewOutput,
	}
	if !*noCamera && cfg.Devices.Camera != "" {
		devices.Camera = videodev.New(cfg.Devices.Camera)
	}

	if *check {
		report := health.Run(context.Background(), app.Preflight(cfg, devices, nil)...)
		_, _ = report.WriteTo(os.Stdout)
		if !report.OK() {
			return 1
		}
		return 0
	}
	if *history {
		return printHistory(cfg.Interview.HistoryFile)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{
		app.WithDevices(devices),
		app.WithLogLevel(logLevel),
	}
	if watch {
		opts = append(opts, app.WithConfigWatch(*configPath))
	}
	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		fmt.Fprintf(os.Stderr, "carecoach: %v\n", err)
		return 1
	}

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		fmt.Fprintf(os.Stderr, "carecoach: %v\n", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return code
}

// loadConfig reads path. A missing file falls back to the defaults (with the
// API key taken from the environment) and is not watched.
func loadConfig(path string) (cfg *config.Config, watch bool, err error) {
	cfg, err = config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	cfg, err = config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		return nil, false, fmt.Errorf("config file %q not found and defaults are incomplete (copy configs/example.yaml to get started): %w", path, err)
	}
	return cfg, false, nil
}

func printHistory(path string) int {
	if path == "" {
		fmt.Fprintln(os.Stderr, "carecoach: interview.history_file is not set")
		return 1
	}
	records, skipped, err := feedback.NewFileStore(path).Records()
	if err != nil {
		fmt.Fprintf(os.Stderr, "carecoach: %v\n", err)
		return 1
	}
	sum := feedback.Summarize(records)
	fmt.Printf("%d answers, average %.1f/%d (best %d, worst %d)\n",
		sum.Answers, sum.Average, gateway.MaxScore, sum.Best, sum.Worst)
	for _, r := range gateway.Regions() {
		if n := sum.ByRegion[string(r)]; n > 0 {
			fmt.Printf("  %-13s %d\n", r, n)
		}
	}
	if skipped > 0 {
		fmt.Printf("%d unreadable lines skipped\n", skipped)
	}
	const recent = 5
	for _, r := range records[max(0, len(records)-recent):] {
		fmt.Printf("%s  %2d/%d  Q%d %s\n", r.Timestamp.Local().Format("2006-01-02 15:04"), r.Score, gateway.MaxScore, r.QuestionIndex, r.Question)
	}
	return 0
}

func openLog(path string) (io.Writer, func(), error) {
	if path == "-" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
