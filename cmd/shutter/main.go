// Command shutter runs a V4L2 camera with live preview and MP4 recording,
// controlled from a web UI or, with -tui, from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zoobzio/capitan"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
	"github.com/zoobzio/shutter/internal/config"
	"github.com/zoobzio/shutter/internal/tui"
	"github.com/zoobzio/shutter/pkg/output"
	"github.com/zoobzio/shutter/pkg/v4l2"
	"github.com/zoobzio/shutter/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	useTUI := flag.Bool("tui", false, "run the terminal UI alongside the web server")
	logFile := flag.String("log-file", "shutter.log", "log destination while the terminal UI is running")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shutter: %v\n", err)
		os.Exit(1)
	}

	logOutput := "stderr"
	if *useTUI {
		logOutput = *logFile
	}
	logger, err := newLogger(cfg.Log, logOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shutter: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *useTUI, logger); err != nil {
		logger.Error("shutter stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, useTUI bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hookSignals(logger)
	defer capitan.Shutdown()

	manager := v4l2.NewManager().
		V4L2Ctl(cfg.Camera.V4L2Ctl).
		FFmpeg(cfg.Camera.FFmpeg).
		Logger(logger.Named("v4l2"))
	for path, name := range cfg.Camera.Facing {
		facing, err := shutter.ParseFacing(name)
		if err != nil {
			return fmt.Errorf("camera %s: %w", path, err)
		}
		manager.Facing(path, facing)
	}

	resolver := output.NewResolver(cfg.Output.Root).
		RelativePath(cfg.Output.RelativePath).
		Prefix(cfg.Output.Prefix).
		MimeType(cfg.Output.MimeType)
	gallery := output.NewGallery(resolver.Dir()).Logger(logger.Named("gallery"))

	exec := shutter.NewExecutor("camera").
		DrainTimeout(cfg.Executor.DrainTimeout.Std()).
		Logger(logger)
	ctrl := shutter.NewController(manager, exec, v4l2.RecorderFactory(cfg.Camera.FFmpeg, logger.Named("encoder")), resolver).
		Logger(logger.Named("controller")).
		ErrorHistorySize(cfg.ErrorHistory).
		Context(ctx)
	screen := shutter.NewScreen(exec, ctrl).Logger(logger)

	preview := v4l2.NewFrameBuffer("preview")
	srv := web.New(cfg.Server.Addr, screen).
		Preview(preview).
		Recordings(gallery).
		Logger(logger.Named("web"))
	ctrl.Observer(srv.Hub())

	entries, err := gallery.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for e := range entries {
			logger.Info("recording available", zap.String("path", e.Path), zap.Int64("size", e.Size))
		}
	}()

	report("resume", screen.OnResume(), logger)
	report("preview", screen.SurfaceAvailable(preview), logger)

	srvErr := make(chan error, 1)
	go func() {
		err := srv.Start(ctx)
		if err != nil {
			stop()
		}
		srvErr <- err
	}()

	var uiErr error
	if useTUI {
		p := tea.NewProgram(tui.New(screen), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			uiErr = fmt.Errorf("terminal ui: %w", err)
		}
		stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	var errs []error
	if uiErr != nil {
		errs = append(errs, uiErr)
	}
	if screen.Recording() {
		// Close discards a recording in progress; finish the file first.
		finishCtx, cancel := context.WithTimeout(context.Background(), cfg.Executor.DrainTimeout.Std())
		if err := ctrl.StopRecording().Wait(finishCtx); err != nil {
			errs = append(errs, fmt.Errorf("finish recording: %w", err))
		}
		cancel()
	}
	if err := screen.OnDestroy(); err != nil {
		errs = append(errs, err)
	}
	if err := <-srvErr; err != nil {
		errs = append(errs, err)
	}
	logger.Info("shutter stopped")
	return errors.Join(errs...)
}

// report logs the outcome of f once it settles.
func report(op string, f *shutter.Future, logger *zap.Logger) {
	go func() {
		<-f.Done()
		if err := f.Err(); err != nil {
			logger.Warn("camera operation failed", zap.String("operation", op), zap.Error(err))
		}
	}()
}
