package main

import (
	"backdrop/internal/backdrop"
	"backdrop/internal/config"
	"backdrop/internal/db"
	"backdrop/internal/imageload"
	"context"
	"embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/wailsapp/wails/v3/pkg/application"
)

// Wails uses Go's `embed` package to embed the frontend files into the binary.
// Any files in the frontend/dist folder will be embedded into the binary and
// made available to the frontend.

//go:embed all:frontend/dist
var assets embed.FS

func init() {
	application.RegisterEvent[backdrop.State](backdrop.EventStateChanged)
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("backdrop exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	paths, err := config.ResolvePaths("backdrop")
	if err != nil {
		return err
	}

	settings, err := config.LoadSettings(paths.SettingsPath)
	if err != nil {
		logger.Warn("settings unreadable, using defaults", "path", paths.SettingsPath, "error", err)
		settings = config.DefaultSettings()
	}

	if imagePath, err := config.InstallDefaultImage(paths); err != nil {
		logger.Warn("default backdrop image unavailable", "error", err)
	} else {
		settings = settings.WithBundledFallback(imagePath)
	}

	sqliteDB, err := db.Bootstrap(ctx, paths.DBPath)
	if err != nil {
		return err
	}
	defer sqliteDB.Close()

	loader := imageload.NewLoader(imageload.Options{
		MaxBytes:  settings.MaxImageBytes,
		UserAgent: "backdrop/1.0",
		Logger:    logger.With("component", "imageload"),
	})
	orchestrator := backdrop.NewOrchestrator(loader, backdrop.Options{
		Extract:     settings.ExtractOptions(),
		Layers:      settings.Layers,
		FallbackURL: settings.FallbackSource(),
		LoadTimeout: settings.LoadTimeout(),
		Logger:      logger.With("component", "backdrop"),
	})
	defer orchestrator.Close()

	states := backdrop.NewStateRepository(sqliteDB)
	backdropService := NewBackdropService(orchestrator, states, settings, logger.With("component", "service"))
	imageService := NewImageService(orchestrator, settings.MaxImageBytes)

	watcher, err := backdrop.NewWatcher(orchestrator, settings.WatchDebounce(), logger.With("component", "watcher"))
	if err != nil {
		logger.Warn("backdrop watcher disabled", "error", err)
		watcher = nil
	} else {
		defer watcher.Close()
	}

	orchestrator.SetOnChange(func(state backdrop.State) {
		backdropService.recordState(state)
		if watcher != nil {
			watcher.HandleState(state)
		}
	})

	assetHandler := http.NewServeMux()
	assetHandler.Handle(imageRoutePath, imageService)
	assetHandler.Handle("/", application.AssetFileServerFS(assets))

	app := application.New(application.Options{
		Name:        "Backdrop",
		Description: "Ambient gradient backdrop",
		Services: []application.Service{
			application.NewService(backdropService),
		},
		Assets: application.AssetOptions{
			Handler: assetHandler,
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: true,
		},
	})

	orchestrator.SetEmitter(func(eventName string, payload any) {
		app.Event.Emit(eventName, payload)
	})

	if settings.RestoreOnStartup {
		backdropService.restore(ctx)
	}

	app.Window.NewWithOptions(application.WebviewWindowOptions{
		Title: "Backdrop",
		Mac: application.MacWindow{
			InvisibleTitleBarHeight: 50,
			Backdrop:                application.MacBackdropTranslucent,
			TitleBar:                application.MacTitleBarHiddenInset,
		},
		BackgroundColour: application.NewRGB(0, 0, 0),
		URL:              "/",
	})

	return app.Run()
}
