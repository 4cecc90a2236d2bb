package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	BaseDir          string
	DBPath           string
	SettingsPath     string
	DefaultImagePath string
}

func ResolvePaths(appSlug string) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}

	return PathsIn(filepath.Join(configDir, appSlug))
}

func PathsIn(baseDir string) (Paths, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return Paths{
		BaseDir:          baseDir,
		DBPath:           filepath.Join(baseDir, "backdrop.db"),
		SettingsPath:     filepath.Join(baseDir, "settings.json"),
		DefaultImagePath: filepath.Join(baseDir, "default.png"),
	}, nil
}
