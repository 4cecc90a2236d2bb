package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"backdrop/internal/gradient"
	"backdrop/internal/imageload"
	"backdrop/internal/palette"

	"github.com/samber/lo"
)

const (
	splitPolicyDropMedian = "drop-median"
	splitPolicyKeepMedian = "keep-median"
)

// FallbackNone disables the fallback image.
const FallbackNone = "none"

var defaultSettings = Settings{
	Depth:            2,
	SampleSize:       palette.DefaultSampleSize,
	SplitPolicy:      splitPolicyDropMedian,
	FallbackURL:      "",
	LoadTimeoutMS:    15000,
	MaxImageBytes:    imageload.DefaultMaxBytes,
	WatchDebounceMS:  250,
	RestoreOnStartup: true,
}

type Settings struct {
	Depth            int              `json:"depth"`
	SampleSize       int              `json:"sampleSize"`
	SplitPolicy      string           `json:"splitPolicy"`
	FallbackURL      string           `json:"fallbackUrl"`
	LoadTimeoutMS    int              `json:"loadTimeoutMs"`
	MaxImageBytes    int64            `json:"maxImageBytes"`
	WatchDebounceMS  int              `json:"watchDebounceMs"`
	RestoreOnStartup bool             `json:"restoreOnStartup"`
	Layers           []gradient.Layer `json:"layers,omitempty"`
}

func DefaultSettings() Settings {
	settings := defaultSettings
	settings.Layers = gradient.DefaultLayers()
	return settings
}

// LoadSettings reads path on top of the defaults. A missing file is not an
// error.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	if err := json.Unmarshal(body, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}

	return settings.Normalized(), nil
}

func (s Settings) Normalized() Settings {
	normalized := s

	if normalized.Depth < 0 {
		normalized.Depth = defaultSettings.Depth
	}
	normalized.Depth = lo.Clamp(normalized.Depth, 0, palette.MaxDepth)

	if normalized.SampleSize <= 0 {
		normalized.SampleSize = defaultSettings.SampleSize
	}
	normalized.SampleSize = lo.Clamp(normalized.SampleSize, 4, 64)

	switch strings.ToLower(strings.TrimSpace(normalized.SplitPolicy)) {
	case splitPolicyKeepMedian:
		normalized.SplitPolicy = splitPolicyKeepMedian
	default:
		normalized.SplitPolicy = splitPolicyDropMedian
	}

	normalized.FallbackURL = strings.TrimSpace(normalized.FallbackURL)
	switch {
	case strings.EqualFold(normalized.FallbackURL, FallbackNone):
		normalized.FallbackURL = FallbackNone
	case normalized.FallbackURL != "" && !imageload.IsLoadable(normalized.FallbackURL):
		normalized.FallbackURL = ""
	}

	if normalized.LoadTimeoutMS <= 0 {
		normalized.LoadTimeoutMS = defaultSettings.LoadTimeoutMS
	}
	normalized.LoadTimeoutMS = lo.Clamp(normalized.LoadTimeoutMS, 500, 120000)

	if normalized.MaxImageBytes <= 0 {
		normalized.MaxImageBytes = defaultSettings.MaxImageBytes
	}

	if normalized.WatchDebounceMS <= 0 {
		normalized.WatchDebounceMS = defaultSettings.WatchDebounceMS
	}
	normalized.WatchDebounceMS = lo.Clamp(normalized.WatchDebounceMS, 10, 10000)

	if len(normalized.Layers) == 0 {
		normalized.Layers = gradient.DefaultLayers()
	}

	return normalized
}

func (s Settings) ExtractOptions() palette.ExtractOptions {
	options := palette.ExtractOptions{
		Depth:       s.Depth,
		SampleSize:  s.SampleSize,
		SplitPolicy: palette.DropMedian,
	}
	if s.SplitPolicy == splitPolicyKeepMedian {
		options.SplitPolicy = palette.KeepMedian
	}
	return palette.NormalizeExtractOptions(options)
}

func (s Settings) LoadTimeout() time.Duration {
	return time.Duration(s.LoadTimeoutMS) * time.Millisecond
}

func (s Settings) WatchDebounce() time.Duration {
	return time.Duration(s.WatchDebounceMS) * time.Millisecond
}

// WithBundledFallback uses path as the fallback when none is configured.
func (s Settings) WithBundledFallback(path string) Settings {
	if s.FallbackURL == "" {
		s.FallbackURL = path
	}
	return s
}

// FallbackSource is the fallback handed to the loader; empty when disabled.
func (s Settings) FallbackSource() string {
	if s.FallbackURL == FallbackNone {
		return ""
	}
	return s.FallbackURL
}
