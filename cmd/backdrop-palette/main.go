package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"backdrop/internal/gradient"
	"backdrop/internal/imageload"
	"backdrop/internal/palette"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
)

type CLICmd struct {
	Source     string        `arg:"" help:"Image path, file:// URL or http(s) URL"`
	Depth      int           `help:"Median-cut depth (0-4)" default:"2"`
	Fallback   string        `help:"Image tried once if the source cannot be loaded"`
	SampleSize int           `help:"Edge of the square sampling canvas" default:"16"`
	KeepMedian bool          `help:"Keep the median pixel in the upper bucket at each split" default:"false"`
	JSON       bool          `name:"json" help:"Print the result as JSON" default:"false"`
	Timeout    time.Duration `help:"Load timeout" default:"15s"`
	Verbose    bool          `short:"v" help:"Enable debug logging" default:"false"`
}

type output struct {
	Source       string                 `json:"source"`
	UsedFallback bool                   `json:"usedFallback"`
	Format       string                 `json:"format"`
	Width        int                    `json:"width"`
	Height       int                    `json:"height"`
	Palette      []palette.PaletteColor `json:"palette"`
	Background   string                 `json:"background,omitempty"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	source, err := resolveSource(c.Source)
	if err != nil {
		return fmt.Errorf("invalid source %q: %w", c.Source, err)
	}
	c.Source = source

	if c.Fallback != "" {
		fallback, err := resolveSource(c.Fallback)
		if err != nil {
			return fmt.Errorf("invalid fallback %q: %w", c.Fallback, err)
		}
		c.Fallback = fallback
	}

	switch {
	case c.Depth < 0 || c.Depth > palette.MaxDepth:
		return fmt.Errorf("invalid depth: %d", c.Depth)
	case c.SampleSize <= 0:
		return fmt.Errorf("invalid sample size: %d", c.SampleSize)
	case c.Timeout <= 0:
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}

	return nil
}

func (c *CLICmd) Run(logger *slog.Logger) error {
	return c.run(context.Background(), logger, os.Stdout)
}

func (c *CLICmd) run(ctx context.Context, logger *slog.Logger, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	loader := imageload.NewLoader(imageload.Options{Logger: logger})
	result := loader.Load(ctx, imageload.Request{URL: c.Source, FallbackURL: c.Fallback}).Result()
	if !result.OK() {
		return fmt.Errorf("load image: %w", result.Err)
	}

	policy := palette.DropMedian
	if c.KeepMedian {
		policy = palette.KeepMedian
	}
	extractor := palette.NewExtractor(palette.ExtractOptions{
		Depth:       c.Depth,
		SampleSize:  c.SampleSize,
		SplitPolicy: policy,
	})

	extracted, err := extractor.ExtractFromImage(result.Image)
	if err != nil {
		return fmt.Errorf("extract palette: %w", err)
	}

	background, ok := gradient.NewSynthesizer(nil).Compose(extracted.Colors)
	if !ok {
		logger.Warn("palette too small for a gradient", "colors", len(extracted.Colors))
	}

	report := output{
		Source:       result.Source,
		UsedFallback: result.UsedFallback,
		Format:       result.Format,
		Width:        extracted.SourceWidth,
		Height:       extracted.SourceHeight,
		Palette:      extracted.Palette,
		Background:   background,
	}

	if c.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	return writeText(out, report)
}

func writeText(out io.Writer, report output) error {
	if _, err := fmt.Fprintf(out, "%s (%s %dx%d)\n", report.Source, report.Format, report.Width, report.Height); err != nil {
		return err
	}
	for _, color := range report.Palette {
		if _, err := fmt.Fprintf(out, "%s  rgb(%d,%d,%d)  L=%.2f\n", color.Hex, color.R, color.G, color.B, color.Luminance); err != nil {
			return err
		}
	}
	if report.Background != "" {
		if _, err := fmt.Fprintf(out, "background: %s\n", report.Background); err != nil {
			return err
		}
	}
	return nil
}

func resolveSource(raw string) (string, error) {
	if imageload.IsHTTPURL(raw) {
		return raw, nil
	}

	path, ok := imageload.LocalPath(raw)
	if !ok {
		absolute, err := filepath.Abs(raw)
		if err != nil {
			return "", err
		}
		path = absolute
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("not a file")
	}
	return path, nil
}

func main() {
	var cli CLICmd
	kctx := kong.Parse(&cli,
		kong.Name("backdrop-palette"),
		kong.Description("Extract a median-cut palette and backdrop gradient from an image."),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))

	kctx.FatalIfErrorf(kctx.Run(logger))
}
