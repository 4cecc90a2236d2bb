package imageload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxBytes    = 16 << 20
	defaultHTTPTimeout = 20 * time.Second
)

type Request struct {
	URL         string
	FallbackURL string
}

type Options struct {
	Client    *http.Client
	MaxBytes  int64
	UserAgent string
	Logger    *slog.Logger
}

type Loader struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	logger    *slog.Logger
}

func NewLoader(options Options) *Loader {
	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	maxBytes := options.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		client:    client,
		maxBytes:  maxBytes,
		userAgent: strings.TrimSpace(options.UserAgent),
		logger:    logger,
	}
}

// Load starts the request in the background. The primary URL is tried once;
// if it fails and a fallback is set, the fallback is tried once.
func (l *Loader) Load(ctx context.Context, req Request) *Pending {
	pending := NewPending()
	go func() {
		pending.Resolve(l.load(ctx, pending.ID(), req))
	}()
	return pending
}

func (l *Loader) load(ctx context.Context, id string, req Request) Result {
	primary := l.attempt(ctx, id, req.URL)
	if primary.Err == nil {
		return primary
	}

	fallbackURL := strings.TrimSpace(req.FallbackURL)
	if fallbackURL == "" || ctx.Err() != nil {
		return primary
	}

	l.logger.Warn("image load failed, trying fallback",
		"request", id,
		"source", req.URL,
		"fallback", fallbackURL,
		"error", primary.Err,
	)

	fallback := l.attempt(ctx, id, fallbackURL)
	fallback.UsedFallback = true
	if fallback.Err != nil {
		fallback.Err = errors.Join(primary.Err, fallback.Err)
	}

	return fallback
}

func (l *Loader) attempt(ctx context.Context, id string, source string) Result {
	result := Result{Source: source}

	data, err := l.read(ctx, source)
	if err != nil {
		result.Err = err
		return result
	}

	decoded, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrDecode, err)
		return result
	}

	l.logger.Debug("image loaded",
		"request", id,
		"source", source,
		"format", format,
		"size", humanize.Bytes(uint64(len(data))),
		"width", decoded.Bounds().Dx(),
		"height", decoded.Bounds().Dy(),
	)

	result.Image = decoded
	result.Format = format
	return result
}
