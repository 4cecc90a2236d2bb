package imageload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"
)

var (
	ErrUnsupportedSource = errors.New("unsupported image source")
	ErrFetch             = errors.New("fetch image")
	ErrDecode            = errors.New("decode image")
	ErrTooLarge          = errors.New("image exceeds size limit")
)

var audioExtensions = map[string]struct{}{
	".aac":  {},
	".aif":  {},
	".aiff": {},
	".alac": {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
	".wma":  {},
}

func IsHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// LocalPath resolves file:// URLs and absolute filesystem paths.
func LocalPath(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if strings.HasPrefix(strings.ToLower(trimmed), "file://") {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Path == "" {
			return "", false
		}
		return filepath.Clean(filepath.FromSlash(parsed.Path)), true
	}

	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed), true
	}

	return "", false
}

func IsLoadable(raw string) bool {
	if IsHTTPURL(raw) {
		return true
	}

	_, ok := LocalPath(raw)
	return ok
}

func IsAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ReadLocal reads an image file, or the embedded cover art of an audio file.
func ReadLocal(path string, maxBytes int64) ([]byte, error) {
	if IsAudioFile(path) {
		imageData, err := taglib.ReadImage(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read embedded cover art: %w", ErrFetch, err)
		}
		if len(imageData) == 0 {
			return nil, fmt.Errorf("%w: %s has no embedded cover art", ErrFetch, path)
		}
		if maxBytes > 0 && int64(len(imageData)) > maxBytes {
			return nil, ErrTooLarge
		}
		return imageData, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFetch, path)
	}

	return readLimited(file, maxBytes)
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if IsHTTPURL(source) {
		return l.fetchHTTP(ctx, source)
	}

	if path, ok := LocalPath(source); ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ReadLocal(path, l.maxBytes)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
}

func (l *Loader) fetchHTTP(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, source, resp.Status)
	}

	return readLimited(resp.Body, l.maxBytes)
}

func readLimited(reader io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	return data, nil
}
