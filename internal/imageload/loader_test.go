package imageload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadDecodesHTTPImage(t *testing.T) {
	t.Parallel()

	payload := encodePNG(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "image/png")
		rw.Write(payload)
	}))
	defer server.Close()

	loader := NewLoader(Options{Client: server.Client()})
	result := waitResult(t, loader.Load(context.Background(), Request{URL: server.URL + "/cover.png"}))

	if !result.OK() {
		t.Fatalf("expected image, got error %v", result.Err)
	}
	if result.Format != "png" {
		t.Fatalf("expected png format, got %q", result.Format)
	}
	if result.UsedFallback {
		t.Fatal("expected primary source to be used")
	}
	if result.Image.Bounds().Dx() != 4 {
		t.Fatalf("unexpected width %d", result.Image.Bounds().Dx())
	}
}

func TestLoadTriesFallbackExactlyOnce(t *testing.T) {
	t.Parallel()

	payload := encodePNG(t, color.NRGBA{R: 200, A: 255})
	var primaryHits, fallbackHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/missing.png":
			primaryHits.Add(1)
			http.NotFound(rw, req)
		case "/default.png":
			fallbackHits.Add(1)
			rw.Write(payload)
		}
	}))
	defer server.Close()

	loader := NewLoader(Options{Client: server.Client()})
	result := waitResult(t, loader.Load(context.Background(), Request{
		URL:         server.URL + "/missing.png",
		FallbackURL: server.URL + "/default.png",
	}))

	if !result.OK() {
		t.Fatalf("expected fallback image, got %v", result.Err)
	}
	if !result.UsedFallback {
		t.Fatal("expected fallback flag")
	}
	if result.Source != server.URL+"/default.png" {
		t.Fatalf("unexpected source %q", result.Source)
	}
	if primaryHits.Load() != 1 || fallbackHits.Load() != 1 {
		t.Fatalf("expected one hit each, got primary=%d fallback=%d", primaryHits.Load(), fallbackHits.Load())
	}
}

func TestLoadReportsFailureWhenFallbackFails(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		rw.Write([]byte("not an image"))
	}))
	defer server.Close()

	loader := NewLoader(Options{Client: server.Client()})
	result := waitResult(t, loader.Load(context.Background(), Request{
		URL:         server.URL + "/a.png",
		FallbackURL: server.URL + "/b.png",
	}))

	if result.OK() {
		t.Fatal("expected failure")
	}
	if !errors.Is(result.Err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", result.Err)
	}
	if !result.UsedFallback {
		t.Fatal("expected fallback to be attempted")
	}
	if hits.Load() != 2 {
		t.Fatalf("expected exactly two requests, got %d", hits.Load())
	}
}

func TestLoadRejectsOversizedImages(t *testing.T) {
	t.Parallel()

	payload := encodePNG(t, color.NRGBA{G: 255, A: 255})
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Write(payload)
	}))
	defer server.Close()

	loader := NewLoader(Options{Client: server.Client(), MaxBytes: 8})
	result := waitResult(t, loader.Load(context.Background(), Request{URL: server.URL}))

	if !errors.Is(result.Err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", result.Err)
	}
}

func TestLoadReadsLocalFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "backdrop.png")
	if err := os.WriteFile(path, encodePNG(t, color.NRGBA{B: 255, A: 255}), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	loader := NewLoader(Options{})
	for _, source := range []string{path, "file://" + filepath.ToSlash(path)} {
		result := waitResult(t, loader.Load(context.Background(), Request{URL: source}))
		if !result.OK() {
			t.Fatalf("%s: expected image, got %v", source, result.Err)
		}
	}
}

func TestLoadRejectsUnsupportedSources(t *testing.T) {
	t.Parallel()

	loader := NewLoader(Options{})
	result := waitResult(t, loader.Load(context.Background(), Request{URL: "ftp://example.com/a.png"}))

	if !errors.Is(result.Err, ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", result.Err)
	}
}

func TestLoadSkipsFallbackAfterCancellation(t *testing.T) {
	t.Parallel()

	var fallbackHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/fallback.png" {
			fallbackHits.Add(1)
			return
		}
		<-req.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	loader := NewLoader(Options{Client: server.Client()})
	result := waitResult(t, loader.Load(ctx, Request{URL: server.URL + "/slow.png", FallbackURL: server.URL + "/fallback.png"}))

	if !errors.Is(result.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", result.Err)
	}
	if fallbackHits.Load() != 0 {
		t.Fatal("expected fallback to be skipped once the request expired")
	}
}

func TestPendingResolvesOnce(t *testing.T) {
	t.Parallel()

	pending := NewPending()
	if pending.ID() == "" {
		t.Fatal("expected request id")
	}
	if !pending.Resolve(Result{Source: "first"}) {
		t.Fatal("expected first resolve to win")
	}
	if pending.Resolve(Result{Source: "second"}) {
		t.Fatal("expected second resolve to be ignored")
	}
	if got := pending.Result().Source; got != "first" {
		t.Fatalf("expected first result, got %q", got)
	}
}

func TestSourceClassification(t *testing.T) {
	t.Parallel()

	if !IsHTTPURL("https://example.com/a.jpg") || IsHTTPURL("https:///a.jpg") || IsHTTPURL("none") {
		t.Fatal("unexpected http url classification")
	}
	if _, ok := LocalPath("relative/a.png"); ok {
		t.Fatal("expected relative paths to be rejected")
	}
	if !IsAudioFile("/music/track.FLAC") || IsAudioFile("/music/cover.jpg") {
		t.Fatal("unexpected audio file classification")
	}
}

func waitResult(t *testing.T, pending *Pending) Result {
	t.Helper()

	select {
	case <-pending.Done():
		return pending.Result()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load")
		return Result{}
	}
}

func encodePNG(t *testing.T, fill color.NRGBA) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buffer.Bytes()
}
