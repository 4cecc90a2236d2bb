package main

import (
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"backdrop/internal/backdrop"
	"backdrop/internal/imageload"
)

func TestImageServiceServesOnlySlotImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	shownPath := writeTestPNG(t, filepath.Join(dir, "shown.png"))
	otherPath := writeTestPNG(t, filepath.Join(dir, "other.png"))

	orchestrator := newTestOrchestrator(t)
	if _, err := orchestrator.SwapBackdrop(shownPath, 1); err != nil {
		t.Fatalf("swap backdrop: %v", err)
	}
	orchestrator.Wait()

	service := NewImageService(orchestrator, imageload.DefaultMaxBytes)

	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "slot image", method: http.MethodGet, path: shownPath, status: http.StatusOK},
		{name: "slot image head", method: http.MethodHead, path: shownPath, status: http.StatusOK},
		{name: "file url", method: http.MethodGet, path: "file://" + filepath.ToSlash(shownPath), status: http.StatusOK},
		{name: "path no slot holds", method: http.MethodGet, path: otherPath, status: http.StatusNotFound},
		{name: "directory", method: http.MethodGet, path: dir, status: http.StatusNotFound},
		{name: "relative path", method: http.MethodGet, path: "shown.png", status: http.StatusNotFound},
		{name: "missing path", method: http.MethodGet, path: "", status: http.StatusBadRequest},
		{name: "bad method", method: http.MethodPost, path: shownPath, status: http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		target := imageRoutePath + "?path=" + url.QueryEscape(tc.path)
		recorder := httptest.NewRecorder()
		service.ServeHTTP(recorder, httptest.NewRequest(tc.method, target, nil))

		if recorder.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, recorder.Code)
		}
	}

	recorder := httptest.NewRecorder()
	service.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, imageRoutePath+"?path="+url.QueryEscape(shownPath), nil))
	if _, err := png.Decode(recorder.Body); err != nil {
		t.Fatalf("expected png body: %v", err)
	}
}

func TestImageServiceRejectsImagesNoLongerHeld(t *testing.T) {
	t.Parallel()

	path := writeTestPNG(t, filepath.Join(t.TempDir(), "shown.png"))
	orchestrator := newTestOrchestrator(t)
	if _, err := orchestrator.SwapBackdrop(path, 1); err != nil {
		t.Fatalf("swap backdrop: %v", err)
	}
	orchestrator.Wait()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove image: %v", err)
	}

	recorder := httptest.NewRecorder()
	NewImageService(orchestrator, imageload.DefaultMaxBytes).ServeHTTP(
		recorder,
		httptest.NewRequest(http.MethodGet, imageRoutePath+"?path="+url.QueryEscape(path), nil),
	)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a removed file, got %d", recorder.Code)
	}
}

func newTestOrchestrator(t *testing.T) *backdrop.Orchestrator {
	t.Helper()

	orchestrator := backdrop.NewOrchestrator(imageload.NewLoader(imageload.Options{}), backdrop.Options{})
	t.Cleanup(orchestrator.Close)
	return orchestrator
}

func writeTestPNG(t *testing.T, path string) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}
