package main

import (
	"backdrop/internal/backdrop"
	"backdrop/internal/imageload"
	"errors"
	"net/http"
	"os"
	"strings"
)

const imageRoutePath = "/backdrop/image"

// ImageService serves the foreground image of local backdrops to the webview.
// Only files currently held by a display slot are served.
type ImageService struct {
	orchestrator *backdrop.Orchestrator
	maxBytes     int64
}

func NewImageService(orchestrator *backdrop.Orchestrator, maxBytes int64) *ImageService {
	return &ImageService{orchestrator: orchestrator, maxBytes: maxBytes}
}

func (s *ImageService) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestedPath := strings.TrimSpace(req.URL.Query().Get("path"))
	if requestedPath == "" {
		http.Error(rw, "missing image path", http.StatusBadRequest)
		return
	}

	resolvedPath, err := s.resolveImagePath(requestedPath)
	if err != nil {
		http.Error(rw, "image not found", http.StatusNotFound)
		return
	}

	rw.Header().Set("Cache-Control", "no-cache")

	if !imageload.IsAudioFile(resolvedPath) {
		http.ServeFile(rw, req, resolvedPath)
		return
	}

	imageData, err := imageload.ReadLocal(resolvedPath, s.maxBytes)
	if err != nil {
		http.Error(rw, "image not found", http.StatusNotFound)
		return
	}

	rw.Header().Set("Content-Type", http.DetectContentType(imageData))
	if req.Method == http.MethodHead {
		return
	}
	rw.Write(imageData)
}

func (s *ImageService) resolveImagePath(requestedPath string) (string, error) {
	path, ok := imageload.LocalPath(requestedPath)
	if !ok {
		return "", errors.New("requested path is not absolute")
	}

	for _, slot := range s.orchestrator.GetState().Slots {
		if !slotHoldsPath(slot, path) {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", errors.New("requested path is a directory")
		}
		return path, nil
	}

	return "", errors.New("requested path is not a backdrop image")
}

func slotHoldsPath(slot backdrop.SlotState, path string) bool {
	for _, candidate := range []string{slot.URL, slot.Source} {
		if candidatePath, ok := imageload.LocalPath(candidate); ok && candidatePath == path {
			return true
		}
	}
	return false
}
