package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
)

//go:embed default.png
var defaultImage []byte

// InstallDefaultImage writes the bundled fallback image to the app dir unless
// an image already sits there, so users can replace it.
func InstallDefaultImage(paths Paths) (string, error) {
	existing, err := os.ReadFile(paths.DefaultImagePath)
	switch {
	case err == nil && len(existing) > 0:
		return paths.DefaultImagePath, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read default image: %w", err)
	}

	if err := os.WriteFile(paths.DefaultImagePath, bytes.Clone(defaultImage), 0o644); err != nil {
		return "", fmt.Errorf("write default image: %w", err)
	}
	return paths.DefaultImagePath, nil
}
