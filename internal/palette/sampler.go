package palette

import (
	"errors"
	"image"
	"image/draw"
	"slices"
	"sync"

	xdraw "golang.org/x/image/draw"
)

const (
	DefaultSampleSize = 16
	minSampleSize     = 4
	maxSampleSize     = 64
)

var ErrNoImage = errors.New("image has no pixels")

// Sampler draws images onto a small opaque raster and reads back its RGBA
// bytes. A Sampler is safe for concurrent use; calls are serialized.
type Sampler struct {
	mu     sync.Mutex
	size   int
	canvas *image.RGBA
}

func NewSampler(size int) *Sampler {
	if size <= 0 {
		size = DefaultSampleSize
	}
	size = max(minSampleSize, min(size, maxSampleSize))

	return &Sampler{
		size:   size,
		canvas: image.NewRGBA(image.Rect(0, 0, size, size)),
	}
}

func (s *Sampler) Size() int {
	return s.size
}

// Sample returns a fresh size*size*4 RGBA buffer. Transparent areas of img
// end up black.
func (s *Sampler) Sample(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bounds := s.canvas.Bounds()
	draw.Draw(s.canvas, bounds, image.Black, image.Point{}, draw.Src)
	xdraw.BiLinear.Scale(s.canvas, bounds, img, img.Bounds(), xdraw.Over, nil)

	return slices.Clone(s.canvas.Pix), nil
}
