package palette

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/samber/lo"
)

var ErrNoPalette = errors.New("no palette colors extracted")

var defaultExtractOptions = ExtractOptions{
	Depth:       2,
	SampleSize:  DefaultSampleSize,
	SplitPolicy: DropMedian,
}

type ExtractOptions struct {
	Depth       int         `json:"depth"`
	SampleSize  int         `json:"sampleSize"`
	SplitPolicy SplitPolicy `json:"splitPolicy"`
}

type Result struct {
	Colors       []Pixel        `json:"-"`
	Palette      []PaletteColor `json:"palette"`
	SourceWidth  int            `json:"sourceWidth"`
	SourceHeight int            `json:"sourceHeight"`
	SampleSize   int            `json:"sampleSize"`
	Options      ExtractOptions `json:"options"`
}

type PaletteColor struct {
	Hex       string  `json:"hex"`
	R         int     `json:"r"`
	G         int     `json:"g"`
	B         int     `json:"b"`
	Luminance float64 `json:"luminance"`
}

func NewPaletteColor(pixel Pixel) PaletteColor {
	color := colorful.Color{
		R: float64(pixel.R) / maxRGBValue,
		G: float64(pixel.G) / maxRGBValue,
		B: float64(pixel.B) / maxRGBValue,
	}

	return PaletteColor{
		Hex:       color.Hex(),
		R:         int(pixel.R),
		G:         int(pixel.G),
		B:         int(pixel.B),
		Luminance: Luminance(pixel),
	}
}

func PaletteColors(pixels []Pixel) []PaletteColor {
	colors := make([]PaletteColor, 0, len(pixels))
	for _, pixel := range pixels {
		colors = append(colors, NewPaletteColor(pixel))
	}
	return colors
}

// Extractor owns the sampling raster used for every extraction it runs.
type Extractor struct {
	sampler *Sampler
	options ExtractOptions
}

func NewExtractor(options ExtractOptions) *Extractor {
	normalized := options.normalized()
	return &Extractor{
		sampler: NewSampler(normalized.SampleSize),
		options: normalized,
	}
}

func DefaultExtractOptions() ExtractOptions {
	return defaultExtractOptions
}

func NormalizeExtractOptions(options ExtractOptions) ExtractOptions {
	return options.normalized()
}

func (e *Extractor) Options() ExtractOptions {
	return e.options
}

func (e *Extractor) ExtractFromPath(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	decoded, _, err := image.Decode(file)
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	return e.ExtractFromImage(decoded)
}

func (e *Extractor) ExtractFromImage(img image.Image) (Result, error) {
	buffer, err := e.sampler.Sample(img)
	if err != nil {
		return Result{}, err
	}

	colors, ok := ExtractPaletteWith(buffer, e.options.Depth, e.options.SplitPolicy)
	if !ok || len(colors) == 0 {
		return Result{}, ErrNoPalette
	}

	bounds := img.Bounds()
	return Result{
		Colors:       colors,
		Palette:      PaletteColors(colors),
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		SampleSize:   e.sampler.Size(),
		Options:      e.options,
	}, nil
}

func (o ExtractOptions) normalized() ExtractOptions {
	normalized := o

	if normalized.Depth < 0 {
		normalized.Depth = defaultExtractOptions.Depth
	}
	normalized.Depth = lo.Clamp(normalized.Depth, 0, MaxDepth)

	if normalized.SampleSize <= 0 {
		normalized.SampleSize = defaultExtractOptions.SampleSize
	}
	normalized.SampleSize = lo.Clamp(normalized.SampleSize, minSampleSize, maxSampleSize)

	if normalized.SplitPolicy != KeepMedian {
		normalized.SplitPolicy = DropMedian
	}

	return normalized
}
