package gradient

import (
	"strconv"
	"strings"

	"backdrop/internal/palette"
)

// Layer is one diagonal linear-gradient that fades its color from Opacity to
// fully transparent at Stop percent of the gradient line.
type Layer struct {
	Angle   int     `json:"angle"`
	Opacity float64 `json:"opacity"`
	Stop    int     `json:"stop"`
}

var defaultLayers = []Layer{
	{Angle: 15, Opacity: 0.8, Stop: 70},
	{Angle: 255, Opacity: 0.8, Stop: 70},
	{Angle: 135, Opacity: 0.8, Stop: 70},
}

func DefaultLayers() []Layer {
	layers := make([]Layer, len(defaultLayers))
	copy(layers, defaultLayers)
	return layers
}

type Surface interface {
	SetBackground(css string)
}

type Synthesizer struct {
	layers []Layer
}

func NewSynthesizer(layers []Layer) *Synthesizer {
	if len(layers) == 0 {
		layers = DefaultLayers()
	}

	copied := make([]Layer, len(layers))
	copy(copied, layers)
	return &Synthesizer{layers: copied}
}

func (s *Synthesizer) Layers() []Layer {
	layers := make([]Layer, len(s.layers))
	copy(layers, s.layers)
	return layers
}

// Compose renders one layer per configured Layer, taking colors in order.
// It reports false when there are fewer colors than layers.
func (s *Synthesizer) Compose(colors []palette.Pixel) (string, bool) {
	if len(colors) < len(s.layers) {
		return "", false
	}

	var builder strings.Builder
	for index, layer := range s.layers {
		if index > 0 {
			builder.WriteByte(',')
		}
		writeLayer(&builder, layer, colors[index])
	}

	return builder.String(), true
}

func (s *Synthesizer) Apply(surface Surface, colors []palette.Pixel) bool {
	if surface == nil {
		return false
	}

	background, ok := s.Compose(colors)
	if !ok {
		return false
	}

	surface.SetBackground(background)
	return true
}

var defaultSynthesizer = NewSynthesizer(nil)

func Compose(colors []palette.Pixel) (string, bool) {
	return defaultSynthesizer.Compose(colors)
}

func Apply(surface Surface, colors []palette.Pixel) bool {
	return defaultSynthesizer.Apply(surface, colors)
}

// ColorToCSS renders rgba() for alpha in [0,1) and rgb() otherwise.
func ColorToCSS(color palette.Pixel, alpha float64) string {
	var builder strings.Builder
	writeColor(&builder, color, alpha)
	return builder.String()
}

func writeLayer(builder *strings.Builder, layer Layer, color palette.Pixel) {
	builder.WriteString("linear-gradient(")
	builder.WriteString(strconv.Itoa(layer.Angle))
	builder.WriteString("deg,")
	writeColor(builder, color, layer.Opacity)
	builder.WriteByte(',')
	writeColor(builder, color, 0)
	builder.WriteByte(' ')
	builder.WriteString(strconv.Itoa(layer.Stop))
	builder.WriteString("%)")
}

func writeColor(builder *strings.Builder, color palette.Pixel, alpha float64) {
	translucent := alpha >= 0 && alpha < 1
	if translucent {
		builder.WriteString("rgba(")
	} else {
		builder.WriteString("rgb(")
	}

	builder.WriteString(strconv.Itoa(int(color.R)))
	builder.WriteByte(',')
	builder.WriteString(strconv.Itoa(int(color.G)))
	builder.WriteByte(',')
	builder.WriteString(strconv.Itoa(int(color.B)))
	if translucent {
		builder.WriteByte(',')
		builder.WriteString(strconv.FormatFloat(alpha, 'f', -1, 64))
	}
	builder.WriteByte(')')
}
