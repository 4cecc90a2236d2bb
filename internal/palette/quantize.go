package palette

import (
	"cmp"
	"slices"
)

const (
	minRGBValue = 0
	maxRGBValue = 255
	// MaxDepth bounds the palette to 2^4 colors.
	MaxDepth = 4
)

type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
)

type SplitPolicy int

const (
	// DropMedian excludes the median pixel from both halves of every split.
	DropMedian SplitPolicy = iota
	// KeepMedian assigns the median pixel to the upper half.
	KeepMedian
)

type Pixel struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (p Pixel) channel(channel Channel) uint8 {
	switch channel {
	case ChannelRed:
		return p.R
	case ChannelGreen:
		return p.G
	default:
		return p.B
	}
}

// Luminance uses the BT.709 luma coefficients.
func Luminance(p Pixel) float64 {
	return 0.2126*float64(p.R) + 0.7152*float64(p.G) + 0.0722*float64(p.B)
}

// BufferToPixels reads RGBA quadruples and skips alpha. A trailing partial
// quadruple is ignored.
func BufferToPixels(buffer []byte) []Pixel {
	if len(buffer) == 0 {
		return nil
	}

	pixels := make([]Pixel, 0, len(buffer)/4)
	for offset := 0; offset+4 <= len(buffer); offset += 4 {
		pixels = append(pixels, Pixel{R: buffer[offset], G: buffer[offset+1], B: buffer[offset+2]})
	}

	return pixels
}

func MaxRangeChannel(pixels []Pixel) (Channel, bool) {
	if len(pixels) == 0 {
		return ChannelRed, false
	}

	minR, minG, minB := maxRGBValue, maxRGBValue, maxRGBValue
	maxR, maxG, maxB := minRGBValue, minRGBValue, minRGBValue
	for _, pixel := range pixels {
		minR = min(minR, int(pixel.R))
		minG = min(minG, int(pixel.G))
		minB = min(minB, int(pixel.B))
		maxR = max(maxR, int(pixel.R))
		maxG = max(maxG, int(pixel.G))
		maxB = max(maxB, int(pixel.B))
	}

	rangeR := maxR - minR
	rangeG := maxG - minG
	rangeB := maxB - minB
	if rangeR >= rangeG {
		if rangeR >= rangeB {
			return ChannelRed, true
		}
		return ChannelBlue, true
	}
	if rangeG >= rangeB {
		return ChannelGreen, true
	}

	return ChannelBlue, true
}

// Quantize appends the median-cut representatives of pixels to colors and
// returns the extended slice. pixels is reordered in place.
func Quantize(colors []Pixel, pixels []Pixel, currentDepth int, maxDepth int, policy SplitPolicy) []Pixel {
	if currentDepth >= maxDepth {
		average, ok := averagePixel(pixels)
		if !ok {
			return colors
		}
		return append(colors, average)
	}

	if channel, ok := MaxRangeChannel(pixels); ok {
		orderByChannel(pixels, channel)
	}

	half := len(pixels) / 2
	upperStart := half + 1
	if policy == KeepMedian {
		upperStart = half
	}
	upperStart = min(upperStart, len(pixels))

	colors = Quantize(colors, pixels[:half], currentDepth+1, maxDepth, policy)
	colors = Quantize(colors, pixels[upperStart:], currentDepth+1, maxDepth, policy)
	return colors
}

func averagePixel(pixels []Pixel) (Pixel, bool) {
	if len(pixels) == 0 {
		return Pixel{}, false
	}

	var sumR, sumG, sumB int
	for _, pixel := range pixels {
		sumR += int(pixel.R)
		sumG += int(pixel.G)
		sumB += int(pixel.B)
	}

	count := len(pixels)
	return Pixel{R: uint8(sumR / count), G: uint8(sumG / count), B: uint8(sumB / count)}, true
}

func orderByChannel(pixels []Pixel, channel Channel) {
	slices.SortStableFunc(pixels, func(left, right Pixel) int {
		return cmp.Compare(left.channel(channel), right.channel(channel))
	})
}

func OrderByLuminance(colors []Pixel) {
	slices.SortStableFunc(colors, func(left, right Pixel) int {
		return cmp.Compare(Luminance(left), Luminance(right))
	})
}

// ExtractPalette returns up to 2^depth colors ordered by ascending luminance.
// The second result is false when buffer holds no pixels.
func ExtractPalette(buffer []byte, depth int) ([]Pixel, bool) {
	return ExtractPaletteWith(buffer, depth, DropMedian)
}

func ExtractPaletteWith(buffer []byte, depth int, policy SplitPolicy) ([]Pixel, bool) {
	pixels := BufferToPixels(buffer)
	if len(pixels) == 0 {
		return nil, false
	}

	depth = clampDepth(depth)
	colors := Quantize(make([]Pixel, 0, 1<<depth), pixels, 0, depth, policy)
	OrderByLuminance(colors)
	return colors, true
}

func clampDepth(depth int) int {
	return max(0, min(depth, MaxDepth))
}
