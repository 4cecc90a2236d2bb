package palette

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestExtractPaletteDepthZeroReturnsFlooredMean(t *testing.T) {
	t.Parallel()

	buffer := bufferFromPixels(
		Pixel{R: 1, G: 2, B: 3},
		Pixel{R: 2, G: 3, B: 4},
		Pixel{R: 10, G: 200, B: 7},
	)

	colors, ok := ExtractPalette(buffer, 0)
	if !ok {
		t.Fatal("expected palette for valid buffer")
	}
	if len(colors) != 1 {
		t.Fatalf("expected 1 color, got %d", len(colors))
	}
	expected := Pixel{R: 4, G: 68, B: 4}
	if colors[0] != expected {
		t.Fatalf("expected %+v, got %+v", expected, colors[0])
	}
}

func TestExtractPaletteUniformBufferReturnsSameColor(t *testing.T) {
	t.Parallel()

	uniform := Pixel{R: 90, G: 12, B: 201}
	pixels := make([]Pixel, 256)
	for index := range pixels {
		pixels[index] = uniform
	}
	buffer := bufferFromPixels(pixels...)

	for depth := 0; depth <= MaxDepth; depth++ {
		colors, ok := ExtractPalette(buffer, depth)
		if !ok {
			t.Fatalf("depth %d: expected palette", depth)
		}
		if len(colors) == 0 {
			t.Fatalf("depth %d: expected at least one color", depth)
		}
		for _, color := range colors {
			if color != uniform {
				t.Fatalf("depth %d: expected %+v, got %+v", depth, uniform, color)
			}
		}
	}
}

func TestExtractPaletteIsDeterministicAndSorted(t *testing.T) {
	t.Parallel()

	buffer := randomBuffer(16*16, 42)

	for depth := 0; depth <= MaxDepth; depth++ {
		first, ok := ExtractPalette(buffer, depth)
		if !ok {
			t.Fatalf("depth %d: expected palette", depth)
		}
		second, _ := ExtractPalette(buffer, depth)
		if !slices.Equal(first, second) {
			t.Fatalf("depth %d: expected identical palettes, got %v and %v", depth, first, second)
		}
		if len(first) > 1<<depth {
			t.Fatalf("depth %d: expected at most %d colors, got %d", depth, 1<<depth, len(first))
		}
		for index := 1; index < len(first); index++ {
			if Luminance(first[index-1]) > Luminance(first[index]) {
				t.Fatalf("depth %d: palette not ordered by luminance: %v", depth, first)
			}
		}
	}
}

func TestExtractPaletteDoesNotMutateBuffer(t *testing.T) {
	t.Parallel()

	buffer := randomBuffer(64, 7)
	original := slices.Clone(buffer)

	if _, ok := ExtractPalette(buffer, 3); !ok {
		t.Fatal("expected palette")
	}
	if !slices.Equal(buffer, original) {
		t.Fatal("expected input buffer to stay untouched")
	}
}

func TestExtractPaletteBlackAndWhiteScenario(t *testing.T) {
	t.Parallel()

	black := Pixel{}
	white := Pixel{R: 255, G: 255, B: 255}
	buffer := bufferFromPixels(black, white, black, white)

	colors, ok := ExtractPalette(buffer, 1)
	if !ok {
		t.Fatal("expected palette")
	}
	expected := []Pixel{black, white}
	if !slices.Equal(colors, expected) {
		t.Fatalf("expected %v, got %v", expected, colors)
	}
}

func TestExtractPaletteDropsMedianAtEverySplit(t *testing.T) {
	t.Parallel()

	buffer := bufferFromPixels(Pixel{R: 10}, Pixel{R: 200})

	colors, ok := ExtractPalette(buffer, 2)
	if !ok {
		t.Fatal("expected valid buffer to produce a result")
	}
	if len(colors) != 0 {
		t.Fatalf("expected every bucket to empty out, got %v", colors)
	}

	colors, ok = ExtractPaletteWith(buffer, 2, KeepMedian)
	if !ok {
		t.Fatal("expected valid buffer to produce a result")
	}
	expected := []Pixel{{R: 10}, {R: 200}}
	if !slices.Equal(colors, expected) {
		t.Fatalf("expected %v with median kept, got %v", expected, colors)
	}
}

func TestExtractPaletteDropMedianShrinksOddBuckets(t *testing.T) {
	t.Parallel()

	buffer := bufferFromPixels(Pixel{R: 0}, Pixel{R: 100}, Pixel{R: 200})

	colors, _ := ExtractPalette(buffer, 1)
	expected := []Pixel{{R: 0}, {R: 200}}
	if !slices.Equal(colors, expected) {
		t.Fatalf("expected %v, got %v", expected, colors)
	}
}

func TestExtractPaletteRejectsEmptyBuffers(t *testing.T) {
	t.Parallel()

	if colors, ok := ExtractPalette(nil, 2); ok || colors != nil {
		t.Fatalf("expected absent palette for nil buffer, got %v", colors)
	}
	if _, ok := ExtractPalette([]byte{}, 2); ok {
		t.Fatal("expected absent palette for empty buffer")
	}
	if _, ok := ExtractPalette([]byte{1, 2, 3}, 2); ok {
		t.Fatal("expected absent palette for partial pixel")
	}
}

func TestExtractPaletteClampsDepth(t *testing.T) {
	t.Parallel()

	buffer := randomBuffer(16*16, 3)

	colors, ok := ExtractPalette(buffer, 9)
	if !ok {
		t.Fatal("expected palette")
	}
	if len(colors) > 1<<MaxDepth {
		t.Fatalf("expected at most %d colors, got %d", 1<<MaxDepth, len(colors))
	}

	colors, _ = ExtractPalette(buffer, -3)
	if len(colors) != 1 {
		t.Fatalf("expected negative depth to behave like depth 0, got %d colors", len(colors))
	}
}

func TestBufferToPixelsSkipsAlpha(t *testing.T) {
	t.Parallel()

	pixels := BufferToPixels([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	expected := []Pixel{{R: 1, G: 2, B: 3}, {R: 5, G: 6, B: 7}}
	if !slices.Equal(pixels, expected) {
		t.Fatalf("expected %v, got %v", expected, pixels)
	}
}

func TestMaxRangeChannelTieBreak(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		pixels   []Pixel
		expected Channel
	}{
		{name: "all equal ranges pick red", pixels: []Pixel{{}, {R: 255, G: 255, B: 255}}, expected: ChannelRed},
		{name: "red and blue tie over green", pixels: []Pixel{{}, {R: 50, G: 10, B: 50}}, expected: ChannelRed},
		{name: "green and blue tie", pixels: []Pixel{{}, {R: 10, G: 80, B: 80}}, expected: ChannelGreen},
		{name: "blue widest", pixels: []Pixel{{}, {R: 10, G: 20, B: 30}}, expected: ChannelBlue},
		{name: "blue beats red", pixels: []Pixel{{}, {R: 30, G: 10, B: 40}}, expected: ChannelBlue},
	}

	for _, tc := range cases {
		channel, ok := MaxRangeChannel(tc.pixels)
		if !ok {
			t.Fatalf("%s: expected a channel", tc.name)
		}
		if channel != tc.expected {
			t.Fatalf("%s: expected channel %d, got %d", tc.name, tc.expected, channel)
		}
	}

	if _, ok := MaxRangeChannel(nil); ok {
		t.Fatal("expected no channel for empty palette")
	}
}

func TestOrderByLuminanceIsStable(t *testing.T) {
	t.Parallel()

	first := Pixel{R: 100, G: 0, B: 0}
	second := Pixel{R: 100, G: 0, B: 0}
	bright := Pixel{R: 0, G: 200, B: 0}
	colors := []Pixel{bright, first, second}

	OrderByLuminance(colors)
	expected := []Pixel{first, second, bright}
	if !slices.Equal(colors, expected) {
		t.Fatalf("expected %v, got %v", expected, colors)
	}
}

func TestLuminanceUsesBT709Weights(t *testing.T) {
	t.Parallel()

	if got := Luminance(Pixel{R: 255, G: 255, B: 255}); got < 254.99 || got > 255.01 {
		t.Fatalf("expected white luminance of 255, got %f", got)
	}
	if Luminance(Pixel{G: 10}) <= Luminance(Pixel{R: 10}) {
		t.Fatal("expected green to weigh more than red")
	}
	if Luminance(Pixel{R: 10}) <= Luminance(Pixel{B: 10}) {
		t.Fatal("expected red to weigh more than blue")
	}
}

func bufferFromPixels(pixels ...Pixel) []byte {
	buffer := make([]byte, 0, len(pixels)*4)
	for _, pixel := range pixels {
		buffer = append(buffer, pixel.R, pixel.G, pixel.B, 255)
	}
	return buffer
}

func randomBuffer(pixelCount int, seed uint64) []byte {
	random := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]byte, pixelCount*4)
	for index := range buffer {
		buffer[index] = byte(random.IntN(256))
	}
	return buffer
}
